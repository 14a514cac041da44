package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/recordimport/internal/core"
)

// maxBatchHistory caps the limit parameter of the batch history endpoint.
const maxBatchHistory = 200

// healthResponse reports store reachability and import load.
type healthResponse struct {
	Status      string                   `json:"status"`
	Store       string                   `json:"store"`
	OpenImports int                      `json:"openImports"`
	Commits     core.CommitLimiterStatus `json:"commits"`
}

// handleHealth pings the record store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:      "ok",
		Store:       "ok",
		OpenImports: len(s.imports.Sessions()),
		Commits:     s.imports.LimiterStatus(),
	}
	status := http.StatusOK
	if err := s.records.Ping(ctx); err != nil {
		s.logger(r).Warn("health check: store unreachable", "error", err)
		resp.Status = "degraded"
		resp.Store = "unreachable"
		status = http.StatusServiceUnavailable
	}
	writeJSONStatus(w, status, resp)
}

// handleListSchemas returns every registered record type.
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	schemas := core.All()
	views := make([]schemaView, len(schemas))
	for i, schema := range schemas {
		views[i] = toSchemaView(schema)
	}
	writeJSON(w, views)
}

// handleDownloadTemplate returns a header-only CSV for a record type.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	schema, err := lookupSchema(chi.URLParam(r, "schema"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	file := core.Export(schema, nil, nil, s.now())
	writeCSV(w, fmt.Sprintf("%s_template.csv", schema.Name), file.Content)
}

// handleBatches lists recent commits.
func (s *Server) handleBatches(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 20)
	if limit > maxBatchHistory {
		limit = maxBatchHistory
	}

	batches, err := s.records.RecentBatches(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, errors.Wrap(err, "list batches"))
		return
	}
	writeJSON(w, batches)
}

func lookupSchema(name string) (core.RecordSchema, error) {
	schema, ok := core.Lookup(name)
	if !ok {
		return core.RecordSchema{}, errors.Wrapf(core.ErrUnknownSchema, "%q", name)
	}
	return schema, nil
}

// writeCSV sends content as a download.
func writeCSV(w http.ResponseWriter, filename string, content []byte) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Write(content)
}
