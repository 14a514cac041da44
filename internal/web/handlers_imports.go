package web

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/recordimport/internal/core"
	"github.com/JonMunkholm/recordimport/internal/logging"
)

const (
	// multipartOverhead is allowed on top of the file size for boundaries
	// and part headers.
	multipartOverhead = 64 << 10

	// multipartMemory is kept in memory while parsing; larger parts spill
	// to temporary files.
	multipartMemory = 8 << 20
)

// handleOpenImport decodes and classifies an uploaded file into a new
// preview session.
func (s *Server) handleOpenImport(w http.ResponseWriter, r *http.Request) {
	schemaName := chi.URLParam(r, "schema")
	maxSize := s.cfg.Import.MaxFileSize

	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, r, errors.Wrapf(core.ErrFileTooLarge, "limit %d bytes", maxSize))
			return
		}
		s.respondError(w, r, errors.Wrapf(errNoFile, "invalid form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errNoFile)
		return
	}
	defer file.Close()

	// One byte past the limit is enough for Open to reject the file
	content, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		s.respondError(w, r, errors.Wrap(err, "read upload"))
		return
	}

	if len(content) > 0 {
		if mt := mimetype.Detect(content); !isText(mt) {
			s.respondError(w, r, errors.Wrapf(errUnsupportedType, "%s", mt.String()))
			return
		}
	}

	preview, err := s.imports.Open(r.Context(), schemaName, header.Filename, content)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	view := toPreviewView(preview, parseIntParam(r, "limit", defaultPreviewRows))
	if isHTMX(r) {
		renderFragment(w, r, http.StatusCreated, PreviewPanel(view))
		return
	}
	w.Header().Set("Location", "/api/imports/"+preview.SessionID)
	writeJSONStatus(w, http.StatusCreated, view)
}

// isText accepts text/plain and everything detected beneath it (CSV, TSV,
// and text that merely looks like another format).
func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// handleListImports lists open sessions without their rows.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	previews := s.imports.Sessions()
	views := make([]sessionView, len(previews))
	for i, p := range previews {
		views[i] = toSessionView(p)
	}
	writeJSON(w, views)
}

// handlePreview returns one session's preview.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	preview, err := s.imports.Preview(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	view := toPreviewView(preview, parseIntParam(r, "limit", defaultPreviewRows))
	if isHTMX(r) {
		renderFragment(w, r, http.StatusOK, PreviewPanel(view))
		return
	}
	writeJSON(w, view)
}

// handleConfirm commits the session's valid rows. A failed commit leaves the
// preview in place for a retry.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	receipt, err := s.imports.Confirm(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		renderFragment(w, r, http.StatusOK, ReceiptNotice(receipt))
		return
	}
	writeJSON(w, receipt)
}

// handleCancel discards a session.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.imports.Cancel(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		renderFragment(w, r, http.StatusOK, CancelledNotice(id))
		return
	}
	writeJSON(w, map[string]string{"sessionId": id, "state": string(core.StateCancelled)})
}

// handleInvalidRows downloads the invalid rows with line numbers and errors.
func (s *Server) handleInvalidRows(w http.ResponseWriter, r *http.Request) {
	preview, err := s.imports.Preview(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	filename := fmt.Sprintf("%s_invalid_rows_%s.csv", preview.Schema.Name, s.now().Format("20060102_150405"))
	writeCSV(w, filename, core.EncodeInvalidRows(preview.Result))
}

// handleExport downloads committed records of a type. The optional fields
// parameter picks and orders the columns.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	schema, err := lookupSchema(chi.URLParam(r, "schema"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	records, err := s.records.ListRecords(r.Context(), schema)
	if err != nil {
		s.respondError(w, r, errors.Wrapf(err, "list %s records", schema.Name))
		return
	}

	file := core.Export(schema, records, parseFields(r), s.now())
	s.logger(r).Info("export", "schema", schema.Name, "records", len(records))
	writeCSV(w, file.Name, file.Content)
}

func (s *Server) logger(r *http.Request) *slog.Logger {
	return logging.FromContext(r.Context())
}
