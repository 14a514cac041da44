// Package web is the HTTP surface of the import service: upload and preview,
// confirm and cancel, invalid-row and record export, batch history.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/recordimport/internal/config"
	"github.com/JonMunkholm/recordimport/internal/core"
	"github.com/JonMunkholm/recordimport/internal/store"
	"github.com/JonMunkholm/recordimport/internal/web/middleware"
)

// RecordStore reads committed records back for export and history.
type RecordStore interface {
	ListRecords(ctx context.Context, schema core.RecordSchema) ([]core.Record, error)
	RecentBatches(ctx context.Context, limit int) ([]store.BatchSummary, error)
	Ping(ctx context.Context) error
}

// Server is the HTTP server for the import service.
type Server struct {
	imports *core.Coordinator
	records RecordStore
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
	now     func() time.Time
}

// NewServer creates a Server with routes and middleware configured.
func NewServer(imports *core.Coordinator, records RecordStore, cfg *config.Config) *Server {
	s := &Server{
		imports: imports,
		records: records,
		cfg:     cfg,
		router:  chi.NewRouter(),
		now:     time.Now,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(middleware.NewRateLimiter(s.cfg.Rate.RequestsPerMinute).Handler)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/schemas", s.handleListSchemas)
		r.Get("/schemas/{schema}/template", s.handleDownloadTemplate)

		// Uploads get a tighter budget than reads
		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.Use(middleware.NewRateLimiter(s.cfg.Rate.UploadLimit).Handler)
			}
			r.Post("/schemas/{schema}/imports", s.handleOpenImport)
		})

		r.Get("/imports", s.handleListImports)
		r.Get("/imports/{id}", s.handlePreview)
		r.Post("/imports/{id}/confirm", s.handleConfirm)
		r.Post("/imports/{id}/cancel", s.handleCancel)
		r.Get("/imports/{id}/invalid-rows", s.handleInvalidRows)

		r.Get("/export/{schema}", s.handleExport)
		r.Get("/batches", s.handleBatches)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(csp bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if csp {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
			}
			next.ServeHTTP(w, r)
		})
	}
}
