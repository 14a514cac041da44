package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/recordimport/internal/config"
	"github.com/JonMunkholm/recordimport/internal/core"
	_ "github.com/JonMunkholm/recordimport/internal/core/schemas" // Register built-in record types
	"github.com/JonMunkholm/recordimport/internal/logging"
	"github.com/JonMunkholm/recordimport/internal/store"
	"github.com/JonMunkholm/recordimport/internal/web"
)

// recordStore is what the server needs from a backend: commits from the
// coordinator, reads from the export and history handlers.
type recordStore interface {
	core.CommitExecutor
	web.RecordStore
}

func main() {
	// Load .env file if it exists; real environment variables win
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration", "config", cfg.String())

	ctx := context.Background()

	records, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	limiter := core.NewCommitLimiter(cfg.Import.MaxConcurrentCommits, cfg.Import.CommitWait)
	imports := core.NewCoordinator(records, limiter, core.CoordinatorConfig{
		MaxFileSize:   cfg.Import.MaxFileSize,
		MaxSessions:   cfg.Import.MaxSessions,
		SessionTTL:    cfg.Import.SessionTTL,
		CommitTimeout: cfg.Import.CommitTimeout,
	})

	slog.Info("record types registered", "count", core.SchemaCount())
	for _, schema := range core.All() {
		slog.Debug("record type", "name", schema.Name, "collection", schema.Target(), "fields", len(schema.Fields))
	}

	server := web.NewServer(imports, records, cfg)

	// Background jobs stop with jobCtx
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	if cfg.Import.SessionTTL > 0 {
		go imports.StartSweeper(jobCtx, cfg.Import.SweepInterval)
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop taking requests first so no new commit starts
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if status := imports.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for commits to complete", "active", status.Active)
			if err := imports.WaitForCommits(shutdownCtx); err != nil {
				slog.Warn("commits did not complete in time", "error", err)
			} else {
				slog.Info("all commits completed")
			}
		}
	}()

	slog.Info("server starting",
		"addr", cfg.Server.Addr(),
		"persistent", cfg.Database.Persistent(),
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		cancelJobs()
		closeStore()
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}

// openStore connects to Postgres when a URL is configured, and falls back
// to the in-memory store otherwise.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (recordStore, func(), error) {
	if !cfg.Persistent() {
		slog.Warn("DATABASE_URL not set, committed records are kept in memory only")
		return store.NewMemory(), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse database URL")
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect to database")
	}

	pg := store.NewPostgres(pool)
	if err := pg.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, errors.Wrap(err, "ping database")
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	if cfg.Migrate {
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		slog.Info("import tables ready")
	}

	return pg, pool.Close, nil
}
