// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/threatmap/internal/api"
	"github.com/starford/threatmap/internal/catalog"
	"github.com/starford/threatmap/internal/metrics"
	"github.com/starford/threatmap/internal/modelservice"
	"github.com/starford/threatmap/internal/sse"
	"github.com/starford/threatmap/internal/store"
	"github.com/starford/threatmap/internal/store/badgerstore"
	"github.com/starford/threatmap/internal/store/sqlitestore"
)

var errConfigRequired = errors.New("config is required")

func newLogger(cfg *Config, out io.Writer) *slog.Logger {
	if out == nil {
		out = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

// openStore opens the configured backend wrapped with metrics.
func openStore(cfg StoreConfig, m *metrics.Metrics, logger *slog.Logger) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Driver {
	case StoreDriverBadger:
		st, err = badgerstore.Open(badgerstore.Config{Path: cfg.BadgerPath, Logger: logger})
	case StoreDriverSQLite, "":
		st, err = sqlitestore.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	return metrics.InstrumentStore(st, cfg.Driver, m), nil
}

// newSyncer prepares the catalog directory.
func newSyncer(cfg CatalogConfig, svc *modelservice.Service, logger *slog.Logger) (*catalog.Syncer, error) {
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}
	dir, err := catalog.NewDir(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}
	return catalog.NewSyncer(dir, svc, logger), nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(cfg, app.logOutput)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("catalog_path", cfg.Catalog.Path),
		slog.Bool("catalog_watch", cfg.Catalog.Watch),
		slog.String("log_level", cfg.App.LogLevel.String()))

	m := metrics.New()

	st, err := openStore(cfg.Store, m, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	// SSE broker receives every service change.
	broker := sse.NewBroker(cfg.Catalog.AnalysisThrottle)
	defer broker.Close()

	svc := modelservice.NewService(st,
		modelservice.WithChangeFunc(broker.PublishChange),
		modelservice.WithMetrics(m),
	)

	syncer, err := newSyncer(cfg.Catalog, svc, logger)
	if err != nil {
		return err
	}

	// Run initial sync.
	if res, err := syncer.Sync(ctx); err != nil {
		logger.Warn("initial catalog sync failed", slog.String("error", err.Error()))
	} else {
		logger.Info("catalog synced",
			slog.Int("imported", res.Imported),
			slog.Int("removed", res.Removed),
			slog.Int("failed", res.Failed))
	}

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", healthHandler)
	r.Get("/health/ready", healthHandler)
	r.Handle("/metrics", m.Handler())

	// Mount API routes under /api, including the SSE stream at /api/events.
	r.Mount("/api", api.NewRouter(svc, broker))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	if cfg.Catalog.Watch {
		g.Go(func() error {
			err := catalog.Watch(gCtx, syncer, logger, func(kind, path string) {
				logger.Debug("catalog file processed", slog.String("kind", kind), slog.String("path", path))
			})
			if err != nil {
				logger.Error("catalog watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
