package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/threatmap/internal/catalog"
	"github.com/starford/threatmap/internal/mcpserver"
	"github.com/starford/threatmap/internal/metrics"
	"github.com/starford/threatmap/internal/modelservice"
	"github.com/starford/threatmap/internal/report"
	"github.com/starford/threatmap/internal/store"
)

// offline is the store and service used by the one-shot commands.
type offline struct {
	logger *slog.Logger
	cfg    *Config
	store  store.Store
	svc    *modelservice.Service
}

func openOffline(opts []Option) (*offline, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(app.config, app.logOutput)
	slog.SetDefault(logger)

	m := metrics.New()
	st, err := openStore(app.config.Store, m, logger)
	if err != nil {
		return nil, err
	}
	return &offline{
		logger: logger,
		cfg:    app.config,
		store:  st,
		svc:    modelservice.NewService(st, modelservice.WithMetrics(m)),
	}, nil
}

func (o *offline) Close() error {
	return o.store.Close()
}

// RunMCP serves the MCP tools over stdin/stdout. Logs must not go to stdout.
func RunMCP(_ context.Context, opts ...Option) error {
	o, err := openOffline(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	defer o.Close()

	o.logger.Info("MCP server starting", slog.String("store_driver", o.cfg.Store.Driver))
	return mcpserver.New(o.svc).ServeStdio()
}

// Import syncs the catalog directory into the store once.
func Import(ctx context.Context, w io.Writer, opts ...Option) error {
	o, err := openOffline(opts)
	if err != nil {
		return err
	}
	defer o.Close()

	syncer, err := newSyncer(o.cfg.Catalog, o.svc, o.logger)
	if err != nil {
		return err
	}
	res, err := syncer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("catalog sync: %w", err)
	}
	_, err = fmt.Fprintf(w, "imported %d file(s), %d failed\n", res.Imported, res.Failed)
	return err
}

// Export writes every stored threat, mitigation and subdomain to a single
// catalog file at path.
func Export(ctx context.Context, w io.Writer, path string, opts ...Option) error {
	o, err := openOffline(opts)
	if err != nil {
		return err
	}
	defer o.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if !catalog.IsCatalogFile(abs) {
		return fmt.Errorf("export: %s must end with .yaml or .yml", path)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	dir, err := catalog.NewDir(filepath.Dir(abs))
	if err != nil {
		return err
	}
	f, err := catalog.Export(ctx, o.svc, dir, filepath.Base(abs))
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	_, err = fmt.Fprintf(w, "exported %d threat(s) to %s\n", len(f.Threats), abs)
	return err
}

// Report renders the store overview, or the analysis of a saved iteration
// when iteration is set.
func Report(ctx context.Context, w io.Writer, iteration string, opts ...Option) error {
	o, err := openOffline(opts)
	if err != nil {
		return err
	}
	defer o.Close()

	if iteration == "" {
		ov, err := o.svc.Overview(ctx)
		if err != nil {
			return err
		}
		return report.Overview(w, ov)
	}
	if err := o.svc.LoadIterationByName(ctx, iteration); err != nil {
		return fmt.Errorf("iteration %q: %w", iteration, err)
	}
	return report.Analysis(w, o.svc.Analyze(), o.svc.CurrentIteration())
}
