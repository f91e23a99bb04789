// Package app provides the top-level application lifecycle management for the
// gateway. It wires together all dependencies (venue factory, caches,
// services, notifications and the HTTP server) and runs them until the
// context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/alphagate/internal/config"
	"github.com/alanyoungcy/alphagate/internal/domain"
)

const shutdownTimeout = 30 * time.Second

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Run wires all dependencies, starts the HTTP server and blocks until the
// context is cancelled. In-flight requests get shutdownTimeout to finish.
func (a *App) Run(ctx context.Context) error {
	log := a.logger.With(slog.String("component", "app"))
	log.InfoContext(ctx, "starting application",
		slog.String("venue", a.cfg.Venue.Kind),
		slog.Bool("dry_run", a.cfg.Trading.DryRun),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	a.logCaveats(ctx, log)
	deps.Notifier.Notify(ctx, domain.NotifyInfo, fmt.Sprintf("gateway online (venue %s, dry-run %t, trading %s)",
		a.cfg.Venue.Kind, a.cfg.Trading.DryRun, deps.Gate.Status()))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Server.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return deps.Server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// logCaveats states the operational trade-offs of the current settings.
func (a *App) logCaveats(ctx context.Context, log *slog.Logger) {
	if a.cfg.Trading.StartDisabled {
		log.WarnContext(ctx, "trading gate starts DISABLED; POST /resume to begin trading")
	} else {
		log.WarnContext(ctx, "trading gate starts ENABLED; gate state is memory only, so a restart after a kill switch re-enables trading (set trading.start_disabled for fail-closed)")
	}
	if !a.cfg.Trading.SerializePerSymbol {
		log.WarnContext(ctx, "per-symbol serialisation is off; concurrent signals for one symbol may size from the same balance (set trading.serialize_per_symbol)")
	}
	if a.cfg.Trading.DryRun {
		log.WarnContext(ctx, "dry-run mode: orders are simulated and never sent, leverage is left unchanged")
	}
	if a.cfg.Security.AdminSecret == "" {
		log.WarnContext(ctx, "security.admin_secret is empty; admin endpoints will reject every request")
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
