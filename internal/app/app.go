// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/webharvest/webharvest/internal/clock/system"
	"github.com/webharvest/webharvest/internal/config"
	"github.com/webharvest/webharvest/internal/logging"
	"github.com/webharvest/webharvest/internal/pool"
	"github.com/webharvest/webharvest/internal/progress"
	"github.com/webharvest/webharvest/internal/progress/sinks"
	"github.com/webharvest/webharvest/internal/scraper"
	"github.com/webharvest/webharvest/internal/storage/memory"
	"github.com/webharvest/webharvest/internal/storage/postgres"
)

// App holds the shared, long-lived services for the harvest service. It is
// initialized once at startup and passed to the components that need it.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	hub      *progress.Hub
	browser  *scraper.ChromedpEngine
	legacy   *scraper.ChromedpEngine
	pgStore  *postgres.ResultStore
	pool     *pool.Pool
}

// New creates and initializes the service from configuration. It fails fast
// if any critical dependency cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	logger.Info("initializing services")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return nil, err
	}
	hub := progress.NewHub(progress.Config{
		BufferSize:     cfg.Progress.Buffer,
		MaxBatchEvents: cfg.Progress.Batch,
		MaxBatchWait:   time.Duration(cfg.Progress.FlushMs) * time.Millisecond,
		Logger:         logger,
	}, sinks.NewLogSink(logger), promSink)

	app := &App{cfg: cfg, logger: logger, registry: registry, hub: hub}

	httpEngine, err := scraper.NewCollyEngine(scraper.HTTPEngineConfig{
		UserAgent:      cfg.HTTP.UserAgent,
		RequestTimeout: cfg.HTTPTimeout(),
		MaxParallel:    cfg.HTTP.MaxParallel,
	}, logger)
	if err != nil {
		app.shutdown(ctx)
		return nil, fmt.Errorf("initialize http engine: %w", err)
	}

	var browserAdapter, legacyAdapter scraper.EngineAdapter
	if cfg.Browser.Enabled {
		browserCfg := scraper.BrowserEngineConfig{
			Concurrency: cfg.Browser.MaxParallel,
			NavTimeout:  cfg.NavTimeout(),
			DomainQPS:   cfg.Browser.DomainQPS,
			UserAgent:   cfg.Browser.UserAgent,
		}
		app.browser, err = scraper.NewChromedpEngine(browserCfg, logger)
		if err != nil {
			app.shutdown(ctx)
			return nil, fmt.Errorf("initialize browser engine: %w", err)
		}
		browserCfg.Legacy = true
		app.legacy, err = scraper.NewChromedpEngine(browserCfg, logger)
		if err != nil {
			app.shutdown(ctx)
			return nil, fmt.Errorf("initialize legacy engine: %w", err)
		}
		browserAdapter, legacyAdapter = app.browser, app.legacy
	} else {
		logger.Info("browser engine disabled, browser and legacy routes are unavailable")
	}

	var store scraper.ResultStore
	if cfg.DB.DSN != "" {
		logger.Info("connecting result store")
		app.pgStore, err = postgres.NewResultStore(ctx, cfg.DB.DSN)
		if err != nil {
			app.shutdown(ctx)
			return nil, fmt.Errorf("initialize result store: %w", err)
		}
		store = app.pgStore
	} else {
		logger.Info("no db.dsn configured, results are kept in memory only")
		store = memory.NewResultStore()
	}

	app.pool = pool.New(
		pool.Config{
			MaxInstances:      cfg.Pool.MaxInstances,
			QueueDepth:        cfg.Pool.QueueDepth,
			DefaultMaxRetries: cfg.Retry.MaxRetries,
		},
		scraper.NewResolver(browserAdapter, legacyAdapter, httpEngine),
		scraper.NewRegistry(logger),
		scraper.NewRetryPolicy(cfg.BackoffBase(), cfg.BackoffMax()),
		hub,
		store,
		system.New(),
		logger,
	)

	logger.Info("services initialized",
		zap.Int("max_instances", cfg.Pool.MaxInstances),
		zap.Bool("browser", cfg.Browser.Enabled),
	)
	return app, nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Pool returns the worker pool.
func (a *App) Pool() *pool.Pool {
	return a.pool
}

// Registry returns the Prometheus registry holding all service collectors.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Close gracefully shuts down all services. The hub is drained first so
// buffered progress events reach their sinks before the process exits.
func (a *App) Close(ctx context.Context) {
	a.logger.Info("shutting down services")
	a.shutdown(ctx)
	// Sync may fail on some platforms when stderr is a terminal; nothing
	// useful can be done about it here.
	_ = a.logger.Sync()
}

func (a *App) shutdown(ctx context.Context) {
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.browser != nil {
		if err := a.browser.Close(ctx); err != nil {
			a.logger.Warn("browser engine close failed", zap.Error(err))
		}
	}
	if a.legacy != nil {
		if err := a.legacy.Close(ctx); err != nil {
			a.logger.Warn("legacy engine close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
}
