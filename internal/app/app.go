package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"invoicer/internal/api"
	"invoicer/internal/auth"
	"invoicer/internal/config"
	"invoicer/internal/db"
	httpserver "invoicer/internal/http"
	"invoicer/internal/metrics"
	"invoicer/internal/workspace"
)

const sweepInterval = time.Minute

// Application wires together config, the optional database, the upstream
// API client, the workspace registry and the HTTP server.
type Application struct {
	cfg      config.Config
	log      *zap.Logger
	dbPool   *db.Pool
	registry *workspace.Registry
	srv      *httpserver.Server
}

func NewApplication(ctx context.Context, cfg config.Config, log *zap.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	client := api.NewClient(api.Options{
		InvoiceURL: cfg.InvoiceAPIURL,
		AuthURL:    cfg.AuthAPIURL,
		Timeout:    cfg.APITimeout,
		Observer:   m.ObserveUpstream,
		Logger:     log.Named("api"),
	})

	var (
		pool      *db.Pool
		persister workspace.Persister
	)
	if cfg.DatabaseURL != "" {
		var err error
		pool, err = db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := pool.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		persister = workspace.NewPostgresPersister(pool, cfg.StateTTL)
		log.Info("persisting workspace state in postgres")
	} else {
		codec := auth.NewStateCodec(cfg.StateSecret, cfg.StateTTL)
		persister = workspace.NewCookiePersister(codec, cfg.StateCookieName, cfg.SecureCookies())
	}

	registry := workspace.NewRegistry(workspace.Deps{
		Profiler: client,
		Resolver: client,
		Logger:   log.Named("workspace"),
	}, persister, cfg.WorkspaceIdleTTL)
	if err := reg.Register(metrics.WorkspacesGauge(registry.Len)); err != nil {
		return nil, fmt.Errorf("register workspace gauge: %w", err)
	}

	srv := httpserver.NewServer(cfg, httpserver.Deps{
		API:      client,
		Registry: registry,
		Pool:     pool,
		Metrics:  m,
		Gatherer: reg,
		Logger:   log.Named("http"),
	})

	return &Application{
		cfg:      cfg,
		log:      log,
		dbPool:   pool,
		registry: registry,
		srv:      srv,
	}, nil
}

// Run serves until ctx ends or the server fails.
func (a *Application) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.srv.Run(ctx)
	})
	g.Go(func() error {
		a.registry.RunSweeper(ctx, sweepInterval)
		return nil
	})
	return g.Wait()
}

func (a *Application) Shutdown() {
	if a.dbPool != nil {
		a.dbPool.Close()
	}
	_ = a.log.Sync()
}
