package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aretw0/pipeprep"
	"github.com/aretw0/pipeprep/internal/config"
	"github.com/aretw0/pipeprep/internal/logging"
	"github.com/aretw0/pipeprep/pkg/adapters/console"
	"github.com/aretw0/pipeprep/pkg/adapters/file"
	"github.com/aretw0/pipeprep/pkg/adapters/loam"
	"github.com/aretw0/pipeprep/pkg/adapters/memory"
	"github.com/aretw0/pipeprep/pkg/adapters/postgres"
	"github.com/aretw0/pipeprep/pkg/adapters/redis"
	"github.com/aretw0/pipeprep/pkg/adapters/s3"
	"github.com/aretw0/pipeprep/pkg/adapters/temporal"
	"github.com/aretw0/pipeprep/pkg/domain"
	"github.com/aretw0/pipeprep/pkg/observability"
	"github.com/aretw0/pipeprep/pkg/persistence/middleware"
	"github.com/aretw0/pipeprep/pkg/ports"
)

// App is a fully wired pipeprep service with the resources it owns.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Service *pipeprep.Service
	Graph   *loam.Loader
	Store   ports.SessionStore
	Metrics *prometheus.Registry

	closers []func()
}

// Close releases connections opened by Build, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewLogger builds the application logger from the log settings.
func NewLogger(cfg config.Log) *slog.Logger {
	level := logging.ParseLevel(cfg.Level)
	if cfg.Format == "json" {
		return logging.NewJSON(os.Stderr, level)
	}
	return logging.New(level)
}

// Build wires the service described by cfg. Extra options are applied last.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, extra ...pipeprep.Option) (*App, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	app := &App{Config: cfg, Logger: logger}

	graph, err := loam.Open(cfg.GraphDir)
	if err != nil {
		return nil, fmt.Errorf("open graph %s: %w", cfg.GraphDir, err)
	}
	app.Graph = graph

	opts := []pipeprep.Option{
		pipeprep.WithLogger(logger),
		pipeprep.WithPreviewLimit(cfg.Preview.Limit),
		pipeprep.WithMachineCacheSize(cfg.Sessions.CacheSize),
		pipeprep.WithLockTTL(cfg.Sessions.LockTTL),
	}

	storeOpts, err := app.buildStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	opts = append(opts, storeOpts...)

	dispatchOpts, err := app.buildConsole(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	opts = append(opts, dispatchOpts...)

	if cfg.S3.Endpoint != "" {
		uploader, err := s3.New(s3.Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			app.Close()
			return nil, err
		}
		opts = append(opts, pipeprep.WithUploader(uploader))
	}

	hooks := []domain.Hooks{observability.LoggingHooks(logger)}
	if cfg.Metrics.Enabled {
		app.Metrics = prometheus.NewRegistry()
		app.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		hooks = append(hooks, observability.NewMetrics(app.Metrics).Hooks())
	}
	opts = append(opts, pipeprep.WithHooks(observability.Combine(hooks...)))

	svc, err := pipeprep.New(cfg.PipelineID, graph, append(opts, extra...)...)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Service = svc
	return app, nil
}

func (a *App) buildStore(ctx context.Context, cfg *config.Config) ([]pipeprep.Option, error) {
	var (
		store ports.SessionStore
		opts  []pipeprep.Option
	)
	switch cfg.Sessions.Backend {
	case config.BackendFile:
		store = file.New(cfg.Sessions.Dir)

	case config.BackendRedis:
		var storeOpts []redis.Option
		if cfg.Sessions.TTL > 0 {
			storeOpts = append(storeOpts, redis.WithTTL(cfg.Sessions.TTL))
		}
		prefix := redis.DefaultPrefix
		if cfg.Redis.Prefix != "" {
			prefix = cfg.Redis.Prefix
			storeOpts = append(storeOpts, redis.WithPrefix(prefix))
		}
		rs := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, storeOpts...)
		a.closers = append(a.closers, func() { rs.Close() })
		if err := rs.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		store = rs
		opts = append(opts, pipeprep.WithLocker(redis.NewLocker(rs.Client(), prefix+"lock:")))

	case config.BackendPostgres:
		ps, err := postgres.Open(ctx, cfg.Postgres.DSN, postgres.WithTable(cfg.Postgres.Table))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, ps.Close)
		store = ps

	case config.BackendMemory, "":
		store = memory.NewStore()

	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Sessions.Backend)
	}

	mws, err := storeMiddlewares(cfg.Sessions)
	if err != nil {
		return nil, err
	}
	a.Store = middleware.Chain(store, mws...)
	return append(opts, pipeprep.WithStore(a.Store)), nil
}

// storeMiddlewares masks inputs before sealing them, so redaction sees
// plain values.
func storeMiddlewares(cfg config.Sessions) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.Redact)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	active, fallback, err := cfg.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return mws, nil
}

// buildConsole picks the param fetcher and the dispatcher. The console API
// serves both when configured; otherwise params come from the graph files.
// Temporal takes over dispatching when a frontend is configured.
func (a *App) buildConsole(cfg *config.Config) ([]pipeprep.Option, error) {
	var opts []pipeprep.Option
	var client *console.Client

	if cfg.Console.BaseURL != "" {
		clientOpts := []console.Option{
			console.WithToken(cfg.Console.Token),
			console.WithLogger(a.Logger),
		}
		if cfg.Console.Timeout > 0 {
			clientOpts = append(clientOpts, console.WithHTTPClient(&http.Client{Timeout: cfg.Console.Timeout}))
		}
		client = console.NewClient(cfg.Console.BaseURL, clientOpts...)
		opts = append(opts, pipeprep.WithParamFetcher(
			console.NewCachedFetcher(client, cfg.Console.CacheSize, cfg.Console.CacheTTL),
		))
	} else {
		opts = append(opts, pipeprep.WithParamFetcher(a.Graph))
	}

	switch {
	case cfg.Temporal.HostPort != "":
		tc, err := temporal.Dial(cfg.Temporal.HostPort, cfg.Temporal.Namespace)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, tc.Close)
		dispatcherOpts := []temporal.Option{
			temporal.WithPipelineID(cfg.PipelineID),
			temporal.WithLogger(a.Logger),
		}
		if cfg.Temporal.Workflow != "" {
			dispatcherOpts = append(dispatcherOpts, temporal.WithWorkflow(cfg.Temporal.Workflow))
		}
		opts = append(opts, pipeprep.WithDispatcher(temporal.New(tc, cfg.Temporal.TaskQueue, dispatcherOpts...)))
	case client != nil:
		if cfg.PipelineID == "" {
			return nil, errors.New("pipeline_id is required to dispatch runs through the console")
		}
		opts = append(opts, pipeprep.WithDispatcher(client.Dispatcher(cfg.PipelineID)))
	default:
		a.Logger.Warn("No run dispatcher configured; process will be refused")
	}
	return opts, nil
}

// OpenStore opens only the configured session store, for maintenance commands.
func OpenStore(ctx context.Context, cfg *config.Config) (ports.SessionStore, func(), error) {
	app := &App{Config: cfg, Logger: logging.NewNop()}
	if _, err := app.buildStore(ctx, cfg); err != nil {
		app.Close()
		return nil, nil, err
	}
	return app.Store, app.Close, nil
}
