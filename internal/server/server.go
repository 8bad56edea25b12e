// Package server builds and runs the monitor daemon: it wires the store,
// the search façade, the monitor, and the HTTP API from configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/prudentia/pje-monitor/internal/api"
	"github.com/prudentia/pje-monitor/internal/clock/system"
	"github.com/prudentia/pje-monitor/internal/config"
	collyfetcher "github.com/prudentia/pje-monitor/internal/fetcher/colly"
	"github.com/prudentia/pje-monitor/internal/hash/md5"
	"github.com/prudentia/pje-monitor/internal/hash/sha256"
	idgen "github.com/prudentia/pje-monitor/internal/id/uuid"
	"github.com/prudentia/pje-monitor/internal/logging"
	"github.com/prudentia/pje-monitor/internal/monitor"
	lognotify "github.com/prudentia/pje-monitor/internal/notify/log"
	memnotify "github.com/prudentia/pje-monitor/internal/notify/memory"
	pubsubnotify "github.com/prudentia/pje-monitor/internal/notify/pubsub"
	"github.com/prudentia/pje-monitor/internal/pje"
	"github.com/prudentia/pje-monitor/internal/policy/ratelimit"
	"github.com/prudentia/pje-monitor/internal/policy/simple"
	"github.com/prudentia/pje-monitor/internal/progress"
	progresssinks "github.com/prudentia/pje-monitor/internal/progress/sinks"
	"github.com/prudentia/pje-monitor/internal/scheduler/timer"
	gcsstorage "github.com/prudentia/pje-monitor/internal/storage/gcs"
	localstorage "github.com/prudentia/pje-monitor/internal/storage/local"
	memorystorage "github.com/prudentia/pje-monitor/internal/storage/memory"
	pgstorage "github.com/prudentia/pje-monitor/internal/storage/postgres"
	"github.com/prudentia/pje-monitor/internal/telemetry"
)

const serviceName = "pje-monitor"

// Version is stamped at build time via -ldflags.
var Version = "dev"

// App contains the application's dependencies.
type App struct {
	cfg             *config.Config
	logger          *zap.Logger
	apiServer       *api.Server
	monitor         *monitor.Monitor
	scheduler       *timer.Scheduler
	progressHub     *progress.Hub
	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher
	gcsClient       *storage.Client
	pgStore         *pgstorage.PublicationStore
	tracerShutdown  func(context.Context) error
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	type sanitizedConfig struct {
		ServerPort     int  `json:"server_port"`
		MonitorEnabled bool `json:"monitor_enabled"`
	}
	safeCfg := sanitizedConfig{
		ServerPort:     cfg.Server.Port,
		MonitorEnabled: cfg.Monitor.Enabled,
	}
	logger.Info("Creating application", zap.Any("config", safeCfg))
	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started", zap.String("version", Version))
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.Monitor.Enabled {
		if err := a.monitor.Start(ctx); err != nil {
			return fmt.Errorf("monitor start failed: %w", err)
		}
	} else {
		a.logger.Info("monitor disabled, serving API only")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	if a.scheduler != nil {
		a.scheduler.Close()
	}
	a.closeInfrastructure(ctx)
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if err := a.logger.Sync(); err != nil {
		a.logger.Warn("logger sync failed", zap.Error(err))
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}

	tp, err := telemetry.InitTelemetry(ctx, serviceName, Version)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	app.tracerShutdown = tp.Shutdown

	app.logger.Info("building application dependencies")

	store, err := setupStore(ctx, app)
	if err != nil {
		return nil, err
	}

	snapshots, err := setupSnapshots(ctx, app)
	if err != nil {
		return nil, err
	}

	notifier, err := setupNotifier(ctx, app)
	if err != nil {
		return nil, err
	}

	emitter, err := setupProgress(ctx, app)
	if err != nil {
		return nil, err
	}

	searcher, err := setupSearcher(app, snapshots)
	if err != nil {
		return nil, err
	}

	app.scheduler = timer.New(app.logger.Named("scheduler"))
	app.monitor = monitor.New(
		searcher,
		store,
		notifier,
		app.scheduler,
		system.New(),
		emitter,
		monitor.Config{
			DefaultInterval: app.cfg.Monitor.Interval(),
			MinDelay:        app.cfg.Monitor.MinDelay(),
			OverlapDays:     app.cfg.Monitor.OverlapDays,
			RetroactiveDays: app.cfg.Monitor.RetroactiveDays,
			RetryBackoff:    app.cfg.Monitor.RetryBackoff(),
			MaxRetries:      app.cfg.Monitor.MaxRetries,
		},
		app.logger.Named("monitor"),
	)

	app.apiServer = api.NewServer(
		store,
		searcher,
		app.monitor,
		idgen.New(),
		*cfg,
		logger.Named("api"),
	)

	return app, nil
}

func setupStore(ctx context.Context, app *App) (pje.PublicationStore, error) {
	if app.cfg.Database.DSN == "" {
		app.logger.Info("using in-memory publication store")
		return memorystorage.NewPublicationStore(idgen.New()), nil
	}
	pgStore, err := pgstorage.NewPublicationStore(ctx, pgstorage.Config{
		DSN:      app.cfg.Database.DSN,
		MaxConns: app.cfg.Database.MaxConns,
		MinConns: app.cfg.Database.MinConns,
	}, idgen.New())
	if err != nil {
		return nil, fmt.Errorf("publication store init failed: %w", err)
	}
	app.pgStore = pgStore
	app.logger.Info("using Postgres publication store")
	return pgStore, nil
}

// setupSnapshots picks the raw-page archive backend. A nil store disables
// archiving entirely.
func setupSnapshots(ctx context.Context, app *App) (pje.BlobStore, error) {
	switch app.cfg.Storage.Backend {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.gcsClient = client
		blobStore, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket: app.cfg.Storage.GCS.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Info("using GCS snapshot backend", zap.String("bucket", app.cfg.Storage.GCS.Bucket))
		return blobStore, nil
	case "local":
		blobStore, err := localstorage.New(localstorage.Config{
			BaseDir: app.cfg.Storage.Local.BaseDir,
		})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Info("using local snapshot backend", zap.String("path", app.cfg.Storage.Local.BaseDir))
		return blobStore, nil
	case "memory":
		app.logger.Info("using in-memory snapshot backend")
		return memorystorage.NewBlobStore(), nil
	default:
		app.logger.Info("snapshot archiving disabled")
		return nil, nil
	}
}

func setupNotifier(ctx context.Context, app *App) (pje.Notifier, error) {
	switch app.cfg.Notifier.Backend {
	case "pubsub":
		client, err := pubsub.NewClient(ctx, app.cfg.Notifier.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client init failed: %w", err)
		}
		app.pubsubClient = client
		app.pubsubPublisher = client.Publisher(app.cfg.Notifier.PubSub.Topic)
		app.logger.Info("using Pub/Sub notifier",
			zap.String("project", app.cfg.Notifier.PubSub.ProjectID),
			zap.String("topic", app.cfg.Notifier.PubSub.Topic),
		)
		return pubsubnotify.New(app.pubsubPublisher), nil
	case "memory":
		app.logger.Info("using in-memory notifier")
		return memnotify.New(), nil
	default:
		app.logger.Info("using log notifier")
		return lognotify.New(app.logger.Named("notify")), nil
	}
}

func setupProgress(ctx context.Context, app *App) (progress.Emitter, error) {
	promSink, err := progresssinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("prometheus sink init failed: %w", err)
	}
	sinkList := []progress.Sink{
		progresssinks.NewLogSink(app.logger.Named("progress_log")),
		promSink,
	}
	app.progressHub = progress.NewHub(progress.Config{
		BaseContext: ctx,
		Logger:      app.logger.Named("progress_hub"),
	}, sinkList...)
	app.logger.Info("progress hub initialized", zap.Int("sinks", len(sinkList)))
	return app.progressHub, nil
}

func setupSearcher(app *App, snapshots pje.BlobStore) (*pje.Searcher, error) {
	var policy pje.Policy
	if interval := app.cfg.Fetch.MinInterval(); interval > 0 {
		policy = ratelimit.New(ratelimit.Config{
			MinInterval: interval,
			Burst:       1,
		})
		app.logger.Info("rate limiter enabled", zap.Duration("min_interval", interval))
	} else {
		policy = simple.New()
		app.logger.Info("rate limiter disabled, using simple policy")
	}

	fetcher, err := collyfetcher.New(collyfetcher.Config{
		UserAgent: app.cfg.Fetch.UserAgent,
		Timeout:   app.cfg.Fetch.Timeout(),
		ProxyURL:  app.cfg.Fetch.ProxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("fetcher init failed: %w", err)
	}

	retry := pje.NewExponentialRetryPolicy(
		app.cfg.Fetch.MaxAttempts,
		app.cfg.Fetch.BackoffInitial(),
		app.cfg.Fetch.BackoffMax(),
	)

	client := pje.NewClient(
		pje.ClientConfig{
			BaseURL:   app.cfg.Fetch.BaseURL,
			UserAgent: app.cfg.Fetch.UserAgent,
		},
		fetcher,
		policy,
		retry,
		snapshots,
		sha256.New(),
		app.logger.Named("fetch"),
	)
	parser := pje.NewParser(app.logger.Named("parser"), system.New(), md5.New())
	searcherCfg := pje.SearcherConfig{
		Workers:  app.cfg.Search.Workers,
		PageSize: app.cfg.Search.PageSize,
	}
	return pje.NewSearcher(searcherCfg, client, parser, system.New(), app.logger.Named("search")), nil
}
