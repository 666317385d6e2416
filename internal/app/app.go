// Package app assembles the service's long-lived components and runs them
// until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gcsclient "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ignacioe7/reviewcrawler/internal/analyzer"
	"github.com/ignacioe7/reviewcrawler/internal/api"
	archivegcs "github.com/ignacioe7/reviewcrawler/internal/archive/gcs"
	archivelocal "github.com/ignacioe7/reviewcrawler/internal/archive/local"
	archivememory "github.com/ignacioe7/reviewcrawler/internal/archive/memory"
	"github.com/ignacioe7/reviewcrawler/internal/clock/system"
	"github.com/ignacioe7/reviewcrawler/internal/config"
	"github.com/ignacioe7/reviewcrawler/internal/coordinator"
	"github.com/ignacioe7/reviewcrawler/internal/crawler"
	"github.com/ignacioe7/reviewcrawler/internal/discovery"
	"github.com/ignacioe7/reviewcrawler/internal/engine"
	collyfetcher "github.com/ignacioe7/reviewcrawler/internal/fetcher/colly"
	"github.com/ignacioe7/reviewcrawler/internal/id/uuid"
	"github.com/ignacioe7/reviewcrawler/internal/logging"
	"github.com/ignacioe7/reviewcrawler/internal/parser/tripadvisor"
	"github.com/ignacioe7/reviewcrawler/internal/progress"
	"github.com/ignacioe7/reviewcrawler/internal/progress/sinks"
	pubmemory "github.com/ignacioe7/reviewcrawler/internal/publisher/memory"
	pubgcp "github.com/ignacioe7/reviewcrawler/internal/publisher/pubsub"
	"github.com/ignacioe7/reviewcrawler/internal/queue"
	"github.com/ignacioe7/reviewcrawler/internal/ratepolicy"
	"github.com/ignacioe7/reviewcrawler/internal/resolver"
	"github.com/ignacioe7/reviewcrawler/internal/runner"
	"github.com/ignacioe7/reviewcrawler/internal/store/jsonfile"
	runsmemory "github.com/ignacioe7/reviewcrawler/internal/store/memory"
	"github.com/ignacioe7/reviewcrawler/internal/store/postgres"
)

// App holds every long-lived component of the service.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	runs      *runsmemory.RunStore
	queue     *queue.Queue
	hub       *progress.Hub
	runner    *runner.Runner
	apiServer *api.Server

	pgStore      *postgres.Store
	pubsubClient *pubsub.Client
	gcsClient    *gcsclient.Client
}

// Build wires the full dependency graph from configuration.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	a := &App{cfg: cfg, logger: logger}

	a.runs = runsmemory.NewRunStore()
	a.queue = queue.New(cfg.Server.QueueDepth)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return nil, fmt.Errorf("init metrics sink: %w", err)
	}
	a.hub = progress.NewHub(progress.Config{Logger: logger},
		sinks.NewLogSink(logger),
		promSink,
		sinks.NewStoreSink(a.runs, logger),
	)

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:         cfg.HTTP.UserAgent,
		AcceptLanguage:    cfg.HTTP.AcceptLanguage,
		Timeout:           cfg.HTTPTimeout(),
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
	})
	pageParser := tripadvisor.New(logger)
	policy := ratepolicy.New(cfg.PacingBase(), cfg.BackoffCap(), cfg.Pacing.MilestoneEvery)
	metricsResolver := resolver.New(fetcher, pageParser, resolver.Config{
		Language:             cfg.Crawl.Language,
		DiscrepancyTolerance: cfg.Crawl.DiscrepancyTolerance,
		CacheSize:            cfg.Crawl.MetricsCacheSize,
	}, logger)

	archive, err := a.buildArchive(ctx)
	if err != nil {
		return nil, err
	}

	eng := engine.New(engine.Deps{
		Fetcher:  fetcher,
		Parser:   pageParser,
		Policy:   policy,
		Resolver: metricsResolver,
		Archive:  archive,
		Clock:    system.New(),
		Emitter:  a.hub,
		Logger:   logger,
	}, engine.Config{
		Language:     cfg.Crawl.Language,
		MaxRetries:   cfg.Crawl.MaxRetries,
		MaxPages:     cfg.Crawl.MaxPages,
		DefaultCount: cfg.Crawl.DefaultCount,
	})
	coord := coordinator.New(eng, cfg.Crawl.Concurrency, a.hub, logger)
	lister := discovery.New(fetcher, tripadvisor.NewListingParser(), policy, logger)

	durable, err := a.buildStore(ctx)
	if err != nil {
		return nil, err
	}
	pub, err := a.buildPublisher(ctx)
	if err != nil {
		return nil, err
	}

	var sentiment crawler.Analyzer
	if cfg.Analyzer.Enabled {
		sentiment = analyzer.New()
	}
	exportDir := ""
	if cfg.Export.Enabled {
		exportDir = cfg.Export.Dir
	}

	a.runner = runner.New(runner.Config{
		Topic:     cfg.PubSub.TopicName,
		ExportDir: exportDir,
	}, runner.Deps{
		Queue:       a.queue,
		Runs:        a.runs,
		Coordinator: coord,
		Lister:      lister,
		Analyzer:    sentiment,
		Store:       durable,
		Publisher:   pub,
		Emitter:     a.hub,
		Logger:      logger,
	})

	a.apiServer = api.NewServer(api.Config{
		AuthEnabled: cfg.Auth.Enabled,
		APIKey:      cfg.Auth.APIKey,
	}, a.runs, a.queue, uuid.New(),
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), logger)

	return a, nil
}

func (a *App) buildArchive(ctx context.Context) (crawler.BlobStore, error) {
	switch a.cfg.Archive.Provider {
	case "", "none":
		return nil, nil
	case "memory":
		return archivememory.New(), nil
	case "local":
		return archivelocal.New(a.cfg.Archive.LocalDir)
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.gcsClient = client
		return archivegcs.New(client, a.cfg.Archive.GCSBucket, a.cfg.Archive.Prefix)
	default:
		return nil, fmt.Errorf("unknown archive provider %q", a.cfg.Archive.Provider)
	}
}

// buildStore returns the durable result store. The in-memory run registry
// always records results; "memory" means no second copy.
func (a *App) buildStore(ctx context.Context) (crawler.ResultStore, error) {
	switch a.cfg.Storage.Provider {
	case "jsonfile":
		return jsonfile.New(a.cfg.Storage.Path, a.logger)
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:   a.cfg.Storage.DSN,
			Table: a.cfg.Storage.Table,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		a.pgStore = store
		return store, nil
	case "", "memory":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", a.cfg.Storage.Provider)
	}
}

func (a *App) buildPublisher(ctx context.Context) (crawler.Publisher, error) {
	if a.cfg.PubSub.ProjectID == "" {
		return pubmemory.New(), nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub client: %w", err)
	}
	a.pubsubClient = client
	return pubgcp.New(client)
}

// Runner exposes the run executor for the one-shot CLI mode.
func (a *App) Runner() *runner.Runner {
	return a.runner
}

// Runs exposes the run registry.
func (a *App) Runs() *runsmemory.RunStore {
	return a.runs
}

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Run serves until the context is cancelled or a termination signal
// arrives, then shuts down in dependency order.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go a.runner.Run(ctx)

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

// Close releases every held resource. Safe after a failed Build.
func (a *App) Close(ctx context.Context) error {
	if a.queue != nil {
		a.queue.Close()
	}
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
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
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
	return nil
}
