package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/higgsflow/catalog-sync/internal/handlers"
	"github.com/higgsflow/catalog-sync/internal/platform/config"
	pfirestore "github.com/higgsflow/catalog-sync/internal/platform/firestore"
	"github.com/higgsflow/catalog-sync/internal/platform/imagegen"
	"github.com/higgsflow/catalog-sync/internal/platform/jobs"
	"github.com/higgsflow/catalog-sync/internal/platform/observability"
	"github.com/higgsflow/catalog-sync/internal/platform/secrets"
	"github.com/higgsflow/catalog-sync/internal/repositories"
	firestoreRepo "github.com/higgsflow/catalog-sync/internal/repositories/firestore"
	"github.com/higgsflow/catalog-sync/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("syncd")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := secrets.NewFetcher(ctx,
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithDefaultProject(strings.TrimSpace(os.Getenv("SYNCD_FIRESTORE_PROJECT_ID"))),
	)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
	)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	watchLogger := logger.Named("watch")
	productRepo, err := firestoreRepo.NewProductRepository(firestoreProvider,
		firestoreRepo.WithWatchErrorHandler(func(err error) {
			watchLogger.Error("product watch error", zap.Error(err))
		}),
	)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}
	catalogRepo, err := firestoreRepo.NewCatalogRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise catalog repository", zap.Error(err))
	}
	syncLogRepo, err := firestoreRepo.NewSyncLogRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise sync log repository", zap.Error(err))
	}

	var (
		pubsubClient *pubsub.Client
		pubsubTopic  *pubsub.Topic
		publisher    services.SyncEventPublisher
	)
	if cfg.Events.ProjectID != "" && cfg.Events.Topic != "" {
		pubsubClient, err = pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		pubsubTopic = pubsubClient.Topic(cfg.Events.Topic)
		publisher, err = jobs.NewPubSubSyncEventPublisher(pubsubTopic)
		if err != nil {
			logger.Fatal("failed to initialise sync event publisher", zap.Error(err))
		}
	} else {
		logger.Info("sync event publishing disabled; no pubsub topic configured")
	}
	defer func() {
		if pubsubTopic != nil {
			pubsubTopic.Stop()
		}
		if pubsubClient != nil {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}
	}()

	metrics, err := observability.NewSyncMetrics()
	if err != nil {
		logger.Fatal("failed to initialise sync metrics", zap.Error(err))
	}

	transformer, err := services.NewProductTransformer(services.TransformerDeps{
		Pricing: cfg.Sync.PricingPolicy(),
		Catalog: cfg.Sync.CatalogPolicy(),
	})
	if err != nil {
		logger.Fatal("failed to initialise transformer", zap.Error(err))
	}
	detector := services.NewChangeDetector()

	generator := imagegen.NewClient(cfg.Images.Endpoint, cfg.Images.AuthToken, cfg.Images.Timeout)
	imageQueue, err := services.NewImageJobQueue(services.ImagePipelineDeps{
		Catalog:    catalogRepo,
		Generator:  generator,
		MaxRetries: cfg.Images.MaxRetries,
		Logger:     observability.EventLogger(logger.Named("images")),
	})
	if err != nil {
		logger.Fatal("failed to initialise image queue", zap.Error(err))
	}

	syncQueue, err := services.NewSyncQueue(services.SyncQueueDeps{
		Products:    productRepo,
		Catalog:     catalogRepo,
		SyncLog:     syncLogRepo,
		Transformer: transformer,
		Detector:    detector,
		Images:      imageQueue,
		Events:      publisher,
		Metrics:     metrics,
		BatchSize:   cfg.Sync.BatchSize,
		MaxRetries:  cfg.Sync.MaxRetries,
		Logger:      observability.EventLogger(logger.Named("queue")),
	})
	if err != nil {
		logger.Fatal("failed to initialise sync queue", zap.Error(err))
	}

	orchestrator, err := services.NewSyncOrchestrator(services.SyncOrchestratorDeps{
		Products:      productRepo,
		Catalog:       catalogRepo,
		Queue:         syncQueue,
		Images:        imageQueue,
		Transformer:   transformer,
		Detector:      detector,
		SyncInterval:  cfg.Sync.SyncInterval,
		ImageInterval: cfg.Sync.ImageInterval,
		BatchSize:     cfg.Sync.BatchSize,
		BatchPause:    cfg.Sync.BatchPause,
		DrainTimeout:  cfg.Sync.DrainTimeout,
		Logger:        observability.EventLogger(logger.Named("orchestrator")),
	})
	if err != nil {
		logger.Fatal("failed to initialise sync orchestrator", zap.Error(err))
	}

	reader, err := services.NewCatalogReader(services.CatalogReaderDeps{
		Catalog:  catalogRepo,
		CacheTTL: cfg.Reader.CacheTTL,
		Logger:   observability.EventLogger(logger.Named("reader")),
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog reader", zap.Error(err))
	}

	healthChecks := []repositories.DependencyCheck{
		{
			Name: "firestore",
			Check: func(ctx context.Context) error {
				_, err := firestoreClient.Collections(ctx).Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		},
	}
	if pubsubTopic != nil {
		topic := pubsubTopic
		healthChecks = append(healthChecks, repositories.DependencyCheck{
			Name: "pubsub",
			Check: func(ctx context.Context) error {
				ok, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("topic %s does not exist", topic.ID())
				}
				return nil
			},
		})
	}
	healthRepo, err := repositories.NewDependencyHealthRepository(healthChecks)
	if err != nil {
		logger.Fatal("failed to initialise health repository", zap.Error(err))
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthRepository(healthRepo),
		handlers.WithSyncStats(orchestrator.Stats),
	)
	storefrontHandlers := handlers.NewStorefrontHandlers(reader,
		handlers.WithStorefrontRateLimit(cfg.Reader.RequestsPerMin, cfg.Reader.RateLimitWindow),
	)
	syncAdminHandlers := handlers.NewSyncAdminHandlers(orchestrator)

	router := handlers.NewRouter(
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCatalogRoutes(storefrontHandlers.Register),
		handlers.WithInternalRoutes(syncAdminHandlers.Register),
	)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if err := orchestrator.Start(ctx); err != nil {
		logger.Fatal("failed to start sync orchestrator", zap.Error(err))
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("catalog-sync daemon listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining sync pipeline")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Sync.DrainTimeout+5*time.Second)
	if err := orchestrator.Stop(stopCtx); err != nil {
		logger.Error("orchestrator drain failed", zap.Error(err))
	}
	stopCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
