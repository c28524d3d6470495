package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/finitefield/quote-configurator/internal/catalog"
	"github.com/finitefield/quote-configurator/internal/handlers"
	"github.com/finitefield/quote-configurator/internal/platform/config"
	pfirestore "github.com/finitefield/quote-configurator/internal/platform/firestore"
	"github.com/finitefield/quote-configurator/internal/platform/idempotency"
	"github.com/finitefield/quote-configurator/internal/platform/jobs"
	"github.com/finitefield/quote-configurator/internal/platform/observability"
	"github.com/finitefield/quote-configurator/internal/repositories"
	firestoreRepo "github.com/finitefield/quote-configurator/internal/repositories/firestore"
	"github.com/finitefield/quote-configurator/internal/repositories/memory"
	"github.com/finitefield/quote-configurator/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load(ctx)
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logger.Fatal("failed to load catalog", zap.Error(err))
	}
	engine, err := services.NewPricingEngine(cat)
	if err != nil {
		logger.Fatal("failed to initialise pricing engine", zap.Error(err))
	}
	formatter, err := services.NewEstimateFormatter(cat.Currency, language.English)
	if err != nil {
		logger.Fatal("failed to initialise estimate formatter", zap.Error(err))
	}
	logger.Info("catalog loaded",
		zap.String("currency", cat.Currency),
		zap.Int("services", len(cat.Services)),
		zap.Int("plans", len(cat.Plans)),
	)

	var (
		checks       []repositories.DependencyCheck
		sessionRepo  repositories.SessionRepository
		receipts     idempotency.Store
		firestoreRef *pfirestore.Provider
	)

	switch cfg.Storage.Backend {
	case config.StorageFirestore:
		firestoreRef = pfirestore.NewProvider(cfg.Firestore)
		if _, err := firestoreRef.Client(ctx); err != nil {
			logger.Fatal("failed to initialise firestore client", zap.Error(err))
		}
		repo, err := firestoreRepo.NewSessionRepository(firestoreRef, cfg.Firestore.SessionsCollection)
		if err != nil {
			logger.Fatal("failed to initialise session repository", zap.Error(err))
		}
		sessionRepo = repo
		receipts = idempotency.NewFirestoreStore(firestoreRef, idempotency.WithCollection(cfg.Firestore.ReceiptsCollection))
		provider := firestoreRef
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check:   provider.Ping,
		})
	default:
		sessionRepo = memory.NewSessionRepository()
		receipts = idempotency.NewMemoryStore()
	}
	defer func() {
		if firestoreRef == nil {
			return
		}
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreRef.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	var publisher services.SubmissionPublisher
	switch cfg.Submission.Publisher {
	case config.PublisherPubSub:
		client, err := newPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		topic := client.Topic(cfg.PubSub.Topic)
		defer func() {
			topic.Stop()
			if err := client.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		pub, err := jobs.NewPubSubSubmissionPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise submission publisher", zap.Error(err))
		}
		publisher = pub
		checks = append(checks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				ok, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("topic %s does not exist", cfg.PubSub.Topic)
				}
				return nil
			},
		})
	default:
		publisher = jobs.NewLogSubmissionPublisher(logger.Named("submissions"))
	}

	healthRepo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		logger.Fatal("failed to initialise health checks", zap.Error(err))
	}

	serviceMetrics := observability.NewServiceMetrics(nil, logger)
	serviceLogger := serviceMetrics.Wrap(observability.ServiceLogger(logger.Named("services")))
	store, err := services.NewSessionStore(engine, sessionRepo, time.Now)
	if err != nil {
		logger.Fatal("failed to initialise session store", zap.Error(err))
	}
	sessionService, err := services.NewSessionService(services.SessionServiceDeps{
		Store:  store,
		Logger: serviceLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise session service", zap.Error(err))
	}
	submissionService, err := services.NewSubmissionService(services.SubmissionServiceDeps{
		Store:            store,
		Publisher:        publisher,
		Receipts:         receipts,
		ReceiptTTL:       cfg.Idempotency.TTL,
		Formatter:        formatter,
		ResetAfterSubmit: cfg.Submission.ResetAfterSubmit,
		Clock:            time.Now,
		Logger:           serviceLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise submission service", zap.Error(err))
	}

	cleanupCtx, cleanupCancel := context.WithCancel(ctx)
	var cleanupWG sync.WaitGroup
	janitor := idempotency.NewJanitor(receipts, cfg.Idempotency.CleanupInterval, cfg.Idempotency.CleanupBatchSize, logger)
	cleanupWG.Add(1)
	go func() {
		defer cleanupWG.Done()
		janitor.Run(cleanupCtx)
	}()

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfoFromEnv(startedAt)),
		handlers.WithHealthRepository(healthRepo),
	)
	sessionHandlers := handlers.NewSessionHandlers(sessionService, submissionService,
		handlers.WithEstimateFormatter(formatter),
		handlers.WithIdempotencyHeader(cfg.Idempotency.Header),
	)
	catalogHandlers := handlers.NewCatalogHandlers(cat)

	router := handlers.NewRouter(
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithMiddlewares(
			middleware.RequestSize(cfg.Server.MaxBodyBytes),
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(cfg.Trace.ProjectID),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithCatalogRoutes(catalogHandlers.Routes),
		handlers.WithSessionRoutes(sessionHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(
		zap.String("addr", server.Addr),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("publisher", cfg.Submission.Publisher),
	)
	go func() {
		serverLogger.Info("quote configurator api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*pubsub.Client, error) {
	var opts []option.ClientOption
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		opts = append(opts,
			option.WithoutAuthentication(),
			option.WithEndpoint(host),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	return pubsub.NewClient(ctx, cfg.ProjectID, opts...)
}

func buildInfoFromEnv(started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(os.Getenv("QUOTE_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("QUOTE_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(os.Getenv("QUOTE_ENVIRONMENT"))
	if environment == "" {
		environment = "local"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}
