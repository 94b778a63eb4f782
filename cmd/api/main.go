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

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	domain "github.com/dido-commerce/api/internal/domain"
	"github.com/dido-commerce/api/internal/handlers"
	"github.com/dido-commerce/api/internal/platform/config"
	pfirestore "github.com/dido-commerce/api/internal/platform/firestore"
	"github.com/dido-commerce/api/internal/platform/idempotency"
	"github.com/dido-commerce/api/internal/platform/jobs"
	"github.com/dido-commerce/api/internal/platform/observability"
	"github.com/dido-commerce/api/internal/repositories"
	firestoreRepo "github.com/dido-commerce/api/internal/repositories/firestore"
	"github.com/dido-commerce/api/internal/services"
)

const (
	idempotencyCleanupInterval  = 10 * time.Minute
	idempotencyCleanupBatchSize = 100
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
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	for _, warning := range cfg.Gateway.Warnings() {
		logger.Warn("gateway configuration", zap.String("warning", warning))
	}

	buildInfo := buildInfoFromEnv(startedAt)

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

	pubsubClient, err := newPubSubClient(ctx, cfg.PubSub)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()

	orderEventsTopic := pubsubClient.Topic(cfg.PubSub.OrderEventsTopic)
	defer orderEventsTopic.Stop()

	eventPublisher, err := jobs.NewPubSubOrderEventPublisher(orderEventsTopic)
	if err != nil {
		logger.Fatal("failed to initialise order event publisher", zap.Error(err))
	}

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	cleanupTicker := time.NewTicker(idempotencyCleanupInterval)
	cleanupWG.Add(1)
	go func() {
		defer cleanupWG.Done()
		cleanupLogger := logger.Named("idempotency")
		for {
			select {
			case <-cleanupTicker.C:
				runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
				removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), idempotencyCleanupBatchSize)
				cancel()
				if err != nil {
					cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
					continue
				}
				if removed > 0 {
					cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	cartRepo, err := firestoreRepo.NewCartRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise cart repository", zap.Error(err))
	}

	gatewayRules := services.GatewayRules{
		Enabled:           cfg.Gateway.Enabled,
		Ready:             cfg.Gateway.Ready(),
		EnableForVirtual:  cfg.Gateway.EnableForVirtual,
		EnableForMethods:  toRateIDs(cfg.Gateway.EnableForMethods),
		ExclusiveCheckout: cfg.Gateway.ExclusiveCheckout,
	}

	eligibilityService, err := services.NewEligibilityService(services.EligibilityServiceDeps{
		Rules:  gatewayRules,
		Logger: newEventLogger(logger.Named("eligibility")),
	})
	if err != nil {
		logger.Fatal("failed to initialise eligibility service", zap.Error(err))
	}

	availabilityService, err := services.NewAvailabilityService(services.AvailabilityServiceDeps{
		Orders:      orderRepo,
		Eligibility: eligibilityService,
		Rules:       gatewayRules,
		Presentation: services.OptionPresentation{
			Title:        cfg.Gateway.Title,
			Description:  cfg.Gateway.Description,
			Instructions: cfg.Gateway.Instructions,
		},
		Logger: newEventLogger(logger.Named("availability")),
	})
	if err != nil {
		logger.Fatal("failed to initialise availability service", zap.Error(err))
	}

	composer, err := services.NewMessageComposer(services.MessageComposerDeps{
		Rules: services.MessageRules{
			SiteName:          cfg.SiteName,
			SendOrderMetaData: cfg.Gateway.SendOrderMetaData,
			IgnoredMetaFields: cfg.Gateway.IgnoredMetaFields,
			SendPaymentLink:   cfg.Gateway.SendPaymentLink,
			SendViewOrderLink: cfg.Gateway.SendViewOrderLink,
			ShipToBillingOnly: cfg.Gateway.ShipToBillingOnly,
		},
	})
	if err != nil {
		logger.Fatal("failed to initialise message composer", zap.Error(err))
	}

	messageService, err := services.NewMessageService(services.MessageServiceDeps{
		Orders:   orderRepo,
		Composer: composer,
		Rules: services.HandoffRules{
			WhatsAppNumber: cfg.Gateway.WhatsAppNumber,
			Endpoints: services.DeepLinkEndpoints{
				Web:    cfg.Gateway.WebEndpoint,
				Mobile: cfg.Gateway.MobileEndpoint,
			},
			ThankYouMode: cfg.Gateway.ThankYouMode,
			Instructions: cfg.Gateway.Instructions,
			Ready:        cfg.Gateway.Ready(),
		},
		Logger: newEventLogger(logger.Named("message")),
	})
	if err != nil {
		logger.Fatal("failed to initialise message service", zap.Error(err))
	}

	paymentService, err := services.NewPaymentService(services.PaymentServiceDeps{
		Orders: orderRepo,
		Carts:  cartRepo,
		Events: eventPublisher,
		Clock:  time.Now,
		Logger: newEventLogger(logger.Named("payment")),
	})
	if err != nil {
		logger.Fatal("failed to initialise payment service", zap.Error(err))
	}

	systemService, err := newSystemService(firestoreClient, orderEventsTopic, buildInfo)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	projectID := strings.TrimSpace(cfg.Firestore.ProjectID)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(systemService),
	)

	checkoutHandlers := handlers.NewCheckoutHandlers(availabilityService)
	orderHandlers := handlers.NewOrderHandlers(paymentService, messageService,
		handlers.WithOrderRateLimit(60, time.Minute),
		handlers.WithOrderRedirectMode(cfg.Gateway.CheckoutRedirect),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithOrderMiddlewares(idempotencyMiddleware),
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

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("dido-commerce api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupTicker.Stop()
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(started time.Time) services.BuildInfo {
	version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("API_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(os.Getenv("API_ENVIRONMENT"))
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func newPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*pubsub.Client, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, errors.New("pubsub: project id is required")
	}

	var opts []option.ClientOption
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		if os.Getenv("PUBSUB_EMULATOR_HOST") == "" {
			_ = os.Setenv("PUBSUB_EMULATOR_HOST", host)
		}
		opts = append(opts,
			option.WithoutAuthentication(),
			option.WithEndpoint(host),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}

	return pubsub.NewClient(ctx, projectID, opts...)
}

func newSystemService(client *firestore.Client, topic *pubsub.Topic, build services.BuildInfo) (services.SystemService, error) {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if client != nil {
		c := client
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := c.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if topic != nil {
		t := topic
		checks = append(checks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				_, err := t.Exists(ctx)
				return err
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Clock:            time.Now,
		Build:            build,
	})
}

func newEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug("gateway log", zFields...)
	}
}

func toRateIDs(values []string) []domain.RateID {
	rates := make([]domain.RateID, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			rates = append(rates, domain.RateID(trimmed))
		}
	}
	return rates
}
