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

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/storelift/api/internal/handlers"
	"github.com/storelift/api/internal/platform/config"
	"github.com/storelift/api/internal/platform/events"
	pfirestore "github.com/storelift/api/internal/platform/firestore"
	"github.com/storelift/api/internal/platform/observability"
	"github.com/storelift/api/internal/repositories"
	firestoreRepo "github.com/storelift/api/internal/repositories/firestore"
	"github.com/storelift/api/internal/services"
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

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(cfg, startedAt)

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

	var publisher events.Publisher = events.NopPublisher{}
	var eventTopic *pubsub.Topic
	if cfg.Features.EnableEvents && strings.TrimSpace(cfg.Events.Topic) != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		eventTopic = pubsubClient.Topic(cfg.Events.Topic)
		defer eventTopic.Stop()
		publisher, err = events.NewPubSubPublisher(eventTopic)
		if err != nil {
			logger.Fatal("failed to initialise event publisher", zap.Error(err))
		}
	}

	cartRepo, err := firestoreRepo.NewCartRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise cart repository", zap.Error(err))
	}
	zoneRepo, err := firestoreRepo.NewCargoZoneRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise cargo zone repository", zap.Error(err))
	}
	variantRepo, err := firestoreRepo.NewVariantRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise variant repository", zap.Error(err))
	}
	discountRepo, err := firestoreRepo.NewDiscountRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise discount repository", zap.Error(err))
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Repository:      cartRepo,
		Clock:           time.Now,
		DefaultCurrency: cfg.Pricing.DefaultCurrency,
		Logger:          serviceLogger(logger.Named("cart")),
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}
	cartHandlers := handlers.NewCartHandlers(cartService)

	shippingService, err := services.NewShippingService(services.ShippingServiceDeps{
		Zones:     zoneRepo,
		Carts:     cartRepo,
		Publisher: publisher,
		Clock:     time.Now,
		Strategy:  services.ZoneSelection(cfg.Shipping.ZoneSelection),
		Logger:    serviceLogger(logger.Named("shipping")),
	})
	if err != nil {
		logger.Fatal("failed to initialise shipping service", zap.Error(err))
	}
	shippingHandlers := handlers.NewShippingHandlers(shippingService,
		handlers.WithQuoteRateLimit(60, time.Minute),
	)

	variantService, err := services.NewVariantService(services.VariantServiceDeps{
		Repository:      variantRepo,
		Publisher:       publisher,
		Clock:           time.Now,
		DefaultCurrency: cfg.Pricing.DefaultCurrency,
		DefaultLocale:   cfg.Pricing.DefaultLocale,
		Logger:          serviceLogger(logger.Named("variants")),
	})
	if err != nil {
		logger.Fatal("failed to initialise variant service", zap.Error(err))
	}
	variantHandlers := handlers.NewVariantHandlers(variantService)

	var discountHandlers *handlers.DiscountHandlers
	if cfg.Features.EnableDiscounts {
		discountService, err := services.NewDiscountService(services.DiscountServiceDeps{
			Repository:      discountRepo,
			Publisher:       publisher,
			Clock:           time.Now,
			DefaultCurrency: cfg.Pricing.DefaultCurrency,
			Logger:          serviceLogger(logger.Named("discounts")),
		})
		if err != nil {
			logger.Fatal("failed to initialise discount service", zap.Error(err))
		}
		discountHandlers = handlers.NewDiscountHandlers(discountService)
	}

	systemService, err := newSystemService(firestoreClient, eventTopic, buildInfo)
	if err != nil {
		logger.Fatal("failed to initialise system service", zap.Error(err))
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

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithShippingRoutes(shippingHandlers.Routes),
		handlers.WithProductRoutes(variantHandlers.Routes),
	}
	if discountHandlers != nil {
		opts = append(opts, handlers.WithDiscountRoutes(discountHandlers.Routes))
	}

	router := handlers.NewRouter(opts...)
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
		serverLogger.Info("storelift api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func serviceLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug("service log", zFields...)
	}
}

func buildInfoFromEnv(cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("API_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Server.Environment)
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
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				exists, err := t.Exists(ctx)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("topic %s does not exist", t.ID())
				}
				return nil
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
