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

	"github.com/printbound/api/internal/carriers"
	"github.com/printbound/api/internal/handlers"
	"github.com/printbound/api/internal/notifications"
	"github.com/printbound/api/internal/payments"
	"github.com/printbound/api/internal/platform/auth"
	"github.com/printbound/api/internal/platform/config"
	pfirestore "github.com/printbound/api/internal/platform/firestore"
	"github.com/printbound/api/internal/platform/observability"
	firestoreRepo "github.com/printbound/api/internal/repositories/firestore"
	"github.com/printbound/api/internal/services"
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

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	counterRepo, err := firestoreRepo.NewCounterRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise counter repository", zap.Error(err))
	}
	healthRepo, err := firestoreRepo.NewHealthRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise health repository", zap.Error(err))
	}

	if host := strings.TrimSpace(cfg.PubSub.EmulatorHost); host != "" {
		if err := os.Setenv("PUBSUB_EMULATOR_HOST", host); err != nil {
			logger.Fatal("failed to point pubsub client at emulator", zap.Error(err))
		}
	}
	pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()

	notificationTopic := pubsubClient.Topic(cfg.PubSub.Topic)
	defer notificationTopic.Stop()
	dispatcher, err := notifications.NewPubSubDispatcher(notificationTopic)
	if err != nil {
		logger.Fatal("failed to initialise notification dispatcher", zap.Error(err))
	}

	var paymentGateway services.PaymentGateway
	if strings.TrimSpace(cfg.Stripe.APIKey) != "" {
		paymentsLogger := logger.Named("payments")
		gateway, err := payments.NewStripeGateway(payments.StripeGatewayConfig{
			APIKey: cfg.Stripe.APIKey,
			Logger: zapEventLogger(paymentsLogger),
		})
		if err != nil {
			logger.Fatal("failed to initialise stripe gateway", zap.Error(err))
		}
		paymentGateway = gateway
	} else {
		logger.Warn("stripe api key not configured; cancellations will skip gateway calls")
	}

	var trackingProvider services.CarrierTrackingProvider
	if len(cfg.Carriers.BaseURLs) > 0 {
		client, err := carriers.NewClient(carriers.ClientConfig{Carriers: cfg.Carriers})
		if err != nil {
			logger.Fatal("failed to initialise carrier tracking client", zap.Error(err))
		}
		trackingProvider = client
	} else {
		logger.Warn("no carrier endpoints configured; tracking refresh is disabled")
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:        orderRepo,
		Counters:      counterRepo,
		Payments:      paymentGateway,
		Notifications: dispatcher,
		Tracking:      trackingProvider,
		Logger:        zapEventLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	systemService, err := services.NewSystemService(services.SystemServiceDeps{
		Health: healthRepo,
	})
	if err != nil {
		logger.Fatal("failed to initialise system service", zap.Error(err))
	}

	orderHandlers := handlers.NewOrderHandlers(orderService)
	healthHandlers := handlers.NewHealthHandlers(systemService)

	webhookOpts := []handlers.WebhookOption{}
	if secret := strings.TrimSpace(cfg.Carriers.WebhookSecret); secret != "" {
		verifier, err := auth.NewWebhookVerifier(secret)
		if err != nil {
			logger.Fatal("failed to initialise carrier webhook verifier", zap.Error(err))
		}
		webhookOpts = append(webhookOpts, handlers.WithCarrierVerifier(verifier.Require()))
	} else {
		logger.Warn("carrier webhook secret not configured; carrier pushes are unsigned")
	}
	webhookHandlers := handlers.NewWebhookHandlers(orderService, cfg.Stripe.WebhookSecret, webhookOpts...)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(cfg.Firestore.ProjectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithOrderMiddlewares(auth.GatewayIdentity()),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
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
		serverLogger.Info("printbound api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// zapEventLogger adapts a zap logger to the event/fields callback the services
// and gateways accept.
func zapEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug(event, zFields...)
	}
}
