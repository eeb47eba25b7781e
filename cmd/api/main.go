package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"online-shop/internal/config"
	"online-shop/internal/database"
	"online-shop/internal/events"
	"online-shop/internal/handler"
	"online-shop/internal/idempotency"
	"online-shop/internal/metrics"
	"online-shop/internal/middleware"
	"online-shop/internal/model"
	"online-shop/internal/payment"
	"online-shop/internal/repository"
	"online-shop/internal/router"
	"online-shop/internal/service"
	"online-shop/internal/settings"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting online shop API server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	m := metrics.New()

	productRepo := repository.NewProductRepository(pool, logger)
	basketRepo := repository.NewBasketRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	userRepo := repository.NewUserRepository(pool, logger)
	settingsRepo := repository.NewSettingsRepository(pool, logger)

	defaults, err := deliveryDefaults(ctx, cfg, logger)
	if err != nil {
		return err
	}

	gateway, closeGateway, err := newGateway(cfg.Payment, logger)
	if err != nil {
		return err
	}
	defer closeGateway()

	var outboxRepo repository.OutboxRepository
	var publisher *events.KafkaPublisher
	if cfg.Kafka.Enabled() {
		outboxRepo = repository.NewOutboxRepository(pool, logger)
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close kafka publisher")
			}
		}()
	} else {
		logger.Info().Msg("kafka brokers not configured, order events disabled")
	}

	var idemStore idempotency.Store
	if cfg.Redis.URL != "" {
		store, client, err := idempotency.NewRedisStore(ctx, cfg.Redis.URL, cfg.Redis.IdempotencyTTL, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize idempotency store: %w", err)
		}
		defer client.Close()
		idemStore = store
	} else {
		logger.Info().Msg("redis not configured, Idempotency-Key header ignored")
	}

	settingsService := service.NewDeliverySettingsService(settingsRepo, defaults, logger)
	productService := service.NewProductService(productRepo, logger)
	basketService := service.NewBasketService(basketRepo, productRepo, logger)
	orderService := service.NewOrderService(service.OrderDeps{
		Orders:         orderRepo,
		Products:       productRepo,
		Baskets:        basketRepo,
		Users:          userRepo,
		Outbox:         outboxRepo,
		Settings:       settingsService,
		Gateway:        gateway,
		Currency:       cfg.Payment.Currency,
		PaymentTimeout: cfg.Payment.Timeout,
		Metrics:        m,
	}, logger)

	// Create the settings row before serving traffic.
	if _, err := settingsService.Get(ctx); err != nil {
		return fmt.Errorf("failed to load delivery settings: %w", err)
	}

	sessionStore := sessions.NewCookieStore([]byte(cfg.Session.Secret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.Session.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	mux := router.New(router.Handlers{
		Health:   handler.NewHealthHandler(pool, logger),
		Product:  handler.NewProductHandler(productService, logger),
		Basket:   handler.NewBasketHandler(basketService, logger),
		Order:    handler.NewOrderHandler(orderService, idemStore, logger),
		Settings: handler.NewSettingsHandler(settingsService, logger),
	}, router.Options{
		APIKey:       cfg.Auth.APIKey,
		Sessions:     sessionStore,
		SessionName:  cfg.Session.Name,
		ConfirmLimit: middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger),
		Metrics:      m,
	}, logger)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Payment.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("address", cfg.Server.Address()).Msg("HTTP server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if publisher != nil {
		relay := events.NewRelay(outboxRepo, publisher, events.RelayConfig{
			Interval:  cfg.Kafka.RelayInterval,
			BatchSize: cfg.Kafka.BatchSize,
			Topic:     cfg.Kafka.Topic,
		}, m, logger)
		g.Go(func() error { return relay.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
		return nil
	})

	return g.Wait()
}

// deliveryDefaults resolves the tiers used to seed the settings row: the
// environment values, overlaid by the YAML document when one is configured.
func deliveryDefaults(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (model.DeliverySettings, error) {
	base := model.DeliverySettings{
		ExpressCost: cfg.Delivery.ExpressCost,
		RegularCost: cfg.Delivery.RegularCost,
		FreeFrom:    cfg.Delivery.FreeFrom,
	}
	if cfg.Delivery.SettingsFile == "" {
		return base, nil
	}

	fileLoader := settings.NewFileLoader(logger)
	var s3Loader settings.Loader
	if cfg.S3.Enabled {
		loader, err := settings.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
		} else {
			s3Loader = loader
		}
	}

	loader := settings.NewFallbackLoader(s3Loader, fileLoader, cfg.S3.Prefix, cfg.S3.Enabled, logger)
	defaults, err := loader.Load(ctx, cfg.Delivery.SettingsFile, base)
	if err != nil {
		return base, fmt.Errorf("failed to load delivery settings document: %w", err)
	}
	return defaults, nil
}

// newGateway builds the configured payment gateway and its cleanup function.
func newGateway(cfg config.PaymentConfig, logger zerolog.Logger) (payment.Gateway, func(), error) {
	switch cfg.Provider {
	case config.PaymentProviderStripe:
		logger.Info().Msg("using stripe checkout for payments")
		return payment.NewStripeGateway(cfg.StripeSecretKey, cfg.ReturnURL, cfg.CancelURL, logger), func() {}, nil
	case config.PaymentProviderHTTP:
		gw := payment.NewHTTPGateway(cfg.URL, cfg.Timeout, logger)
		return gw, gw.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}
