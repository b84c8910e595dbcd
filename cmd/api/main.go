package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pack-store/internal/catalog"
	"pack-store/internal/config"
	"pack-store/internal/database"
	"pack-store/internal/handler"
	"pack-store/internal/metrics"
	"pack-store/internal/payment"
	"pack-store/internal/ratelimit"
	"pack-store/internal/repository"
	"pack-store/internal/router"
	"pack-store/internal/service"
	"pack-store/internal/shipping"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadEnvFile(".env"); err != nil {
		return err
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting pack-store API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Database.RunMigrations {
		if err := database.Migrate(cfg.Database.ConnectionString(), logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	// Initialize repositories
	orderRepo := repository.NewOrderRepository(pool, logger)
	snapshotRepo := repository.NewSnapshotRepository(pool, logger)
	quoteRepo := repository.NewQuoteRepository(pool, logger)

	cat, err := loadCatalog(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize catalogue: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	processor := payment.NewStripeProcessor(payment.StripeConfig{
		SecretKey:       cfg.Stripe.SecretKey,
		SuccessURL:      cfg.Stripe.SuccessURL,
		CancelURL:       cfg.Stripe.CancelURL,
		APIBaseURL:      cfg.Stripe.APIBaseURL,
		Timeout:         cfg.Stripe.Timeout,
		BreakerFailures: uint32(cfg.Stripe.BreakerFailures),
		BreakerCooldown: cfg.Stripe.BreakerCooldown,
	}, logger)
	verifier := payment.NewStripeWebhookVerifier(cfg.Stripe.WebhookSecret)
	if cfg.Stripe.WebhookSecret == "" {
		logger.Warn().Msg("STRIPE_WEBHOOK_SECRET is not set, every webhook will be rejected")
	}

	quoteLimiter, closeLimiter, err := newQuoteLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	ship := shipping.DefaultCatalog()

	// Initialize services
	productService := service.NewProductService(cat, logger)
	checkoutService := service.NewCheckoutService(cat, ship, processor, snapshotRepo, m, cfg.Stripe.Timeout, logger)
	orderService := service.NewOrderService(orderRepo, snapshotRepo, processor, m, logger)
	quoteService := service.NewQuoteService(quoteRepo, cat, logger)

	// Initialize HTTP handlers and router
	mux := router.New(router.Handlers{
		Products: handler.NewProductHandler(productService, logger),
		Checkout: handler.NewCheckoutHandler(checkoutService, ship, logger),
		Orders:   handler.NewOrderHandler(orderService, logger),
		Webhooks: handler.NewWebhookHandler(verifier, orderService, logger),
		Quotes:   handler.NewQuoteHandler(quoteService, logger),
	}, router.Options{
		APIKey:         cfg.Auth.APIKey,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		QuoteLimiter:   quoteLimiter,
		QuoteLimit:     cfg.RateLimit.Limit,
		QuoteWindow:    cfg.RateLimit.Window,
		Metrics:        m,
		Gatherer:       reg,
	}, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second + cfg.Stripe.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// loadCatalog reads the configured shards, preferring S3 when it is enabled.
func loadCatalog(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (catalog.Catalog, error) {
	fileLoader := catalog.NewFileLoader(logger)
	loader := fileLoader

	if cfg.S3.Enabled {
		s3Loader, err := catalog.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
		} else {
			loader = catalog.NewFallbackLoader(s3Loader, fileLoader, cfg.S3.Prefix, true, logger)
		}
	} else {
		logger.Info().Msg("using local file system for catalogue shards (S3 disabled)")
	}

	return catalog.New(ctx, &catalog.Config{Paths: cfg.Catalog.Paths}, loader, logger)
}

// newQuoteLimiter returns the store backing the quote form limit, or nil when disabled.
func newQuoteLimiter(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (ratelimit.Store, func(), error) {
	noop := func() {}
	if !cfg.RateLimit.Enabled {
		logger.Info().Msg("quote rate limiting disabled")
		return nil, noop, nil
	}

	if cfg.RateLimit.Backend != "redis" {
		return ratelimit.NewMemoryStore(), noop, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, noop, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}

	logger.Info().Str("addr", cfg.Redis.Addr).Msg("using redis for quote rate limiting")
	return ratelimit.NewRedisStore(client, "packstore:ratelimit:"), func() {
		if err := client.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close redis client")
		}
	}, nil
}
