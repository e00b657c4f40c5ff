package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/rutavity/payments/internal"
	"github.com/rutavity/payments/internal/bootstrap"
	"github.com/rutavity/payments/internal/cookie"
	"github.com/rutavity/payments/internal/crypto"
	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/email"
	"github.com/rutavity/payments/internal/events"
	"github.com/rutavity/payments/internal/handler/payments"
	"github.com/rutavity/payments/internal/memory"
	"github.com/rutavity/payments/internal/middleware"
	"github.com/rutavity/payments/internal/payment"
	"github.com/rutavity/payments/internal/poller"
	"github.com/rutavity/payments/internal/postgres"
	"github.com/rutavity/payments/internal/pse"
	"github.com/rutavity/payments/internal/router"
	"github.com/rutavity/payments/internal/routes"
	"github.com/rutavity/payments/internal/telemetry"
)

const metricsNamespace = "rutavity_payments"

// store is what the service and the session middleware need from either
// backend, plus provider seeding.
type store interface {
	payment.Store
	middleware.SessionResolver
	bootstrap.ProviderSaver
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Initialize Sentry
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	telemetry.InitPaymentMetrics(metricsNamespace)

	// Storage
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := bootstrap.EnsureProviders(ctx, st, providerSeeds(cfg.Providers), logger); err != nil {
		return fmt.Errorf("provider bootstrap failed: %w", err)
	}

	// Processor
	var gateway payment.Gateway
	if cfg.PSE.Mode == "mock" {
		logger.Warn("Using in-process mock processor", "hint", "Set PSE_MODE=http to talk to the real processor")
		gateway = pse.NewMockClient()
	} else {
		gateway = pse.NewClient(pse.Config{
			BaseURL:        cfg.PSE.BaseURL,
			SandboxURL:     cfg.PSE.SandboxURL,
			ConnectTimeout: cfg.PSE.ConnectTimeout,
			Timeout:        cfg.PSE.Timeout,
			MaxAttempts:    cfg.PSE.MaxAttempts,
			InitialBackoff: cfg.PSE.InitialBackoff,
		}, logger)
	}

	opts := payment.Options{BaseURL: cfg.BaseURL}

	// Transition events (optional)
	if cfg.NATS.URL != "" {
		logger.Info("Connecting to NATS...", "url", cfg.NATS.URL)
		nc, drain, err := events.Connect(cfg.NATS.URL, logger)
		if err != nil {
			return err
		}
		defer drain()
		opts.Publisher = events.NewPublisher(nc, logger)
		logger.Info("NATS connection established")
	}

	// Cancellation emails (optional)
	if cfg.Email.Enabled() {
		sender := email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     int(cfg.Email.Port),
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		}, logger)
		notifier, err := email.NewService(sender, cfg.BaseURL, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize email service: %w", err)
		}
		opts.Notifier = notifier
		logger.Info("Email notifications enabled", "host", cfg.Email.Host)
	}

	svc, err := payment.NewService(st, gateway, opts, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize payment service: %w", err)
	}

	// ==========================================================================
	// Initialize middleware
	// ==========================================================================

	metrics := middleware.NewMetrics(metricsNamespace, nil)
	checkoutLimiter := middleware.NewRateLimiter(middleware.CheckoutRateLimiterConfig())
	defer checkoutLimiter.Stop()
	inboundLimiter := middleware.NewRateLimiter(middleware.InboundRateLimiterConfig())
	defer inboundLimiter.Stop()

	r := router.New(
		middleware.RequestID,
		telemetry.SentryMiddleware(),
		middleware.WithPartner(st, time.Now),
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
		router.Recovery(logger),
		metrics.Middleware,
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
	)

	routes.RegisterOpsRoutes(r, routes.OpsDeps{
		Metrics: metrics.Handler(),
		Health: func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		},
	})
	routes.RegisterPaymentRoutes(r, routes.PaymentDeps{
		Handler: payments.New(svc,
			cookie.NewConfig(cfg.CookieDomain, cfg.Env == "prod"),
			payments.Config{ConfirmationPath: cfg.ConfirmationPath},
		),
		Providers:       []domain.ProviderCode{domain.ProviderPSE, domain.ProviderRutavity},
		POSToken:        cfg.POSAPIToken,
		AdminToken:      cfg.AdminAPIToken,
		CheckoutLimiter: checkoutLimiter,
		InboundLimiter:  inboundLimiter,
	})
	logger.Debug("Routes registered", "routes", r.Routes())

	// ==========================================================================
	// Start server and poller
	// ==========================================================================

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting payment server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info("Shutting down payment server")
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Poller.Enabled {
		p := poller.New(svc, poller.Config{
			Interval:    cfg.Poller.Interval,
			Threshold:   cfg.Poller.Threshold,
			Staleness:   cfg.Poller.Staleness,
			BatchSize:   cfg.Poller.BatchSize,
			Concurrency: cfg.Poller.Concurrency,
		}, time.Now, logger)
		g.Go(func() error {
			if err := p.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

// openStore connects to PostgreSQL and migrates it, or falls back to the
// in-memory store when no database is configured (development only).
func openStore(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (store, func(), error) {
	if cfg.DatabaseUrl == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store", "hint", "Data is lost on restart")
		return memory.New(), func() {}, nil
	}

	key, err := crypto.DecodeKeyBase64(cfg.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
	}
	sealer, err := crypto.NewAESEncryptor(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	logger.Info("Connecting to database...")
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	if err := internal.RunMigrations(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migration failed: %w", err)
	}

	return postgres.NewStore(pool, sealer, logger), pool.Close, nil
}

func providerSeeds(in []internal.ProviderConfig) []bootstrap.ProviderConfig {
	out := make([]bootstrap.ProviderConfig, 0, len(in))
	for _, p := range in {
		methods := make([]domain.MethodCode, 0, len(p.Methods))
		for _, m := range p.Methods {
			methods = append(methods, domain.MethodCode(m))
		}
		out = append(out, bootstrap.ProviderConfig{
			Code:          domain.ProviderCode(p.Code),
			Name:          p.Name,
			State:         domain.ProviderState(p.State),
			CustomerID:    p.CustomerID,
			PublicKey:     p.PublicKey,
			PrivateKey:    p.PrivateKey,
			SigningSecret: p.SigningSecret,
			Methods:       methods,
		})
	}
	return out
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
