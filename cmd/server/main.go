package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kevin07696/slot-billing/internal/adapters/mailgun"
	natsadapter "github.com/kevin07696/slot-billing/internal/adapters/nats"
	"github.com/kevin07696/slot-billing/internal/adapters/postgres"
	redisadapter "github.com/kevin07696/slot-billing/internal/adapters/redis"
	"github.com/kevin07696/slot-billing/internal/adapters/secrets"
	"github.com/kevin07696/slot-billing/internal/adapters/stripe"
	"github.com/kevin07696/slot-billing/internal/auth"
	"github.com/kevin07696/slot-billing/internal/config"
	"github.com/kevin07696/slot-billing/internal/domain/ports"
	billingHandler "github.com/kevin07696/slot-billing/internal/handlers/billing"
	"github.com/kevin07696/slot-billing/internal/middleware"
	billingService "github.com/kevin07696/slot-billing/internal/services/billing"
	"github.com/kevin07696/slot-billing/internal/services/notification"
	"github.com/kevin07696/slot-billing/internal/services/pricing"
	pkgmiddleware "github.com/kevin07696/slot-billing/pkg/middleware"
	"github.com/kevin07696/slot-billing/pkg/observability"
	"github.com/kevin07696/slot-billing/pkg/resilience"
	"github.com/kevin07696/slot-billing/pkg/shutdown"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger()
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting slot billing service",
		zap.String("version", "0.1.0"),
	)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(logger, 30*time.Second)

	// Secrets first: everything below needs credentials
	secretManager, closeSecrets, err := secrets.New(ctx, secrets.Config{
		Provider:     cfg.Secrets.Provider,
		FileRoot:     cfg.Secrets.FileRoot,
		GCPProjectID: cfg.Secrets.GCPProjectID,
		AWS: secrets.AWSConfig{
			Region:   cfg.Secrets.AWSRegion,
			Profile:  cfg.Secrets.AWSProfile,
			Endpoint: cfg.Secrets.AWSEndpoint,
		},
		Vault: secrets.VaultConfig{
			Address:    cfg.Secrets.VaultAddress,
			Namespace:  cfg.Secrets.VaultNamespace,
			AuthMethod: vaultAuthMethod(cfg.Secrets),
			Token:      cfg.Secrets.VaultToken,
			RoleID:     cfg.Secrets.VaultRoleID,
			SecretID:   cfg.Secrets.VaultSecretID,
			MountPath:  cfg.Secrets.VaultMount,
			KVVersion:  cfg.Secrets.VaultKVVersion,
		},
		CacheTTL: cfg.Secrets.CacheTTL,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize secret manager", zap.Error(err))
	}
	shutdownMgr.Register("secrets", func(context.Context) error { return closeSecrets() })

	if err := cfg.ResolveSecrets(ctx, secretManager); err != nil {
		logger.Fatal("Failed to resolve secrets", zap.Error(err))
	}
	logger.Info("Secrets resolved", zap.String("provider", cfg.Secrets.Provider))

	// Initialize database connection pool
	dbPool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	shutdownMgr.RegisterNoErr("database", dbPool.Close)

	healthChecker := observability.NewHealthChecker(dbPool)
	timeouts := resilience.DefaultTimeoutConfig()

	db := postgres.NewDBExecutor(dbPool)
	pricingRepo := postgres.NewPricingRepository(db)
	recordRepo := postgres.NewPaymentRecordRepository(db)
	companyRepo := postgres.NewCompanyRepository(db)

	gateway, err := stripe.NewGateway(stripe.Config{
		SecretKey:         cfg.Stripe.SecretKey,
		WebhookSecret:     cfg.Stripe.WebhookSecret,
		BaseURL:           cfg.Stripe.BaseURL,
		Timeout:           cfg.Stripe.Timeout,
		MaxNetworkRetries: cfg.Stripe.MaxNetworkRetries,
		Timeouts:          timeouts,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Stripe gateway", zap.Error(err))
	}

	// Optional infrastructure: Redis for webhook dedupe and the sweep lock
	var (
		dedupe ports.EventDeduplicator
		locker ports.Locker
	)
	rdb, err := redisadapter.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if rdb != nil {
		dedupe = redisadapter.NewEventDeduplicator(rdb, cfg.Redis.DedupeTTL)
		locker = redisadapter.NewLocker(rdb, logger)
		healthChecker.AddOptionalCheck("redis", redisadapter.HealthCheck(rdb))
		shutdownMgr.RegisterCloser("redis", rdb)
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
	} else {
		logger.Warn("REDIS_ADDR not set: webhook dedupe fast path and sweep lock disabled")
	}

	notifiers, nc := initNotifiers(cfg, logger)
	if nc != nil {
		healthChecker.AddOptionalCheck("nats", natsadapter.HealthCheck(nc))
		shutdownMgr.Register("nats", func(context.Context) error { return nc.Drain() })
	}

	dispatcher := notification.NewDispatcher(recordRepo, companyRepo, notifiers, notification.Config{
		Timeouts:    timeouts,
		Backoff:     resilience.NotificationBackoff(),
		MaxAttempts: cfg.Billing.NotificationMaxAttempts,
	}, logger)
	shutdownMgr.Register("notifications", dispatcher.Shutdown)

	sweeper := notification.NewSweeper(dispatcher, recordRepo, locker, notification.SweeperConfig{
		Schedule:  cfg.Billing.SweepSchedule,
		BatchSize: cfg.Billing.SweepBatchSize,
		LockTTL:   cfg.Billing.SweepLockTTL,
		MinAge:    cfg.Billing.SweepMinAge,
	}, logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("Failed to start notification sweep", zap.Error(err))
	}
	shutdownMgr.Register("notification-sweep", sweeper.Stop)

	// Services
	priceSvc := pricing.NewService(pricingRepo, logger)
	intentSvc := billingService.NewIntentService(priceSvc, recordRepo, companyRepo, gateway, logger)
	reconSvc := billingService.NewReconciliationService(
		db,
		recordRepo,
		companyRepo,
		gateway,
		dispatcher,
		dedupe,
		billingService.ReconciliationConfig{ReceiptPrefix: cfg.Billing.ReceiptPrefix},
		logger,
	)
	querySvc := billingService.NewQueryService(recordRepo, companyRepo, logger)

	verifier, err := initTokenVerifier(cfg.Auth)
	if err != nil {
		logger.Fatal("Failed to initialize token verifier", zap.Error(err))
	}

	// HTTP API
	mux := http.NewServeMux()
	billingHandler.NewHandler(intentSvc, reconSvc, priceSvc, querySvc, logger).
		RegisterRoutes(mux, middleware.NewAuthenticator(verifier, logger).Middleware)

	rateLimiter := pkgmiddleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, middleware.ClientIP)
	shutdownMgr.RegisterNoErr("rate-limiter", rateLimiter.Shutdown)

	handler := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.Logging(logger),
		middleware.Recovery(logger),
		middleware.NewSecurityHeaders(!cfg.Server.IsProduction()).Middleware,
		rateLimiter.Middleware,
		middleware.Timeout(timeouts),
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      timeouts.HTTPHandler + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	metricsServer := observability.StartMetricsServer(strconv.Itoa(cfg.Server.MetricsPort), healthChecker, logger)
	shutdownMgr.RegisterHTTPServer("metrics-server", metricsServer)

	go func() {
		logger.Info("HTTP server listening",
			zap.String("address", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()
	// Registered last so it stops first: no new reconciliations start
	// while notifications and the database are draining.
	shutdownMgr.RegisterHTTPServer("http-server", httpServer)

	if err := shutdownMgr.WaitForShutdown(ctx); err != nil {
		logger.Error("Shutdown completed with errors", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Slot billing service stopped")
}

// initLogger builds a JSON logger in production and a console logger elsewhere
func initLogger() *zap.Logger {
	var zapCfg zap.Config
	if os.Getenv("ENVIRONMENT") == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if level, err := zapcore.ParseLevel(lvl); err == nil {
			zapCfg.Level = zap.NewAtomicLevelAt(level)
		}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	return logger
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established",
		zap.String("database", cfg.Database.Database),
		zap.Int32("max_conns", cfg.Database.MaxConns),
	)
	return pool, nil
}

// initNotifiers builds the receipt channels that are configured. The
// returned NATS connection is nil when push is disabled.
func initNotifiers(cfg *config.Config, logger *zap.Logger) ([]ports.Notifier, *nats.Conn) {
	var notifiers []ports.Notifier

	if cfg.Mailgun.Domain != "" {
		email, err := mailgun.NewEmailNotifier(mailgun.Config{
			Domain:  cfg.Mailgun.Domain,
			APIKey:  cfg.Mailgun.APIKey,
			From:    cfg.Mailgun.From,
			APIBase: cfg.Mailgun.APIBase,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Mailgun notifier", zap.Error(err))
		}
		notifiers = append(notifiers, email)
	}

	nc, err := natsadapter.Connect(cfg.NATS.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	if nc != nil {
		notifiers = append(notifiers, natsadapter.NewPushNotifier(nc, cfg.NATS.Subject, logger))
	}

	if len(notifiers) == 0 {
		logger.Warn("No notification channels configured: receipts will not be sent")
	}
	return notifiers, nc
}

func initTokenVerifier(cfg config.AuthConfig) (*auth.TokenVerifier, error) {
	vcfg := auth.VerifierConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		Leeway:   30 * time.Second,
	}
	if cfg.JWTPublicKeyFile != "" {
		return auth.NewTokenVerifierFromFile(cfg.JWTPublicKeyFile, vcfg)
	}
	return auth.NewTokenVerifier(vcfg)
}

func vaultAuthMethod(cfg config.SecretsConfig) string {
	if cfg.VaultRoleID != "" {
		return "approle"
	}
	return "token"
}
