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

	"loyalty-topup/config"
	"loyalty-topup/docs/api"
	"loyalty-topup/internal/adapter/events"
	httpHandler "loyalty-topup/internal/adapter/http/handler"
	"loyalty-topup/internal/adapter/provider"
	"loyalty-topup/internal/adapter/storage"
	redisStorage "loyalty-topup/internal/adapter/storage/redis"
	"loyalty-topup/internal/core/ports"
	"loyalty-topup/internal/service"
	"loyalty-topup/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("db_driver", cfg.Database.Driver).
		Msg("Starting loyalty top-up service")

	ctx := context.Background()

	repos, err := storage.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer repos.Close()

	healthCheckers := []ports.HealthChecker{repos.Health}

	// Redis backs the guard cache and rate limiting; both degrade without it.
	var (
		idempotencyCache ports.IdempotencyCache
		rateLimitStore   *redisStorage.RateLimitStore
	)
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, running without guard cache and rate limiting")
	} else {
		defer rdb.Close()
		idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	}

	// Webhook verification
	sigSvc := service.NewHMACSignatureService()
	secret, err := service.NewWebhookSecret(cfg.Payment.WebhookSecret)
	if err != nil && cfg.Payment.WebhookEnabled {
		log.Fatal().Err(err).Msg("Invalid webhook secret")
	}
	if secret.Kind() == service.SecretKindTest {
		log.Warn().Msg("Test webhook secret configured, timestamp window relaxed")
	}
	verifier := service.NewWebhookVerifier(service.VerifierConfig{
		Secret:                 secret,
		MaxAge:                 cfg.Payment.MaxAge,
		FutureTolerance:        cfg.Payment.FutureTolerance,
		RelaxedMaxAge:          cfg.Payment.RelaxedMaxAge,
		RelaxedFutureTolerance: cfg.Payment.RelaxedFutureTolerance,
		CurrencyExponent:       cfg.Topup.CurrencyExponent,
	}, sigSvc)

	if cfg.JWT.Secret == "" {
		log.Warn().Msg("JWT secret is empty, every bearer token will be rejected")
	}
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)

	// Collaborators
	qrClient := provider.NewQRClient(cfg.Provider.QR, cfg.Topup.CurrencyExponent, provider.NewHTTPClient(cfg.Provider.QR.Timeout))
	profileClient := provider.NewProfileClient(cfg.Provider.Profile, provider.NewHTTPClient(cfg.Provider.Profile.Timeout))

	var notifier ports.Notifier = provider.NewLogNotifier(logger.Component(log, "notify"))
	if cfg.Notify.URL != "" {
		notifier = provider.NewPushNotifier(cfg.Notify, provider.NewHTTPClient(cfg.Notify.Timeout))
	}

	var publisher ports.EventPublisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka), logger.Component(log, "events"))
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Publishing settlement events to Kafka")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close event publisher")
		}
	}()

	// Business services
	rate, err := cfg.Topup.Rate()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid point rate")
	}
	guard := service.NewIdempotencyGuard(idempotencyCache, repos.Processed, repos.Orders, cfg.Settlement.GuardCacheTTL, logger.Component(log, "guard"))
	settlementSvc := service.NewSettlementService(service.SettlementDeps{
		Orders:          repos.Orders,
		Wallets:         repos.Wallets,
		Ledger:          repos.Ledger,
		Processed:       repos.Processed,
		Inconsistencies: repos.Inconsistencies,
		Transactor:      repos.Transactor,
		Guard:           guard,
		Profile:         profileClient,
		Notifier:        notifier,
		NotificationLog: repos.Notifications,
		Publisher:       publisher,
	}, service.SettlementOptions{
		AmountToleranceMinor: cfg.Settlement.AmountToleranceMinor,
		CurrencyExponent:     cfg.Topup.CurrencyExponent,
		SoftEffectTimeout:    cfg.Settlement.SoftEffectTimeout,
	}, logger.Component(log, "settlement"))
	topupSvc := service.NewTopupService(repos.Orders, qrClient, service.TopupOptions{
		OrderPrefix:      cfg.Topup.OrderPrefix,
		Currency:         cfg.Topup.Currency,
		CurrencyExponent: cfg.Topup.CurrencyExponent,
		PointRate:        rate,
		MaxAmountMinor:   cfg.Topup.MaxAmountMinor,
		ExpiryMinutes:    cfg.Topup.ExpiryMinutes,
		QRTimeout:        cfg.Provider.QR.Timeout,
	}, logger.Component(log, "topup"))
	walletSvc := service.NewWalletQueryService(repos.Wallets, repos.Ledger)
	auditSvc := service.NewAuditService(repos.Receipts, logger.Component(log, "audit"))

	httpHandler.SetSwaggerSpec(api.OpenAPI)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Verifier:       verifier,
		SettlementSvc:  settlementSvc,
		TopupSvc:       topupSvc,
		WalletSvc:      walletSvc,
		AuditSvc:       auditSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		Webhook: httpHandler.WebhookOptions{
			Enabled:         cfg.Payment.WebhookEnabled,
			SignatureHeader: cfg.Payment.SignatureHeader,
			TimestampHeader: cfg.Payment.TimestampHeader,
		},
		CurrencyExp: cfg.Topup.CurrencyExponent,
		Logger:      log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
