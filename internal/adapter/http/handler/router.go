package handler

import (
	"loyalty-topup/internal/adapter/http/middleware"
	redisStore "loyalty-topup/internal/adapter/storage/redis"
	"loyalty-topup/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxRequestBody = 1 << 20 // 1 MB

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Verifier       ports.WebhookVerifier
	SettlementSvc  ports.SettlementService
	TopupSvc       ports.TopupService
	WalletSvc      ports.WalletQueryService
	AuditSvc       ports.AuditService // nil = webhook receipts not recorded
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Webhook        WebhookOptions
	CurrencyExp    int32
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxRequestBody))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Provider webhooks (signed body, no bearer token) ---
	webhookHandler := NewWebhookHandler(deps.Verifier, deps.SettlementSvc, deps.Webhook, deps.Logger)
	webhooks := v1.Group("/webhooks")
	if deps.AuditSvc != nil {
		webhooks.Use(middleware.WebhookAudit(deps.AuditSvc))
	}
	{
		webhooks.POST("/payment", rl("webhook"), webhookHandler.HandlePayment)
	}

	// --- JWT-authenticated routes (wallet owners) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	topupHandler := NewTopupHandler(deps.TopupSvc, deps.CurrencyExp)
	walletHandler := NewWalletHandler(deps.WalletSvc)

	topups := v1.Group("/topups", jwtAuth)
	{
		topups.POST("", rl("topup_create"), topupHandler.Create)
		topups.POST("/:order_id/qr", rl("topup_create"), topupHandler.RetryQR)
		topups.GET("/:order_id", rl("topup_read"), topupHandler.Get)
	}

	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("", rl("wallet"), walletHandler.GetBalance)
		wallet.GET("/ledger", rl("wallet"), walletHandler.ListLedger)
	}

	return r
}
