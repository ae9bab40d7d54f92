package handler

import (
	"net/http"

	"adwallet/internal/adapter/http/middleware"
	"adwallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	Guard          ports.BudgetGuard
	TokenSvc       ports.TokenService
	SigSvc         ports.SignatureService
	NonceStore     ports.NonceStore
	WebhookSecret  string                 // empty = payment callbacks rejected
	RateLimitStore ports.RateLimitStore   // nil = rate limiting disabled
	IdemCache      ports.IdempotencyCache // nil = Idempotency-Key ignored
	AuditSvc       ports.AuditService     // nil = audit logging disabled
	HealthCheckers []ports.HealthChecker
	MetricsHandler http.Handler // nil = promhttp.Handler()
	Mode           string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode != "" {
		gin.SetMode(deps.Mode)
	}
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.MaxBodySize(middleware.DefaultMaxBodyBytes))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rules[group], deps.Logger)
	}

	var idem gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if deps.IdemCache != nil {
		idem = middleware.Idempotency(deps.IdemCache, middleware.DefaultIdempotencyTTL, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Payment provider callbacks (shared-secret HMAC) ---
	webhookHandler := NewPaymentWebhookHandler(deps.WalletSvc, deps.Logger)
	webhookAuth := middleware.WebhookAuth(deps.WebhookSecret, deps.SigSvc, deps.NonceStore, deps.Logger)
	v1.POST("/webhooks/payments", rl(middleware.GroupWebhook), webhookAuth, webhookHandler.HandlePayment)

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc)
	staff := middleware.RequireStaff()
	walletHandler := NewWalletHandler(deps.WalletSvc)
	adminHandler := NewAdminHandler(deps.WalletSvc, deps.Guard, deps.Logger)

	wallets := v1.Group("/wallets/:user_id", jwtAuth)
	{
		wallets.POST("", rl(middleware.GroupWalletWrite), walletHandler.CreateWallet)
		wallets.GET("", rl(middleware.GroupWalletRead), walletHandler.GetWallet)
		wallets.GET("/transactions", rl(middleware.GroupWalletRead), walletHandler.ListTransactions)
		wallets.POST("/deposits", rl(middleware.GroupWalletWrite), idem, walletHandler.CreateDepositOrder)
		wallets.POST("/withdrawals", rl(middleware.GroupWalletWrite), idem, walletHandler.CreateWithdrawOrder)
		wallets.POST("/purchases", rl(middleware.GroupWalletWrite), idem, walletHandler.Purchase)

		wallets.POST("/lock", staff, rl(middleware.GroupAdmin), adminHandler.LockWallet)
		wallets.POST("/unlock", staff, rl(middleware.GroupAdmin), adminHandler.UnlockWallet)
		wallets.POST("/topup", staff, rl(middleware.GroupAdmin), idem, adminHandler.TopUp)
		wallets.POST("/withdraw", staff, rl(middleware.GroupAdmin), idem, adminHandler.Withdraw)
		wallets.GET("/reconcile", staff, rl(middleware.GroupAdmin), adminHandler.Reconcile)
	}

	deposits := v1.Group("/deposits/:id", jwtAuth)
	{
		deposits.POST("/approve", staff, rl(middleware.GroupAdmin), adminHandler.ApproveDeposit)
		deposits.POST("/cancel", rl(middleware.GroupWalletWrite), walletHandler.CancelDeposit)
	}

	withdrawals := v1.Group("/withdrawals/:id", jwtAuth)
	{
		withdrawals.POST("/approve", staff, rl(middleware.GroupAdmin), adminHandler.ApproveWithdraw)
		withdrawals.POST("/cancel", rl(middleware.GroupWalletWrite), walletHandler.CancelWithdraw)
	}

	admin := v1.Group("/admin", jwtAuth, staff, rl(middleware.GroupAdmin))
	{
		admin.POST("/deposits/expire", adminHandler.ExpireDeposits)
		if deps.Guard != nil {
			admin.POST("/guard/run", adminHandler.RunGuard)
		}
	}

	return r
}
