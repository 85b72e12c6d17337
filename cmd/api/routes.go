package main

import (
	"database/sql"
	"log/slog"
	"time"

	"boomcard/internal/audit"
	"boomcard/internal/auth"
	"boomcard/internal/card"
	"boomcard/internal/config"
	"boomcard/internal/fraud"
	"boomcard/internal/httpapi"
	"boomcard/internal/notify"
	"boomcard/internal/rbac"
	"boomcard/internal/receipt"
	"boomcard/internal/reporting"
	"boomcard/internal/venue"
	"boomcard/internal/wallet"
	"boomcard/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type dependencies struct {
	handlers httpapi.Handlers
}

// buildDependencies wires every service against the shared DB and redis
// connections. The returned cleanup flushes the Kafka writer on shutdown.
func buildDependencies(cfg config.Config, db *sql.DB, rdb *redis.Client) (dependencies, func()) {
	cleanup := func() {}

	var notifier notify.Notifier = notify.LogNotifier{}
	if len(cfg.Kafka.Brokers) > 0 {
		kn := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		notifier = kn
		cleanup = func() { _ = kn.Close() }
	}

	walletSvc := wallet.NewService(wallet.NewPostgresRepo(db))
	cardSvc := card.NewService(card.NewPostgresRepo(db))
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	venues := venue.NewCachedProvider(venue.NewPostgresRepo(db), rdb, 0, slog.Default())
	merchants := fraud.NewPostgresRegistry(db)

	receiptRepo := receipt.NewPostgresRepo(db)
	guard := receipt.NewGuard(receiptRepo, rdb)
	receiptSvc := receipt.NewService(receiptRepo, guard, cardSvc, venues, merchants, walletSvc, notifier, auditSvc)

	reportSvc := reporting.NewService(reporting.NewPostgresRepo(db))

	return dependencies{
		handlers: httpapi.Handlers{
			Wallet:   walletSvc,
			Receipts: receiptSvc,
			Reports:  reportSvc,
			Audit:    auditSvc,
		},
	}, cleanup
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic.
func registerRoutes(r *gin.Engine, authManager *auth.Manager, db *sql.DB, deps dependencies) {
	h := deps.handlers
	h.Auth = authManager

	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")

	// AUTH routes (token issuance).
	// NOTE: Placeholder login; real credential validation happens upstream.
	v1.POST("/auth/token", h.Login)

	// protected API group
	api := v1.Group("")
	api.Use(auth.RequireAccessToken(authManager))
	{
		api.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "role": role})
		})

		// RECEIPT routes
		api.POST("/receipts", h.SubmitReceipt)
		api.GET("/receipts", h.ListMyReceipts)
		api.GET("/receipts/:id", h.GetReceipt)

		// WALLET routes
		api.GET("/wallet", h.GetWallet)
		api.GET("/wallet/transactions", h.ListWalletTransactions)

		// ADMIN routes: reviewers only.
		admin := api.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleSuperAdmin))
		{
			admin.GET("/receipts/queue", h.ReviewQueue)
			admin.POST("/receipts/:id/review", h.ReviewReceipt)
			admin.POST("/receipts/bulk-review", h.BulkReviewReceipts)

			admin.POST("/wallets/:user_id/lock", h.LockWallet)
			admin.POST("/wallets/:user_id/unlock", h.UnlockWallet)
			admin.POST("/wallets/:user_id/credit", h.ManualCredit)

			admin.GET("/reports/cashback", h.CashbackReport)
			admin.GET("/reports/wallets", h.WalletReport)
		}
	}
}
