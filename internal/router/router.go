package router

import (
	"github.com/DSaraf-Work/finance-buddy-sub001/internal/config"
	"github.com/DSaraf-Work/finance-buddy-sub001/internal/handler"
	"github.com/DSaraf-Work/finance-buddy-sub001/internal/ledger"
	"github.com/DSaraf-Work/finance-buddy-sub001/internal/middleware"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter configures the Gin engine and API routes.
func SetupRouter(cfg *config.Config, db *gorm.DB, engine *ledger.Engine) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	api := r.Group("/api")

	// everything requires a token from the auth service
	protected := api.Group("")
	protected.Use(
		middleware.AuthMiddleware(cfg.JWT.Secret, db),
		middleware.AuditMiddleware(db),
	)

	// transaction records (writes come from the ingestion subsystem)
	txnHandler := handler.NewTransactionHandler(db, engine)
	protected.POST("/transactions", txnHandler.CreateTransaction)
	protected.GET("/transactions", txnHandler.ListTransactions)
	protected.GET("/transactions/:id", txnHandler.GetTransaction)

	// splits
	splitHandler := handler.NewSplitHandler(engine)
	protected.POST("/transactions/:id/sub-transactions", splitHandler.CommitSplit)
	protected.DELETE("/transactions/:id/sub-transactions", splitHandler.ClearSplit)

	// refund reconciliation
	refundHandler := handler.NewRefundHandler(engine)
	protected.GET("/transactions/:id/refunds/suggestions", refundHandler.Suggestions)
	protected.POST("/transactions/:id/refunds/link", refundHandler.Link)
	protected.GET("/transactions/:id/refunds/status", refundHandler.Status)
	protected.DELETE("/refunds/links/:linkId", refundHandler.Unlink)

	// audit trail
	auditHandler := handler.NewAuditHandler(db)
	protected.GET("/audit", auditHandler.List)

	// ledger export
	exportHandler := handler.NewExportHandler(db)
	protected.GET("/export/reconciliation.csv", exportHandler.ExportCSV)
	protected.GET("/export/reconciliation.xlsx", exportHandler.ExportXLSX)

	return r
}
