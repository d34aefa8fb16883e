package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	handler "kopiaku-reconciliation-backend/internal/handlers"
	"kopiaku-reconciliation-backend/internal/repository"
	service "kopiaku-reconciliation-backend/internal/services/reconciliation"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB) {
	txRepo := repository.NewTransactionRepository(db)

	reconService := service.NewService(txRepo, db)

	reconHandler := handler.NewReconciliationHandler(reconService, txRepo)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Reconciliation session routes
	recon := api.Group("/reconciliation")
	recon.POST("/upload", reconHandler.Upload)
	recon.GET("/:sessionId", reconHandler.GetSession)
	recon.POST("/:sessionId/rows/:rowId/match", reconHandler.MatchRow)
	recon.POST("/:sessionId/rows/:rowId/create-new", reconHandler.CreateNewRow)
	recon.POST("/:sessionId/rows/:rowId/clear", reconHandler.ClearRow)
	recon.POST("/:sessionId/submit", reconHandler.Submit)
	recon.DELETE("/:sessionId", reconHandler.Discard)
	recon.GET("/:sessionId/export", reconHandler.ExportReport)

	// Transaction routes
	tx := api.Group("/transactions")
	{
		tx.GET("", reconHandler.ListTransactions)
	}
}
