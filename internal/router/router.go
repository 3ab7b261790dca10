// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nutriforum/pricing-backend/internal/config"
	"github.com/nutriforum/pricing-backend/internal/database"
	"github.com/nutriforum/pricing-backend/internal/handlers"
	"github.com/nutriforum/pricing-backend/internal/middleware"
	"github.com/nutriforum/pricing-backend/internal/utils"
)

func Initialize(deps *Dependencies, cfg *config.Config) *gin.Engine {
	// Initialize handlers
	thresholdHandler := handlers.NewPriceThresholdHandler(deps.Thresholds)
	foodHandler := handlers.NewFoodHandler(deps.Prices, deps.Audits)
	auditHandler := handlers.NewPriceAuditHandler(deps.Audits, deps.Archive)
	reportHandler := handlers.NewPriceReportHandler(deps.Reports)

	utils.SetJWTSecret(cfg.JWT.SecretKey)
	utils.SetJWTIssuer(cfg.JWT.Issuer)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(middleware.I18nMiddleware())
	r.Use(deps.RateLimiter.Middleware())

	r.GET("/health", func(c *gin.Context) {
		if err := database.Ping(c.Request.Context(), deps.DB); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthRequired())
	{
		thresholds := v1.Group("/price-thresholds")
		thresholds.Use(middleware.ModeratorRequired())
		{
			thresholds.GET("", thresholdHandler.ListThresholds)
			thresholds.POST("/recalculate", thresholdHandler.Recalculate)
		}

		foods := v1.Group("/foods")
		{
			foods.GET("", foodHandler.ListFoods)
			foods.GET("/:id", foodHandler.GetFood)
			foods.PATCH("/:id/price", middleware.ModeratorRequired(), foodHandler.UpdatePrice)
			foods.POST("/:id/price-override", middleware.ModeratorRequired(), foodHandler.ApplyOverride)
			foods.DELETE("/:id/price-override", middleware.ModeratorRequired(), foodHandler.ClearOverride)
			foods.GET("/:id/price-audits", middleware.ModeratorRequired(), foodHandler.GetFoodAudits)
		}

		audits := v1.Group("/price-audits")
		audits.Use(middleware.ModeratorRequired())
		{
			audits.GET("", auditHandler.QueryAudits)
			audits.POST("/export", middleware.AdminRequired(), auditHandler.ExportAudits)
		}

		reports := v1.Group("/price-reports")
		{
			reports.POST("", reportHandler.CreateReport)
			reports.GET("", middleware.ModeratorRequired(), reportHandler.ListReports)
			reports.GET("/:id", middleware.ModeratorRequired(), reportHandler.GetReport)
			reports.PATCH("/:id", middleware.ModeratorRequired(), reportHandler.UpdateStatus)
		}
	}

	return r
}
