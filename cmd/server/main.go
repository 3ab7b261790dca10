// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nutriforum/pricing-backend/internal/config"
	"github.com/nutriforum/pricing-backend/internal/consumer"
	"github.com/nutriforum/pricing-backend/internal/database"
	"github.com/nutriforum/pricing-backend/internal/i18n"
	"github.com/nutriforum/pricing-backend/internal/router"
	"github.com/nutriforum/pricing-backend/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal("Failed to load configuration: ", err)
	}

	if cfg.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.Fatal("Failed to initialize database: ", err)
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		logrus.Fatal("Failed to run migrations: ", err)
	}

	if err := i18n.Initialize(cfg.I18n.LocalesPath, cfg.I18n.DefaultLocale); err != nil {
		logrus.Fatal("Failed to initialize i18n: ", err)
	}

	deps, err := router.NewDependencies(db, cfg)
	if err != nil {
		logrus.Fatal("Failed to initialize services: ", err)
	}
	defer deps.Close()

	ctx, stop := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	startWorkers(ctx, &workers, deps, cfg)

	r := router.Initialize(deps, cfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logrus.Infof("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatal("Failed to start server: ", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}

	stop()
	workers.Wait()
	logrus.Info("Server exited")
}

// startWorkers launches the staleness monitor, the rate limiter cleanup and
// either the Kafka result consumer or the in-process recipe queue drain.
func startWorkers(ctx context.Context, wg *sync.WaitGroup, deps *router.Dependencies, cfg *config.Config) {
	deps.RateLimiter.StartCleanup(ctx)

	wg.Add(1)
	go func() {
		defer wg.Done()
		deps.Thresholds.StartStalenessMonitor(ctx, cfg.Pricing.StalenessCheckInterval)
	}()

	if cfg.Kafka.Enabled() {
		recipeConsumer := consumer.NewRecipeConsumer(cfg.Kafka, deps.Audits)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := recipeConsumer.Run(ctx); err != nil {
				logrus.WithError(err).Error("Recipe result consumer stopped")
			}
		}()
		return
	}

	if queue, ok := deps.Recipes.(*services.QueueRecipePublisher); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			queue.Drain(ctx, func(req services.RecipeRecalcRequest) {
				logrus.WithFields(logrus.Fields{
					"food_id":    req.FoodID,
					"price_unit": req.PriceUnit,
					"currency":   req.Currency,
				}).Info("Recipe recalculation requested")
			})
		}()
	}
}
