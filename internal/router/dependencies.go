// internal/router/dependencies.go
package router

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/nutriforum/pricing-backend/internal/config"
	"github.com/nutriforum/pricing-backend/internal/middleware"
	"github.com/nutriforum/pricing-backend/internal/services"
)

// Dependencies holds the services shared by the HTTP layer and the
// background workers started from cmd/server.
type Dependencies struct {
	DB          *gorm.DB
	Audits      *services.AuditService
	Thresholds  *services.ThresholdService
	Prices      *services.PriceService
	Reports     *services.ReportService
	Archive     *services.AuditArchiveService
	Recipes     services.RecipeRecalcPublisher
	RateLimiter *middleware.RateLimiter

	redis *redis.Client
}

// NewDependencies wires services from cfg. Redis and Kafka are optional:
// without them the per-food lock is in-process and recipe requests go to an
// in-memory queue.
func NewDependencies(db *gorm.DB, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{DB: db}

	deps.Audits = services.NewAuditService(db, cfg.Pricing.AuditDefaultLimit, cfg.Pricing.AuditMaxLimit)
	deps.Thresholds = services.NewThresholdService(db, deps.Audits, cfg.Pricing.MinSampleSize, cfg.Pricing.RecalcAfterUpdates)
	deps.Reports = services.NewReportService(db)

	archive, err := services.NewAuditArchiveService(cfg, deps.Audits)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audit archive: %w", err)
	}
	deps.Archive = archive

	var locker services.FoodLocker
	if cfg.Redis.Enabled() {
		deps.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := deps.redis.Ping(context.Background()).Err(); err != nil {
			deps.redis.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		locker = services.NewRedisFoodLocker(deps.redis, cfg.Redis.LockTTL, cfg.Redis.LockRetries)
		logrus.WithField("addr", cfg.Redis.Addr()).Info("Using Redis per-food price locks")
	} else {
		locker = services.NewLocalFoodLocker()
		logrus.Info("Redis not configured, using in-process per-food price locks")
	}

	if cfg.Kafka.Enabled() {
		deps.Recipes = services.NewKafkaRecipePublisher(cfg.Kafka.Brokers, cfg.Kafka.RecipeRecalcTopic)
	} else {
		deps.Recipes = services.NewQueueRecipePublisher(cfg.Pricing.RecipeQueueSize)
		logrus.Info("Kafka not configured, recipe recalculation requests stay in-process")
	}

	deps.Prices = services.NewPriceService(db, deps.Thresholds, deps.Audits, locker, deps.Recipes)
	deps.RateLimiter = middleware.NewRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)

	return deps, nil
}

// Close releases the Redis client and flushes the Kafka writer.
func (d *Dependencies) Close() {
	if closer, ok := d.Recipes.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close recipe publisher")
		}
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close redis client")
		}
	}
}
