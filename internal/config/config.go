// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	AWS         AWSConfig
	Pricing     PricingConfig
	RateLimit   RateLimitConfig
	I18n        I18nConfig
	CORS        CORSConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey string
	Issuer    string
}

// RedisConfig is optional. With an empty Host the per-food lock stays in-process.
type RedisConfig struct {
	Host        string
	Port        string
	Password    string
	DB          int
	LockTTL     time.Duration
	LockRetries int
}

func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// KafkaConfig is optional. Without brokers recipe recalculation events are
// handed to an in-process queue.
type KafkaConfig struct {
	Brokers            []string
	RecipeRecalcTopic  string
	RecipeResultsTopic string
	ConsumerGroup      string
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	AuditBucket     string
	AuditPrefix     string
}

type PricingConfig struct {
	MinSampleSize          int
	RecalcAfterUpdates     int
	StalenessCheckInterval time.Duration
	AuditDefaultLimit      int
	AuditMaxLimit          int
	RecipeQueueSize        int
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type I18nConfig struct {
	DefaultLocale string
	LocalesPath   string
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "nutriforum"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "warn"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			Issuer:    getEnv("JWT_ISSUER", "nutriforum-auth"),
		},
		Redis: RedisConfig{
			Host:        getEnv("REDIS_HOST", ""),
			Port:        getEnv("REDIS_PORT", "6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			LockTTL:     getEnvAsDuration("REDIS_LOCK_TTL", 10*time.Second),
			LockRetries: getEnvAsInt("REDIS_LOCK_RETRIES", 16),
		},
		Kafka: KafkaConfig{
			Brokers:            getEnvAsList("KAFKA_BROKERS"),
			RecipeRecalcTopic:  getEnv("KAFKA_RECIPE_RECALC_TOPIC", "recipe.recalc.requested"),
			RecipeResultsTopic: getEnv("KAFKA_RECIPE_RESULTS_TOPIC", "recipe.recalculated"),
			ConsumerGroup:      getEnv("KAFKA_CONSUMER_GROUP", "price-governance"),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "eu-central-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			AuditBucket:     getEnv("AWS_AUDIT_BUCKET", ""),
			AuditPrefix:     getEnv("AWS_AUDIT_PREFIX", "price-audits"),
		},
		Pricing: PricingConfig{
			MinSampleSize:          getEnvAsInt("PRICE_MIN_SAMPLE_SIZE", 3),
			RecalcAfterUpdates:     getEnvAsInt("PRICE_RECALC_AFTER_UPDATES", 10),
			StalenessCheckInterval: getEnvAsDuration("PRICE_STALENESS_INTERVAL", 5*time.Minute),
			AuditDefaultLimit:      getEnvAsInt("PRICE_AUDIT_DEFAULT_LIMIT", 10),
			AuditMaxLimit:          getEnvAsInt("PRICE_AUDIT_MAX_LIMIT", 100),
			RecipeQueueSize:        getEnvAsInt("RECIPE_QUEUE_SIZE", 256),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
			LocalesPath:   getEnv("LOCALES_PATH", "./internal/i18n/locales"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Pricing.MinSampleSize < 1 {
		return fmt.Errorf("PRICE_MIN_SAMPLE_SIZE must be at least 1")
	}

	if c.Pricing.RecalcAfterUpdates < 1 {
		return fmt.Errorf("PRICE_RECALC_AFTER_UPDATES must be at least 1")
	}

	if c.Pricing.StalenessCheckInterval <= 0 {
		return fmt.Errorf("PRICE_STALENESS_INTERVAL must be positive")
	}

	if c.Pricing.AuditDefaultLimit < 1 || c.Pricing.AuditMaxLimit < c.Pricing.AuditDefaultLimit {
		return fmt.Errorf("audit limits must satisfy 1 <= default <= max")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
