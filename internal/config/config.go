package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Payment providers
const (
	PaymentProviderHTTP   = "http"
	PaymentProviderStripe = "stripe"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Session   SessionConfig
	Payment   PaymentConfig
	Delivery  DeliveryConfig
	S3        S3Config
	Kafka     KafkaConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
	MigrateOnStart  bool
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds the API key guarding the admin endpoints.
type AuthConfig struct {
	APIKey string
}

// SessionConfig holds the session cookie settings.
type SessionConfig struct {
	Name   string
	Secret string
	MaxAge int // seconds
	Secure bool
}

// PaymentConfig holds payment gateway settings.
type PaymentConfig struct {
	Provider        string // "http" or "stripe"
	URL             string
	Timeout         time.Duration
	Currency        string
	ReturnURL       string
	CancelURL       string
	StripeSecretKey string
}

// DeliveryConfig holds the delivery settings used to seed the settings row.
type DeliveryConfig struct {
	SettingsFile string // YAML document, local path or S3 key suffix
	ExpressCost  decimal.Decimal
	RegularCost  decimal.Decimal
	FreeFrom     decimal.Decimal
}

// S3Config holds AWS S3 configuration for the delivery settings document.
type S3Config struct {
	Enabled bool
	Bucket  string
	Region  string
	Prefix  string // Path prefix within bucket (e.g., "settings/")
}

// KafkaConfig holds the order event relay settings. No brokers disables it.
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	RelayInterval time.Duration
	BatchSize     int
}

// RedisConfig holds the idempotency store settings. An empty URL disables it.
type RedisConfig struct {
	URL            string
	IdempotencyTTL time.Duration
}

// RateLimitConfig limits order confirmations per client address.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load loads configuration from environment variables, reading a .env file
// first when one exists. Variables already set in the environment win.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	defaults := deliveryDefaults()

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "shop"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
			MigrateOnStart:  getEnvAsBool("DB_MIGRATE_ON_START", true),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		Session: SessionConfig{
			Name:   getEnv("SESSION_NAME", "shop-session"),
			Secret: getEnv("SESSION_SECRET", ""),
			MaxAge: getEnvAsInt("SESSION_MAX_AGE", 86400*14),
			Secure: getEnvAsBool("SESSION_SECURE", false),
		},
		Payment: PaymentConfig{
			Provider:        getEnv("PAYMENT_PROVIDER", PaymentProviderHTTP),
			URL:             getEnv("PAYMENT_URL", ""),
			Timeout:         getEnvAsDuration("PAYMENT_TIMEOUT", 10*time.Second),
			Currency:        getEnv("PAYMENT_CURRENCY", "RUB"),
			ReturnURL:       getEnv("PAYMENT_RETURN_URL", "http://localhost:8080/orders"),
			CancelURL:       getEnv("PAYMENT_CANCEL_URL", "http://localhost:8080/basket"),
			StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),
		},
		Delivery: DeliveryConfig{
			SettingsFile: getEnv("DELIVERY_SETTINGS_FILE", ""),
			ExpressCost:  getEnvAsDecimal("DELIVERY_EXPRESS_COST", defaults.ExpressCost),
			RegularCost:  getEnvAsDecimal("DELIVERY_REGULAR_COST", defaults.RegularCost),
			FreeFrom:     getEnvAsDecimal("DELIVERY_FREE_FROM", defaults.FreeFrom),
		},
		S3: S3Config{
			Enabled: getEnvAsBool("S3_ENABLED", false),
			Bucket:  getEnv("S3_BUCKET", ""),
			Region:  getEnv("S3_REGION", "us-east-1"),
			Prefix:  getEnv("S3_PREFIX", "settings/"),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvAsList("KAFKA_BROKERS"),
			Topic:         getEnv("KAFKA_TOPIC", "shop.orders"),
			RelayInterval: getEnvAsDuration("OUTBOX_RELAY_INTERVAL", 2*time.Second),
			BatchSize:     getEnvAsInt("OUTBOX_BATCH_SIZE", 100),
		},
		Redis: RedisConfig{
			URL:            getEnv("REDIS_URL", ""),
			IdempotencyTTL: getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("CONFIRM_RATE_LIMIT_RPS", 1),
			Burst:             getEnvAsInt("CONFIRM_RATE_LIMIT_BURST", 5),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	if c.Auth.APIKey == "" {
		return fmt.Errorf("API key is required")
	}

	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("session secret must be at least 32 bytes")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	switch c.Payment.Provider {
	case PaymentProviderHTTP:
		if c.Payment.URL == "" {
			return fmt.Errorf("payment URL is required for the http payment provider")
		}
	case PaymentProviderStripe:
		if c.Payment.StripeSecretKey == "" {
			return fmt.Errorf("stripe secret key is required for the stripe payment provider")
		}
	default:
		return fmt.Errorf("invalid payment provider: %s (must be http or stripe)", c.Payment.Provider)
	}

	if c.Payment.Timeout <= 0 {
		return fmt.Errorf("payment timeout must be positive")
	}

	if c.Payment.Currency == "" {
		return fmt.Errorf("payment currency is required")
	}

	if c.Delivery.ExpressCost.IsNegative() || c.Delivery.RegularCost.IsNegative() || c.Delivery.FreeFrom.IsNegative() {
		return fmt.Errorf("delivery costs must not be negative")
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic is required when brokers are set")
	}

	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("invalid confirm rate limit: %.2f rps, burst %d", c.RateLimit.RequestsPerSecond, c.RateLimit.Burst)
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Enabled reports whether the outbox relay should publish to Kafka.
func (c *KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

func deliveryDefaults() DeliveryConfig {
	return DeliveryConfig{
		ExpressCost: decimal.NewFromInt(500),
		RegularCost: decimal.NewFromInt(200),
		FreeFrom:    decimal.NewFromInt(2000),
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
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

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings such as "5s" or "1m30s".
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
