package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Security  SecurityConfig  `json:"security"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Tracing   TracingConfig   `json:"tracing"`
	Redis     RedisConfig     `json:"redis"`
	Kafka     KafkaConfig     `json:"kafka"`
	RabbitMQ  RabbitMQConfig  `json:"rabbitmq"`
	Pricing   PricingConfig   `json:"pricing"`
	Lifecycle LifecycleConfig `json:"lifecycle"`
	Log       LogConfig       `json:"log"`
	Features  map[string]bool `json:"features"`
}

type ServerConfig struct {
	Port      string `json:"port"`
	Host      string `json:"host"`
	EnableTLS bool   `json:"enable_tls"`
	CertFile  string `json:"cert_file"`
	KeyFile   string `json:"key_file"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type SecurityConfig struct {
	// Max request body size in bytes (default: 1MB)
	MaxRequestBodySize int64 `json:"max_request_body_size"`
	// Allowed CORS origins (comma-separated)
	AllowedOrigins string `json:"allowed_origins"`
}

type RateLimitConfig struct {
	Enabled bool `json:"enabled"`
	Rate    int  `json:"rate"`
	Window  int  `json:"window"` // in seconds
}

type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	Endpoint    string `json:"endpoint"`
	Environment string `json:"environment"`
}

// RedisConfig selects the pricing-config cache. An empty Addr keeps the
// cache in process memory.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// KafkaConfig enables the domain event stream when Broker is set.
type KafkaConfig struct {
	Broker string `json:"broker"`
	Topic  string `json:"topic"`
}

// RabbitMQConfig enables partner notifications when URL is set.
type RabbitMQConfig struct {
	URL   string `json:"url"`
	Queue string `json:"queue"`
}

type PricingConfig struct {
	// Optional JSON file overriding the built-in pricing tables.
	ConfigFile      string `json:"config_file"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds"`
}

type LifecycleConfig struct {
	QuoteTTLHours        int    `json:"quote_ttl_hours"`
	SweepIntervalSeconds int    `json:"sweep_interval_seconds"`
	SweepBatchSize       int    `json:"sweep_batch_size"`
	SweepWorkers         int    `json:"sweep_workers"`
	AlertThreshold       string `json:"alert_threshold"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// LoadConfig loads configuration from environment variables and/or config file.
// Environment variables take precedence over config file values. A .env file
// in the working directory is loaded first when present.
func LoadConfig(configFile string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	overrideFromEnv(cfg)

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
		},
		Database: DatabaseConfig{
			Path: "./freight_bidding.db",
		},
		Security: SecurityConfig{
			MaxRequestBodySize: 1 << 20,
			AllowedOrigins:     "*",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Rate:    100,
			Window:  60,
		},
		Tracing: TracingConfig{
			Endpoint:    "http://localhost:14268/api/traces",
			Environment: "development",
		},
		Kafka: KafkaConfig{
			Topic: "freight.events",
		},
		RabbitMQ: RabbitMQConfig{
			Queue: "partner-notifications",
		},
		Pricing: PricingConfig{
			CacheTTLSeconds: 300,
		},
		Lifecycle: LifecycleConfig{
			QuoteTTLHours:        72,
			SweepIntervalSeconds: 60,
			SweepBatchSize:       100,
			SweepWorkers:         4,
			AlertThreshold:       "1000",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Features: map[string]bool{},
	}
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

func overrideFromEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.Server.Host, "SERVER_HOST")
	setBool(&cfg.Server.EnableTLS, "SERVER_ENABLE_TLS")
	setString(&cfg.Server.CertFile, "SERVER_CERT_FILE")
	setString(&cfg.Server.KeyFile, "SERVER_KEY_FILE")

	setString(&cfg.Database.Path, "DATABASE_PATH")

	if size := os.Getenv("MAX_REQUEST_BODY_SIZE"); size != "" {
		if v, err := strconv.ParseInt(size, 10, 64); err == nil {
			cfg.Security.MaxRequestBodySize = v
		}
	}
	setString(&cfg.Security.AllowedOrigins, "ALLOWED_ORIGINS")

	setBool(&cfg.RateLimit.Enabled, "RATE_LIMIT_ENABLED")
	setInt(&cfg.RateLimit.Rate, "RATE_LIMIT_RATE")
	setInt(&cfg.RateLimit.Window, "RATE_LIMIT_WINDOW")

	setBool(&cfg.Tracing.Enabled, "TRACING_ENABLED")
	setString(&cfg.Tracing.Endpoint, "JAEGER_ENDPOINT")
	setString(&cfg.Tracing.Environment, "ENVIRONMENT")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")

	setString(&cfg.Kafka.Broker, "KAFKA_BROKER")
	setString(&cfg.Kafka.Topic, "KAFKA_TOPIC")

	setString(&cfg.RabbitMQ.URL, "RABBITMQ_URL")
	setString(&cfg.RabbitMQ.Queue, "RABBITMQ_QUEUE")

	setString(&cfg.Pricing.ConfigFile, "PRICING_CONFIG_FILE")
	setInt(&cfg.Pricing.CacheTTLSeconds, "PRICING_CACHE_TTL")

	setInt(&cfg.Lifecycle.QuoteTTLHours, "QUOTE_TTL_HOURS")
	setInt(&cfg.Lifecycle.SweepIntervalSeconds, "EXPIRY_SWEEP_INTERVAL")
	setInt(&cfg.Lifecycle.SweepBatchSize, "EXPIRY_SWEEP_BATCH")
	setInt(&cfg.Lifecycle.SweepWorkers, "EXPIRY_SWEEP_WORKERS")
	setString(&cfg.Lifecycle.AlertThreshold, "WALLET_ALERT_THRESHOLD")

	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")

	// FEATURES=daily_lead_limit=false,reject_losing_offers=true
	if raw := os.Getenv("FEATURES"); raw != "" {
		if cfg.Features == nil {
			cfg.Features = map[string]bool{}
		}
		for _, pair := range strings.Split(raw, ",") {
			name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || name == "" {
				continue
			}
			cfg.Features[name] = parseBool(value)
		}
	}
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setBool(dst *bool, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = parseBool(value)
	}
}

func setInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			*dst = i
		}
	}
}

func parseBool(value string) bool {
	return strings.EqualFold(value, "true") || value == "1"
}

// QuoteTTL is the default bidding window of a quote posted without expires_at.
func (c *Config) QuoteTTL() time.Duration {
	return time.Duration(c.Lifecycle.QuoteTTLHours) * time.Hour
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Lifecycle.SweepIntervalSeconds) * time.Second
}

func (c *Config) PricingCacheTTL() time.Duration {
	return time.Duration(c.Pricing.CacheTTLSeconds) * time.Second
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Server.EnableTLS && (c.Server.CertFile == "" || c.Server.KeyFile == "") {
		return fmt.Errorf("TLS requires both cert_file and key_file")
	}
	if c.Security.MaxRequestBodySize <= 0 {
		return fmt.Errorf("max request body size must be positive")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return fmt.Errorf("rate limit rate must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}
	if c.Kafka.Broker != "" && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic is required when a broker is set")
	}
	if c.RabbitMQ.URL != "" && c.RabbitMQ.Queue == "" {
		return fmt.Errorf("rabbitmq queue is required when a url is set")
	}
	if c.Pricing.CacheTTLSeconds <= 0 {
		return fmt.Errorf("pricing cache ttl must be positive")
	}
	if c.Lifecycle.QuoteTTLHours <= 0 {
		return fmt.Errorf("quote ttl must be positive")
	}
	if c.Lifecycle.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("expiry sweep interval must be positive")
	}
	if c.Lifecycle.SweepBatchSize <= 0 || c.Lifecycle.SweepWorkers <= 0 {
		return fmt.Errorf("expiry sweep batch size and workers must be positive")
	}
	return nil
}
