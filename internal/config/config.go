// Package config provides configuration management for the clinic console.
// It loads configuration from environment variables with sensible defaults
// and validates it so the application starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FORMAT: "console" or "json" (default: console)
//   - LOG_FILE: Write logs to this file instead of stdout
//   - COOKIE_SECURE: Mark auth cookies Secure (default: false)
//   - INSTANCE_ID: Identifies this instance on the event relay (default: hostname)
//
// Database Configuration:
//   - DATABASE_TYPE: "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./clinic_console.db)
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_SSL_MODE
//
// Redis Configuration (optional; leave REDIS_ADDRESS empty to run without Redis):
//   - REDIS_ADDRESS, REDIS_PASSWORD, REDIS_DB (0-15), REDIS_POOL_SIZE
//
// Authentication:
//   - JWT_SECRET: HMAC signing secret (required, minimum 32 characters)
//   - REFRESH_TOKEN_TTL: Refresh token lifetime (default: 168h)
//   - TOKEN_STORE: "sql" or "redis" (default: sql)
//   - ADMIN_USERNAME, ADMIN_PASSWORD, ADMIN_CLINIC_ID: bootstrap account created when no users exist
//
// Cache:
//   - CACHE_BACKEND: "memory" or "redis" (default: memory)
//   - CACHE_MAX_ENTRIES (default: 1000), CACHE_DEFAULT_TTL (default: 5m)
//
// Rate Limiting:
//   - RATE_LIMIT_ENABLED (default: true), RATE_LIMIT_DEFAULT (default: 100), RATE_LIMIT_WINDOW (default: 60s)
//   - LOGIN_RATE_LIMIT (default: 10), LOGIN_RATE_WINDOW (default: 1m)
//
// CTI:
//   - CTI_WEBHOOK_SECRET: shared secret expected in X-CTI-Secret (required)
//   - CTI_WEBHOOK_RPS: process-wide cap on webhook requests per second (default: 50)
//   - SSE_HEARTBEAT: heartbeat interval on the event stream (default: 30s)
//
// Operations:
//   - PURGE_SCHEDULE: cron spec for the token purge job (default: @every 1h)
//   - EXPORT_BROKER: none, rabbitmq, redis, kafka, aws or gcp (default: none)
//   - RABBITMQ_URL, RABBITMQ_EXCHANGE, RABBITMQ_ROUTING_KEY
//   - EXPORT_REDIS_STREAM
//   - KAFKA_BROKERS, KAFKA_TOPIC
//   - AWS_REGION, AWS_TOPIC_ARN, AWS_QUEUE_URL, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_ENDPOINT
//   - GCP_PROJECT_ID, GCP_TOPIC_ID, GOOGLE_APPLICATION_CREDENTIALS
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// AccessTokenTTL is fixed; it is not configurable
const AccessTokenTTL = 15 * time.Minute

// Config holds all configuration values. Load fills it from the environment;
// Validate must pass before it is used.
type Config struct {
	// Application settings
	Port         string
	LogLevel     string
	LogFormat    string
	LogFile      string
	CookieSecure bool
	InstanceID   string

	// Database configuration
	DatabaseType     string // "sqlite" or "postgres"
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Redis configuration
	RedisAddress  string
	RedisPassword string
	RedisDB       string
	RedisPoolSize string

	// Authentication
	JWTSecret       string
	RefreshTokenTTL time.Duration
	TokenStore      string // "sql" or "redis"
	AdminUsername   string
	AdminPassword   string
	AdminClinicID   string

	// Cache
	CacheBackend    string // "memory" or "redis"
	CacheMaxEntries int
	CacheDefaultTTL time.Duration

	// Rate limiting
	RateLimitEnabled bool
	RateLimitDefault int
	RateLimitWindow  time.Duration
	LoginRateLimit   int
	LoginRateWindow  time.Duration

	// CTI ingestion
	CTIWebhookSecret string
	CTIWebhookRPS    float64
	SSEHeartbeat     time.Duration

	// Operations
	PurgeSchedule string
	Export        ExportConfig
}

// ExportConfig selects and configures the optional event export broker
type ExportConfig struct {
	Broker string

	RabbitMQURL        string
	RabbitMQExchange   string
	RabbitMQRoutingKey string

	RedisStream string

	KafkaBrokers string
	KafkaTopic   string

	AWSRegion          string
	AWSTopicARN        string
	AWSQueueURL        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSEndpoint        string

	GCPProjectID       string
	GCPTopicID         string
	GCPCredentialsFile string
}

// Load creates a Config from environment variables, applying defaults for unset values.
// It does not validate; call Validate on the result.
func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "console"),
		LogFile:      getEnv("LOG_FILE", ""),
		CookieSecure: getBoolEnv("COOKIE_SECURE", false),
		InstanceID:   getEnv("INSTANCE_ID", hostname()),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./clinic_console.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "clinic_console"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		RefreshTokenTTL: getDurationEnv("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		TokenStore:      getEnv("TOKEN_STORE", "sql"),
		AdminUsername:   getEnv("ADMIN_USERNAME", ""),
		AdminPassword:   getEnv("ADMIN_PASSWORD", ""),
		AdminClinicID:   getEnv("ADMIN_CLINIC_ID", "default"),

		CacheBackend:    getEnv("CACHE_BACKEND", "memory"),
		CacheMaxEntries: getIntEnv("CACHE_MAX_ENTRIES", 1000),
		CacheDefaultTTL: getDurationEnv("CACHE_DEFAULT_TTL", 5*time.Minute),

		RateLimitEnabled: getBoolEnv("RATE_LIMIT_ENABLED", true),
		RateLimitDefault: getIntEnv("RATE_LIMIT_DEFAULT", 100),
		RateLimitWindow:  getDurationEnv("RATE_LIMIT_WINDOW", 60*time.Second),
		LoginRateLimit:   getIntEnv("LOGIN_RATE_LIMIT", 10),
		LoginRateWindow:  getDurationEnv("LOGIN_RATE_WINDOW", time.Minute),

		CTIWebhookSecret: getEnv("CTI_WEBHOOK_SECRET", ""),
		CTIWebhookRPS:    getFloatEnv("CTI_WEBHOOK_RPS", 50),
		SSEHeartbeat:     getDurationEnv("SSE_HEARTBEAT", 30*time.Second),

		PurgeSchedule: getEnv("PURGE_SCHEDULE", "@every 1h"),
		Export: ExportConfig{
			Broker:             strings.ToLower(getEnv("EXPORT_BROKER", "none")),
			RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
			RabbitMQExchange:   getEnv("RABBITMQ_EXCHANGE", "cti"),
			RabbitMQRoutingKey: getEnv("RABBITMQ_ROUTING_KEY", "cti.events"),
			RedisStream:        getEnv("EXPORT_REDIS_STREAM", "cti:export"),
			KafkaBrokers:       getEnv("KAFKA_BROKERS", ""),
			KafkaTopic:         getEnv("KAFKA_TOPIC", "cti-events"),
			AWSRegion:          getEnv("AWS_REGION", ""),
			AWSTopicARN:        getEnv("AWS_TOPIC_ARN", ""),
			AWSQueueURL:        getEnv("AWS_QUEUE_URL", ""),
			AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			AWSEndpoint:        getEnv("AWS_ENDPOINT", ""),
			GCPProjectID:       getEnv("GCP_PROJECT_ID", ""),
			GCPTopicID:         getEnv("GCP_TOPIC_ID", ""),
			GCPCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		},
	}
}

// RedisEnabled reports whether a Redis server is configured
func (c *Config) RedisEnabled() bool {
	return c.RedisAddress != ""
}

// RedisDBNumber returns REDIS_DB as an int; Validate guarantees it parses
func (c *Config) RedisDBNumber() int {
	db, _ := strconv.Atoi(c.RedisDB)
	return db
}

// RedisPoolSizeNumber returns REDIS_POOL_SIZE as an int; Validate guarantees it parses
func (c *Config) RedisPoolSizeNumber() int {
	size, _ := strconv.Atoi(c.RedisPoolSize)
	return size
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv accepts the strconv.ParseBool forms; anything else yields defaultValue
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getIntEnv returns -1 for an unparsable value so Validate can report it
func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return parsed
}

func getFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return -1
	}
	return parsed
}

// getDurationEnv returns 0 for an unparsable value so Validate can report it
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return parsed
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "clinic-console"
	}
	return name
}

// Validate checks required fields, value formats and cross-field dependencies.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long for security")
	}
	if c.CTIWebhookSecret == "" {
		return fmt.Errorf("CTI_WEBHOOK_SECRET environment variable is required")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	switch c.DatabaseType {
	case "sqlite":
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required when using SQLite")
		}
	case "postgres", "postgresql":
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite' or 'postgres'")
	}

	if c.RedisEnabled() {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	if c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("REFRESH_TOKEN_TTL must be a positive duration (e.g., '168h')")
	}
	switch c.TokenStore {
	case "sql":
	case "redis":
		if !c.RedisEnabled() {
			return fmt.Errorf("TOKEN_STORE=redis requires REDIS_ADDRESS")
		}
	default:
		return fmt.Errorf("TOKEN_STORE must be 'sql' or 'redis'")
	}
	if c.AdminUsername != "" && len(c.AdminPassword) < 8 {
		return fmt.Errorf("ADMIN_PASSWORD must be at least 8 characters when ADMIN_USERNAME is set")
	}

	switch c.CacheBackend {
	case "memory":
	case "redis":
		if !c.RedisEnabled() {
			return fmt.Errorf("CACHE_BACKEND=redis requires REDIS_ADDRESS")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be 'memory' or 'redis'")
	}
	if c.CacheMaxEntries < 1 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must be a positive number")
	}
	if c.CacheDefaultTTL <= 0 {
		return fmt.Errorf("CACHE_DEFAULT_TTL must be a positive duration (e.g., '5m')")
	}

	if c.RateLimitEnabled {
		if c.RateLimitDefault < 1 {
			return fmt.Errorf("RATE_LIMIT_DEFAULT must be a positive number")
		}
		if c.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be a valid duration (e.g., '60s', '1m')")
		}
		if c.LoginRateLimit < 1 {
			return fmt.Errorf("LOGIN_RATE_LIMIT must be a positive number")
		}
		if c.LoginRateWindow <= 0 {
			return fmt.Errorf("LOGIN_RATE_WINDOW must be a valid duration (e.g., '1m')")
		}
	}

	if c.CTIWebhookRPS < 0 {
		return fmt.Errorf("CTI_WEBHOOK_RPS must be a non-negative number")
	}
	if c.SSEHeartbeat <= 0 {
		return fmt.Errorf("SSE_HEARTBEAT must be a valid duration (e.g., '30s')")
	}

	if _, err := cron.ParseStandard(c.PurgeSchedule); err != nil {
		return fmt.Errorf("PURGE_SCHEDULE must be a valid cron spec: %w", err)
	}

	return c.Export.Validate(c.RedisEnabled())
}

// Validate checks the settings the selected broker needs
func (e ExportConfig) Validate(redisEnabled bool) error {
	switch e.Broker {
	case "", "none":
	case "rabbitmq":
		if e.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required when EXPORT_BROKER=rabbitmq")
		}
	case "redis":
		if !redisEnabled {
			return fmt.Errorf("EXPORT_BROKER=redis requires REDIS_ADDRESS")
		}
	case "kafka":
		if e.KafkaBrokers == "" || e.KafkaTopic == "" {
			return fmt.Errorf("KAFKA_BROKERS and KAFKA_TOPIC are required when EXPORT_BROKER=kafka")
		}
	case "aws":
		if e.AWSRegion == "" {
			return fmt.Errorf("AWS_REGION is required when EXPORT_BROKER=aws")
		}
		if e.AWSTopicARN == "" && e.AWSQueueURL == "" {
			return fmt.Errorf("AWS_TOPIC_ARN or AWS_QUEUE_URL is required when EXPORT_BROKER=aws")
		}
	case "gcp":
		if e.GCPProjectID == "" || e.GCPTopicID == "" {
			return fmt.Errorf("GCP_PROJECT_ID and GCP_TOPIC_ID are required when EXPORT_BROKER=gcp")
		}
	default:
		return fmt.Errorf("EXPORT_BROKER must be one of none, rabbitmq, redis, kafka, aws, gcp")
	}
	return nil
}
