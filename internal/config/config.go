package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Config / tuning - defaults
const (
	DefaultPort                   = "8080"
	DefaultLogFormat              = "json"
	DefaultLogLevel               = "info"
	DefaultDBMaxOpenConns         = 10
	DefaultDBMaxIdleConns         = 5
	DefaultDBConnMaxLifetimeMin   = 30
	DefaultDBConnMaxIdleTimeMin   = 10
	DefaultSMTPPort               = "587"
	DefaultSMTPPoolSize           = 3
	DefaultLookbackMinutes        = 5
	DefaultLookaheadMinutes       = 2
	DefaultSweepBatchLimit        = 50
	DefaultSendRatePerSecond      = 10
	DefaultMetricsIntervalSeconds = 60
)

// Config carries everything the process needs, loaded once in main and
// passed down explicitly. Nothing in this package keeps global state.
type Config struct {
	// Unique for this process instance, tagged on logs and health output.
	InstanceID string

	Port      string
	LogFormat string // json | text
	LogLevel  string // debug | info | warn | error

	DatabaseURL          string
	DBAutoMigrate        bool
	DBMaxOpenConns       int
	DBMaxIdleConns       int
	DBConnMaxLifetimeMin int
	DBConnMaxIdleTimeMin int

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPPassword string
	SMTPPoolSize int

	// Sweep window and batching.
	Lookback        time.Duration
	Lookahead       time.Duration
	SweepBatchLimit int

	// Outbound email submissions per second within one sweep.
	SendRatePerSecond int

	// Optional shared secret the cron caller must present on the trigger
	// route. Empty disables the check.
	TriggerToken string

	// Optional Redis for trigger-route rate limiting. Empty disables it.
	RedisAddr     string
	RedisPassword string

	MetricsIntervalSeconds int
}

// Load builds a Config from environment variables, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		InstanceID: fmt.Sprintf("%s-%d", uuid.New().String(), os.Getpid()),

		Port:      GetEnv("PORT", DefaultPort),
		LogFormat: GetEnv("LOG_FORMAT", DefaultLogFormat),
		LogLevel:  GetEnv("LOG_LEVEL", DefaultLogLevel),

		DatabaseURL:          GetEnv("DATABASE_URL", ""),
		DBAutoMigrate:        GetEnvBool("DB_AUTO_MIGRATE", false),
		DBMaxOpenConns:       GetEnvInt("DB_MAX_OPEN_CONNS", DefaultDBMaxOpenConns),
		DBMaxIdleConns:       GetEnvInt("DB_MAX_IDLE_CONNS", DefaultDBMaxIdleConns),
		DBConnMaxLifetimeMin: GetEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", DefaultDBConnMaxLifetimeMin),
		DBConnMaxIdleTimeMin: GetEnvInt("DB_CONN_MAX_IDLE_TIME_MINUTES", DefaultDBConnMaxIdleTimeMin),

		SMTPHost:     GetEnv("SMTP_HOST", ""),
		SMTPPort:     GetEnv("SMTP_PORT", DefaultSMTPPort),
		SMTPFrom:     GetEnv("SMTP_FROM", ""),
		SMTPPassword: GetEnv("SMTP_PASSWORD", ""),
		SMTPPoolSize: GetEnvInt("SMTP_POOL_SIZE", DefaultSMTPPoolSize),

		Lookback:        time.Duration(GetEnvInt("SWEEP_LOOKBACK_MINUTES", DefaultLookbackMinutes)) * time.Minute,
		Lookahead:       time.Duration(GetEnvInt("SWEEP_LOOKAHEAD_MINUTES", DefaultLookaheadMinutes)) * time.Minute,
		SweepBatchLimit: GetEnvInt("SWEEP_BATCH_LIMIT", DefaultSweepBatchLimit),

		SendRatePerSecond: GetEnvInt("SEND_RATE_PER_SECOND", DefaultSendRatePerSecond),

		TriggerToken: GetEnv("TRIGGER_TOKEN", ""),

		RedisAddr:     GetEnv("REDIS_ADDR", ""),
		RedisPassword: GetEnv("REDIS_PASSWORD", ""),

		MetricsIntervalSeconds: GetEnvInt("METRICS_INTERVAL_SECONDS", DefaultMetricsIntervalSeconds),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.SMTPHost == "" || cfg.SMTPFrom == "" {
		slog.Warn("email configuration incomplete, sends will fail",
			"smtp_host", cfg.SMTPHost, "smtp_from", cfg.SMTPFrom)
	}
	if cfg.SweepBatchLimit <= 0 {
		return nil, fmt.Errorf("SWEEP_BATCH_LIMIT must be positive, got %d", cfg.SweepBatchLimit)
	}
	if cfg.Lookback < 0 || cfg.Lookahead < 0 {
		return nil, fmt.Errorf("sweep window durations must not be negative")
	}

	return cfg, nil
}

// GetEnv retrieves an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt retrieves an integer environment variable or returns a default value
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		slog.Warn("invalid integer value, using default", "key", key, "default", defaultValue)
	}
	return defaultValue
}

// GetEnvBool retrieves a boolean environment variable or returns a default value
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		slog.Warn("invalid boolean value, using default", "key", key, "default", defaultValue)
	}
	return defaultValue
}
