// Package config provides application configuration loading from environment
// variables and .env files. It uses viper for flexible configuration
// management with sensible defaults.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all application configuration loaded from environment
// variables or a .env file. Priority: environment variables > .env > defaults.
type Config struct {
	AppEnv          string  // Application environment (dev, staging, prod)
	HTTPAddr        string  // HTTP server bind address (e.g., ":8080")
	MetricsAddr     string  // Metrics server bind address
	StoreType       string  // Storage backend type (postgres or memory)
	DatabaseDSN     string  // PostgreSQL connection string
	AdminAPIKey     string  // Admin API key for wheel config writes
	AdminAPIKeyHash string  // Optional bcrypt hash; takes precedence over AdminAPIKey
	RateLimitPerIP  int     // Spins per IP per minute
	LookupTimeoutMS int     // Ledger lookup timeout in milliseconds
	AuditQueueSize  int     // Abuse-guard audit queue buffer
	CooldownHours   float64 // Seed cooldown used when no wheel config exists yet
}

const defaultAdminKey = "admin-123"

// Load reads configuration from environment variables and .env (if present).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env") // optional; silently ignored if missing
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	setDefaults(v)

	return &Config{
		AppEnv:          v.GetString("APP_ENV"),
		HTTPAddr:        v.GetString("APP_HTTP_ADDR"),
		MetricsAddr:     v.GetString("METRICS_ADDR"),
		StoreType:       v.GetString("STORE_TYPE"),
		DatabaseDSN:     v.GetString("DB_DSN"),
		AdminAPIKey:     v.GetString("ADMIN_API_KEY"),
		AdminAPIKeyHash: v.GetString("ADMIN_API_KEY_HASH"),
		RateLimitPerIP:  v.GetInt("RATE_LIMIT_PER_IP"),
		LookupTimeoutMS: v.GetInt("LOOKUP_TIMEOUT_MS"),
		AuditQueueSize:  v.GetInt("AUDIT_QUEUE_SIZE"),
		CooldownHours:   v.GetFloat64("COOLDOWN_HOURS"),
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("APP_HTTP_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("STORE_TYPE", "memory")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("ADMIN_API_KEY", defaultAdminKey) // Change in production!
	v.SetDefault("ADMIN_API_KEY_HASH", "")
	v.SetDefault("RATE_LIMIT_PER_IP", 30)
	v.SetDefault("LOOKUP_TIMEOUT_MS", 3000)
	v.SetDefault("AUDIT_QUEUE_SIZE", 256)
	v.SetDefault("COOLDOWN_HOURS", 72)
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed [%s]: %s", e.Field, e.Message)
}

// Validate checks that the configuration is suitable to start with, and in
// non-dev environments enforces production-safety constraints.
func (c *Config) Validate() error {
	if c.StoreType != "memory" && c.StoreType != "postgres" {
		return ValidationError{
			Field:   "STORE_TYPE",
			Message: fmt.Sprintf("must be 'memory' or 'postgres', got '%s'", c.StoreType),
		}
	}

	if c.StoreType == "postgres" && c.DatabaseDSN == "" {
		return ValidationError{
			Field:   "DB_DSN",
			Message: "database DSN is required when STORE_TYPE=postgres",
		}
	}

	if c.HTTPAddr == "" {
		return ValidationError{
			Field:   "APP_HTTP_ADDR",
			Message: "HTTP server address cannot be empty",
		}
	}

	if c.RateLimitPerIP <= 0 {
		return ValidationError{
			Field:   "RATE_LIMIT_PER_IP",
			Message: "rate limit must be positive",
		}
	}

	if c.AppEnv != "dev" && c.AdminAPIKeyHash == "" && c.AdminAPIKey == defaultAdminKey {
		return ValidationError{
			Field:   "ADMIN_API_KEY",
			Message: "default admin key must not be used outside dev",
		}
	}

	return nil
}
