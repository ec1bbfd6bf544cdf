package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"inventory-view-sync/internal/logging"
)

// Config holds all configuration for the application
type Config struct {
	Port                         string
	Environment                  string
	LogLevel                     string
	InventoryAPIURL              string
	InventoryAPITimeout          time.Duration
	DefaultPageSize              int
	MovementCacheTTL             time.Duration
	MovementCacheCleanupInterval time.Duration
	NotificationBuffer           int
	MetricsExporter              string
	MetricsPort                  string
	ViewIdleTimeout              time.Duration
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() *Config {
	// Existing environment variables take precedence over .env
	err := godotenv.Load()
	if err != nil {
		slog.Warn("Could not load .env file, continuing with system environment variables only", "error", err)
	} else {
		slog.Info("Successfully loaded .env file")
	}

	config := FromEnv()

	logging.SetupLogging(config.LogLevel)

	slog.Info("Configuration loaded",
		"port", config.Port,
		"environment", config.Environment,
		"log_level", config.LogLevel,
		"inventory_api_url", config.InventoryAPIURL,
		"inventory_api_timeout", config.InventoryAPITimeout.String(),
		"default_page_size", config.DefaultPageSize,
		"movement_cache_ttl", config.MovementCacheTTL.String(),
		"movement_cache_cleanup_interval", config.MovementCacheCleanupInterval.String(),
		"notification_buffer", config.NotificationBuffer,
		"metrics_exporter", config.MetricsExporter,
		"metrics_port", config.MetricsPort,
		"view_idle_timeout", config.ViewIdleTimeout.String())

	return config
}

// FromEnv reads the configuration from the environment only
func FromEnv() *Config {
	return &Config{
		Port:                         getEnvWithDefault("PORT", "8080"),
		Environment:                  getEnvWithDefault("ENVIRONMENT", "development"),
		LogLevel:                     getEnvWithDefault("LOG_LEVEL", "info"),
		InventoryAPIURL:              getEnvWithDefault("INVENTORY_API_URL", "http://localhost:3001/api"),
		InventoryAPITimeout:          getDurationWithDefault("INVENTORY_API_TIMEOUT", 30*time.Second),
		DefaultPageSize:              getIntWithDefault("DEFAULT_PAGE_SIZE", 20),
		MovementCacheTTL:             getDurationWithDefault("MOVEMENT_CACHE_TTL", 2*time.Minute),
		MovementCacheCleanupInterval: getDurationWithDefault("MOVEMENT_CACHE_CLEANUP_INTERVAL", 30*time.Second),
		NotificationBuffer:           getIntWithDefault("NOTIFICATION_BUFFER", 32),
		MetricsExporter:              getEnvWithDefault("METRICS_EXPORTER", "scraper"),
		MetricsPort:                  getEnvWithDefault("METRICS_PORT", "9080"),
		ViewIdleTimeout:              getDurationWithDefault("VIEW_IDLE_TIMEOUT", 30*time.Minute),
	}
}

// getEnvWithDefault gets an environment variable with a default fallback
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntWithDefault(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		slog.Warn("Invalid integer configuration, using default", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		slog.Warn("Invalid duration configuration, using default", "key", key, "value", raw, "default", defaultValue.String())
		return defaultValue
	}
	return value
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
