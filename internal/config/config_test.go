package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ENVIRONMENT", "LOG_LEVEL", "INVENTORY_API_URL", "INVENTORY_API_TIMEOUT",
		"DEFAULT_PAGE_SIZE", "MOVEMENT_CACHE_TTL", "MOVEMENT_CACHE_CLEANUP_INTERVAL",
		"NOTIFICATION_BUFFER", "METRICS_EXPORTER", "METRICS_PORT", "VIEW_IDLE_TIMEOUT",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "http://localhost:3001/api", cfg.InventoryAPIURL)
	assert.Equal(t, 30*time.Second, cfg.InventoryAPITimeout)
	assert.Equal(t, 20, cfg.DefaultPageSize)
	assert.Equal(t, 2*time.Minute, cfg.MovementCacheTTL)
	assert.Equal(t, 30*time.Second, cfg.MovementCacheCleanupInterval)
	assert.Equal(t, 32, cfg.NotificationBuffer)
	assert.Equal(t, "scraper", cfg.MetricsExporter)
	assert.Equal(t, "9080", cfg.MetricsPort)
	assert.Equal(t, 30*time.Minute, cfg.ViewIdleTimeout)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("INVENTORY_API_URL", "https://inventory.example.com/api")
	t.Setenv("INVENTORY_API_TIMEOUT", "5s")
	t.Setenv("DEFAULT_PAGE_SIZE", "50")
	t.Setenv("METRICS_EXPORTER", "none")

	cfg := FromEnv()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "https://inventory.example.com/api", cfg.InventoryAPIURL)
	assert.Equal(t, 5*time.Second, cfg.InventoryAPITimeout)
	assert.Equal(t, 50, cfg.DefaultPageSize)
	assert.Equal(t, "none", cfg.MetricsExporter)
}

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DEFAULT_PAGE_SIZE", "lots")
	t.Setenv("NOTIFICATION_BUFFER", "-3")
	t.Setenv("VIEW_IDLE_TIMEOUT", "soon")

	cfg := FromEnv()

	assert.Equal(t, 20, cfg.DefaultPageSize)
	assert.Equal(t, 32, cfg.NotificationBuffer)
	assert.Equal(t, 30*time.Minute, cfg.ViewIdleTimeout)
}
