package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Entry is a cached value with its expiration time
type Entry[V any] struct {
	Value     V
	ExpiresAt time.Time
}

// Stats summarizes the cache contents
type Stats struct {
	TotalEntries   int    `json:"total_entries"`
	ActiveEntries  int    `json:"active_entries"`
	ExpiredEntries int    `json:"expired_entries"`
	TTL            string `json:"ttl_duration"`
}

// TTLCache is a thread-safe cache whose entries expire after a fixed TTL
type TTLCache[V any] struct {
	name          string
	items         map[string]*Entry[V]
	mutex         sync.RWMutex
	ttl           time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

// NewTTLCache creates a cache and starts its cleanup goroutine
func NewTTLCache[V any](name string, ttl, cleanupInterval time.Duration) *TTLCache[V] {
	c := &TTLCache[V]{
		name:          name,
		items:         make(map[string]*Entry[V]),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(cleanupInterval),
		stopCleanup:   make(chan struct{}),
	}
	go c.cleanupExpiredEntries()

	slog.Debug("TTL cache initialized",
		"cache", name,
		"ttl", ttl.String(),
		"cleanup_interval", cleanupInterval.String())

	return c
}

// Set stores a value and restarts its TTL
func (c *TTLCache[V]) Set(key string, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = &Entry[V]{
		Value:     value,
		ExpiresAt: time.Now().Add(c.ttl),
	}
}

// Get returns the value for key if present and not expired
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var zero V
	entry, exists := c.items[key]
	if !exists {
		return zero, false
	}
	if time.Now().After(entry.ExpiresAt) {
		return zero, false
	}
	return entry.Value, true
}

// GetStale returns the value for key even if it has expired but has not yet
// been cleaned up
func (c *TTLCache[V]) GetStale(key string) (V, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.items[key]
	if !exists {
		var zero V
		return zero, false
	}
	return entry.Value, true
}

// Delete removes key
func (c *TTLCache[V]) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.items, key)
}

// Size returns the number of entries, expired ones included
func (c *TTLCache[V]) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.items)
}

// Clear removes all entries
func (c *TTLCache[V]) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	removed := len(c.items)
	c.items = make(map[string]*Entry[V])

	slog.Debug("Cache cleared", "cache", c.name, "removed_items", removed)
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (c *TTLCache[V]) Stop() {
	c.stopOnce.Do(func() {
		c.cleanupTicker.Stop()
		close(c.stopCleanup)
	})
}

// Stats returns entry counts
func (c *TTLCache[V]) Stats() Stats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := time.Now()
	stats := Stats{TotalEntries: len(c.items), TTL: c.ttl.String()}
	for _, entry := range c.items {
		if now.Before(entry.ExpiresAt) {
			stats.ActiveEntries++
		} else {
			stats.ExpiredEntries++
		}
	}
	return stats
}

func (c *TTLCache[V]) cleanupExpiredEntries() {
	for {
		select {
		case <-c.cleanupTicker.C:
			c.performCleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *TTLCache[V]) performCleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	expired := 0
	for key, entry := range c.items {
		if now.After(entry.ExpiresAt) {
			delete(c.items, key)
			expired++
		}
	}

	if expired > 0 {
		slog.Debug("Cache cleanup completed",
			"cache", c.name,
			"expired_entries", expired,
			"remaining_entries", len(c.items))
	}
}
