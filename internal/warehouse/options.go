// Package warehouse caches the warehouse reference list used to build
// filter choices.
package warehouse

import (
	"context"
	"log/slog"
	"sync"

	"inventory-view-sync/internal/fetch"
	"inventory-view-sync/internal/models"
	"inventory-view-sync/internal/refresh"
)

// FetcherName labels the option cache in logs and metrics
const FetcherName = "warehouses"

// Source is the part of the inventory API the cache reads from
type Source interface {
	ListWarehouses(ctx context.Context) ([]models.Warehouse, error)
}

// Snapshot is the option list exposed to the presentation layer
type Snapshot struct {
	Options []models.Option `json:"options"`
	Loading bool            `json:"loading"`
}

// OptionCache loads the options at mount and on every refresh bump. A failed
// load leaves an empty option list and is never reported to the user.
type OptionCache struct {
	source      Source
	recorder    fetch.Recorder
	logger      *slog.Logger
	seq         *fetch.Sequencer
	unsubscribe func()

	mu        sync.Mutex
	version   uint64
	issued    bool
	issuedFor uint64
	loading   bool
	options   []models.Option
}

// NewOptionCache creates an empty cache subscribed to the refresh channel
func NewOptionCache(ctx context.Context, source Source, channel *refresh.Broadcaster, recorder fetch.Recorder) *OptionCache {
	if recorder == nil {
		recorder = fetch.NopRecorder{}
	}
	c := &OptionCache{
		source:   source,
		recorder: recorder,
		logger:   slog.Default().With("fetcher", FetcherName),
		seq:      fetch.NewSequencer(ctx),
		version:  channel.Version(),
		options:  []models.Option{},
	}
	c.unsubscribe = channel.Subscribe(c.onRefresh)
	return c
}

// Start issues the mount fetch
func (c *OptionCache) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconcileLocked()
}

// Snapshot returns a copy of the options
func (c *OptionCache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	options := make([]models.Option, len(c.options))
	copy(options, c.options)
	return Snapshot{Options: options, Loading: c.loading}
}

// Contains reports whether id is one of the loaded options
func (c *OptionCache) Contains(id models.WarehouseID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, o := range c.options {
		if o.Value == id {
			return true
		}
	}
	return false
}

// Wait blocks until all issued fetches have resolved
func (c *OptionCache) Wait() {
	c.seq.Wait()
}

// Close unsubscribes and aborts the in-flight fetch
func (c *OptionCache) Close() {
	c.unsubscribe()
	c.seq.Stop()
}

func (c *OptionCache) onRefresh(version uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Bumps can be delivered out of order
	if version <= c.version {
		return
	}
	c.version = version
	c.reconcileLocked()
}

func (c *OptionCache) reconcileLocked() {
	if c.issued && c.issuedFor == c.version {
		return
	}
	if c.seq.Stopped() {
		return
	}

	c.issued = true
	c.issuedFor = c.version
	ticket := c.seq.Begin()
	c.loading = true

	c.seq.Go(ticket, func(ctx context.Context) {
		warehouses, err := c.source.ListWarehouses(ctx)
		c.resolve(ticket, warehouses, err)
	})
}

func (c *OptionCache) resolve(ticket fetch.Ticket, warehouses []models.Warehouse, err error) {
	ctx := context.WithoutCancel(ticket.Ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seq.Stopped() {
		return
	}
	if !c.seq.Current(ticket.Epoch) {
		c.recorder.RecordFetch(ctx, FetcherName, fetch.OutcomeSuperseded, ticket.Elapsed())
		return
	}

	c.recorder.RecordFetch(ctx, FetcherName, fetch.Classify(err), ticket.Elapsed())
	c.loading = false

	if err != nil {
		c.logger.Debug("Warehouse options unavailable", "error", err)
		c.options = []models.Option{}
		return
	}

	options := make([]models.Option, 0, len(warehouses))
	for _, w := range warehouses {
		options = append(options, models.Option{Value: w.ID, Label: w.Name})
	}
	c.options = options
}
