// Package movement loads the stock movement history of expanded rows.
package movement

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"inventory-view-sync/internal/apierror"
	"inventory-view-sync/internal/cache"
	"inventory-view-sync/internal/fetch"
	"inventory-view-sync/internal/models"
	"inventory-view-sync/internal/notify"
)

// FetcherName labels movement loads in logs, notifications and metrics
const FetcherName = "movements"

// Source is the part of the inventory API the history reads from
type Source interface {
	ListMovements(ctx context.Context, sku string) ([]models.Movement, error)
}

// Snapshot is the movement list of one SKU
type Snapshot struct {
	SKU       string            `json:"sku"`
	Movements []models.Movement `json:"movements"`
	Status    fetch.Status      `json:"status"`
	Loading   bool              `json:"loading"`
}

// skuState keeps the last good list outside the expiring cache, which only
// decides whether a load is needed
type skuState struct {
	seq    *fetch.Sequencer
	status fetch.Status
	last   []models.Movement
}

// History caches movement lists per SKU. Each SKU has its own epoch so a
// slow load for one row never overwrites a newer load for the same row.
type History struct {
	ctx      context.Context
	source   Source
	notifier notify.Notifier
	recorder fetch.Recorder
	cache    *cache.TTLCache[[]models.Movement]

	mu   sync.Mutex
	skus map[string]*skuState
}

// NewHistory creates an empty history whose entries expire after ttl
func NewHistory(ctx context.Context, source Source, notifier notify.Notifier, recorder fetch.Recorder, ttl, cleanupInterval time.Duration) *History {
	if recorder == nil {
		recorder = fetch.NopRecorder{}
	}
	return &History{
		ctx:      ctx,
		source:   source,
		notifier: notifier,
		recorder: recorder,
		cache:    cache.NewTTLCache[[]models.Movement](FetcherName, ttl, cleanupInterval),
		skus:     make(map[string]*skuState),
	}
}

// Load fetches the movements of sku. Without force a fresh cached list is
// reused and no request is issued.
func (h *History) Load(sku string, force bool) error {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return apierror.Validation("sku is required")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	state := h.stateLocked(sku)
	if !force {
		if _, ok := h.cache.Get(sku); ok {
			return nil
		}
		if state.status == fetch.StatusLoading {
			return nil
		}
	}
	if state.seq.Stopped() {
		return nil
	}

	ticket := state.seq.Begin()
	state.status = fetch.StatusLoading

	state.seq.Go(ticket, func(ctx context.Context) {
		movements, err := h.source.ListMovements(ctx, sku)
		h.resolve(sku, state, ticket, movements, err)
	})
	return nil
}

// Snapshot returns the movements last loaded for sku. An expired list is
// still shown until a load replaces it.
func (h *History) Snapshot(sku string) Snapshot {
	sku = strings.TrimSpace(sku)

	h.mu.Lock()
	status := fetch.StatusIdle
	var out []models.Movement
	if state, ok := h.skus[sku]; ok {
		status = state.status
		out = make([]models.Movement, len(state.last))
		copy(out, state.last)
	}
	h.mu.Unlock()

	if out == nil {
		out = []models.Movement{}
	}

	return Snapshot{
		SKU:       sku,
		Movements: out,
		Status:    status,
		Loading:   status == fetch.StatusLoading,
	}
}

// Forget drops the list loaded for sku
func (h *History) Forget(sku string) {
	sku = strings.TrimSpace(sku)
	h.cache.Delete(sku)

	h.mu.Lock()
	if state, ok := h.skus[sku]; ok {
		state.last = nil
	}
	h.mu.Unlock()
}

// Wait blocks until every issued load has resolved
func (h *History) Wait() {
	h.mu.Lock()
	states := make([]*skuState, 0, len(h.skus))
	for _, s := range h.skus {
		states = append(states, s)
	}
	h.mu.Unlock()

	for _, s := range states {
		s.seq.Wait()
	}
}

// Close aborts in-flight loads and stops the cache
func (h *History) Close() {
	h.mu.Lock()
	for _, s := range h.skus {
		s.seq.Stop()
	}
	h.mu.Unlock()
	h.cache.Stop()
}

func (h *History) stateLocked(sku string) *skuState {
	state, ok := h.skus[sku]
	if !ok {
		state = &skuState{seq: fetch.NewSequencer(h.ctx), status: fetch.StatusIdle}
		h.skus[sku] = state
	}
	return state
}

func (h *History) resolve(sku string, state *skuState, ticket fetch.Ticket, movements []models.Movement, err error) {
	ctx := context.WithoutCancel(ticket.Ctx)

	h.mu.Lock()
	defer h.mu.Unlock()

	if state.seq.Stopped() {
		return
	}
	if !state.seq.Current(ticket.Epoch) {
		slog.Debug("Discarding superseded movement response", "sku", sku, "epoch", ticket.Epoch)
		h.recorder.RecordFetch(ctx, FetcherName, fetch.OutcomeSuperseded, ticket.Elapsed())
		return
	}

	outcome := fetch.Classify(err)
	h.recorder.RecordFetch(ctx, FetcherName, outcome, ticket.Elapsed())

	if err != nil {
		state.status = fetch.StatusError
		if outcome == fetch.OutcomeAuth {
			return
		}
		slog.Warn("Movement fetch failed", "sku", sku, "error", err)
		if h.notifier != nil {
			h.notifier.Notify(notify.FetchFailed(FetcherName))
		}
		return
	}

	if movements == nil {
		movements = []models.Movement{}
	}
	h.cache.Set(sku, movements)
	state.last = movements
	state.status = fetch.StatusSuccess
}
