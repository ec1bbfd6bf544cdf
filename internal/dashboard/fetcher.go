// Package dashboard keeps the summary counters shown above the listing.
package dashboard

import (
	"context"
	"log/slog"
	"sync"

	"inventory-view-sync/internal/fetch"
	"inventory-view-sync/internal/models"
	"inventory-view-sync/internal/notify"
	"inventory-view-sync/internal/refresh"
)

// FetcherName labels the dashboard in logs, notifications and metrics
const FetcherName = "dashboard"

// Source is the part of the inventory API the fetcher reads from
type Source interface {
	GetDashboard(ctx context.Context) (*models.DashboardAggregate, error)
}

// Snapshot is the dashboard state exposed to the presentation layer
type Snapshot struct {
	Aggregate *models.DashboardAggregate `json:"aggregate"`
	Status    fetch.Status               `json:"status"`
	Loading   bool                       `json:"loading"`
}

// Fetcher refetches the aggregate on mount and on every refresh bump. It
// follows the same epoch rule as the item listing and fails independently
// of it.
type Fetcher struct {
	source      Source
	notifier    notify.Notifier
	recorder    fetch.Recorder
	logger      *slog.Logger
	seq         *fetch.Sequencer
	unsubscribe func()

	mu        sync.Mutex
	version   uint64
	issued    bool
	issuedFor uint64
	status    fetch.Status
	aggregate *models.DashboardAggregate
	lastErr   error
}

// NewFetcher creates an idle fetcher subscribed to the refresh channel
func NewFetcher(ctx context.Context, source Source, channel *refresh.Broadcaster, notifier notify.Notifier, recorder fetch.Recorder) *Fetcher {
	if recorder == nil {
		recorder = fetch.NopRecorder{}
	}
	f := &Fetcher{
		source:   source,
		notifier: notifier,
		recorder: recorder,
		logger:   slog.Default().With("fetcher", FetcherName),
		seq:      fetch.NewSequencer(ctx),
		status:   fetch.StatusIdle,
		version:  channel.Version(),
	}
	f.unsubscribe = channel.Subscribe(f.onRefresh)
	return f
}

// Start issues the mount fetch
func (f *Fetcher) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconcileLocked()
}

// Refetch reissues the aggregate fetch
func (f *Fetcher) Refetch() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issueLocked()
}

// Snapshot returns the last applied aggregate and the fetch status
func (f *Fetcher) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	var aggregate *models.DashboardAggregate
	if f.aggregate != nil {
		a := *f.aggregate
		aggregate = &a
	}
	return Snapshot{
		Aggregate: aggregate,
		Status:    f.status,
		Loading:   f.status == fetch.StatusLoading,
	}
}

// Err returns the error of the last applied fetch
func (f *Fetcher) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Wait blocks until all issued fetches have resolved
func (f *Fetcher) Wait() {
	f.seq.Wait()
}

// Close unsubscribes and aborts the in-flight fetch
func (f *Fetcher) Close() {
	f.unsubscribe()
	f.seq.Stop()
}

func (f *Fetcher) onRefresh(version uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Bumps can be delivered out of order
	if version <= f.version {
		return
	}
	f.version = version
	f.reconcileLocked()
}

func (f *Fetcher) reconcileLocked() {
	if f.issued && f.issuedFor == f.version {
		return
	}
	f.issueLocked()
}

func (f *Fetcher) issueLocked() {
	if f.seq.Stopped() {
		return
	}

	f.issued = true
	f.issuedFor = f.version
	ticket := f.seq.Begin()
	f.status = fetch.StatusLoading

	f.seq.Go(ticket, func(ctx context.Context) {
		aggregate, err := f.source.GetDashboard(ctx)
		f.resolve(ticket, aggregate, err)
	})
}

func (f *Fetcher) resolve(ticket fetch.Ticket, aggregate *models.DashboardAggregate, err error) {
	ctx := context.WithoutCancel(ticket.Ctx)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.seq.Stopped() {
		return
	}
	if !f.seq.Current(ticket.Epoch) {
		f.logger.Debug("Discarding superseded dashboard response", "epoch", ticket.Epoch)
		f.recorder.RecordFetch(ctx, FetcherName, fetch.OutcomeSuperseded, ticket.Elapsed())
		return
	}

	outcome := fetch.Classify(err)
	f.recorder.RecordFetch(ctx, FetcherName, outcome, ticket.Elapsed())

	if err != nil {
		f.status = fetch.StatusError
		f.lastErr = err
		if outcome == fetch.OutcomeAuth {
			return
		}
		f.logger.Warn("Dashboard fetch failed", "epoch", ticket.Epoch, "error", err)
		if f.notifier != nil {
			f.notifier.Notify(notify.FetchFailed(FetcherName))
		}
		return
	}

	f.aggregate = aggregate
	f.status = fetch.StatusSuccess
	f.lastErr = nil
}
