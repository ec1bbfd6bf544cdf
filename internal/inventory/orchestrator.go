// Package inventory owns the paginated, filterable item listing and keeps it
// reconciled with the inventory API.
package inventory

import (
	"context"
	"log/slog"
	"sync"

	"inventory-view-sync/internal/apierror"
	"inventory-view-sync/internal/client"
	"inventory-view-sync/internal/fetch"
	"inventory-view-sync/internal/filter"
	"inventory-view-sync/internal/models"
	"inventory-view-sync/internal/notify"
	"inventory-view-sync/internal/pagination"
	"inventory-view-sync/internal/refresh"
)

// FetcherName labels the item listing in logs, notifications and metrics
const FetcherName = "items"

// Lister is the part of the inventory API the orchestrator reads from
type Lister interface {
	ListItems(ctx context.Context, query client.ListQuery) (*models.ItemPage, error)
}

// Params is the tuple a listing is derived from
type Params struct {
	Page           int
	PageSize       int
	Query          filter.Value
	RefreshVersion uint64
}

// Equal compares params using the canonical form of the query
func (p Params) Equal(o Params) bool {
	return p.Page == o.Page &&
		p.PageSize == o.PageSize &&
		p.RefreshVersion == o.RefreshVersion &&
		p.Query.Key() == o.Query.Key()
}

// ListQuery builds the API parameters. The name is sent only for an item name
// query and the warehouse ids only for a warehouse query.
func (p Params) ListQuery() client.ListQuery {
	q := client.ListQuery{Page: p.Page, PageSize: p.PageSize}
	v := p.Query.Normalize()
	switch v.Kind {
	case filter.KindWarehouseSet:
		q.WarehouseIDs = v.Warehouses
	default:
		q.Name = v.Text
	}
	return q
}

// Decision is the result of reconciling the requested params against the
// params of the last issued fetch
type Decision int

const (
	DecisionNoop Decision = iota
	DecisionFetch
)

// Reconcile decides whether next needs a fetch. issued is nil before the
// first fetch.
func Reconcile(issued *Params, next Params) Decision {
	if issued != nil && issued.Equal(next) {
		return DecisionNoop
	}
	return DecisionFetch
}

// Snapshot is the state exposed to the presentation layer
type Snapshot struct {
	Items         []models.InventoryItem `json:"items"`
	Status        fetch.Status           `json:"status"`
	Loading       bool                   `json:"loading"`
	FilteredCount int                    `json:"filteredCount"`
	TotalCount    int                    `json:"totalCount"`
	CurrentPage   int                    `json:"currentPage"`
	PageSize      int                    `json:"pageSize"`
	Window        pagination.Window      `json:"pagination"`
	Query         filter.Value           `json:"query"`
}

// Orchestrator is the item listing state machine. Every parameter change
// mints a new epoch and only the response of the latest epoch is applied.
type Orchestrator struct {
	lister      Lister
	notifier    notify.Notifier
	recorder    fetch.Recorder
	logger      *slog.Logger
	seq         *fetch.Sequencer
	unsubscribe func()

	mu            sync.Mutex
	params        Params
	issued        *Params
	status        fetch.Status
	items         []models.InventoryItem
	filteredCount int
	totalCount    int
	lastErr       error
}

// NewOrchestrator creates an idle orchestrator subscribed to the refresh
// channel. Start issues the mount fetch.
func NewOrchestrator(ctx context.Context, lister Lister, channel *refresh.Broadcaster, notifier notify.Notifier, recorder fetch.Recorder, pageSize int) *Orchestrator {
	if !pagination.ValidPageSize(pageSize) {
		pageSize = pagination.DefaultPageSize
	}
	if recorder == nil {
		recorder = fetch.NopRecorder{}
	}

	o := &Orchestrator{
		lister:   lister,
		notifier: notifier,
		recorder: recorder,
		logger:   slog.Default().With("fetcher", FetcherName),
		seq:      fetch.NewSequencer(ctx),
		status:   fetch.StatusIdle,
		items:    []models.InventoryItem{},
		params: Params{
			Page:           1,
			PageSize:       pageSize,
			Query:          filter.Empty(filter.KindItemName),
			RefreshVersion: channel.Version(),
		},
	}
	o.unsubscribe = channel.Subscribe(o.onRefresh)
	return o
}

// Start issues the initial fetch
func (o *Orchestrator) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reconcileLocked()
}

// SetPage handles a page change from the pagination controls. A page size
// different from the current one sends the user back to page 1.
func (o *Orchestrator) SetPage(page, pageSize int) error {
	if page < 1 {
		return apierror.Validation("page must be at least 1")
	}
	if !pagination.ValidPageSize(pageSize) {
		return apierror.Validation("unsupported page size")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if pageSize != o.params.PageSize {
		page = 1
	}
	o.params.Page = page
	o.params.PageSize = pageSize
	o.reconcileLocked()
	return nil
}

// SetPageSize changes the page size and resets the page to 1
func (o *Orchestrator) SetPageSize(size int) error {
	if !pagination.ValidPageSize(size) {
		return apierror.Validation("unsupported page size")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.params.Page = 1
	o.params.PageSize = size
	o.reconcileLocked()
	return nil
}

// SetQuery applies the committed filter value. The current page is kept and
// clamped once the narrowed total is known.
func (o *Orchestrator) SetQuery(query filter.Value) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.params.Query = query.Normalize()
	o.reconcileLocked()
}

// Refetch reissues the listing for the current params
func (o *Orchestrator) Refetch() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.issueLocked()
}

// Snapshot returns a copy of the current state
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	items := make([]models.InventoryItem, len(o.items))
	copy(items, o.items)

	return Snapshot{
		Items:         items,
		Status:        o.status,
		Loading:       o.status == fetch.StatusLoading,
		FilteredCount: o.filteredCount,
		TotalCount:    o.totalCount,
		CurrentPage:   o.params.Page,
		PageSize:      o.params.PageSize,
		Window:        pagination.ComputeWindow(o.totalCount, o.params.PageSize, o.params.Page),
		Query:         o.params.Query,
	}
}

// Params returns the requested params
func (o *Orchestrator) Params() Params {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.params
}

// Err returns the error of the last applied fetch, nil after a success
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Wait blocks until all issued fetches have resolved
func (o *Orchestrator) Wait() {
	o.seq.Wait()
}

// Close unsubscribes from the refresh channel and aborts in-flight fetches
func (o *Orchestrator) Close() {
	o.unsubscribe()
	o.seq.Stop()
}

func (o *Orchestrator) onRefresh(version uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	// Bumps can be delivered out of order
	if version <= o.params.RefreshVersion {
		return
	}
	o.params.RefreshVersion = version
	o.reconcileLocked()
}

func (o *Orchestrator) reconcileLocked() {
	if Reconcile(o.issued, o.params) == DecisionNoop {
		return
	}
	o.issueLocked()
}

func (o *Orchestrator) issueLocked() {
	if o.seq.Stopped() {
		return
	}

	params := o.params
	o.issued = &params
	ticket := o.seq.Begin()
	o.status = fetch.StatusLoading

	o.logger.Debug("Issuing item fetch",
		"epoch", ticket.Epoch,
		"page", params.Page,
		"page_size", params.PageSize,
		"query", params.Query.Key())

	o.seq.Go(ticket, func(ctx context.Context) {
		page, err := o.lister.ListItems(ctx, params.ListQuery())
		o.resolve(ticket, page, err)
	})
}

func (o *Orchestrator) resolve(ticket fetch.Ticket, page *models.ItemPage, err error) {
	ctx := context.WithoutCancel(ticket.Ctx)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.seq.Stopped() {
		return
	}
	if !o.seq.Current(ticket.Epoch) {
		o.logger.Debug("Discarding superseded item response", "epoch", ticket.Epoch)
		o.recorder.RecordFetch(ctx, FetcherName, fetch.OutcomeSuperseded, ticket.Elapsed())
		return
	}

	outcome := fetch.Classify(err)
	o.recorder.RecordFetch(ctx, FetcherName, outcome, ticket.Elapsed())

	if err != nil {
		o.status = fetch.StatusError
		o.lastErr = err
		if outcome == fetch.OutcomeAuth {
			o.logger.Info("Item fetch unauthorized, deferring to session", "epoch", ticket.Epoch)
			return
		}
		o.logger.Warn("Item fetch failed", "epoch", ticket.Epoch, "error", err)
		if o.notifier != nil {
			o.notifier.Notify(notify.FetchFailed(FetcherName))
		}
		return
	}

	o.items = page.Items
	o.totalCount = page.TotalCount
	o.filteredCount = len(page.Items)
	o.status = fetch.StatusSuccess
	o.lastErr = nil

	if clamped := pagination.ClampPage(o.params.Page, o.totalCount, o.params.PageSize); clamped != o.params.Page {
		o.logger.Info("Clamping page to last available page",
			"page", o.params.Page,
			"clamped_page", clamped,
			"total_count", o.totalCount)
		o.params.Page = clamped
		o.reconcileLocked()
	}
}
