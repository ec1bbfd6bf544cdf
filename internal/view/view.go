// Package view composes one mounted inventory view: filter state, the
// refresh channel and every fetcher that reacts to it.
package view

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"inventory-view-sync/internal/dashboard"
	"inventory-view-sync/internal/fetch"
	"inventory-view-sync/internal/filter"
	"inventory-view-sync/internal/inventory"
	"inventory-view-sync/internal/models"
	"inventory-view-sync/internal/movement"
	"inventory-view-sync/internal/notify"
	"inventory-view-sync/internal/pagination"
	"inventory-view-sync/internal/refresh"
	"inventory-view-sync/internal/session"
	"inventory-view-sync/internal/warehouse"
)

// API is everything a view needs from the inventory API
type API interface {
	inventory.Lister
	dashboard.Source
	warehouse.Source
	movement.Source
	CreateItem(ctx context.Context, req models.CreateItemRequest) (*models.MessageResponse, error)
	UpdateItem(ctx context.Context, sku string, req models.UpdateItemRequest) (*models.MessageResponse, error)
	PostMovement(ctx context.Context, req models.MovementRequest) (*models.MessageResponse, error)
}

// Options tunes a mount
type Options struct {
	PageSize                     int
	NotificationBuffer           int
	MovementCacheTTL             time.Duration
	MovementCacheCleanupInterval time.Duration
	Recorder                     fetch.Recorder
	// Session, when set, is watched for invalidation
	Session *session.Session
}

func (o Options) withDefaults() Options {
	if o.PageSize == 0 {
		o.PageSize = pagination.DefaultPageSize
	}
	if o.NotificationBuffer == 0 {
		o.NotificationBuffer = 32
	}
	if o.MovementCacheTTL == 0 {
		o.MovementCacheTTL = 2 * time.Minute
	}
	if o.MovementCacheCleanupInterval == 0 {
		o.MovementCacheCleanupInterval = 30 * time.Second
	}
	if o.Recorder == nil {
		o.Recorder = fetch.NopRecorder{}
	}
	return o
}

// FilterSnapshot is the search bar state
type FilterSnapshot struct {
	Kind            filter.Kind  `json:"kind"`
	Draft           filter.Value `json:"draft"`
	Committed       bool         `json:"committed"`
	HasActiveFilter bool         `json:"hasActiveFilter"`
	SearchDisabled  bool         `json:"searchDisabled"`
}

// Snapshot is everything the presentation layer renders
type Snapshot struct {
	ID              string             `json:"id"`
	Items           inventory.Snapshot `json:"items"`
	Dashboard       dashboard.Snapshot `json:"dashboard"`
	Warehouses      warehouse.Snapshot `json:"warehouses"`
	Filter          FilterSnapshot     `json:"filter"`
	PageSizeOptions []int              `json:"pageSizeOptions"`
	RefreshVersion  uint64             `json:"refreshVersion"`
	SessionExpired  bool               `json:"sessionExpired"`
}

// View is one mount of the inventory screen
type View struct {
	id     string
	api    API
	logger *slog.Logger
	cancel context.CancelFunc

	channel       *refresh.Broadcaster
	items         *inventory.Orchestrator
	dashboard     *dashboard.Fetcher
	warehouses    *warehouse.OptionCache
	movements     *movement.History
	notifications *notify.Queue
	session       *session.Session
	unhook        func()

	mu             sync.Mutex
	filter         *filter.State
	lastSeen       time.Time
	sessionExpired bool
	closed         bool
}

// New mounts a view and issues the mount fetches of the listing, the
// dashboard and the warehouse options
func New(ctx context.Context, id string, api API, opts Options) *View {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(ctx)

	channel := refresh.NewBroadcaster()
	queue := notify.NewQueue(opts.NotificationBuffer)

	v := &View{
		id:            id,
		api:           api,
		logger:        slog.Default().With("view_id", id),
		cancel:        cancel,
		channel:       channel,
		notifications: queue,
		filter:        filter.NewState(),
		lastSeen:      time.Now(),
		session:       opts.Session,
		unhook:        func() {},
	}
	if v.session != nil {
		v.unhook = v.session.OnInvalidated(v.onSessionLost)
	}
	v.items = inventory.NewOrchestrator(ctx, api, channel, queue, opts.Recorder, opts.PageSize)
	v.dashboard = dashboard.NewFetcher(ctx, api, channel, queue, opts.Recorder)
	v.warehouses = warehouse.NewOptionCache(ctx, api, channel, opts.Recorder)
	v.movements = movement.NewHistory(ctx, api, queue, opts.Recorder, opts.MovementCacheTTL, opts.MovementCacheCleanupInterval)

	v.items.Start()
	v.dashboard.Start()
	v.warehouses.Start()

	v.logger.Info("View mounted", "page_size", opts.PageSize)
	return v
}

// ID returns the mount id
func (v *View) ID() string {
	return v.id
}

// RenewSession installs a fresh access token after the user signs in again
func (v *View) RenewSession(token string) error {
	if v.session == nil {
		return nil
	}
	if token == v.session.Token() {
		return nil
	}
	if err := v.session.SetToken(token); err != nil {
		return err
	}

	v.mu.Lock()
	v.sessionExpired = false
	v.mu.Unlock()

	v.logger.Info("Session renewed")
	return nil
}

func (v *View) onSessionLost(reason string) {
	v.mu.Lock()
	v.sessionExpired = true
	v.mu.Unlock()

	v.logger.Warn("Session lost, sign-in required", "reason", reason)
}

// OnSearch commits value as the active query
func (v *View) OnSearch(value filter.Value) error {
	if _, err := filter.ParseKind(string(value.Kind)); err != nil {
		return validationError(err.Error())
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.touchLocked()

	v.filter.Commit(value)
	v.items.SetQuery(v.filter.Query())
	return nil
}

// OnDraft records provisional search input. It never issues a query.
func (v *View) OnDraft(value filter.Value) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.touchLocked()

	switch value.Kind {
	case filter.KindWarehouseSet:
		v.filter.SetDraftWarehouses(value.Warehouses)
	default:
		v.filter.SetDraftText(value.Text)
	}
}

// OnFilterKind switches the search dimension, dropping the committed value
func (v *View) OnFilterKind(kind filter.Kind) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.touchLocked()

	v.filter.SetFilterKind(kind)
	v.items.SetQuery(v.filter.Query())
}

// OnReset restores the default search. Without a committed filter the
// listing is left alone.
func (v *View) OnReset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.touchLocked()

	active := v.filter.HasActiveFilter()
	v.filter.Reset()
	if !active {
		return
	}
	v.items.SetQuery(v.filter.Query())
}

// OnPageChange moves to page with pageSize
func (v *View) OnPageChange(page, pageSize int) error {
	v.touch()
	return v.items.SetPage(page, pageSize)
}

// OnPageSizeChange changes the page size and returns to page 1
func (v *View) OnPageSizeChange(size int) error {
	v.touch()
	return v.items.SetPageSize(size)
}

// OnRefresh bumps the refresh channel. Each subscribed fetcher refetches once.
func (v *View) OnRefresh() uint64 {
	v.touch()
	version := v.channel.Bump()
	v.logger.Debug("Refresh requested", "refresh_version", version)
	return version
}

// ExpandRow loads the movement history of sku unless a fresh copy is cached
func (v *View) ExpandRow(sku string) error {
	v.touch()
	return v.movements.Load(sku, false)
}

// Movements returns the movement history of sku
func (v *View) Movements(sku string) movement.Snapshot {
	v.touch()
	return v.movements.Snapshot(sku)
}

// Notifications drains pending notifications
func (v *View) Notifications() []notify.Notification {
	v.touch()
	return v.notifications.Drain()
}

// Snapshot returns the full render model
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	v.touchLocked()
	fs := FilterSnapshot{
		Kind:            v.filter.Kind(),
		Draft:           v.filter.Draft(),
		Committed:       v.filter.Committed(),
		HasActiveFilter: v.filter.HasActiveFilter(),
		SearchDisabled:  v.filter.SearchDisabled(),
	}
	expired := v.sessionExpired
	v.mu.Unlock()

	return Snapshot{
		ID:              v.id,
		Items:           v.items.Snapshot(),
		Dashboard:       v.dashboard.Snapshot(),
		Warehouses:      v.warehouses.Snapshot(),
		Filter:          fs,
		PageSizeOptions: append([]int(nil), pagination.PageSizeOptions...),
		RefreshVersion:  v.channel.Version(),
		SessionExpired:  expired,
	}
}

// LastSeen returns the time of the last interaction
func (v *View) LastSeen() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeen
}

// Wait blocks until every fetch issued so far has resolved
func (v *View) Wait() {
	v.items.Wait()
	v.dashboard.Wait()
	v.warehouses.Wait()
	v.movements.Wait()
}

// Close unmounts the view and aborts its in-flight fetches
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.mu.Unlock()

	v.unhook()
	v.items.Close()
	v.dashboard.Close()
	v.warehouses.Close()
	v.movements.Close()
	v.cancel()

	v.logger.Info("View unmounted")
}

func (v *View) touch() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.touchLocked()
}

func (v *View) touchLocked() {
	v.lastSeen = time.Now()
}
