package view

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"inventory-view-sync/internal/session"
)

// ErrViewNotFound is returned for an unknown or unmounted view id
var ErrViewNotFound = errors.New("view not found")

// Factory creates the API a new view talks to on behalf of sess
type Factory func(sess *session.Session) API

// Registry keys mounted views by id and unmounts idle ones
type Registry struct {
	ctx         context.Context
	factory     Factory
	opts        Options
	idleTimeout time.Duration

	mu    sync.RWMutex
	views map[string]*View
}

// NewRegistry creates an empty registry. Views are derived from ctx.
func NewRegistry(ctx context.Context, factory Factory, opts Options, idleTimeout time.Duration) *Registry {
	return &Registry{
		ctx:         ctx,
		factory:     factory,
		opts:        opts,
		idleTimeout: idleTimeout,
		views:       make(map[string]*View),
	}
}

// Mount creates a view under a fresh id, authenticated with token
func (r *Registry) Mount(token string) (*View, error) {
	sess, err := session.NewWithToken(token)
	if err != nil {
		return nil, err
	}

	opts := r.opts
	opts.Session = sess
	id := uuid.New().String()
	v := New(r.ctx, id, r.factory(sess), opts)

	r.mu.Lock()
	r.views[id] = v
	r.mu.Unlock()

	return v, nil
}

// Get returns the view mounted under id
func (r *Registry) Get(id string) (*View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.views[id]
	if !ok {
		return nil, ErrViewNotFound
	}
	return v, nil
}

// Unmount closes and forgets the view mounted under id
func (r *Registry) Unmount(id string) error {
	r.mu.Lock()
	v, ok := r.views[id]
	delete(r.views, id)
	r.mu.Unlock()

	if !ok {
		return ErrViewNotFound
	}
	v.Close()
	return nil
}

// Len returns the number of mounted views
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.views)
}

// ReapIdle unmounts every view idle since before now minus the idle timeout
// and returns how many were removed
func (r *Registry) ReapIdle(now time.Time) int {
	cutoff := now.Add(-r.idleTimeout)

	r.mu.Lock()
	var idle []*View
	for id, v := range r.views {
		if v.LastSeen().Before(cutoff) {
			idle = append(idle, v)
			delete(r.views, id)
		}
	}
	r.mu.Unlock()

	for _, v := range idle {
		v.Close()
	}
	if len(idle) > 0 {
		slog.Info("Unmounted idle views", "count", len(idle), "remaining", r.Len())
	}
	return len(idle)
}

// RunReaper reaps idle views every interval until ctx is done
func (r *Registry) RunReaper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			r.ReapIdle(now)
		}
	}
}

// Close unmounts every view
func (r *Registry) Close() {
	r.mu.Lock()
	views := r.views
	r.views = make(map[string]*View)
	r.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
}
