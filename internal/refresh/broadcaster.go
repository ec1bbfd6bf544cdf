// Package refresh carries the "authoritative data changed" signal between
// otherwise independent fetchers of one view.
package refresh

import (
	"log/slog"
	"sync"
)

// Broadcaster is a monotonic data version with synchronous observers. It
// carries no payload: observers refetch from their own state.
type Broadcaster struct {
	mu        sync.Mutex
	version   uint64
	observers map[int]func(version uint64)
	nextID    int
}

// NewBroadcaster creates a broadcaster at version 0
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		observers: make(map[int]func(uint64)),
	}
}

// Version returns the current data version
func (b *Broadcaster) Version() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

// Subscribe registers fn to be called with the new version after every Bump.
// The returned function unsubscribes.
func (b *Broadcaster) Subscribe(fn func(version uint64)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.observers[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.observers, id)
		b.mu.Unlock()
	}
}

// Bump increments the version and notifies every observer. Observers run on
// the caller's goroutine, outside the lock, in no particular order.
func (b *Broadcaster) Bump() uint64 {
	b.mu.Lock()
	b.version++
	version := b.version
	observers := make([]func(uint64), 0, len(b.observers))
	for _, fn := range b.observers {
		observers = append(observers, fn)
	}
	b.mu.Unlock()

	slog.Debug("Data version bumped", "version", version, "observers", len(observers))

	for _, fn := range observers {
		fn(version)
	}
	return version
}
