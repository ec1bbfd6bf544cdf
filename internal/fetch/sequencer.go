// Package fetch holds the pieces shared by every epoch-guarded fetcher:
// the status machine, the epoch sequencer and outcome recording.
package fetch

import (
	"context"
	"sync"
	"time"

	"inventory-view-sync/internal/apierror"
)

// Status is the state of a fetcher
type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusLoading Status = "LOADING"
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

// Outcome labels how a fetch ended
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeError      Outcome = "error"
	OutcomeAuth       Outcome = "auth"
	OutcomeSuperseded Outcome = "superseded"
)

// Classify maps a fetch error to its outcome
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case apierror.IsAuth(err):
		return OutcomeAuth
	default:
		return OutcomeError
	}
}

// Recorder observes finished fetches
type Recorder interface {
	RecordFetch(ctx context.Context, fetcher string, outcome Outcome, duration time.Duration)
}

// NopRecorder discards every observation
type NopRecorder struct{}

// RecordFetch implements Recorder
func (NopRecorder) RecordFetch(context.Context, string, Outcome, time.Duration) {}

// Ticket identifies one issued fetch
type Ticket struct {
	Epoch    uint64
	Ctx      context.Context
	IssuedAt time.Time
	cancel   context.CancelFunc
}

// Elapsed returns the time since the fetch was issued
func (t Ticket) Elapsed() time.Duration {
	return time.Since(t.IssuedAt)
}

// Sequencer mints monotonically increasing epochs. Starting a new epoch
// cancels the context of the previous one, so a superseded request is also
// aborted at the transport.
type Sequencer struct {
	mu         sync.Mutex
	epoch      uint64
	cancel     context.CancelFunc
	base       context.Context
	baseCancel context.CancelFunc

	// inflight counts goroutines started by Go; idle is closed when it
	// drops back to zero and replaced when it leaves zero
	inflight int
	idle     chan struct{}
}

// NewSequencer creates a sequencer whose fetch contexts derive from parent
func NewSequencer(parent context.Context) *Sequencer {
	base, cancel := context.WithCancel(parent)
	return &Sequencer{
		base:       base,
		baseCancel: cancel,
	}
}

// Begin supersedes the in-flight fetch, if any, and mints a new ticket
func (s *Sequencer) Begin() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.epoch++
	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel

	return Ticket{
		Epoch:    s.epoch,
		Ctx:      ctx,
		IssuedAt: time.Now(),
		cancel:   cancel,
	}
}

// Current reports whether epoch is still the latest one
func (s *Sequencer) Current(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch
}

// Epoch returns the latest minted epoch
func (s *Sequencer) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Go runs fn for ticket on its own goroutine and releases the ticket's
// context when fn returns
func (s *Sequencer) Go(ticket Ticket, fn func(ctx context.Context)) {
	s.mu.Lock()
	if s.inflight == 0 {
		s.idle = make(chan struct{})
	}
	s.inflight++
	s.mu.Unlock()

	go func() {
		defer s.done()
		defer ticket.cancel()
		fn(ticket.Ctx)
	}()
}

func (s *Sequencer) done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.inflight == 0 {
		close(s.idle)
	}
}

// Wait blocks until no fetch started with Go is running. Fetches started
// while waiting, including ones started by a running fetch, are waited for
// too. It is safe to call concurrently with Go.
func (s *Sequencer) Wait() {
	s.mu.Lock()
	if s.inflight == 0 {
		s.mu.Unlock()
		return
	}
	idle := s.idle
	s.mu.Unlock()
	<-idle
}

// Stop aborts all in-flight fetches
func (s *Sequencer) Stop() {
	s.baseCancel()
}

// Stopped reports whether Stop was called or the parent context ended
func (s *Sequencer) Stopped() bool {
	return s.base.Err() != nil
}
