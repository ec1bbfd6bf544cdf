package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"inventory-view-sync/internal/apierror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencer_BeginSupersedesPrevious(t *testing.T) {
	s := NewSequencer(context.Background())
	defer s.Stop()

	first := s.Begin()
	second := s.Begin()

	assert.Equal(t, uint64(1), first.Epoch)
	assert.Equal(t, uint64(2), second.Epoch)
	assert.False(t, s.Current(first.Epoch))
	assert.True(t, s.Current(second.Epoch))

	assert.ErrorIs(t, first.Ctx.Err(), context.Canceled, "superseded fetch is aborted")
	assert.NoError(t, second.Ctx.Err())
}

func TestSequencer_GoAndWait(t *testing.T) {
	s := NewSequencer(context.Background())
	defer s.Stop()

	var ran int32
	for i := 0; i < 3; i++ {
		ticket := s.Begin()
		s.Go(ticket, func(ctx context.Context) {
			atomic.AddInt32(&ran, 1)
		})
	}
	s.Wait()

	assert.Equal(t, int32(3), atomic.LoadInt32(&ran))
}

func TestSequencer_WaitCoversNestedFetches(t *testing.T) {
	s := NewSequencer(context.Background())
	defer s.Stop()

	var ran int32
	s.Go(s.Begin(), func(ctx context.Context) {
		s.Go(s.Begin(), func(ctx context.Context) {
			atomic.AddInt32(&ran, 1)
		})
	})
	s.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestSequencer_WaitConcurrentWithGo(t *testing.T) {
	s := NewSequencer(context.Background())
	defer s.Stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s.Go(s.Begin(), func(ctx context.Context) {})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s.Wait()
		}
	}()
	wg.Wait()
	s.Wait()
}

func TestSequencer_WaitWithoutFetches(t *testing.T) {
	s := NewSequencer(context.Background())
	defer s.Stop()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked with nothing in flight")
	}
}

func TestSequencer_TicketReleasedAfterRun(t *testing.T) {
	s := NewSequencer(context.Background())
	defer s.Stop()

	ticket := s.Begin()
	s.Go(ticket, func(ctx context.Context) {})
	s.Wait()

	assert.Error(t, ticket.Ctx.Err())
	assert.True(t, s.Current(ticket.Epoch), "releasing a context does not change the epoch")
}

func TestSequencer_Stop(t *testing.T) {
	s := NewSequencer(context.Background())
	ticket := s.Begin()

	s.Stop()

	require.True(t, s.Stopped())
	assert.Error(t, ticket.Ctx.Err())
	assert.Error(t, s.Begin().Ctx.Err())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, Classify(nil))
	assert.Equal(t, OutcomeAuth, Classify(apierror.FromStatus(http.StatusUnauthorized, "")))
	assert.Equal(t, OutcomeError, Classify(apierror.FromStatus(http.StatusInternalServerError, "")))
	assert.Equal(t, OutcomeError, Classify(errors.New("boom")))
}
