package warehouse

import (
	"context"
	"errors"
	"sync"
	"testing"

	"inventory-view-sync/internal/apierror"
	"inventory-view-sync/internal/models"
	"inventory-view-sync/internal/refresh"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu         sync.Mutex
	calls      int
	warehouses []models.Warehouse
	err        error
}

func (f *fakeSource) ListWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.warehouses, nil
}

func (f *fakeSource) set(warehouses []models.Warehouse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warehouses = warehouses
	f.err = err
}

func TestOptionCache_LoadsOptions(t *testing.T) {
	source := &fakeSource{warehouses: []models.Warehouse{
		{ID: "1", Name: "Bangkok"},
		{ID: "2", Name: "Chiang Mai"},
	}}
	c := NewOptionCache(context.Background(), source, refresh.NewBroadcaster(), nil)
	defer c.Close()

	c.Start()
	c.Wait()

	snap := c.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, []models.Option{
		{Value: "1", Label: "Bangkok"},
		{Value: "2", Label: "Chiang Mai"},
	}, snap.Options)
	assert.True(t, c.Contains("2"))
	assert.False(t, c.Contains("9"))
}

func TestOptionCache_FailureDegradesToEmpty(t *testing.T) {
	source := &fakeSource{warehouses: []models.Warehouse{{ID: "1", Name: "Bangkok"}}}
	channel := refresh.NewBroadcaster()
	c := NewOptionCache(context.Background(), source, channel, nil)
	defer c.Close()

	c.Start()
	c.Wait()
	require.Len(t, c.Snapshot().Options, 1)

	source.set(nil, apierror.Network("request failed", errors.New("timeout")))
	channel.Bump()
	c.Wait()

	snap := c.Snapshot()
	assert.NotNil(t, snap.Options)
	assert.Empty(t, snap.Options)
	assert.False(t, snap.Loading)
}

func TestOptionCache_RefetchesOncePerBump(t *testing.T) {
	source := &fakeSource{}
	channel := refresh.NewBroadcaster()
	c := NewOptionCache(context.Background(), source, channel, nil)
	defer c.Close()

	c.Start()
	c.Wait()
	channel.Bump()
	c.Wait()
	c.Start()
	c.Wait()

	assert.Equal(t, 2, source.calls)
}

func TestOptionCache_IgnoresOlderRefreshVersion(t *testing.T) {
	source := &fakeSource{}
	c := NewOptionCache(context.Background(), source, refresh.NewBroadcaster(), nil)
	defer c.Close()

	c.Start()
	c.Wait()

	c.onRefresh(2)
	c.Wait()
	c.onRefresh(1)
	c.Wait()

	source.mu.Lock()
	defer source.mu.Unlock()
	assert.Equal(t, 2, source.calls)
}
