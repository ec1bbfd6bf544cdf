package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"inventory-view-sync/internal/apierror"
	"inventory-view-sync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	mu          sync.Mutex
	token       string
	invalidated []string
}

func (f *fakeTokens) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeTokens) Invalidate(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.invalidated = append(f.invalidated, reason)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func TestListItems_EncodesQueryAndDecodesPage(t *testing.T) {
	var gotQuery map[string][]string
	var gotAuth, gotRequestID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/items", r.URL.Path)
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get(RequestIDHeader)
		w.Write([]byte(`{
			"data": [{"sku":"SKU-1","name":"Bolt","warehouse":"North","warehouse_id":7,"qty":12,"reserve_qty":2,"stock_status":"LOW_STOCK","updated_at":"2026-01-02T03:04:05Z","is_show":true,"image":"bolt.png"}],
			"page": 2, "pageSize": 10, "totalItems": 47, "totalPages": 5
		}`))
	}))
	defer server.Close()

	c := NewInventoryClient(server.URL+"/api/", time.Second, &fakeTokens{token: "tok-1"})
	page, err := c.ListItems(context.Background(), ListQuery{
		Page:         2,
		PageSize:     10,
		WarehouseIDs: []models.WarehouseID{"7", "9"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"2"}, gotQuery["page"])
	assert.Equal(t, []string{"10"}, gotQuery["pageSize"])
	assert.Equal(t, []string{"7,9"}, gotQuery["warehouseIds"])
	assert.NotContains(t, gotQuery, "name")
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.NotEmpty(t, gotRequestID)

	require.Len(t, page.Items, 1)
	assert.Equal(t, 47, page.TotalCount)
	item := page.Items[0]
	assert.Equal(t, "SKU-1", item.SKU)
	assert.Equal(t, models.WarehouseID("7"), item.WarehouseID)
	assert.Equal(t, "North", item.WarehouseName)
	assert.Equal(t, models.StockStatusLowStock, item.StockStatus)
	assert.True(t, item.Visible)
}

func TestListItems_NameFilterOmitsWarehouses(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		writeJSON(w, http.StatusOK, models.ItemListResponse{TotalItems: 0})
	}))
	defer server.Close()

	c := NewInventoryClient(server.URL, time.Second, nil)
	page, err := c.ListItems(context.Background(), ListQuery{Page: 1, PageSize: 20, Name: "bolt"})
	require.NoError(t, err)

	assert.Equal(t, []string{"bolt"}, gotQuery["name"])
	assert.NotContains(t, gotQuery, "warehouseIds")
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestDo_UnauthorizedInvalidatesSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
	}))
	defer server.Close()

	tokens := &fakeTokens{token: "stale"}
	c := NewInventoryClient(server.URL, time.Second, tokens)

	_, err := c.GetDashboard(context.Background())
	require.Error(t, err)

	assert.True(t, apierror.IsAuth(err))
	assert.Equal(t, "token expired", apierror.MessageOf(err))
	assert.Len(t, tokens.invalidated, 1)
	assert.Empty(t, tokens.Token())
}

func TestDo_ValidationAndServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/items":
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"message": map[string]string{"message": "name already exists"}})
		case "/item/movements":
			writeJSON(w, http.StatusOK, map[string]string{"message": "accepted but not created"})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database down"})
		}
	}))
	defer server.Close()

	c := NewInventoryClient(server.URL, time.Second, nil)

	_, err := c.CreateItem(context.Background(), models.CreateItemRequest{Name: "Bolt", WarehouseID: "1"})
	require.Error(t, err)
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))
	assert.Equal(t, "name already exists", apierror.MessageOf(err))

	_, err = c.PostMovement(context.Background(), models.MovementRequest{SKU: "SKU-1", ActivityType: models.ActivityInbound, Qty: 1})
	require.Error(t, err)
	assert.Equal(t, apierror.KindServer, apierror.KindOf(err))
	assert.Equal(t, "accepted but not created", apierror.MessageOf(err))

	_, err = c.ListWarehouses(context.Background())
	require.Error(t, err)
	assert.Equal(t, apierror.KindServer, apierror.KindOf(err))
	assert.Equal(t, "database down", apierror.MessageOf(err))
}

func TestDo_TransportFailureIsNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := NewInventoryClient(server.URL, time.Second, nil)
	_, err := c.ListWarehouses(context.Background())

	require.Error(t, err)
	assert.Equal(t, apierror.KindNetwork, apierror.KindOf(err))
}

func TestDo_CanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewInventoryClient(server.URL, time.Second, nil)
	_, err := c.ListItems(ctx, ListQuery{Page: 1, PageSize: 20})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPostMovement_Body(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusCreated, map[string]string{"message": "Movement added"})
	}))
	defer server.Close()

	c := NewInventoryClient(server.URL, time.Second, nil)
	resp, err := c.PostMovement(context.Background(), models.MovementRequest{
		SKU:          "SKU-9",
		ActivityType: models.ActivityOutbound,
		Qty:          3,
		WarehouseID:  "4",
	})
	require.NoError(t, err)

	assert.Equal(t, "Movement added", resp.Message)
	assert.Equal(t, "SKU-9", got["sku"])
	assert.Equal(t, "OUTBOUND", got["activityType"])
	assert.Equal(t, float64(3), got["qty"])
	assert.Equal(t, float64(4), got["warehouseId"])
	assert.Contains(t, got, "note")
	assert.Nil(t, got["note"])
}

func TestLogin_ReturnsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "a.b.c"})
	}))
	defer server.Close()

	c := NewInventoryClient(server.URL, time.Second, nil)
	token, err := c.Login(context.Background(), "admin", "secret")

	require.NoError(t, err)
	assert.Equal(t, "a.b.c", token)
}
