package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"inventory-view-sync/internal/apierror"
	"inventory-view-sync/internal/models"

	"github.com/google/uuid"
)

// RequestIDHeader carries a per-request identifier for correlating logs with the API
const RequestIDHeader = "X-Request-ID"

// TokenSource supplies the bearer credential and is told when the API rejects it
type TokenSource interface {
	Token() string
	Invalidate(reason string)
}

// ListQuery holds the parameters of an item listing request. Empty Name and
// WarehouseIDs are omitted from the query string.
type ListQuery struct {
	Page         int
	PageSize     int
	Name         string
	WarehouseIDs []models.WarehouseID
}

// Values encodes the query the way the inventory API expects it
func (q ListQuery) Values() url.Values {
	values := url.Values{}
	values.Set("page", strconv.Itoa(q.Page))
	values.Set("pageSize", strconv.Itoa(q.PageSize))
	if q.Name != "" {
		values.Set("name", q.Name)
	}
	if len(q.WarehouseIDs) > 0 {
		ids := make([]string, len(q.WarehouseIDs))
		for i, id := range q.WarehouseIDs {
			ids[i] = string(id)
		}
		values.Set("warehouseIds", strings.Join(ids, ","))
	}
	return values
}

// InventoryClient provides methods to interact with the remote inventory API
type InventoryClient struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// NewInventoryClient creates a new inventory client
func NewInventoryClient(baseURL string, timeout time.Duration, tokens TokenSource) *InventoryClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &InventoryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListItems retrieves one page of inventory items
func (c *InventoryClient) ListItems(ctx context.Context, query ListQuery) (*models.ItemPage, error) {
	var resp models.ItemListResponse
	if err := c.do(ctx, http.MethodGet, "/items", query.Values(), nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}

	items := resp.Data
	if items == nil {
		items = []models.InventoryItem{}
	}

	return &models.ItemPage{
		Items:      items,
		TotalCount: resp.TotalItems,
	}, nil
}

// CreateItem registers a new item master
func (c *InventoryClient) CreateItem(ctx context.Context, req models.CreateItemRequest) (*models.MessageResponse, error) {
	var resp models.MessageResponse
	if err := c.do(ctx, http.MethodPost, "/items", nil, req, http.StatusCreated, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateItem renames an existing item
func (c *InventoryClient) UpdateItem(ctx context.Context, sku string, req models.UpdateItemRequest) (*models.MessageResponse, error) {
	var resp models.MessageResponse
	path := "/items/" + url.PathEscape(sku)
	if err := c.do(ctx, http.MethodPatch, path, nil, req, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListMovements retrieves the movement history of one item
func (c *InventoryClient) ListMovements(ctx context.Context, sku string) ([]models.Movement, error) {
	var resp models.MovementListResponse
	path := "/item/" + url.PathEscape(sku) + "/movements"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return []models.Movement{}, nil
	}
	return resp.Data, nil
}

// PostMovement records an inbound or outbound stock movement
func (c *InventoryClient) PostMovement(ctx context.Context, req models.MovementRequest) (*models.MessageResponse, error) {
	var resp models.MessageResponse
	if err := c.do(ctx, http.MethodPost, "/item/movements", nil, req, http.StatusCreated, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetDashboard retrieves the summary counters
func (c *InventoryClient) GetDashboard(ctx context.Context) (*models.DashboardAggregate, error) {
	var resp models.DashboardResponse
	if err := c.do(ctx, http.MethodGet, "/dashboard", nil, nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// ListWarehouses retrieves the warehouse reference list
func (c *InventoryClient) ListWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	var resp models.WarehouseListResponse
	if err := c.do(ctx, http.MethodGet, "/warehouses", nil, nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return []models.Warehouse{}, nil
	}
	return resp.Data, nil
}

// Login exchanges credentials for an access token
func (c *InventoryClient) Login(ctx context.Context, username, password string) (string, error) {
	var resp models.LoginResponse
	req := models.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, req, http.StatusOK, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", apierror.New(apierror.KindServer, http.StatusOK, "login response carried no access token", nil)
	}
	return resp.AccessToken, nil
}

// do performs one API call and classifies any failure into an *apierror.Error
func (c *InventoryClient) do(ctx context.Context, method, path string, query url.Values, body interface{}, expected int, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return apierror.Network("failed to marshal request", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return apierror.Network("failed to create request", err)
	}

	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return apierror.Network("request canceled", err)
		}
		return apierror.Network("failed to make request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierror.Network("failed to read response", err)
	}

	slog.Debug("Inventory API call completed",
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start))

	if resp.StatusCode == http.StatusUnauthorized {
		if c.tokens != nil {
			c.tokens.Invalidate(fmt.Sprintf("%s %s returned 401", method, path))
		}
		return apierror.FromStatus(resp.StatusCode, extractMessage(respBody))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apierror.FromStatus(resp.StatusCode, extractMessage(respBody))
	}

	if resp.StatusCode != expected {
		message := extractMessage(respBody)
		if message == "" {
			message = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return apierror.New(apierror.KindServer, resp.StatusCode, message, nil)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return apierror.Network("failed to decode response", err)
	}

	return nil
}

// extractMessage pulls a human-readable message out of an error body
func extractMessage(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}

	if len(payload.Message) > 0 {
		var message string
		if err := json.Unmarshal(payload.Message, &message); err == nil {
			return message
		}
		// Some endpoints nest {message: {message: "..."}}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Message, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}

	return payload.Error
}
