package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// StockStatus is derived by the inventory API and passed through untouched
type StockStatus string

const (
	StockStatusInStock    StockStatus = "IN_STOCK"
	StockStatusLowStock   StockStatus = "LOW_STOCK"
	StockStatusOutOfStock StockStatus = "OUT_OF_STOCK"
)

// ActivityType is the direction of a stock movement
type ActivityType string

const (
	ActivityInbound  ActivityType = "INBOUND"
	ActivityOutbound ActivityType = "OUTBOUND"
)

// Valid reports whether the activity is one the API accepts
func (a ActivityType) Valid() bool {
	return a == ActivityInbound || a == ActivityOutbound
}

// WarehouseID is an opaque warehouse identifier. The API encodes it as a
// number; it is kept as a string so callers never do arithmetic on it.
type WarehouseID string

// UnmarshalJSON accepts both numeric and string encodings
func (id *WarehouseID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid warehouse id: %w", err)
		}
		*id = WarehouseID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid warehouse id: %w", err)
	}
	*id = WarehouseID(n.String())
	return nil
}

// MarshalJSON emits numeric identifiers as numbers, anything else as a string
func (id WarehouseID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// InventoryItem is one row of the inventory listing
type InventoryItem struct {
	SKU           string      `json:"sku"`
	Name          string      `json:"name"`
	WarehouseID   WarehouseID `json:"warehouse_id"`
	WarehouseName string      `json:"warehouse"`
	Qty           int         `json:"qty"`
	ReserveQty    int         `json:"reserve_qty"`
	StockStatus   StockStatus `json:"stock_status"`
	UpdatedAt     string      `json:"updated_at"`
	Visible       bool        `json:"is_show"`
	ImageRef      string      `json:"image"`
}

// ItemListResponse is the payload of GET /items
type ItemListResponse struct {
	Data       []InventoryItem `json:"data"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalItems int             `json:"totalItems"`
	TotalPages int             `json:"totalPages"`
	Message    string          `json:"message,omitempty"`
}

// ItemPage is the part of a listing the view keeps
type ItemPage struct {
	Items      []InventoryItem
	TotalCount int
}

// DashboardAggregate is a point-in-time snapshot of summary counters
type DashboardAggregate struct {
	TotalItems      int    `json:"totalItems"`
	TotalQuantity   int    `json:"totalQuantity"`
	LowStockCount   int    `json:"lowStock"`
	OutOfStockCount int    `json:"outOfStock"`
	LastUpdated     string `json:"lastUpdated"`
}

// DashboardResponse is the payload of GET /dashboard
type DashboardResponse struct {
	Message string             `json:"message,omitempty"`
	Data    DashboardAggregate `json:"data"`
}

// Warehouse is a reference-data row used to build filter options
type Warehouse struct {
	ID        WarehouseID `json:"id"`
	Name      string      `json:"name"`
	CreatedAt string      `json:"created_at"`
}

// WarehouseListResponse is the payload of GET /warehouses
type WarehouseListResponse struct {
	Data    []Warehouse `json:"data"`
	Message string      `json:"message,omitempty"`
}

// Option is a (value, label) pair for a select control
type Option struct {
	Value WarehouseID `json:"value"`
	Label string      `json:"label"`
}

// Movement is one entry of an item's stock movement history
type Movement struct {
	ID           int64        `json:"id"`
	ItemMasterID int64        `json:"item_master_id"`
	ActivityType ActivityType `json:"activity_type"`
	Qty          int          `json:"qty"`
	CurrentQty   int          `json:"current_qty"`
	CreatedAt    string       `json:"created_at"`
	Note         string       `json:"note"`
}

// MovementListResponse is the payload of GET /item/{sku}/movements
type MovementListResponse struct {
	Data    []Movement `json:"data"`
	Message string     `json:"message,omitempty"`
}

// CreateItemRequest is the body of POST /items
type CreateItemRequest struct {
	Name        string      `json:"name"`
	Image       string      `json:"image"`
	WarehouseID WarehouseID `json:"warehouse_id"`
}

// UpdateItemRequest is the body of PATCH /items/{sku}
type UpdateItemRequest struct {
	Name string `json:"name"`
}

// MovementRequest is the body of POST /item/movements
type MovementRequest struct {
	SKU          string       `json:"sku"`
	ActivityType ActivityType `json:"activityType"`
	Qty          int          `json:"qty"`
	Note         *string      `json:"note"`
	WarehouseID  WarehouseID  `json:"warehouseId"`
}

// MessageResponse is the generic {message} body returned by mutations
type MessageResponse struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the payload of POST /auth/login
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error,omitempty"`
}
