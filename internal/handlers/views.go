package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"inventory-view-sync/internal/filter"
	"inventory-view-sync/internal/middleware"
	"inventory-view-sync/internal/models"
	"inventory-view-sync/internal/view"
)

const maxSnapshotWait = 10 * time.Second

// ViewHandler exposes mounted views over HTTP
type ViewHandler struct {
	registry *view.Registry
}

// NewViewHandler creates a new view handler
func NewViewHandler(registry *view.Registry) *ViewHandler {
	return &ViewHandler{registry: registry}
}

// Register adds the view routes to r. r is expected to run BearerAuthMiddleware.
func (h *ViewHandler) Register(r *mux.Router) {
	r.HandleFunc("/views", h.Mount).Methods("POST")
	r.HandleFunc("/views/{id}", h.GetSnapshot).Methods("GET")
	r.HandleFunc("/views/{id}", h.Unmount).Methods("DELETE")
	r.HandleFunc("/views/{id}/search", h.Search).Methods("POST")
	r.HandleFunc("/views/{id}/draft", h.Draft).Methods("POST")
	r.HandleFunc("/views/{id}/filter-kind", h.FilterKind).Methods("POST")
	r.HandleFunc("/views/{id}/reset", h.Reset).Methods("POST")
	r.HandleFunc("/views/{id}/page", h.Page).Methods("POST")
	r.HandleFunc("/views/{id}/page-size", h.PageSize).Methods("POST")
	r.HandleFunc("/views/{id}/refresh", h.Refresh).Methods("POST")
	r.HandleFunc("/views/{id}/notifications", h.Notifications).Methods("GET")
	r.HandleFunc("/views/{id}/items", h.CreateItem).Methods("POST")
	r.HandleFunc("/views/{id}/items/{sku}", h.UpdateItem).Methods("PATCH")
	r.HandleFunc("/views/{id}/items/{sku}/movements", h.GetMovements).Methods("GET")
	r.HandleFunc("/views/{id}/items/{sku}/movements", h.PostMovement).Methods("POST")
}

// Mount handles POST /v1/views
func (h *ViewHandler) Mount(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.TokenFromContext(r.Context())
	v, err := h.registry.Mount(token)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("View mounted over HTTP", "view_id", v.ID(), "remote_addr", r.RemoteAddr)
	writeJSONResponse(w, http.StatusCreated, map[string]string{"id": v.ID()})
}

// GetSnapshot handles GET /v1/views/{id}. With ?wait=true it answers once
// every in-flight fetch has resolved.
func (h *ViewHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		waitForFetches(r.Context(), v)
	}
	writeJSONResponse(w, http.StatusOK, v.Snapshot())
}

// Unmount handles DELETE /v1/views/{id}
func (h *ViewHandler) Unmount(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Unmount(mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles POST /v1/views/{id}/search
func (h *ViewHandler) Search(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	var value filter.Value
	if !decodeBody(w, r, &value) {
		return
	}
	if err := v.OnSearch(value); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusAccepted, v.Snapshot())
}

// Draft handles POST /v1/views/{id}/draft
func (h *ViewHandler) Draft(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	var value filter.Value
	if !decodeBody(w, r, &value) {
		return
	}
	v.OnDraft(value)
	writeJSONResponse(w, http.StatusOK, v.Snapshot().Filter)
}

// FilterKind handles POST /v1/views/{id}/filter-kind
func (h *ViewHandler) FilterKind(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	var req struct {
		Kind string `json:"kind"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	kind, err := filter.ParseKind(req.Kind)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", err.Error(), []models.ErrorDetail{
			{Field: "kind", Issue: "must be ITEM_NAME or WAREHOUSE_SET"},
		})
		return
	}
	v.OnFilterKind(kind)
	writeJSONResponse(w, http.StatusAccepted, v.Snapshot())
}

// Reset handles POST /v1/views/{id}/reset
func (h *ViewHandler) Reset(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	v.OnReset()
	writeJSONResponse(w, http.StatusAccepted, v.Snapshot())
}

// Page handles POST /v1/views/{id}/page
func (h *ViewHandler) Page(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	var req struct {
		Page     int `json:"page"`
		PageSize int `json:"pageSize"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PageSize == 0 {
		req.PageSize = v.Snapshot().Items.PageSize
	}
	if err := v.OnPageChange(req.Page, req.PageSize); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusAccepted, v.Snapshot())
}

// PageSize handles POST /v1/views/{id}/page-size
func (h *ViewHandler) PageSize(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	var req struct {
		Size int `json:"size"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := v.OnPageSizeChange(req.Size); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusAccepted, v.Snapshot())
}

// Refresh handles POST /v1/views/{id}/refresh
func (h *ViewHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	version := v.OnRefresh()
	writeJSONResponse(w, http.StatusAccepted, map[string]uint64{"refreshVersion": version})
}

// Notifications handles GET /v1/views/{id}/notifications
func (h *ViewHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"notifications": v.Notifications()})
}

// CreateItem handles POST /v1/views/{id}/items
func (h *ViewHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	var req models.CreateItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := v.CreateItem(r.Context(), req.Name, req.WarehouseID, req.Image); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.MessageResponse{Message: "created"})
}

// UpdateItem handles PATCH /v1/views/{id}/items/{sku}
func (h *ViewHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	var req models.UpdateItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := v.UpdateItemName(r.Context(), mux.Vars(r)["sku"], req.Name); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.MessageResponse{Message: "updated"})
}

// GetMovements handles GET /v1/views/{id}/items/{sku}/movements. The first
// call for a row starts loading its history.
func (h *ViewHandler) GetMovements(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	sku := mux.Vars(r)["sku"]
	if err := v.ExpandRow(sku); err != nil {
		writeError(w, r, err)
		return
	}
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		waitForFetches(r.Context(), v)
	}
	writeJSONResponse(w, http.StatusOK, v.Movements(sku))
}

// PostMovement handles POST /v1/views/{id}/items/{sku}/movements
func (h *ViewHandler) PostMovement(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	var in view.MovementInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.SKU = mux.Vars(r)["sku"]
	if err := v.PostMovement(r.Context(), in); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.MessageResponse{Message: "recorded"})
}

// view resolves the {id} route variable and renews the view's session when
// the caller presents a different token
func (h *ViewHandler) view(w http.ResponseWriter, r *http.Request) (*view.View, bool) {
	v, err := h.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}

	if token, ok := middleware.TokenFromContext(r.Context()); ok {
		if err := v.RenewSession(token); err != nil {
			writeError(w, r, err)
			return nil, false
		}
	}
	return v, true
}

func waitForFetches(ctx context.Context, v *view.View) {
	done := make(chan struct{})
	go func() {
		v.Wait()
		close(done)
	}()

	timer := time.NewTimer(maxSnapshotWait)
	defer timer.Stop()

	select {
	case <-done:
	case <-ctx.Done():
	case <-timer.C:
	}
}
