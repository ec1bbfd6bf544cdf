package handlers

import (
	"net/http"
)

// ViewCounter reports how many views are mounted
type ViewCounter interface {
	Len() int
}

// HealthHandler handles health check requests
type HealthHandler struct {
	views ViewCounter
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(views ViewCounter) *HealthHandler {
	return &HealthHandler{views: views}
}

// Health handles GET /health - Health check endpoint
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"mountedViews": h.views.Len(),
	})
}
