package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"inventory-view-sync/internal/models"
)

// Authenticator exchanges credentials for an access token
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// AuthHandler proxies sign-in to the inventory API
type AuthHandler struct {
	auth Authenticator
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var details []models.ErrorDetail
	if strings.TrimSpace(req.Username) == "" {
		details = append(details, models.ErrorDetail{Field: "username", Issue: "cannot be empty"})
	}
	if req.Password == "" {
		details = append(details, models.ErrorDetail{Field: "password", Issue: "cannot be empty"})
	}
	if len(details) > 0 {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Username and password are required", details)
		return
	}

	token, err := h.auth.Login(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		slog.Info("Login failed", "username", req.Username, "remote_addr", r.RemoteAddr)
		writeError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, models.LoginResponse{AccessToken: token})
}
