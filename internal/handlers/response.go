package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"inventory-view-sync/internal/apierror"
	"inventory-view-sync/internal/models"
	"inventory-view-sync/internal/session"
	"inventory-view-sync/internal/view"
)

// writeJSONResponse is a helper function to write JSON responses
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeErrorResponse is a helper function to write error responses
func writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string, details []models.ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// writeError maps err onto a status code and error code
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, view.ErrViewNotFound):
		writeErrorResponse(w, http.StatusNotFound, "not_found", err.Error(), nil)
		return
	case errors.Is(err, session.ErrInvalidToken), errors.Is(err, session.ErrSubjectMismatch):
		writeErrorResponse(w, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	message := apierror.MessageOf(err)
	switch apierror.KindOf(err) {
	case apierror.KindValidation:
		writeErrorResponse(w, http.StatusBadRequest, "validation_error", message, nil)
	case apierror.KindAuth:
		writeErrorResponse(w, http.StatusUnauthorized, "unauthorized", message, nil)
	case apierror.KindServer:
		slog.Error("Inventory API error", "error", err, "path", r.URL.Path)
		writeErrorResponse(w, http.StatusBadGateway, "upstream_error", message, nil)
	default:
		slog.Error("Inventory API unreachable", "error", err, "path", r.URL.Path)
		writeErrorResponse(w, http.StatusBadGateway, "upstream_unavailable", message, nil)
	}
}

// decodeBody decodes the JSON request body into dst, answering 400 on failure
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return false
	}
	return true
}
