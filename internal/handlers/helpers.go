package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/prospector/internal/common"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a standard success JSON response.
func WriteSuccess(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": message,
	})
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// DecodeJSON decodes the request body into dst. Returns false after writing a
// 400 response when the body is not valid JSON.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// WriteServiceError maps pipeline errors to HTTP status codes: bad requests to
// 400, unknown resources to 404, illegal state transitions to 409, and
// everything else to 500.
func WriteServiceError(w http.ResponseWriter, err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidRequest):
		return WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrNotFound):
		return WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, common.ErrInvalidState):
		return WriteError(w, http.StatusConflict, err.Error())
	default:
		return WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
