package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avendel/worldvault/internal/services"
)

// respondJSON writes v as the JSON response body.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusForError maps core failure classes to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrWorldActive):
		return http.StatusConflict
	case errors.Is(err, services.ErrSourceMissing):
		return http.StatusConflict
	case errors.Is(err, services.ErrCorruptArchive):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
