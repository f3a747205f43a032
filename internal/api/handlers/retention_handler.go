package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/avendel/worldvault/internal/models"
	"github.com/avendel/worldvault/internal/services"
)

// RetentionHandler handles HTTP requests related to retention enforcement.
type RetentionHandler struct {
	service services.RetentionServiceProvider
	policy  models.RetentionPolicy
}

// NewRetentionHandler creates a new RetentionHandler.
func NewRetentionHandler(service services.RetentionServiceProvider, policy models.RetentionPolicy) *RetentionHandler {
	return &RetentionHandler{service: service, policy: policy}
}

// GetPolicy handles the request to read the configured retention policy.
func (h *RetentionHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.policy)
}

// Enforce handles the request to run an eviction pass now. Runs
// synchronously: deletions are fast compared to archiving and the caller
// wants the report.
func (h *RetentionHandler) Enforce(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Enforce(h.policy)
	if err != nil {
		// The partial report still tells the caller what was deleted before
		// the pass aborted.
		log.Error().Err(err).Int("deleted", len(report.Deleted)).Msg("Eviction pass aborted")
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":  err.Error(),
			"report": report,
		})
		return
	}
	respondJSON(w, http.StatusOK, report)
}
