package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/avendel/worldvault/internal/services"
)

// WorldHandler handles HTTP requests related to worlds.
type WorldHandler struct {
	service services.WorldServiceProvider
}

// NewWorldHandler creates a new WorldHandler.
func NewWorldHandler(service services.WorldServiceProvider) *WorldHandler {
	return &WorldHandler{service: service}
}

// GetAll handles the request to list all discovered worlds.
func (h *WorldHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	worlds, err := h.service.ListWorlds()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list worlds")
		http.Error(w, "Failed to list worlds: "+err.Error(), statusForError(err))
		return
	}
	respondJSON(w, http.StatusOK, worlds)
}

// Get handles the request to fetch a single world by name.
func (h *WorldHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	world, err := h.service.GetWorldByName(name)
	if err != nil {
		http.Error(w, "Failed to get world: "+err.Error(), statusForError(err))
		return
	}
	respondJSON(w, http.StatusOK, world)
}
