package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/avendel/worldvault/internal/models"
	"github.com/avendel/worldvault/internal/services"
)

// ScheduleHandler handles HTTP requests related to backup schedules.
type ScheduleHandler struct {
	service      services.ScheduleServiceProvider
	worldService services.WorldServiceProvider
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(service services.ScheduleServiceProvider, worldService services.WorldServiceProvider) *ScheduleHandler {
	return &ScheduleHandler{service: service, worldService: worldService}
}

// CreateSchedulePayload is the expected JSON body for creating a schedule.
type CreateSchedulePayload struct {
	WorldName      string `json:"worldName"`
	Name           string `json:"name"`
	CronExpression string `json:"cronExpression"`
	IsActive       *bool  `json:"isActive"`
}

// Create handles the request to create a new backup schedule.
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload CreateSchedulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if payload.WorldName == "" || payload.CronExpression == "" {
		http.Error(w, "worldName and cronExpression are required", http.StatusBadRequest)
		return
	}
	if _, err := h.worldService.GetWorldByName(payload.WorldName); err != nil {
		http.Error(w, "Failed to find world: "+err.Error(), statusForError(err))
		return
	}

	schedule := models.Schedule{
		WorldName:      payload.WorldName,
		Name:           payload.Name,
		CronExpression: payload.CronExpression,
		IsActive:       true,
	}
	if payload.Name == "" {
		schedule.Name = "Scheduled backup"
	}
	if payload.IsActive != nil {
		schedule.IsActive = *payload.IsActive
	}

	created, err := h.service.CreateSchedule(schedule)
	if err != nil {
		log.Error().Err(err).Str("world", payload.WorldName).Msg("Failed to create schedule")
		http.Error(w, "Failed to create schedule: "+err.Error(), http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// GetAllForWorld handles the request to list a world's schedules.
func (h *ScheduleHandler) GetAllForWorld(w http.ResponseWriter, r *http.Request) {
	worldName := chi.URLParam(r, "name")
	schedules, err := h.service.GetSchedulesForWorld(worldName)
	if err != nil {
		log.Error().Err(err).Str("world", worldName).Msg("Failed to retrieve schedules")
		http.Error(w, "Failed to retrieve schedules: "+err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, schedules)
}

// Delete handles the request to delete a schedule.
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	scheduleID := chi.URLParam(r, "id")
	if err := h.service.DeleteSchedule(scheduleID); err != nil {
		log.Error().Err(err).Str("schedule_id", scheduleID).Msg("Failed to delete schedule")
		http.Error(w, "Failed to delete schedule: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
