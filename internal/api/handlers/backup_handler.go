package handlers

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/avendel/worldvault/internal/models"
	"github.com/avendel/worldvault/internal/services"
)

// BackupHandler handles HTTP requests related to backups.
type BackupHandler struct {
	backupService    services.BackupServiceProvider
	worldService     services.WorldServiceProvider
	retentionService services.RetentionServiceProvider
	policy           models.RetentionPolicy
	savesRoot        string
}

// NewBackupHandler creates a new BackupHandler.
func NewBackupHandler(backupService services.BackupServiceProvider, worldService services.WorldServiceProvider, retentionService services.RetentionServiceProvider, policy models.RetentionPolicy, savesRoot string) *BackupHandler {
	return &BackupHandler{
		backupService:    backupService,
		worldService:     worldService,
		retentionService: retentionService,
		policy:           policy,
		savesRoot:        savesRoot,
	}
}

// GetAllForWorld handles the request to get all backups for a world,
// oldest first.
func (h *BackupHandler) GetAllForWorld(w http.ResponseWriter, r *http.Request) {
	worldName := chi.URLParam(r, "name")
	backups, err := h.backupService.ListBackups(worldName)
	if err != nil {
		log.Error().Err(err).Str("world", worldName).Msg("Failed to retrieve backups for world")
		http.Error(w, "Failed to retrieve backups: "+err.Error(), statusForError(err))
		return
	}
	respondJSON(w, http.StatusOK, backups)
}

// GetAll handles the request to get every backup grouped per world.
func (h *BackupHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backupService.ListAllBackups()
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve backups")
		http.Error(w, "Failed to retrieve backups: "+err.Error(), statusForError(err))
		return
	}
	respondJSON(w, http.StatusOK, backups)
}

// Create handles the request to back up a world now. The retention policy is
// enforced right after a successful backup, matching the scheduled path.
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	worldName := chi.URLParam(r, "name")
	world, err := h.worldService.GetWorldByName(worldName)
	if err != nil {
		http.Error(w, "Failed to find world: "+err.Error(), statusForError(err))
		return
	}

	// Archiving a large world takes a while; run it in the background and let
	// the event stream report the outcome.
	go func() {
		if _, err := h.backupService.CreateBackup(world); err != nil {
			log.Error().Err(err).Str("world", world.Name).Msg("Failed to create backup in background")
			return
		}
		if _, err := h.retentionService.Enforce(h.policy); err != nil {
			log.Error().Err(err).Msg("Retention pass after backup failed")
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{"message": "Backup creation started."})
}

// Restore handles the request to restore a backup over its world. The
// archive's world is the default target; a different one can be named with
// the targetWorld query parameter.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	backupName := chi.URLParam(r, "backupName")
	backup, err := h.backupService.GetBackupByName(backupName)
	if err != nil {
		http.Error(w, "Failed to find backup: "+err.Error(), statusForError(err))
		return
	}

	targetName := r.URL.Query().Get("targetWorld")
	if targetName == "" {
		targetName = backup.WorldName
	}

	world, err := h.worldService.GetWorldByName(targetName)
	if errors.Is(err, services.ErrNotFound) {
		// Restoring a world that no longer exists recreates its directory.
		world = models.World{Name: targetName, Path: filepath.Join(h.savesRoot, targetName)}
	} else if err != nil {
		http.Error(w, "Failed to find world: "+err.Error(), statusForError(err))
		return
	}

	// Refuse up front while the game is writing; the service checks again
	// right before it clears the target.
	if h.worldService.IsWorldActive(world) {
		http.Error(w, "World is currently active, close the game first", http.StatusConflict)
		return
	}

	go func() {
		if err := h.backupService.RestoreBackup(backup, world); err != nil {
			log.Error().Err(err).Str("backup", backup.Name).Str("world", world.Name).Msg("Failed to restore backup in background")
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{"message": "Backup restoration started."})
}

// Delete handles the request to delete a backup. This is the explicit user
// override: it bypasses the minimum-keep floor.
func (h *BackupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	backupName := chi.URLParam(r, "backupName")
	backup, err := h.backupService.GetBackupByName(backupName)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			// Already gone; deleting is idempotent.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.Error(w, "Failed to find backup: "+err.Error(), statusForError(err))
		return
	}

	if err := h.backupService.DeleteBackup(backup); err != nil {
		log.Error().Err(err).Str("backup", backupName).Msg("Failed to delete backup")
		http.Error(w, "Failed to delete backup: "+err.Error(), statusForError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
