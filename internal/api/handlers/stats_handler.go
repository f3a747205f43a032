package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/avendel/worldvault/internal/models"
	"github.com/avendel/worldvault/internal/services"
)

// StatsHandler reports storage usage: how much of the budget the backups
// consume and how full the volume holding them is. Backs the UI's "raise
// the limit or free space" warning.
type StatsHandler struct {
	backupService services.BackupServiceProvider
	policy        models.RetentionPolicy
	backupsRoot   string
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(backupService services.BackupServiceProvider, policy models.RetentionPolicy, backupsRoot string) *StatsHandler {
	return &StatsHandler{
		backupService: backupService,
		policy:        policy,
		backupsRoot:   backupsRoot,
	}
}

// StorageStats is the response body for the storage overview.
type StorageStats struct {
	AggregateBytes    int64   `json:"aggregateBytes"`
	MaxAggregateBytes int64   `json:"maxAggregateBytes"`
	DiskTotalBytes    uint64  `json:"diskTotalBytes"`
	DiskFreeBytes     uint64  `json:"diskFreeBytes"`
	DiskUsedPercent   float64 `json:"diskUsedPercent"`
}

// GetStorage handles the request for the storage overview.
func (h *StatsHandler) GetStorage(w http.ResponseWriter, r *http.Request) {
	aggregate, err := h.backupService.AggregateSize()
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute aggregate backup size")
		http.Error(w, "Failed to compute aggregate size: "+err.Error(), statusForError(err))
		return
	}

	stats := StorageStats{
		AggregateBytes:    aggregate,
		MaxAggregateBytes: h.policy.MaxAggregateBytes,
	}

	if usage, err := disk.Usage(h.backupsRoot); err != nil {
		// Disk stats are advisory; the aggregate numbers still stand.
		log.Warn().Err(err).Str("path", h.backupsRoot).Msg("Failed to read disk usage")
	} else {
		stats.DiskTotalBytes = usage.Total
		stats.DiskFreeBytes = usage.Free
		stats.DiskUsedPercent = usage.UsedPercent
	}

	respondJSON(w, http.StatusOK, stats)
}
