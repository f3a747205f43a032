package services

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/avendel/worldvault/internal/models"
)

// RetentionServiceProvider defines the interface for retention enforcement.
type RetentionServiceProvider interface {
	Enforce(policy models.RetentionPolicy) (models.EvictionReport, error)
}

// RetentionService evicts the oldest backups across all worlds until the
// aggregate size fits the budget, without ever pulling a world below its
// minimum-keep floor. Given identical disk state and policy it deletes the
// same backups in the same order every time.
type RetentionService struct {
	backupService BackupServiceProvider
	eventService  EventServiceProvider
}

// NewRetentionService creates a new RetentionService.
func NewRetentionService(backupService BackupServiceProvider, eventService EventServiceProvider) *RetentionService {
	return &RetentionService{
		backupService: backupService,
		eventService:  eventService,
	}
}

// Enforce runs one eviction pass and reports what it deleted. The eligible
// set shrinks as worlds hit their floor mid-loop, so the globally-oldest
// selection is repeated each round rather than computed once up front.
//
// A deletion failure aborts the pass and returns the partial report together
// with the error, so the caller can retry without losing track of what was
// already deleted. A backup that is already gone does not count as a failure.
func (s *RetentionService) Enforce(policy models.RetentionPolicy) (models.EvictionReport, error) {
	report := models.EvictionReport{Deleted: []models.Backup{}}

	byWorld, err := s.backupService.ListAllBackups()
	if err != nil {
		return report, err
	}

	var aggregate int64
	for _, backups := range byWorld {
		for _, b := range backups {
			aggregate += b.Size
		}
	}

	for aggregate > policy.MaxAggregateBytes {
		victim, worldName, ok := oldestEligible(byWorld, policy.MinKeepPerWorld)
		if !ok {
			// Every world is at or below the floor. The budget cannot be met
			// without violating it, which only the user may do.
			report.BudgetStillExceeded = true
			break
		}

		if err := s.backupService.DeleteBackup(victim); err != nil {
			report.FinalAggregateBytes = aggregate
			s.eventService.CreateEvent("retention.enforce.fail", "error",
				fmt.Sprintf("Eviction pass aborted after deleting %d backup(s): %v", len(report.Deleted), err), nil)
			return report, fmt.Errorf("eviction pass aborted: %w", err)
		}

		byWorld[worldName] = byWorld[worldName][1:]
		aggregate -= victim.Size
		report.Deleted = append(report.Deleted, victim)
		log.Info().Str("world", worldName).Str("archive", victim.Name).
			Int64("freed", victim.Size).Int64("aggregate", aggregate).Msg("Evicted oldest backup")
	}

	report.FinalAggregateBytes = aggregate

	if len(report.Deleted) > 0 {
		s.eventService.CreateEvent("retention.enforce", "info",
			fmt.Sprintf("Retention evicted %d backup(s), aggregate now %d bytes.", len(report.Deleted), aggregate), nil)
	}
	if report.BudgetStillExceeded {
		s.eventService.CreateEvent("retention.budget_exceeded", "warn",
			fmt.Sprintf("Backups use %d bytes, over the %d byte budget, but every world is at its minimum-keep floor. Raise the limit or free space manually.",
				aggregate, policy.MaxAggregateBytes), nil)
	}

	return report, nil
}

// oldestEligible picks the globally oldest backup among worlds holding
// strictly more backups than the floor. Each world's slice is oldest-first,
// so only its head is a candidate. Ties on timestamp go to the
// lexicographically smallest archive name; names are unique within the
// backups root, so the pick does not depend on map iteration order.
func oldestEligible(byWorld map[string][]models.Backup, minKeep int) (models.Backup, string, bool) {
	var best models.Backup
	var bestWorld string
	found := false

	for worldName, backups := range byWorld {
		if len(backups) <= minKeep {
			continue
		}
		candidate := backups[0]
		if !found ||
			candidate.CreatedAt.Before(best.CreatedAt) ||
			(candidate.CreatedAt.Equal(best.CreatedAt) && candidate.Name < best.Name) {
			best = candidate
			bestWorld = worldName
			found = true
		}
	}
	return best, bestWorld, found
}
