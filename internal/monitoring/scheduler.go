package monitoring

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/avendel/worldvault/internal/models"
	"github.com/avendel/worldvault/internal/services"
)

// Scheduler runs due backup schedules. Each due schedule triggers a backup
// of its world followed by a retention pass, the same sequence a manual
// "back up now" performs. The backup core itself holds no timer state.
type Scheduler struct {
	scheduleSvc  services.ScheduleServiceProvider
	worldSvc     services.WorldServiceProvider
	backupSvc    services.BackupServiceProvider
	retentionSvc services.RetentionServiceProvider
	eventSvc     services.EventServiceProvider
	policy       models.RetentionPolicy
	ticker       *time.Ticker
	done         chan bool
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(scheduleSvc services.ScheduleServiceProvider, worldSvc services.WorldServiceProvider, backupSvc services.BackupServiceProvider, retentionSvc services.RetentionServiceProvider, eventSvc services.EventServiceProvider, policy models.RetentionPolicy) *Scheduler {
	return &Scheduler{
		scheduleSvc:  scheduleSvc,
		worldSvc:     worldSvc,
		backupSvc:    backupSvc,
		retentionSvc: retentionSvc,
		eventSvc:     eventSvc,
		policy:       policy,
		done:         make(chan bool),
	}
}

// Run starts the scheduler's ticking loop.
func (s *Scheduler) Run() {
	log.Info().Msg("Starting background backup scheduler")
	s.ticker = time.NewTicker(1 * time.Minute)
	defer s.ticker.Stop()

	// Run once immediately on start
	s.checkAndRunSchedules()

	for {
		select {
		case <-s.done:
			log.Info().Msg("Stopping background backup scheduler")
			return
		case <-s.ticker.C:
			s.checkAndRunSchedules()
		}
	}
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	s.done <- true
}

// checkAndRunSchedules queries for due schedules and executes them.
func (s *Scheduler) checkAndRunSchedules() {
	schedules, err := s.scheduleSvc.GetAllActiveSchedules()
	if err != nil {
		log.Error().Err(err).Msg("Scheduler: failed to retrieve active schedules")
		return
	}

	for _, schedule := range schedules {
		cronSchedule, err := cron.ParseStandard(schedule.CronExpression)
		if err != nil {
			log.Error().Err(err).Str("schedule_id", schedule.ID).Msg("Scheduler: invalid cron expression")
			continue
		}

		now := time.Now()
		// If NextRunAt is in the past, it's time to run
		if schedule.NextRunAt != nil && now.After(*schedule.NextRunAt) {
			go s.executeBackup(schedule)

			lastRun := now
			nextRun := cronSchedule.Next(now)
			if err := s.scheduleSvc.UpdateScheduleRunTimes(schedule.ID, lastRun, nextRun); err != nil {
				log.Error().Err(err).Str("schedule_id", schedule.ID).Msg("Scheduler: failed to update run times")
			}
		}
	}
}

// executeBackup backs up the schedule's world and then enforces retention.
// Two schedules for the same world could in principle fire in the same tick;
// schedule creation per world is expected to be one-per-world, and the UI
// enforces that.
func (s *Scheduler) executeBackup(schedule models.Schedule) {
	log.Info().Str("schedule", schedule.Name).Str("world", schedule.WorldName).Msg("Scheduler: running backup schedule")

	world, err := s.worldSvc.GetWorldByName(schedule.WorldName)
	if err != nil {
		s.reportFailure(schedule, fmt.Errorf("resolve world: %w", err))
		return
	}

	if _, err := s.backupSvc.CreateBackup(world); err != nil {
		s.reportFailure(schedule, fmt.Errorf("create backup: %w", err))
		return
	}

	report, err := s.retentionSvc.Enforce(s.policy)
	if err != nil {
		s.reportFailure(schedule, fmt.Errorf("enforce retention: %w", err))
		return
	}
	// budgetStillExceeded is surfaced by the retention service's own event;
	// here we only log the pass outcome.
	log.Info().Str("schedule", schedule.Name).Int("evicted", len(report.Deleted)).
		Bool("budget_still_exceeded", report.BudgetStillExceeded).Msg("Scheduler: schedule completed")

	msg := fmt.Sprintf("Scheduled backup '%s' completed for world '%s'.", schedule.Name, schedule.WorldName)
	s.eventSvc.CreateEvent("schedule.execute.success", "info", msg, &schedule.WorldName)
}

func (s *Scheduler) reportFailure(schedule models.Schedule, err error) {
	log.Error().Err(err).Str("schedule_id", schedule.ID).Msg("Scheduler: schedule failed")
	msg := fmt.Sprintf("Scheduled backup '%s' failed: %v", schedule.Name, err)
	s.eventSvc.CreateEvent("schedule.execute.fail", "error", msg, &schedule.WorldName)
}
