package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/avendel/worldvault/internal/models"
)

// ScheduleServiceProvider defines the interface for schedule services.
type ScheduleServiceProvider interface {
	CreateSchedule(schedule models.Schedule) (models.Schedule, error)
	GetSchedulesForWorld(worldName string) ([]models.Schedule, error)
	GetScheduleByID(scheduleID string) (models.Schedule, error)
	GetAllActiveSchedules() ([]models.Schedule, error)
	DeleteSchedule(scheduleID string) error
	UpdateScheduleRunTimes(scheduleID string, lastRun time.Time, nextRun time.Time) error
}

// ScheduleService manages the automated backup schedules. Schedules hold
// timer configuration only; the backup core stays timer-free and is invoked
// by the monitoring scheduler when a schedule comes due.
type ScheduleService struct {
	db           *sql.DB
	eventService EventServiceProvider
}

// NewScheduleService creates a new ScheduleService.
func NewScheduleService(db *sql.DB, eventService EventServiceProvider) *ScheduleService {
	return &ScheduleService{
		db:           db,
		eventService: eventService,
	}
}

// CreateSchedule validates the cron expression, computes the first run time
// and saves the schedule.
func (s *ScheduleService) CreateSchedule(schedule models.Schedule) (models.Schedule, error) {
	cronSchedule, err := cron.ParseStandard(schedule.CronExpression)
	if err != nil {
		return models.Schedule{}, fmt.Errorf("invalid cron expression: %w", err)
	}

	if schedule.ID == "" {
		schedule.ID = uuid.New().String()
	}
	nextRun := cronSchedule.Next(time.Now())
	schedule.NextRunAt = &nextRun

	stmt, err := s.db.Prepare(`
		INSERT INTO schedules (id, world_name, name, cron_expression, is_active, next_run_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return models.Schedule{}, err
	}
	defer stmt.Close()

	_, err = stmt.Exec(schedule.ID, schedule.WorldName, schedule.Name, schedule.CronExpression, schedule.IsActive, schedule.NextRunAt)
	if err != nil {
		return models.Schedule{}, err
	}

	s.eventService.CreateEvent("schedule.create", "info",
		fmt.Sprintf("Backup schedule '%s' created for world '%s'.", schedule.Name, schedule.WorldName), &schedule.WorldName)
	return s.GetScheduleByID(schedule.ID)
}

// GetSchedulesForWorld retrieves all schedules for a specific world.
func (s *ScheduleService) GetSchedulesForWorld(worldName string) ([]models.Schedule, error) {
	rows, err := s.db.Query(`
		SELECT id, world_name, name, cron_expression, is_active, last_run_at, next_run_at, created_at
		FROM schedules WHERE world_name = ? ORDER BY created_at DESC`, worldName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSchedules(rows)
}

// GetScheduleByID retrieves a single schedule by its ID.
func (s *ScheduleService) GetScheduleByID(scheduleID string) (models.Schedule, error) {
	row := s.db.QueryRow(`
		SELECT id, world_name, name, cron_expression, is_active, last_run_at, next_run_at, created_at
		FROM schedules WHERE id = ?`, scheduleID)

	schedule, err := scanSchedule(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Schedule{}, fmt.Errorf("schedule with id %s not found", scheduleID)
		}
		return models.Schedule{}, err
	}
	return schedule, nil
}

// GetAllActiveSchedules retrieves all active schedules from the database.
func (s *ScheduleService) GetAllActiveSchedules() ([]models.Schedule, error) {
	rows, err := s.db.Query(`
		SELECT id, world_name, name, cron_expression, is_active, last_run_at, next_run_at, created_at
		FROM schedules WHERE is_active = TRUE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSchedules(rows)
}

// DeleteSchedule removes a schedule.
func (s *ScheduleService) DeleteSchedule(scheduleID string) error {
	schedule, err := s.GetScheduleByID(scheduleID)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec("DELETE FROM schedules WHERE id = ?", scheduleID); err != nil {
		return err
	}

	s.eventService.CreateEvent("schedule.delete", "info",
		fmt.Sprintf("Backup schedule '%s' for world '%s' was deleted.", schedule.Name, schedule.WorldName), &schedule.WorldName)
	return nil
}

// UpdateScheduleRunTimes records when a schedule last ran and when it runs next.
func (s *ScheduleService) UpdateScheduleRunTimes(scheduleID string, lastRun time.Time, nextRun time.Time) error {
	_, err := s.db.Exec("UPDATE schedules SET last_run_at = ?, next_run_at = ? WHERE id = ?", lastRun, nextRun, scheduleID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (models.Schedule, error) {
	var schedule models.Schedule
	err := row.Scan(&schedule.ID, &schedule.WorldName, &schedule.Name, &schedule.CronExpression,
		&schedule.IsActive, &schedule.LastRunAt, &schedule.NextRunAt, &schedule.CreatedAt)
	return schedule, err
}

func scanSchedules(rows *sql.Rows) ([]models.Schedule, error) {
	var schedules []models.Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}
