package models

import "time"

// Schedule represents an automated backup task for a world. Each run creates
// a backup of the world and then enforces the retention policy.
type Schedule struct {
	ID             string     `json:"id"`
	WorldName      string     `json:"worldName"`
	Name           string     `json:"name"`
	CronExpression string     `json:"cronExpression"` // e.g., "0 */2 * * *" for every two hours
	IsActive       bool       `json:"isActive"`
	LastRunAt      *time.Time `json:"lastRunAt"`
	NextRunAt      *time.Time `json:"nextRunAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}
