package models

import "time"

// World represents a single game save, identified by its directory name.
type World struct {
	Name         string    `json:"name"`
	Path         string    `json:"-"`        // Internal use, not exposed to client
	IsActive     bool      `json:"isActive"` // A running game appears to be writing to this save
	LastModified time.Time `json:"lastModified"`
}
