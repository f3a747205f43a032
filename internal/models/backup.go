package models

import "time"

// Backup represents one archive snapshot of a world at a point in time.
// It is derived from the archive file on disk on every listing; nothing
// about it is persisted anywhere else.
type Backup struct {
	WorldName string    `json:"worldName"`
	Name      string    `json:"name"` // Archive file name, e.g. "Muldraugh_20250114-093000.zip"
	Path      string    `json:"-"`    // Internal use, not exposed to client
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`

	// TimestampFromModTime is set when CreatedAt could not be parsed from the
	// archive name and was taken from file modification time instead. Mtime is
	// rewritten by copies and moves, so ordering built on it is approximate.
	TimestampFromModTime bool `json:"approxTimestamp"`
}
