package services

import "errors"

// Failure classes surfaced by the backup core. Callers branch on these with
// errors.Is; the wrapped message carries the path-level detail.
var (
	// ErrAccess means a required path is missing or unreadable.
	ErrAccess = errors.New("path missing or unreadable")

	// ErrIO covers write failures such as disk full or permission denied.
	// Partial artifacts are cleaned up before it is returned.
	ErrIO = errors.New("i/o failure")

	// ErrSourceMissing means the world directory vanished while it was being
	// archived. No partial archive is left visible.
	ErrSourceMissing = errors.New("world directory disappeared during backup")

	// ErrCorruptArchive means an archive could not be fully read during restore.
	ErrCorruptArchive = errors.New("archive is corrupt or truncated")

	// ErrNotFound means the referenced backup no longer exists on disk.
	// Deletion treats it as success; everything else reports it.
	ErrNotFound = errors.New("backup not found")

	// ErrWorldActive means the world appears to be in use by a running game.
	ErrWorldActive = errors.New("world is currently active")
)
