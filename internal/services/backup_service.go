package services

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avendel/worldvault/internal/models"
)

// ArchiveExt is the file extension of backup archives.
const ArchiveExt = ".zip"

// TimestampLayout is the fixed-width, lexicographically sortable encoding of
// the creation time inside an archive name: <worldName>_<YYYYMMDD-HHMMSS>.zip.
// Fixed width means sorting archives by name equals sorting them by time.
const TimestampLayout = "20060102-150405"

// BackupServiceProvider defines the interface for backup services.
type BackupServiceProvider interface {
	CreateBackup(world models.World) (models.Backup, error)
	ListBackups(worldName string) ([]models.Backup, error)
	ListAllBackups() (map[string][]models.Backup, error)
	AggregateSize() (int64, error)
	RestoreBackup(backup models.Backup, world models.World) error
	DeleteBackup(backup models.Backup) error
	GetBackupByName(name string) (models.Backup, error)
}

// BackupService archives world directories into the backups root and reads
// the inventory back from it. The directory listing is authoritative: there
// is no index to update or invalidate, every query re-scans the disk.
type BackupService struct {
	backupsRoot  string
	worldService WorldServiceProvider
	eventService EventServiceProvider
}

// NewBackupService creates a new BackupService.
func NewBackupService(backupsRoot string, worldService WorldServiceProvider, eventService EventServiceProvider) *BackupService {
	// Ensure the base directory for backups exists
	if err := os.MkdirAll(backupsRoot, 0755); err != nil {
		log.Error().Err(err).Str("path", backupsRoot).Msg("Failed to create backups root")
	}
	return &BackupService{
		backupsRoot:  backupsRoot,
		worldService: worldService,
		eventService: eventService,
	}
}

// ArchiveName returns the deterministic archive name for a world backed up
// at the given time.
func ArchiveName(worldName string, at time.Time) string {
	return fmt.Sprintf("%s_%s%s", worldName, at.Format(TimestampLayout), ArchiveExt)
}

// ParseArchiveName splits an archive file name into world name and creation
// time. World names may themselves contain underscores, so the timestamp is
// taken from the suffix after the last one.
func ParseArchiveName(name string) (worldName string, createdAt time.Time, ok bool) {
	base := strings.TrimSuffix(name, ArchiveExt)
	if base == name {
		return "", time.Time{}, false
	}
	idx := strings.LastIndex(base, "_")
	if idx <= 0 {
		return "", time.Time{}, false
	}
	ts, err := time.ParseInLocation(TimestampLayout, base[idx+1:], time.Local)
	if err != nil {
		return "", time.Time{}, false
	}
	return base[:idx], ts, true
}

// CreateBackup writes a new archive containing a full recursive copy of the
// world's save directory. The archive is written to a temporary file and
// renamed into place on success, so a crash or failed write never leaves a
// half-written backup visible to the inventory scan.
func (s *BackupService) CreateBackup(world models.World) (models.Backup, error) {
	if _, err := os.Stat(world.Path); err != nil {
		if os.IsNotExist(err) {
			return models.Backup{}, fmt.Errorf("%w: %s", ErrSourceMissing, world.Path)
		}
		return models.Backup{}, fmt.Errorf("%w: %s: %v", ErrAccess, world.Path, err)
	}

	// Archive names carry second precision. Bump the timestamp past any
	// existing archive so a second backup within the same second gets its own
	// name instead of silently replacing the published one.
	at := time.Now()
	archiveName := ArchiveName(world.Name, at)
	finalPath := filepath.Join(s.backupsRoot, archiveName)
	for {
		_, err := os.Stat(finalPath)
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			return models.Backup{}, fmt.Errorf("%w: %s: %v", ErrIO, finalPath, err)
		}
		at = at.Add(time.Second)
		archiveName = ArchiveName(world.Name, at)
		finalPath = filepath.Join(s.backupsRoot, archiveName)
	}

	tmpFile, err := os.CreateTemp(s.backupsRoot, archiveName+".tmp-*")
	if err != nil {
		return models.Backup{}, fmt.Errorf("%w: create temp archive: %v", ErrIO, err)
	}
	tmpPath := tmpFile.Name()

	cleanup := func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}

	zipWriter := zip.NewWriter(tmpFile)
	err = filepath.Walk(world.Path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(world.Path, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		if info.IsDir() {
			_, err = zipWriter.Create(filepath.ToSlash(relPath) + "/")
			return err
		}
		writer, err := zipWriter.Create(filepath.ToSlash(relPath))
		if err != nil {
			return err
		}
		fileToZip, err := os.Open(path)
		if err != nil {
			return err
		}
		defer fileToZip.Close()
		_, err = io.Copy(writer, fileToZip)
		return err
	})
	if err != nil {
		cleanup()
		if os.IsNotExist(err) {
			// The game (or the user) removed the world out from under us.
			return models.Backup{}, fmt.Errorf("%w: %s", ErrSourceMissing, world.Path)
		}
		return models.Backup{}, fmt.Errorf("%w: archive %s: %v", ErrIO, world.Name, err)
	}

	if err := zipWriter.Close(); err != nil {
		cleanup()
		return models.Backup{}, fmt.Errorf("%w: finalize archive: %v", ErrIO, err)
	}
	if err := tmpFile.Sync(); err != nil {
		cleanup()
		return models.Backup{}, fmt.Errorf("%w: sync archive: %v", ErrIO, err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return models.Backup{}, fmt.Errorf("%w: close archive: %v", ErrIO, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return models.Backup{}, fmt.Errorf("%w: publish archive: %v", ErrIO, err)
	}

	backup, err := s.GetBackupByName(archiveName)
	if err != nil {
		return models.Backup{}, err
	}

	s.eventService.CreateEvent("backup.create", "info",
		fmt.Sprintf("Backup '%s' created for world '%s' (%d bytes).", backup.Name, world.Name, backup.Size), &world.Name)
	log.Info().Str("world", world.Name).Str("archive", backup.Name).Int64("size", backup.Size).Msg("Backup created")

	return backup, nil
}

// ListBackups returns the world's backups ordered oldest-first. Timestamps
// come from the archive name; when the name does not parse the file
// modification time is used instead and the backup is flagged, since mtime
// survives neither copies nor moves.
func (s *BackupService) ListBackups(worldName string) ([]models.Backup, error) {
	backups, err := s.scan()
	if err != nil {
		return nil, err
	}
	filtered := []models.Backup{}
	for _, b := range backups {
		if b.WorldName == worldName {
			filtered = append(filtered, b)
		}
	}
	return filtered, nil
}

// ListAllBackups returns every backup on disk grouped per world, each group
// ordered oldest-first.
func (s *BackupService) ListAllBackups() (map[string][]models.Backup, error) {
	backups, err := s.scan()
	if err != nil {
		return nil, err
	}
	byWorld := make(map[string][]models.Backup)
	for _, b := range backups {
		byWorld[b.WorldName] = append(byWorld[b.WorldName], b)
	}
	return byWorld, nil
}

// AggregateSize sums the sizes of every backup across every world. It is
// recomputed from disk on each call, so out-of-band deletions are picked up.
func (s *BackupService) AggregateSize() (int64, error) {
	backups, err := s.scan()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, b := range backups {
		total += b.Size
	}
	return total, nil
}

// GetBackupByName resolves a single backup by its archive file name.
func (s *BackupService) GetBackupByName(name string) (models.Backup, error) {
	backups, err := s.scan()
	if err != nil {
		return models.Backup{}, err
	}
	for _, b := range backups {
		if b.Name == name {
			return b, nil
		}
	}
	return models.Backup{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// scan reads the backups root and rebuilds the full inventory, ordered
// oldest-first with the archive name as tie-break.
func (s *BackupService) scan() ([]models.Backup, error) {
	entries, err := os.ReadDir(s.backupsRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: backups root %s: %v", ErrAccess, s.backupsRoot, err)
	}

	var backups []models.Backup
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ArchiveExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Deleted between ReadDir and stat; the next scan won't see it.
			continue
		}

		backup := models.Backup{
			Name: entry.Name(),
			Path: filepath.Join(s.backupsRoot, entry.Name()),
			Size: info.Size(),
		}

		worldName, createdAt, ok := ParseArchiveName(entry.Name())
		if ok {
			backup.WorldName = worldName
			backup.CreatedAt = createdAt
		} else {
			backup.WorldName = strings.TrimSuffix(entry.Name(), ArchiveExt)
			backup.CreatedAt = info.ModTime()
			backup.TimestampFromModTime = true
			log.Warn().Str("archive", entry.Name()).
				Msg("Archive name does not encode a timestamp, ordering by mtime is approximate")
		}
		backups = append(backups, backup)
	}

	sort.Slice(backups, func(i, j int) bool {
		if backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].Name < backups[j].Name
		}
		return backups[i].CreatedAt.Before(backups[j].CreatedAt)
	})
	return backups, nil
}

// RestoreBackup extracts an archive over the world's save directory. The
// existing contents are fully replaced, not merged; callers wanting a safety
// net must back up the current state first. Restoring into a world that is
// being played is refused.
func (s *BackupService) RestoreBackup(backup models.Backup, world models.World) error {
	if s.worldService.IsWorldActive(world) {
		return fmt.Errorf("%w: %s, close the game first", ErrWorldActive, world.Name)
	}

	zipReader, err := zip.OpenReader(backup.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, backup.Name)
		}
		return fmt.Errorf("%w: %s: %v", ErrCorruptArchive, backup.Name, err)
	}
	defer zipReader.Close()

	s.eventService.CreateEvent("backup.restore.start", "warn",
		fmt.Sprintf("Restoration of world '%s' from '%s' started.", world.Name, backup.Name), &world.Name)

	// Clear out the world directory so the restore replaces, never merges.
	if err := os.MkdirAll(world.Path, 0755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIO, world.Path, err)
	}
	dir, err := os.ReadDir(world.Path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrAccess, world.Path, err)
	}
	for _, d := range dir {
		if err := os.RemoveAll(filepath.Join(world.Path, d.Name())); err != nil {
			return fmt.Errorf("%w: clear %s: %v", ErrIO, world.Path, err)
		}
	}

	applied := 0
	total := len(zipReader.File)
	for _, f := range zipReader.File {
		if err := extractEntry(f, world.Path); err != nil {
			// Best-effort partial-write report: say how far we got.
			s.eventService.CreateEvent("backup.restore.fail", "error",
				fmt.Sprintf("Restoration of world '%s' failed after %d of %d entries.", world.Name, applied, total), &world.Name)
			return fmt.Errorf("restore applied %d of %d entries: %w", applied, total, err)
		}
		applied++
	}

	s.eventService.CreateEvent("backup.restore.finish", "info",
		fmt.Sprintf("World '%s' restored from backup '%s'.", world.Name, backup.Name), &world.Name)
	log.Info().Str("world", world.Name).Str("archive", backup.Name).Msg("Backup restored")
	return nil
}

// extractEntry writes one archive entry under targetDir.
func extractEntry(f *zip.File, targetDir string) error {
	fpath := filepath.Join(targetDir, f.Name)

	// Prevent ZipSlip vulnerability
	if !strings.HasPrefix(fpath, filepath.Clean(targetDir)+string(os.PathSeparator)) {
		return fmt.Errorf("%w: invalid file path in archive: %s", ErrCorruptArchive, f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(fpath, 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptArchive, f.Name, err)
	}
	defer rc.Close()

	outFile, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, rc); err != nil {
		// Truncated deflate streams surface here, not at Open.
		return fmt.Errorf("%w: %s: %v", ErrCorruptArchive, f.Name, err)
	}
	return nil
}

// DeleteBackup removes the archive file. A backup that is already gone is
// treated as success so that an eviction pass racing a manual cleanup does
// not abort.
func (s *BackupService) DeleteBackup(backup models.Backup) error {
	if err := os.Remove(backup.Path); err != nil {
		if os.IsNotExist(err) {
			log.Debug().Str("archive", backup.Name).Msg("Backup already gone, treating delete as success")
			return nil
		}
		return fmt.Errorf("%w: delete %s: %v", ErrIO, backup.Name, err)
	}

	s.eventService.CreateEvent("backup.delete", "warn",
		fmt.Sprintf("Backup '%s' for world '%s' was deleted.", backup.Name, backup.WorldName), &backup.WorldName)
	return nil
}
