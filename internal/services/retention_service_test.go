package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avendel/worldvault/internal/models"
)

// newTestRetentionService wires a RetentionService over a real backup
// service and a temp backups root.
func newTestRetentionService(t *testing.T) (*RetentionService, *BackupService, string, *stubEvents) {
	t.Helper()
	savesRoot := t.TempDir()
	backupsRoot := t.TempDir()
	events := &stubEvents{}
	backups := NewBackupService(backupsRoot, NewWorldService(savesRoot), events)
	return NewRetentionService(backups, events), backups, backupsRoot, events
}

func archiveNames(backups []models.Backup) []string {
	names := make([]string, len(backups))
	for i, b := range backups {
		names[i] = b.Name
	}
	return names
}

func assertNames(t *testing.T, got []models.Backup, want ...string) {
	t.Helper()
	names := archiveNames(got)
	if len(names) != len(want) {
		t.Fatalf("deleted %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("deleted %v, want %v", names, want)
		}
	}
}

// Five one-byte backups, budget of three bytes, floor of three: the two
// oldest go, three remain, budget met.
func TestEnforceEvictsOldestFirst(t *testing.T) {
	svc, _, backupsRoot, _ := newTestRetentionService(t)

	for _, name := range []string{
		"Muldraugh_20250101-000000.zip",
		"Muldraugh_20250102-000000.zip",
		"Muldraugh_20250103-000000.zip",
		"Muldraugh_20250104-000000.zip",
		"Muldraugh_20250105-000000.zip",
	} {
		writeArchive(t, backupsRoot, name, 1)
	}

	report, err := svc.Enforce(models.RetentionPolicy{MaxAggregateBytes: 3, MinKeepPerWorld: 3})
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}

	assertNames(t, report.Deleted,
		"Muldraugh_20250101-000000.zip",
		"Muldraugh_20250102-000000.zip")
	if report.BudgetStillExceeded {
		t.Error("budget is met, flag must be false")
	}
	if report.FinalAggregateBytes != 3 {
		t.Errorf("final aggregate = %d, want 3", report.FinalAggregateBytes)
	}

	entries, _ := os.ReadDir(backupsRoot)
	if len(entries) != 3 {
		t.Errorf("expected 3 archives on disk, found %d", len(entries))
	}
}

// Same overage, but the floor equals the backup count: nothing may be
// deleted and the caller gets the intervention signal.
func TestEnforceFloorBlocksEviction(t *testing.T) {
	svc, _, backupsRoot, events := newTestRetentionService(t)

	for day := 1; day <= 5; day++ {
		writeArchive(t, backupsRoot, ArchiveName("Muldraugh", dayStamp(day)), 1)
	}

	report, err := svc.Enforce(models.RetentionPolicy{MaxAggregateBytes: 3, MinKeepPerWorld: 5})
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}

	if len(report.Deleted) != 0 {
		t.Fatalf("floor must block every deletion, deleted %v", archiveNames(report.Deleted))
	}
	if !report.BudgetStillExceeded {
		t.Error("expected budgetStillExceeded=true")
	}
	if report.FinalAggregateBytes != 5 {
		t.Errorf("final aggregate = %d, want 5", report.FinalAggregateBytes)
	}

	entries, _ := os.ReadDir(backupsRoot)
	if len(entries) != 5 {
		t.Errorf("expected all 5 archives untouched, found %d", len(entries))
	}

	warned := false
	for _, e := range events.events {
		if e.Type == "retention.budget_exceeded" {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a retention.budget_exceeded event")
	}
}

// Two worlds over budget together: eviction picks the globally oldest
// eligible backup each round, and worlds drop out of the eligible set as
// they reach the floor.
func TestEnforceAcrossWorlds(t *testing.T) {
	svc, _, backupsRoot, _ := newTestRetentionService(t)

	writeArchive(t, backupsRoot, "B_20250101-000000.zip", 1) // globally oldest
	writeArchive(t, backupsRoot, "A_20250102-000000.zip", 2)
	writeArchive(t, backupsRoot, "A_20250103-000000.zip", 2)
	writeArchive(t, backupsRoot, "B_20250104-000000.zip", 3)

	report, err := svc.Enforce(models.RetentionPolicy{MaxAggregateBytes: 6, MinKeepPerWorld: 1})
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}

	// B's oldest goes first (aggregate 8 -> 7). B is then at the floor, so
	// the next victim is A's oldest (7 -> 5).
	assertNames(t, report.Deleted,
		"B_20250101-000000.zip",
		"A_20250102-000000.zip")
	if report.BudgetStillExceeded {
		t.Error("budget is met, flag must be false")
	}
	if report.FinalAggregateBytes != 5 {
		t.Errorf("final aggregate = %d, want 5", report.FinalAggregateBytes)
	}
}

// A world already below the floor is untouched even when it is the largest
// contributor to the overage.
func TestEnforceLeavesWorldsBelowFloorAlone(t *testing.T) {
	svc, _, backupsRoot, _ := newTestRetentionService(t)

	writeArchive(t, backupsRoot, "Big_20250101-000000.zip", 10)
	writeArchive(t, backupsRoot, "Big_20250102-000000.zip", 10)
	writeArchive(t, backupsRoot, "Small_20250103-000000.zip", 1)
	writeArchive(t, backupsRoot, "Small_20250104-000000.zip", 1)
	writeArchive(t, backupsRoot, "Small_20250105-000000.zip", 1)
	writeArchive(t, backupsRoot, "Small_20250106-000000.zip", 1)

	report, err := svc.Enforce(models.RetentionPolicy{MaxAggregateBytes: 21, MinKeepPerWorld: 3})
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}

	// Big has only 2 backups (floor is 3): ineligible despite its 20 bytes.
	// Small sheds its oldest; budget still cannot be met.
	assertNames(t, report.Deleted, "Small_20250103-000000.zip")
	if !report.BudgetStillExceeded {
		t.Error("expected budgetStillExceeded=true once only floored worlds remain")
	}
	if report.FinalAggregateBytes != 23 {
		t.Errorf("final aggregate = %d, want 23", report.FinalAggregateBytes)
	}
}

// Identical disk state and policy must evict the identical ordered sequence.
func TestEnforceDeterministic(t *testing.T) {
	policy := models.RetentionPolicy{MaxAggregateBytes: 2, MinKeepPerWorld: 0}

	build := func(t *testing.T) (*RetentionService, string) {
		svc, _, backupsRoot, _ := newTestRetentionService(t)
		// Same timestamp everywhere: ordering falls back to archive names.
		writeArchive(t, backupsRoot, "Cherry_20250101-120000.zip", 1)
		writeArchive(t, backupsRoot, "Apple_20250101-120000.zip", 1)
		writeArchive(t, backupsRoot, "Banana_20250101-120000.zip", 1)
		writeArchive(t, backupsRoot, "Damson_20250101-120000.zip", 1)
		return svc, backupsRoot
	}

	var first []string
	for run := 0; run < 5; run++ {
		svc, _ := build(t)
		report, err := svc.Enforce(policy)
		if err != nil {
			t.Fatalf("Enforce run %d: %v", run, err)
		}
		names := archiveNames(report.Deleted)
		if run == 0 {
			first = names
			// Lexicographic tie-break on equal timestamps.
			assertNames(t, report.Deleted,
				"Apple_20250101-120000.zip",
				"Banana_20250101-120000.zip")
			continue
		}
		if len(names) != len(first) {
			t.Fatalf("run %d deleted %v, first run deleted %v", run, names, first)
		}
		for i := range names {
			if names[i] != first[i] {
				t.Fatalf("run %d deleted %v, first run deleted %v", run, names, first)
			}
		}
	}
}

// Eviction order follows the timestamp encoded in the name whenever it
// parses, even if file modification times disagree (they are rewritten by
// copies and moves).
func TestEnforceNameTimestampBeatsModTime(t *testing.T) {
	svc, _, backupsRoot, _ := newTestRetentionService(t)

	writeArchive(t, backupsRoot, "W_20250101-000000.zip", 1)
	writeArchive(t, backupsRoot, "W_20250105-000000.zip", 1)
	writeArchive(t, backupsRoot, "W_20250103-000000.zip", 1)

	// Scramble mtimes so the newest-by-name file looks oldest on disk.
	for i, name := range []string{"W_20250105-000000.zip", "W_20250103-000000.zip", "W_20250101-000000.zip"} {
		at := dayStamp(i + 1)
		if err := os.Chtimes(filepath.Join(backupsRoot, name), at, at); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	report, err := svc.Enforce(models.RetentionPolicy{MaxAggregateBytes: 1, MinKeepPerWorld: 0})
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	assertNames(t, report.Deleted,
		"W_20250101-000000.zip",
		"W_20250103-000000.zip")
}

func TestEnforceUnderBudgetIsNoop(t *testing.T) {
	svc, _, backupsRoot, events := newTestRetentionService(t)

	writeArchive(t, backupsRoot, "Muldraugh_20250101-000000.zip", 1)

	report, err := svc.Enforce(models.RetentionPolicy{MaxAggregateBytes: 100, MinKeepPerWorld: 3})
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if len(report.Deleted) != 0 || report.BudgetStillExceeded {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.FinalAggregateBytes != 1 {
		t.Errorf("final aggregate = %d, want 1", report.FinalAggregateBytes)
	}
	if len(events.events) != 0 {
		t.Errorf("a no-op pass must emit no events, got %v", events.events)
	}
}

// Enforce works off a fresh directory scan, so archives removed out-of-band
// are neither counted nor re-deleted.
func TestEnforceUsesLiveDiskState(t *testing.T) {
	svc, backups, backupsRoot, _ := newTestRetentionService(t)

	writeArchive(t, backupsRoot, "W_20250101-000000.zip", 1)
	writeArchive(t, backupsRoot, "W_20250102-000000.zip", 1)
	writeArchive(t, backupsRoot, "W_20250103-000000.zip", 1)

	// A manual cleanup happened since the last inventory read.
	oldest, err := backups.GetBackupByName("W_20250101-000000.zip")
	if err != nil {
		t.Fatalf("GetBackupByName: %v", err)
	}
	if err := os.Remove(oldest.Path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	report, err := svc.Enforce(models.RetentionPolicy{MaxAggregateBytes: 1, MinKeepPerWorld: 0})
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	assertNames(t, report.Deleted, "W_20250102-000000.zip")
	if report.FinalAggregateBytes != 1 {
		t.Errorf("final aggregate = %d, want 1", report.FinalAggregateBytes)
	}
}

// flakyDeleteBackupService serves a fixed inventory and fails every delete
// after the first with a non-NotFound error, like a backup volume detaching
// mid-pass. Only the methods Enforce touches do real work.
type flakyDeleteBackupService struct {
	byWorld map[string][]models.Backup
	deletes int
}

func (s *flakyDeleteBackupService) ListAllBackups() (map[string][]models.Backup, error) {
	return s.byWorld, nil
}

func (s *flakyDeleteBackupService) DeleteBackup(backup models.Backup) error {
	s.deletes++
	if s.deletes > 1 {
		return fmt.Errorf("%w: delete %s: input/output error", ErrIO, backup.Name)
	}
	return nil
}

func (s *flakyDeleteBackupService) CreateBackup(world models.World) (models.Backup, error) {
	return models.Backup{}, nil
}

func (s *flakyDeleteBackupService) ListBackups(worldName string) ([]models.Backup, error) {
	return s.byWorld[worldName], nil
}

func (s *flakyDeleteBackupService) AggregateSize() (int64, error) { return 0, nil }

func (s *flakyDeleteBackupService) RestoreBackup(backup models.Backup, world models.World) error {
	return nil
}

func (s *flakyDeleteBackupService) GetBackupByName(name string) (models.Backup, error) {
	return models.Backup{}, nil
}

// A delete failure that is not "already gone" aborts the pass; the partial
// report still lists what was deleted before the failure so the caller can
// retry without under-counting progress.
func TestEnforceAbortsOnDeleteFailure(t *testing.T) {
	backups := &flakyDeleteBackupService{
		byWorld: map[string][]models.Backup{
			"W": {
				{WorldName: "W", Name: "W_20250101-000000.zip", Size: 1, CreatedAt: dayStamp(1)},
				{WorldName: "W", Name: "W_20250102-000000.zip", Size: 1, CreatedAt: dayStamp(2)},
				{WorldName: "W", Name: "W_20250103-000000.zip", Size: 1, CreatedAt: dayStamp(3)},
			},
		},
	}
	events := &stubEvents{}
	svc := NewRetentionService(backups, events)

	report, err := svc.Enforce(models.RetentionPolicy{MaxAggregateBytes: 0, MinKeepPerWorld: 0})
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected the pass to abort with ErrIO, got %v", err)
	}

	// The oldest went through before the failure; nothing else may be
	// reported as deleted.
	assertNames(t, report.Deleted, "W_20250101-000000.zip")
	if report.FinalAggregateBytes != 2 {
		t.Errorf("final aggregate = %d, want 2", report.FinalAggregateBytes)
	}
	if report.BudgetStillExceeded {
		t.Error("an aborted pass must not claim the floor blocked it")
	}

	failed := false
	for _, e := range events.events {
		if e.Type == "retention.enforce.fail" {
			failed = true
		}
	}
	if !failed {
		t.Error("expected a retention.enforce.fail event")
	}
}

// dayStamp returns noon on the given January 2025 day, local time.
func dayStamp(day int) time.Time {
	return time.Date(2025, 1, day, 12, 0, 0, 0, time.Local)
}
