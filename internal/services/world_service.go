package services

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/avendel/worldvault/internal/models"
)

// WorldServiceProvider defines the interface for world discovery.
type WorldServiceProvider interface {
	ListWorlds() ([]models.World, error)
	GetWorldByName(name string) (models.World, error)
	IsWorldActive(world models.World) bool
}

// activityWindow is how recently a key save file must have been written for
// the world to count as in use by a running game.
const activityWindow = 60 * time.Second

// Files Project Zomboid keeps rewriting while a world is being played.
var keySaveFiles = []string{"players.db", "map_meta.bin", "reanimated.bin"}

// WorldService discovers worlds by scanning the saves root. Worlds are never
// persisted as objects; every call re-reads the directory tree.
type WorldService struct {
	savesRoot string
}

// NewWorldService creates a new WorldService.
func NewWorldService(savesRoot string) *WorldService {
	return &WorldService{savesRoot: savesRoot}
}

// ListWorlds enumerates the immediate subdirectories of the saves root that
// hold at least one file. An absent or unreadable root is an error; an empty
// root is simply zero worlds.
func (s *WorldService) ListWorlds() ([]models.World, error) {
	entries, err := os.ReadDir(s.savesRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: saves root %s: %v", ErrAccess, s.savesRoot, err)
	}

	worlds := []models.World{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(s.savesRoot, entry.Name())

		children, err := os.ReadDir(path)
		if err != nil || len(children) == 0 {
			// Unreadable or empty directories are not usable saves.
			continue
		}

		info, err := entry.Info()
		var modTime time.Time
		if err == nil {
			modTime = info.ModTime()
		}

		world := models.World{
			Name:         entry.Name(),
			Path:         path,
			LastModified: modTime,
		}
		world.IsActive = s.IsWorldActive(world)
		worlds = append(worlds, world)
	}
	return worlds, nil
}

// GetWorldByName resolves a single world by its directory name.
func (s *WorldService) GetWorldByName(name string) (models.World, error) {
	worlds, err := s.ListWorlds()
	if err != nil {
		return models.World{}, err
	}
	for _, w := range worlds {
		if w.Name == name {
			return w, nil
		}
	}
	return models.World{}, fmt.Errorf("%w: world %q", ErrNotFound, name)
}

// IsWorldActive reports whether the world looks like it is being played right
// now, judged by recent writes to the save files the game updates during
// play. Fast and cross-platform, unlike file locking.
func (s *WorldService) IsWorldActive(world models.World) bool {
	now := time.Now()
	for _, name := range keySaveFiles {
		info, err := os.Stat(filepath.Join(world.Path, name))
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < activityWindow {
			return true
		}
	}
	return false
}
