package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/avendel/worldvault/internal/models"
)

// Config holds the application configuration.
type Config struct {
	ServerPort   int
	DatabasePath string
	SavesRoot    string // Directory containing one subdirectory per world
	BackupsRoot  string // Directory where backup archives are stored
	Retention    models.RetentionPolicy
}

const (
	defaultMaxAggregateBytes = 5 << 30 // 5 GiB
	defaultMinKeepPerWorld   = 3
)

// Load loads configuration from environment variables or sets defaults.
func Load() (*Config, error) {
	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}

	maxBytes, err := strconv.ParseInt(getEnv("MAX_AGGREGATE_BYTES", strconv.FormatInt(defaultMaxAggregateBytes, 10)), 10, 64)
	if err != nil {
		return nil, err
	}
	minKeep, err := strconv.Atoi(getEnv("MIN_KEEP_PER_WORLD", strconv.Itoa(defaultMinKeepPerWorld)))
	if err != nil {
		return nil, err
	}

	zomboidDir := getEnv("ZOMBOID_DIR", DefaultZomboidDir())

	return &Config{
		ServerPort:   port,
		DatabasePath: getEnv("DATABASE_PATH", "./worldvault.db"),
		SavesRoot:    getEnv("SAVES_ROOT", filepath.Join(zomboidDir, "Saves")),
		BackupsRoot:  getEnv("BACKUPS_ROOT", filepath.Join(zomboidDir, "Backups")),
		Retention: models.RetentionPolicy{
			MaxAggregateBytes: maxBytes,
			MinKeepPerWorld:   minKeep,
		},
	}, nil
}

// DefaultZomboidDir is a best-effort detection of the Project Zomboid data
// directory for the current platform. Falls back to ~/Zomboid when the
// platform-specific location does not exist.
func DefaultZomboidDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "Zomboid"
	}

	fallback := filepath.Join(home, "Zomboid")

	switch runtime.GOOS {
	case "windows":
		return fallback
	case "darwin":
		if dir := filepath.Join(home, "Library", "Application Support", "Zomboid"); dirExists(dir) {
			return dir
		}
	default:
		if dir := filepath.Join(home, ".local", "share", "Zomboid"); dirExists(dir) {
			return dir
		}
	}
	return fallback
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
