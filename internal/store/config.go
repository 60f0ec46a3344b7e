package store

import (
	"os"
	"path/filepath"

	"codeberg.org/mutker/followerctl/internal/errors"
)

const (
	// File system permissions and paths
	defaultDirPerm = 0o755

	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

type Config struct {
	Driver   string
	Path     string
	RedisURL string
	// BackupDir receives a copy of the database before an incompatible schema is replaced.
	BackupDir string
}

// DefaultPath is ~/.followerctl/state.db, or a relative path when there is no home directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".followerctl", "state.db")
	}
	return filepath.Join(home, ".followerctl", "state.db")
}

func DefaultConfig() Config {
	return Config{
		Driver: DriverSQLite,
		Path:   DefaultPath(),
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	switch c.Driver {
	case DriverSQLite:
		if c.Path == "" {
			return errFactory.WithData(errors.ErrInvalidConfig, "store.path is required for sqlite")
		}
	case DriverRedis:
		if c.RedisURL == "" {
			return errFactory.WithData(errors.ErrInvalidConfig, "store.redis_url is required for redis")
		}
	case DriverMemory:
	default:
		return errFactory.WithData(errors.ErrInvalidConfig, "unknown store driver "+c.Driver)
	}
	return nil
}

func (c Config) backupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Join(filepath.Dir(c.Path), "backups")
}
