package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/followerctl/internal/errors"
	"codeberg.org/mutker/followerctl/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

type sqliteStore struct {
	db  *sql.DB
	log logger.Logger
	mu  sync.Mutex
}

// NewSQLite opens (creating if needed) the database at cfg.Path.
func NewSQLite(cfg Config) (Store, error) {
	log := logger.Default()

	if cfg.Path == "" {
		return nil, errors.New().WithData(errors.ErrInvalidConfig, "store.path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), defaultDirPerm); err != nil {
		return nil, unavailable("create_directory", err)
	}

	dsn := cfg.Path + "?_journal=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, unavailable("open_database", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, unavailable("ping_database", err)
	}

	if err := ValidateAndUpdateSchema(db, cfg.backupDir(), log); err != nil {
		db.Close()
		return nil, errors.New().Wrap(errors.ErrStoreUnavailable, err)
	}

	log.Debug().
		Str("path", cfg.Path).
		Int("schema_version", SchemaVersion).
		Msg("State database opened")

	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, selectValueSQL, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get", err)
	}
	return value, true, nil
}

func (s *sqliteStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, upsertValueSQL, key, value, time.Now().UnixMilli()); err != nil {
		return unavailable("set", err)
	}
	return nil
}

func (s *sqliteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.log.Debug().Err(err).Msg("Failed to checkpoint WAL")
	}

	if err := s.db.Close(); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}
	return nil
}
