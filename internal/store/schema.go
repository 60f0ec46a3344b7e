package store

import (
	"database/sql"

	"codeberg.org/mutker/followerctl/internal/errors"
	"codeberg.org/mutker/followerctl/internal/logger"
)

// SchemaVersion is bumped whenever the kv layout changes.
const SchemaVersion = 1

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS schema_versions (
		version    INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
}

const (
	selectValueSQL = `SELECT value FROM kv WHERE key = ?`

	upsertValueSQL = `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	recordVersionSQL = `INSERT INTO schema_versions (version, applied_at) VALUES (?, datetime('now'))`

	latestVersionSQL = `SELECT version FROM schema_versions ORDER BY version DESC LIMIT 1`

	tableExistsSQL = `SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?)`
)

// phaseError is the payload attached to schema failures.
type phaseError struct {
	Phase string
	Table string `json:",omitempty"`
	Error string
}

// InitSchema creates the tables and records SchemaVersion in one transaction.
func InitSchema(db *sql.DB, log logger.Logger) error {
	log.Debug().Msg("Creating state schema")

	err := withTx(db, log, func(tx *sql.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.Exec(stmt); err != nil {
				return errors.New().WithData(errors.ErrInitFailed, phaseError{Phase: "create_tables", Error: err.Error()})
			}
		}
		if _, err := tx.Exec(recordVersionSQL, SchemaVersion); err != nil {
			return errors.New().WithData(errors.ErrInitFailed, phaseError{Phase: "record_version", Error: err.Error()})
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Int("version", SchemaVersion).Msg("State schema initialized")
	return nil
}

// GetSchemaVersion returns the recorded version, or 0 for a fresh database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	exists, err := TableExists(db, "schema_versions")
	if err != nil || !exists {
		return 0, err
	}

	var version int
	err = db.QueryRow(latestVersionSQL).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, nil
	case err != nil:
		return 0, errors.New().Wrap(errors.ErrInitFailed, err)
	}
	return version, nil
}

func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	if err := db.QueryRow(tableExistsSQL, tableName).Scan(&exists); err != nil {
		return false, errors.New().Wrap(errors.ErrInitFailed, err)
	}
	return exists, nil
}
