package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/followerctl/internal/errors"
	"codeberg.org/mutker/followerctl/internal/logger"
)

// withTx runs fn in a transaction, committing only when fn succeeds.
func withTx(db *sql.DB, log logger.Logger, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.New().Wrap(errors.ErrInitFailed, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Debug().Err(rbErr).Msg("Rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.New().Wrap(errors.ErrInitFailed, err)
	}
	return nil
}

// backupDatabase copies the live database into dir before it is recreated.
func backupDatabase(db *sql.DB, dir string, version int, log logger.Logger) (string, error) {
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return "", errors.New().Wrap(errors.ErrInitFailed, err)
	}

	name := fmt.Sprintf("state_v%d_%s.db", version, time.Now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)

	// VACUUM INTO refuses to run inside a transaction.
	if _, err := db.Exec("VACUUM INTO ?", path); err != nil {
		return "", errors.New().Wrap(errors.ErrInitFailed, err)
	}

	log.Info().Str("path", path).Int("version", version).Msg("State database backed up")
	return path, nil
}

// ValidateAndUpdateSchema creates the schema on an empty database. A database
// from another schema version is backed up to backupDir and recreated, which
// drops any stored baselines; the next run re-initializes them.
func ValidateAndUpdateSchema(db *sql.DB, backupDir string, log logger.Logger) error {
	version, err := GetSchemaVersion(db)
	if err != nil {
		return err
	}

	log.Debug().Int("found", version).Int("want", SchemaVersion).Msg("Checking state schema")

	switch version {
	case SchemaVersion:
		return nil
	case 0:
		return InitSchema(db, log)
	}

	if _, err := backupDatabase(db, backupDir, version, log); err != nil {
		return err
	}
	if err := dropTables(db, log); err != nil {
		return err
	}
	return InitSchema(db, log)
}

func dropTables(db *sql.DB, log logger.Logger) error {
	return withTx(db, log, func(tx *sql.Tx) error {
		for _, table := range []string{"kv", "schema_versions"} {
			if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
				return errors.New().WithData(errors.ErrInitFailed, phaseError{Phase: "drop_table", Table: table, Error: err.Error()})
			}
		}
		return nil
	})
}
