// Package chatdb owns the SQLite schema, its embedded migrations, and
// the connection-opening routine that applies durability and
// concurrency pragmas before handing a *sql.DB to the store layer.
package chatdb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nstogner/chatvault/pkg/chaterr"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// BusyTimeoutMillis is the SQLite busy_timeout the engine relies on as a
// safety net against brief read/write overlap in a single-process
// writer model (spec §5).
const BusyTimeoutMillis = 5000

// Open creates parent directories for dbPath as needed, opens a SQLite
// connection with WAL journaling, foreign keys, and a busy timeout,
// applies all embedded migrations, and returns the ready-to-use handle.
func Open(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		return nil, &chaterr.Bootstrap{Stage: "path", Err: errors.New("empty db path")}
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &chaterr.Bootstrap{Stage: "mkdir", Err: err}
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=%d&_txlock=immediate", dbPath, BusyTimeoutMillis)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &chaterr.Bootstrap{Stage: "open", Err: err}
	}

	if err := verifyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func verifyPragmas(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return &chaterr.Bootstrap{Stage: "pragma_journal_mode", Err: err}
	}
	if journalMode != "wal" {
		return &chaterr.Bootstrap{Stage: "pragma_journal_mode", Err: fmt.Errorf("got journal_mode=%s, want wal", journalMode)}
	}
	var foreignKeys int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		return &chaterr.Bootstrap{Stage: "pragma_foreign_keys", Err: err}
	}
	if foreignKeys != 1 {
		return &chaterr.Bootstrap{Stage: "pragma_foreign_keys", Err: errors.New("foreign_keys pragma did not take effect")}
	}
	return nil
}

// PragmaStatus reports the live journal_mode and foreign_keys pragma
// values, used by the QA harness's schema_init scenario to assert
// bootstrap actually took effect.
func PragmaStatus(db *sql.DB) (journalMode string, foreignKeysOn bool, err error) {
	if err = db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return "", false, err
	}
	var fk int
	if err = db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		return "", false, err
	}
	return journalMode, fk == 1, nil
}

func migrateUp(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return &chaterr.Bootstrap{Stage: "migration_driver", Err: err}
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return &chaterr.Bootstrap{Stage: "migration_source", Err: err}
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return &chaterr.Bootstrap{Stage: "migration_init", Err: err}
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return &chaterr.Bootstrap{Stage: "migration_up", Err: err}
	}
	return nil
}
