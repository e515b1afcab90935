package qa

import (
	"database/sql"

	"github.com/nstogner/chatvault/pkg/chatdb"
	"github.com/nstogner/chatvault/pkg/store"
	"github.com/nstogner/chatvault/pkg/store/sqlite"
)

// Env bundles the open database handle and store facade each scenario
// runs against. DBPath is kept around for scenarios (migrate_*) that
// need the raw path, e.g. to locate a sibling fixture file.
type Env struct {
	DBPath string
	DB     *sql.DB
	Store  store.Storage
}

// OpenEnv opens (creating and migrating if necessary) the database at
// dbPath and returns a ready Env.
func OpenEnv(dbPath string) (*Env, error) {
	st, err := sqlite.New(dbPath)
	if err != nil {
		return nil, err
	}
	db, err := chatdb.Open(dbPath)
	if err != nil {
		return nil, err
	}
	// chatdb.Open is idempotent against an already-migrated database;
	// scenarios that need raw SQL access (schema_init, fk_violation,
	// migrate_*) use DB directly, everything else goes through Store.
	return &Env{DBPath: dbPath, DB: db, Store: st}, nil
}

// Close releases both handles.
func (e *Env) Close() error {
	if err := e.Store.(interface{ Close() error }).Close(); err != nil {
		return err
	}
	return e.DB.Close()
}
