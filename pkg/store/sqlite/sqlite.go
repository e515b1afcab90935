// Package sqlite is the one implementation of pkg/store, backed by
// github.com/mattn/go-sqlite3. A Store holds one *sql.DB opened by
// chatdb.Open and keeps no other state between calls; each method draws
// its connection or transaction from that handle's database/sql pool.
// Connections are not dedicated per call: the pool reuses them across
// calls and callers.
package sqlite

import (
	"database/sql"

	"github.com/nstogner/chatvault/pkg/chatdb"
	"github.com/nstogner/chatvault/pkg/store"
)

// Store implements store.Storage (SessionStore, MessageStore, MediaStore,
// AgentEventStore) using a single SQLite database file.
type Store struct {
	db *sql.DB
}

// Verify interface compliance at compile time.
var _ store.Storage = (*Store)(nil)

// New opens (or creates) a SQLite database at dbPath, applies pragmas and
// embedded migrations via chatdb.Open, and returns a ready Store.
func New(dbPath string) (*Store, error) {
	db, err := chatdb.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
