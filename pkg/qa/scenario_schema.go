package qa

import (
	"context"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/nstogner/chatvault/pkg/chatdb"
)

func runSchemaInit(_ context.Context, env *Env, rep *Reporter) error {
	journalMode, foreignKeysOn, err := chatdb.PragmaStatus(env.DB)
	if err != nil {
		return err
	}
	if journalMode != "wal" {
		return fmt.Errorf("journal_mode=%s, want wal", journalMode)
	}
	if !foreignKeysOn {
		return fmt.Errorf("foreign_keys pragma is off")
	}
	rep.Line("journal_mode", journalMode)
	rep.Line("foreign_keys", 1)
	rep.Line("schema_init", true)
	return nil
}

// runFKViolation inserts a message against a session id that does not
// exist and asserts SQLite's foreign key enforcement rejects it.
func runFKViolation(ctx context.Context, env *Env, rep *Reporter) error {
	_, err := env.DB.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, branch_id, seq, role, content, created_at, updated_at)
		 VALUES ('00000000-0000-7000-8000-000000000001', '00000000-0000-7000-8000-000000000002',
		         '00000000-0000-7000-8000-000000000003', 0, 'user', 'orphan', 0, 0)`,
	)
	if err == nil {
		return fmt.Errorf("expected foreign key violation, insert succeeded")
	}
	var sqliteErr sqlite3.Error
	if !asSQLiteError(err, &sqliteErr) {
		return fmt.Errorf("expected sqlite3.Error, got %T: %v", err, err)
	}
	if sqliteErr.Code != sqlite3.ErrConstraint {
		return fmt.Errorf("expected constraint error, got code %v", sqliteErr.Code)
	}
	rep.Line("fk_violation", true)
	return nil
}

func asSQLiteError(err error, target *sqlite3.Error) bool {
	se, ok := err.(sqlite3.Error)
	if !ok {
		return false
	}
	*target = se
	return true
}
