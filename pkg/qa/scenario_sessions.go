package qa

import (
	"context"
	"errors"
	"fmt"

	"github.com/nstogner/chatvault/pkg/chaterr"
)

func runSessionCRUD(ctx context.Context, env *Env, rep *Reporter) error {
	var created int

	first, err := env.Store.CreateSession(ctx, "qa session one")
	if err != nil {
		return err
	}
	created++

	second, err := env.Store.CreateSession(ctx, "qa session two")
	if err != nil {
		return err
	}
	created++

	if err := env.Store.RenameSession(ctx, first, "qa session one renamed"); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	sessions, err := env.Store.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) < 2 {
		return fmt.Errorf("expected at least 2 live sessions, got %d", len(sessions))
	}

	// The renamed session ("first") was touched most recently, so under
	// updated_at DESC it must sort ahead of the untouched "second".
	listOrderOK := false
	for i, s := range sessions {
		if s.ID == first {
			for _, other := range sessions[i+1:] {
				if other.ID == second {
					listOrderOK = true
				}
			}
		}
	}

	var softDeleted int
	if err := env.Store.SoftDeleteSession(ctx, second); err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	softDeleted++

	if _, err := env.Store.GetSession(ctx, second); err == nil {
		return errors.New("expected soft-deleted session to be invisible to GetSession")
	} else {
		var nf *chaterr.NotFound
		if !errors.As(err, &nf) {
			return fmt.Errorf("expected chaterr.NotFound, got %T", err)
		}
	}

	var restored int
	if err := env.Store.RestoreSession(ctx, second); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	restored++

	if _, err := env.Store.GetSession(ctx, second); err != nil {
		return fmt.Errorf("expected restored session to be visible again: %w", err)
	}

	// Restoring an already-live session is a conflict, not a no-op.
	if err := env.Store.RestoreSession(ctx, second); err == nil {
		return errors.New("expected conflict restoring an already-live session")
	} else {
		var conflict *chaterr.Conflict
		if !errors.As(err, &conflict) {
			return fmt.Errorf("expected chaterr.Conflict, got %T", err)
		}
	}

	rep.Line("created", created)
	rep.Line("soft_deleted", softDeleted)
	rep.Line("restored", restored)
	rep.Line("list_order_ok", listOrderOK)
	rep.Line("session_crud", true)
	return nil
}
