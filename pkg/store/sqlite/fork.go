package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nstogner/chatvault/pkg/chaterr"
	"github.com/nstogner/chatvault/pkg/domain"
	"github.com/nstogner/chatvault/pkg/id"
)

// ForkFromHistory implements spec §4.3.1: copy the live prefix of the
// active branch through the pivot into a fresh branch, swap the
// session's active pointer, and soft-delete the old branch — all under
// one transaction (BEGIN IMMEDIATE, via the _txlock=immediate DSN
// option set in chatdb.Open).
func (s *Store) ForkFromHistory(ctx context.Context, sessionID id.SessionID, pivotMessageID id.MessageID) (domain.ForkOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ForkOutcome{}, mapErr(err)
	}
	defer tx.Rollback()

	var activeBranchNS sql.NullString
	var sessionDeletedNS sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT active_branch_id, deleted_at FROM sessions WHERE id = ?`, sessionID.String(),
	).Scan(&activeBranchNS, &sessionDeletedNS)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ForkOutcome{}, &chaterr.NotFound{Entity: "session", ID: sessionID.String()}
	}
	if err != nil {
		return domain.ForkOutcome{}, mapErr(err)
	}
	if sessionDeletedNS.Valid {
		return domain.ForkOutcome{}, &chaterr.NotFound{Entity: "session", ID: sessionID.String()}
	}
	activeBranch, err := nullBranchID(activeBranchNS)
	if err != nil {
		return domain.ForkOutcome{}, mapErr(err)
	}
	if activeBranch == nil {
		return domain.ForkOutcome{}, &chaterr.NotFound{Entity: "message", ID: pivotMessageID.String()}
	}

	// Step 1: verify the pivot exists live in the active branch.
	var pivotSeq int64
	err = tx.QueryRowContext(ctx,
		`SELECT seq FROM messages WHERE session_id = ? AND branch_id = ? AND id = ? AND deleted_at IS NULL`,
		sessionID.String(), activeBranch.String(), pivotMessageID.String(),
	).Scan(&pivotSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ForkOutcome{}, &chaterr.NotFound{Entity: "message", ID: pivotMessageID.String()}
	}
	if err != nil {
		return domain.ForkOutcome{}, mapErr(err)
	}

	// Step 2: create the new branch.
	now := nowMillis()
	newBranch := id.NewBranchID()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO branches (id, session_id, parent_branch_id, created_at) VALUES (?, ?, ?, ?)`,
		newBranch.String(), sessionID.String(), activeBranch.String(), now,
	); err != nil {
		return domain.ForkOutcome{}, mapErr(err)
	}

	// Step 3: select the live prefix in deterministic order.
	rows, err := tx.QueryContext(ctx,
		`SELECT id, seq, role, content, created_at, updated_at
		 FROM messages WHERE session_id = ? AND branch_id = ? AND deleted_at IS NULL AND seq <= ?
		 ORDER BY seq ASC, id ASC`,
		sessionID.String(), activeBranch.String(), pivotSeq,
	)
	if err != nil {
		return domain.ForkOutcome{}, mapErr(err)
	}
	type prefixRow struct {
		oldID       id.MessageID
		seq         int64
		role        string
		content     string
		createdAtMs int64
		updatedAtMs int64
	}
	var prefix []prefixRow
	for rows.Next() {
		var idStr string
		var r prefixRow
		if err := rows.Scan(&idStr, &r.seq, &r.role, &r.content, &r.createdAtMs, &r.updatedAtMs); err != nil {
			rows.Close()
			return domain.ForkOutcome{}, mapErr(err)
		}
		mid, err := id.ParseMessageID(idStr)
		if err != nil {
			rows.Close()
			return domain.ForkOutcome{}, mapErr(err)
		}
		r.oldID = mid
		prefix = append(prefix, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return domain.ForkOutcome{}, mapErr(err)
	}
	rows.Close()

	// Step 4: copy each row into the new branch, recording the remap in
	// insertion order.
	remaps := make([]domain.MessageIDRemap, 0, len(prefix))
	for _, r := range prefix {
		newID := id.NewMessageID()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, session_id, branch_id, seq, role, content, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			newID.String(), sessionID.String(), newBranch.String(), r.seq, r.role, r.content, r.createdAtMs, r.updatedAtMs,
		); err != nil {
			return domain.ForkOutcome{}, mapErr(err)
		}
		remaps = append(remaps, domain.MessageIDRemap{OldID: r.oldID, NewID: newID})
	}

	// Step 5: make the new branch active. The session row was already
	// confirmed live at the top of this transaction, so an affected
	// count other than 1 here means another writer mutated it despite
	// holding the BEGIN IMMEDIATE lock — an internal consistency bug,
	// not a caller error.
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET active_branch_id = ?, updated_at = ? WHERE id = ?`,
		newBranch.String(), now, sessionID.String(),
	)
	if err != nil {
		return domain.ForkOutcome{}, mapErr(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.ForkOutcome{}, mapErr(err)
	} else if n != 1 {
		return domain.ForkOutcome{}, &chaterr.Invariant{
			Description: fmt.Sprintf("fork_from_history: activating branch %s affected %d session rows, want 1", newBranch.String(), n),
		}
	}

	// Step 6: soft-delete the previous branch and its live messages. The
	// pivot itself was verified live above, so at least one message row
	// must be affected here.
	res, err = tx.ExecContext(ctx,
		`UPDATE messages SET deleted_at = ? WHERE session_id = ? AND branch_id = ? AND deleted_at IS NULL`,
		now, sessionID.String(), activeBranch.String(),
	)
	if err != nil {
		return domain.ForkOutcome{}, mapErr(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.ForkOutcome{}, mapErr(err)
	} else if n == 0 {
		return domain.ForkOutcome{}, &chaterr.Invariant{
			Description: "fork_from_history: soft-deleting the previous branch's messages affected 0 rows after the pivot was already verified live",
		}
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE branches SET deleted_at = ? WHERE session_id = ? AND id = ? AND deleted_at IS NULL`,
		now, sessionID.String(), activeBranch.String(),
	)
	if err != nil {
		return domain.ForkOutcome{}, mapErr(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.ForkOutcome{}, mapErr(err)
	} else if n != 1 {
		return domain.ForkOutcome{}, &chaterr.Invariant{
			Description: fmt.Sprintf("fork_from_history: soft-deleting previous branch %s affected %d rows, want 1", activeBranch.String(), n),
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.ForkOutcome{}, mapErr(err)
	}

	return domain.ForkOutcome{NewBranchID: newBranch, MessageIDRemaps: remaps}, nil
}
