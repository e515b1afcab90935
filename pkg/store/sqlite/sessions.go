package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nstogner/chatvault/pkg/chaterr"
	"github.com/nstogner/chatvault/pkg/domain"
	"github.com/nstogner/chatvault/pkg/id"
)

func (s *Store) CreateSession(ctx context.Context, title string) (id.SessionID, error) {
	sid := id.NewSessionID()
	now := nowMillis()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, active_branch_id, created_at, updated_at) VALUES (?, ?, NULL, ?, ?)`,
		sid.String(), title, now, now,
	)
	if err != nil {
		return id.SessionID{}, mapErr(err)
	}
	return sid, nil
}

func (s *Store) RenameSession(ctx context.Context, sessionID id.SessionID, newTitle string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET title = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		newTitle, nowMillis(), sessionID.String(),
	)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return &chaterr.NotFound{Entity: "session", ID: sessionID.String()}
	}
	return nil
}

func (s *Store) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, active_branch_id, created_at, updated_at
		 FROM sessions WHERE deleted_at IS NULL
		 ORDER BY updated_at DESC, id DESC`,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.SessionSummary
	for rows.Next() {
		summ, err := scanSessionSummary(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, summ)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) GetSession(ctx context.Context, sessionID id.SessionID) (domain.SessionSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, active_branch_id, created_at, updated_at
		 FROM sessions WHERE id = ? AND deleted_at IS NULL`,
		sessionID.String(),
	)
	summ, err := scanSessionSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SessionSummary{}, &chaterr.NotFound{Entity: "session", ID: sessionID.String()}
	}
	if err != nil {
		return domain.SessionSummary{}, mapErr(err)
	}
	return summ, nil
}

func (s *Store) SoftDeleteSession(ctx context.Context, sessionID id.SessionID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		nowMillis(), sessionID.String(),
	)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		// Covers both "never existed" and "already deleted" — see
		// SPEC_FULL.md's Open Question decision #1.
		return &chaterr.NotFound{Entity: "session", ID: sessionID.String()}
	}
	return nil
}

func (s *Store) RestoreSession(ctx context.Context, sessionID id.SessionID) error {
	var deletedAt sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT deleted_at FROM sessions WHERE id = ?`, sessionID.String(),
	).Scan(&deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &chaterr.NotFound{Entity: "session", ID: sessionID.String()}
	}
	if err != nil {
		return mapErr(err)
	}
	if !deletedAt.Valid {
		return &chaterr.Conflict{Stage: "restore_already_live"}
	}

	// Open Question decision #2 (SPEC_FULL.md): restoring resets
	// updated_at to now, same as every other mutation in this store.
	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET deleted_at = NULL, updated_at = ? WHERE id = ?`,
		nowMillis(), sessionID.String(),
	)
	return mapErr(err)
}

func (s *Store) SetActiveBranch(ctx context.Context, sessionID id.SessionID, branchID id.BranchID) error {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM branches WHERE id = ? AND session_id = ? AND deleted_at IS NULL`,
		branchID.String(), sessionID.String(),
	).Scan(&count)
	if err != nil {
		return mapErr(err)
	}
	if count == 0 {
		return &chaterr.NotFound{Entity: "branch", ID: branchID.String()}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET active_branch_id = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		branchIDParam(&branchID), nowMillis(), sessionID.String(),
	)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return &chaterr.NotFound{Entity: "session", ID: sessionID.String()}
	}
	return nil
}

// rowScanner abstracts over *sql.Row and *sql.Rows for shared scan logic.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSessionSummary(row rowScanner) (domain.SessionSummary, error) {
	var (
		idStr          string
		title          string
		activeBranchNS sql.NullString
		createdAtMs    int64
		updatedAtMs    int64
	)
	if err := row.Scan(&idStr, &title, &activeBranchNS, &createdAtMs, &updatedAtMs); err != nil {
		return domain.SessionSummary{}, err
	}
	sid, err := id.ParseSessionID(idStr)
	if err != nil {
		return domain.SessionSummary{}, err
	}
	activeBranch, err := nullBranchID(activeBranchNS)
	if err != nil {
		return domain.SessionSummary{}, err
	}
	return domain.SessionSummary{
		ID:             sid,
		Title:          title,
		ActiveBranchID: activeBranch,
		CreatedAt:      toTime(createdAtMs),
		UpdatedAt:      toTime(updatedAtMs),
	}, nil
}
