package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nstogner/chatvault/pkg/chaterr"
	"github.com/nstogner/chatvault/pkg/domain"
	"github.com/nstogner/chatvault/pkg/id"
)

func (s *Store) AppendMessage(ctx context.Context, sessionID id.SessionID, role domain.Role, content string) (id.MessageID, error) {
	switch role {
	case domain.RoleSystem, domain.RoleUser, domain.RoleAssistant:
	default:
		return id.MessageID{}, &chaterr.Conflict{Stage: "message_role", Err: errors.New(string(role))}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return id.MessageID{}, mapErr(err)
	}
	defer tx.Rollback()

	var activeBranchNS sql.NullString
	var deletedAtNS sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT active_branch_id, deleted_at FROM sessions WHERE id = ?`, sessionID.String(),
	).Scan(&activeBranchNS, &deletedAtNS)
	if errors.Is(err, sql.ErrNoRows) {
		return id.MessageID{}, &chaterr.NotFound{Entity: "session", ID: sessionID.String()}
	}
	if err != nil {
		return id.MessageID{}, mapErr(err)
	}
	if deletedAtNS.Valid {
		return id.MessageID{}, &chaterr.NotFound{Entity: "session", ID: sessionID.String()}
	}

	activeBranch, err := nullBranchID(activeBranchNS)
	if err != nil {
		return id.MessageID{}, mapErr(err)
	}

	now := nowMillis()
	if activeBranch == nil {
		nb := id.NewBranchID()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO branches (id, session_id, parent_branch_id, created_at) VALUES (?, ?, NULL, ?)`,
			nb.String(), sessionID.String(), now,
		); err != nil {
			return id.MessageID{}, mapErr(err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET active_branch_id = ? WHERE id = ?`, nb.String(), sessionID.String(),
		); err != nil {
			return id.MessageID{}, mapErr(err)
		}
		activeBranch = &nb
	}

	var maxSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM messages WHERE session_id = ? AND branch_id = ?`,
		sessionID.String(), activeBranch.String(),
	).Scan(&maxSeq); err != nil {
		return id.MessageID{}, mapErr(err)
	}
	nextSeq := int64(0)
	if maxSeq.Valid {
		nextSeq = maxSeq.Int64 + 1
	}

	mid := id.NewMessageID()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, branch_id, seq, role, content, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		mid.String(), sessionID.String(), activeBranch.String(), nextSeq, string(role), content, now, now,
	); err != nil {
		return id.MessageID{}, mapErr(err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`, now, sessionID.String(),
	); err != nil {
		return id.MessageID{}, mapErr(err)
	}

	if err := tx.Commit(); err != nil {
		return id.MessageID{}, mapErr(err)
	}
	return mid, nil
}

func (s *Store) ListMessages(ctx context.Context, sessionID id.SessionID) ([]domain.Message, error) {
	var activeBranchNS sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT active_branch_id FROM sessions WHERE id = ? AND deleted_at IS NULL`, sessionID.String(),
	).Scan(&activeBranchNS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &chaterr.NotFound{Entity: "session", ID: sessionID.String()}
	}
	if err != nil {
		return nil, mapErr(err)
	}
	activeBranch, err := nullBranchID(activeBranchNS)
	if err != nil {
		return nil, mapErr(err)
	}
	if activeBranch == nil {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, branch_id, seq, role, content, created_at, updated_at, deleted_at
		 FROM messages WHERE session_id = ? AND branch_id = ? AND deleted_at IS NULL
		 ORDER BY seq ASC, id ASC`,
		sessionID.String(), activeBranch.String(),
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, m)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) GetMessage(ctx context.Context, sessionID id.SessionID, messageID id.MessageID) (domain.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, branch_id, seq, role, content, created_at, updated_at, deleted_at
		 FROM messages WHERE session_id = ? AND id = ? AND deleted_at IS NULL`,
		sessionID.String(), messageID.String(),
	)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Message{}, &chaterr.NotFound{Entity: "message", ID: messageID.String()}
	}
	if err != nil {
		return domain.Message{}, mapErr(err)
	}
	return m, nil
}

func (s *Store) UpdateMessage(ctx context.Context, sessionID id.SessionID, messageID id.MessageID, patch domain.MessagePatch) error {
	if patch.Content == nil {
		return nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = ?, updated_at = ?
		 WHERE session_id = ? AND id = ? AND deleted_at IS NULL`,
		*patch.Content, nowMillis(), sessionID.String(), messageID.String(),
	)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return &chaterr.NotFound{Entity: "message", ID: messageID.String()}
	}
	return nil
}

func (s *Store) SoftDeleteMessage(ctx context.Context, sessionID id.SessionID, messageID id.MessageID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET deleted_at = ? WHERE session_id = ? AND id = ? AND deleted_at IS NULL`,
		nowMillis(), sessionID.String(), messageID.String(),
	)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return &chaterr.NotFound{Entity: "message", ID: messageID.String()}
	}
	return nil
}

func (s *Store) ListBranches(ctx context.Context, sessionID id.SessionID) ([]domain.BranchSummary, error) {
	var activeBranchNS sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT active_branch_id FROM sessions WHERE id = ? AND deleted_at IS NULL`, sessionID.String(),
	).Scan(&activeBranchNS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &chaterr.NotFound{Entity: "session", ID: sessionID.String()}
	}
	if err != nil {
		return nil, mapErr(err)
	}
	activeBranch, err := nullBranchID(activeBranchNS)
	if err != nil {
		return nil, mapErr(err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id, b.parent_branch_id, b.created_at,
		        (SELECT COUNT(*) FROM messages m WHERE m.session_id = b.session_id AND m.branch_id = b.id AND m.deleted_at IS NULL)
		 FROM branches b WHERE b.session_id = ? AND b.deleted_at IS NULL
		 ORDER BY b.created_at ASC, b.id ASC`,
		sessionID.String(),
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.BranchSummary
	for rows.Next() {
		var (
			idStr       string
			parentNS    sql.NullString
			createdAtMs int64
			liveCount   int
		)
		if err := rows.Scan(&idStr, &parentNS, &createdAtMs, &liveCount); err != nil {
			return nil, mapErr(err)
		}
		bid, err := id.ParseBranchID(idStr)
		if err != nil {
			return nil, mapErr(err)
		}
		parent, err := nullBranchID(parentNS)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, domain.BranchSummary{
			ID:               bid,
			SessionID:        sessionID,
			ParentBranchID:   parent,
			CreatedAt:        toTime(createdAtMs),
			LiveMessageCount: liveCount,
			IsActive:         activeBranch != nil && *activeBranch == bid,
		})
	}
	return out, mapErr(rows.Err())
}

func scanMessage(row rowScanner) (domain.Message, error) {
	var (
		idStr       string
		sessionStr  string
		branchStr   string
		seq         int64
		role        string
		content     string
		createdAtMs int64
		updatedAtMs int64
		deletedAtNS sql.NullInt64
	)
	if err := row.Scan(&idStr, &sessionStr, &branchStr, &seq, &role, &content, &createdAtMs, &updatedAtMs, &deletedAtNS); err != nil {
		return domain.Message{}, err
	}
	mid, err := id.ParseMessageID(idStr)
	if err != nil {
		return domain.Message{}, err
	}
	sid, err := id.ParseSessionID(sessionStr)
	if err != nil {
		return domain.Message{}, err
	}
	bid, err := id.ParseBranchID(branchStr)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        mid,
		SessionID: sid,
		BranchID:  bid,
		Seq:       seq,
		Role:      domain.Role(role),
		Content:   content,
		CreatedAt: toTime(createdAtMs),
		UpdatedAt: toTime(updatedAtMs),
		DeletedAt: nullTimeMillis(deletedAtNS),
	}, nil
}
