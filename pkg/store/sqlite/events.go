package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nstogner/chatvault/pkg/chaterr"
	"github.com/nstogner/chatvault/pkg/domain"
	"github.com/nstogner/chatvault/pkg/id"
)

func (s *Store) AppendEvent(ctx context.Context, sessionID id.SessionID, messageID *id.MessageID, eventType, payloadJSON string) (id.EventID, error) {
	var valid int
	if err := s.db.QueryRowContext(ctx, `SELECT json_valid(?)`, payloadJSON).Scan(&valid); err != nil {
		return id.EventID{}, mapErr(err)
	}
	if valid == 0 {
		return id.EventID{}, &chaterr.Conflict{Stage: "agent_event_payload", Err: errors.New("payload_json is not well-formed JSON")}
	}

	if messageID != nil {
		var count int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM messages WHERE session_id = ? AND id = ? AND deleted_at IS NULL`,
			sessionID.String(), messageID.String(),
		).Scan(&count)
		if err != nil {
			return id.EventID{}, mapErr(err)
		}
		if count == 0 {
			return id.EventID{}, &chaterr.NotFound{Entity: "message", ID: messageID.String()}
		}
	}

	eventID := id.NewEventID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_events (id, session_id, message_id, event_type, payload_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		eventID.String(), sessionID.String(), messageIDParam(messageID), eventType, payloadJSON, nowMillis(),
	)
	if err != nil {
		return id.EventID{}, mapErr(err)
	}
	return eventID, nil
}

func (s *Store) ListEvents(ctx context.Context, sessionID id.SessionID, messageID *id.MessageID) ([]domain.AgentEvent, error) {
	query := `SELECT id, session_id, message_id, event_type, payload_json, created_at
	          FROM agent_events WHERE session_id = ?`
	args := []any{sessionID.String()}
	if messageID != nil {
		query += ` AND message_id = ?`
		args = append(args, messageID.String())
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.AgentEvent
	for rows.Next() {
		ev, err := scanAgentEvent(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, ev)
	}
	return out, mapErr(rows.Err())
}

func scanAgentEvent(row rowScanner) (domain.AgentEvent, error) {
	var (
		idStr       string
		sessionStr  string
		messageNS   sql.NullString
		eventType   string
		payloadJSON string
		createdAtMs int64
	)
	if err := row.Scan(&idStr, &sessionStr, &messageNS, &eventType, &payloadJSON, &createdAtMs); err != nil {
		return domain.AgentEvent{}, err
	}
	eventID, err := id.ParseEventID(idStr)
	if err != nil {
		return domain.AgentEvent{}, err
	}
	sid, err := id.ParseSessionID(sessionStr)
	if err != nil {
		return domain.AgentEvent{}, err
	}
	mid, err := nullMessageID(messageNS)
	if err != nil {
		return domain.AgentEvent{}, err
	}
	return domain.AgentEvent{
		ID:          eventID,
		SessionID:   sid,
		MessageID:   mid,
		EventType:   eventType,
		PayloadJSON: payloadJSON,
		CreatedAt:   toTime(createdAtMs),
	}, nil
}
