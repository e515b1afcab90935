package qa

import (
	"context"
	"errors"
	"fmt"

	"github.com/nstogner/chatvault/pkg/chaterr"
	"github.com/nstogner/chatvault/pkg/domain"
)

func runAgentEventRoundtrip(ctx context.Context, env *Env, rep *Reporter) error {
	sessionID, err := env.Store.CreateSession(ctx, "qa event session")
	if err != nil {
		return err
	}
	messageID, err := env.Store.AppendMessage(ctx, sessionID, domain.RoleAssistant, "invoking a tool")
	if err != nil {
		return err
	}

	if _, err := env.Store.AppendEvent(ctx, sessionID, &messageID, "tool_call", `{"name":"search","args":{"q":"qa"}}`); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	if _, err := env.Store.AppendEvent(ctx, sessionID, nil, "session_note", `{"note":"session-scoped, no message"}`); err != nil {
		return fmt.Errorf("append session-scoped event: %w", err)
	}

	_, err = env.Store.AppendEvent(ctx, sessionID, &messageID, "malformed", `{not valid json`)
	if err == nil {
		return errors.New("expected malformed payload to be rejected")
	}
	var conflict *chaterr.Conflict
	if !errors.As(err, &conflict) {
		return fmt.Errorf("expected chaterr.Conflict, got %T", err)
	}

	scoped, err := env.Store.ListEvents(ctx, sessionID, &messageID)
	if err != nil {
		return err
	}
	if len(scoped) != 1 {
		return fmt.Errorf("expected 1 message-scoped event, got %d", len(scoped))
	}

	all, err := env.Store.ListEvents(ctx, sessionID, nil)
	if err != nil {
		return err
	}
	if len(all) != 2 {
		return fmt.Errorf("expected 2 session-scoped events total, got %d", len(all))
	}

	rep.Line("agent_event_roundtrip", true)
	return nil
}
