// Package store defines the four narrow capability interfaces the chat
// storage engine exposes — SessionStore, MessageStore, MediaStore, and
// AgentEventStore — plus the Storage facade that composes them. Storage
// is the sole public surface collaborators use; there is no implicit
// "current session" state anywhere in the engine.
package store

import (
	"context"

	"github.com/nstogner/chatvault/pkg/domain"
	"github.com/nstogner/chatvault/pkg/id"
)

// SessionStore manages the persistence of conversation sessions.
type SessionStore interface {
	// CreateSession inserts a session with no active branch yet.
	CreateSession(ctx context.Context, title string) (id.SessionID, error)

	// RenameSession updates title and updated_at. Fails NotFound if the
	// session is missing or soft-deleted.
	RenameSession(ctx context.Context, sessionID id.SessionID, newTitle string) error

	// ListSessions returns live sessions ordered by updated_at DESC, id DESC.
	ListSessions(ctx context.Context) ([]domain.SessionSummary, error)

	// GetSession returns a live session; NotFound otherwise.
	GetSession(ctx context.Context, sessionID id.SessionID) (domain.SessionSummary, error)

	// SoftDeleteSession sets deleted_at. Fails NotFound if the session is
	// missing or already soft-deleted.
	SoftDeleteSession(ctx context.Context, sessionID id.SessionID) error

	// RestoreSession clears deleted_at. Fails NotFound if the session
	// never existed, Conflict{stage:"restore_already_live"} if it is
	// already live.
	RestoreSession(ctx context.Context, sessionID id.SessionID) error

	// SetActiveBranch validates that branchID is a live branch of
	// sessionID and points the session's active branch at it, for callers
	// that manage branches directly. ForkFromHistory does not call it: the
	// fork updates the pointer itself inside its own transaction.
	SetActiveBranch(ctx context.Context, sessionID id.SessionID, branchID id.BranchID) error
}

// MessageStore manages messages, branches, and the fork-from-history
// operation. Every method is scoped by (session_id, ...).
type MessageStore interface {
	// AppendMessage creates the session's initial branch if none is
	// active yet, assigns the next gapless seq, inserts the message, and
	// bumps the session's updated_at — all in one transaction.
	AppendMessage(ctx context.Context, sessionID id.SessionID, role domain.Role, content string) (id.MessageID, error)

	// ListMessages returns the live messages of the session's active
	// branch ordered by seq ASC, id ASC. Returns empty if the session has
	// no active branch.
	ListMessages(ctx context.Context, sessionID id.SessionID) ([]domain.Message, error)

	// GetMessage is live-only and NotFound if the message is deleted,
	// missing, or belongs to a different session.
	GetMessage(ctx context.Context, sessionID id.SessionID, messageID id.MessageID) (domain.Message, error)

	// UpdateMessage applies patch to the message scoped by
	// (session_id, id); a mismatched pair is NotFound.
	UpdateMessage(ctx context.Context, sessionID id.SessionID, messageID id.MessageID, patch domain.MessagePatch) error

	// SoftDeleteMessage sets deleted_at without renumbering seq.
	SoftDeleteMessage(ctx context.Context, sessionID id.SessionID, messageID id.MessageID) error

	// ForkFromHistory copies the live prefix of the active branch up to
	// and including pivotMessageID into a new branch, makes that branch
	// active, and soft-deletes the previous branch and its messages —
	// all in one BEGIN IMMEDIATE transaction.
	ForkFromHistory(ctx context.Context, sessionID id.SessionID, pivotMessageID id.MessageID) (domain.ForkOutcome, error)

	// ListBranches returns every live branch of a session (not only the
	// active one) for engine-level introspection — see SPEC_FULL.md's
	// supplemented features.
	ListBranches(ctx context.Context, sessionID id.SessionID) ([]domain.BranchSummary, error)
}

// MediaStore manages media references attached to messages. Media
// payloads themselves never enter the database.
type MediaStore interface {
	// AttachMedia requires the message to exist live in the same
	// session and rejects blob-like URIs with
	// Conflict{stage:"media_uri_policy"}.
	AttachMedia(ctx context.Context, sessionID id.SessionID, messageID id.MessageID, ref domain.MediaRef) (id.MediaID, error)

	// ListMedia is live-only, ordered by created_at ASC, id ASC.
	ListMedia(ctx context.Context, sessionID id.SessionID, messageID id.MessageID) ([]domain.MediaRef, error)

	// SoftDeleteMedia sets deleted_at with an UPDATE scoped by
	// (session_id, id); NotFound if no live media ref matches the pair.
	SoftDeleteMedia(ctx context.Context, sessionID id.SessionID, mediaID id.MediaID) error
}

// AgentEventStore manages the append-only agent event stream.
type AgentEventStore interface {
	// AppendEvent validates payloadJSON is well-formed JSON and, if
	// messageID is non-nil, that it lives in the same session.
	AppendEvent(ctx context.Context, sessionID id.SessionID, messageID *id.MessageID, eventType, payloadJSON string) (id.EventID, error)

	// ListEvents returns events ordered by created_at ASC, id ASC. If
	// messageID is non-nil, filters to that message; otherwise returns
	// all session-scoped events.
	ListEvents(ctx context.Context, sessionID id.SessionID, messageID *id.MessageID) ([]domain.AgentEvent, error)
}

// Storage composes the four capability interfaces into the engine's sole
// public surface.
type Storage interface {
	SessionStore
	MessageStore
	MediaStore
	AgentEventStore
}
