// Package domain defines the plain value types persisted by the chat
// storage engine: sessions, branches, messages, media references, and
// agent events, plus the lightweight summary/outcome types the store
// interfaces return.
package domain

import (
	"time"

	"github.com/nstogner/chatvault/pkg/id"
)

// Role restricts a Message to one of the three permitted senders.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session is a conversation container with a title and a pointer to its
// currently active branch.
type Session struct {
	ID             id.SessionID `json:"id"`
	Title          string       `json:"title"`
	ActiveBranchID *id.BranchID `json:"active_branch_id,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	DeletedAt      *time.Time   `json:"deleted_at,omitempty"`
}

// SessionSummary is the projection list_sessions/get_session return: the
// live-facing view of a Session without soft-delete bookkeeping.
type SessionSummary struct {
	ID             id.SessionID `json:"id"`
	Title          string       `json:"title"`
	ActiveBranchID *id.BranchID `json:"active_branch_id,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Branch is a linearly ordered sequence of messages within a session.
type Branch struct {
	ID             id.BranchID  `json:"id"`
	SessionID      id.SessionID `json:"session_id"`
	ParentBranchID *id.BranchID `json:"parent_branch_id,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	DeletedAt      *time.Time   `json:"deleted_at,omitempty"`
}

// BranchSummary describes a branch for engine-level introspection
// (SUPPLEMENTED FEATURES §1 of SPEC_FULL.md) — it does not expose a
// branch-picker UI, only the data one could be built on.
type BranchSummary struct {
	ID               id.BranchID  `json:"id"`
	SessionID        id.SessionID `json:"session_id"`
	ParentBranchID   *id.BranchID `json:"parent_branch_id,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	LiveMessageCount int          `json:"live_message_count"`
	IsActive         bool         `json:"is_active"`
}

// Message belongs to a single branch; (session_id, branch_id, seq) is
// unique.
type Message struct {
	ID        id.MessageID `json:"id"`
	SessionID id.SessionID `json:"session_id"`
	BranchID  id.BranchID  `json:"branch_id"`
	Seq       int64        `json:"seq"`
	Role      Role         `json:"role"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	DeletedAt *time.Time   `json:"deleted_at,omitempty"`
}

// MessagePatch carries the mutable fields of update_message. Content is
// a pointer so "not supplied" is distinguishable from "set to empty
// string".
type MessagePatch struct {
	Content *string
}

// MediaRef is attached to exactly one message in one session. Media
// payloads themselves live outside the engine — only the URI and
// descriptive metadata are stored here.
type MediaRef struct {
	ID         id.MediaID   `json:"id"`
	SessionID  id.SessionID `json:"session_id"`
	MessageID  id.MessageID `json:"message_id"`
	URI        string       `json:"uri"`
	MimeType   string       `json:"mime_type"`
	SizeBytes  int64        `json:"size_bytes"`
	DurationMs *int64       `json:"duration_ms,omitempty"`
	WidthPx    *int64       `json:"width_px,omitempty"`
	HeightPx   *int64       `json:"height_px,omitempty"`
	SHA256Hex  *string      `json:"sha256_hex,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	DeletedAt  *time.Time   `json:"deleted_at,omitempty"`
}

// AgentEvent is attached to a session and, optionally, to one of its
// messages. Events are append-only: there is no soft-delete column.
type AgentEvent struct {
	ID          id.EventID    `json:"id"`
	SessionID   id.SessionID  `json:"session_id"`
	MessageID   *id.MessageID `json:"message_id,omitempty"`
	EventType   string        `json:"event_type"`
	PayloadJSON string        `json:"payload_json"`
	CreatedAt   time.Time     `json:"created_at"`
}

// ForkOutcome is returned by fork_from_history: the newly created
// branch and the exact old-id -> new-id remap for every message copied
// into it, in insertion order (seq ASC, id ASC).
type ForkOutcome struct {
	NewBranchID     id.BranchID      `json:"new_branch_id"`
	MessageIDRemaps []MessageIDRemap `json:"message_id_remaps"`
}

// MessageIDRemap is a single (old, new) pair emitted by fork_from_history
// so external holders of message ids can rewire their view.
type MessageIDRemap struct {
	OldID id.MessageID `json:"old_id"`
	NewID id.MessageID `json:"new_id"`
}

// LegacyImportOutcome summarizes a run of import_legacy_conversations.
type LegacyImportOutcome struct {
	// Idempotent is true when the import was skipped because the
	// database already held sessions.
	Idempotent    bool                  `json:"idempotent"`
	ImportedCount int                   `json:"imported_count"`
	Warnings      []LegacyImportWarning `json:"warnings,omitempty"`
}

// LegacyImportWarning describes one skipped, malformed row from the
// legacy TSV file.
type LegacyImportWarning struct {
	LineNumber int    `json:"line_number"`
	Reason     string `json:"reason"`
}
