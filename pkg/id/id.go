// Package id defines the opaque, time-ordered identifier types used
// throughout the chat storage engine: SessionID, BranchID, MessageID,
// MediaID, and EventID. Each wraps a UUIDv7 value (monotonic within a
// millisecond per generator, lexicographic order matches creation order)
// and is nominally distinct from the others — a MessageID cannot be
// passed where a SessionID is expected.
package id

import (
	"github.com/google/uuid"

	"github.com/nstogner/chatvault/pkg/chaterr"
)

// SessionID identifies a Session.
type SessionID struct{ v uuid.UUID }

// BranchID identifies a Branch.
type BranchID struct{ v uuid.UUID }

// MessageID identifies a Message.
type MessageID struct{ v uuid.UUID }

// MediaID identifies a MediaRef.
type MediaID struct{ v uuid.UUID }

// EventID identifies an AgentEvent.
type EventID struct{ v uuid.UUID }

// String returns the textual (canonical UUID) form.
func (id SessionID) String() string { return id.v.String() }
func (id BranchID) String() string  { return id.v.String() }
func (id MessageID) String() string { return id.v.String() }
func (id MediaID) String() string   { return id.v.String() }
func (id EventID) String() string   { return id.v.String() }

// IsZero reports whether the id was never assigned a value.
func (id SessionID) IsZero() bool { return id.v == uuid.Nil }
func (id BranchID) IsZero() bool  { return id.v == uuid.Nil }
func (id MessageID) IsZero() bool { return id.v == uuid.Nil }
func (id MediaID) IsZero() bool   { return id.v == uuid.Nil }
func (id EventID) IsZero() bool   { return id.v == uuid.Nil }

// NewSessionID generates a fresh, time-ordered SessionID.
func NewSessionID() SessionID { return SessionID{v: mustNewV7()} }

// NewBranchID generates a fresh, time-ordered BranchID.
func NewBranchID() BranchID { return BranchID{v: mustNewV7()} }

// NewMessageID generates a fresh, time-ordered MessageID.
func NewMessageID() MessageID { return MessageID{v: mustNewV7()} }

// NewMediaID generates a fresh, time-ordered MediaID.
func NewMediaID() MediaID { return MediaID{v: mustNewV7()} }

// NewEventID generates a fresh, time-ordered EventID.
func NewEventID() EventID { return EventID{v: mustNewV7()} }

// mustNewV7 generates a UUIDv7. uuid.NewV7 only fails if reading from its
// random source fails, which does not happen on supported platforms; the
// engine treats that as unrecoverable.
func mustNewV7() uuid.UUID {
	v, err := uuid.NewV7()
	if err != nil {
		panic("id: uuid.NewV7: " + err.Error())
	}
	return v
}

// ParseSessionID parses the textual form of a SessionID.
func ParseSessionID(raw string) (SessionID, error) {
	v, err := parse("session", raw)
	return SessionID{v: v}, err
}

// ParseBranchID parses the textual form of a BranchID.
func ParseBranchID(raw string) (BranchID, error) {
	v, err := parse("branch", raw)
	return BranchID{v: v}, err
}

// ParseMessageID parses the textual form of a MessageID.
func ParseMessageID(raw string) (MessageID, error) {
	v, err := parse("message", raw)
	return MessageID{v: v}, err
}

// ParseMediaID parses the textual form of a MediaID.
func ParseMediaID(raw string) (MediaID, error) {
	v, err := parse("media", raw)
	return MediaID{v: v}, err
}

// ParseEventID parses the textual form of an EventID.
func ParseEventID(raw string) (EventID, error) {
	v, err := parse("event", raw)
	return EventID{v: v}, err
}

func parse(kind, raw string) (uuid.UUID, error) {
	v, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &chaterr.InvalidID{Kind: kind, Raw: raw, Err: err}
	}
	return v, nil
}

// MarshalText implements encoding.TextMarshaler so ids serialize as their
// plain textual form in JSON.
func (id SessionID) MarshalText() ([]byte, error) { return []byte(id.v.String()), nil }
func (id BranchID) MarshalText() ([]byte, error)  { return []byte(id.v.String()), nil }
func (id MessageID) MarshalText() ([]byte, error) { return []byte(id.v.String()), nil }
func (id MediaID) MarshalText() ([]byte, error)   { return []byte(id.v.String()), nil }
func (id EventID) MarshalText() ([]byte, error)   { return []byte(id.v.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *SessionID) UnmarshalText(b []byte) error {
	v, err := parse("session", string(b))
	id.v = v
	return err
}
func (id *BranchID) UnmarshalText(b []byte) error {
	v, err := parse("branch", string(b))
	id.v = v
	return err
}
func (id *MessageID) UnmarshalText(b []byte) error {
	v, err := parse("message", string(b))
	id.v = v
	return err
}
func (id *MediaID) UnmarshalText(b []byte) error {
	v, err := parse("media", string(b))
	id.v = v
	return err
}
func (id *EventID) UnmarshalText(b []byte) error {
	v, err := parse("event", string(b))
	id.v = v
	return err
}
