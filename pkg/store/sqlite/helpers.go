package sqlite

import (
	"database/sql"
	"errors"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/nstogner/chatvault/pkg/chaterr"
	"github.com/nstogner/chatvault/pkg/id"
)

func nowMillis() int64 {
	return time.Now().UTC().UnixMilli()
}

func toTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// nullTimeMillis converts a nullable milliseconds column into *time.Time.
func nullTimeMillis(ns sql.NullInt64) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := toTime(ns.Int64)
	return &t
}

// nullBranchID converts a nullable TEXT column into *id.BranchID.
func nullBranchID(ns sql.NullString) (*id.BranchID, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	bid, err := id.ParseBranchID(ns.String)
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// nullMessageID converts a nullable TEXT column into *id.MessageID.
func nullMessageID(ns sql.NullString) (*id.MessageID, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	mid, err := id.ParseMessageID(ns.String)
	if err != nil {
		return nil, err
	}
	return &mid, nil
}

func branchIDParam(b *id.BranchID) any {
	if b == nil {
		return nil
	}
	return b.String()
}

func messageIDParam(m *id.MessageID) any {
	if m == nil {
		return nil
	}
	return m.String()
}

// mapErr closes spec's error taxonomy over raw driver/database-sql
// failures. It must only be applied at a method's final return point,
// after any sql.ErrNoRows-specific handling has already had its chance
// to run — by the time an error reaches mapErr it is either already a
// chaterr value (passed through unchanged) or a genuine driver fault.
//
// Exceeding busy_timeout is the one driver fault spec calls out by name
// (it must surface as Conflict{Stage: "busy_timeout"}); anything else
// mattn/go-sqlite3 reports is passed through, since a blanket rewrite
// would hide constraint violations and other SQLite detail callers may
// still want via errors.As on the underlying sqlite3.Error.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrBusy {
		return &chaterr.Conflict{Stage: "busy_timeout", Err: err}
	}
	return err
}
