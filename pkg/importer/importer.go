// Package importer reads the pre-SQLite legacy session metadata file
// (conversations.tsv) and ingests it once, idempotently, into the chat
// storage engine's database.
package importer

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/nstogner/chatvault/pkg/chaterr"
	"github.com/nstogner/chatvault/pkg/domain"
	"github.com/nstogner/chatvault/pkg/id"
)

// legacyRow is one accepted, decoded line from the TSV file.
type legacyRow struct {
	legacyID  string
	updatedAt int64 // unix seconds
	title     string
}

// ImportLegacyConversations reads the tab-separated file at path and
// inserts one session (with one initial, active branch) per accepted
// row. Re-running against a populated database is a no-op — the
// returned outcome reports Idempotent=true and leaves the source file
// untouched either way.
func ImportLegacyConversations(ctx context.Context, db *sql.DB, path string) (domain.LegacyImportOutcome, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.LegacyImportOutcome{}, &chaterr.IO{Path: path, Err: err}
	}
	defer f.Close()

	rows, warnings, err := parseLegacyFile(f)
	if err != nil {
		return domain.LegacyImportOutcome{}, &chaterr.IO{Path: path, Err: err}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].updatedAt != rows[j].updatedAt {
			return rows[i].updatedAt > rows[j].updatedAt
		}
		return rows[i].legacyID > rows[j].legacyID
	})

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return domain.LegacyImportOutcome{}, err
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&existing); err != nil {
		return domain.LegacyImportOutcome{}, err
	}
	if existing != 0 {
		return domain.LegacyImportOutcome{Idempotent: true, Warnings: warnings}, nil
	}

	for _, r := range rows {
		sessionID := id.NewSessionID()
		branchID := id.NewBranchID()
		updatedAtMs := r.updatedAt * 1000

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, title, active_branch_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			sessionID.String(), r.title, branchID.String(), updatedAtMs, updatedAtMs,
		); err != nil {
			return domain.LegacyImportOutcome{}, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO branches (id, session_id, parent_branch_id, created_at) VALUES (?, ?, NULL, ?)`,
			branchID.String(), sessionID.String(), updatedAtMs,
		); err != nil {
			return domain.LegacyImportOutcome{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.LegacyImportOutcome{}, err
	}

	return domain.LegacyImportOutcome{
		Idempotent:    false,
		ImportedCount: len(rows),
		Warnings:      warnings,
	}, nil
}

// parseLegacyFile splits the file into accepted rows and per-line
// warnings. Empty lines are skipped silently, per the legacy file
// format (spec §6).
func parseLegacyFile(f *os.File) ([]legacyRow, []domain.LegacyImportWarning, error) {
	var rows []legacyRow
	var warnings []domain.LegacyImportWarning

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			warnings = append(warnings, domain.LegacyImportWarning{
				LineNumber: lineNo,
				Reason:     fmt.Sprintf("expected 3 tab-separated fields, got %d", len(fields)),
			})
			continue
		}

		legacyID, updatedAtRaw, escapedTitle := fields[0], fields[1], fields[2]

		updatedAt, err := strconv.ParseInt(updatedAtRaw, 10, 64)
		if err != nil {
			warnings = append(warnings, domain.LegacyImportWarning{
				LineNumber: lineNo,
				Reason:     fmt.Sprintf("non-numeric updated_at %q", updatedAtRaw),
			})
			continue
		}

		title, err := unescapeLegacyTitle(escapedTitle)
		if err != nil {
			warnings = append(warnings, domain.LegacyImportWarning{
				LineNumber: lineNo,
				Reason:     err.Error(),
			})
			continue
		}

		rows = append(rows, legacyRow{legacyID: legacyID, updatedAt: updatedAt, title: title})
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return rows, warnings, nil
}

// unescapeLegacyTitle decodes the legacy escape map: \n -> LF, \t -> TAB,
// \\ -> backslash. Any other character following a backslash is
// unrecoverable and rejected.
func unescapeLegacyTitle(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			return "", fmt.Errorf("dangling escape at end of title")
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case '\\':
			b.WriteByte('\\')
		default:
			return "", fmt.Errorf("unrecoverable escape sequence \\%c", s[i])
		}
	}
	return b.String(), nil
}
