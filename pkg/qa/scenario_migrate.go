package qa

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nstogner/chatvault/pkg/importer"
)

// runMigrateTSVFixture writes a small, well-formed legacy TSV fixture
// alongside the database and imports it, asserting the expected number
// of sessions land with no warnings.
func runMigrateTSVFixture(ctx context.Context, env *Env, rep *Reporter) error {
	before, err := env.Store.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(before) != 0 {
		return fmt.Errorf("migrate_tsv_fixture requires an empty database, found %d sessions", len(before))
	}

	fixturePath := filepath.Join(filepath.Dir(env.DBPath), "qa-legacy-fixture.tsv")
	content := "legacy-a\t1700000000\tFirst legacy chat\n" +
		"legacy-b\t1700000500\tSecond legacy chat\n" +
		"legacy-c\t1700001000\tThird, with \\ttab and \\nnewline\n"
	if err := os.WriteFile(fixturePath, []byte(content), 0o644); err != nil {
		return err
	}
	defer os.Remove(fixturePath)

	outcome, err := importer.ImportLegacyConversations(ctx, env.DB, fixturePath)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	if outcome.Idempotent {
		return fmt.Errorf("expected a fresh import, got idempotent skip")
	}
	if outcome.ImportedCount != 3 {
		return fmt.Errorf("expected 3 imported sessions, got %d", outcome.ImportedCount)
	}
	if len(outcome.Warnings) != 0 {
		return fmt.Errorf("expected 0 warnings for a well-formed fixture, got %d", len(outcome.Warnings))
	}

	after, err := env.Store.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(after) != 3 {
		return fmt.Errorf("expected 3 live sessions after import, got %d", len(after))
	}

	rep.Line("migrate_tsv_fixture", true)
	return nil
}

// runMigrateIdempotent re-imports the same fixture into an
// already-populated database and asserts the second run is a no-op.
func runMigrateIdempotent(ctx context.Context, env *Env, rep *Reporter) error {
	sessions, err := env.Store.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return fmt.Errorf("migrate_idempotent expects migrate_tsv_fixture to have run first")
	}
	before := len(sessions)

	fixturePath := filepath.Join(filepath.Dir(env.DBPath), "qa-legacy-fixture-2.tsv")
	if err := os.WriteFile(fixturePath, []byte("legacy-z\t1700002000\tshould not be imported\n"), 0o644); err != nil {
		return err
	}
	defer os.Remove(fixturePath)

	outcome, err := importer.ImportLegacyConversations(ctx, env.DB, fixturePath)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	if !outcome.Idempotent {
		return fmt.Errorf("expected idempotent skip against a populated database")
	}

	after, err := env.Store.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(after) != before {
		return fmt.Errorf("expected session count to stay at %d, got %d", before, len(after))
	}

	rep.Line("migrate_idempotent", true)
	return nil
}

// runMigrateMalformedRow exercises the per-line warning path against an
// isolated, scratch database so it does not interact with the
// idempotency guard exercised by the other migrate_* scenarios.
func runMigrateMalformedRow(ctx context.Context, env *Env, rep *Reporter) error {
	scratchDir, err := os.MkdirTemp("", "chatvault-qa-malformed-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratchDir)

	scratchEnv, err := OpenEnv(filepath.Join(scratchDir, "scratch.db"))
	if err != nil {
		return fmt.Errorf("open scratch db: %w", err)
	}
	defer scratchEnv.Close()

	fixturePath := filepath.Join(scratchDir, "malformed.tsv")
	content := "legacy-ok\t1700000000\tthis one is fine\n" +
		"legacy-bad-fields\tonly-two-fields\n" +
		"legacy-bad-ts\tnot-a-number\ttitle\n" +
		"legacy-bad-escape\t1700000100\tdangling \\\n"
	if err := os.WriteFile(fixturePath, []byte(content), 0o644); err != nil {
		return err
	}

	outcome, err := importer.ImportLegacyConversations(ctx, scratchEnv.DB, fixturePath)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	if outcome.ImportedCount != 1 {
		return fmt.Errorf("expected 1 accepted row, got %d", outcome.ImportedCount)
	}
	if len(outcome.Warnings) != 3 {
		return fmt.Errorf("expected 3 warnings for malformed rows, got %d", len(outcome.Warnings))
	}

	rep.Line("malformed_rows_skipped", len(outcome.Warnings))
	rep.Line("migrate_malformed_row", true)
	return nil
}
