// Package qa implements the named verification scenarios the qa-runner
// binary dispatches against a live database. Every scenario writes its
// assertions as key=value lines through a Reporter and returns an error
// on the first failed assertion — the caller decides exit status.
package qa

import (
	"context"
	"fmt"
	"io"
)

// Reporter emits the key=value stdout lines a scenario run produces.
type Reporter struct {
	w io.Writer
}

// NewReporter wraps w as a Reporter.
func NewReporter(w io.Writer) *Reporter { return &Reporter{w: w} }

// Line writes one key=value assertion line.
func (r *Reporter) Line(key string, value any) {
	fmt.Fprintf(r.w, "%s=%v\n", key, value)
}

// Scenario is a single named, runnable verification.
type Scenario struct {
	Name string
	Run  func(ctx context.Context, env *Env, rep *Reporter) error
}

// Registry lists every scenario dispatchable by name, in the order
// "all" runs them.
// Registry order matters for "all": migrate_tsv_fixture requires an
// empty database, so it and migrate_idempotent must run before any
// scenario that creates its own sessions.
var Registry = []Scenario{
	{Name: "id_roundtrip", Run: runIDRoundtrip},
	{Name: "id_invalid", Run: runIDInvalid},
	{Name: "prep_noop", Run: runPrepNoop},
	{Name: "schema_init", Run: runSchemaInit},
	{Name: "fk_violation", Run: runFKViolation},
	{Name: "migrate_tsv_fixture", Run: runMigrateTSVFixture},
	{Name: "migrate_idempotent", Run: runMigrateIdempotent},
	{Name: "migrate_malformed_row", Run: runMigrateMalformedRow},
	{Name: "session_crud", Run: runSessionCRUD},
	{Name: "history_branch_fork", Run: runHistoryBranchFork},
	{Name: "cross_session_guard", Run: runCrossSessionGuard},
	{Name: "media_ref_roundtrip", Run: runMediaRefRoundtrip},
	{Name: "media_blob_guard", Run: runMediaBlobGuard},
	{Name: "agent_event_roundtrip", Run: runAgentEventRoundtrip},
}

// Lookup finds a scenario by name, or reports ok=false if "all" or
// unknown.
func Lookup(name string) (Scenario, bool) {
	for _, sc := range Registry {
		if sc.Name == name {
			return sc, true
		}
	}
	return Scenario{}, false
}

// RunAll executes every registered scenario in order, stopping at the
// first failure, and — on full success — emits all_passed=true.
func RunAll(ctx context.Context, env *Env, rep *Reporter) error {
	for _, sc := range Registry {
		if err := sc.Run(ctx, env, rep); err != nil {
			return fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
	}
	rep.Line("all_passed", true)
	return nil
}
