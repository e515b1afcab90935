package sqlite

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/nstogner/chatvault/pkg/chaterr"
	"github.com/nstogner/chatvault/pkg/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	tmpFile := t.TempDir() + "/test.db"
	s, err := New(tmpFile)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
		os.Remove(tmpFile)
	})
	return s
}

func TestSessionCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sid, err := s.CreateSession(ctx, "first session")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := s.GetSession(ctx, sid)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Title != "first session" {
		t.Errorf("Title = %q, want %q", got.Title, "first session")
	}
	if got.ActiveBranchID != nil {
		t.Errorf("ActiveBranchID = %v, want nil before any message is appended", got.ActiveBranchID)
	}

	if err := s.RenameSession(ctx, sid, "renamed"); err != nil {
		t.Fatalf("RenameSession: %v", err)
	}
	got, err = s.GetSession(ctx, sid)
	if err != nil {
		t.Fatalf("GetSession after rename: %v", err)
	}
	if got.Title != "renamed" {
		t.Errorf("Title = %q, want %q", got.Title, "renamed")
	}

	if err := s.SoftDeleteSession(ctx, sid); err != nil {
		t.Fatalf("SoftDeleteSession: %v", err)
	}
	if _, err := s.GetSession(ctx, sid); !isNotFound(err) {
		t.Errorf("GetSession after delete: err = %v, want NotFound", err)
	}

	if err := s.SoftDeleteSession(ctx, sid); !isNotFound(err) {
		t.Errorf("SoftDeleteSession twice: err = %v, want NotFound", err)
	}

	if err := s.RestoreSession(ctx, sid); err != nil {
		t.Fatalf("RestoreSession: %v", err)
	}
	if _, err := s.GetSession(ctx, sid); err != nil {
		t.Errorf("GetSession after restore: %v", err)
	}

	var conflict *chaterr.Conflict
	if err := s.RestoreSession(ctx, sid); !errors.As(err, &conflict) {
		t.Errorf("RestoreSession on a live session: err = %v, want Conflict", err)
	}
}

func TestListSessionsOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreateSession(ctx, "a")
	if err != nil {
		t.Fatalf("CreateSession a: %v", err)
	}
	if _, err := s.CreateSession(ctx, "b"); err != nil {
		t.Fatalf("CreateSession b: %v", err)
	}

	if err := s.RenameSession(ctx, a, "a renamed"); err != nil {
		t.Fatalf("RenameSession: %v", err)
	}

	sessions, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("len(sessions) = %d, want 2", len(sessions))
	}
	if sessions[0].ID != a {
		t.Errorf("most recently updated session = %s, want %s", sessions[0].ID, a)
	}
}

func TestAppendMessageCreatesInitialBranch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sid, err := s.CreateSession(ctx, "conversation")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	m1, err := s.AppendMessage(ctx, sid, domain.RoleUser, "hello")
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	m2, err := s.AppendMessage(ctx, sid, domain.RoleAssistant, "hi there")
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	msgs, err := s.ListMessages(ctx, sid)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[0].ID != m1 || msgs[1].ID != m2 {
		t.Errorf("messages out of seq order: %v", msgs)
	}
	if msgs[0].Seq != 0 || msgs[1].Seq != 1 {
		t.Errorf("unexpected seq values: %d, %d", msgs[0].Seq, msgs[1].Seq)
	}

	sess, err := s.GetSession(ctx, sid)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.ActiveBranchID == nil {
		t.Fatal("expected active branch to be set after first append")
	}
}

func TestAppendMessageRejectsUnknownRole(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sid, err := s.CreateSession(ctx, "conversation")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := s.AppendMessage(ctx, sid, domain.Role("tool"), "x"); err == nil {
		t.Fatal("expected an error for an unrecognized role")
	}
}

func TestUpdateAndSoftDeleteMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sid, err := s.CreateSession(ctx, "conversation")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	mid, err := s.AppendMessage(ctx, sid, domain.RoleUser, "original")
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	patched := "edited"
	if err := s.UpdateMessage(ctx, sid, mid, domain.MessagePatch{Content: &patched}); err != nil {
		t.Fatalf("UpdateMessage: %v", err)
	}
	got, err := s.GetMessage(ctx, sid, mid)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.Content != "edited" {
		t.Errorf("Content = %q, want %q", got.Content, "edited")
	}

	if err := s.SoftDeleteMessage(ctx, sid, mid); err != nil {
		t.Fatalf("SoftDeleteMessage: %v", err)
	}
	if _, err := s.GetMessage(ctx, sid, mid); !isNotFound(err) {
		t.Errorf("GetMessage after delete: err = %v, want NotFound", err)
	}
}

func TestForkFromHistoryAtFirstMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sid, err := s.CreateSession(ctx, "conversation")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	pivot, err := s.AppendMessage(ctx, sid, domain.RoleUser, "first")
	if err != nil {
		t.Fatalf("AppendMessage pivot: %v", err)
	}
	if _, err := s.AppendMessage(ctx, sid, domain.RoleAssistant, "second"); err != nil {
		t.Fatalf("AppendMessage second: %v", err)
	}
	if _, err := s.AppendMessage(ctx, sid, domain.RoleUser, "third"); err != nil {
		t.Fatalf("AppendMessage third: %v", err)
	}

	outcome, err := s.ForkFromHistory(ctx, sid, pivot)
	if err != nil {
		t.Fatalf("ForkFromHistory: %v", err)
	}
	if len(outcome.MessageIDRemaps) != 1 {
		t.Fatalf("len(MessageIDRemaps) = %d, want 1 (the pivot only)", len(outcome.MessageIDRemaps))
	}
	if outcome.MessageIDRemaps[0].OldID != pivot {
		t.Errorf("remap OldID = %s, want %s", outcome.MessageIDRemaps[0].OldID, pivot)
	}

	active, err := s.ListMessages(ctx, sid)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("len(active) = %d, want 1", len(active))
	}
	if active[0].ID == pivot {
		t.Error("expected the pivot to have been copied under a fresh id, not kept verbatim")
	}

	branches, err := s.ListBranches(ctx, sid)
	if err != nil {
		t.Fatalf("ListBranches: %v", err)
	}
	// ListBranches only lists live branches, and the fork soft-deletes the
	// old one, so its live message count is read through the new branch's
	// parent link.
	var oldLive, newLive = -1, -1
	for _, b := range branches {
		if b.IsActive {
			newLive = b.LiveMessageCount
			if b.ParentBranchID != nil {
				if err := s.db.QueryRowContext(ctx,
					`SELECT COUNT(*) FROM messages WHERE session_id = ? AND branch_id = ? AND deleted_at IS NULL`,
					sid.String(), b.ParentBranchID.String(),
				).Scan(&oldLive); err != nil {
					t.Fatalf("count old branch messages: %v", err)
				}
			}
		}
	}
	if oldLive != 0 {
		t.Errorf("old branch live count = %d, want 0", oldLive)
	}
	if newLive != 1 {
		t.Errorf("new branch live count = %d, want 1", newLive)
	}
}

func TestForkFromHistoryAtLastMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sid, err := s.CreateSession(ctx, "conversation")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := s.AppendMessage(ctx, sid, domain.RoleUser, "first"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	last, err := s.AppendMessage(ctx, sid, domain.RoleAssistant, "last")
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	outcome, err := s.ForkFromHistory(ctx, sid, last)
	if err != nil {
		t.Fatalf("ForkFromHistory: %v", err)
	}
	if len(outcome.MessageIDRemaps) != 2 {
		t.Fatalf("len(MessageIDRemaps) = %d, want 2 (the whole prefix)", len(outcome.MessageIDRemaps))
	}
}

func TestCrossSessionMessageIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sa, err := s.CreateSession(ctx, "a")
	if err != nil {
		t.Fatalf("CreateSession a: %v", err)
	}
	sb, err := s.CreateSession(ctx, "b")
	if err != nil {
		t.Fatalf("CreateSession b: %v", err)
	}
	mid, err := s.AppendMessage(ctx, sa, domain.RoleUser, "belongs to a")
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	if _, err := s.GetMessage(ctx, sb, mid); !isNotFound(err) {
		t.Errorf("GetMessage across sessions: err = %v, want NotFound", err)
	}
	patched := "tampered"
	if err := s.UpdateMessage(ctx, sb, mid, domain.MessagePatch{Content: &patched}); !isNotFound(err) {
		t.Errorf("UpdateMessage across sessions: err = %v, want NotFound", err)
	}
	if err := s.SoftDeleteMessage(ctx, sb, mid); !isNotFound(err) {
		t.Errorf("SoftDeleteMessage across sessions: err = %v, want NotFound", err)
	}
}

func TestMediaAttachAndBlobRejection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sid, err := s.CreateSession(ctx, "conversation")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	mid, err := s.AppendMessage(ctx, sid, domain.RoleAssistant, "generated an image")
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	mediaID, err := s.AttachMedia(ctx, sid, mid, domain.MediaRef{
		URI:       "file:///tmp/does-not-need-to-exist.png",
		MimeType:  "image/png",
		SizeBytes: 1024,
	})
	if err != nil {
		t.Fatalf("AttachMedia: %v", err)
	}

	refs, err := s.ListMedia(ctx, sid, mid)
	if err != nil {
		t.Fatalf("ListMedia: %v", err)
	}
	if len(refs) != 1 || refs[0].ID != mediaID {
		t.Fatalf("ListMedia = %v", refs)
	}

	if err := s.SoftDeleteMedia(ctx, sid, mediaID); err != nil {
		t.Fatalf("SoftDeleteMedia: %v", err)
	}
	refs, err = s.ListMedia(ctx, sid, mid)
	if err != nil {
		t.Fatalf("ListMedia after delete: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("len(refs) after delete = %d, want 0", len(refs))
	}

	var conflict *chaterr.Conflict
	_, err = s.AttachMedia(ctx, sid, mid, domain.MediaRef{URI: "data:image/png;base64,AAAA"})
	if !errors.As(err, &conflict) {
		t.Errorf("AttachMedia with inline blob: err = %v, want Conflict", err)
	}
}

func TestAgentEventRoundtripAndValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sid, err := s.CreateSession(ctx, "conversation")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	mid, err := s.AppendMessage(ctx, sid, domain.RoleAssistant, "calling a tool")
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	if _, err := s.AppendEvent(ctx, sid, &mid, "tool_call", `{"name":"search"}`); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if _, err := s.AppendEvent(ctx, sid, nil, "session_note", `{"note":"ok"}`); err != nil {
		t.Fatalf("AppendEvent session-scoped: %v", err)
	}
	if _, err := s.AppendEvent(ctx, sid, &mid, "bad", `not json`); err == nil {
		t.Fatal("expected malformed payload to be rejected")
	}

	scoped, err := s.ListEvents(ctx, sid, &mid)
	if err != nil {
		t.Fatalf("ListEvents scoped: %v", err)
	}
	if len(scoped) != 1 {
		t.Fatalf("len(scoped) = %d, want 1", len(scoped))
	}

	all, err := s.ListEvents(ctx, sid, nil)
	if err != nil {
		t.Fatalf("ListEvents all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(all) = %d, want 2", len(all))
	}
}

func isNotFound(err error) bool {
	var nf *chaterr.NotFound
	return errors.As(err, &nf)
}
