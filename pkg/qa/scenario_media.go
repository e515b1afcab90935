package qa

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nstogner/chatvault/pkg/chaterr"
	"github.com/nstogner/chatvault/pkg/domain"
)

func runMediaRefRoundtrip(ctx context.Context, env *Env, rep *Reporter) error {
	sessionID, err := env.Store.CreateSession(ctx, "qa media session")
	if err != nil {
		return err
	}
	messageID, err := env.Store.AppendMessage(ctx, sessionID, domain.RoleAssistant, "here is an attachment")
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "chatvault-qa-media-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	filePath := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(filePath, []byte("qa fixture payload"), 0o644); err != nil {
		return err
	}

	mediaID, err := env.Store.AttachMedia(ctx, sessionID, messageID, domain.MediaRef{
		URI: "file://" + filePath,
	})
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}

	refs, err := env.Store.ListMedia(ctx, sessionID, messageID)
	if err != nil {
		return err
	}
	if len(refs) != 1 {
		return fmt.Errorf("expected 1 media ref, got %d", len(refs))
	}
	if refs[0].MimeType == "" {
		return errors.New("expected sniffed mime_type to be populated")
	}
	if refs[0].SizeBytes == 0 {
		return errors.New("expected sniffed size_bytes to be populated")
	}

	if err := env.Store.SoftDeleteMedia(ctx, sessionID, mediaID); err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	after, err := env.Store.ListMedia(ctx, sessionID, messageID)
	if err != nil {
		return err
	}
	if len(after) != 0 {
		return fmt.Errorf("expected 0 live media refs after soft delete, got %d", len(after))
	}

	rep.Line("media_ref_roundtrip", true)
	return nil
}

func runMediaBlobGuard(ctx context.Context, env *Env, rep *Reporter) error {
	sessionID, err := env.Store.CreateSession(ctx, "qa media blob guard session")
	if err != nil {
		return err
	}
	messageID, err := env.Store.AppendMessage(ctx, sessionID, domain.RoleUser, "attempting inline blob")
	if err != nil {
		return err
	}

	_, err = env.Store.AttachMedia(ctx, sessionID, messageID, domain.MediaRef{
		URI:      "data:text/plain;base64,cXVhbGl0eSBhc3N1cmFuY2U=",
		MimeType: "text/plain",
	})
	if err == nil {
		return errors.New("expected inline blob URI to be rejected")
	}
	var conflict *chaterr.Conflict
	if !errors.As(err, &conflict) {
		return fmt.Errorf("expected chaterr.Conflict, got %T", err)
	}

	rep.Line("media_blob_guard", true)
	return nil
}
