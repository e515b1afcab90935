package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/nstogner/chatvault/pkg/chaterr"
	"github.com/nstogner/chatvault/pkg/domain"
	"github.com/nstogner/chatvault/pkg/id"
)

// isBlobLikeURI rejects URIs that smuggle media payloads inline rather
// than referencing external storage (spec §4.4): data: URIs and any URI
// containing a base64 marker.
func isBlobLikeURI(uri string) bool {
	return strings.HasPrefix(uri, "data:") || strings.Contains(uri, ";base64,")
}

// inferLocalFileMetadata sniffs MIME type and size from a file:// URI
// when the caller left them blank. Only the header bytes mimetype.DetectFile
// reads are touched — the media payload itself is never persisted,
// preserving the "no binary media payloads in the database" non-goal.
func inferLocalFileMetadata(ref *domain.MediaRef) {
	if ref.MimeType != "" && ref.SizeBytes != 0 {
		return
	}
	u, err := url.Parse(ref.URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	path := u.Path
	if path == "" {
		return
	}
	if ref.MimeType == "" {
		if m, err := mimetype.DetectFile(path); err == nil {
			ref.MimeType = m.String()
		}
	}
	if ref.SizeBytes == 0 {
		if info, err := os.Stat(path); err == nil {
			ref.SizeBytes = info.Size()
		}
	}
}

func (s *Store) AttachMedia(ctx context.Context, sessionID id.SessionID, messageID id.MessageID, ref domain.MediaRef) (id.MediaID, error) {
	if isBlobLikeURI(ref.URI) {
		return id.MediaID{}, &chaterr.Conflict{Stage: "media_uri_policy", Err: errors.New("inline blob-like media URI rejected")}
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE session_id = ? AND id = ? AND deleted_at IS NULL`,
		sessionID.String(), messageID.String(),
	).Scan(&count)
	if err != nil {
		return id.MediaID{}, mapErr(err)
	}
	if count == 0 {
		return id.MediaID{}, &chaterr.NotFound{Entity: "message", ID: messageID.String()}
	}

	inferLocalFileMetadata(&ref)

	mediaID := id.NewMediaID()
	now := nowMillis()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO media_refs (id, session_id, message_id, uri, mime_type, size_bytes, duration_ms, width_px, height_px, sha256_hex, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mediaID.String(), sessionID.String(), messageID.String(), ref.URI, ref.MimeType, ref.SizeBytes,
		ref.DurationMs, ref.WidthPx, ref.HeightPx, ref.SHA256Hex, now,
	)
	if err != nil {
		return id.MediaID{}, mapErr(err)
	}
	return mediaID, nil
}

func (s *Store) ListMedia(ctx context.Context, sessionID id.SessionID, messageID id.MessageID) ([]domain.MediaRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, message_id, uri, mime_type, size_bytes, duration_ms, width_px, height_px, sha256_hex, created_at, deleted_at
		 FROM media_refs WHERE session_id = ? AND message_id = ? AND deleted_at IS NULL
		 ORDER BY created_at ASC, id ASC`,
		sessionID.String(), messageID.String(),
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.MediaRef
	for rows.Next() {
		ref, err := scanMediaRef(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, ref)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) SoftDeleteMedia(ctx context.Context, sessionID id.SessionID, mediaID id.MediaID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE media_refs SET deleted_at = ? WHERE session_id = ? AND id = ? AND deleted_at IS NULL`,
		nowMillis(), sessionID.String(), mediaID.String(),
	)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return &chaterr.NotFound{Entity: "media", ID: mediaID.String()}
	}
	return nil
}

func scanMediaRef(row rowScanner) (domain.MediaRef, error) {
	var (
		idStr       string
		sessionStr  string
		messageStr  string
		uri         string
		mimeType    string
		sizeBytes   int64
		durationMs  sql.NullInt64
		widthPx     sql.NullInt64
		heightPx    sql.NullInt64
		sha256Hex   sql.NullString
		createdAtMs int64
		deletedAtNS sql.NullInt64
	)
	if err := row.Scan(&idStr, &sessionStr, &messageStr, &uri, &mimeType, &sizeBytes,
		&durationMs, &widthPx, &heightPx, &sha256Hex, &createdAtMs, &deletedAtNS); err != nil {
		return domain.MediaRef{}, err
	}
	mediaID, err := id.ParseMediaID(idStr)
	if err != nil {
		return domain.MediaRef{}, err
	}
	sid, err := id.ParseSessionID(sessionStr)
	if err != nil {
		return domain.MediaRef{}, err
	}
	mid, err := id.ParseMessageID(messageStr)
	if err != nil {
		return domain.MediaRef{}, err
	}
	ref := domain.MediaRef{
		ID:        mediaID,
		SessionID: sid,
		MessageID: mid,
		URI:       uri,
		MimeType:  mimeType,
		SizeBytes: sizeBytes,
		CreatedAt: toTime(createdAtMs),
		DeletedAt: nullTimeMillis(deletedAtNS),
	}
	if durationMs.Valid {
		ref.DurationMs = &durationMs.Int64
	}
	if widthPx.Valid {
		ref.WidthPx = &widthPx.Int64
	}
	if heightPx.Valid {
		ref.HeightPx = &heightPx.Int64
	}
	if sha256Hex.Valid {
		ref.SHA256Hex = &sha256Hex.String
	}
	return ref, nil
}
