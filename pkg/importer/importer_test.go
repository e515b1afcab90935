package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstogner/chatvault/pkg/chatdb"
)

func TestImportLegacyConversationsAcceptsWellFormedRows(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "chat.db")
	db, err := chatdb.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tsvPath := filepath.Join(dir, "conversations.tsv")
	content := "legacy-1\t1700000000\tFirst chat\n" +
		"legacy-2\t1700000100\tSecond\\tchat\\nwith newline\n"
	require.NoError(t, os.WriteFile(tsvPath, []byte(content), 0o644))

	outcome, err := ImportLegacyConversations(context.Background(), db, tsvPath)
	require.NoError(t, err)
	assert.False(t, outcome.Idempotent)
	assert.Equal(t, 2, outcome.ImportedCount)
	assert.Empty(t, outcome.Warnings)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&count))
	assert.Equal(t, 2, count)

	var title string
	require.NoError(t, db.QueryRow(`SELECT title FROM sessions WHERE updated_at = ?`, int64(1700000100)*1000).Scan(&title))
	assert.Equal(t, "Second\tchat\nwith newline", title)
}

func TestImportLegacyConversationsSkipsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "chat.db")
	db, err := chatdb.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tsvPath := filepath.Join(dir, "conversations.tsv")
	content := "legacy-1\t1700000000\tgood row\n" +
		"legacy-2\tnot-a-number\tbad timestamp\n" +
		"legacy-3\tonly-two-fields\n" +
		"legacy-4\t1700000200\tdangling escape \\\n"
	require.NoError(t, os.WriteFile(tsvPath, []byte(content), 0o644))

	outcome, err := ImportLegacyConversations(context.Background(), db, tsvPath)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.ImportedCount)
	assert.Len(t, outcome.Warnings, 3)
}

func TestImportLegacyConversationsIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "chat.db")
	db, err := chatdb.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tsvPath := filepath.Join(dir, "conversations.tsv")
	require.NoError(t, os.WriteFile(tsvPath, []byte("legacy-1\t1700000000\tonly row\n"), 0o644))

	first, err := ImportLegacyConversations(context.Background(), db, tsvPath)
	require.NoError(t, err)
	require.False(t, first.Idempotent)
	require.Equal(t, 1, first.ImportedCount)

	second, err := ImportLegacyConversations(context.Background(), db, tsvPath)
	require.NoError(t, err)
	assert.True(t, second.Idempotent)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestUnescapeLegacyTitle(t *testing.T) {
	got, err := unescapeLegacyTitle(`line one\nline two\\done\tindented`)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\\done\tindented", got)

	_, err = unescapeLegacyTitle(`bad \q escape`)
	assert.Error(t, err)
}
