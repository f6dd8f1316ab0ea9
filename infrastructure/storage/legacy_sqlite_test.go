package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLegacyFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "whatsapp_messages.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE messages (id TEXT PRIMARY KEY, client_id TEXT, chat_id TEXT, from_user TEXT, body TEXT,
			timestamp INTEGER, has_media INTEGER, media_type TEXT, media_path TEXT,
			is_location INTEGER, is_contact INTEGER, is_sticker INTEGER)`,
		`CREATE TABLE clients_metadata (id TEXT PRIMARY KEY, api_key TEXT, created_at TEXT)`,
		`INSERT INTO messages VALUES ('m1', 'c1', 'chat', 'alice', 'hi', 100, 0, NULL, NULL, 0, 0, 0)`,
		`INSERT INTO messages VALUES ('m2', 'c1', 'chat', 'bob', 'pic', 101, 1, 'image/jpeg', 'c1/m2.jpeg', 0, 0, 0)`,
		`INSERT INTO clients_metadata VALUES ('c1', 'key-1', '2024-05-01 10:00:00')`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	return path
}

func TestOpenLegacy_Missing(t *testing.T) {
	_, err := OpenLegacy(filepath.Join(t.TempDir(), "nope.db"))
	assert.ErrorIs(t, err, ErrNoLegacyStore)
}

func TestLegacyStore_ReadsRows(t *testing.T) {
	path := writeLegacyFile(t)
	store, err := OpenLegacy(path)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	msgs, err := store.Messages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	byID := map[string]int{}
	for i, m := range msgs {
		byID[m.ID] = i
	}
	m2 := msgs[byID["m2"]]
	assert.True(t, m2.HasMedia)
	assert.Equal(t, "image/jpeg", m2.MediaType)
	assert.Equal(t, "c1/m2.jpeg", m2.MediaPath)
	assert.Equal(t, "c1", m2.SessionID)
	assert.Empty(t, msgs[byID["m1"]].MediaPath)

	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "key-1", sessions[0].APIKey)
	assert.Equal(t, 2024, sessions[0].CreatedAt.Year())
}

func TestLegacyStore_Remove(t *testing.T) {
	path := writeLegacyFile(t)
	store, err := OpenLegacy(path)
	require.NoError(t, err)

	require.NoError(t, store.Remove())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
