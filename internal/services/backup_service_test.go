package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"filippo.io/age"
	"github.com/isdelr/notesync-be/internal/backup"
	"github.com/isdelr/notesync-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readNotesJSON(t *testing.T, archive []byte) []models.Note {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "notes.json", zr.File[0].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()

	var notes []models.Note
	require.NoError(t, json.NewDecoder(rc).Decode(&notes))
	return notes
}

func TestBackupService_CreateBackup(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	ctx := context.Background()
	alice := f.register(t, "alice")
	_, err := f.notes.Sync(ctx, alice, []SyncNote{{Subject: "S", Text: "T"}, {Subject: "S2", Text: "T2"}})
	require.NoError(t, err)

	dir := t.TempDir()
	sink, err := backup.NewFilesystemSink(dir)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	svc := NewBackupService(f.notes, sink, f.events, f.clock, "")
	b, err := svc.CreateBackup(ctx)
	require.NoError(t, err)
	assert.Equal(t, "notes_20240115103100.zip", b.Name)
	assert.Equal(t, 2, b.Notes)
	assert.False(t, b.Encrypted)

	data, err := os.ReadFile(filepath.Join(dir, b.Name))
	require.NoError(t, err)
	assert.Equal(t, b.Size, int64(len(data)))
	assert.Len(t, readNotesJSON(t, data), 2)

	events, err := f.events.GetRecentEvents(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "backup.create", events[0].Type)
}

func TestBackupService_Encrypted(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	ctx := context.Background()
	alice := f.register(t, "alice")
	_, err := f.notes.Sync(ctx, alice, []SyncNote{{Subject: "S", Text: "T"}})
	require.NoError(t, err)

	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	dir := t.TempDir()
	sink, err := backup.NewFilesystemSink(dir)
	require.NoError(t, err)

	b, err := NewBackupService(f.notes, sink, f.events, f.clock, identity.Recipient().String()).CreateBackup(ctx)
	require.NoError(t, err)
	assert.True(t, b.Encrypted)
	assert.Equal(t, ".age", filepath.Ext(b.Name))

	ciphertext, err := os.Open(b.Location)
	require.NoError(t, err)
	defer ciphertext.Close()

	r, err := age.Decrypt(ciphertext, identity)
	require.NoError(t, err)
	plain, err := io.ReadAll(r)
	require.NoError(t, err)

	notes := readNotesJSON(t, plain)
	require.Len(t, notes, 1)
	assert.Equal(t, "S", notes[0].Subject)
}
