package backup

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"
	"github.com/isdelr/notesync-be/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSinkFromConfig(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.BackupConfig
		wantErr bool
	}{
		{"filesystem", config.BackupConfig{Sink: "filesystem", Dir: filepath.Join(tmpDir, "b")}, false},
		{"filesystem without dir", config.BackupConfig{Sink: "filesystem"}, true},
		{"s3", config.BackupConfig{
			Sink: "s3", S3Bucket: "notes", S3Region: "us-east-1",
			S3Endpoint: "http://127.0.0.1:9000", S3AccessKey: "minio", S3SecretKey: "minio123",
		}, false},
		{"s3 without bucket", config.BackupConfig{Sink: "s3"}, true},
		{"unknown", config.BackupConfig{Sink: "ftp"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewSinkFromConfig(context.Background(), tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, got)
		})
	}
}

func TestFilesystemSink_Put(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFilesystemSink(dir)
	require.NoError(t, err)

	data := []byte("archive bytes")
	loc, err := sink.Put(context.Background(), "notes.zip", bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "notes.zip"), loc)

	got, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFilesystemSink_SizeMismatch(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFilesystemSink(dir)
	require.NoError(t, err)

	_, err = sink.Put(context.Background(), "short.zip", strings.NewReader("abc"), 10)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file must be cleaned up")
}

func TestS3Sink_Key(t *testing.T) {
	assert.Equal(t, "a.zip", (&S3Sink{}).key("a.zip"))
	assert.Equal(t, "backups/a.zip", (&S3Sink{prefix: "backups/"}).key("a.zip"))
}

func TestEncrypt_RoundTrip(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	var ciphertext bytes.Buffer
	require.NoError(t, Encrypt(identity.Recipient().String(), strings.NewReader("secret notes"), &ciphertext))
	assert.NotContains(t, ciphertext.String(), "secret notes")

	r, err := age.Decrypt(&ciphertext, identity)
	require.NoError(t, err)
	plain, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "secret notes", string(plain))
}

func TestEncrypt_BadRecipient(t *testing.T) {
	err := Encrypt("not-a-key", strings.NewReader("x"), io.Discard)
	require.Error(t, err)
}
