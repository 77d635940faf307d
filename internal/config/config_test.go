package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, 8080, c.ServerPort)
	assert.Equal(t, "sqlite", c.DatabaseDriver)
	assert.Equal(t, 24*time.Hour, c.TokenTTL)
	assert.Equal(t, ScopeOwner, c.Policy.DeltaScope)
	assert.Equal(t, DeleteHard, c.Policy.DeleteMode)
	assert.False(t, c.Policy.StudentsCanSync)
	assert.True(t, c.Policy.DeleteRequiresTeacher)
	assert.Equal(t, "@daily", c.Events.PruneSchedule)
	require.NoError(t, c.Validate())
}

func TestLoad_TOMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notesync.toml")
	content := `
port = 9090
database_driver = "pgx"
database_dsn = "postgres://u:p@localhost:5432/notes?sslmode=disable"
token_ttl = "2h"

[policy]
delta_scope = "all"
delete_mode = "soft"
password_min_length = 8

[events]
retention = "48h"

[backup]
sink = "s3"
s3_bucket = "notes-backups"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("PORT", "9191")
	t.Setenv("STUDENTS_CAN_SYNC", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, c.ServerPort)
	assert.Equal(t, "pgx", c.DatabaseDriver)
	assert.Equal(t, 2*time.Hour, c.TokenTTL)
	assert.Equal(t, ScopeAll, c.Policy.DeltaScope)
	assert.Equal(t, DeleteSoft, c.Policy.DeleteMode)
	assert.Equal(t, 8, c.Policy.PasswordMinLength)
	assert.True(t, c.Policy.StudentsCanSync)
	assert.Equal(t, 48*time.Hour, c.Events.Retention)
	assert.Equal(t, "notes-backups", c.Backup.S3Bucket)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("TOKEN_TTL", "soon")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN_TTL")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad driver", func(c *Config) { c.DatabaseDriver = "mysql" }},
		{"bad scope", func(c *Config) { c.Policy.DeltaScope = "group" }},
		{"bad delete mode", func(c *Config) { c.Policy.DeleteMode = "archive" }},
		{"empty secret", func(c *Config) { c.JWTSecret = "" }},
		{"zero password length", func(c *Config) { c.Policy.PasswordMinLength = 0 }},
		{"s3 without bucket", func(c *Config) { c.Backup.Sink = "s3" }},
		{"unknown sink", func(c *Config) { c.Backup.Sink = "ftp" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
