package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Delta scopes.
const (
	ScopeOwner = "owner"
	ScopeAll   = "all"
)

// Delete modes.
const (
	DeleteHard = "hard"
	DeleteSoft = "soft"
)

// Config holds the application configuration.
type Config struct {
	ServerPort     int           `toml:"port"`
	DatabaseDriver string        `toml:"database_driver"` // "sqlite" or "pgx"
	DatabaseDSN    string        `toml:"database_dsn"`
	JWTSecret      string        `toml:"jwt_secret"`
	TokenTTL       time.Duration `toml:"token_ttl"`
	LogLevel       string        `toml:"log_level"`
	LogFormat      string        `toml:"log_format"` // "console" or "json"
	AllowedOrigins []string      `toml:"cors_origins"`

	Policy Policy       `toml:"policy"`
	Events EventsConfig `toml:"events"`
	Backup BackupConfig `toml:"backup"`
}

// Policy selects one behaviour per deployment for the capabilities that
// differ between deployments.
type Policy struct {
	DeltaScope            string `toml:"delta_scope"`
	DeleteMode            string `toml:"delete_mode"`
	StudentsCanSync       bool   `toml:"students_can_sync"`
	DeleteRequiresTeacher bool   `toml:"delete_requires_teacher"`
	PasswordMinLength     int    `toml:"password_min_length"`
}

// EventsConfig controls retention of the audit log.
type EventsConfig struct {
	Retention     time.Duration `toml:"retention"`
	PruneSchedule string        `toml:"prune_schedule"`
}

// BackupConfig describes where note backups go. Sink is "filesystem" or "s3";
// only the fields of the selected sink are used.
type BackupConfig struct {
	Schedule     string `toml:"schedule"` // empty disables scheduled backups
	Sink         string `toml:"sink"`
	Dir          string `toml:"dir"`
	S3Bucket     string `toml:"s3_bucket,omitempty"`
	S3Prefix     string `toml:"s3_prefix,omitempty"`
	S3Region     string `toml:"s3_region,omitempty"`
	S3Endpoint   string `toml:"s3_endpoint,omitempty"`
	S3AccessKey  string `toml:"s3_access_key,omitempty"`
	S3SecretKey  string `toml:"s3_secret_key,omitempty"`
	AgeRecipient string `toml:"age_recipient,omitempty"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		ServerPort:     8080,
		DatabaseDriver: "sqlite",
		DatabaseDSN:    "./notesync.db",
		JWTSecret:      "dev_insecure_change_me",
		TokenTTL:       24 * time.Hour,
		LogLevel:       "info",
		LogFormat:      "console",
		AllowedOrigins: []string{"http://localhost:3000"},
		Policy: Policy{
			DeltaScope:            ScopeOwner,
			DeleteMode:            DeleteHard,
			StudentsCanSync:       false,
			DeleteRequiresTeacher: true,
			PasswordMinLength:     1,
		},
		Events: EventsConfig{
			Retention:     30 * 24 * time.Hour,
			PruneSchedule: "@daily",
		},
		Backup: BackupConfig{
			Sink: "filesystem",
			Dir:  "./backups",
		},
	}
}

// Load builds the configuration from defaults, then the TOML file at path
// (skipped when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("NOTESYNC_CONFIG")
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot run with.
func (c *Config) Validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid port %d", c.ServerPort)
	}
	switch c.DatabaseDriver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("unknown database driver: %s", c.DatabaseDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret must not be empty")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}
	switch c.Policy.DeltaScope {
	case ScopeOwner, ScopeAll:
	default:
		return fmt.Errorf("unknown delta scope: %s", c.Policy.DeltaScope)
	}
	switch c.Policy.DeleteMode {
	case DeleteHard, DeleteSoft:
	default:
		return fmt.Errorf("unknown delete mode: %s", c.Policy.DeleteMode)
	}
	if c.Policy.PasswordMinLength < 1 {
		return fmt.Errorf("password min length must be at least 1")
	}
	switch c.Backup.Sink {
	case "filesystem":
		if c.Backup.Dir == "" {
			return fmt.Errorf("backup dir required for filesystem sink")
		}
	case "s3":
		if c.Backup.S3Bucket == "" {
			return fmt.Errorf("backup s3 bucket required for s3 sink")
		}
	default:
		return fmt.Errorf("unknown backup sink: %s", c.Backup.Sink)
	}
	return nil
}

func applyEnv(c *Config) error {
	var err error
	if c.ServerPort, err = getEnvInt("PORT", c.ServerPort); err != nil {
		return err
	}
	c.DatabaseDriver = getEnv("DATABASE_DRIVER", c.DatabaseDriver)
	c.DatabaseDSN = getEnv("DATABASE_DSN", c.DatabaseDSN)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	if c.TokenTTL, err = getEnvDuration("TOKEN_TTL", c.TokenTTL); err != nil {
		return err
	}
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok {
		c.AllowedOrigins = splitList(v)
	}

	c.Policy.DeltaScope = getEnv("DELTA_SCOPE", c.Policy.DeltaScope)
	c.Policy.DeleteMode = getEnv("DELETE_MODE", c.Policy.DeleteMode)
	if c.Policy.StudentsCanSync, err = getEnvBool("STUDENTS_CAN_SYNC", c.Policy.StudentsCanSync); err != nil {
		return err
	}
	if c.Policy.DeleteRequiresTeacher, err = getEnvBool("DELETE_REQUIRES_TEACHER", c.Policy.DeleteRequiresTeacher); err != nil {
		return err
	}
	if c.Policy.PasswordMinLength, err = getEnvInt("PASSWORD_MIN_LENGTH", c.Policy.PasswordMinLength); err != nil {
		return err
	}

	if c.Events.Retention, err = getEnvDuration("EVENT_RETENTION", c.Events.Retention); err != nil {
		return err
	}
	c.Events.PruneSchedule = getEnv("EVENT_PRUNE_SCHEDULE", c.Events.PruneSchedule)

	c.Backup.Schedule = getEnv("BACKUP_SCHEDULE", c.Backup.Schedule)
	c.Backup.Sink = getEnv("BACKUP_SINK", c.Backup.Sink)
	c.Backup.Dir = getEnv("BACKUP_DIR", c.Backup.Dir)
	c.Backup.S3Bucket = getEnv("BACKUP_S3_BUCKET", c.Backup.S3Bucket)
	c.Backup.S3Prefix = getEnv("BACKUP_S3_PREFIX", c.Backup.S3Prefix)
	c.Backup.S3Region = getEnv("BACKUP_S3_REGION", c.Backup.S3Region)
	c.Backup.S3Endpoint = getEnv("BACKUP_S3_ENDPOINT", c.Backup.S3Endpoint)
	c.Backup.S3AccessKey = getEnv("BACKUP_S3_ACCESS_KEY", c.Backup.S3AccessKey)
	c.Backup.S3SecretKey = getEnv("BACKUP_S3_SECRET_KEY", c.Backup.S3SecretKey)
	c.Backup.AgeRecipient = getEnv("BACKUP_AGE_RECIPIENT", c.Backup.AgeRecipient)
	return nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %w", key, err)
	}
	return i, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
