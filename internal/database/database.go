package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations
var migrationFiles embed.FS

// DB is a connection pool that remembers which driver it was opened with so
// queries written with "?" placeholders can be rebound for Postgres.
type DB struct {
	*sql.DB
	Driver string
}

// New creates a new database connection pool. driver is "sqlite" or "pgx".
func New(driver, dataSourceName string) (*DB, error) {
	dsn := dataSourceName
	if driver == "sqlite" {
		dsn = sqliteDSN(dataSourceName)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	switch driver {
	case "sqlite":
		// SQLite serializes writers; a single connection also keeps
		// ":memory:" databases from splitting per connection.
		db.SetMaxOpenConns(1)
	case "pgx":
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	default:
		db.Close()
		return nil, fmt.Errorf("unknown database driver: %s", driver)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{DB: db, Driver: driver}, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Rebind rewrites "?" placeholders into "$N" form for Postgres. Queries for
// SQLite are returned unchanged.
func (db *DB) Rebind(query string) string {
	if db.Driver != "pgx" {
		return query
	}
	return rebindDollar(query)
}

func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// goose keeps its dialect and filesystem in package globals.
var migrateMu sync.Mutex

// Migrate applies all pending embedded migrations for the pool's driver.
func Migrate(ctx context.Context, db *DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	dialect, dir := "sqlite3", "migrations/sqlite"
	if db.Driver == "pgx" {
		dialect, dir = "pgx", "migrations/postgres"
	}

	goose.SetBaseFS(migrationFiles)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, dir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// gooseLogger routes goose output through zerolog.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	log.Debug().Msgf(strings.TrimSpace(format), v...)
}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	log.Fatal().Msgf(strings.TrimSpace(format), v...)
}
