package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/iliyamo/church-events/internal/config"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Connect opens the database selected by cfg.Driver and applies the schema.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		db, err = OpenSQLite(cfg.SQLitePath)
	default:
		db, err = Open(cfg.User, cfg.Pass, cfg.Host, cfg.Port, cfg.Name)
	}
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db, cfg.Driver); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	// clientFoundRows=true makes RowsAffected count matched rows, which the
	// conditional occupancy updates rely on.
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// OpenSQLite opens (creating if needed) a SQLite database file.  The pool
// is limited to one connection: SQLite allows a single writer, and queuing
// in database/sql avoids "database is locked" errors under concurrent
// admissions.
func OpenSQLite(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	dsn := "file:" + cleanPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded schema for driver.  Every statement is
// idempotent, so Migrate is safe to run on each startup.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	content, err := schemaFS.ReadFile("schema/" + driver + ".sql")
	if err != nil {
		return fmt.Errorf("read schema for %s: %w", driver, err)
	}
	for _, stmt := range strings.Split(string(content), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
