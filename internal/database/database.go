package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the sqlite connection used by all repositories.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

var (
	// ErrStaleStatus is returned by conditional status updates when the
	// row no longer holds the expected source status.
	ErrStaleStatus = errors.New("status changed concurrently")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnitLimit is returned when the active-per-unit unique index
	// rejects an insert.
	ErrUnitLimit = errors.New("unit already holds an active reservation")
)

// NewDB opens the database, applies connection settings and creates the
// schema if missing.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL mode and busy timeout keep concurrent request handlers from
	// tripping over writer locks.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, logger: logger}

	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			name TEXT NOT NULL,
			phone TEXT,
			apartment_number TEXT,
			is_admin BOOLEAN NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_login DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			unit_id TEXT NOT NULL,
			user_id INTEGER NOT NULL,
			resource_type TEXT NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			description TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			admin_comment TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			approved_at DATETIME,
			completed_at DATETIME,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		// The one-active-reservation-per-unit rule lives in the schema
		// so it holds under arbitrary concurrency. Violations surface as
		// a unique constraint error and are translated by InsertReservation.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_active_unit
			ON reservations(unit_id) WHERE status IN ('pending', 'approved')`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_resource
			ON reservations(resource_type, status)`,
		`CREATE TABLE IF NOT EXISTS notices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			notice_type TEXT NOT NULL DEFAULT 'general',
			is_pinned BOOLEAN NOT NULL DEFAULT 0,
			is_important BOOLEAN NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			view_count INTEGER NOT NULL DEFAULT 0,
			author_id INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			published_at DATETIME,
			FOREIGN KEY (author_id) REFERENCES users(id)
		)`,
		// Fallback storage for refresh sessions when redis is down.
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			expires_at DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS blocked_units (
			unit_id TEXT PRIMARY KEY,
			blocked_at DATETIME NOT NULL,
			reason TEXT,
			blocked_by INTEGER NOT NULL
		)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// PingContext checks database liveness for readiness probes.
func (db *DB) PingContext(ctx context.Context) error {
	return db.DB.PingContext(ctx)
}
