package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateSession stores a refresh session. Used as the fallback behind the
// redis session repository.
func (db *DB) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions (token, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)`,
		token, userID, expiresAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns the owning user id for a refresh token, or ErrNotFound
// when the token is unknown or expired.
func (db *DB) GetSession(ctx context.Context, token string) (int64, error) {
	var userID int64
	var expiresAt time.Time
	err := db.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM sessions WHERE token = ?", token,
	).Scan(&userID, &expiresAt)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get session: %w", err)
	}
	if time.Now().After(expiresAt) {
		_, _ = db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
		return 0, ErrNotFound
	}
	return userID, nil
}

// DeleteSession revokes a refresh token.
func (db *DB) DeleteSession(ctx context.Context, token string) error {
	_, err := db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// CleanupExpiredSessions removes sessions past their expiry.
func (db *DB) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	res, err := db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at < ?", time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
