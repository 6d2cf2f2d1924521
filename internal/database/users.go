package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"aptdesk/internal/models"
)

const userColumns = `id, username, email, password_hash, name, phone, apartment_number,
	is_admin, is_active, created_at, updated_at, last_login`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	var phone, apartment sql.NullString
	var lastLogin sql.NullTime
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Name, &phone, &apartment,
		&u.IsAdmin, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &lastLogin,
	)
	if err != nil {
		return nil, err
	}
	u.Phone = phone.String
	u.ApartmentNumber = apartment.String
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	return &u, nil
}

// CreateUser inserts a new resident account.
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `
		INSERT INTO users (
			username, email, password_hash, name, phone, apartment_number,
			is_admin, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.Name, u.Phone, u.ApartmentNumber,
		u.IsAdmin, u.IsActive, now, now,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// GetUserByID returns a user by id.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// GetUserByUsername returns a user by username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return u, nil
}

// ListUsers returns all users ordered by creation time.
func (db *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUser updates mutable profile fields.
func (db *DB) UpdateUser(ctx context.Context, u *models.User) error {
	_, err := db.ExecContext(ctx, `
		UPDATE users SET email = ?, name = ?, phone = ?, apartment_number = ?,
			is_admin = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		u.Email, u.Name, u.Phone, u.ApartmentNumber,
		u.IsAdmin, u.IsActive, time.Now().UTC(), u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user %d: %w", u.ID, err)
	}
	return nil
}

// TouchLastLogin records a successful login.
func (db *DB) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx,
		"UPDATE users SET last_login = ? WHERE id = ?", time.Now().UTC(), id)
	return err
}

// CountUsers returns the total number of accounts.
func (db *DB) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}
