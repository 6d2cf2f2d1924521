package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"aptdesk/internal/models"
)

const reservationColumns = `id, unit_id, user_id, resource_type, start_time, end_time,
	description, status, admin_comment, created_at, updated_at, approved_at, completed_at`

func scanReservation(row interface{ Scan(...any) error }) (*models.Reservation, error) {
	var r models.Reservation
	var description, adminComment sql.NullString
	var approvedAt, completedAt sql.NullTime
	err := row.Scan(
		&r.ID, &r.UnitID, &r.UserID, &r.ResourceType, &r.StartTime, &r.EndTime,
		&description, &r.Status, &adminComment, &r.CreatedAt, &r.UpdatedAt,
		&approvedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Description = description.String
	r.AdminComment = adminComment.String
	if approvedAt.Valid {
		r.ApprovedAt = &approvedAt.Time
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	return &r, nil
}

// GetReservation returns a reservation by id.
func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation %d: %w", id, err)
	}
	return r, nil
}

// ActiveByResource returns active (pending/approved) reservations of the
// given resource type, optionally excluding one id (used when re-checking
// an edit).
func (db *DB) ActiveByResource(ctx context.Context, rt models.ResourceType, excludeID int64) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE resource_type = ? AND status IN ('pending', 'approved')`
	args := []any{rt}
	if excludeID > 0 {
		query += ` AND id != ?`
		args = append(args, excludeID)
	}
	query += ` ORDER BY start_time`

	return db.queryReservations(ctx, query, args...)
}

// ActiveByUnit returns active reservations held by a unit, across all
// resource types.
func (db *DB) ActiveByUnit(ctx context.Context, unitID string) ([]models.Reservation, error) {
	return db.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		WHERE unit_id = ? AND status IN ('pending', 'approved')
		ORDER BY start_time`, unitID)
}

// InsertReservation persists a new reservation and fills in the
// server-assigned id and timestamps. The partial unique index on active
// units is the hard backstop for the one-per-unit rule; its violation is
// reported as ErrUnitLimit.
func (db *DB) InsertReservation(ctx context.Context, r *models.Reservation) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `
		INSERT INTO reservations (
			unit_id, user_id, resource_type, start_time, end_time,
			description, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UnitID, r.UserID, r.ResourceType, r.StartTime, r.EndTime,
		r.Description, r.Status, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "idx_reservations_active_unit") {
			return ErrUnitLimit
		}
		return fmt.Errorf("insert reservation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert reservation id: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

// UpdateReservationStatusIf transitions a reservation's status only if it
// still holds the expected source status. Returns ErrStaleStatus when the
// guard fails and ErrNotFound when the row does not exist.
func (db *DB) UpdateReservationStatusIf(
	ctx context.Context,
	id int64,
	from, to models.ReservationStatus,
	adminComment string,
) error {
	now := time.Now().UTC()

	set := `status = ?, updated_at = ?`
	args := []any{to, now}
	if adminComment != "" {
		set += `, admin_comment = ?`
		args = append(args, adminComment)
	}
	switch to {
	case models.StatusApproved:
		set += `, approved_at = ?`
		args = append(args, now)
	case models.StatusCompleted:
		set += `, completed_at = ?`
		args = append(args, now)
	}
	args = append(args, id, from)

	res, err := db.ExecContext(ctx,
		`UPDATE reservations SET `+set+` WHERE id = ? AND status = ?`, args...)
	if err != nil {
		return fmt.Errorf("update reservation %d status: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM reservations WHERE id = ?", id).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrStaleStatus
	}
	return nil
}

// ReservationFilter narrows ListReservations results.
type ReservationFilter struct {
	Status   models.ReservationStatus
	UserID   int64
	UnitID   string
	DateFrom time.Time
	DateTo   time.Time
	Offset   int
	Limit    int
}

// ListReservations returns reservations matching the filter, newest
// first, plus the total match count for pagination.
func (db *DB) ListReservations(ctx context.Context, f ReservationFilter) ([]models.Reservation, int, error) {
	where := " WHERE 1=1"
	var args []any
	if f.Status != "" {
		where += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.UserID > 0 {
		where += " AND user_id = ?"
		args = append(args, f.UserID)
	}
	if f.UnitID != "" {
		where += " AND unit_id = ?"
		args = append(args, f.UnitID)
	}
	if !f.DateFrom.IsZero() {
		where += " AND start_time >= ?"
		args = append(args, f.DateFrom)
	}
	if !f.DateTo.IsZero() {
		where += " AND start_time < ?"
		args = append(args, f.DateTo)
	}

	var total int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reservations"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations` + where +
		` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	list, err := db.queryReservations(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ElapsedApproved returns approved reservations whose window has passed.
func (db *DB) ElapsedApproved(ctx context.Context, before time.Time) ([]models.Reservation, error) {
	return db.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		WHERE status = 'approved' AND end_time <= ?
		ORDER BY end_time`, before)
}

// DeleteOldReservations removes terminal reservations older than the
// retention window. Used by the audit cleanup after export.
func (db *DB) DeleteOldReservations(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := db.ExecContext(ctx, `
		DELETE FROM reservations
		WHERE status IN ('rejected', 'completed', 'cancelled') AND updated_at < ?`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete old reservations: %w", err)
	}
	return res.RowsAffected()
}

func (db *DB) queryReservations(ctx context.Context, query string, args ...any) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	var list []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		list = append(list, *r)
	}
	return list, rows.Err()
}
