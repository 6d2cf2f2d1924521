package database

import (
	"context"
	"database/sql"
	"time"

	"aptdesk/shared/access"
)

// IsUnitBlocked checks if a unit is on the blocklist.
func (db *DB) IsUnitBlocked(ctx context.Context, unitID string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM blocked_units WHERE unit_id = ?", unitID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetBlockedUnit returns blocklist details for a unit, or nil when the
// unit is not blocked.
func (db *DB) GetBlockedUnit(ctx context.Context, unitID string) (*access.BlockedUnit, error) {
	var bu access.BlockedUnit
	var reason sql.NullString
	err := db.QueryRowContext(ctx,
		"SELECT unit_id, blocked_at, reason, blocked_by FROM blocked_units WHERE unit_id = ?",
		unitID,
	).Scan(&bu.UnitID, &bu.BlockedAt, &reason, &bu.BlockedBy)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	bu.Reason = reason.String
	return &bu, nil
}

// BlockUnit adds a unit to the blocklist.
func (db *DB) BlockUnit(ctx context.Context, unitID, reason string, blockedBy int64) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO blocked_units (unit_id, blocked_at, reason, blocked_by)
		VALUES (?, ?, ?, ?)`,
		unitID, time.Now().UTC(), reason, blockedBy,
	)
	return err
}

// UnblockUnit removes a unit from the blocklist.
func (db *DB) UnblockUnit(ctx context.Context, unitID string) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM blocked_units WHERE unit_id = ?", unitID)
	return err
}

// ListBlockedUnits returns all blocked units.
func (db *DB) ListBlockedUnits(ctx context.Context) ([]access.BlockedUnit, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT unit_id, blocked_at, reason, blocked_by FROM blocked_units ORDER BY blocked_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []access.BlockedUnit
	for rows.Next() {
		var bu access.BlockedUnit
		var reason sql.NullString
		if err := rows.Scan(&bu.UnitID, &bu.BlockedAt, &reason, &bu.BlockedBy); err != nil {
			return nil, err
		}
		bu.Reason = reason.String
		units = append(units, bu)
	}
	return units, rows.Err()
}

// IsAdmin checks the admin flag on a user account.
func (db *DB) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var isAdmin bool
	err := db.QueryRowContext(ctx,
		"SELECT is_admin FROM users WHERE id = ?", userID).Scan(&isAdmin)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return isAdmin, nil
}
