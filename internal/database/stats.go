package database

import (
	"context"
	"fmt"
	"time"

	"aptdesk/internal/models"
)

// DashboardStats is the aggregate snapshot shown on the admin dashboard.
type DashboardStats struct {
	TotalReservations int            `json:"total_reservations"`
	ByStatus          map[string]int `json:"by_status"`
	TodayReservations int            `json:"today_reservations"`
	TotalUsers        int            `json:"total_users"`
	ActiveNotices     int            `json:"active_notices"`
}

// MonthlyCount is a per-month reservation count.
type MonthlyCount struct {
	Month string `json:"month"` // YYYY-MM
	Count int    `json:"count"`
}

// ResourceCount is a per-resource-type reservation count.
type ResourceCount struct {
	ResourceType models.ResourceType `json:"resource_type"`
	Count        int                 `json:"count"`
}

// GetDashboardStats collects the dashboard aggregates.
func (db *DB) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{ByStatus: make(map[string]int)}

	rows, err := db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM reservations GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
		stats.TotalReservations += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reservations WHERE start_time >= ? AND start_time < ?",
		today, today.Add(24*time.Hour),
	).Scan(&stats.TodayReservations); err != nil {
		return nil, fmt.Errorf("today count: %w", err)
	}

	if stats.TotalUsers, err = db.CountUsers(ctx); err != nil {
		return nil, fmt.Errorf("user count: %w", err)
	}

	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notices WHERE is_active = 1").Scan(&stats.ActiveNotices); err != nil {
		return nil, fmt.Errorf("notice count: %w", err)
	}

	return stats, nil
}

// GetMonthlyStats returns reservation counts for the last n months.
func (db *DB) GetMonthlyStats(ctx context.Context, months int) ([]MonthlyCount, error) {
	if months <= 0 {
		months = 6
	}
	since := time.Now().UTC().AddDate(0, -months, 0)

	rows, err := db.QueryContext(ctx, `
		SELECT strftime('%Y-%m', start_time) AS month, COUNT(*)
		FROM reservations
		WHERE start_time >= ?
		GROUP BY month ORDER BY month`, since)
	if err != nil {
		return nil, fmt.Errorf("monthly stats: %w", err)
	}
	defer rows.Close()

	var out []MonthlyCount
	for rows.Next() {
		var mc MonthlyCount
		if err := rows.Scan(&mc.Month, &mc.Count); err != nil {
			return nil, err
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}

// GetResourceDistribution returns reservation counts grouped by resource
// type.
func (db *DB) GetResourceDistribution(ctx context.Context) ([]ResourceCount, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT resource_type, COUNT(*)
		FROM reservations
		GROUP BY resource_type ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("resource distribution: %w", err)
	}
	defer rows.Close()

	var out []ResourceCount
	for rows.Next() {
		var rc ResourceCount
		if err := rows.Scan(&rc.ResourceType, &rc.Count); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}
