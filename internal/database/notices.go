package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"aptdesk/internal/models"
)

const noticeColumns = `id, title, content, notice_type, is_pinned, is_important,
	is_active, view_count, author_id, created_at, updated_at, published_at`

func scanNotice(row interface{ Scan(...any) error }) (*models.Notice, error) {
	var n models.Notice
	var publishedAt sql.NullTime
	err := row.Scan(
		&n.ID, &n.Title, &n.Content, &n.NoticeType, &n.IsPinned, &n.IsImportant,
		&n.IsActive, &n.ViewCount, &n.AuthorID, &n.CreatedAt, &n.UpdatedAt, &publishedAt,
	)
	if err != nil {
		return nil, err
	}
	if publishedAt.Valid {
		n.PublishedAt = &publishedAt.Time
	}
	return &n, nil
}

// CreateNotice inserts a new notice.
func (db *DB) CreateNotice(ctx context.Context, n *models.Notice) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `
		INSERT INTO notices (
			title, content, notice_type, is_pinned, is_important, is_active,
			author_id, created_at, updated_at, published_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.Title, n.Content, n.NoticeType, n.IsPinned, n.IsImportant, n.IsActive,
		n.AuthorID, now, now, now,
	)
	if err != nil {
		return fmt.Errorf("create notice: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = id
	n.CreatedAt = now
	n.UpdatedAt = now
	n.PublishedAt = &now
	return nil
}

// GetNotice returns a notice by id.
func (db *DB) GetNotice(ctx context.Context, id int64) (*models.Notice, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+noticeColumns+` FROM notices WHERE id = ?`, id)
	n, err := scanNotice(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notice %d: %w", id, err)
	}
	return n, nil
}

// ListNotices returns active notices, pinned first, newest first.
func (db *DB) ListNotices(ctx context.Context, offset, limit int) ([]models.Notice, int, error) {
	var total int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notices WHERE is_active = 1").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notices: %w", err)
	}

	query := `SELECT ` + noticeColumns + ` FROM notices
		WHERE is_active = 1
		ORDER BY is_pinned DESC, created_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list notices: %w", err)
	}
	defer rows.Close()

	var notices []models.Notice
	for rows.Next() {
		n, err := scanNotice(rows)
		if err != nil {
			return nil, 0, err
		}
		notices = append(notices, *n)
	}
	return notices, total, rows.Err()
}

// UpdateNotice updates notice content and flags.
func (db *DB) UpdateNotice(ctx context.Context, n *models.Notice) error {
	_, err := db.ExecContext(ctx, `
		UPDATE notices SET title = ?, content = ?, notice_type = ?,
			is_pinned = ?, is_important = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		n.Title, n.Content, n.NoticeType,
		n.IsPinned, n.IsImportant, n.IsActive, time.Now().UTC(), n.ID,
	)
	if err != nil {
		return fmt.Errorf("update notice %d: %w", n.ID, err)
	}
	return nil
}

// DeleteNotice removes a notice.
func (db *DB) DeleteNotice(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, "DELETE FROM notices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete notice %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementNoticeViews bumps the view counter.
func (db *DB) IncrementNoticeViews(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx,
		"UPDATE notices SET view_count = view_count + 1 WHERE id = ?", id)
	return err
}
