package postgres

import (
	"context"
	"database/sql"

	"sunnyapi/internal/model"
	"sunnyapi/internal/repository"
)

const notificationColumns = `id, user_id, kind, text, link, read_at, created_at`

type NotificationPostgres struct {
	db *sql.DB
}

func NewNotificationPostgres(db *sql.DB) *NotificationPostgres {
	return &NotificationPostgres{db: db}
}

var _ repository.NotificationRepository = (*NotificationPostgres)(nil)

func scanNotification(s scanner) (*model.Notification, error) {
	var (
		n    model.Notification
		kind string
		read sql.NullTime
	)
	if err := s.Scan(&n.ID, &n.UserID, &kind, &n.Text, &n.Link, &read, &n.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	n.Kind = model.NotificationKind(kind)
	if read.Valid {
		t := read.Time
		n.ReadAt = &t
	}
	return &n, nil
}

func (r *NotificationPostgres) Create(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	const q = `
		INSERT INTO notifications (id, user_id, kind, text, link, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + notificationColumns
	row := r.db.QueryRowContext(ctx, q, n.ID, n.UserID, string(n.Kind), n.Text, n.Link, n.CreatedAt)
	return scanNotification(row)
}

func (r *NotificationPostgres) ListByUser(ctx context.Context, userID string, unreadOnly bool, pq repository.PageQuery) (*repository.PageResult[model.Notification], error) {
	filter := ` WHERE user_id = $1`
	if unreadOnly {
		filter += ` AND read_at IS NULL`
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`+filter, userID).Scan(&total); err != nil {
		return nil, err
	}

	q := `SELECT ` + notificationColumns + ` FROM notifications` + filter +
		` ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, q, userID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Notification]{Items: items, Total: total}, nil
}

func (r *NotificationPostgres) MarkRead(ctx context.Context, id, userID string) error {
	const q = `UPDATE notifications SET read_at = coalesce(read_at, now()) WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, q, id, userID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *NotificationPostgres) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	const q = `UPDATE notifications SET read_at = now() WHERE user_id = $1 AND read_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *NotificationPostgres) CountUnread(ctx context.Context, userID string) (int, error) {
	const q = `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`
	var n int
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&n)
	return n, err
}
