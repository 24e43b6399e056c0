package postgres

import (
	"context"
	"database/sql"

	"sunnyapi/internal/model"
	"sunnyapi/internal/repository"
)

type ChatPostgres struct {
	db *sql.DB
}

func NewChatPostgres(db *sql.DB) *ChatPostgres {
	return &ChatPostgres{db: db}
}

var _ repository.ChatRepository = (*ChatPostgres)(nil)

func scanChat(s scanner, extra ...any) (*model.Chat, error) {
	var (
		c      model.Chat
		kind   sql.NullString
		target sql.NullString
	)
	dest := append([]any{&c.ID, &c.FirstUserID, &c.SecondUserID, &kind, &target, &c.CreatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, mapError(err)
	}
	if kind.Valid {
		k := model.Kind(kind.String)
		c.TargetKind = &k
	}
	if target.Valid {
		t := target.String
		c.TargetID = &t
	}
	return &c, nil
}

func nullableKind(k *model.Kind) any {
	if k == nil {
		return nil
	}
	return string(*k)
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func (r *ChatPostgres) FindOrCreate(ctx context.Context, c *model.Chat) (*model.Chat, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	const q = `
		INSERT INTO chats (id, first_user_id, second_user_id, target_kind, target_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (first_user_id, second_user_id, coalesce(target_kind, ''), coalesce(target_id, '00000000-0000-0000-0000-000000000000'))
		DO UPDATE SET first_user_id = EXCLUDED.first_user_id
		RETURNING id, first_user_id, second_user_id, target_kind, target_id, created_at`
	row := r.db.QueryRowContext(ctx, q,
		c.ID,
		c.FirstUserID,
		c.SecondUserID,
		nullableKind(c.TargetKind),
		nullableString(c.TargetID),
		c.CreatedAt,
	)
	return scanChat(row)
}

func (r *ChatPostgres) FindByID(ctx context.Context, id string) (*model.Chat, error) {
	const q = `SELECT id, first_user_id, second_user_id, target_kind, target_id, created_at FROM chats WHERE id = $1`
	return scanChat(r.db.QueryRowContext(ctx, q, id))
}

func (r *ChatPostgres) ListByUser(ctx context.Context, userID string) ([]model.Chat, error) {
	const q = `
		SELECT c.id, c.first_user_id, c.second_user_id, c.target_kind, c.target_id, c.created_at,
			m.id, m.sender_id, m.text, m.read_at, m.created_at,
			(SELECT COUNT(*) FROM messages u WHERE u.chat_id = c.id AND u.sender_id <> $1 AND u.read_at IS NULL)
		FROM chats c
		LEFT JOIN LATERAL (
			SELECT id, sender_id, text, read_at, created_at FROM messages
			WHERE chat_id = c.id ORDER BY created_at DESC, id DESC LIMIT 1
		) m ON true
		WHERE c.first_user_id = $1 OR c.second_user_id = $1
		ORDER BY coalesce(m.created_at, c.created_at) DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Chat, 0)
	for rows.Next() {
		var (
			msgID, sender, text sql.NullString
			read, created       sql.NullTime
			unread              int
		)
		c, err := scanChat(rows, &msgID, &sender, &text, &read, &created, &unread)
		if err != nil {
			return nil, err
		}
		c.UnreadCount = unread
		if msgID.Valid {
			m := &model.Message{
				ID:        msgID.String,
				ChatID:    c.ID,
				SenderID:  sender.String,
				Text:      text.String,
				CreatedAt: created.Time,
			}
			if read.Valid {
				t := read.Time
				m.ReadAt = &t
			}
			c.LastMessage = m
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanMessage(s scanner) (*model.Message, error) {
	var (
		m    model.Message
		read sql.NullTime
	)
	if err := s.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Text, &read, &m.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	if read.Valid {
		t := read.Time
		m.ReadAt = &t
	}
	return &m, nil
}

func (r *ChatPostgres) CreateMessage(ctx context.Context, m *model.Message) (*model.Message, error) {
	const q = `
		INSERT INTO messages (id, chat_id, sender_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, chat_id, sender_id, text, read_at, created_at`
	return scanMessage(r.db.QueryRowContext(ctx, q, m.ID, m.ChatID, m.SenderID, m.Text, m.CreatedAt))
}

func (r *ChatPostgres) ListMessages(ctx context.Context, chatID string, pq repository.PageQuery) (*repository.PageResult[model.Message], error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE chat_id = $1`, chatID).Scan(&total); err != nil {
		return nil, err
	}

	const q = `
		SELECT id, chat_id, sender_id, text, read_at, created_at FROM messages
		WHERE chat_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, q, chatID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Message]{Items: items, Total: total}, nil
}

func (r *ChatPostgres) MarkRead(ctx context.Context, chatID, readerID string) (int64, error) {
	const q = `UPDATE messages SET read_at = now() WHERE chat_id = $1 AND sender_id <> $2 AND read_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, chatID, readerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
