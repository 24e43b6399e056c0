package postgres

import (
	"context"
	"database/sql"
	"time"

	"sunnyapi/internal/model"
	"sunnyapi/internal/repository"
)

type TokenPostgres struct {
	db *sql.DB
}

func NewTokenPostgres(db *sql.DB) *TokenPostgres {
	return &TokenPostgres{db: db}
}

var _ repository.TokenRepository = (*TokenPostgres)(nil)

func (r *TokenPostgres) Create(ctx context.Context, t *model.AuthToken) error {
	const q = `
		INSERT INTO auth_tokens (hash, user_id, purpose, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, q, t.Hash, t.UserID, string(t.Purpose), t.ExpiresAt, t.CreatedAt)
	return mapError(err)
}

func (r *TokenPostgres) Consume(ctx context.Context, hash string, purpose model.TokenPurpose, now time.Time) (*model.AuthToken, error) {
	const q = `
		DELETE FROM auth_tokens
		WHERE hash = $1 AND purpose = $2 AND expires_at > $3
		RETURNING hash, user_id, purpose, expires_at, created_at`
	var (
		t       model.AuthToken
		purpStr string
	)
	err := r.db.QueryRowContext(ctx, q, hash, string(purpose), now).
		Scan(&t.Hash, &t.UserID, &purpStr, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	t.Purpose = model.TokenPurpose(purpStr)
	return &t, nil
}

func (r *TokenPostgres) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
