package repository

import (
	"context"
	"time"

	"sunnyapi/internal/model"
)

type TokenRepository interface {
	Create(ctx context.Context, t *model.AuthToken) error
	// Consume deletes and returns an unexpired token; expired or unknown tokens yield ErrNotFound.
	Consume(ctx context.Context, hash string, purpose model.TokenPurpose, now time.Time) (*model.AuthToken, error)
	// DeleteExpired removes tokens that expired before now and returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
