package repository

import (
	"context"

	"sunnyapi/internal/model"
)

type FavoriteRepository interface {
	// Add stores a favorite. A repeated favorite yields ErrDuplicate.
	Add(ctx context.Context, f *model.Favorite) (*model.Favorite, error)
	// Remove deletes a favorite and returns ErrNotFound when it did not exist.
	Remove(ctx context.Context, userID string, kind model.Kind, targetID string) error
	// ListByUser returns favorites with the listing attached.
	ListByUser(ctx context.Context, userID string, pq PageQuery) (*PageResult[model.Favorite], error)
	Exists(ctx context.Context, userID string, kind model.Kind, targetID string) (bool, error)
}
