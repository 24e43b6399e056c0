package repository

import (
	"context"

	"sunnyapi/internal/model"
)

type ImageRepository interface {
	Create(ctx context.Context, img *model.Image) (*model.Image, error)
	FindByID(ctx context.Context, id string) (*model.Image, error)
	ListByListing(ctx context.Context, kind model.Kind, listingID string) ([]model.Image, error)
	Delete(ctx context.Context, id string) error
}
