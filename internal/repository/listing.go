package repository

import (
	"context"

	"sunnyapi/internal/model"
)

// ListingFilter narrows listing queries. Zero values mean "no filter".
type ListingFilter struct {
	Statuses    []model.Status
	ProviderID  string
	TaxonomyIDs []string
	Query       string
	MinPrice    *float64
	MaxPrice    *float64
	// OrderBy is one of "created_at", "-created_at", "price", "-price", "rating", "-rating".
	OrderBy string
}

// ListingRepository persists services and ads. Both kinds share one schema in separate tables.
type ListingRepository interface {
	// Create inserts the listing together with its taxonomy links.
	Create(ctx context.Context, l *model.Listing) (*model.Listing, error)
	FindByID(ctx context.Context, kind model.Kind, id string) (*model.Listing, error)
	List(ctx context.Context, kind model.Kind, f ListingFilter, pq PageQuery) (*PageResult[model.Listing], error)
	// Update saves content, status and replaces taxonomy links. The write is guarded by the
	// status the caller loaded; ErrStatusConflict means someone changed it in between.
	Update(ctx context.Context, l *model.Listing, from model.Status) (*model.Listing, error)
	// Delete removes the listing and its polymorphic comments, favorites and image rows.
	Delete(ctx context.Context, kind model.Kind, id string) error
	// UpdateStatus persists l.Status in one transaction guarded by the previous status.
	// When clearFavorites is set every favorite of the listing is removed in the same transaction.
	UpdateStatus(ctx context.Context, l *model.Listing, from model.Status, clearFavorites bool) error
	// Search runs full-text search over published listings of the given kinds.
	Search(ctx context.Context, kinds []model.Kind, query string, pq PageQuery) (*PageResult[model.Listing], error)
	// RefreshRating recomputes rating and comments_count from approved comments.
	RefreshRating(ctx context.Context, kind model.Kind, id string) error
}
