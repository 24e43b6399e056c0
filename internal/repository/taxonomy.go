package repository

import (
	"context"

	"sunnyapi/internal/model"
)

// TaxonomyRepository persists the category and type trees.
type TaxonomyRepository interface {
	List(ctx context.Context, kind model.TaxonomyKind) ([]model.Taxonomy, error)
	FindByID(ctx context.Context, kind model.TaxonomyKind, id string) (*model.Taxonomy, error)
	// Create inserts a node. A taken slug yields ErrDuplicate.
	Create(ctx context.Context, t *model.Taxonomy) (*model.Taxonomy, error)
	// Delete removes a node and, by cascade, its subtree.
	Delete(ctx context.Context, kind model.TaxonomyKind, id string) error
}
