package repository

import (
	"context"

	"sunnyapi/internal/model"
)

// CommentFilter selects comments of one target.
type CommentFilter struct {
	Statuses []model.CommentStatus
	// IncludeAuthor also returns comments of this author regardless of status.
	IncludeAuthor string
}

type CommentRepository interface {
	// Create inserts a comment. A second comment by the same author on a target yields ErrDuplicate.
	Create(ctx context.Context, c *model.Comment) (*model.Comment, error)
	FindByID(ctx context.Context, id string) (*model.Comment, error)
	ListByTarget(ctx context.Context, kind model.Kind, targetID string, f CommentFilter, pq PageQuery) (*PageResult[model.Comment], error)
	ListByStatus(ctx context.Context, status model.CommentStatus, pq PageQuery) (*PageResult[model.Comment], error)
	// UpdateStatus moves a comment from one status to another and returns ErrStatusConflict
	// when the comment is no longer in from.
	UpdateStatus(ctx context.Context, id string, from, to model.CommentStatus) error
	Delete(ctx context.Context, id string) error
	ExistsByAuthor(ctx context.Context, kind model.Kind, targetID, authorID string) (bool, error)
}
