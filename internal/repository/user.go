package repository

import (
	"context"

	"sunnyapi/internal/model"
)

// UserRepository persists marketplace accounts.
type UserRepository interface {
	// Create inserts a user. A taken email yields ErrDuplicate.
	Create(ctx context.Context, u *model.User) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	// FindByEmail matches case-insensitively.
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// Update saves profile fields (name, phone).
	Update(ctx context.Context, u *model.User) (*model.User, error)
	// ListStaff returns active moderators.
	ListStaff(ctx context.Context) ([]model.User, error)
	SetPassword(ctx context.Context, id, hash string) error
	MarkEmailVerified(ctx context.Context, id string) error
}
