package repository

import (
	"context"

	"sunnyapi/internal/model"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) (*model.Notification, error)
	ListByUser(ctx context.Context, userID string, unreadOnly bool, pq PageQuery) (*PageResult[model.Notification], error)
	// MarkRead returns ErrNotFound when the notification does not belong to userID.
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}
