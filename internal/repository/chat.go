package repository

import (
	"context"

	"sunnyapi/internal/model"
)

type ChatRepository interface {
	// FindOrCreate returns the chat of the ordered pair about the same target, creating it when missing.
	FindOrCreate(ctx context.Context, c *model.Chat) (*model.Chat, error)
	FindByID(ctx context.Context, id string) (*model.Chat, error)
	// ListByUser returns chats with the last message and the unread count for userID.
	ListByUser(ctx context.Context, userID string) ([]model.Chat, error)
	CreateMessage(ctx context.Context, m *model.Message) (*model.Message, error)
	// ListMessages returns messages newest first.
	ListMessages(ctx context.Context, chatID string, pq PageQuery) (*PageResult[model.Message], error)
	// MarkRead marks every message not sent by readerID as read.
	MarkRead(ctx context.Context, chatID, readerID string) (int64, error)
}
