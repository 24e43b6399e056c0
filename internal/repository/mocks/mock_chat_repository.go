package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"sunnyapi/internal/model"
	"sunnyapi/internal/repository"
)

type MockChatRepository struct {
	mock.Mock
}

var _ repository.ChatRepository = (*MockChatRepository)(nil)

func (m *MockChatRepository) FindOrCreate(ctx context.Context, c *model.Chat) (*model.Chat, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Chat), args.Error(1)
}

func (m *MockChatRepository) FindByID(ctx context.Context, id string) (*model.Chat, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Chat), args.Error(1)
}

func (m *MockChatRepository) ListByUser(ctx context.Context, userID string) ([]model.Chat, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Chat), args.Error(1)
}

func (m *MockChatRepository) CreateMessage(ctx context.Context, msg *model.Message) (*model.Message, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockChatRepository) ListMessages(ctx context.Context, chatID string, pq repository.PageQuery) (*repository.PageResult[model.Message], error) {
	args := m.Called(ctx, chatID, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Message]), args.Error(1)
}

func (m *MockChatRepository) MarkRead(ctx context.Context, chatID, readerID string) (int64, error) {
	args := m.Called(ctx, chatID, readerID)
	return args.Get(0).(int64), args.Error(1)
}
