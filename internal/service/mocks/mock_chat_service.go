package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"sunnyapi/internal/model"
	"sunnyapi/internal/service"
)

type MockChatService struct {
	mock.Mock
}

var _ service.ChatService = (*MockChatService)(nil)

func (m *MockChatService) Start(ctx context.Context, actor service.Actor, in service.StartChatInput) (*model.Chat, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Chat), args.Error(1)
}

func (m *MockChatService) List(ctx context.Context, actor service.Actor) ([]model.Chat, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Chat), args.Error(1)
}

func (m *MockChatService) Get(ctx context.Context, actor service.Actor, chatID string) (*model.Chat, error) {
	args := m.Called(ctx, actor, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Chat), args.Error(1)
}

func (m *MockChatService) Messages(ctx context.Context, actor service.Actor, chatID string, page service.Page) (*service.ListResult[model.Message], error) {
	args := m.Called(ctx, actor, chatID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListResult[model.Message]), args.Error(1)
}

func (m *MockChatService) SendMessage(ctx context.Context, actor service.Actor, chatID, text string) (*model.Message, error) {
	args := m.Called(ctx, actor, chatID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}
