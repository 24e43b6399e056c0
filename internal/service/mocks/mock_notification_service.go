package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"sunnyapi/internal/model"
	"sunnyapi/internal/service"
)

type MockNotificationService struct {
	mock.Mock
}

var _ service.NotificationService = (*MockNotificationService)(nil)

func (m *MockNotificationService) Notify(ctx context.Context, userID string, kind model.NotificationKind, text, link string) (*model.Notification, error) {
	args := m.Called(ctx, userID, kind, text, link)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Notification), args.Error(1)
}

func (m *MockNotificationService) List(ctx context.Context, actor service.Actor, unreadOnly bool, page service.Page) (*service.ListResult[model.Notification], error) {
	args := m.Called(ctx, actor, unreadOnly, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListResult[model.Notification]), args.Error(1)
}

func (m *MockNotificationService) MarkRead(ctx context.Context, actor service.Actor, id string) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *MockNotificationService) MarkAllRead(ctx context.Context, actor service.Actor) (int64, error) {
	args := m.Called(ctx, actor)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) UnreadCount(ctx context.Context, actor service.Actor) (int, error) {
	args := m.Called(ctx, actor)
	return args.Int(0), args.Error(1)
}
