package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"sunnyapi/internal/model"
	"sunnyapi/internal/service"
)

type MockFavoriteService struct {
	mock.Mock
}

var _ service.FavoriteService = (*MockFavoriteService)(nil)

func (m *MockFavoriteService) Add(ctx context.Context, actor service.Actor, kind model.Kind, id string) (*model.Favorite, error) {
	args := m.Called(ctx, actor, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Favorite), args.Error(1)
}

func (m *MockFavoriteService) Remove(ctx context.Context, actor service.Actor, kind model.Kind, id string) error {
	return m.Called(ctx, actor, kind, id).Error(0)
}

func (m *MockFavoriteService) List(ctx context.Context, actor service.Actor, page service.Page) (*service.ListResult[model.Favorite], error) {
	args := m.Called(ctx, actor, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListResult[model.Favorite]), args.Error(1)
}
