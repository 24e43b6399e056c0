package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"sunnyapi/internal/model"
	"sunnyapi/internal/repository"
)

type MockFavoriteRepository struct {
	mock.Mock
}

var _ repository.FavoriteRepository = (*MockFavoriteRepository)(nil)

func (m *MockFavoriteRepository) Add(ctx context.Context, f *model.Favorite) (*model.Favorite, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Favorite), args.Error(1)
}

func (m *MockFavoriteRepository) Remove(ctx context.Context, userID string, kind model.Kind, targetID string) error {
	return m.Called(ctx, userID, kind, targetID).Error(0)
}

func (m *MockFavoriteRepository) ListByUser(ctx context.Context, userID string, pq repository.PageQuery) (*repository.PageResult[model.Favorite], error) {
	args := m.Called(ctx, userID, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Favorite]), args.Error(1)
}

func (m *MockFavoriteRepository) Exists(ctx context.Context, userID string, kind model.Kind, targetID string) (bool, error) {
	args := m.Called(ctx, userID, kind, targetID)
	return args.Bool(0), args.Error(1)
}
