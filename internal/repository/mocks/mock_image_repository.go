package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"sunnyapi/internal/model"
	"sunnyapi/internal/repository"
)

type MockImageRepository struct {
	mock.Mock
}

var _ repository.ImageRepository = (*MockImageRepository)(nil)

func (m *MockImageRepository) Create(ctx context.Context, img *model.Image) (*model.Image, error) {
	args := m.Called(ctx, img)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Image), args.Error(1)
}

func (m *MockImageRepository) FindByID(ctx context.Context, id string) (*model.Image, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Image), args.Error(1)
}

func (m *MockImageRepository) ListByListing(ctx context.Context, kind model.Kind, listingID string) ([]model.Image, error) {
	args := m.Called(ctx, kind, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Image), args.Error(1)
}

func (m *MockImageRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
