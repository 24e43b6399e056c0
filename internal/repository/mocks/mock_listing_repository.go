package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"sunnyapi/internal/model"
	"sunnyapi/internal/repository"
)

type MockListingRepository struct {
	mock.Mock
}

var _ repository.ListingRepository = (*MockListingRepository)(nil)

func (m *MockListingRepository) Create(ctx context.Context, l *model.Listing) (*model.Listing, error) {
	args := m.Called(ctx, l)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Listing), args.Error(1)
}

func (m *MockListingRepository) FindByID(ctx context.Context, kind model.Kind, id string) (*model.Listing, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Listing), args.Error(1)
}

func (m *MockListingRepository) List(ctx context.Context, kind model.Kind, f repository.ListingFilter, pq repository.PageQuery) (*repository.PageResult[model.Listing], error) {
	args := m.Called(ctx, kind, f, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Listing]), args.Error(1)
}

func (m *MockListingRepository) Update(ctx context.Context, l *model.Listing, from model.Status) (*model.Listing, error) {
	args := m.Called(ctx, l, from)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Listing), args.Error(1)
}

func (m *MockListingRepository) Delete(ctx context.Context, kind model.Kind, id string) error {
	return m.Called(ctx, kind, id).Error(0)
}

func (m *MockListingRepository) UpdateStatus(ctx context.Context, l *model.Listing, from model.Status, clearFavorites bool) error {
	return m.Called(ctx, l, from, clearFavorites).Error(0)
}

func (m *MockListingRepository) Search(ctx context.Context, kinds []model.Kind, query string, pq repository.PageQuery) (*repository.PageResult[model.Listing], error) {
	args := m.Called(ctx, kinds, query, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Listing]), args.Error(1)
}

func (m *MockListingRepository) RefreshRating(ctx context.Context, kind model.Kind, id string) error {
	return m.Called(ctx, kind, id).Error(0)
}
