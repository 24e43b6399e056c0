package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"sunnyapi/internal/model"
	"sunnyapi/internal/service"
)

type MockListingService struct {
	mock.Mock
}

var _ service.ListingService = (*MockListingService)(nil)

func (m *MockListingService) listing(args mock.Arguments) (*model.Listing, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Listing), args.Error(1)
}

func (m *MockListingService) list(args mock.Arguments) (*service.ListResult[model.Listing], error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListResult[model.Listing]), args.Error(1)
}

func (m *MockListingService) Create(ctx context.Context, actor service.Actor, kind model.Kind, in service.ListingInput) (*model.Listing, error) {
	return m.listing(m.Called(ctx, actor, kind, in))
}

func (m *MockListingService) Get(ctx context.Context, actor service.Actor, kind model.Kind, id string) (*model.Listing, error) {
	return m.listing(m.Called(ctx, actor, kind, id))
}

func (m *MockListingService) List(ctx context.Context, kind model.Kind, q service.ListingQuery, page service.Page) (*service.ListResult[model.Listing], error) {
	return m.list(m.Called(ctx, kind, q, page))
}

func (m *MockListingService) ListMine(ctx context.Context, actor service.Actor, kind model.Kind, page service.Page) (*service.ListResult[model.Listing], error) {
	return m.list(m.Called(ctx, actor, kind, page))
}

func (m *MockListingService) ListModeration(ctx context.Context, actor service.Actor, kind model.Kind, page service.Page) (*service.ListResult[model.Listing], error) {
	return m.list(m.Called(ctx, actor, kind, page))
}

func (m *MockListingService) Update(ctx context.Context, actor service.Actor, kind model.Kind, id string, patch model.ListingPatch) (*model.Listing, error) {
	return m.listing(m.Called(ctx, actor, kind, id, patch))
}

func (m *MockListingService) Delete(ctx context.Context, actor service.Actor, kind model.Kind, id string) error {
	return m.Called(ctx, actor, kind, id).Error(0)
}

func (m *MockListingService) Transition(ctx context.Context, actor service.Actor, kind model.Kind, id string, action model.Action, reason string) (*model.Listing, error) {
	return m.listing(m.Called(ctx, actor, kind, id, action, reason))
}

func (m *MockListingService) AddImage(ctx context.Context, actor service.Actor, kind model.Kind, id string, r io.Reader, contentType string, size int64) (*model.Image, error) {
	args := m.Called(ctx, actor, kind, id, r, contentType, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Image), args.Error(1)
}

func (m *MockListingService) RemoveImage(ctx context.Context, actor service.Actor, kind model.Kind, listingID, imageID string) error {
	return m.Called(ctx, actor, kind, listingID, imageID).Error(0)
}

func (m *MockListingService) Search(ctx context.Context, query string, kinds []model.Kind, page service.Page) (*service.ListResult[model.Listing], error) {
	return m.list(m.Called(ctx, query, kinds, page))
}
