package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"sunnyapi/internal/model"
	"sunnyapi/internal/repository"
)

type MockTaxonomyRepository struct {
	mock.Mock
}

var _ repository.TaxonomyRepository = (*MockTaxonomyRepository)(nil)

func (m *MockTaxonomyRepository) List(ctx context.Context, kind model.TaxonomyKind) ([]model.Taxonomy, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Taxonomy), args.Error(1)
}

func (m *MockTaxonomyRepository) FindByID(ctx context.Context, kind model.TaxonomyKind, id string) (*model.Taxonomy, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Taxonomy), args.Error(1)
}

func (m *MockTaxonomyRepository) Create(ctx context.Context, t *model.Taxonomy) (*model.Taxonomy, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Taxonomy), args.Error(1)
}

func (m *MockTaxonomyRepository) Delete(ctx context.Context, kind model.TaxonomyKind, id string) error {
	return m.Called(ctx, kind, id).Error(0)
}
