package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"sunnyapi/internal/model"
	"sunnyapi/internal/service"
)

type MockTaxonomyService struct {
	mock.Mock
}

var _ service.TaxonomyService = (*MockTaxonomyService)(nil)

func (m *MockTaxonomyService) Tree(ctx context.Context, kind model.TaxonomyKind) ([]*model.Taxonomy, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Taxonomy), args.Error(1)
}

func (m *MockTaxonomyService) Create(ctx context.Context, actor service.Actor, in service.TaxonomyInput) (*model.Taxonomy, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Taxonomy), args.Error(1)
}

func (m *MockTaxonomyService) Delete(ctx context.Context, actor service.Actor, kind model.TaxonomyKind, id string) error {
	return m.Called(ctx, actor, kind, id).Error(0)
}

func (m *MockTaxonomyService) ResolveWithAncestors(ctx context.Context, kind model.TaxonomyKind, ids []string) ([]string, error) {
	args := m.Called(ctx, kind, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTaxonomyService) ExpandDescendants(ctx context.Context, kind model.TaxonomyKind, id string) ([]string, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
