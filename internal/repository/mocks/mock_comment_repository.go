package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"sunnyapi/internal/model"
	"sunnyapi/internal/repository"
)

type MockCommentRepository struct {
	mock.Mock
}

var _ repository.CommentRepository = (*MockCommentRepository)(nil)

func (m *MockCommentRepository) Create(ctx context.Context, c *model.Comment) (*model.Comment, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Comment), args.Error(1)
}

func (m *MockCommentRepository) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Comment), args.Error(1)
}

func (m *MockCommentRepository) ListByTarget(ctx context.Context, kind model.Kind, targetID string, f repository.CommentFilter, pq repository.PageQuery) (*repository.PageResult[model.Comment], error) {
	args := m.Called(ctx, kind, targetID, f, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Comment]), args.Error(1)
}

func (m *MockCommentRepository) ListByStatus(ctx context.Context, status model.CommentStatus, pq repository.PageQuery) (*repository.PageResult[model.Comment], error) {
	args := m.Called(ctx, status, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Comment]), args.Error(1)
}

func (m *MockCommentRepository) UpdateStatus(ctx context.Context, id string, from, to model.CommentStatus) error {
	return m.Called(ctx, id, from, to).Error(0)
}

func (m *MockCommentRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCommentRepository) ExistsByAuthor(ctx context.Context, kind model.Kind, targetID, authorID string) (bool, error) {
	args := m.Called(ctx, kind, targetID, authorID)
	return args.Bool(0), args.Error(1)
}
