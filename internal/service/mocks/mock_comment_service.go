package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"sunnyapi/internal/model"
	"sunnyapi/internal/service"
)

type MockCommentService struct {
	mock.Mock
}

var _ service.CommentService = (*MockCommentService)(nil)

func (m *MockCommentService) comment(args mock.Arguments) (*model.Comment, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Comment), args.Error(1)
}

func (m *MockCommentService) list(args mock.Arguments) (*service.ListResult[model.Comment], error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListResult[model.Comment]), args.Error(1)
}

func (m *MockCommentService) Create(ctx context.Context, actor service.Actor, kind model.Kind, targetID string, in service.CommentInput) (*model.Comment, error) {
	return m.comment(m.Called(ctx, actor, kind, targetID, in))
}

func (m *MockCommentService) ListForTarget(ctx context.Context, actor service.Actor, kind model.Kind, targetID string, page service.Page) (*service.ListResult[model.Comment], error) {
	return m.list(m.Called(ctx, actor, kind, targetID, page))
}

func (m *MockCommentService) ListPending(ctx context.Context, actor service.Actor, page service.Page) (*service.ListResult[model.Comment], error) {
	return m.list(m.Called(ctx, actor, page))
}

func (m *MockCommentService) Approve(ctx context.Context, actor service.Actor, id string) (*model.Comment, error) {
	return m.comment(m.Called(ctx, actor, id))
}

func (m *MockCommentService) Reject(ctx context.Context, actor service.Actor, id string) (*model.Comment, error) {
	return m.comment(m.Called(ctx, actor, id))
}

func (m *MockCommentService) Delete(ctx context.Context, actor service.Actor, id string) error {
	return m.Called(ctx, actor, id).Error(0)
}
