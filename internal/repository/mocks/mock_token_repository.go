package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"sunnyapi/internal/model"
	"sunnyapi/internal/repository"
)

type MockTokenRepository struct {
	mock.Mock
}

var _ repository.TokenRepository = (*MockTokenRepository)(nil)

func (m *MockTokenRepository) Create(ctx context.Context, t *model.AuthToken) error {
	return m.Called(ctx, t).Error(0)
}

func (m *MockTokenRepository) Consume(ctx context.Context, hash string, purpose model.TokenPurpose, now time.Time) (*model.AuthToken, error) {
	args := m.Called(ctx, hash, purpose, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuthToken), args.Error(1)
}

func (m *MockTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}
