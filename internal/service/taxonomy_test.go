package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sunnyapi/internal/model"
	"sunnyapi/internal/profanity"
	"sunnyapi/internal/repository"
	repoMocks "sunnyapi/internal/repository/mocks"
)

type fakeTaxonomyCache struct {
	nodes       map[model.TaxonomyKind][]model.Taxonomy
	invalidated []model.TaxonomyKind
}

func (c *fakeTaxonomyCache) Get(_ context.Context, kind model.TaxonomyKind) ([]model.Taxonomy, error) {
	return c.nodes[kind], nil
}

func (c *fakeTaxonomyCache) Set(_ context.Context, kind model.TaxonomyKind, nodes []model.Taxonomy) error {
	c.nodes[kind] = nodes
	return nil
}

func (c *fakeTaxonomyCache) Invalidate(_ context.Context, kind model.TaxonomyKind) error {
	delete(c.nodes, kind)
	c.invalidated = append(c.invalidated, kind)
	return nil
}

func TestTaxonomyService_TreeReadsThroughCache(t *testing.T) {
	ctx := context.Background()
	repo := new(repoMocks.MockTaxonomyRepository)
	cache := &fakeTaxonomyCache{nodes: map[model.TaxonomyKind][]model.Taxonomy{}}
	svc := NewTaxonomyService(repo, cache, profanity.New(), testLog)

	repo.On("List", ctx, model.TaxonomyCategory).Return([]model.Taxonomy{
		{ID: "home", Name: "Дом"},
		{ID: "repair", ParentID: sptr("home"), Name: "Ремонт"},
	}, nil).Once()

	tree, err := svc.Tree(ctx, model.TaxonomyCategory)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, "repair", tree[0].Children[0].ID)

	_, err = svc.Tree(ctx, model.TaxonomyCategory)
	require.NoError(t, err)
	repo.AssertExpectations(t)

	_, err = svc.Tree(ctx, model.TaxonomyKind("colour"))
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestTaxonomyService_Create(t *testing.T) {
	ctx := context.Background()
	staff := Actor{UserID: "mod", IsStaff: true}

	tests := []struct {
		name    string
		actor   Actor
		in      TaxonomyInput
		setup   func(repo *repoMocks.MockTaxonomyRepository)
		wantErr error
		field   string
	}{
		{
			name:  "happy path",
			actor: staff,
			in:    TaxonomyInput{Kind: model.TaxonomyType, ParentID: sptr("root"), Name: "Мебель", Slug: " Furniture "},
			setup: func(repo *repoMocks.MockTaxonomyRepository) {
				repo.On("FindByID", ctx, model.TaxonomyType, "root").Return(&model.Taxonomy{ID: "root"}, nil)
				repo.On("Create", ctx, mock.MatchedBy(func(tx *model.Taxonomy) bool {
					return tx.Slug == "furniture" && *tx.ParentID == "root"
				})).Return(&model.Taxonomy{ID: "t1"}, nil)
			},
		},
		{
			name:    "not staff",
			actor:   Actor{UserID: "u1"},
			in:      TaxonomyInput{Kind: model.TaxonomyType, Name: "Мебель", Slug: "furniture"},
			wantErr: ErrForbidden,
		},
		{
			name:  "missing parent",
			actor: staff,
			in:    TaxonomyInput{Kind: model.TaxonomyType, ParentID: sptr("ghost"), Name: "Мебель", Slug: "furniture"},
			setup: func(repo *repoMocks.MockTaxonomyRepository) {
				repo.On("FindByID", ctx, model.TaxonomyType, "ghost").Return(nil, repository.ErrNotFound)
			},
			field: "parent_id",
		},
		{
			name:  "slug taken",
			actor: staff,
			in:    TaxonomyInput{Kind: model.TaxonomyCategory, Name: "Ремонт", Slug: "repair"},
			setup: func(repo *repoMocks.MockTaxonomyRepository) {
				repo.On("Create", ctx, mock.Anything).Return(nil, repository.ErrDuplicate)
			},
			wantErr: ErrAlreadyExists,
			field:   "slug",
		},
		{
			name:  "missing name",
			actor: staff,
			in:    TaxonomyInput{Kind: model.TaxonomyCategory, Slug: "x"},
			field: "name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(repoMocks.MockTaxonomyRepository)
			cache := &fakeTaxonomyCache{nodes: map[model.TaxonomyKind][]model.Taxonomy{}}
			if tt.setup != nil {
				tt.setup(repo)
			}
			svc := NewTaxonomyService(repo, cache, profanity.New(), testLog)

			_, err := svc.Create(ctx, tt.actor, tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.field != "" {
				var ve *ValidationError
				require.True(t, errors.As(err, &ve))
				assert.Contains(t, ve.Fields, tt.field)
			}
			if tt.wantErr == nil && tt.field == "" {
				require.NoError(t, err)
				assert.Equal(t, []model.TaxonomyKind{tt.in.Kind}, cache.invalidated)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestTaxonomyService_Delete(t *testing.T) {
	ctx := context.Background()
	repo := new(repoMocks.MockTaxonomyRepository)
	cache := &fakeTaxonomyCache{nodes: map[model.TaxonomyKind][]model.Taxonomy{}}
	svc := NewTaxonomyService(repo, cache, nil, testLog)
	repo.On("Delete", ctx, model.TaxonomyCategory, "c1").Return(nil)
	repo.On("Delete", ctx, model.TaxonomyCategory, "ghost").Return(repository.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, Actor{UserID: "mod", IsStaff: true}, model.TaxonomyCategory, "c1"))
	assert.ErrorIs(t, svc.Delete(ctx, Actor{UserID: "mod", IsStaff: true}, model.TaxonomyCategory, "ghost"), ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, Actor{}, model.TaxonomyCategory, "c1"), ErrUnauthorized)
}
