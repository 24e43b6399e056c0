package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sunnyapi/internal/model"
	"sunnyapi/internal/profanity"
	"sunnyapi/internal/repository"
)

// TaxonomyInput creates a category or type node.
type TaxonomyInput struct {
	Kind     model.TaxonomyKind
	ParentID *string
	Name     string
	Slug     string
}

// TaxonomyService manages the category and type trees.
type TaxonomyService interface {
	Tree(ctx context.Context, kind model.TaxonomyKind) ([]*model.Taxonomy, error)
	Create(ctx context.Context, actor Actor, in TaxonomyInput) (*model.Taxonomy, error)
	Delete(ctx context.Context, actor Actor, kind model.TaxonomyKind, id string) error
	// ResolveWithAncestors validates ids and returns them together with every ancestor, deduplicated.
	ResolveWithAncestors(ctx context.Context, kind model.TaxonomyKind, ids []string) ([]string, error)
	// ExpandDescendants returns id and every node below it. Unknown ids yield only themselves.
	ExpandDescendants(ctx context.Context, kind model.TaxonomyKind, id string) ([]string, error)
}

type taxonomyService struct {
	repo   repository.TaxonomyRepository
	cache  TaxonomyCache
	filter *profanity.Filter
	log    *zap.Logger
	now    func() time.Time
}

func NewTaxonomyService(repo repository.TaxonomyRepository, cache TaxonomyCache, filter *profanity.Filter, log *zap.Logger) TaxonomyService {
	return &taxonomyService{repo: repo, cache: cache, filter: filter, log: log.Named("taxonomy"), now: time.Now}
}

// nodes returns the flat tree, reading through the cache.
func (s *taxonomyService) nodes(ctx context.Context, kind model.TaxonomyKind) ([]model.Taxonomy, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, kind)
		if err != nil {
			s.log.Warn("taxonomy_cache_get_failed", zap.String("kind", string(kind)), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}
	nodes, err := s.repo.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, kind, nodes); err != nil {
			s.log.Warn("taxonomy_cache_set_failed", zap.String("kind", string(kind)), zap.Error(err))
		}
	}
	return nodes, nil
}

func (s *taxonomyService) invalidate(ctx context.Context, kind model.TaxonomyKind) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, kind); err != nil {
		s.log.Warn("taxonomy_cache_invalidate_failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func parentIndex(nodes []model.Taxonomy) map[string]*string {
	parents := make(map[string]*string, len(nodes))
	for _, n := range nodes {
		parents[n.ID] = n.ParentID
	}
	return parents
}

func (s *taxonomyService) Tree(ctx context.Context, kind model.TaxonomyKind) ([]*model.Taxonomy, error) {
	if !kind.Valid() {
		return nil, invalid("kind", "unknown taxonomy")
	}
	nodes, err := s.nodes(ctx, kind)
	if err != nil {
		return nil, err
	}
	return model.BuildTree(nodes), nil
}

func (s *taxonomyService) Create(ctx context.Context, actor Actor, in TaxonomyInput) (*model.Taxonomy, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	slug := strings.ToLower(strings.TrimSpace(in.Slug))
	fields := map[string]string{}
	if !in.Kind.Valid() {
		fields["kind"] = "unknown taxonomy"
	}
	if name == "" {
		fields["name"] = "is required"
	}
	if slug == "" {
		fields["slug"] = "is required"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	if err := checkProfanity(s.filter, map[string]string{"name": name}); err != nil {
		return nil, err
	}
	if in.ParentID != nil && *in.ParentID != "" {
		if _, err := s.repo.FindByID(ctx, in.Kind, *in.ParentID); err != nil {
			if err = fromRepo(err, "parent"); isNotFound(err) {
				return nil, invalid("parent_id", "parent not found")
			}
			return nil, err
		}
	} else {
		in.ParentID = nil
	}

	t, err := s.repo.Create(ctx, &model.Taxonomy{
		ID:        uuid.New().String(),
		Kind:      in.Kind,
		ParentID:  in.ParentID,
		Name:      name,
		Slug:      slug,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		if err = fromRepo(err, "taxonomy"); isAlreadyExists(err) {
			return nil, &ValidationError{Fields: map[string]string{"slug": "already taken"}, cause: ErrAlreadyExists}
		}
		return nil, err
	}
	s.invalidate(ctx, in.Kind)
	return t, nil
}

func (s *taxonomyService) Delete(ctx context.Context, actor Actor, kind model.TaxonomyKind, id string) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, kind, id); err != nil {
		return fromRepo(err, "taxonomy")
	}
	s.invalidate(ctx, kind)
	return nil
}

func (s *taxonomyService) ResolveWithAncestors(ctx context.Context, kind model.TaxonomyKind, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	nodes, err := s.nodes(ctx, kind)
	if err != nil {
		return nil, err
	}
	parents := parentIndex(nodes)
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	var unknown []string
	for _, id := range ids {
		if _, ok := parents[id]; !ok {
			unknown = append(unknown, id)
			continue
		}
		add(id)
		for _, a := range model.Ancestors(id, parents) {
			add(a)
		}
	}
	if len(unknown) > 0 {
		return nil, invalid("taxonomy_ids", fmt.Sprintf("unknown %s: %s", kind, strings.Join(unknown, ", ")))
	}
	return out, nil
}

func (s *taxonomyService) ExpandDescendants(ctx context.Context, kind model.TaxonomyKind, id string) ([]string, error) {
	nodes, err := s.nodes(ctx, kind)
	if err != nil {
		return nil, err
	}
	return model.Descendants(id, parentIndex(nodes)), nil
}
