package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sunnyapi/internal/model"
	"sunnyapi/internal/repository"
)

// FavoriteService manages the listings a user saved.
type FavoriteService interface {
	// Add saves a published listing. Saving it twice is a validation error.
	Add(ctx context.Context, actor Actor, kind model.Kind, id string) (*model.Favorite, error)
	Remove(ctx context.Context, actor Actor, kind model.Kind, id string) error
	List(ctx context.Context, actor Actor, page Page) (*ListResult[model.Favorite], error)
}

type favoriteService struct {
	favorites repository.FavoriteRepository
	listings  repository.ListingRepository
	now       func() time.Time
}

func NewFavoriteService(favorites repository.FavoriteRepository, listings repository.ListingRepository) FavoriteService {
	return &favoriteService{favorites: favorites, listings: listings, now: time.Now}
}

func (s *favoriteService) Add(ctx context.Context, actor Actor, kind model.Kind, id string) (*model.Favorite, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	if err := validKind(kind); err != nil {
		return nil, err
	}
	l, err := s.listings.FindByID(ctx, kind, id)
	if err != nil {
		return nil, fromRepo(err, "listing")
	}
	if !l.IsVisible() {
		return nil, fmt.Errorf("listing: %w", ErrNotFound)
	}
	f, err := s.favorites.Add(ctx, &model.Favorite{
		ID:         uuid.New().String(),
		UserID:     actor.UserID,
		TargetKind: kind,
		TargetID:   id,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		if err = fromRepo(err, "favorite"); isAlreadyExists(err) {
			return nil, &ValidationError{Fields: map[string]string{"favorite": "already in favorites"}, cause: ErrAlreadyExists}
		}
		return nil, err
	}
	f.Listing = l
	return f, nil
}

func (s *favoriteService) Remove(ctx context.Context, actor Actor, kind model.Kind, id string) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	if err := validKind(kind); err != nil {
		return err
	}
	return fromRepo(s.favorites.Remove(ctx, actor.UserID, kind, id), "favorite")
}

func (s *favoriteService) List(ctx context.Context, actor Actor, page Page) (*ListResult[model.Favorite], error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	res, err := s.favorites.ListByUser(ctx, actor.UserID, page.query())
	if err != nil {
		return nil, err
	}
	return toList(res), nil
}
