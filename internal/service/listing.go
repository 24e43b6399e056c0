package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sunnyapi/internal/config"
	"sunnyapi/internal/events"
	"sunnyapi/internal/mailer"
	"sunnyapi/internal/metrics"
	"sunnyapi/internal/model"
	"sunnyapi/internal/profanity"
	"sunnyapi/internal/repository"
	"sunnyapi/internal/storage"
)

const (
	maxTitleLen = 200
	// imageURLExpiry outlives the listing cache TTL so cached URLs stay valid.
	imageURLExpiry = 24 * time.Hour
)

var listingOrders = map[string]bool{
	"": true, "created_at": true, "-created_at": true,
	"price": true, "-price": true, "rating": true, "-rating": true,
}

// ListingInput is the content of a new listing.
type ListingInput struct {
	Title       string
	Description string
	Address     string
	Price       *float64
	TaxonomyIDs []string
}

// ListingQuery holds public catalogue filters.
type ListingQuery struct {
	TaxonomyID string
	ProviderID string
	Query      string
	MinPrice   *float64
	MaxPrice   *float64
	OrderBy    string
}

// ListingService implements the catalogue and the moderation lifecycle of services and ads.
type ListingService interface {
	Create(ctx context.Context, actor Actor, kind model.Kind, in ListingInput) (*model.Listing, error)
	// Get returns a published listing to anyone, other statuses only to the provider or staff.
	Get(ctx context.Context, actor Actor, kind model.Kind, id string) (*model.Listing, error)
	List(ctx context.Context, kind model.Kind, q ListingQuery, page Page) (*ListResult[model.Listing], error)
	ListMine(ctx context.Context, actor Actor, kind model.Kind, page Page) (*ListResult[model.Listing], error)
	ListModeration(ctx context.Context, actor Actor, kind model.Kind, page Page) (*ListResult[model.Listing], error)
	// Update edits content. Editing a published or hidden listing sends it back to moderation.
	Update(ctx context.Context, actor Actor, kind model.Kind, id string, patch model.ListingPatch) (*model.Listing, error)
	Delete(ctx context.Context, actor Actor, kind model.Kind, id string) error
	Transition(ctx context.Context, actor Actor, kind model.Kind, id string, action model.Action, reason string) (*model.Listing, error)
	// AddImage uploads to object storage, saves the row, and removes the object if the row cannot be saved.
	AddImage(ctx context.Context, actor Actor, kind model.Kind, id string, r io.Reader, contentType string, size int64) (*model.Image, error)
	RemoveImage(ctx context.Context, actor Actor, kind model.Kind, listingID, imageID string) error
	Search(ctx context.Context, query string, kinds []model.Kind, page Page) (*ListResult[model.Listing], error)
}

// ListingDeps groups the collaborators of the listing service.
type ListingDeps struct {
	Listings      repository.ListingRepository
	Images        repository.ImageRepository
	Users         repository.UserRepository
	Taxonomy      TaxonomyService
	Notifications NotificationService
	Store         storage.Storage
	Cache         ListingCache
	Tasks         TaskQueue
	Events        events.Publisher
	Filter        *profanity.Filter
	Metrics       *metrics.Metrics
	Site          config.SiteConfig
	MaxImageBytes int64
	Log           *zap.Logger
}

type listingService struct {
	ListingDeps
	log *zap.Logger
	now func() time.Time
}

func NewListingService(d ListingDeps) ListingService {
	return &listingService{ListingDeps: d, log: d.Log.Named("listings"), now: time.Now}
}

func validKind(kind model.Kind) error {
	if !kind.Valid() {
		return invalid("kind", "unknown listing kind")
	}
	return nil
}

// AdminURL links a listing to its page in the admin site.
func AdminURL(base string, kind model.Kind, id string) string {
	return fmt.Sprintf("%s/%s/%s/change/", base, kind.Plural(), id)
}

func (s *listingService) Create(ctx context.Context, actor Actor, kind model.Kind, in ListingInput) (*model.Listing, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	if err := validKind(kind); err != nil {
		return nil, err
	}
	l := &model.Listing{
		Kind:        kind,
		ProviderID:  actor.UserID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Address:     strings.TrimSpace(in.Address),
		Price:       in.Price,
	}
	if err := s.validateContent(l); err != nil {
		return nil, err
	}
	ids, err := s.Taxonomy.ResolveWithAncestors(ctx, kind.Taxonomy(), in.TaxonomyIDs)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	l.ID = uuid.New().String()
	l.TaxonomyIDs = ids
	l.Status = model.StatusDraft
	l.CreatedAt = now
	l.UpdatedAt = now

	created, err := s.Listings.Create(ctx, l)
	if err != nil {
		return nil, fromRepo(err, "listing")
	}
	s.log.Info("listing_created", zap.String("kind", string(kind)), zap.String("id", created.ID))
	return created, nil
}

// validateContent checks required fields, limits and profanity of the listing text.
func (s *listingService) validateContent(l *model.Listing) error {
	fields := map[string]string{}
	switch {
	case l.Title == "":
		fields["title"] = "is required"
	case utf8.RuneCountInString(l.Title) > maxTitleLen:
		fields["title"] = fmt.Sprintf("must be at most %d characters", maxTitleLen)
	}
	if l.Price != nil && *l.Price < 0 {
		fields["price"] = "must not be negative"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return checkProfanity(s.Filter, map[string]string{
		"title":       l.Title,
		"description": l.Description,
		"address":     l.Address,
	})
}

func (s *listingService) Get(ctx context.Context, actor Actor, kind model.Kind, id string) (*model.Listing, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	cacheable := s.Cache != nil
	var version int64
	if cacheable {
		cached, err := s.Cache.Get(ctx, kind, id)
		if err != nil {
			s.log.Warn("listing_cache_get_failed", zap.String("id", id), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
		if version, err = s.Cache.Version(ctx, kind, id); err != nil {
			s.log.Warn("listing_cache_version_failed", zap.String("id", id), zap.Error(err))
			cacheable = false
		}
	}
	l, err := s.Listings.FindByID(ctx, kind, id)
	if err != nil {
		return nil, fromRepo(err, "listing")
	}
	if !l.IsVisible() && !l.OwnedBy(actor.UserID) && !actor.IsStaff {
		return nil, fmt.Errorf("listing: %w", ErrNotFound)
	}
	if err := s.attachImages(ctx, l); err != nil {
		return nil, err
	}
	if l.IsVisible() && cacheable {
		if err := s.Cache.Set(ctx, l, version); err != nil {
			s.log.Warn("listing_cache_set_failed", zap.String("id", id), zap.Error(err))
		}
	}
	return l, nil
}

func (s *listingService) attachImages(ctx context.Context, l *model.Listing) error {
	imgs, err := s.Images.ListByListing(ctx, l.Kind, l.ID)
	if err != nil {
		return fmt.Errorf("list images: %w", err)
	}
	for i := range imgs {
		s.presign(ctx, &imgs[i])
	}
	l.Images = imgs
	return nil
}

func (s *listingService) presign(ctx context.Context, img *model.Image) {
	url, err := s.Store.PresignGet(ctx, img.ObjectKey, imageURLExpiry)
	if err != nil {
		s.log.Warn("image_presign_failed", zap.String("image_id", img.ID), zap.Error(err))
		return
	}
	img.URL = url
}

func (s *listingService) List(ctx context.Context, kind model.Kind, q ListingQuery, page Page) (*ListResult[model.Listing], error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	if !listingOrders[q.OrderBy] {
		return nil, invalid("ordering", "unsupported ordering")
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return nil, invalid("price", "min_price must not exceed max_price")
	}
	f := repository.ListingFilter{
		Statuses:   []model.Status{model.StatusPublished},
		ProviderID: q.ProviderID,
		Query:      strings.TrimSpace(q.Query),
		MinPrice:   q.MinPrice,
		MaxPrice:   q.MaxPrice,
		OrderBy:    q.OrderBy,
	}
	if q.TaxonomyID != "" {
		ids, err := s.Taxonomy.ExpandDescendants(ctx, kind.Taxonomy(), q.TaxonomyID)
		if err != nil {
			return nil, err
		}
		f.TaxonomyIDs = ids
	}
	res, err := s.Listings.List(ctx, kind, f, page.query())
	if err != nil {
		return nil, err
	}
	return toList(res), nil
}

func (s *listingService) ListMine(ctx context.Context, actor Actor, kind model.Kind, page Page) (*ListResult[model.Listing], error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	if err := validKind(kind); err != nil {
		return nil, err
	}
	res, err := s.Listings.List(ctx, kind, repository.ListingFilter{ProviderID: actor.UserID}, page.query())
	if err != nil {
		return nil, err
	}
	return toList(res), nil
}

func (s *listingService) ListModeration(ctx context.Context, actor Actor, kind model.Kind, page Page) (*ListResult[model.Listing], error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := validKind(kind); err != nil {
		return nil, err
	}
	f := repository.ListingFilter{Statuses: []model.Status{model.StatusModeration}, OrderBy: "created_at"}
	res, err := s.Listings.List(ctx, kind, f, page.query())
	if err != nil {
		return nil, err
	}
	return toList(res), nil
}

// owned loads a listing the actor provides. Invisible listings of others read as missing.
func (s *listingService) owned(ctx context.Context, actor Actor, kind model.Kind, id string) (*model.Listing, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	if err := validKind(kind); err != nil {
		return nil, err
	}
	l, err := s.Listings.FindByID(ctx, kind, id)
	if err != nil {
		return nil, fromRepo(err, "listing")
	}
	if !l.OwnedBy(actor.UserID) {
		if !l.IsVisible() && !actor.IsStaff {
			return nil, fmt.Errorf("listing: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("not the provider: %w", ErrForbidden)
	}
	return l, nil
}

func (s *listingService) Update(ctx context.Context, actor Actor, kind model.Kind, id string, patch model.ListingPatch) (*model.Listing, error) {
	l, err := s.owned(ctx, actor, kind, id)
	if err != nil {
		return nil, err
	}
	trim := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		return &v
	}
	patch.Title, patch.Description, patch.Address = trim(patch.Title), trim(patch.Description), trim(patch.Address)
	if patch.TaxonomyIDs != nil {
		ids, err := s.Taxonomy.ResolveWithAncestors(ctx, kind.Taxonomy(), patch.TaxonomyIDs)
		if err != nil {
			return nil, err
		}
		patch.TaxonomyIDs = ids
	}

	from := l.Status
	remoderate := l.ApplyPatch(patch, s.now().UTC())
	if err := s.validateContent(l); err != nil {
		return nil, err
	}
	updated, err := s.Listings.Update(ctx, l, from)
	if err != nil {
		return nil, fromRepo(err, "listing")
	}
	s.invalidate(ctx, kind, id)
	if remoderate {
		s.afterTransition(ctx, actor, updated, model.ActionModerate, from)
	}
	return updated, nil
}

func (s *listingService) Delete(ctx context.Context, actor Actor, kind model.Kind, id string) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	if err := validKind(kind); err != nil {
		return err
	}
	l, err := s.Listings.FindByID(ctx, kind, id)
	if err != nil {
		return fromRepo(err, "listing")
	}
	if !l.OwnedBy(actor.UserID) && !actor.IsStaff {
		if !l.IsVisible() {
			return fmt.Errorf("listing: %w", ErrNotFound)
		}
		return fmt.Errorf("not the provider: %w", ErrForbidden)
	}
	imgs, err := s.Images.ListByListing(ctx, kind, id)
	if err != nil {
		return fmt.Errorf("list images: %w", err)
	}
	if err := s.Listings.Delete(ctx, kind, id); err != nil {
		return fromRepo(err, "listing")
	}
	s.invalidate(ctx, kind, id)

	keys := make([]string, 0, len(imgs))
	for _, img := range imgs {
		keys = append(keys, img.ObjectKey)
	}
	if err := s.Tasks.EnqueueImageCleanup(ctx, keys); err != nil {
		s.log.Error("image_cleanup_not_queued", zap.Strings("keys", keys), zap.Error(err))
	}
	s.log.Info("listing_deleted", zap.String("kind", string(kind)), zap.String("id", id), zap.String("actor", actor.UserID))
	return nil
}

func (s *listingService) Transition(ctx context.Context, actor Actor, kind model.Kind, id string, action model.Action, reason string) (*model.Listing, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	if err := validKind(kind); err != nil {
		return nil, err
	}
	if _, ok := model.ParseAction(string(action)); !ok {
		return nil, invalid("action", "unknown action")
	}
	l, err := s.Listings.FindByID(ctx, kind, id)
	if err != nil {
		return nil, fromRepo(err, "listing")
	}
	if action.StaffOnly() {
		if !actor.IsStaff {
			return nil, fmt.Errorf("%s is for moderators: %w", action, ErrForbidden)
		}
	} else if !l.OwnedBy(actor.UserID) {
		if !l.IsVisible() && !actor.IsStaff {
			return nil, fmt.Errorf("listing: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("not the provider: %w", ErrForbidden)
	}

	from, err := l.Apply(action, reason, s.now().UTC())
	switch {
	case errors.Is(err, model.ErrReasonRequired):
		return nil, &ValidationError{Fields: map[string]string{"reason": "is required"}, cause: err}
	case errors.Is(err, model.ErrInvalidTransition):
		return nil, fmt.Errorf("cannot %s a listing in status %s: %w", action, from, ErrInvalidTransition)
	case err != nil:
		return nil, err
	}
	if err := s.Listings.UpdateStatus(ctx, l, from, action.ClearsFavorites()); err != nil {
		return nil, fromRepo(err, "listing")
	}
	s.invalidate(ctx, kind, id)
	s.Metrics.ListingTransition(string(kind), string(action))
	s.log.Info("listing_transition",
		zap.String("kind", string(kind)),
		zap.String("id", id),
		zap.String("action", string(action)),
		zap.String("from", string(from)),
		zap.String("to", string(l.Status)),
	)
	s.afterTransition(ctx, actor, l, action, from)
	return l, nil
}

// afterTransition publishes the domain event and sends notifications. Failures are logged only.
func (s *listingService) afterTransition(ctx context.Context, actor Actor, l *model.Listing, action model.Action, from model.Status) {
	if s.Events != nil {
		ev := events.ListingStatusChanged{
			Kind:      string(l.Kind),
			ListingID: l.ID,
			Action:    string(action),
			From:      string(from),
			To:        string(l.Status),
			ActorID:   actor.UserID,
		}
		if err := s.Events.Publish(ctx, events.SubjectListingStatusChanged, ev); err != nil {
			s.log.Warn("listing_event_not_published", zap.String("id", l.ID), zap.Error(err))
		}
	}

	link := fmt.Sprintf("/%s/%s", l.Kind.Plural(), l.ID)
	switch action {
	case model.ActionModerate:
		s.notifyStaff(ctx, l)
	case model.ActionApprove:
		s.notify(ctx, l.ProviderID, model.NotifyListingApproved,
			fmt.Sprintf("Объявление «%s» опубликовано", l.Title), link)
	case model.ActionReject:
		s.notify(ctx, l.ProviderID, model.NotifyListingRejected,
			fmt.Sprintf("Объявление «%s» отклонено: %s", l.Title, l.RejectionReason), link)
	}
}

func (s *listingService) notifyStaff(ctx context.Context, l *model.Listing) {
	staff, err := s.Users.ListStaff(ctx)
	if err != nil {
		s.log.Error("list_staff_failed", zap.Error(err))
		return
	}
	adminURL := AdminURL(s.Site.AdminBaseURL, l.Kind, l.ID)
	for _, u := range staff {
		s.notify(ctx, u.ID, model.NotifyListingOnModeration,
			fmt.Sprintf("Объявление «%s» ожидает модерации", l.Title), adminURL)
		if err := s.Tasks.EnqueueEmail(ctx, mailer.ModerationEmail(u.Email, l.Title, adminURL)); err != nil {
			s.log.Warn("moderation_email_not_queued", zap.String("user_id", u.ID), zap.Error(err))
		}
	}
}

func (s *listingService) notify(ctx context.Context, userID string, kind model.NotificationKind, text, link string) {
	if _, err := s.Notifications.Notify(ctx, userID, kind, text, link); err != nil {
		s.log.Warn("notification_failed", zap.String("user_id", userID), zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (s *listingService) invalidate(ctx context.Context, kind model.Kind, id string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Delete(ctx, kind, id); err != nil {
		s.log.Warn("listing_cache_delete_failed", zap.String("id", id), zap.Error(err))
	}
}

func (s *listingService) AddImage(ctx context.Context, actor Actor, kind model.Kind, id string, r io.Reader, contentType string, size int64) (*model.Image, error) {
	if r == nil {
		return nil, invalid("file", "is required")
	}
	if _, ok := storage.ImageTypes[contentType]; !ok {
		return nil, invalid("file", "unsupported image type "+contentType)
	}
	if size <= 0 {
		return nil, invalid("file", "is empty")
	}
	if s.MaxImageBytes > 0 && size > s.MaxImageBytes {
		return nil, invalid("file", fmt.Sprintf("must be at most %d bytes", s.MaxImageBytes))
	}
	l, err := s.owned(ctx, actor, kind, id)
	if err != nil {
		return nil, err
	}

	imageID := uuid.New().String()
	key := storage.ImageKey(kind, l.ID, imageID, contentType)
	info, err := s.Store.Put(ctx, key, r, storage.PutObjectOptions{Size: size, ContentType: contentType})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	img, err := s.Images.Create(ctx, &model.Image{
		ID:          imageID,
		ListingID:   l.ID,
		Kind:        kind,
		ObjectKey:   info.Key,
		ContentType: contentType,
		Size:        info.Size,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		if delErr := s.Store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	s.presign(ctx, img)
	s.invalidate(ctx, kind, l.ID)
	return img, nil
}

func (s *listingService) RemoveImage(ctx context.Context, actor Actor, kind model.Kind, listingID, imageID string) error {
	l, err := s.owned(ctx, actor, kind, listingID)
	if err != nil {
		return err
	}
	img, err := s.Images.FindByID(ctx, imageID)
	if err != nil {
		return fromRepo(err, "image")
	}
	if img.ListingID != l.ID || img.Kind != kind {
		return fmt.Errorf("image: %w", ErrNotFound)
	}
	if err := s.Images.Delete(ctx, imageID); err != nil {
		return fromRepo(err, "image")
	}
	s.invalidate(ctx, kind, l.ID)
	if err := s.Tasks.EnqueueImageCleanup(ctx, []string{img.ObjectKey}); err != nil {
		s.log.Error("image_cleanup_not_queued", zap.String("key", img.ObjectKey), zap.Error(err))
	}
	return nil
}

func (s *listingService) Search(ctx context.Context, query string, kinds []model.Kind, page Page) (*ListResult[model.Listing], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalid("q", "is required")
	}
	if len(kinds) == 0 {
		kinds = model.Kinds
	}
	for _, k := range kinds {
		if err := validKind(k); err != nil {
			return nil, err
		}
	}
	res, err := s.Listings.Search(ctx, kinds, query, page.query())
	if err != nil {
		return nil, err
	}
	return toList(res), nil
}
