package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sunnyapi/internal/events"
	"sunnyapi/internal/metrics"
	"sunnyapi/internal/model"
	"sunnyapi/internal/profanity"
	"sunnyapi/internal/repository"
)

// CommentInput is a review left on a listing.
type CommentInput struct {
	Text   string
	Rating int
}

// CommentService handles reviews and their moderation.
type CommentService interface {
	Create(ctx context.Context, actor Actor, kind model.Kind, targetID string, in CommentInput) (*model.Comment, error)
	// ListForTarget returns approved comments; authors also see their own pending ones, staff see all.
	ListForTarget(ctx context.Context, actor Actor, kind model.Kind, targetID string, page Page) (*ListResult[model.Comment], error)
	ListPending(ctx context.Context, actor Actor, page Page) (*ListResult[model.Comment], error)
	Approve(ctx context.Context, actor Actor, id string) (*model.Comment, error)
	Reject(ctx context.Context, actor Actor, id string) (*model.Comment, error)
	Delete(ctx context.Context, actor Actor, id string) error
}

type commentService struct {
	comments      repository.CommentRepository
	listings      repository.ListingRepository
	cache         ListingCache
	notifications NotificationService
	publisher     events.Publisher
	filter        *profanity.Filter
	metrics       *metrics.Metrics
	log           *zap.Logger
	now           func() time.Time
}

func NewCommentService(comments repository.CommentRepository, listings repository.ListingRepository, cache ListingCache,
	notifications NotificationService, publisher events.Publisher, filter *profanity.Filter, m *metrics.Metrics, log *zap.Logger) CommentService {
	return &commentService{
		comments:      comments,
		listings:      listings,
		cache:         cache,
		notifications: notifications,
		publisher:     publisher,
		filter:        filter,
		metrics:       m,
		log:           log.Named("comments"),
		now:           time.Now,
	}
}

func (s *commentService) Create(ctx context.Context, actor Actor, kind model.Kind, targetID string, in CommentInput) (*model.Comment, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	if err := validKind(kind); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(in.Text)
	fields := map[string]string{}
	if text == "" {
		fields["text"] = "is required"
	}
	if in.Rating < model.MinRating || in.Rating > model.MaxRating {
		fields["rating"] = fmt.Sprintf("must be between %d and %d", model.MinRating, model.MaxRating)
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	if err := checkProfanity(s.filter, map[string]string{"text": text}); err != nil {
		return nil, err
	}

	l, err := s.listings.FindByID(ctx, kind, targetID)
	if err != nil {
		return nil, fromRepo(err, "listing")
	}
	if !l.IsVisible() {
		return nil, fmt.Errorf("listing: %w", ErrNotFound)
	}
	if l.OwnedBy(actor.UserID) {
		return nil, fmt.Errorf("cannot review own listing: %w", ErrForbidden)
	}
	exists, err := s.comments.ExistsByAuthor(ctx, kind, targetID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, alreadyCommented()
	}

	now := s.now().UTC()
	c, err := s.comments.Create(ctx, &model.Comment{
		ID:         uuid.New().String(),
		TargetKind: kind,
		TargetID:   targetID,
		AuthorID:   actor.UserID,
		Text:       text,
		Rating:     in.Rating,
		Status:     model.CommentPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		if err = fromRepo(err, "comment"); isAlreadyExists(err) {
			return nil, alreadyCommented()
		}
		return nil, err
	}
	s.metrics.CommentCreated()

	if s.publisher != nil {
		ev := events.CommentCreated{
			CommentID:  c.ID,
			TargetKind: string(kind),
			TargetID:   targetID,
			AuthorID:   actor.UserID,
			Rating:     c.Rating,
		}
		if err := s.publisher.Publish(ctx, events.SubjectCommentCreated, ev); err != nil {
			s.log.Warn("comment_event_not_published", zap.String("id", c.ID), zap.Error(err))
		}
	}
	s.notify(ctx, l.ProviderID, model.NotifyCommentNew,
		fmt.Sprintf("Новый отзыв на «%s»", l.Title), fmt.Sprintf("/%s/%s", kind.Plural(), targetID))
	return c, nil
}

func alreadyCommented() error {
	return &ValidationError{Fields: map[string]string{"comment": "you have already reviewed this listing"}, cause: ErrAlreadyExists}
}

func (s *commentService) ListForTarget(ctx context.Context, actor Actor, kind model.Kind, targetID string, page Page) (*ListResult[model.Comment], error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	f := repository.CommentFilter{IncludeAuthor: actor.UserID}
	if !actor.IsStaff {
		f.Statuses = []model.CommentStatus{model.CommentApproved}
	}
	res, err := s.comments.ListByTarget(ctx, kind, targetID, f, page.query())
	if err != nil {
		return nil, err
	}
	return toList(res), nil
}

func (s *commentService) ListPending(ctx context.Context, actor Actor, page Page) (*ListResult[model.Comment], error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	res, err := s.comments.ListByStatus(ctx, model.CommentPending, page.query())
	if err != nil {
		return nil, err
	}
	return toList(res), nil
}

func (s *commentService) Approve(ctx context.Context, actor Actor, id string) (*model.Comment, error) {
	return s.moderate(ctx, actor, id, model.CommentApproved)
}

func (s *commentService) Reject(ctx context.Context, actor Actor, id string) (*model.Comment, error) {
	return s.moderate(ctx, actor, id, model.CommentRejected)
}

func (s *commentService) moderate(ctx context.Context, actor Actor, id string, to model.CommentStatus) (*model.Comment, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	c, err := s.comments.FindByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "comment")
	}
	if c.Status != model.CommentPending {
		return nil, fmt.Errorf("comment is %s: %w", c.Status, ErrInvalidTransition)
	}
	if err := s.comments.UpdateStatus(ctx, id, model.CommentPending, to); err != nil {
		return nil, fromRepo(err, "comment")
	}
	c.Status = to
	c.UpdatedAt = s.now().UTC()
	s.log.Info("comment_moderated", zap.String("id", id), zap.String("status", string(to)), zap.String("actor", actor.UserID))

	if to == model.CommentApproved {
		s.refreshRating(ctx, c.TargetKind, c.TargetID)
		s.notify(ctx, c.AuthorID, model.NotifyCommentApproved, "Ваш отзыв опубликован", commentLink(c))
	} else {
		s.notify(ctx, c.AuthorID, model.NotifyCommentRejected, "Ваш отзыв отклонён модератором", commentLink(c))
	}
	return c, nil
}

func (s *commentService) Delete(ctx context.Context, actor Actor, id string) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	c, err := s.comments.FindByID(ctx, id)
	if err != nil {
		return fromRepo(err, "comment")
	}
	if c.AuthorID != actor.UserID && !actor.IsStaff {
		return fmt.Errorf("not the author: %w", ErrForbidden)
	}
	if err := s.comments.Delete(ctx, id); err != nil {
		return fromRepo(err, "comment")
	}
	if c.Status == model.CommentApproved {
		s.refreshRating(ctx, c.TargetKind, c.TargetID)
	}
	return nil
}

func (s *commentService) refreshRating(ctx context.Context, kind model.Kind, id string) {
	if err := s.listings.RefreshRating(ctx, kind, id); err != nil {
		s.log.Error("rating_refresh_failed", zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
		return
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, kind, id); err != nil {
			s.log.Warn("listing_cache_delete_failed", zap.String("id", id), zap.Error(err))
		}
	}
}

func (s *commentService) notify(ctx context.Context, userID string, kind model.NotificationKind, text, link string) {
	if _, err := s.notifications.Notify(ctx, userID, kind, text, link); err != nil {
		s.log.Warn("notification_failed", zap.String("user_id", userID), zap.String("kind", string(kind)), zap.Error(err))
	}
}

func commentLink(c *model.Comment) string {
	return fmt.Sprintf("/%s/%s", c.TargetKind.Plural(), c.TargetID)
}
