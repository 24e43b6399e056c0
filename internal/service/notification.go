package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sunnyapi/internal/events"
	"sunnyapi/internal/model"
	"sunnyapi/internal/repository"
)

// NotificationService stores in-app notifications and pushes them to connected clients.
type NotificationService interface {
	// Notify persists a notification and broadcasts it to the user's realtime room.
	// A failed broadcast is logged; the stored notification is still returned.
	Notify(ctx context.Context, userID string, kind model.NotificationKind, text, link string) (*model.Notification, error)
	List(ctx context.Context, actor Actor, unreadOnly bool, page Page) (*ListResult[model.Notification], error)
	MarkRead(ctx context.Context, actor Actor, id string) error
	MarkAllRead(ctx context.Context, actor Actor) (int64, error)
	UnreadCount(ctx context.Context, actor Actor) (int, error)
}

type notificationService struct {
	repo  repository.NotificationRepository
	bcast events.Broadcaster
	log   *zap.Logger
	now   func() time.Time
}

func NewNotificationService(repo repository.NotificationRepository, bcast events.Broadcaster, log *zap.Logger) NotificationService {
	return &notificationService{repo: repo, bcast: bcast, log: log.Named("notifications"), now: time.Now}
}

func (s *notificationService) Notify(ctx context.Context, userID string, kind model.NotificationKind, text, link string) (*model.Notification, error) {
	n, err := s.repo.Create(ctx, &model.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Kind:      kind,
		Text:      text,
		Link:      link,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, fromRepo(err, "notification")
	}
	if s.bcast != nil {
		ev := events.Event{Type: events.TypeNotification, Data: n}
		if err := s.bcast.Broadcast(ctx, events.UserRoom(userID), ev); err != nil {
			s.log.Warn("notification_broadcast_failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return n, nil
}

func (s *notificationService) List(ctx context.Context, actor Actor, unreadOnly bool, page Page) (*ListResult[model.Notification], error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	res, err := s.repo.ListByUser(ctx, actor.UserID, unreadOnly, page.query())
	if err != nil {
		return nil, err
	}
	return toList(res), nil
}

func (s *notificationService) MarkRead(ctx context.Context, actor Actor, id string) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	return fromRepo(s.repo.MarkRead(ctx, id, actor.UserID), "notification")
}

func (s *notificationService) MarkAllRead(ctx context.Context, actor Actor) (int64, error) {
	if err := requireUser(actor); err != nil {
		return 0, err
	}
	return s.repo.MarkAllRead(ctx, actor.UserID)
}

func (s *notificationService) UnreadCount(ctx context.Context, actor Actor) (int, error) {
	if err := requireUser(actor); err != nil {
		return 0, err
	}
	return s.repo.CountUnread(ctx, actor.UserID)
}
