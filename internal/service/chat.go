package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sunnyapi/internal/events"
	"sunnyapi/internal/metrics"
	"sunnyapi/internal/model"
	"sunnyapi/internal/profanity"
	"sunnyapi/internal/repository"
)

const maxMessageLen = 2000

// StartChatInput opens a conversation with a peer, optionally about a listing.
type StartChatInput struct {
	PeerID     string
	TargetKind *model.Kind
	TargetID   *string
}

// ChatService implements user-to-user messaging.
type ChatService interface {
	// Start returns the existing chat of the pair and target or creates one.
	Start(ctx context.Context, actor Actor, in StartChatInput) (*model.Chat, error)
	List(ctx context.Context, actor Actor) ([]model.Chat, error)
	// Get returns the chat if the actor participates in it.
	Get(ctx context.Context, actor Actor, chatID string) (*model.Chat, error)
	// Messages returns a page of messages and marks the peer's messages read.
	Messages(ctx context.Context, actor Actor, chatID string, page Page) (*ListResult[model.Message], error)
	// SendMessage stores a message, broadcasts it to the chat room, and notifies the peer.
	SendMessage(ctx context.Context, actor Actor, chatID, text string) (*model.Message, error)
}

type chatService struct {
	chats         repository.ChatRepository
	users         repository.UserRepository
	listings      repository.ListingRepository
	notifications NotificationService
	bcast         events.Broadcaster
	filter        *profanity.Filter
	metrics       *metrics.Metrics
	log           *zap.Logger
	now           func() time.Time
}

func NewChatService(chats repository.ChatRepository, users repository.UserRepository, listings repository.ListingRepository,
	notifications NotificationService, bcast events.Broadcaster, filter *profanity.Filter, m *metrics.Metrics, log *zap.Logger) ChatService {
	return &chatService{
		chats:         chats,
		users:         users,
		listings:      listings,
		notifications: notifications,
		bcast:         bcast,
		filter:        filter,
		metrics:       m,
		log:           log.Named("chat"),
		now:           time.Now,
	}
}

func (s *chatService) Start(ctx context.Context, actor Actor, in StartChatInput) (*model.Chat, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	if in.PeerID == "" {
		return nil, invalid("peer_id", "is required")
	}
	if in.PeerID == actor.UserID {
		return nil, invalid("peer_id", "cannot start a chat with yourself")
	}
	if (in.TargetKind == nil) != (in.TargetID == nil) {
		return nil, invalid("target", "target_kind and target_id go together")
	}
	if _, err := s.users.FindByID(ctx, in.PeerID); err != nil {
		if err = fromRepo(err, "user"); isNotFound(err) {
			return nil, invalid("peer_id", "user not found")
		}
		return nil, err
	}
	if in.TargetKind != nil {
		if err := validKind(*in.TargetKind); err != nil {
			return nil, err
		}
		l, err := s.listings.FindByID(ctx, *in.TargetKind, *in.TargetID)
		if err != nil {
			return nil, fromRepo(err, "listing")
		}
		if !l.IsVisible() && !l.OwnedBy(actor.UserID) && !l.OwnedBy(in.PeerID) {
			return nil, fmt.Errorf("listing: %w", ErrNotFound)
		}
	}

	first, second := model.OrderedPair(actor.UserID, in.PeerID)
	c, err := s.chats.FindOrCreate(ctx, &model.Chat{
		ID:           uuid.New().String(),
		FirstUserID:  first,
		SecondUserID: second,
		TargetKind:   in.TargetKind,
		TargetID:     in.TargetID,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return nil, fromRepo(err, "chat")
	}
	return c, nil
}

func (s *chatService) List(ctx context.Context, actor Actor) ([]model.Chat, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	return s.chats.ListByUser(ctx, actor.UserID)
}

func (s *chatService) Get(ctx context.Context, actor Actor, chatID string) (*model.Chat, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	c, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		return nil, fromRepo(err, "chat")
	}
	if !c.HasParticipant(actor.UserID) {
		return nil, fmt.Errorf("not a participant: %w", ErrForbidden)
	}
	return c, nil
}

func (s *chatService) Messages(ctx context.Context, actor Actor, chatID string, page Page) (*ListResult[model.Message], error) {
	c, err := s.Get(ctx, actor, chatID)
	if err != nil {
		return nil, err
	}
	res, err := s.chats.ListMessages(ctx, c.ID, page.query())
	if err != nil {
		return nil, err
	}
	if _, err := s.chats.MarkRead(ctx, c.ID, actor.UserID); err != nil {
		s.log.Warn("mark_read_failed", zap.String("chat_id", c.ID), zap.Error(err))
	}
	return toList(res), nil
}

func (s *chatService) SendMessage(ctx context.Context, actor Actor, chatID, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("text", "is required")
	}
	if utf8.RuneCountInString(text) > maxMessageLen {
		return nil, invalid("text", fmt.Sprintf("must be at most %d characters", maxMessageLen))
	}
	if err := checkProfanity(s.filter, map[string]string{"text": text}); err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, actor, chatID)
	if err != nil {
		return nil, err
	}
	msg, err := s.chats.CreateMessage(ctx, &model.Message{
		ID:        uuid.New().String(),
		ChatID:    c.ID,
		SenderID:  actor.UserID,
		Text:      text,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, fromRepo(err, "message")
	}
	s.metrics.MessageSent()

	if s.bcast != nil {
		ev := events.Event{Type: events.TypeMessageNew, Data: msg}
		if err := s.bcast.Broadcast(ctx, events.ChatRoom(c.ID), ev); err != nil {
			s.log.Warn("message_broadcast_failed", zap.String("chat_id", c.ID), zap.Error(err))
		}
	}
	peer := c.Peer(actor.UserID)
	if _, err := s.notifications.Notify(ctx, peer, model.NotifyMessageNew, "Новое сообщение", "/chats/"+c.ID); err != nil {
		s.log.Warn("notification_failed", zap.String("user_id", peer), zap.Error(err))
	}
	return msg, nil
}
