// Package events carries domain events and realtime fan-out over NATS.
package events

import (
	"context"

	"go.uber.org/zap"
)

// Domain event subjects.
const (
	SubjectListingStatusChanged = "listings.status_changed"
	SubjectCommentCreated       = "comments.created"

	realtimePrefix = "realtime."
)

// Realtime event types sent to WebSocket clients.
const (
	TypeMessageNew   = "message_new"
	TypeNotification = "notification"
	TypeError        = "error"
)

// Event is the frame delivered to WebSocket clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// ListingStatusChanged is published after every successful lifecycle action.
type ListingStatusChanged struct {
	Kind      string `json:"kind"`
	ListingID string `json:"listing_id"`
	Action    string `json:"action"`
	From      string `json:"from"`
	To        string `json:"to"`
	ActorID   string `json:"actor_id"`
}

// CommentCreated is published when a comment enters moderation.
type CommentCreated struct {
	CommentID  string `json:"comment_id"`
	TargetKind string `json:"target_kind"`
	TargetID   string `json:"target_id"`
	AuthorID   string `json:"author_id"`
	Rating     int    `json:"rating"`
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
}

// Broadcaster delivers a realtime event to every client in room, on every instance.
type Broadcaster interface {
	Broadcast(ctx context.Context, room string, ev Event) error
}

// Sink receives relayed realtime payloads. The realtime hub implements it.
type Sink interface {
	Deliver(room string, payload []byte)
}

// ChatRoom and UserRoom name the realtime rooms.
func ChatRoom(chatID string) string { return "chat." + chatID }
func UserRoom(userID string) string { return "notify." + userID }

// LogPublisher is used when no broker is configured; events are only logged.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log.Named("events")}
}

func (p *LogPublisher) Publish(_ context.Context, subject string, data any) error {
	p.log.Debug("event_published", zap.String("subject", subject), zap.Any("data", data))
	return nil
}
