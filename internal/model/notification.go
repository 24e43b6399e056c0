package model

import "time"

// NotificationKind tells clients how to render a notification.
type NotificationKind string

const (
	NotifyListingOnModeration NotificationKind = "listing_on_moderation"
	NotifyListingApproved     NotificationKind = "listing_approved"
	NotifyListingRejected     NotificationKind = "listing_rejected"
	NotifyCommentNew          NotificationKind = "comment_new"
	NotifyCommentApproved     NotificationKind = "comment_approved"
	NotifyCommentRejected     NotificationKind = "comment_rejected"
	NotifyMessageNew          NotificationKind = "message_new"
)

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Text      string           `json:"text"`
	Link      string           `json:"link,omitempty"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Chat is a conversation between two users, optionally about a listing.
type Chat struct {
	ID           string    `json:"id"`
	FirstUserID  string    `json:"first_user_id"`
	SecondUserID string    `json:"second_user_id"`
	TargetKind   *Kind     `json:"target_kind,omitempty"`
	TargetID     *string   `json:"target_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastMessage  *Message  `json:"last_message,omitempty"`
	UnreadCount  int       `json:"unread_count"`
}

func (c *Chat) HasParticipant(userID string) bool {
	return userID != "" && (c.FirstUserID == userID || c.SecondUserID == userID)
}

// Peer returns the other participant.
func (c *Chat) Peer(userID string) string {
	if c.FirstUserID == userID {
		return c.SecondUserID
	}
	return c.FirstUserID
}

// OrderedPair returns the participants sorted so a pair maps to one chat.
func OrderedPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

type Message struct {
	ID        string     `json:"id"`
	ChatID    string     `json:"chat_id"`
	SenderID  string     `json:"sender_id"`
	Text      string     `json:"text"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
