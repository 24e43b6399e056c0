package model

import "time"

// CommentStatus is the moderation state of a comment.
type CommentStatus string

const (
	CommentPending  CommentStatus = "pending"
	CommentApproved CommentStatus = "approved"
	CommentRejected CommentStatus = "rejected"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Comment is a rated review left on a service or an ad.
type Comment struct {
	ID         string        `json:"id"`
	TargetKind Kind          `json:"target_kind"`
	TargetID   string        `json:"target_id"`
	AuthorID   string        `json:"author_id"`
	Text       string        `json:"text"`
	Rating     int           `json:"rating"`
	Status     CommentStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Favorite marks a listing saved by a user.
type Favorite struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	TargetKind Kind      `json:"target_kind"`
	TargetID   string    `json:"target_id"`
	CreatedAt  time.Time `json:"created_at"`
	Listing    *Listing  `json:"listing,omitempty"`
}
