package model

import "time"

// User is a marketplace account. Staff users moderate listings and comments.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone,omitempty"`
	IsStaff       bool      `json:"is_staff"`
	IsActive      bool      `json:"is_active"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TokenPurpose scopes a one-time token.
type TokenPurpose string

const (
	TokenVerifyEmail   TokenPurpose = "verify_email"
	TokenPasswordReset TokenPurpose = "password_reset"
)

// AuthToken is a stored one-time token. Only the hash of the secret is persisted.
type AuthToken struct {
	Hash      string
	UserID    string
	Purpose   TokenPurpose
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is no longer usable at now.
func (t AuthToken) Expired(now time.Time) bool { return !now.Before(t.ExpiresAt) }
