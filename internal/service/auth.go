package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"sunnyapi/internal/config"
	"sunnyapi/internal/mailer"
	"sunnyapi/internal/model"
	"sunnyapi/internal/profanity"
	"sunnyapi/internal/repository"
)

const minPasswordLen = 8

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

// ProfileInput carries editable profile fields. Nil fields are left unchanged.
type ProfileInput struct {
	Name  *string
	Phone *string
}

// AuthResult is returned on successful login.
type AuthResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        *model.User `json:"user"`
}

// Claims are the JWT claims of an access token.
type Claims struct {
	Staff bool `json:"staff"`
	jwt.RegisteredClaims
}

// AuthService handles accounts, sessions and one-time tokens.
type AuthService interface {
	// Register creates an unverified account and queues the verification email.
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	VerifyEmail(ctx context.Context, token string) error
	// RequestPasswordReset queues a reset email. Unknown addresses are ignored silently.
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	// ParseToken validates an access token and returns the caller it identifies.
	ParseToken(token string) (Actor, error)
	Me(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*model.User, error)
}

type authService struct {
	users  repository.UserRepository
	tokens repository.TokenRepository
	tasks  TaskQueue
	filter *profanity.Filter
	cfg    config.AuthConfig
	site   config.SiteConfig
	log    *zap.Logger
	now    func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(users repository.UserRepository, tokens repository.TokenRepository, tasks TaskQueue,
	filter *profanity.Filter, cfg config.AuthConfig, site config.SiteConfig, log *zap.Logger) AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &authService{
		users:  users,
		tokens: tokens,
		tasks:  tasks,
		filter: filter,
		cfg:    cfg,
		site:   site,
		log:    log.Named("auth"),
		now:    time.Now,
	}
}

var errNoSigningKey = errors.New("jwt signing key is not configured")

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (s *authService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	fields := map[string]string{}
	if _, err := mail.ParseAddress(email); err != nil {
		fields["email"] = "invalid email address"
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLen {
		fields["password"] = fmt.Sprintf("must be at least %d characters", minPasswordLen)
	}
	if name == "" {
		fields["name"] = "is required"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	if err := checkProfanity(s.filter, map[string]string{"name": name}); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	u, err := s.users.Create(ctx, &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Phone:        strings.TrimSpace(in.Phone),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, &ValidationError{Fields: map[string]string{"email": "already registered"}, cause: ErrAlreadyExists}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	raw, err := s.issueToken(ctx, u.ID, model.TokenVerifyEmail, s.cfg.VerifyTokenTTL)
	if err != nil {
		return nil, err
	}
	link := s.site.PublicURL + "/verify-email?token=" + raw
	if err := s.tasks.EnqueueEmail(ctx, mailer.VerificationEmail(u.Email, u.Name, link)); err != nil {
		s.log.Warn("verification_email_not_queued", zap.String("user_id", u.ID), zap.Error(err))
	}
	s.log.Info("user_registered", zap.String("user_id", u.ID))
	return u, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("invalid email or password: %w", ErrUnauthorized)
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid email or password: %w", ErrUnauthorized)
	}
	if !u.IsActive {
		return nil, fmt.Errorf("account is disabled: %w", ErrForbidden)
	}

	if s.cfg.JWTSecret == "" {
		return nil, errNoSigningKey
	}
	now := s.now()
	exp := now.Add(s.cfg.AccessTTL)
	claims := Claims{
		Staff: u.IsStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &AuthResult{AccessToken: signed, TokenType: "Bearer", ExpiresAt: exp.UTC(), User: u}, nil
}

func (s *authService) ParseToken(token string) (Actor, error) {
	if s.cfg.JWTSecret == "" {
		return Actor{}, fmt.Errorf("%w: %v", ErrUnauthorized, errNoSigningKey)
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return Actor{}, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	return Actor{UserID: claims.Subject, IsStaff: claims.Staff}, nil
}

func (s *authService) VerifyEmail(ctx context.Context, token string) error {
	t, err := s.consume(ctx, token, model.TokenVerifyEmail)
	if err != nil {
		return err
	}
	if err := s.users.MarkEmailVerified(ctx, t.UserID); err != nil {
		return fromRepo(err, "user")
	}
	s.log.Info("email_verified", zap.String("user_id", t.UserID))
	return nil
}

func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if !u.IsActive {
		return nil
	}
	raw, err := s.issueToken(ctx, u.ID, model.TokenPasswordReset, s.cfg.ResetTokenTTL)
	if err != nil {
		return err
	}
	link := s.site.PublicURL + "/password-reset?token=" + raw
	if err := s.tasks.EnqueueEmail(ctx, mailer.PasswordResetEmail(u.Email, link)); err != nil {
		return fmt.Errorf("queue reset email: %w", err)
	}
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if utf8.RuneCountInString(newPassword) < minPasswordLen {
		return invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLen))
	}
	t, err := s.consume(ctx, token, model.TokenPasswordReset)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.SetPassword(ctx, t.UserID, string(hash)); err != nil {
		return fromRepo(err, "user")
	}
	s.log.Info("password_reset", zap.String("user_id", t.UserID))
	return nil
}

func (s *authService) Me(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fromRepo(err, "user")
	}
	return u, nil
}

func (s *authService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*model.User, error) {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, invalid("name", "is required")
		}
		if err := checkProfanity(s.filter, map[string]string{"name": name}); err != nil {
			return nil, err
		}
		u.Name = name
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	u.UpdatedAt = s.now().UTC()
	updated, err := s.users.Update(ctx, u)
	if err != nil {
		return nil, fromRepo(err, "user")
	}
	return updated, nil
}

// issueToken stores the hash of a fresh random secret and returns the secret.
func (s *authService) issueToken(ctx context.Context, userID string, purpose model.TokenPurpose, ttl time.Duration) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)
	now := s.now().UTC()
	if err := s.tokens.Create(ctx, &model.AuthToken{
		Hash:      hashToken(raw),
		UserID:    userID,
		Purpose:   purpose,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return raw, nil
}

func (s *authService) consume(ctx context.Context, raw string, purpose model.TokenPurpose) (*model.AuthToken, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, invalid("token", "is required")
	}
	t, err := s.tokens.Consume(ctx, hashToken(raw), purpose, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid("token", "invalid or expired token")
		}
		return nil, fmt.Errorf("consume token: %w", err)
	}
	return t, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
