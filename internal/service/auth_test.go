package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"sunnyapi/internal/config"
	"sunnyapi/internal/model"
	"sunnyapi/internal/profanity"
	"sunnyapi/internal/repository"
	repoMocks "sunnyapi/internal/repository/mocks"
)

type authFixture struct {
	users  *repoMocks.MockUserRepository
	tokens *repoMocks.MockTokenRepository
	queue  *fakeQueue
	svc    *authService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		users:  new(repoMocks.MockUserRepository),
		tokens: new(repoMocks.MockTokenRepository),
		queue:  &fakeQueue{},
	}
	cfg := config.AuthConfig{
		JWTSecret:      "test-secret",
		AccessTTL:      time.Hour,
		VerifyTokenTTL: 72 * time.Hour,
		ResetTokenTTL:  30 * time.Minute,
		BcryptCost:     bcrypt.MinCost,
	}
	site := config.SiteConfig{PublicURL: "https://sunny.example"}
	f.svc = NewAuthService(f.users, f.tokens, f.queue, profanity.New(), cfg, site, testLog).(*authService)
	t.Cleanup(func() {
		f.users.AssertExpectations(t)
		f.tokens.AssertExpectations(t)
	})
	return f
}

func hashed(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("Create", ctx, mock.MatchedBy(func(u *model.User) bool {
			return u.Email == "anna@example.com" && u.IsActive && !u.EmailVerified &&
				bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret123")) == nil
		})).Return(&model.User{ID: "u1", Email: "anna@example.com", Name: "Анна"}, nil)
		f.tokens.On("Create", ctx, mock.MatchedBy(func(tok *model.AuthToken) bool {
			return tok.Purpose == model.TokenVerifyEmail && len(tok.Hash) == 64
		})).Return(nil)

		u, err := f.svc.Register(ctx, RegisterInput{Email: "  Anna@Example.com ", Password: "secret123", Name: "Анна"})
		require.NoError(t, err)
		assert.Equal(t, "anna@example.com", u.Email)
		require.Len(t, f.queue.emails, 1)
		assert.Equal(t, "anna@example.com", f.queue.emails[0].To)
		assert.Contains(t, f.queue.emails[0].Body, "https://sunny.example/verify-email?token=")
	})

	t.Run("validation", func(t *testing.T) {
		f := newAuthFixture(t)
		_, err := f.svc.Register(ctx, RegisterInput{Email: "nope", Password: "short"})

		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Contains(t, ve.Fields, "email")
		assert.Contains(t, ve.Fields, "password")
		assert.Contains(t, ve.Fields, "name")
	})

	t.Run("profane name", func(t *testing.T) {
		f := newAuthFixture(t)
		_, err := f.svc.Register(ctx, RegisterInput{Email: "a@b.ru", Password: "secret123", Name: "мудак"})
		assert.ErrorIs(t, err, ErrProfanity)
	})

	t.Run("duplicate email", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("Create", ctx, mock.Anything).Return(nil, repository.ErrDuplicate)

		_, err := f.svc.Register(ctx, RegisterInput{Email: "a@b.ru", Password: "secret123", Name: "Анна"})
		assert.ErrorIs(t, err, ErrAlreadyExists)
		assert.Empty(t, f.queue.emails)
	})
}

func TestAuthService_LoginAndParse(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: "u1", Email: "anna@example.com", PasswordHash: hashed(t, "secret123"), IsActive: true, IsStaff: true}

	t.Run("token round trip", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("FindByEmail", ctx, "anna@example.com").Return(user, nil)

		res, err := f.svc.Login(ctx, "ANNA@example.com", "secret123")
		require.NoError(t, err)
		assert.Equal(t, "Bearer", res.TokenType)

		actor, err := f.svc.ParseToken(res.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, Actor{UserID: "u1", IsStaff: true}, actor)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("FindByEmail", ctx, "anna@example.com").Return(user, nil)

		_, err := f.svc.Login(ctx, "anna@example.com", "wrong-password")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("unknown email", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("FindByEmail", ctx, "who@example.com").Return(nil, repository.ErrNotFound)

		_, err := f.svc.Login(ctx, "who@example.com", "secret123")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("inactive", func(t *testing.T) {
		f := newAuthFixture(t)
		inactive := *user
		inactive.IsActive = false
		f.users.On("FindByEmail", ctx, "anna@example.com").Return(&inactive, nil)

		_, err := f.svc.Login(ctx, "anna@example.com", "secret123")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("expired token", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("FindByEmail", ctx, "anna@example.com").Return(user, nil)
		res, err := f.svc.Login(ctx, "anna@example.com", "secret123")
		require.NoError(t, err)

		f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err = f.svc.ParseToken(res.AccessToken)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("garbage token", func(t *testing.T) {
		f := newAuthFixture(t)
		_, err := f.svc.ParseToken("not.a.jwt")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("empty signing key", func(t *testing.T) {
		f := newAuthFixture(t)
		f.svc.cfg.JWTSecret = ""
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			Staff:            true,
			RegisteredClaims: jwt.RegisteredClaims{Subject: "intruder"},
		}).SignedString([]byte(""))
		require.NoError(t, err)

		actor, err := f.svc.ParseToken(forged)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Equal(t, Actor{}, actor)

		f.users.On("FindByEmail", ctx, "anna@example.com").Return(user, nil)
		_, err = f.svc.Login(ctx, "anna@example.com", "secret123")
		assert.ErrorIs(t, err, errNoSigningKey)
	})
}

func TestAuthService_Tokens(t *testing.T) {
	ctx := context.Background()

	t.Run("verify email", func(t *testing.T) {
		f := newAuthFixture(t)
		f.tokens.On("Consume", ctx, hashToken("raw"), model.TokenVerifyEmail, mock.Anything).
			Return(&model.AuthToken{UserID: "u1"}, nil)
		f.users.On("MarkEmailVerified", ctx, "u1").Return(nil)

		assert.NoError(t, f.svc.VerifyEmail(ctx, "raw"))
	})

	t.Run("expired verify token", func(t *testing.T) {
		f := newAuthFixture(t)
		f.tokens.On("Consume", ctx, hashToken("raw"), model.TokenVerifyEmail, mock.Anything).
			Return(nil, repository.ErrNotFound)

		var ve *ValidationError
		require.True(t, errors.As(f.svc.VerifyEmail(ctx, "raw"), &ve))
		assert.Equal(t, "invalid or expired token", ve.Fields["token"])
	})

	t.Run("reset request for unknown email is silent", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("FindByEmail", ctx, "ghost@example.com").Return(nil, repository.ErrNotFound)

		assert.NoError(t, f.svc.RequestPasswordReset(ctx, "ghost@example.com"))
		assert.Empty(t, f.queue.emails)
	})

	t.Run("reset request queues email", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("FindByEmail", ctx, "anna@example.com").Return(&model.User{ID: "u1", Email: "anna@example.com", IsActive: true}, nil)
		f.tokens.On("Create", ctx, mock.MatchedBy(func(tok *model.AuthToken) bool {
			return tok.Purpose == model.TokenPasswordReset && tok.UserID == "u1"
		})).Return(nil)

		require.NoError(t, f.svc.RequestPasswordReset(ctx, "anna@example.com"))
		require.Len(t, f.queue.emails, 1)
		assert.True(t, strings.Contains(f.queue.emails[0].Body, "/password-reset?token="))
	})

	t.Run("reset password", func(t *testing.T) {
		f := newAuthFixture(t)
		f.tokens.On("Consume", ctx, hashToken("raw"), model.TokenPasswordReset, mock.Anything).
			Return(&model.AuthToken{UserID: "u1"}, nil)
		f.users.On("SetPassword", ctx, "u1", mock.MatchedBy(func(h string) bool {
			return bcrypt.CompareHashAndPassword([]byte(h), []byte("new-secret")) == nil
		})).Return(nil)

		assert.NoError(t, f.svc.ResetPassword(ctx, "raw", "new-secret"))
	})

	t.Run("reset password too short", func(t *testing.T) {
		f := newAuthFixture(t)
		var ve *ValidationError
		assert.True(t, errors.As(f.svc.ResetPassword(ctx, "raw", "short"), &ve))
	})
}

func TestAuthService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	f.users.On("FindByID", ctx, "u1").Return(&model.User{ID: "u1", Name: "Анна"}, nil)
	f.users.On("Update", ctx, mock.MatchedBy(func(u *model.User) bool {
		return u.Name == "Анна Петровна" && u.Phone == "+79990001122"
	})).Return(&model.User{ID: "u1", Name: "Анна Петровна", Phone: "+79990001122"}, nil)

	u, err := f.svc.UpdateProfile(ctx, "u1", ProfileInput{Name: sptr(" Анна Петровна "), Phone: sptr("+79990001122")})
	require.NoError(t, err)
	assert.Equal(t, "Анна Петровна", u.Name)

	_, err = f.svc.Me(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}
