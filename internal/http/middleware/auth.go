package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"sunnyapi/internal/service"
)

// LocalActor is the Fiber locals key holding the authenticated service.Actor.
const LocalActor = "actor"

// TokenParser validates access tokens. service.AuthService implements it.
type TokenParser interface {
	ParseToken(token string) (service.Actor, error)
}

// Auth resolves the caller from "Authorization: Bearer <jwt>" or the "token" query parameter
// (browsers cannot set headers on WebSocket handshakes). When required is false, anonymous
// requests pass through; a token that is present but invalid is always rejected.
func Auth(p TokenParser, required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			if required {
				return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
			}
			return c.Next()
		}
		actor, err := p.ParseToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}
		c.Locals(LocalActor, actor)
		return c.Next()
	}
}

// RequireUser must run after Auth.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !ActorFrom(c).Authenticated() {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}
		return c.Next()
	}
}

// RequireStaff must run after Auth.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := ActorFrom(c)
		if !actor.Authenticated() {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}
		if !actor.IsStaff {
			return fiber.NewError(fiber.StatusForbidden, "staff only")
		}
		return c.Next()
	}
}

// ActorFrom returns the caller stored by Auth, or the anonymous actor.
func ActorFrom(c *fiber.Ctx) service.Actor {
	actor, _ := c.Locals(LocalActor).(service.Actor)
	return actor
}

func bearerToken(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return c.Query("token")
}

// RateLimit allows max requests per client IP per minute, counted in storage.
func RateLimit(storage fiber.Storage, max int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		Storage:    storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + ":" + c.Path()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "too many requests")
		},
	})
}
