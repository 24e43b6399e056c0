package middleware

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"sunnyapi/internal/logger"
)

// Logger logs each HTTP request as one structured line:
// request_id, method, path, status, latency (milliseconds) and user_id when authenticated.
func Logger(log *zap.Logger) fiber.Handler {
	log = log.Named("http")
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		rid, _ := c.Locals(RequestIDLocalKey).(string)
		fields := []zap.Field{
			zap.String("request_id", rid),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", statusFrom(c, err)),
			zap.Float64("latency", float64(time.Since(start).Microseconds())/1000),
		}
		if actor := ActorFrom(c); actor.Authenticated() {
			fields = append(fields, zap.String("user_id", actor.UserID))
		}
		log.Info("http_request", fields...)

		return err
	}
}

// LoggerWithWriter writes request logs to w with timestamps in loc.
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	l, err := logger.NewWithWriter(w, "info", loc)
	if err != nil {
		l = zap.NewNop()
	}
	return Logger(l)
}

// statusFrom returns the status the error handler will send for err.
func statusFrom(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	if fiberErr, ok := err.(*fiber.Error); ok {
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}
