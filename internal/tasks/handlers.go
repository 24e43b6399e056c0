package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"sunnyapi/internal/mailer"
	"sunnyapi/internal/metrics"
	"sunnyapi/internal/storage"
)

// TokenSweeper removes expired one-time tokens.
type TokenSweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Handlers processes every task type.
type Handlers struct {
	mailer  mailer.Mailer
	store   storage.Storage
	tokens  TokenSweeper
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func NewHandlers(m mailer.Mailer, store storage.Storage, tokens TokenSweeper, mt *metrics.Metrics, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		mailer:  m,
		store:   store,
		tokens:  tokens,
		metrics: mt,
		log:     log.Named("worker"),
		now:     time.Now,
	}
}

// Mux routes task types to handlers and counts every outcome.
func (h *Handlers) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailSend, h.HandleEmail)
	mux.HandleFunc(TypeImageCleanup, h.HandleImageCleanup)
	mux.HandleFunc(TypeTokensSweep, h.HandleTokensSweep)
	mux.Use(h.observe)
	return mux
}

func (h *Handlers) observe(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		err := next.ProcessTask(ctx, t)
		h.metrics.TaskProcessed(t.Type(), err)
		fields := []zap.Field{
			zap.String("type", t.Type()),
			zap.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000.0),
		}
		if err != nil {
			h.log.Error("task_failed", append(fields, zap.Error(err))...)
		} else {
			h.log.Info("task_done", fields...)
		}
		return err
	})
}

func (h *Handlers) HandleEmail(ctx context.Context, t *asynq.Task) error {
	var msg mailer.Message
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", TypeEmailSend, err, asynq.SkipRetry)
	}
	if msg.To == "" {
		return fmt.Errorf("email without recipient: %w", asynq.SkipRetry)
	}
	return h.mailer.Send(ctx, msg)
}

// HandleImageCleanup deletes stored objects. Failed keys are retried by re-running the task.
func (h *Handlers) HandleImageCleanup(ctx context.Context, t *asynq.Task) error {
	var p ImageCleanupPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", TypeImageCleanup, err, asynq.SkipRetry)
	}
	if len(p.Keys) == 0 {
		return nil
	}
	failed, err := h.store.DeleteMany(ctx, p.Keys)
	if err != nil {
		h.log.Warn("image_cleanup_partial", zap.Int("requested", len(p.Keys)), zap.Strings("failed", failed))
		return err
	}
	h.log.Info("image_cleanup_done", zap.Int("deleted", len(p.Keys)))
	return nil
}

func (h *Handlers) HandleTokensSweep(ctx context.Context, _ *asynq.Task) error {
	n, err := h.tokens.DeleteExpired(ctx, h.now().UTC())
	if err != nil {
		return fmt.Errorf("sweep expired tokens: %w", err)
	}
	h.log.Info("tokens_swept", zap.Int64("deleted", n))
	return nil
}
