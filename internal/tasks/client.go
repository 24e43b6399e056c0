package tasks

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"sunnyapi/internal/mailer"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client enqueues deferred jobs for the worker.
type Client struct {
	q   enqueuer
	log *zap.Logger
}

func NewClient(q enqueuer, log *zap.Logger) *Client {
	return &Client{q: q, log: log.Named("tasks")}
}

func (c *Client) EnqueueEmail(ctx context.Context, msg mailer.Message) error {
	task, err := NewEmailTask(msg)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

// EnqueueImageCleanup schedules removal of stored objects. An empty list is a no-op.
func (c *Client) EnqueueImageCleanup(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	task, err := NewImageCleanupTask(keys)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task) error {
	info, err := c.q.EnqueueContext(ctx, task)
	if err != nil {
		c.log.Error("task_enqueue_failed", zap.String("type", task.Type()), zap.Error(err))
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	c.log.Debug("task_enqueued", zap.String("type", task.Type()), zap.String("id", info.ID), zap.String("queue", info.Queue))
	return nil
}
