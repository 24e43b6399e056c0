// Package tasks defines the deferred jobs run by the worker through asynq.
package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"sunnyapi/internal/mailer"
)

// Task types.
const (
	TypeEmailSend    = "email:send"
	TypeImageCleanup = "image:cleanup"
	TypeTokensSweep  = "tokens:sweep"
)

// Queues and their priorities.
const (
	QueueEmails      = "emails"
	QueueMaintenance = "maintenance"
)

var Queues = map[string]int{
	QueueEmails:      6,
	QueueMaintenance: 2,
}

type ImageCleanupPayload struct {
	Keys []string `json:"keys"`
}

func NewEmailTask(msg mailer.Message) (*asynq.Task, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", TypeEmailSend, err)
	}
	return asynq.NewTask(TypeEmailSend, payload, asynq.Queue(QueueEmails), asynq.MaxRetry(5)), nil
}

func NewImageCleanupTask(keys []string) (*asynq.Task, error) {
	payload, err := json.Marshal(ImageCleanupPayload{Keys: keys})
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", TypeImageCleanup, err)
	}
	return asynq.NewTask(TypeImageCleanup, payload, asynq.Queue(QueueMaintenance), asynq.MaxRetry(10)), nil
}

func NewTokensSweepTask() *asynq.Task {
	return asynq.NewTask(TypeTokensSweep, nil, asynq.Queue(QueueMaintenance), asynq.MaxRetry(1))
}
