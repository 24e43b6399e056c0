package tasks

import (
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"sunnyapi/internal/config"
)

// RedisOpt converts the shared Redis settings for asynq.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}

func NewServer(opt asynq.RedisConnOpt, cfg config.WorkerConfig, log *zap.Logger) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          Queues,
		Logger:          log.Named("asynq").Sugar(),
		ShutdownTimeout: 10 * time.Second,
	})
}

// NewScheduler registers the periodic token sweep.
func NewScheduler(opt asynq.RedisConnOpt, cfg config.WorkerConfig, loc *time.Location, log *zap.Logger) (*asynq.Scheduler, error) {
	sched := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: loc,
		Logger:   log.Named("scheduler").Sugar(),
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Error("scheduled_enqueue_failed", zap.Error(err))
			}
		},
	})
	if _, err := sched.Register(cfg.TokenSweepCron, NewTokensSweepTask()); err != nil {
		return nil, err
	}
	return sched, nil
}
