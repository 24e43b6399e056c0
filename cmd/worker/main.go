package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"sunnyapi/internal/config"
	"sunnyapi/internal/database"
	"sunnyapi/internal/logger"
	"sunnyapi/internal/mailer"
	"sunnyapi/internal/metrics"
	tracing "sunnyapi/internal/otel"
	"sunnyapi/internal/repository/postgres"
	"sunnyapi/internal/storage"
	"sunnyapi/internal/tasks"
)

// The worker runs deferred jobs: emails, image cleanup and the periodic token sweep.
func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.LogLevel, cfg.Location())
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("worker_exited", zap.Error(err))
	}
}

func run(cfg *config.AppConfig, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, "sunnyapi-worker", log)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := storage.NewMinIO(ctx, cfg.MinIO)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt, err := metrics.New(reg)
	if err != nil {
		return err
	}

	h := tasks.NewHandlers(mailer.New(cfg.SMTP, log), store, postgres.NewTokenPostgres(db), mt, log)
	opt := tasks.RedisOpt(cfg.Redis)

	srv := tasks.NewServer(opt, cfg.Worker, log)
	sched, err := tasks.NewScheduler(opt, cfg.Worker, cfg.Location(), log)
	if err != nil {
		return err
	}

	if err := srv.Start(h.Mux()); err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		srv.Shutdown()
		return err
	}
	log.Info("worker_started", zap.Int("concurrency", cfg.Worker.Concurrency), zap.String("token_sweep", cfg.Worker.TokenSweepCron))

	var metricsApp *fiber.App
	if cfg.Worker.MetricsPort != "" {
		metricsApp = fiber.New(fiber.Config{DisableStartupMessage: true})
		metricsApp.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
		go func() {
			if err := metricsApp.Listen(":" + cfg.Worker.MetricsPort); err != nil {
				log.Error("worker_metrics_listen_failed", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	log.Info("worker_shutting_down")
	sched.Shutdown()
	srv.Shutdown()
	if metricsApp != nil {
		_ = metricsApp.Shutdown()
	}
	return nil
}
