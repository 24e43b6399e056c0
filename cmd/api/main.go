package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/hibiken/asynq"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"sunnyapi/docs"
	"sunnyapi/internal/cache"
	"sunnyapi/internal/config"
	"sunnyapi/internal/database"
	"sunnyapi/internal/database/migration"
	"sunnyapi/internal/events"
	handlers "sunnyapi/internal/http/handler"
	"sunnyapi/internal/http/middleware"
	"sunnyapi/internal/logger"
	"sunnyapi/internal/metrics"
	tracing "sunnyapi/internal/otel"
	"sunnyapi/internal/profanity"
	"sunnyapi/internal/realtime"
	"sunnyapi/internal/repository/postgres"
	"sunnyapi/internal/service"
	"sunnyapi/internal/storage"
	"sunnyapi/internal/tasks"
)

const shutdownTimeout = 15 * time.Second

// @title Sunny Ekaterinburg API
// @version 1.0
// @description Marketplace of services and classified ads.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	log, err := logger.New(cfg.LogLevel, cfg.Location())
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("api_exited", zap.Error(err))
	}
}

func run(cfg *config.AppConfig, log *zap.Logger) error {
	if err := cfg.Auth.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, "sunnyapi", log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
		return err
	}

	store, err := storage.NewMinIO(ctx, cfg.MinIO)
	if err != nil {
		return err
	}

	rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt, err := metrics.New(reg)
	if err != nil {
		return err
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return err
	}

	// Realtime fan-out goes through NATS when configured so every instance reaches its own sockets.
	hub := realtime.NewHub(log)
	var (
		publisher   events.Publisher   = events.NewLogPublisher(log)
		broadcaster events.Broadcaster = hub
	)
	if cfg.NATS.URL != "" {
		conn, err := events.Connect(cfg.NATS.URL, "sunnyapi", log)
		if err != nil {
			return err
		}
		natsPub := events.NewNATSPublisher(conn, log)
		defer natsPub.Close()
		if _, err := events.Subscribe(conn, hub, log); err != nil {
			return err
		}
		publisher = natsPub
		broadcaster = events.NewNATSBroadcaster(natsPub)
	}

	queue := asynq.NewClient(tasks.RedisOpt(cfg.Redis))
	defer queue.Close()
	taskClient := tasks.NewClient(queue, log)

	filter := profanity.New(cfg.ProfanityExtra...)
	listingCache := cache.NewListingCache(rdb, cfg.ListingTTL)

	users := postgres.NewUserPostgres(db)
	listingRepo := postgres.NewListingPostgres(db)

	notifications := service.NewNotificationService(postgres.NewNotificationPostgres(db), broadcaster, log)
	taxonomy := service.NewTaxonomyService(postgres.NewTaxonomyPostgres(db), cache.NewTaxonomyCache(rdb, cfg.ListingTTL), filter, log)
	deps := handlers.Deps{
		DB:   db,
		Auth: service.NewAuthService(users, postgres.NewTokenPostgres(db), taskClient, filter, cfg.Auth, cfg.Site, log),
		Listings: service.NewListingService(service.ListingDeps{
			Listings:      listingRepo,
			Images:        postgres.NewImagePostgres(db),
			Users:         users,
			Taxonomy:      taxonomy,
			Notifications: notifications,
			Store:         store,
			Cache:         listingCache,
			Tasks:         taskClient,
			Events:        publisher,
			Filter:        filter,
			Metrics:       mt,
			Site:          cfg.Site,
			MaxImageBytes: cfg.MaxImageBytes,
			Log:           log,
		}),
		Taxonomy:      taxonomy,
		Comments:      service.NewCommentService(postgres.NewCommentPostgres(db), listingRepo, listingCache, notifications, publisher, filter, mt, log),
		Favorites:     service.NewFavoriteService(postgres.NewFavoritePostgres(db), listingRepo),
		Notifications: notifications,
		Chats:         service.NewChatService(postgres.NewChatPostgres(db), users, listingRepo, notifications, broadcaster, filter, mt, log),
		Hub:           hub,
		Gatherer:      reg,
		Limiter:       cache.NewLimiterStorage(rdb),
		AuthRateLimit: cfg.Auth.AuthRateLimitMax,
		Log:           log,
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(log),
		BodyLimit:    int(cfg.MaxImageBytes) + 1<<20,
	})

	// Register global middleware
	app.Use(recover.New())
	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(httpMetrics.Handler())

	handlers.RegisterRoutes(app, deps)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("api_listening", zap.String("port", cfg.Port), zap.String("host", cfg.AppHost))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("api_shutting_down")
	return app.ShutdownWithTimeout(shutdownTimeout)
}
