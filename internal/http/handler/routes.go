package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"sunnyapi/internal/http/middleware"
	"sunnyapi/internal/model"
	"sunnyapi/internal/realtime"
	"sunnyapi/internal/service"
)

const defaultAuthRateLimit = 20

// Deps carries everything the routes need. Gatherer, Hub and Limiter are optional.
type Deps struct {
	DB            *sql.DB
	Auth          service.AuthService
	Listings      service.ListingService
	Taxonomy      service.TaxonomyService
	Comments      service.CommentService
	Favorites     service.FavoriteService
	Notifications service.NotificationService
	Chats         service.ChatService
	Hub           *realtime.Hub
	Gatherer      prometheus.Gatherer
	// Limiter stores auth rate limit counters. Nil keeps them in process memory.
	Limiter       fiber.Storage
	AuthRateLimit int
	Log           *zap.Logger
}

// RegisterRoutes attaches HTTP and WebSocket routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	rate := d.AuthRateLimit
	if rate <= 0 {
		rate = defaultAuthRateLimit
	}

	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())
	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	user := middleware.RequireUser()
	staff := middleware.RequireStaff()

	api := app.Group("/api", middleware.Auth(d.Auth, false))

	auth := api.Group("/auth", middleware.RateLimit(d.Limiter, rate))
	auth.Post("/register", Register(d.Auth))
	auth.Post("/login", Login(d.Auth))
	auth.Post("/verify-email", VerifyEmail(d.Auth))
	auth.Post("/password-reset", RequestPasswordReset(d.Auth))
	auth.Post("/password-reset/confirm", ConfirmPasswordReset(d.Auth))

	api.Get("/users/me", user, Me(d.Auth))
	api.Patch("/users/me", user, UpdateMe(d.Auth))

	for _, kind := range model.Kinds {
		registerListingRoutes(api.Group("/"+kind.Plural()), d, kind, user)
	}

	api.Get("/search", Search(d.Listings))

	mod := api.Group("/moderation", staff)
	mod.Get("/listings", ListModerationQueue(d.Listings))
	mod.Get("/comments", ListPendingComments(d.Comments))

	api.Post("/comments/:id/approve", staff, ModerateComment(d.Comments, true))
	api.Post("/comments/:id/reject", staff, ModerateComment(d.Comments, false))
	api.Delete("/comments/:id", user, DeleteComment(d.Comments))

	for path, kind := range map[string]model.TaxonomyKind{"/categories": model.TaxonomyCategory, "/types": model.TaxonomyType} {
		api.Get(path, TaxonomyTree(d.Taxonomy, kind))
		api.Post(path, staff, CreateTaxonomy(d.Taxonomy, kind))
		api.Delete(path+"/:id", staff, DeleteTaxonomy(d.Taxonomy, kind))
	}

	api.Get("/favorites", user, ListFavorites(d.Favorites))

	notifications := api.Group("/notifications", user)
	notifications.Get("/", ListNotifications(d.Notifications))
	notifications.Get("/unread-count", UnreadCount(d.Notifications))
	notifications.Post("/read-all", MarkAllNotificationsRead(d.Notifications))
	notifications.Post("/:id/read", MarkNotificationRead(d.Notifications))

	chats := api.Group("/chats", user)
	chats.Get("/", ListChats(d.Chats))
	chats.Post("/", StartChat(d.Chats))
	chats.Get("/:id/messages", ListMessages(d.Chats))
	chats.Post("/:id/messages", SendMessage(d.Chats))

	if d.Hub != nil {
		ws := app.Group("/ws", middleware.Auth(d.Auth, false), realtime.Upgrade())
		ws.Get("/chat/:id", realtime.ChatGuard(d.Chats), realtime.Chat(d.Hub, d.Chats, log))
		ws.Get("/notifications", realtime.Notifications(d.Hub, log))
	}
}

func registerListingRoutes(r fiber.Router, d Deps, kind model.Kind, user fiber.Handler) {
	r.Get("/", ListListings(d.Listings, kind))
	r.Post("/", user, CreateListing(d.Listings, kind))
	r.Get("/my", user, ListMyListings(d.Listings, kind))
	r.Get("/:id", GetListing(d.Listings, kind))
	r.Patch("/:id", user, UpdateListing(d.Listings, kind))
	r.Delete("/:id", user, DeleteListing(d.Listings, kind))

	for _, action := range []model.Action{
		model.ActionModerate, model.ActionApprove, model.ActionReject,
		model.ActionHide, model.ActionPublish, model.ActionCancel,
	} {
		r.Post("/:id/"+string(action), user, Transition(d.Listings, kind, action))
	}

	r.Post("/:id/add-to-favorites", user, AddFavorite(d.Favorites, kind))
	r.Delete("/:id/remove-from-favorites", user, RemoveFavorite(d.Favorites, kind))

	r.Get("/:id/comments", ListComments(d.Comments, kind))
	r.Post("/:id/comments", user, CreateComment(d.Comments, kind))

	r.Post("/:id/images", user, UploadImage(d.Listings, kind))
	r.Delete("/:id/images/:image_id", user, DeleteImage(d.Listings, kind))
}
