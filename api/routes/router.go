package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/courseshare/courseshare-backend/api/controllers"
	chatcontrollers "github.com/courseshare/courseshare-backend/api/controllers/chat"
	documentcontrollers "github.com/courseshare/courseshare-backend/api/controllers/documents"
	ridecontrollers "github.com/courseshare/courseshare-backend/api/controllers/rides"
	subscriptioncontrollers "github.com/courseshare/courseshare-backend/api/controllers/subscriptions"
	webhookcontrollers "github.com/courseshare/courseshare-backend/api/controllers/webhooks"
	"github.com/courseshare/courseshare-backend/api/middleware"
	"github.com/courseshare/courseshare-backend/internal/auth"
	"github.com/courseshare/courseshare-backend/internal/chat"
	"github.com/courseshare/courseshare-backend/internal/documents"
	"github.com/courseshare/courseshare-backend/internal/rides"
	"github.com/courseshare/courseshare-backend/internal/subscriptions"
	"github.com/courseshare/courseshare-backend/pkg/config"
	"github.com/courseshare/courseshare-backend/pkg/enums"
	"github.com/courseshare/courseshare-backend/pkg/logger"
	"github.com/courseshare/courseshare-backend/pkg/metrics"
	pkgredis "github.com/courseshare/courseshare-backend/pkg/redis"
	"github.com/stripe/stripe-go/v76"
)

// Store backs rate limiting and idempotency. *redis.Client satisfies it.
type Store interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

type stripeVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type stripeGuard interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Services is everything the HTTP surface dispatches to. A nil service answers
// its routes with an internal error instead of panicking.
type Services struct {
	Auth          auth.Service
	Rides         rides.Service
	Chat          chat.Service
	Documents     documents.Service
	Notifications controllers.NotificationsService
	Subscriptions subscriptions.Service
	StripeEvents  webhookcontrollers.StripeWebhookService
	StripeVerify  stripeVerifier
	StripeGuard   stripeGuard
}

// Dependencies are the infrastructure pieces the router needs.
type Dependencies struct {
	Store    Store
	Checks   map[string]controllers.Pinger
	Gatherer prometheus.Gatherer
	HTTP     *metrics.HTTPMetrics
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTP),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	acceptPolicy := middleware.NewUserRateLimitPolicy(
		"accept",
		cfg.AuthRateLimit.AcceptWindow,
		cfg.AuthRateLimit.AcceptUserLimit,
	)
	idempotent := middleware.Idempotency(deps.Store, middleware.DefaultIdempotencyTTL, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Checks))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	optionalAuth := middleware.OptionalAuth(cfg.JWT, logg)
	requireAuth := middleware.Auth(cfg.JWT, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(svc.StripeEvents, svc.StripeVerify, svc.StripeGuard, logg))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimit(loginPolicy, deps.Store, logg)).Post("/login", controllers.AuthLogin(svc.Auth, logg))
			r.With(middleware.RateLimit(registerPolicy, deps.Store, logg)).Post("/register", controllers.AuthRegister(svc.Auth, logg))
		})

		r.With(requireAuth).Get("/me", controllers.AuthMe(svc.Auth, logg))

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth, middleware.RequireRole(enums.UserRoleAdmin, logg))
			r.Get("/users/{userId}", controllers.AdminUser(svc.Auth, logg))
		})

		r.Route("/rides", func(r chi.Router) {
			r.With(optionalAuth).Get("/", ridecontrollers.List(svc.Rides, logg))
			r.With(requireAuth, idempotent).Post("/", ridecontrollers.Create(svc.Rides, logg))
			r.With(requireAuth).Get("/mine/{scope}", ridecontrollers.Mine(svc.Rides, logg))

			r.Route("/{rideId:[0-9]+}", func(r chi.Router) {
				r.With(optionalAuth).Get("/", ridecontrollers.Get(svc.Rides, logg))

				r.Group(func(r chi.Router) {
					r.Use(requireAuth)
					r.With(middleware.RateLimit(acceptPolicy, deps.Store, logg), idempotent).Post("/accept", ridecontrollers.Accept(svc.Rides, logg))
					r.Patch("/status", ridecontrollers.UpdateStatus(svc.Rides, logg))
					r.Delete("/", ridecontrollers.Delete(svc.Rides, logg))

					r.Get("/messages", chatcontrollers.ListMessages(svc.Chat, logg))
					r.With(idempotent).Post("/messages", chatcontrollers.SendMessage(svc.Chat, logg))

					r.Get("/documents", documentcontrollers.List(svc.Documents, logg))
					r.With(idempotent).Post("/documents", documentcontrollers.Upload(svc.Documents, logg))
				})
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Route("/messages/{messageId}", func(r chi.Router) {
				r.Delete("/", chatcontrollers.DeleteMessage(svc.Chat, logg))
				r.Get("/attachment", chatcontrollers.DownloadAttachment(svc.Chat, logg))
			})

			r.Route("/documents/{documentId}", func(r chi.Router) {
				r.Get("/", documentcontrollers.Download(svc.Documents, logg))
				r.Delete("/", documentcontrollers.Delete(svc.Documents, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(svc.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svc.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(svc.Notifications, logg))
			})
		})

		r.Route("/subscription", func(r chi.Router) {
			r.Get("/plans", subscriptioncontrollers.Plans(svc.Subscriptions, logg))
			r.With(requireAuth).Get("/", subscriptioncontrollers.Fetch(svc.Subscriptions, logg))
			r.With(requireAuth, idempotent).Post("/checkout", subscriptioncontrollers.Checkout(svc.Subscriptions, logg))
		})
	})

	return r
}
