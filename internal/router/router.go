package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mealdesk/api/internal/clock"
	"github.com/mealdesk/api/internal/config"
	"github.com/mealdesk/api/internal/database"
	"github.com/mealdesk/api/internal/enum"
	"github.com/mealdesk/api/internal/handler"
	"github.com/mealdesk/api/internal/logger"
	mw "github.com/mealdesk/api/internal/middleware"
	"github.com/mealdesk/api/internal/notify"
	"github.com/mealdesk/api/internal/ruleset"
	"github.com/mealdesk/api/internal/service"
	"github.com/mealdesk/api/internal/ws"
)

// Deps are the long-lived components the router wires into handlers.
type Deps struct {
	Pool    *pgxpool.Pool
	Queries *database.Queries
	Hub     *ws.Hub
	Limiter *mw.RateLimiter

	Rules ruleset.Provider
	// RuleEditor is nil when rules come from a static file.
	RuleEditor handler.RuleEditor

	Notifier notify.Notifier
	Clock    clock.Clock
}

// New creates a Chi router with all application routes wired up.
// Applies authentication, kitchen scoping, and role-based middleware as needed.
func New(cfg *config.Config, d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(logger.RequestID)
	r.Use(logger.Requests)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", handler.Health(d.Pool))

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/kitchens/{kid}/bookings", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(d.Hub, cfg.JWTSecret, w, r)
	})

	limit := func(next http.Handler) http.Handler { return next }
	if d.Limiter != nil {
		limit = d.Limiter.Middleware
	}

	// Auth routes (public, strict rate limit tier keyed by client IP)
	r.Group(func(r chi.Router) {
		r.Use(limit)
		authHandler := handler.NewAuthHandler(d.Queries, cfg.JWTSecret)
		authHandler.RegisterRoutes(r)
	})

	// Protected routes (require authentication, rate limited per user)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Use(limit)

		bookingService := service.NewBookingService(
			d.Pool,
			func(db database.DBTX) service.BookingStore {
				return database.New(db)
			},
			d.Rules,
			d.Clock,
			d.Notifier,
		)
		bookingHandler := handler.NewBookingHandler(bookingService)
		r.Route("/bookings", bookingHandler.RegisterRoutes)

		// Kitchen workflow
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleKitchenAdmin, enum.UserRoleSuperAdmin))
			r.Route("/kitchen", bookingHandler.RegisterKitchenRoutes)
		})

		// Kitchen-scoped routes
		r.Route("/kitchens/{kid}", func(r chi.Router) {
			r.Use(mw.RequireKitchen)
			bookingHandler.RegisterKitchenBoardRoutes(r)
		})

		ruleHandler := handler.NewRuleHandler(d.Rules, d.RuleEditor)
		r.Route("/booking-rules", ruleHandler.RegisterRoutes)
	})

	logger.L().Info("router initialized")
	return r
}
