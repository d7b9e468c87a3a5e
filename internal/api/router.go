package api

import (
	"log/slog"

	"github.com/ecoenergy/eco-energy/internal/alerts"
	"github.com/ecoenergy/eco-energy/internal/api/handlers"
	"github.com/ecoenergy/eco-energy/internal/api/middleware"
	"github.com/ecoenergy/eco-energy/internal/auth"
	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/ecoenergy/eco-energy/internal/inventory"
	"github.com/ecoenergy/eco-energy/internal/tasks"
	"github.com/ecoenergy/eco-energy/pkg/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	// loginAttemptsPerMinute bounds password guessing per client IP.
	loginAttemptsPerMinute = 10
	measurementsPerMinute  = 120
)

type Router struct {
	chi.Router
	limiters []*middleware.RateLimiter
}

// Close stops background goroutines owned by the router.
func (r *Router) Close() {
	for _, l := range r.limiters {
		l.Stop()
	}
}

func (r *Router) limiter(requests, windowSeconds int) *middleware.RateLimiter {
	l := middleware.NewRateLimiter(requests, windowSeconds)
	r.limiters = append(r.limiters, l)
	return l
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	AuthService    *auth.Service
	Enqueuer       tasks.Enqueuer // nil disables on-change re-evaluation
	HTTPMetrics    *metrics.HTTPMetrics
	DomainMetrics  *metrics.DomainMetrics
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
	CSRFSecret     string
	DisableCSRF    bool
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()
	router := &Router{Router: r}

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	if cfg.HTTPMetrics != nil {
		r.Use(middleware.Metrics(cfg.HTTPMetrics))
	}

	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.LimitByIP(router.limiter(cfg.RateLimitReqs, cfg.RateLimitSecs)))
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Auth-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	var csrf *middleware.CSRFGuard
	if !cfg.DisableCSRF {
		csrf = middleware.NewCSRFGuard(cfg.CSRFSecret)
		r.Use(middleware.CSRF(csrf))
	}

	// Services
	inventoryService := inventory.NewService(cfg.DB, cfg.Logger)
	alertService := alerts.NewService(cfg.DB, cfg.Logger, cfg.DomainMetrics)

	// Handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, csrf, cfg.Logger)
	meHandler := handlers.NewMeHandler(cfg.AuthService, cfg.Logger)
	dashboardHandler := handlers.NewDashboardHandler(cfg.DB, cfg.Logger)
	organizationHandler := handlers.NewOrganizationHandler(cfg.DB, inventoryService, cfg.Logger)
	catalogHandler := handlers.NewCatalogHandler(cfg.DB, inventoryService, cfg.Logger)
	zoneHandler := handlers.NewZoneHandler(cfg.DB, inventoryService, cfg.Logger)
	deviceHandler := handlers.NewDeviceHandler(cfg.DB, inventoryService, cfg.Logger)
	measurementHandler := handlers.NewMeasurementHandler(cfg.DB, inventoryService, alertService, cfg.Logger)
	alertRuleHandler := handlers.NewAlertRuleHandler(alertService, cfg.Enqueuer, cfg.Logger)
	userHandler := handlers.NewUserHandler(cfg.DB, cfg.AuthService, cfg.Logger)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", metrics.Handler())

	globalOnly := middleware.RequireRole(models.RoleGlobalAdmin)
	managers := middleware.RequireRole(models.RoleGlobalAdmin, models.RoleOrgAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.LimitByIP(router.limiter(loginAttemptsPerMinute, 60))).Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))
			r.Use(middleware.Scope(cfg.DB))

			r.Get("/auth/csrf", authHandler.CSRFToken)
			r.Get("/me", meHandler.Get)
			r.Put("/me", meHandler.Update)
			r.Get("/dashboard", dashboardHandler.Index)

			r.Route("/organizations", func(r chi.Router) {
				r.Get("/", organizationHandler.List)
				r.Get("/{id}", organizationHandler.Get)
				r.With(globalOnly).Post("/", organizationHandler.Create)
				r.With(globalOnly).Put("/{id}", organizationHandler.Update)
				r.With(globalOnly).Delete("/{id}", organizationHandler.Delete)
			})

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", catalogHandler.ListCategories)
				r.With(globalOnly).Post("/", catalogHandler.CreateCategory)
				r.With(globalOnly).Put("/{id}", catalogHandler.UpdateCategory)
				r.With(globalOnly).Delete("/{id}", catalogHandler.DeleteCategory)
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", catalogHandler.ListProducts)
				r.Get("/{id}", catalogHandler.GetProduct)
				r.With(globalOnly).Post("/", catalogHandler.CreateProduct)
				r.With(globalOnly).Put("/{id}", catalogHandler.UpdateProduct)
				r.With(globalOnly).Delete("/{id}", catalogHandler.DeleteProduct)
			})

			r.Route("/zones", func(r chi.Router) {
				r.Get("/", zoneHandler.List)
				r.Get("/{id}", zoneHandler.Get)
				r.With(managers).Post("/", zoneHandler.Create)
				r.With(managers).Put("/{id}", zoneHandler.Update)
				r.With(managers).Delete("/{id}", zoneHandler.Delete)
			})

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", deviceHandler.List)
				r.Get("/export", deviceHandler.Export)
				r.Get("/{id}", deviceHandler.Get)
				r.With(managers).Post("/", deviceHandler.Create)
				r.With(managers).Put("/{id}", deviceHandler.Update)
				r.With(managers).Delete("/{id}", deviceHandler.Delete)
				r.With(managers, middleware.LimitByUser(router.limiter(measurementsPerMinute, 60))).Post("/{id}/measurements", measurementHandler.Create)
			})

			r.Route("/measurements", func(r chi.Router) {
				r.Get("/", measurementHandler.List)
				r.Get("/{id}", measurementHandler.Get)
			})

			r.Route("/alert-rules", func(r chi.Router) {
				r.Get("/", alertRuleHandler.List)
				r.Get("/{id}", alertRuleHandler.Get)
				r.With(globalOnly).Post("/", alertRuleHandler.Create)
				r.With(globalOnly).Put("/{id}", alertRuleHandler.Update)
				r.With(globalOnly).Delete("/{id}", alertRuleHandler.Delete)
				r.With(globalOnly).Put("/{id}/overrides", alertRuleHandler.SetOverride)
				r.With(globalOnly).Delete("/{id}/overrides/{productID}", alertRuleHandler.DeleteOverride)
			})

			r.Route("/users", func(r chi.Router) {
				r.Use(managers)
				r.Get("/", userHandler.List)
				r.Get("/{id}", userHandler.Get)
				r.With(globalOnly).Post("/", userHandler.Create)
				r.With(globalOnly).Put("/{id}", userHandler.Update)
				r.With(globalOnly).Delete("/{id}", userHandler.Delete)
			})
		})
	})

	return router
}
