package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vitalhub/scheduling-platform/internal/http/handlers"
	httpmiddleware "github.com/vitalhub/scheduling-platform/internal/http/middleware"
	"github.com/vitalhub/scheduling-platform/internal/tenancy"
	"github.com/vitalhub/scheduling-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Appointments       *handlers.AppointmentsHandler
	Availability       *handlers.AvailabilityHandler
	Notifications      *handlers.NotificationsHandler
	Audit              *handlers.AuditHandler
	AuthSecret         string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	HealthCheck        http.HandlerFunc
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		if cfg.HealthCheck != nil {
			public.Get("/health", cfg.HealthCheck)
		} else {
			public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"status":"ok"}`))
			})
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Tenant API (JWT protected)
	r.Route("/api/v1", func(api chi.Router) {
		api.Use(httpmiddleware.TenantAuth(cfg.AuthSecret))

		if cfg.Appointments != nil {
			api.Route("/appointments", func(r chi.Router) {
				r.Post("/", cfg.Appointments.Create)
				r.Get("/", cfg.Appointments.List)
				r.Get("/stats", cfg.Appointments.Stats)
				r.Route("/{appointmentID}", func(r chi.Router) {
					r.Get("/", cfg.Appointments.Get)
					r.Patch("/", cfg.Appointments.Update)
					r.Post("/cancel", cfg.Appointments.Cancel)
				})
			})
			api.Get("/professionals/{professionalID}/slots", cfg.Appointments.Slots)
		}

		if cfg.Availability != nil {
			api.Route("/availability", func(r chi.Router) {
				r.Get("/rules", cfg.Availability.ListRules)
				r.Get("/blocks", cfg.Availability.ListBlocks)

				// Rule and block writes are restricted to staff.
				r.Group(func(staff chi.Router) {
					staff.Use(httpmiddleware.RequireRole(tenancy.RoleProfessional))
					staff.Post("/rules", cfg.Availability.CreateRule)
					staff.Put("/rules/{ruleID}", cfg.Availability.UpdateRule)
					staff.Post("/blocks", cfg.Availability.CreateBlock)
					staff.Delete("/blocks/{blockID}", cfg.Availability.DeleteBlock)
				})
			})
		}

		if cfg.Notifications != nil {
			api.Route("/notifications", func(r chi.Router) {
				r.Get("/", cfg.Notifications.List)
				r.Post("/{notificationID}/read", cfg.Notifications.MarkRead)
			})
		}

		if cfg.Audit != nil {
			api.With(httpmiddleware.RequireRole()).Get("/audit", cfg.Audit.Query)
		}
	})

	return r
}
