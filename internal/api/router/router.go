package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/cosmetica/clinic-booking/internal/http/middleware"
	"github.com/cosmetica/clinic-booking/internal/http/handlers"
	"github.com/cosmetica/clinic-booking/internal/messaging"
	"github.com/cosmetica/clinic-booking/internal/notify"
	"github.com/cosmetica/clinic-booking/internal/reservations"
	"github.com/cosmetica/clinic-booking/pkg/logging"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Bookings           *reservations.Handler
	Notifications      *notify.Handler
	DeliveryStatus     *messaging.StatusHandler
	AdminBookings      *handlers.AdminReservationsHandler
	AdminSession       *handlers.AdminSessionHandler
	Sessions           httpmiddleware.SessionValidator
	// PublicWrites limits booking and cancellation submissions per client IP.
	PublicWrites       *httpmiddleware.RateLimiter
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	Database           Pinger
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	limitWrites := func(next http.Handler) http.Handler { return next }
	if cfg.PublicWrites != nil {
		limitWrites = cfg.PublicWrites.Middleware
	}

	r.Get("/health", healthHandler(cfg.Database))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Bookings != nil {
		r.Route("/api", func(api chi.Router) {
			api.Get("/availability", cfg.Bookings.Availability)
			api.With(limitWrites).Post("/bookings", cfg.Bookings.CreateBooking)
		})
	}

	r.Route("/functions", func(fn chi.Router) {
		if cfg.Bookings != nil {
			fn.With(limitWrites).Post("/cancel-booking", cfg.Bookings.CancelBooking)
			fn.Get("/cleanup-past-bookings", cfg.Bookings.CleanupPastBookings)
			fn.Post("/cleanup-past-bookings", cfg.Bookings.CleanupPastBookings)
		}
		if cfg.Notifications != nil {
			fn.Post("/send-whatsapp", cfg.Notifications.SendWhatsApp)
		}
	})

	if cfg.DeliveryStatus != nil {
		r.Post("/webhooks/twilio/status", cfg.DeliveryStatus.TwilioStatus)
	}

	r.Route("/admin", func(admin chi.Router) {
		if cfg.AdminSession != nil {
			admin.With(limitWrites).Post("/login", cfg.AdminSession.Login)
			admin.Post("/logout", cfg.AdminSession.Logout)
			admin.Get("/session", cfg.AdminSession.Session)
		}
		if cfg.AdminBookings == nil {
			return
		}
		admin.Group(func(protected chi.Router) {
			protected.Use(httpmiddleware.AdminSession(cfg.Sessions))
			protected.Route("/reservations", func(res chi.Router) {
				res.Get("/", cfg.AdminBookings.ListReservations)
				res.Post("/", cfg.AdminBookings.CreateReservation)
				res.Get("/{id}", cfg.AdminBookings.GetReservation)
				res.Put("/{id}", cfg.AdminBookings.UpdateReservation)
				res.Delete("/{id}", cfg.AdminBookings.DeleteReservation)
			})
			protected.Route("/blocked-dates", func(bd chi.Router) {
				bd.Get("/", cfg.AdminBookings.ListBlockedDates)
				bd.Post("/", cfg.AdminBookings.BlockDate)
				bd.Delete("/{id}", cfg.AdminBookings.UnblockDate)
			})
		})
	})

	return r
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
