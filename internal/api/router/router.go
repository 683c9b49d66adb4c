// Package router assembles the HTTP surface: booking intake, coach decision
// links, the payment webhook, health, and metrics.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/slotleaf/booking-platform/internal/booking"
	"github.com/slotleaf/booking-platform/internal/decision"
	httpmiddleware "github.com/slotleaf/booking-platform/internal/http/middleware"
	"github.com/slotleaf/booking-platform/internal/payments"
	"github.com/slotleaf/booking-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	BookingHandler     *booking.Handler
	DecisionHandler    *decision.Handler
	PaymentWebhook     *payments.WebhookHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Intake rate limiting; zero rate disables it.
	IntakeRatePerSec float64
	IntakeBurst      int
}

// New creates a chi router with all routes configured.
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

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.BookingHandler != nil {
		if cfg.IntakeRatePerSec > 0 {
			r.With(httpmiddleware.RateLimit(cfg.IntakeRatePerSec, cfg.IntakeBurst)).
				Post("/bookings", cfg.BookingHandler.CreateBooking)
		} else {
			r.Post("/bookings", cfg.BookingHandler.CreateBooking)
		}
	}
	if cfg.DecisionHandler != nil {
		r.Get("/decisions", cfg.DecisionHandler.HandleDecision)
	}
	if cfg.PaymentWebhook != nil {
		r.Post("/payment-webhook", cfg.PaymentWebhook.Handle)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
