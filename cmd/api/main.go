package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slotleaf/booking-platform/internal/api/router"
	"github.com/slotleaf/booking-platform/internal/appointments"
	"github.com/slotleaf/booking-platform/internal/booking"
	"github.com/slotleaf/booking-platform/internal/catalog"
	"github.com/slotleaf/booking-platform/internal/clients"
	appconfig "github.com/slotleaf/booking-platform/internal/config"
	"github.com/slotleaf/booking-platform/internal/decision"
	"github.com/slotleaf/booking-platform/internal/giftcards"
	"github.com/slotleaf/booking-platform/internal/notify"
	"github.com/slotleaf/booking-platform/internal/observability/metrics"
	"github.com/slotleaf/booking-platform/internal/outbox"
	"github.com/slotleaf/booking-platform/internal/payments"
	"github.com/slotleaf/booking-platform/pkg/logging"
)

func main() {
	// .env is a dev convenience; absence is fine.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(reg)

	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	} else {
		logger.Warn("no sendgrid api key configured, emails go to the log")
		sender = notify.NewStubSender(logger)
	}

	outboxStore := outbox.NewStore(pool)
	deliverer := outbox.NewDeliverer(outboxStore, sender, logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxPollInterval).
		WithMetrics(bookingMetrics)

	bookingService := booking.NewService(booking.ServiceConfig{
		Catalog:    catalog.NewRepository(pool),
		Slots:      appointments.NewRepository(pool),
		Clients:    clients.NewRepository(pool),
		Store:      booking.NewStore(pool),
		Outbox:     outboxStore,
		Logger:     logger,
		Metrics:    bookingMetrics,
		BaseURL:    cfg.PublicBaseURL,
		RequestTTL: cfg.BookingRequestTTL,
		StaffEmail: cfg.StaffFallbackEmail,
	})

	resolver := decision.NewResolver(pool, logger).WithMetrics(bookingMetrics)
	sweeper := decision.NewSweeper(pool, logger).WithInterval(cfg.ExpirySweepEvery)

	ledger := giftcards.NewLedger(pool, logger).WithMetrics(bookingMetrics)
	webhook := payments.NewWebhookHandler(
		cfg.PaymentWebhookSecret,
		payments.NewProcessedStore(pool),
		ledger,
		bookingService,
		outboxStore,
		logger,
	)

	r := router.New(&router.Config{
		Logger:             logger,
		BookingHandler:     booking.NewHandler(bookingService, logger),
		DecisionHandler:    decision.NewHandler(resolver, logger),
		PaymentWebhook:     webhook,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		IntakeRatePerSec:   cfg.IntakeRatePerSec,
		IntakeBurst:        cfg.IntakeBurst,
	})

	go deliverer.Start(ctx)
	go sweeper.Start(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
