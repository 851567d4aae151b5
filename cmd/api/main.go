package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cosmetica/clinic-booking/cmd/mainconfig"
	"github.com/cosmetica/clinic-booking/internal/api/router"
	"github.com/cosmetica/clinic-booking/internal/app/bootstrap"
	"github.com/cosmetica/clinic-booking/internal/auth"
	appconfig "github.com/cosmetica/clinic-booking/internal/config"
	"github.com/cosmetica/clinic-booking/internal/http/handlers"
	httpmiddleware "github.com/cosmetica/clinic-booking/internal/http/middleware"
	"github.com/cosmetica/clinic-booking/internal/messaging"
	"github.com/cosmetica/clinic-booking/internal/notify"
	"github.com/cosmetica/clinic-booking/internal/observability/metrics"
	"github.com/cosmetica/clinic-booking/internal/reservations"
	"github.com/cosmetica/clinic-booking/internal/slots"
	"github.com/cosmetica/clinic-booking/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if err := cfg.ValidateAPI(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := slots.ValidateCatalog(slots.DefaultCatalog); err != nil {
		logger.Error("invalid slot catalog", "error", err)
		os.Exit(1)
	}
	if cfg.NotifyAPIToken == "" {
		logger.Warn("NOTIFY_API_TOKEN not set; send-whatsapp endpoint is unauthenticated")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Error("redis is required for admin sessions")
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	var awsCfg *aws.Config
	if mainconfig.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		awsCfg = &loaded
	}

	metricsHandler, bookingMetrics := setupMetrics()

	notifications, err := bootstrap.BuildNotifications(cfg, awsCfg, bookingMetrics, logger, false)
	if err != nil {
		logger.Error("failed to set up notifications", "error", err)
		os.Exit(1)
	}
	workerCtx, stopWorker := context.WithCancel(context.Background())
	if notifications.Worker != nil {
		notifications.Worker.Start(workerCtx)
	}

	svc := reservations.NewService(reservations.NewPostgresRepository(pool), logger,
		reservations.WithNotifier(notifications.Publisher),
		reservations.WithMetrics(bookingMetrics),
		reservations.WithNotifyTimeout(cfg.NotifyTimeout),
	)

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer func() { _ = sqlDB.Close() }()
	sessions := auth.NewService(auth.NewUserStore(sqlDB), redisClient, cfg.AdminJWTSecret, cfg.AdminSessionTTL, logger)

	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	defer stopLimiter()

	srv := newServer(cfg, &router.Config{
		Logger:             logger,
		Bookings:           reservations.NewHandler(svc, cfg.CronSecret, cfg.ClinicContactPhone, logger),
		Notifications:      notify.NewHandler(notifications.Dispatcher, cfg.NotifyAPIToken, logger),
		DeliveryStatus:     messaging.NewStatusHandler(cfg.TwilioAuthToken, bookingMetrics, logger),
		AdminBookings:      handlers.NewAdminReservationsHandler(svc, logger),
		AdminSession:       handlers.NewAdminSessionHandler(sessions, logger),
		Sessions:           sessions,
		PublicWrites:       httpmiddleware.NewRateLimiter(limiterCtx, cfg.RateLimitRPS, cfg.RateLimitBurst),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Database:           pool,
	})

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Drain fire-and-forget sends before stopping the in-process worker.
	svc.WaitNotifications()
	stopWorker()
	if notifications.Worker != nil {
		notifications.Worker.Wait()
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (http.Handler, *metrics.BookingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewBookingMetrics(reg)
}

func newServer(cfg *appconfig.Config, routerCfg *router.Config) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
