package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cosmetica/clinic-booking/cmd/mainconfig"
	"github.com/cosmetica/clinic-booking/internal/app/bootstrap"
	appconfig "github.com/cosmetica/clinic-booking/internal/config"
	"github.com/cosmetica/clinic-booking/internal/observability/metrics"
	"github.com/cosmetica/clinic-booking/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting notification worker", "env", cfg.Env)

	if cfg.UseMemoryQueue {
		logger.Error("USE_MEMORY_QUEUE is set; the API runs notifications in-process")
		os.Exit(1)
	}
	if err := cfg.ValidateMessaging(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateEmail(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	notifications, err := bootstrap.BuildNotifications(cfg, &awsCfg, metrics.NewBookingMetrics(nil), logger, true)
	if err != nil {
		logger.Error("failed to set up notifications", "error", err)
		os.Exit(1)
	}

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	notifications.Worker.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("notification worker stopped")
}
