// Package main runs standalone campaign dispatch workers against the Redis queue.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"email-marketing-backend/internal/config"
	"email-marketing-backend/internal/database"
	"email-marketing-backend/internal/dispatch"
	"email-marketing-backend/internal/logger"
	"email-marketing-backend/internal/mailer"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	logger.Setup(cfg.LogLevel)

	if cfg.QueueBackend != "redis" {
		logrus.Fatal("The standalone worker requires QUEUE_BACKEND=redis; the memory queue is consumed by the API server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Initialize(cfg.DatabaseURL, &database.Options{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
		SkipMigrate:  true,
	})
	if err != nil {
		logrus.Fatal("Failed to initialize database:", err)
	}

	transport, err := mailer.New(ctx, cfg)
	if err != nil {
		logrus.Fatal("Failed to initialize mail transport:", err)
	}

	dispatchRuntime, err := dispatch.NewRuntime(ctx, cfg, db, transport, dispatch.DefaultMetrics())
	if err != nil {
		logrus.Fatal("Failed to initialize dispatch queue:", err)
	}
	if err := dispatchRuntime.Start(ctx); err != nil {
		logrus.Fatal("Failed to start dispatch workers:", err)
	}

	// Metrics only; the worker serves no API
	metricsSrv := &http.Server{Addr: ":" + cfg.Port, Handler: promhttp.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("Metrics server stopped")
		}
	}()

	logrus.WithFields(logrus.Fields{
		"workers": cfg.DispatchWorkers,
		"queue":   cfg.DispatchQueue,
	}).Info("Dispatch worker running")

	<-ctx.Done()
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	if err := dispatchRuntime.Close(); err != nil {
		logrus.WithError(err).Error("Dispatch shutdown error")
	}
	if err := database.Close(db); err != nil {
		logrus.WithError(err).Error("Database close error")
	}
	logrus.Info("Worker stopped")
}
