package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"email-marketing-backend/internal/api/routes"
	"email-marketing-backend/internal/config"
	"email-marketing-backend/internal/database"
	"email-marketing-backend/internal/dispatch"
	"email-marketing-backend/internal/logger"
	"email-marketing-backend/internal/mailer"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	_ "email-marketing-backend/docs" // This is needed for swag
)

//	@title			Email Marketing Backend API
//	@version		1.0
//	@description	Multi-tenant email marketing API: workspaces, contacts, templates and campaigns with asynchronous dispatch.
//	@termsOfService	http://swagger.io/terms/

//	@contact.name	API Support
//	@contact.email	support@example.com

//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT

//	@host		localhost:8000
//	@BasePath	/

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and JWT token.

//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						X-API-Key

const shutdownTimeout = 15 * time.Second

func main() {
	// Load environment variables from .env file in development
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Set up logging
	logger.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL, &database.Options{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
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

	// With the in-memory queue this process is the only consumer
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	if cfg.QueueBackend == "memory" {
		if err := dispatchRuntime.Start(workerCtx); err != nil {
			logrus.Fatal("Failed to start dispatch workers:", err)
		}
		logrus.WithField("workers", cfg.DispatchWorkers).Info("Dispatch workers running in-process")
	}

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router, err := routes.SetupRoutes(db, cfg, routes.Dependencies{
		Queue:     dispatchRuntime.Queue,
		Transport: transport,
	})
	if err != nil {
		logrus.Fatal("Failed to set up routes:", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server shutdown error")
	}

	// Interrupted campaigns stay in sending and are re-enqueued on the next start
	stopWorkers()
	if err := dispatchRuntime.Close(); err != nil {
		logrus.WithError(err).Error("Dispatch shutdown error")
	}
	if err := database.Close(db); err != nil {
		logrus.WithError(err).Error("Database close error")
	}

	logrus.Info("Server stopped")
}
