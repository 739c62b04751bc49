package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"healthnexus-portal/internal/activity"
	"healthnexus-portal/internal/config"
	"healthnexus-portal/internal/logging"
	"healthnexus-portal/internal/models"
	"healthnexus-portal/internal/routes"
)

func main() {
	// Load environment variables. The .env file is optional in containers.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		os.Exit(1)
	}

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	db, err := models.InitDB(models.DatabaseConfig{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Debug:  cfg.Environment == "development" && cfg.Log.Level == "debug",
	})
	if err != nil {
		logger.WithError(err).Fatal("Error connecting to database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := activity.NewHub(32)
	recorder := activity.NewRecorder(db, hub, logger)

	source, err := activity.NewAMQPSource(cfg.RabbitMq, recorder, logger)
	if err != nil {
		logger.WithError(err).Fatal("Error connecting to RabbitMQ")
	}
	if source != nil {
		defer source.Close()
		go func() {
			if err := source.Start(ctx); err != nil {
				logger.WithError(err).Error("activity source stopped")
			}
		}()
	}

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "Cache-Control"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, db, cfg, recorder)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}
	// Activity streams end when the process is asked to stop.
	server.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		logger.WithFields(logrus.Fields{"port": cfg.Port, "db": cfg.Database.Driver}).Info("Server running")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
}
