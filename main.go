package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avendel/worldvault/internal/api"
	"github.com/avendel/worldvault/internal/config"
	"github.com/avendel/worldvault/internal/database"
	"github.com/avendel/worldvault/internal/logger"
	"github.com/avendel/worldvault/internal/monitoring"
	"github.com/avendel/worldvault/internal/services"
	"github.com/avendel/worldvault/internal/websocket"
)

func main() {
	logger.Init()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Ensure the backups directory exists; the saves directory belongs to the
	// game and is only ever read.
	if err := os.MkdirAll(cfg.BackupsRoot, 0755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create backups directory")
	}

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	eventService := services.NewEventService(db, hub)
	worldService := services.NewWorldService(cfg.SavesRoot)
	backupService := services.NewBackupService(cfg.BackupsRoot, worldService, eventService)
	retentionService := services.NewRetentionService(backupService, eventService)
	scheduleService := services.NewScheduleService(db, eventService)

	// Set up and run the background backup scheduler
	scheduler := monitoring.NewScheduler(scheduleService, worldService, backupService, retentionService, eventService, cfg.Retention)
	go scheduler.Run()

	// Set up router
	router := api.NewRouter(cfg, hub, worldService, backupService, retentionService, eventService, scheduleService)

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("saves", cfg.SavesRoot).Str("backups", cfg.BackupsRoot).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe()")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
