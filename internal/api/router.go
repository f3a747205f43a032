package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/avendel/worldvault/internal/api/handlers"
	"github.com/avendel/worldvault/internal/config"
	"github.com/avendel/worldvault/internal/services"
	"github.com/avendel/worldvault/internal/websocket"
)

// NewRouter creates and configures a new Chi router.
func NewRouter(cfg *config.Config, hub *websocket.Hub, worldService services.WorldServiceProvider, backupService services.BackupServiceProvider, retentionService services.RetentionServiceProvider, eventService services.EventServiceProvider, scheduleService services.ScheduleServiceProvider) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration for development
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"}, // Adjust for your frontend URL
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	worldHandler := handlers.NewWorldHandler(worldService)
	backupHandler := handlers.NewBackupHandler(backupService, worldService, retentionService, cfg.Retention, cfg.SavesRoot)
	retentionHandler := handlers.NewRetentionHandler(retentionService, cfg.Retention)
	eventHandler := handlers.NewEventHandler(eventService)
	scheduleHandler := handlers.NewScheduleHandler(scheduleService, worldService)
	statsHandler := handlers.NewStatsHandler(backupService, cfg.Retention, cfg.BackupsRoot)
	wsHandler := handlers.NewWebSocketHandler(hub)

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket event stream endpoints
		r.Get("/ws", wsHandler.Serve)
		r.Get("/ws/worlds/{name}", wsHandler.Serve)

		r.Route("/worlds", func(r chi.Router) {
			r.Get("/", worldHandler.GetAll)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", worldHandler.Get)
				r.Get("/backups", backupHandler.GetAllForWorld)
				r.Post("/backups", backupHandler.Create)
				r.Get("/schedules", scheduleHandler.GetAllForWorld)
			})
		})

		r.Route("/backups", func(r chi.Router) {
			r.Get("/", backupHandler.GetAll)
			r.Route("/{backupName}", func(r chi.Router) {
				r.Delete("/", backupHandler.Delete)
				r.Post("/restore", backupHandler.Restore)
			})
		})

		r.Route("/retention", func(r chi.Router) {
			r.Get("/policy", retentionHandler.GetPolicy)
			r.Post("/enforce", retentionHandler.Enforce)
		})

		r.Route("/schedules", func(r chi.Router) {
			r.Post("/", scheduleHandler.Create)
			r.Delete("/{id}", scheduleHandler.Delete)
		})

		r.Get("/events", eventHandler.GetRecent)
		r.Get("/storage", statsHandler.GetStorage)
	})

	return r
}
