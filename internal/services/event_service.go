package services

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avendel/worldvault/internal/models"
	ws "github.com/avendel/worldvault/internal/websocket"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(eventType, level, message string, worldName *string) error
	GetRecentEvents(limit int) ([]models.Event, error)
}

// EventService records system events and pushes them to connected clients.
// Events are the notification surface the GUI shell listens on; backup
// inventory itself never lives in the database.
type EventService struct {
	db  *sql.DB
	hub *ws.Hub
}

// NewEventService creates a new EventService. The hub may be nil when no
// websocket layer is running (tests, one-shot invocations).
func NewEventService(db *sql.DB, hub *ws.Hub) *EventService {
	return &EventService{db: db, hub: hub}
}

// CreateEvent logs a new event to the database and broadcasts it.
func (s *EventService) CreateEvent(eventType, level, message string, worldName *string) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		WorldName: worldName,
		CreatedAt: time.Now(),
	}

	stmt, err := s.db.Prepare("INSERT INTO events (id, type, level, message, world_name, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	if _, err := stmt.Exec(event.ID, event.Type, event.Level, event.Message, event.WorldName, event.CreatedAt); err != nil {
		return err
	}

	s.broadcast(event)
	return nil
}

// GetRecentEvents retrieves the most recent events from the database.
func (s *EventService) GetRecentEvents(limit int) ([]models.Event, error) {
	rows, err := s.db.Query("SELECT id, type, level, message, world_name, created_at FROM events ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var event models.Event
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &event.WorldName, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *EventService) broadcast(event models.Event) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(ws.Message{Action: "event", Payload: event})
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode event for broadcast")
		return
	}
	if event.WorldName != nil {
		// World-scoped events go to that world's subscribers and to clients
		// watching everything; system-wide events go to every client.
		s.hub.BroadcastTo(*event.WorldName, payload)
		s.hub.BroadcastTo(ws.GlobalScope, payload)
	} else {
		s.hub.Broadcast <- payload
	}
}
