package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	GateEventAdmitted = "guest.admitted"
	GateEventReset    = "event.reset"
)

const (
	PathID    = "id"
	PathToken = "token"
)

// GateEvent is published after an admission or a reset has committed.
type GateEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	GuestID    string    `json:"guest_id,omitempty"`
	Name       string    `json:"nome,omitempty"`
	Room       string    `json:"sala,omitempty"`
	Path       string    `json:"path,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Count      int       `json:"count,omitempty"`
}

func NewAdmittedEvent(guest Guest, path string, at time.Time) GateEvent {
	return GateEvent{
		EventID:    uuid.New().String(),
		Type:       GateEventAdmitted,
		GuestID:    guest.ID,
		Name:       guest.Name,
		Room:       guest.Room,
		Path:       path,
		OccurredAt: at,
	}
}

func NewResetEvent(count int, at time.Time) GateEvent {
	return GateEvent{
		EventID:    uuid.New().String(),
		Type:       GateEventReset,
		OccurredAt: at,
		Count:      count,
	}
}
