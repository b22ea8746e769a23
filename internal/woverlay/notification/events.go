package notification

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents types of lifecycle events
type EventType string

const (
	EventConnected    EventType = "CONNECTED"
	EventDisconnected EventType = "DISCONNECTED"
	EventRendered     EventType = "RENDERED"
	EventAcknowledged EventType = "ACKNOWLEDGED"
	EventSuperseded   EventType = "SUPERSEDED"
	EventAbandoned    EventType = "ABANDONED"
	EventDropped      EventType = "DROPPED"
)

// Event is one lifecycle transition observed by the controller
type Event struct {
	ID             uuid.UUID
	Type           EventType
	NotificationID uuid.UUID
	Kind           Kind
	Trigger        Trigger
	Timestamp      time.Time
	Detail         string
}

// NewEvent creates an event with a fresh ID
func NewEvent(t EventType, at time.Time) Event {
	return Event{
		ID:        uuid.New(),
		Type:      t,
		Timestamp: at,
	}
}
