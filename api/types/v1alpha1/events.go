package v1alpha1

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OverlayEventType represents types of notification lifecycle events
type OverlayEventType string

const (
	// OverlayEventConnected indicates the control socket came up
	OverlayEventConnected OverlayEventType = "CONNECTED"
	// OverlayEventDisconnected indicates the control socket dropped
	OverlayEventDisconnected OverlayEventType = "DISCONNECTED"
	// OverlayEventRendered indicates a notification is on screen
	OverlayEventRendered OverlayEventType = "RENDERED"
	// OverlayEventAcknowledged indicates FINISHED was sent for a notification
	OverlayEventAcknowledged OverlayEventType = "ACKNOWLEDGED"
	// OverlayEventSuperseded indicates a newer notification replaced an active one
	OverlayEventSuperseded OverlayEventType = "SUPERSEDED"
	// OverlayEventAbandoned indicates a notification was cleared by a disconnect or shutdown
	OverlayEventAbandoned OverlayEventType = "ABANDONED"
	// OverlayEventDropped indicates an inbound payload could not be decoded
	OverlayEventDropped OverlayEventType = "DROPPED"
)

// OverlayEvent is the published form of a notification lifecycle event
type OverlayEvent struct {
	// TypeMeta describes API version details
	TypeMeta `json:",inline"`
	// ID uniquely identifies this event
	ID uuid.UUID `json:"id"`
	// Type indicates what kind of event occurred
	Type OverlayEventType `json:"type"`
	// NotificationID identifies the notification the event is about, if any
	NotificationID *uuid.UUID `json:"notificationId,omitempty"`
	// NotificationKind is the notification trigger kind
	NotificationKind string `json:"notificationKind,omitempty"`
	// Trigger names the completion trigger that was armed or fired
	Trigger string `json:"trigger,omitempty"`
	// Timestamp records when the event occurred
	Timestamp time.Time `json:"timestamp"`
	// Detail carries a short reason for drops and clears
	Detail string `json:"detail,omitempty"`
}

// OverlayEventList holds recently published events, newest first
type OverlayEventList struct {
	// TypeMeta describes API version details
	TypeMeta `json:",inline"`
	// Items are OverlayEvent objects exactly as they were published
	Items []json.RawMessage `json:"items"`
}

// OverlayStatus reports the current controller state
type OverlayStatus struct {
	// TypeMeta describes API version details
	TypeMeta `json:",inline"`
	// Connected reports whether the controller has seen the control socket come up
	Connected bool `json:"connected"`
	// LinkUp reports whether the transport currently holds a connection
	LinkUp *bool `json:"linkUp,omitempty"`
	// State is the lifecycle state of the active notification
	State string `json:"state"`
	// Active describes the notification on screen, if any
	Active *ActiveNotification `json:"active,omitempty"`
	// Counters holds lifetime totals
	Counters OverlayCounters `json:"counters"`
	// UpdatedAt indicates when status was generated
	UpdatedAt time.Time `json:"updatedAt"`
}

// ActiveNotification summarises the notification currently displayed
type ActiveNotification struct {
	ID      uuid.UUID `json:"id"`
	Kind    string    `json:"kind"`
	Trigger string    `json:"trigger"`
	Text    string    `json:"text,omitempty"`
	Sound   string    `json:"sound,omitempty"`
	Video   string    `json:"video,omitempty"`
	Since   time.Time `json:"since"`
}

// OverlayCounters holds lifetime notification totals
type OverlayCounters struct {
	Received     uint64 `json:"received"`
	Acknowledged uint64 `json:"acknowledged"`
	Superseded   uint64 `json:"superseded"`
	Abandoned    uint64 `json:"abandoned"`
	Dropped      uint64 `json:"dropped"`
}
