package events

import (
	"github.com/google/uuid"

	v1alpha1 "github.com/wrale/wrale-overlay/api/types/v1alpha1"
	"github.com/wrale/wrale-overlay/internal/woverlay/notification"
)

// ToAPI converts a lifecycle event to its published form
func ToAPI(e notification.Event) v1alpha1.OverlayEvent {
	out := v1alpha1.OverlayEvent{
		TypeMeta: v1alpha1.TypeMeta{
			Kind:       "OverlayEvent",
			APIVersion: v1alpha1.APIVersion,
		},
		ID:               e.ID,
		Type:             v1alpha1.OverlayEventType(e.Type),
		NotificationKind: string(e.Kind),
		Trigger:          string(e.Trigger),
		Timestamp:        e.Timestamp.UTC(),
		Detail:           e.Detail,
	}
	if e.NotificationID != uuid.Nil {
		id := e.NotificationID
		out.NotificationID = &id
	}
	return out
}
