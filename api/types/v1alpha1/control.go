package v1alpha1

// NotificationType is the numeric trigger type carried in the "type" field
type NotificationType int

const (
	// NotificationTypeTimed shows the notification for a fixed dwell time
	NotificationTypeTimed NotificationType = 1
	// NotificationTypeMediaGated shows the notification until its video ends
	NotificationTypeMediaGated NotificationType = 2
)

// AckFinished is the only message a display sends back over the control socket.
// The source waits for it before sending the next notification.
const AckFinished = "FINISHED"

// NotificationMessage is one inbound notification as sent by the event source.
//
// Companion fields (positions, sizes, volumes) are only meaningful when the
// channel they belong to is set. Coordinates are pixels relative to the
// top-left corner of the overlay.
type NotificationMessage struct {
	// MessageDisplayed is the caption to draw
	MessageDisplayed *string `json:"message_displayed,omitempty"`
	// MessageDisplayedPosition is the caption position as [x, y]
	MessageDisplayedPosition []float64 `json:"message_displayed_position,omitempty"`
	// PlayedSound is the URI of an audio clip
	PlayedSound *string `json:"played_sound,omitempty"`
	// PlayedSoundVolume is the audio gain in [0, 1]
	PlayedSoundVolume *float64 `json:"played_sound_volume,omitempty"`
	// PlayedVideo is the URI of a video clip
	PlayedVideo *string `json:"played_video,omitempty"`
	// PlayedVideoVolume is the video gain in [0, 1]
	PlayedVideoVolume *float64 `json:"played_video_volume,omitempty"`
	// PlayedVideoPosition is the video position as [x, y]
	PlayedVideoPosition []float64 `json:"played_video_position,omitempty"`
	// PlayedVideoSize is the video size as [width, height]
	PlayedVideoSize []float64 `json:"played_video_size,omitempty"`
	// Type selects how completion is detected
	Type NotificationType `json:"type"`
}
