// Package notification implements the overlay notification domain model
package notification

import (
	"fmt"
	"time"
)

// Kind selects how completion of a notification is detected
type Kind string

const (
	// KindTimed completes after a fixed dwell time
	KindTimed Kind = "TIMED"
	// KindMediaGated completes when the notification's video ends
	KindMediaGated Kind = "MEDIA_GATED"
	// KindUnknown is any unrecognised type; it behaves like KindTimed
	KindUnknown Kind = "UNKNOWN"
)

// State represents the lifecycle state of the active notification
type State string

const (
	// StateIdle indicates nothing is on screen
	StateIdle State = "IDLE"
	// StateRendering indicates surfaces are being configured
	StateRendering State = "RENDERING"
	// StateWaiting indicates a completion trigger is armed
	StateWaiting State = "WAITING"
	// StateAcknowledged indicates FINISHED was sent and surfaces are clearing
	StateAcknowledged State = "ACKNOWLEDGED"
)

// Trigger names the mechanism that completes a notification
type Trigger string

const (
	// TriggerNone means no trigger is armed
	TriggerNone Trigger = ""
	// TriggerTimer is the fixed dwell timer
	TriggerTimer Trigger = "TIMER"
	// TriggerMediaEnded is the video end-of-playback signal
	TriggerMediaEnded Trigger = "MEDIA_ENDED"
)

// DefaultDwell is how long timed notifications stay on screen
const DefaultDwell = 2 * time.Second

// Point is a pixel position relative to the top-left of the overlay
type Point struct {
	X float64
	Y float64
}

// String renders the point the way it is logged
func (p Point) String() string {
	return fmt.Sprintf("(%g,%g)", p.X, p.Y)
}

// Size is a pixel extent
type Size struct {
	Width  float64
	Height float64
}

// String renders the size the way it is logged
func (s Size) String() string {
	return fmt.Sprintf("%gx%g", s.Width, s.Height)
}

// Caption is a text overlay drawn at an absolute position
type Caption struct {
	Text     string
	Position Point
}

// Sound is an audio clip played at a given gain
type Sound struct {
	Source string
	Volume float64
}

// VideoClip is a video drawn at an absolute position and size
type VideoClip struct {
	Source   string
	Volume   float64
	Position Point
	Size     Size
}

// Descriptor is one decoded notification. Channels that are nil are absent;
// decoding only fills in a channel when all of its companion fields are present.
type Descriptor struct {
	Kind    Kind
	Caption *Caption
	Sound   *Sound
	Video   *VideoClip
}

// GatesOnMedia reports whether completion should wait for the video to end.
// A media-gated descriptor without a video falls back to the dwell timer.
func (d Descriptor) GatesOnMedia() bool {
	return d.Kind == KindMediaGated && d.Video != nil
}

// Empty reports whether the descriptor renders nothing
func (d Descriptor) Empty() bool {
	return d.Caption == nil && d.Sound == nil && d.Video == nil
}
