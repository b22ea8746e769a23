package notification

import (
	"context"
	"time"
)

// TextSurface draws a caption at an absolute position in the fixed display style
type TextSurface interface {
	Show(text string, at Point) error
	Clear()
}

// AudioSurface plays one audio clip at a time
type AudioSurface interface {
	Play(src string, volume float64) error
	Stop()
}

// VideoSurface plays one video clip at a time at a position and size.
//
// OnEnded registers the single end-of-playback handler for the current clip and
// returns a function that unregisters it. Registering after the clip already
// ended invokes the handler straight away, but never on the caller's goroutine:
// the caller may be the loop the handler reports to. Handlers may run on any
// other goroutine.
type VideoSurface interface {
	Play(clip VideoClip) error
	OnEnded(fn func()) (cancel func())
	Stop()
}

// Indicator toggles between the overlay and the "connection lost" banner
type Indicator interface {
	SetConnected(connected bool)
}

// Surfaces groups the display resources owned by the controller
type Surfaces struct {
	Text      TextSurface
	Audio     AudioSurface
	Video     VideoSurface
	Indicator Indicator
}

// Sender delivers outbound control messages to the event source
type Sender interface {
	Send(payload []byte) error
}

// EventPublisher receives lifecycle events. Implementations must not block the caller for long.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Recorder receives lifecycle measurements
type Recorder interface {
	NotificationReceived(kind Kind)
	NotificationAcknowledged(trigger Trigger, shown time.Duration)
	NotificationSuperseded()
	NotificationAbandoned()
	PayloadDropped()
	ConnectionChanged(connected bool)
}

// Timer is a pending callback that can be cancelled
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is the wall clock
type SystemClock struct{}

// Now returns the current time
func (SystemClock) Now() time.Time { return time.Now() }

// AfterFunc calls f on its own goroutine once d elapses
func (SystemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
