// Package events delivers notification lifecycle events to external sinks
package events

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/wrale/wrale-overlay/internal/woverlay/notification"
)

// DefaultBufferSize is how many events Async holds before dropping
const DefaultBufferSize = 256

// publishTimeout bounds a single delivery to the wrapped sink
const publishTimeout = 5 * time.Second

// Nop discards every event
type Nop struct{}

// Publish does nothing
func (Nop) Publish(context.Context, notification.Event) error { return nil }

// Async queues events for a background worker. Publish never blocks; when the
// queue is full the event is dropped and counted.
type Async struct {
	sink    notification.EventPublisher
	queue   chan notification.Event
	dropped atomic.Uint64
	logger  zerolog.Logger
}

// NewAsync wraps sink with a queue of size events
func NewAsync(sink notification.EventPublisher, size int, logger zerolog.Logger) *Async {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Async{
		sink:   sink,
		queue:  make(chan notification.Event, size),
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// Publish queues e
func (a *Async) Publish(_ context.Context, e notification.Event) error {
	select {
	case a.queue <- e:
	default:
		n := a.dropped.Add(1)
		a.logger.Debug().Str("event", string(e.Type)).Uint64("dropped", n).Msg("event queue full, dropping")
	}
	return nil
}

// Dropped returns how many events were discarded because the queue was full
func (a *Async) Dropped() uint64 {
	return a.dropped.Load()
}

// Run delivers queued events until ctx is cancelled, then drains what is left
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			a.drain()
			return nil
		case e := <-a.queue:
			a.deliver(e)
		}
	}
}

func (a *Async) drain() {
	for {
		select {
		case e := <-a.queue:
			a.deliver(e)
		default:
			return
		}
	}
}

func (a *Async) deliver(e notification.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := a.sink.Publish(ctx, e); err != nil {
		a.logger.Warn().Err(err).Str("event", string(e.Type)).Msg("failed to publish event")
	}
}
