// Package controller runs the notification lifecycle: render, wait for completion,
// acknowledge. All state is owned by a single event loop; every external signal
// (link up, link down, inbound message, timer, video end) is queued to it.
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	v1alpha1 "github.com/wrale/wrale-overlay/api/types/v1alpha1"
	"github.com/wrale/wrale-overlay/internal/woverlay/notification"
)

// eventQueueSize bounds how many signals may wait for the loop
const eventQueueSize = 64

type eventKind int

const (
	evConnected eventKind = iota
	evDisconnected
	evNotification
	evFired
	evDropped
)

type event struct {
	kind    eventKind
	desc    notification.Descriptor
	gen     uint64
	trigger notification.Trigger
	detail  string
}

type clearReason int

const (
	clearSuperseded clearReason = iota
	clearDisconnected
	clearShutdown
)

// activeNotification is the state of the one notification on screen
type activeNotification struct {
	id      uuid.UUID
	gen     uint64
	desc    notification.Descriptor
	since   time.Time
	state   notification.State
	trigger notification.Trigger
	cancel  func()
}

// Option configures a Controller
type Option func(*Controller)

// WithClock replaces the wall clock used for the dwell timer
func WithClock(clock notification.Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithDwell sets how long timed notifications stay on screen
func WithDwell(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.dwell = d
		}
	}
}

// WithPublisher sets the lifecycle event publisher
func WithPublisher(p notification.EventPublisher) Option {
	return func(c *Controller) {
		c.publisher = p
	}
}

// WithRecorder sets the lifecycle metrics recorder
func WithRecorder(r notification.Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// Controller drives the notification lifecycle against the owned surfaces
type Controller struct {
	surfaces  notification.Surfaces
	sender    notification.Sender
	publisher notification.EventPublisher
	recorder  notification.Recorder
	clock     notification.Clock
	dwell     time.Duration
	logger    zerolog.Logger

	events chan event
	done   chan struct{}

	// Owned by the run loop
	active    *activeNotification
	connected bool
	gen       uint64
	counters  Counters

	snapMu sync.RWMutex
	snap   Snapshot
}

// New creates a controller that renders onto surfaces and acknowledges through sender
func New(surfaces notification.Surfaces, sender notification.Sender, logger zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		surfaces: surfaces,
		sender:   sender,
		recorder: nopRecorder{},
		clock:    notification.SystemClock{},
		dwell:    notification.DefaultDwell,
		logger:   logger.With().Str("component", "controller").Logger(),
		events:   make(chan event, eventQueueSize),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snap = Snapshot{State: notification.StateIdle}
	return c
}

// Run processes queued signals until ctx is cancelled. It must be called once.
// Any notification still on screen at shutdown is cleared without acknowledgment.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)

	c.logger.Info().Dur("dwell", c.dwell).Msg("controller started")
	for {
		select {
		case <-ctx.Done():
			c.clear(clearShutdown)
			c.updateSnapshot()
			c.logger.Info().Msg("controller stopped")
			return nil
		case ev := <-c.events:
			c.handle(ev)
			c.updateSnapshot()
		}
	}
}

// OnConnected reveals the overlay and hides the disconnected indicator
func (c *Controller) OnConnected() {
	c.dispatch(event{kind: evConnected})
}

// OnDisconnected hides the overlay, shows the disconnected indicator and
// abandons any notification in progress without acknowledging it
func (c *Controller) OnDisconnected() {
	c.dispatch(event{kind: evDisconnected})
}

// OnNotification replaces whatever is on screen with d
func (c *Controller) OnNotification(d notification.Descriptor) {
	c.dispatch(event{kind: evNotification, desc: d})
}

// HandleMessage decodes one inbound payload and queues it. Undecodable payloads
// are dropped and reported; they never disturb the active notification.
func (c *Controller) HandleMessage(payload []byte) error {
	d, issues, err := notification.Decode(payload)
	if err != nil {
		c.logger.Warn().Err(err).Int("bytes", len(payload)).Msg("dropping undecodable notification")
		c.dispatch(event{kind: evDropped, detail: err.Error()})
		return err
	}
	for _, issue := range issues {
		c.logger.Warn().Err(issue).Msg("notification field ignored")
	}
	c.OnNotification(d)
	return nil
}

func (c *Controller) dispatch(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Controller) handle(ev event) {
	switch ev.kind {
	case evConnected:
		c.handleConnected()
	case evDisconnected:
		c.handleDisconnected()
	case evNotification:
		c.handleNotification(ev.desc)
	case evFired:
		c.handleFired(ev.gen, ev.trigger)
	case evDropped:
		c.counters.Dropped++
		c.recorder.PayloadDropped()
		e := notification.NewEvent(notification.EventDropped, c.clock.Now())
		e.Detail = ev.detail
		c.emit(e)
	}
}

func (c *Controller) handleConnected() {
	c.connected = true
	c.surfaces.Indicator.SetConnected(true)
	c.recorder.ConnectionChanged(true)
	c.emit(notification.NewEvent(notification.EventConnected, c.clock.Now()))
	c.logger.Info().Msg("control link up")
}

func (c *Controller) handleDisconnected() {
	c.connected = false
	c.surfaces.Indicator.SetConnected(false)
	c.clear(clearDisconnected)
	c.recorder.ConnectionChanged(false)
	c.emit(notification.NewEvent(notification.EventDisconnected, c.clock.Now()))
	c.logger.Warn().Msg("control link lost")
}

func (c *Controller) handleNotification(d notification.Descriptor) {
	c.clear(clearSuperseded)

	c.gen++
	a := &activeNotification{
		id:    uuid.New(),
		gen:   c.gen,
		desc:  d,
		since: c.clock.Now(),
		state: notification.StateRendering,
	}
	c.active = a
	c.counters.Received++
	c.recorder.NotificationReceived(d.Kind)

	log := c.logger.With().
		Stringer("notificationId", a.id).
		Str("kind", string(d.Kind)).
		Logger()

	videoAttached := false
	if d.Sound != nil {
		if err := c.surfaces.Audio.Play(d.Sound.Source, d.Sound.Volume); err != nil {
			log.Warn().Err(err).Str("sound", d.Sound.Source).Msg("audio not played")
		}
	}
	if d.Video != nil {
		if err := c.surfaces.Video.Play(*d.Video); err != nil {
			log.Warn().Err(err).Str("video", d.Video.Source).Msg("video not played")
		} else {
			videoAttached = true
		}
	}
	if d.Caption != nil {
		if err := c.surfaces.Text.Show(d.Caption.Text, d.Caption.Position); err != nil {
			log.Warn().Err(err).Msg("caption not shown")
		}
	}

	c.arm(a, videoAttached)
	a.state = notification.StateWaiting

	if d.Kind == notification.KindMediaGated && a.trigger == notification.TriggerTimer {
		log.Debug().Msg("no video to wait for, using dwell timer")
	}
	log.Info().Str("trigger", string(a.trigger)).Msg("notification rendered")

	e := notification.NewEvent(notification.EventRendered, a.since)
	e.NotificationID = a.id
	e.Kind = d.Kind
	e.Trigger = a.trigger
	c.emit(e)
}

// arm installs exactly one completion trigger for a
func (c *Controller) arm(a *activeNotification, videoAttached bool) {
	gen := a.gen
	if a.desc.GatesOnMedia() && videoAttached {
		a.trigger = notification.TriggerMediaEnded
		// The surface may call back from inside OnEnded, on this goroutine
		a.cancel = c.surfaces.Video.OnEnded(func() {
			go c.dispatch(event{kind: evFired, gen: gen, trigger: notification.TriggerMediaEnded})
		})
		return
	}

	a.trigger = notification.TriggerTimer
	t := c.clock.AfterFunc(c.dwell, func() {
		c.dispatch(event{kind: evFired, gen: gen, trigger: notification.TriggerTimer})
	})
	a.cancel = func() { t.Stop() }
}

func (c *Controller) handleFired(gen uint64, trigger notification.Trigger) {
	a := c.active
	if a == nil || a.gen != gen || a.trigger != trigger {
		c.logger.Debug().
			Uint64("generation", gen).
			Str("trigger", string(trigger)).
			Msg("ignoring stale trigger")
		return
	}

	a.state = notification.StateAcknowledged
	a.cancel()
	c.detach()
	c.active = nil

	log := c.logger.With().
		Stringer("notificationId", a.id).
		Str("trigger", string(trigger)).
		Logger()

	if err := c.sender.Send([]byte(v1alpha1.AckFinished)); err != nil {
		log.Error().Err(err).Msg("failed to send acknowledgment")
	}

	shown := c.clock.Now().Sub(a.since)
	c.counters.Acknowledged++
	c.recorder.NotificationAcknowledged(trigger, shown)
	log.Info().Dur("shown", shown).Msg("notification finished")

	e := notification.NewEvent(notification.EventAcknowledged, c.clock.Now())
	e.NotificationID = a.id
	e.Kind = a.desc.Kind
	e.Trigger = trigger
	c.emit(e)
}

// clear abandons the active notification, if any, without acknowledging it
func (c *Controller) clear(reason clearReason) {
	a := c.active
	if a == nil {
		return
	}
	a.cancel()
	c.detach()
	c.active = nil

	e := notification.NewEvent(notification.EventAbandoned, c.clock.Now())
	e.NotificationID = a.id
	e.Kind = a.desc.Kind
	e.Trigger = a.trigger

	switch reason {
	case clearSuperseded:
		c.counters.Superseded++
		c.recorder.NotificationSuperseded()
		e.Type = notification.EventSuperseded
		c.logger.Info().Stringer("notificationId", a.id).Msg("notification superseded")
	case clearDisconnected:
		c.counters.Abandoned++
		c.recorder.NotificationAbandoned()
		e.Detail = "disconnected"
		c.logger.Info().Stringer("notificationId", a.id).Msg("notification abandoned on disconnect")
	case clearShutdown:
		c.counters.Abandoned++
		c.recorder.NotificationAbandoned()
		e.Detail = "shutdown"
	}
	c.emit(e)
}

// detach resets every surface; surfaces are reused for the next notification
func (c *Controller) detach() {
	c.surfaces.Audio.Stop()
	c.surfaces.Video.Stop()
	c.surfaces.Text.Clear()
}

func (c *Controller) emit(e notification.Event) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(context.Background(), e); err != nil {
		c.logger.Debug().Err(err).Str("event", string(e.Type)).Msg("lifecycle event not published")
	}
}
