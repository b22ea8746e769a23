package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	v1alpha1 "github.com/wrale/wrale-overlay/api/types/v1alpha1"
	werrors "github.com/wrale/wrale-overlay/internal/woverlay/errors"
	"github.com/wrale/wrale-overlay/internal/woverlay/notification"
	wtesting "github.com/wrale/wrale-overlay/internal/woverlay/testing"
	"github.com/wrale/wrale-overlay/internal/woverlay/testing/mocks"
)

const (
	waitFor = time.Second
	tick    = 2 * time.Millisecond
	quiet   = 50 * time.Millisecond
)

var finished = []byte(v1alpha1.AckFinished)

type fixture struct {
	ctrl      *Controller
	text      *mocks.TextSurface
	audio     *mocks.AudioSurface
	video     *mocks.VideoSurface
	indicator *mocks.Indicator
	sender    *mocks.Sender
	publisher *mocks.Publisher
	clock     *wtesting.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		text:      new(mocks.TextSurface),
		audio:     new(mocks.AudioSurface),
		video:     new(mocks.VideoSurface),
		indicator: new(mocks.Indicator),
		sender:    new(mocks.Sender),
		publisher: new(mocks.Publisher),
		clock:     wtesting.NewClock(time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)),
	}
	f.text.On("Clear").Maybe()
	f.audio.On("Stop").Maybe()
	f.video.On("Stop").Maybe()
	f.video.On("OnEnded").Maybe()
	f.indicator.On("SetConnected", mock.Anything).Maybe()
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()

	f.ctrl = New(notification.Surfaces{
		Text:      f.text,
		Audio:     f.audio,
		Video:     f.video,
		Indicator: f.indicator,
	}, f.sender, zerolog.Nop(), WithClock(f.clock), WithPublisher(f.publisher))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.ctrl.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return f
}

func (f *fixture) acceptAcks() {
	f.sender.On("Send", finished).Return(nil)
}

// waitRendered blocks until the controller has taken n notifications
func (f *fixture) waitRendered(t *testing.T, n uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		s := f.ctrl.Snapshot()
		return s.Counters.Received == n && s.State == notification.StateWaiting
	}, waitFor, tick)
}

func (f *fixture) waitSent(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return f.sender.Sent() == n }, waitFor, tick)
}

func (f *fixture) assertNothingSent(t *testing.T) {
	t.Helper()
	assert.Never(t, func() bool { return f.sender.Sent() > 0 }, quiet, tick)
}

func TestController_TimedNotification(t *testing.T) {
	f := newFixture(t)
	f.acceptAcks()
	f.text.On("Show", "Alice followed!", notification.Point{X: 100, Y: 100}).Return(nil)

	err := f.ctrl.HandleMessage([]byte(`{"type":1,"message_displayed":"Alice followed!","message_displayed_position":[100,100]}`))
	require.NoError(t, err)
	f.waitRendered(t, 1)

	f.text.AssertCalled(t, "Show", "Alice followed!", notification.Point{X: 100, Y: 100})
	f.audio.AssertNotCalled(t, "Play", mock.Anything, mock.Anything)
	f.video.AssertNotCalled(t, "Play", mock.Anything)
	assert.Equal(t, 1, f.clock.Pending())

	snap := f.ctrl.Snapshot()
	require.NotNil(t, snap.Active)
	assert.Equal(t, notification.TriggerTimer, snap.Active.Trigger)
	assert.Equal(t, "Alice followed!", snap.Active.Text)

	f.clock.Advance(1999 * time.Millisecond)
	assert.Equal(t, 1, f.clock.Pending())
	f.assertNothingSent(t)

	f.clock.Advance(time.Millisecond)
	f.waitSent(t, 1)
	f.sender.AssertCalled(t, "Send", finished)
	f.text.AssertCalled(t, "Clear")

	require.Eventually(t, func() bool {
		s := f.ctrl.Snapshot()
		return s.State == notification.StateIdle && s.Counters.Acknowledged == 1
	}, waitFor, tick)
	assert.Nil(t, f.ctrl.Snapshot().Active)
}

func TestController_MediaGatedNotification(t *testing.T) {
	f := newFixture(t)
	f.acceptAcks()
	clip := notification.VideoClip{
		Source:   "sub.mp4",
		Volume:   0.5,
		Position: notification.Point{X: 0, Y: 0},
		Size:     notification.Size{Width: 640, Height: 360},
	}
	f.video.On("Play", clip).Return(nil)

	err := f.ctrl.HandleMessage([]byte(`{"type":2,"played_video":"sub.mp4","played_video_position":[0,0],"played_video_size":[640,360],"played_video_volume":0.5}`))
	require.NoError(t, err)
	f.waitRendered(t, 1)

	f.video.AssertCalled(t, "Play", clip)
	f.video.AssertCalled(t, "OnEnded")
	assert.Equal(t, 0, f.clock.Pending(), "no dwell timer for media-gated notifications")

	f.clock.Advance(time.Minute)
	f.assertNothingSent(t)

	require.True(t, f.video.End())
	f.waitSent(t, 1)
	f.video.AssertCalled(t, "Stop")
	assert.Never(t, func() bool { return f.sender.Sent() > 1 }, quiet, tick)
}

// endedVideo is a clip surface whose clip has always ended already. OnEnded
// fills the controller queue first so the handler meets a busy loop.
type endedVideo struct {
	ctrl *Controller
}

func (v *endedVideo) Play(notification.VideoClip) error {
	return nil
}

func (v *endedVideo) Stop() {}

func (v *endedVideo) OnEnded(fn func()) func() {
fill:
	for {
		select {
		case v.ctrl.events <- event{kind: evConnected}:
		default:
			break fill
		}
	}
	fn()
	return func() {}
}

func TestController_EndedVideoWithFullQueueDoesNotBlock(t *testing.T) {
	text := new(mocks.TextSurface)
	text.On("Clear").Maybe()
	audio := new(mocks.AudioSurface)
	audio.On("Stop").Maybe()
	indicator := new(mocks.Indicator)
	indicator.On("SetConnected", mock.Anything).Maybe()
	sender := new(mocks.Sender)
	sender.On("Send", finished).Return(nil)

	video := &endedVideo{}
	ctrl := New(notification.Surfaces{
		Text:      text,
		Audio:     audio,
		Video:     video,
		Indicator: indicator,
	}, sender, zerolog.Nop())
	video.ctrl = ctrl

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ctrl.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.NoError(t, ctrl.HandleMessage([]byte(`{"type":2,"played_video":"sub.mp4","played_video_position":[0,0],"played_video_size":[1,1],"played_video_volume":1}`)))
	require.Eventually(t, func() bool {
		return ctrl.Snapshot().Counters.Acknowledged == 1
	}, waitFor, tick)
	assert.Equal(t, 1, sender.Sent())
}

func TestController_MediaGatedWithoutVideoFallsBackToTimer(t *testing.T) {
	f := newFixture(t)
	f.acceptAcks()

	require.NoError(t, f.ctrl.HandleMessage([]byte(`{"type":2}`)))
	f.waitRendered(t, 1)

	f.video.AssertNotCalled(t, "Play", mock.Anything)
	f.video.AssertNotCalled(t, "OnEnded")
	assert.Equal(t, notification.TriggerTimer, f.ctrl.Snapshot().Active.Trigger)

	f.clock.Advance(2 * time.Second)
	f.waitSent(t, 1)
}

func TestController_VideoPlayFailureFallsBackToTimer(t *testing.T) {
	f := newFixture(t)
	f.acceptAcks()
	f.video.On("Play", mock.Anything).Return(werrors.ErrMediaUnavailable)

	require.NoError(t, f.ctrl.HandleMessage([]byte(`{"type":2,"played_video":"missing.mp4","played_video_position":[0,0],"played_video_size":[640,360],"played_video_volume":1}`)))
	f.waitRendered(t, 1)

	f.video.AssertNotCalled(t, "OnEnded")
	assert.Equal(t, 1, f.clock.Pending())

	f.clock.Advance(2 * time.Second)
	f.waitSent(t, 1)
}

func TestController_UnknownTypeBehavesAsTimed(t *testing.T) {
	f := newFixture(t)
	f.acceptAcks()

	require.NoError(t, f.ctrl.HandleMessage([]byte(`{"type":9}`)))
	f.waitRendered(t, 1)
	assert.Equal(t, notification.KindUnknown, f.ctrl.Snapshot().Active.Kind)

	f.clock.Advance(2 * time.Second)
	f.waitSent(t, 1)
}

func TestController_EmptyTimedNotificationStillDwells(t *testing.T) {
	f := newFixture(t)
	f.acceptAcks()

	require.NoError(t, f.ctrl.HandleMessage([]byte(`{"type":1}`)))
	f.waitRendered(t, 1)

	f.text.AssertNotCalled(t, "Show", mock.Anything, mock.Anything)
	f.clock.Advance(time.Second)
	f.assertNothingSent(t)
	f.clock.Advance(time.Second)
	f.waitSent(t, 1)
}

func TestController_SoundIsPlayedAndStoppedOnCompletion(t *testing.T) {
	f := newFixture(t)
	f.acceptAcks()
	f.audio.On("Play", "follow_sound", 0.8).Return(nil)

	require.NoError(t, f.ctrl.HandleMessage([]byte(`{"type":1,"played_sound":"follow_sound","played_sound_volume":0.8}`)))
	f.waitRendered(t, 1)
	f.audio.AssertCalled(t, "Play", "follow_sound", 0.8)
	f.audio.AssertNotCalled(t, "Stop")

	f.clock.Advance(2 * time.Second)
	f.waitSent(t, 1)
	f.audio.AssertCalled(t, "Stop")
}

func TestController_Supersession(t *testing.T) {
	f := newFixture(t)
	f.acceptAcks()
	f.text.On("Show", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, f.ctrl.HandleMessage([]byte(`{"type":1,"message_displayed":"A","message_displayed_position":[0,0]}`)))
	f.waitRendered(t, 1)

	f.clock.Advance(500 * time.Millisecond)
	require.NoError(t, f.ctrl.HandleMessage([]byte(`{"type":1,"message_displayed":"B","message_displayed_position":[0,0]}`)))
	f.waitRendered(t, 2)

	assert.Equal(t, 1, f.clock.Pending(), "A's timer must be cancelled")
	assert.Equal(t, "B", f.ctrl.Snapshot().Active.Text)

	// A's deadline passes without effect
	f.clock.Advance(1500 * time.Millisecond)
	f.assertNothingSent(t)

	f.clock.Advance(500 * time.Millisecond)
	f.waitSent(t, 1)
	assert.Never(t, func() bool { return f.sender.Sent() > 1 }, quiet, tick)

	require.Eventually(t, func() bool {
		c := f.ctrl.Snapshot().Counters
		return c.Superseded == 1 && c.Acknowledged == 1
	}, waitFor, tick)
}

func TestController_StaleMediaEndIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.acceptAcks()
	f.video.On("Play", mock.Anything).Return(nil)

	require.NoError(t, f.ctrl.HandleMessage([]byte(`{"type":2,"played_video":"a.mp4","played_video_position":[0,0],"played_video_size":[640,360],"played_video_volume":1}`)))
	f.waitRendered(t, 1)
	require.NoError(t, f.ctrl.HandleMessage([]byte(`{"type":1}`)))
	f.waitRendered(t, 2)

	// A late end-of-playback from the superseded clip
	require.Equal(t, 1, f.video.EndStale())
	f.assertNothingSent(t)

	f.clock.Advance(2 * time.Second)
	f.waitSent(t, 1)
	assert.Never(t, func() bool { return f.sender.Sent() > 1 }, quiet, tick)
}

func TestController_DisconnectCancelsPendingTrigger(t *testing.T) {
	f := newFixture(t)
	f.acceptAcks()

	f.ctrl.OnConnected()
	require.NoError(t, f.ctrl.HandleMessage([]byte(`{"type":1}`)))
	f.waitRendered(t, 1)

	f.ctrl.OnDisconnected()
	require.Eventually(t, func() bool {
		s := f.ctrl.Snapshot()
		return !s.Connected && s.Counters.Abandoned == 1 && s.State == notification.StateIdle
	}, waitFor, tick)

	assert.Equal(t, 0, f.clock.Pending())
	f.indicator.AssertCalled(t, "SetConnected", true)
	f.indicator.AssertCalled(t, "SetConnected", false)
	f.text.AssertCalled(t, "Clear")

	f.clock.Advance(5 * time.Second)
	f.assertNothingSent(t)

	// A fresh notification after reconnecting is acknowledged normally
	f.ctrl.OnConnected()
	require.NoError(t, f.ctrl.HandleMessage([]byte(`{"type":1}`)))
	f.waitRendered(t, 2)
	f.clock.Advance(2 * time.Second)
	f.waitSent(t, 1)
}

func TestController_ClearWhenIdleIsNoop(t *testing.T) {
	f := newFixture(t)

	f.ctrl.OnConnected()
	f.ctrl.OnDisconnected()
	require.Eventually(t, func() bool {
		s := f.ctrl.Snapshot()
		return !s.Connected && s.UpdatedAt.Equal(f.clock.Now())
	}, waitFor, tick)

	f.text.AssertNotCalled(t, "Clear")
	f.video.AssertNotCalled(t, "Stop")
	f.audio.AssertNotCalled(t, "Stop")
	assert.Equal(t, uint64(0), f.ctrl.Snapshot().Counters.Abandoned)
	f.assertNothingSent(t)
}

func TestController_MalformedPayloadIsDropped(t *testing.T) {
	f := newFixture(t)
	f.acceptAcks()

	require.NoError(t, f.ctrl.HandleMessage([]byte(`{"type":1}`)))
	f.waitRendered(t, 1)

	err := f.ctrl.HandleMessage([]byte(`not json`))
	require.Error(t, err)
	assert.True(t, werrors.IsMalformedPayload(err))

	err = f.ctrl.HandleMessage([]byte(`["type",1]`))
	require.Error(t, err)
	assert.True(t, werrors.IsMalformedPayload(err))

	require.Eventually(t, func() bool {
		return f.ctrl.Snapshot().Counters.Dropped == 2
	}, waitFor, tick)

	snap := f.ctrl.Snapshot()
	assert.Equal(t, uint64(1), snap.Counters.Received)
	assert.Equal(t, notification.StateWaiting, snap.State)
	assert.Equal(t, 1, f.clock.Pending())

	f.clock.Advance(2 * time.Second)
	f.waitSent(t, 1)
}

func TestController_MistypedFieldStillDelivers(t *testing.T) {
	f := newFixture(t)
	f.acceptAcks()
	f.text.On("Show", "Bob subscribed!", notification.Point{X: 10, Y: 20}).Return(nil)

	err := f.ctrl.HandleMessage([]byte(`{"type":1.5,"message_displayed":"Bob subscribed!","message_displayed_position":[10,20],"played_sound":"a.wav","played_sound_volume":"0.5"}`))
	require.NoError(t, err)
	f.waitRendered(t, 1)

	f.text.AssertCalled(t, "Show", "Bob subscribed!", notification.Point{X: 10, Y: 20})
	f.audio.AssertNotCalled(t, "Play", mock.Anything, mock.Anything)
	assert.Equal(t, notification.TriggerTimer, f.ctrl.Snapshot().Active.Trigger)

	f.clock.Advance(2 * time.Second)
	f.waitSent(t, 1)
	assert.Equal(t, uint64(0), f.ctrl.Snapshot().Counters.Dropped)
}

func TestController_AckFailureStillClosesNotification(t *testing.T) {
	f := newFixture(t)
	f.sender.On("Send", finished).Return(werrors.ErrNotConnected)

	require.NoError(t, f.ctrl.HandleMessage([]byte(`{"type":1}`)))
	f.waitRendered(t, 1)
	f.clock.Advance(2 * time.Second)

	f.waitSent(t, 1)
	require.Eventually(t, func() bool {
		return f.ctrl.Snapshot().State == notification.StateIdle
	}, waitFor, tick)
}

func TestController_PublishesLifecycleEvents(t *testing.T) {
	f := newFixture(t)
	f.acceptAcks()

	f.ctrl.OnConnected()
	require.NoError(t, f.ctrl.HandleMessage([]byte(`{"type":1}`)))
	f.waitRendered(t, 1)
	f.clock.Advance(2 * time.Second)
	f.waitSent(t, 1)

	ofType := func(typ notification.EventType, trigger notification.Trigger) interface{} {
		return mock.MatchedBy(func(e notification.Event) bool {
			return e.Type == typ && e.Trigger == trigger
		})
	}
	require.Eventually(t, func() bool {
		s := f.ctrl.Snapshot()
		return s.Counters.Acknowledged == 1
	}, waitFor, tick)
	f.publisher.AssertCalled(t, "Publish", mock.Anything, ofType(notification.EventConnected, notification.TriggerNone))
	f.publisher.AssertCalled(t, "Publish", mock.Anything, ofType(notification.EventRendered, notification.TriggerTimer))
	f.publisher.AssertCalled(t, "Publish", mock.Anything, ofType(notification.EventAcknowledged, notification.TriggerTimer))
}

func TestController_ShutdownAbandonsActiveNotification(t *testing.T) {
	text := new(mocks.TextSurface)
	audio := new(mocks.AudioSurface)
	video := new(mocks.VideoSurface)
	sender := new(mocks.Sender)
	text.On("Clear")
	audio.On("Stop")
	video.On("Stop")
	clock := wtesting.NewClock(time.Now())

	ctrl := New(notification.Surfaces{
		Text:      text,
		Audio:     audio,
		Video:     video,
		Indicator: new(mocks.Indicator),
	}, sender, zerolog.Nop(), WithClock(clock), WithDwell(3*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	ctrl.OnNotification(notification.Descriptor{Kind: notification.KindTimed})
	require.Eventually(t, func() bool {
		return ctrl.Snapshot().State == notification.StateWaiting
	}, waitFor, tick)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("controller did not stop")
	}

	assert.Equal(t, 0, clock.Pending())
	text.AssertCalled(t, "Clear")
	assert.Equal(t, uint64(1), ctrl.Snapshot().Counters.Abandoned)
	assert.Equal(t, 0, sender.Sent())

	// Signals after shutdown are dropped rather than blocking
	ctrl.OnConnected()
	assert.True(t, errors.Is(ctrl.HandleMessage([]byte("{")), werrors.ErrMalformedPayload))
}
