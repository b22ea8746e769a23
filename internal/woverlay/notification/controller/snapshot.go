package controller

import (
	"time"

	"github.com/google/uuid"

	"github.com/wrale/wrale-overlay/internal/woverlay/notification"
)

// Counters holds lifetime notification totals
type Counters struct {
	Received     uint64
	Acknowledged uint64
	Superseded   uint64
	Abandoned    uint64
	Dropped      uint64
}

// ActiveSummary describes the notification currently on screen
type ActiveSummary struct {
	ID      uuid.UUID
	Kind    notification.Kind
	Trigger notification.Trigger
	Text    string
	Sound   string
	Video   string
	Since   time.Time
}

// Snapshot is a point-in-time copy of controller state
type Snapshot struct {
	Connected bool
	State     notification.State
	Active    *ActiveSummary
	Counters  Counters
	UpdatedAt time.Time
}

// Snapshot returns the state as of the last processed signal
func (c *Controller) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()

	s := c.snap
	if s.Active != nil {
		active := *s.Active
		s.Active = &active
	}
	return s
}

func (c *Controller) updateSnapshot() {
	s := Snapshot{
		Connected: c.connected,
		State:     notification.StateIdle,
		Counters:  c.counters,
		UpdatedAt: c.clock.Now(),
	}
	if a := c.active; a != nil {
		s.State = a.state
		summary := &ActiveSummary{
			ID:      a.id,
			Kind:    a.desc.Kind,
			Trigger: a.trigger,
			Since:   a.since,
		}
		if a.desc.Caption != nil {
			summary.Text = a.desc.Caption.Text
		}
		if a.desc.Sound != nil {
			summary.Sound = a.desc.Sound.Source
		}
		if a.desc.Video != nil {
			summary.Video = a.desc.Video.Source
		}
		s.Active = summary
	}

	c.snapMu.Lock()
	c.snap = s
	c.snapMu.Unlock()
}

type nopRecorder struct{}

func (nopRecorder) NotificationReceived(notification.Kind) {}
func (nopRecorder) NotificationAcknowledged(notification.Trigger, time.Duration) {}
func (nopRecorder) NotificationSuperseded() {}
func (nopRecorder) NotificationAbandoned() {}
func (nopRecorder) PayloadDropped() {}
func (nopRecorder) ConnectionChanged(bool) {}
