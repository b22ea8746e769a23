package mocks

import (
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/wrale/wrale-overlay/internal/woverlay/notification"
)

// TextSurface implements a mock caption surface
type TextSurface struct {
	mock.Mock
}

func (m *TextSurface) Show(text string, at notification.Point) error {
	args := m.Called(text, at)
	return args.Error(0)
}

func (m *TextSurface) Clear() {
	m.Called()
}

// AudioSurface implements a mock audio surface
type AudioSurface struct {
	mock.Mock
}

func (m *AudioSurface) Play(src string, volume float64) error {
	args := m.Called(src, volume)
	return args.Error(0)
}

func (m *AudioSurface) Stop() {
	m.Called()
}

// VideoSurface implements a mock video surface. The handler passed to OnEnded
// is kept so tests can play the end-of-playback signal themselves.
type VideoSurface struct {
	mock.Mock

	mu      sync.Mutex
	handler func()
	stale   []func()
}

func (m *VideoSurface) Play(clip notification.VideoClip) error {
	args := m.Called(clip)
	return args.Error(0)
}

func (m *VideoSurface) OnEnded(fn func()) func() {
	m.Called()
	m.mu.Lock()
	m.handler = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.handler != nil {
			m.stale = append(m.stale, m.handler)
		}
		m.handler = nil
	}
}

func (m *VideoSurface) Stop() {
	m.Called()
}

// End fires the registered end-of-playback handler and reports whether one was registered
func (m *VideoSurface) End() bool {
	m.mu.Lock()
	fn := m.handler
	m.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// EndStale fires handlers that were unregistered, as a late signal racing the cancel would
func (m *VideoSurface) EndStale() int {
	m.mu.Lock()
	stale := m.stale
	m.mu.Unlock()
	for _, fn := range stale {
		fn()
	}
	return len(stale)
}

// Indicator implements a mock connection indicator
type Indicator struct {
	mock.Mock
}

func (m *Indicator) SetConnected(connected bool) {
	m.Called(connected)
}
