// Package headless provides display surfaces for hosts without a compositor.
// Surfaces keep what would be on screen and report it through the logger.
package headless

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wrale/wrale-overlay/internal/woverlay/notification"
)

// Style is the fixed caption appearance
type Style struct {
	Color       string
	FontSize    int
	FontFamily  string
	StrokeWidth int
	StrokeColor string
}

// DefaultStyle is the large outlined caption used for every notification
var DefaultStyle = Style{
	Color:       "deepskyblue",
	FontSize:    72,
	FontFamily:  "Calibri",
	StrokeWidth: 1,
	StrokeColor: "black",
}

// Caption is the text currently shown
type Caption struct {
	Text     string
	Position notification.Point
	Style    Style
}

// Text is a caption surface
type Text struct {
	mu      sync.RWMutex
	current *Caption
	style   Style
	logger  zerolog.Logger
}

// NewText creates a caption surface with DefaultStyle
func NewText(logger zerolog.Logger) *Text {
	return &Text{
		style:  DefaultStyle,
		logger: logger.With().Str("component", "text").Logger(),
	}
}

// Show replaces the caption. Each line of text is drawn as its own row.
func (t *Text) Show(text string, at notification.Point) error {
	t.mu.Lock()
	t.current = &Caption{Text: text, Position: at, Style: t.style}
	t.mu.Unlock()

	t.logger.Info().
		Strs("lines", strings.Split(text, "\n")).
		Stringer("position", at).
		Str("color", t.style.Color).
		Int("fontSize", t.style.FontSize).
		Msg("caption shown")
	return nil
}

// Clear removes the caption
func (t *Text) Clear() {
	t.mu.Lock()
	had := t.current != nil
	t.current = nil
	t.mu.Unlock()

	if had {
		t.logger.Debug().Msg("caption cleared")
	}
}

// Current returns the caption on screen, if any
func (t *Text) Current() (Caption, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.current == nil {
		return Caption{}, false
	}
	return *t.current, true
}

// Indicator tracks whether the overlay or the disconnected banner is visible
type Indicator struct {
	mu        sync.RWMutex
	connected bool
	logger    zerolog.Logger
}

// NewIndicator creates an indicator that starts in the disconnected state
func NewIndicator(logger zerolog.Logger) *Indicator {
	return &Indicator{logger: logger.With().Str("component", "indicator").Logger()}
}

// SetConnected shows the overlay when connected, otherwise the banner
func (i *Indicator) SetConnected(connected bool) {
	i.mu.Lock()
	changed := i.connected != connected
	i.connected = connected
	i.mu.Unlock()

	if !changed {
		return
	}
	if connected {
		i.logger.Info().Msg("overlay visible")
	} else {
		i.logger.Warn().Msg("connection lost banner visible")
	}
}

// Connected reports the current indicator state
func (i *Indicator) Connected() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.connected
}

// Audio is a silent audio surface
type Audio struct {
	mu      sync.Mutex
	playing string
	logger  zerolog.Logger
}

// NewAudio creates a silent audio surface
func NewAudio(logger zerolog.Logger) *Audio {
	return &Audio{logger: logger.With().Str("component", "audio").Logger()}
}

// Play records src as playing
func (a *Audio) Play(src string, volume float64) error {
	a.mu.Lock()
	a.playing = src
	a.mu.Unlock()

	a.logger.Info().Str("sound", src).Float64("volume", volume).Msg("sound started (silent)")
	return nil
}

// Stop forgets the current clip
func (a *Audio) Stop() {
	a.mu.Lock()
	a.playing = ""
	a.mu.Unlock()
}

// Playing returns the current clip reference
func (a *Audio) Playing() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playing
}
