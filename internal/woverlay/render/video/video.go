// Package video provides a headless clip surface. It measures each clip's length
// and reports the end of playback when that length has elapsed.
package video

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abema/go-mp4"
	"github.com/rs/zerolog"

	werrors "github.com/wrale/wrale-overlay/internal/woverlay/errors"
	"github.com/wrale/wrale-overlay/internal/woverlay/notification"
	"github.com/wrale/wrale-overlay/internal/woverlay/render/media"
)

// Prober returns the playback length of an encoded clip
type Prober func(data []byte) (time.Duration, error)

// ProbeMP4 reads the movie header of an MP4 clip
func ProbeMP4(data []byte) (time.Duration, error) {
	info, err := mp4.Probe(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: probing mp4: %w", werrors.ErrMediaUnavailable, err)
	}
	if info.Timescale == 0 {
		return 0, fmt.Errorf("%w: mp4 has no movie header", werrors.ErrMediaUnavailable)
	}

	ts := uint64(info.Timescale)
	secs := info.Duration / ts
	rem := info.Duration % ts
	return time.Duration(secs)*time.Second + time.Duration(rem*uint64(time.Second)/ts), nil
}

// Option configures a Surface
type Option func(*Surface)

// WithProber replaces the clip length probe
func WithProber(p Prober) Option {
	return func(s *Surface) {
		s.probe = p
	}
}

// WithClock replaces the clock that times playback
func WithClock(c notification.Clock) Option {
	return func(s *Surface) {
		s.clock = c
	}
}

type endHandler struct {
	token uint64
	fn    func()
}

// Surface plays one clip at a time
type Surface struct {
	fetcher media.Fetcher
	probe   Prober
	clock   notification.Clock
	logger  zerolog.Logger

	mu      sync.Mutex
	gen     uint64
	clip    *notification.VideoClip
	ended   bool
	handler *endHandler
	tokens  uint64
	cancel  context.CancelFunc
	timer   notification.Timer
}

// New creates a clip surface that loads clips through fetcher
func New(fetcher media.Fetcher, logger zerolog.Logger, opts ...Option) *Surface {
	s := &Surface{
		fetcher: fetcher,
		probe:   ProbeMP4,
		clock:   notification.SystemClock{},
		logger:  logger.With().Str("component", "video").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Play replaces the current clip. A clip that cannot be loaded or measured
// ends straight away.
func (s *Surface) Play(clip notification.VideoClip) error {
	if clip.Source == "" {
		return fmt.Errorf("empty video reference")
	}

	s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.clip = &clip
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info().
		Str("video", clip.Source).
		Stringer("position", clip.Position).
		Stringer("size", clip.Size).
		Float64("volume", clip.Volume).
		Msg("clip started")

	go s.load(ctx, gen, clip.Source)
	return nil
}

// OnEnded registers fn for the current clip, replacing any earlier handler.
// If the clip has already ended fn runs on its own goroutine.
func (s *Surface) OnEnded(fn func()) (cancel func()) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		go fn()
		return func() {}
	}
	s.tokens++
	token := s.tokens
	s.handler = &endHandler{token: token, fn: fn}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.handler != nil && s.handler.token == token {
			s.handler = nil
		}
	}
}

// Stop removes the clip and drops its handler
func (s *Surface) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.clip = nil
	s.ended = false
	s.handler = nil
}

// Current returns the clip on screen, if any
func (s *Surface) Current() (notification.VideoClip, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clip == nil {
		return notification.VideoClip{}, false
	}
	return *s.clip, true
}

func (s *Surface) load(ctx context.Context, gen uint64, src string) {
	log := s.logger.With().Str("video", src).Logger()

	asset, err := s.fetcher.Fetch(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Msg("clip not loaded, ending")
		s.end(gen)
		return
	}

	length, err := s.probe(asset.Data)
	if err != nil {
		log.Warn().Err(err).Msg("clip length unknown, ending")
		s.end(gen)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.timer = s.clock.AfterFunc(length, func() { s.end(gen) })
	log.Debug().Dur("length", length).Msg("clip playing")
}

func (s *Surface) end(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.timer = nil
	h := s.handler
	s.handler = nil
	s.mu.Unlock()

	s.logger.Debug().Msg("clip ended")
	if h != nil {
		h.fn()
	}
}
