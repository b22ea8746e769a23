// Package audio plays notification sounds through the system speaker
package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"mime"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
	"github.com/rs/zerolog"

	werrors "github.com/wrale/wrale-overlay/internal/woverlay/errors"
	"github.com/wrale/wrale-overlay/internal/woverlay/render/media"
)

// SampleRate is the speaker output rate; clips are resampled to it
const SampleRate = beep.SampleRate(44100)

type format string

const (
	formatWAV  format = "wav"
	formatMP3  format = "mp3"
	formatFLAC format = "flac"
)

// Output is the device streamers are mixed into
type Output interface {
	Init(sr beep.SampleRate) error
	Play(s beep.Streamer)
	Clear()
}

// Surface plays one sound at a time. Clips load in the background; a Stop or a
// newer Play discards any load still in flight.
type Surface struct {
	fetcher media.Fetcher
	out     Output
	logger  zerolog.Logger

	// decode is swapped in tests
	decode func(*media.Asset) (beep.StreamSeekCloser, beep.SampleRate, error)

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	current *clip
}

// clip is a decoded sound that is closed exactly once, either when it plays
// out or when it is stopped
type clip struct {
	once     sync.Once
	streamer beep.StreamSeekCloser
}

func (c *clip) close() {
	c.once.Do(func() { _ = c.streamer.Close() })
}

// New creates a surface that fetches clips with fetcher and plays them on out.
// A nil out uses the system speaker.
func New(fetcher media.Fetcher, out Output, logger zerolog.Logger) *Surface {
	if out == nil {
		out = &Speaker{}
	}
	return &Surface{
		fetcher: fetcher,
		out:     out,
		logger:  logger.With().Str("component", "audio").Logger(),
		decode:  decode,
	}
}

// Play starts loading src and plays it at volume once decoded
func (s *Surface) Play(src string, volume float64) error {
	if src == "" {
		return fmt.Errorf("empty sound reference")
	}

	s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.mu.Unlock()

	go s.load(ctx, gen, src, volume)
	return nil
}

// Stop silences the current sound and abandons any pending load
func (s *Surface) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.current != nil {
		s.out.Clear()
		s.current.close()
		s.current = nil
	}
}

func (s *Surface) load(ctx context.Context, gen uint64, src string, volume float64) {
	log := s.logger.With().Str("sound", src).Logger()

	asset, err := s.fetcher.Fetch(ctx, src)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Msg("sound not loaded")
		}
		return
	}

	streamer, sr, err := s.decode(asset)
	if err != nil {
		log.Warn().Err(err).Msg("sound not decoded")
		return
	}
	c := &clip{streamer: streamer}

	if err := s.out.Init(SampleRate); err != nil {
		log.Error().Err(err).Msg("speaker unavailable")
		c.close()
		return
	}

	var out beep.Streamer = streamer
	if sr != SampleRate {
		out = beep.Resample(4, sr, SampleRate, streamer)
	}
	vol := &effects.Volume{
		Streamer: out,
		Base:     2,
		Volume:   levelToVolume(volume),
		Silent:   volume <= 0,
	}

	// Stop either discards the clip here or clears it after Play
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		c.close()
		log.Debug().Msg("sound superseded before playback")
		return
	}
	s.current = c
	s.out.Play(beep.Seq(vol, beep.Callback(c.close)))
	log.Debug().Float64("volume", volume).Msg("sound playing")
}

// decode picks a decoder from the clip name or content type and buffers the
// whole clip in memory
func decode(asset *media.Asset) (beep.StreamSeekCloser, beep.SampleRate, error) {
	f, err := formatOf(asset.URL, asset.ContentType)
	if err != nil {
		return nil, 0, err
	}

	r := bytes.NewReader(asset.Data)
	var (
		streamer beep.StreamSeekCloser
		fmtInfo  beep.Format
	)
	switch f {
	case formatWAV:
		streamer, fmtInfo, err = wav.Decode(r)
	case formatMP3:
		streamer, fmtInfo, err = mp3.Decode(io.NopCloser(r))
	case formatFLAC:
		streamer, fmtInfo, err = flac.Decode(r)
	}
	if err != nil {
		return nil, 0, werrors.NewError("MEDIA_UNAVAILABLE", fmt.Sprintf("decoding %s", asset.URL), "audio.decode",
			fmt.Errorf("%w: %w", werrors.ErrMediaUnavailable, err))
	}
	return streamer, fmtInfo.SampleRate, nil
}

// formatOf prefers the file extension and falls back to the content type, since
// clips are often served without one (e.g. "follow_sound")
func formatOf(ref, contentType string) (format, error) {
	ext := strings.ToLower(path.Ext(ref))
	switch ext {
	case ".wav", ".wave":
		return formatWAV, nil
	case ".mp3":
		return formatMP3, nil
	case ".flac":
		return formatFLAC, nil
	}

	mt, _, _ := mime.ParseMediaType(contentType)
	switch mt {
	case "audio/wav", "audio/wave", "audio/x-wav", "audio/vnd.wave":
		return formatWAV, nil
	case "audio/mpeg", "audio/mp3":
		return formatMP3, nil
	case "audio/flac", "audio/x-flac":
		return formatFLAC, nil
	}

	return "", werrors.NewError("MEDIA_UNAVAILABLE",
		fmt.Sprintf("unsupported audio format %q (%s)", ext, contentType), "audio.formatOf", werrors.ErrMediaUnavailable)
}

// levelToVolume converts a 0.0-1.0 level to beep's base 2 gain.
// 1.0 -> 0, 0.5 -> -1, 0.25 -> -2, 0 -> -10
func levelToVolume(level float64) float64 {
	if level <= 0 {
		return -10
	}
	if level >= 1 {
		return 0
	}
	return math.Log2(level)
}

// Speaker is the system audio device
type Speaker struct {
	once sync.Once
	err  error
}

// Init opens the device on first use
func (sp *Speaker) Init(sr beep.SampleRate) error {
	sp.once.Do(func() {
		sp.err = speaker.Init(sr, sr.N(time.Second/10))
	})
	return sp.err
}

// Play mixes s into the output
func (sp *Speaker) Play(s beep.Streamer) {
	speaker.Play(s)
}

// Clear removes every streamer from the output
func (sp *Speaker) Clear() {
	speaker.Clear()
}
