package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	werrors "github.com/wrale/wrale-overlay/internal/woverlay/errors"
	"github.com/wrale/wrale-overlay/internal/woverlay/render/media"
)

// pcmWAV builds a mono 16-bit WAV clip of n silent samples
func pcmWAV(t *testing.T, sampleRate uint32, n int) []byte {
	t.Helper()
	var buf bytes.Buffer
	dataSize := uint32(n * 2)
	w := func(v any) { require.NoError(t, binary.Write(&buf, binary.LittleEndian, v)) }

	buf.WriteString("RIFF")
	w(uint32(36 + dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	w(uint32(16))
	w(uint16(1)) // PCM
	w(uint16(1)) // mono
	w(sampleRate)
	w(sampleRate * 2)
	w(uint16(2))
	w(uint16(16))
	buf.WriteString("data")
	w(dataSize)
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}

type fakeFetcher struct {
	assets map[string]*media.Asset
	block  chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, ref string) (*media.Asset, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	a, ok := f.assets[ref]
	if !ok {
		return nil, werrors.ErrMediaUnavailable
	}
	return a, nil
}

type fakeOutput struct {
	mu      sync.Mutex
	inits   int
	played  []beep.Streamer
	active  int
	cleared int
}

func (o *fakeOutput) Init(beep.SampleRate) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inits++
	return nil
}

func (o *fakeOutput) Play(s beep.Streamer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.played = append(o.played, s)
	o.active++
}

func (o *fakeOutput) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cleared++
	o.active = 0
}

func (o *fakeOutput) activeCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

func (o *fakeOutput) last() beep.Streamer {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.played[len(o.played)-1]
}

// fakeClip is a silent decoded clip that counts Close calls
type fakeClip struct {
	mu     sync.Mutex
	left   int
	closed int
}

func (c *fakeClip) Stream(samples [][2]float64) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.left == 0 {
		return 0, false
	}
	n := min(len(samples), c.left)
	for i := range samples[:n] {
		samples[i] = [2]float64{}
	}
	c.left -= n
	return n, true
}

func (c *fakeClip) Err() error {
	return nil
}

func (c *fakeClip) Len() int {
	return 0
}

func (c *fakeClip) Position() int {
	return 0
}

func (c *fakeClip) Seek(int) error {
	return nil
}

func (c *fakeClip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeClip) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func withClip(s *Surface, c *fakeClip) {
	s.decode = func(*media.Asset) (beep.StreamSeekCloser, beep.SampleRate, error) {
		return c, SampleRate, nil
	}
}

func (o *fakeOutput) playedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.played)
}

func (o *fakeOutput) clearedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cleared
}

func TestLevelToVolume(t *testing.T) {
	tests := []struct {
		level float64
		want  float64
	}{
		{level: 1, want: 0},
		{level: 1.5, want: 0},
		{level: 0.5, want: -1},
		{level: 0.25, want: -2},
		{level: 0, want: -10},
		{level: -1, want: -10},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, levelToVolume(tt.level), 1e-9, "level %v", tt.level)
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		ref         string
		contentType string
		want        format
		wantErr     bool
	}{
		{ref: "http://h/a.wav", want: formatWAV},
		{ref: "http://h/a.MP3", want: formatMP3},
		{ref: "http://h/a.flac", want: formatFLAC},
		{ref: "http://h/follow_sound", contentType: "audio/x-wav", want: formatWAV},
		{ref: "http://h/follow_sound", contentType: "audio/mpeg; charset=binary", want: formatMP3},
		{ref: "http://h/follow_sound", contentType: "audio/flac", want: formatFLAC},
		{ref: "http://h/follow_sound", contentType: "text/html", wantErr: true},
		{ref: "http://h/a.ogg", wantErr: true},
	}
	for _, tt := range tests {
		got, err := formatOf(tt.ref, tt.contentType)
		if tt.wantErr {
			require.Error(t, err)
			assert.True(t, werrors.IsMediaUnavailable(err))
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestDecode_WAV(t *testing.T) {
	streamer, sr, err := decode(&media.Asset{URL: "http://h/a.wav", Data: pcmWAV(t, 22050, 100)})
	require.NoError(t, err)
	assert.Equal(t, beep.SampleRate(22050), sr)
	assert.NotNil(t, streamer)
}

func TestDecode_Garbage(t *testing.T) {
	_, _, err := decode(&media.Asset{URL: "http://h/a.wav", Data: []byte("not a wav")})
	require.Error(t, err)
	assert.True(t, werrors.IsMediaUnavailable(err))
}

func TestSurface_PlayAndStop(t *testing.T) {
	fetcher := &fakeFetcher{assets: map[string]*media.Asset{
		"follow_sound": {URL: "http://h/follow_sound", ContentType: "audio/wav", Data: pcmWAV(t, 44100, 100)},
	}}
	out := &fakeOutput{}
	s := New(fetcher, out, zerolog.Nop())

	require.NoError(t, s.Play("follow_sound", 0.5))
	require.Eventually(t, func() bool { return out.playedCount() == 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.Equal(t, 1, out.clearedCount())

	// A second stop has nothing to clear
	s.Stop()
	assert.Equal(t, 1, out.clearedCount())
}

func TestSurface_StopAbandonsPendingLoad(t *testing.T) {
	fetcher := &fakeFetcher{
		assets: map[string]*media.Asset{
			"a.wav": {URL: "http://h/a.wav", Data: pcmWAV(t, 44100, 100)},
		},
		block: make(chan struct{}),
	}
	out := &fakeOutput{}
	s := New(fetcher, out, zerolog.Nop())

	require.NoError(t, s.Play("a.wav", 1))
	s.Stop()
	close(fetcher.block)

	assert.Never(t, func() bool { return out.playedCount() > 0 }, 100*time.Millisecond, 5*time.Millisecond)
}

func TestSurface_MissingClip(t *testing.T) {
	out := &fakeOutput{}
	s := New(&fakeFetcher{}, out, zerolog.Nop())

	require.NoError(t, s.Play("missing.wav", 1))
	assert.Never(t, func() bool { return out.playedCount() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Error(t, s.Play("", 1))
}

func TestSurface_StopClosesClip(t *testing.T) {
	fetcher := &fakeFetcher{assets: map[string]*media.Asset{"a.wav": {URL: "http://h/a.wav"}}}
	out := &fakeOutput{}
	s := New(fetcher, out, zerolog.Nop())
	c := &fakeClip{left: 1000}
	withClip(s, c)

	require.NoError(t, s.Play("a.wav", 1))
	require.Eventually(t, func() bool { return out.playedCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, c.closeCount())

	s.Stop()
	assert.Equal(t, 1, c.closeCount())
	assert.Equal(t, 0, out.activeCount())
}

func TestSurface_FinishedClipIsClosedOnce(t *testing.T) {
	fetcher := &fakeFetcher{assets: map[string]*media.Asset{"a.wav": {URL: "http://h/a.wav"}}}
	out := &fakeOutput{}
	s := New(fetcher, out, zerolog.Nop())
	c := &fakeClip{left: 10}
	withClip(s, c)

	require.NoError(t, s.Play("a.wav", 1))
	require.Eventually(t, func() bool { return out.playedCount() == 1 }, time.Second, 5*time.Millisecond)

	buf := make([][2]float64, 64)
	stream := out.last()
	for i := 0; i < 10; i++ {
		if _, ok := stream.Stream(buf); !ok {
			break
		}
	}
	assert.Equal(t, 1, c.closeCount())

	s.Stop()
	assert.Equal(t, 1, c.closeCount())
}

func TestSurface_SupersededLoadClosesClip(t *testing.T) {
	fetcher := &fakeFetcher{
		assets: map[string]*media.Asset{"a.wav": {URL: "http://h/a.wav"}},
		block:  make(chan struct{}),
	}
	out := &fakeOutput{}
	s := New(fetcher, out, zerolog.Nop())
	c := &fakeClip{left: 10}
	withClip(s, c)

	require.NoError(t, s.Play("a.wav", 1))

	// Supersede the load without cancelling its fetch, so it reaches decode
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.gen++
	s.mu.Unlock()
	t.Cleanup(cancel)
	close(fetcher.block)

	require.Eventually(t, func() bool { return c.closeCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, out.playedCount())
}

func TestSurface_StopRacingPlaybackLeavesNothingPlaying(t *testing.T) {
	fetcher := &fakeFetcher{assets: map[string]*media.Asset{
		"a.wav": {URL: "http://h/a.wav", Data: pcmWAV(t, 44100, 10)},
	}}
	out := &fakeOutput{}
	s := New(fetcher, out, zerolog.Nop())

	for i := 0; i < 200; i++ {
		require.NoError(t, s.Play("a.wav", 1))
		if i%2 == 0 {
			runtime.Gosched()
		}
		s.Stop()
	}

	assert.Never(t, func() bool { return out.activeCount() > 0 }, 100*time.Millisecond, 5*time.Millisecond)
}
