package config

import (
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	werrors "github.com/wrale/wrale-overlay/internal/woverlay/errors"
)

// Validate checks every section and reports the first problem found
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return werrors.NewError("INVALID_CONFIG", err.Error(), "config.Validate",
			fmt.Errorf("%w: %w", werrors.ErrInvalidConfig, err))
	}
	return nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("invalid server url %q: must be ws:// or wss://", c.Server.URL)
	}
	if c.Server.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake timeout must be positive")
	}
	if c.Server.ReconnectInterval <= 0 {
		return fmt.Errorf("reconnect interval must be positive")
	}
	if c.Overlay.Dwell <= 0 {
		return fmt.Errorf("dwell must be positive")
	}

	mu, err := url.Parse(c.Media.BaseURL)
	if err != nil || (mu.Scheme != "http" && mu.Scheme != "https") || mu.Host == "" {
		return fmt.Errorf("invalid media base url %q: must be http:// or https://", c.Media.BaseURL)
	}
	if c.Media.FetchTimeout <= 0 {
		return fmt.Errorf("media fetch timeout must be positive")
	}
	if c.Media.Audio != AudioSpeaker && c.Media.Audio != AudioSilent {
		return fmt.Errorf("invalid audio output %q: must be %s or %s", c.Media.Audio, AudioSpeaker, AudioSilent)
	}

	if c.Status.Enabled && (c.Status.Port < 1 || c.Status.Port > 65535) {
		return fmt.Errorf("invalid status port: %d", c.Status.Port)
	}

	if c.Events.BufferSize < 1 {
		return fmt.Errorf("invalid event buffer size: %d", c.Events.BufferSize)
	}
	if c.Events.Redis.Addr != "" {
		if c.Events.Redis.Channel == "" {
			return fmt.Errorf("redis channel is required")
		}
		if c.Events.Redis.HistoryLimit < 1 {
			return fmt.Errorf("invalid redis history limit: %d", c.Events.Redis.HistoryLimit)
		}
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil || c.Log.Level == "" {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	if c.Log.Format != LogFormatConsole && c.Log.Format != LogFormatJSON {
		return fmt.Errorf("invalid log format %q: must be %s or %s", c.Log.Format, LogFormatConsole, LogFormatJSON)
	}
	return nil
}
