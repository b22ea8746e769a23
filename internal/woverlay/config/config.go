// Package config provides configuration management for the Wrale Overlay client
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. WOVERLAY_SERVER_URL
const EnvPrefix = "WOVERLAY"

// Config holds all configuration for the overlay client
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Overlay OverlayConfig `mapstructure:"overlay" yaml:"overlay"`
	Media   MediaConfig   `mapstructure:"media" yaml:"media"`
	Status  StatusConfig  `mapstructure:"status" yaml:"status"`
	Events  EventsConfig  `mapstructure:"events" yaml:"events"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// ServerConfig holds control channel settings
type ServerConfig struct {
	URL               string        `mapstructure:"url" yaml:"url"`
	HandshakeTimeout  time.Duration `mapstructure:"handshakeTimeout" yaml:"handshakeTimeout"`
	ReconnectInterval time.Duration `mapstructure:"reconnectInterval" yaml:"reconnectInterval"`
}

// OverlayConfig holds notification timing
type OverlayConfig struct {
	Dwell time.Duration `mapstructure:"dwell" yaml:"dwell"`
}

// MediaConfig holds clip loading and playback settings
type MediaConfig struct {
	BaseURL      string        `mapstructure:"baseURL" yaml:"baseURL"`
	FetchTimeout time.Duration `mapstructure:"fetchTimeout" yaml:"fetchTimeout"`
	// Audio selects the sound output: "speaker" or "silent"
	Audio string `mapstructure:"audio" yaml:"audio"`
}

// StatusConfig holds the status HTTP server settings
type StatusConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Host    string `mapstructure:"host" yaml:"host"`
	Port    int    `mapstructure:"port" yaml:"port"`
}

// EventsConfig holds lifecycle event publishing settings
type EventsConfig struct {
	BufferSize int         `mapstructure:"bufferSize" yaml:"bufferSize"`
	Redis      RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig holds the Redis event sink. Publishing is off while Addr is empty.
type RedisConfig struct {
	Addr         string `mapstructure:"addr" yaml:"addr"`
	Password     string `mapstructure:"password" yaml:"password"`
	DB           int    `mapstructure:"db" yaml:"db"`
	Channel      string `mapstructure:"channel" yaml:"channel"`
	HistoryKey   string `mapstructure:"historyKey" yaml:"historyKey"`
	HistoryLimit int    `mapstructure:"historyLimit" yaml:"historyLimit"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Audio outputs
const (
	AudioSpeaker = "speaker"
	AudioSilent  = "silent"
)

// Log formats
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Defaults returns the configuration used when nothing is overridden
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			URL:               "ws://127.0.0.1:40001",
			HandshakeTimeout:  10 * time.Second,
			ReconnectInterval: time.Second,
		},
		Overlay: OverlayConfig{
			Dwell: 2 * time.Second,
		},
		Media: MediaConfig{
			BaseURL:      "http://127.0.0.1:40000/",
			FetchTimeout: 10 * time.Second,
			Audio:        AudioSpeaker,
		},
		Status: StatusConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    40080,
		},
		Events: EventsConfig{
			BufferSize: 256,
			Redis: RedisConfig{
				Channel:      "woverlay:events",
				HistoryKey:   "woverlay:events:recent",
				HistoryLimit: 100,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatConsole,
		},
	}
}

// NewViper returns a viper instance seeded with Defaults and reading
// WOVERLAY_* environment variables. Callers may bind flags before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Defaults()

	v.SetDefault("server.url", d.Server.URL)
	v.SetDefault("server.handshakeTimeout", d.Server.HandshakeTimeout)
	v.SetDefault("server.reconnectInterval", d.Server.ReconnectInterval)
	v.SetDefault("overlay.dwell", d.Overlay.Dwell)
	v.SetDefault("media.baseURL", d.Media.BaseURL)
	v.SetDefault("media.fetchTimeout", d.Media.FetchTimeout)
	v.SetDefault("media.audio", d.Media.Audio)
	v.SetDefault("status.enabled", d.Status.Enabled)
	v.SetDefault("status.host", d.Status.Host)
	v.SetDefault("status.port", d.Status.Port)
	v.SetDefault("events.bufferSize", d.Events.BufferSize)
	v.SetDefault("events.redis.addr", d.Events.Redis.Addr)
	v.SetDefault("events.redis.password", d.Events.Redis.Password)
	v.SetDefault("events.redis.db", d.Events.Redis.DB)
	v.SetDefault("events.redis.channel", d.Events.Redis.Channel)
	v.SetDefault("events.redis.historyKey", d.Events.Redis.HistoryKey)
	v.SetDefault("events.redis.historyLimit", d.Events.Redis.HistoryLimit)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the optional YAML file at path into v and returns the validated
// configuration
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// StatusAddr returns the status server listen address
func (c *Config) StatusAddr() string {
	return fmt.Sprintf("%s:%d", c.Status.Host, c.Status.Port)
}

// Redacted returns a copy safe to print
func (c Config) Redacted() Config {
	if c.Events.Redis.Password != "" {
		c.Events.Redis.Password = "********"
	}
	return c
}
