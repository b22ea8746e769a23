// Package app wires the overlay client together from configuration
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wrale/wrale-overlay/internal/woverlay/config"
	"github.com/wrale/wrale-overlay/internal/woverlay/events"
	eventsredis "github.com/wrale/wrale-overlay/internal/woverlay/events/redis"
	"github.com/wrale/wrale-overlay/internal/woverlay/metrics"
	"github.com/wrale/wrale-overlay/internal/woverlay/notification"
	"github.com/wrale/wrale-overlay/internal/woverlay/notification/controller"
	"github.com/wrale/wrale-overlay/internal/woverlay/render/audio"
	"github.com/wrale/wrale-overlay/internal/woverlay/render/headless"
	"github.com/wrale/wrale-overlay/internal/woverlay/render/media"
	"github.com/wrale/wrale-overlay/internal/woverlay/render/video"
	statushttp "github.com/wrale/wrale-overlay/internal/woverlay/status/http"
	"github.com/wrale/wrale-overlay/internal/woverlay/transport/websocket"
)

// App is a fully wired overlay client
type App struct {
	cfg    *config.Config
	logger zerolog.Logger

	registry   *prometheus.Registry
	recorder   *metrics.Recorder
	channel    *websocket.Channel
	controller *controller.Controller
	events     *events.Async
	redis      *goredis.Client
	status     *statushttp.Server
}

// New builds every component named by cfg. Nothing runs until Run.
func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.recorder = metrics.New(a.registry)

	fetcher, err := media.NewHTTPFetcher(cfg.Media.BaseURL, media.WithTimeout(cfg.Media.FetchTimeout))
	if err != nil {
		return nil, fmt.Errorf("error creating media fetcher: %w", err)
	}

	surfaces := notification.Surfaces{
		Text:      headless.NewText(logger),
		Video:     video.New(fetcher, logger),
		Indicator: headless.NewIndicator(logger),
	}
	if cfg.Media.Audio == config.AudioSilent {
		surfaces.Audio = headless.NewAudio(logger)
	} else {
		surfaces.Audio = audio.New(fetcher, nil, logger)
	}

	var (
		sink    notification.EventPublisher = events.Nop{}
		history *eventsredis.Publisher
	)
	if r := cfg.Events.Redis; r.Addr != "" {
		a.redis = goredis.NewClient(&goredis.Options{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
		})
		history = eventsredis.NewPublisher(a.redis, eventsredis.Options{
			Channel:      r.Channel,
			HistoryKey:   r.HistoryKey,
			HistoryLimit: r.HistoryLimit,
		})
		sink = history
	}
	a.events = events.NewAsync(sink, cfg.Events.BufferSize, logger)

	a.channel = websocket.New(cfg.Server.URL, websocket.Options{
		HandshakeTimeout:  cfg.Server.HandshakeTimeout,
		ReconnectInterval: cfg.Server.ReconnectInterval,
		Metrics:           a.recorder,
	}, logger)

	a.controller = controller.New(surfaces, a.channel, logger,
		controller.WithDwell(cfg.Overlay.Dwell),
		controller.WithPublisher(a.events),
		controller.WithRecorder(a.recorder),
	)

	if cfg.Status.Enabled {
		opts := []statushttp.Option{statushttp.WithLink(a.channel)}
		if history != nil {
			opts = append(opts, statushttp.WithHistory(history))
		}
		h := statushttp.NewHandler(a.controller, a.registry, a.recorder, logger, opts...)
		a.status = statushttp.NewServer(cfg.StatusAddr(), h, logger)
	}

	return a, nil
}

// Controller returns the notification controller
func (a *App) Controller() *controller.Controller {
	return a.controller
}

// Run starts every component and blocks until ctx is cancelled or one of them fails
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	a.logger.Info().
		Str("server", a.cfg.Server.URL).
		Str("media", a.cfg.Media.BaseURL).
		Bool("status", a.status != nil).
		Bool("redisEvents", a.redis != nil).
		Msg("overlay starting")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.controller.Run(ctx) })
	g.Go(func() error { return a.events.Run(ctx) })
	if a.status != nil {
		g.Go(func() error { return a.status.Run(ctx) })
	}
	g.Go(func() error {
		err := a.channel.Run(ctx, a.controller)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err := g.Wait()
	a.logger.Info().Msg("overlay stopped")
	return err
}

func (a *App) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("error closing redis client")
		}
	}
}
