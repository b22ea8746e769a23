// Package websocket implements the overlay control channel over a WebSocket
// connection to the notification source
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	werrors "github.com/wrale/wrale-overlay/internal/woverlay/errors"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Outbound messages queued per connection
	sendBufferSize = 16
)

// Handler receives connection lifecycle signals and inbound payloads. Calls for
// one connection are made from a single goroutine, in arrival order.
type Handler interface {
	OnConnected()
	OnDisconnected()
	HandleMessage(payload []byte) error
}

// Metrics receives transport measurements
type Metrics interface {
	Reconnected()
}

// Options configures a Channel
type Options struct {
	// HandshakeTimeout bounds the WebSocket opening handshake
	HandshakeTimeout time.Duration
	// ReconnectInterval is the minimum time between connection attempts
	ReconnectInterval time.Duration
	// Header is sent with the opening handshake
	Header http.Header
	// Metrics receives reconnect counts; may be nil
	Metrics Metrics
}

// session is one live connection
type session struct {
	id   uuid.UUID
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.ws.Close()
	})
}

// Channel maintains a connection to the notification source, reconnecting
// whenever it drops
type Channel struct {
	url     string
	dialer  *websocket.Dialer
	header  http.Header
	limiter *rate.Limiter
	metrics Metrics
	logger  zerolog.Logger

	mu      sync.Mutex
	current *session
}

// New creates a channel for the given ws:// or wss:// URL
func New(url string, opts Options, logger zerolog.Logger) *Channel {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = time.Second
	}

	return &Channel{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		header:  opts.Header,
		limiter: rate.NewLimiter(rate.Every(opts.ReconnectInterval), 1),
		metrics: opts.Metrics,
		logger:  logger.With().Str("component", "transport").Str("url", url).Logger(),
	}
}

// Run connects and serves the connection, reconnecting until ctx is cancelled
func (c *Channel) Run(ctx context.Context, h Handler) error {
	attempts := 0
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}

		conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			attempts++
			// Log the first failure loudly, then quietly while the source is down
			ev := c.logger.Debug()
			if attempts == 1 {
				ev = c.logger.Warn()
			}
			ev.Err(err).Int("attempt", attempts).Msg("connection attempt failed")
			continue
		}

		if attempts > 0 && c.metrics != nil {
			c.metrics.Reconnected()
		}
		attempts = 0

		c.serve(ctx, conn, h)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Send queues a text message on the current connection
func (c *Channel) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.current
	if s == nil {
		return werrors.ErrNotConnected
	}
	select {
	case <-s.done:
		return werrors.ErrNotConnected
	default:
	}

	msg := make([]byte, len(payload))
	copy(msg, payload)
	select {
	case s.send <- msg:
		return nil
	default:
		return werrors.ErrSendBufferFull
	}
}

// Connected reports whether a connection is currently established
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

func (c *Channel) serve(ctx context.Context, conn *websocket.Conn, h Handler) {
	s := &session{
		id:   uuid.New(),
		ws:   conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
	log := c.logger.With().Stringer("sessionId", s.id).Logger()

	c.mu.Lock()
	c.current = s
	c.mu.Unlock()

	log.Info().Str("remote", conn.RemoteAddr().String()).Msg("connected")
	h.OnConnected()

	// Unblock the read loop on shutdown
	go func() {
		select {
		case <-ctx.Done():
			c.closeGracefully(s, log)
		case <-s.done:
		}
	}()
	go c.writePump(s, log)

	c.readPump(s, h, log)

	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	s.close()

	log.Info().Msg("disconnected")
	h.OnDisconnected()
}

func (c *Channel) readPump(s *session, h Handler, log zerolog.Logger) {
	s.ws.SetReadLimit(maxMessageSize)
	if err := s.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, message, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		// Any inbound frame proves the peer is alive
		if err := s.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Error().Err(err).Msg("failed to set read deadline")
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		log.Debug().Int("bytes", len(message)).Msg("message received")
		if err := h.HandleMessage(message); err != nil {
			log.Debug().Err(err).Msg("message rejected")
		}
	}
}

func (c *Channel) write(s *session, mt int, payload []byte) error {
	if err := s.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.ws.WriteMessage(mt, payload)
}

func (c *Channel) writePump(s *session, log zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case <-s.done:
			return
		case message := <-s.send:
			if err := c.write(s, websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Msg("failed to write message")
				return
			}
			log.Debug().Bytes("message", message).Msg("message sent")
		case <-ticker.C:
			if err := c.write(s, websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Msg("failed to write ping")
				return
			}
		}
	}
}

// closeGracefully sends a close frame before tearing the connection down
func (c *Channel) closeGracefully(s *session, log zerolog.Logger) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down")
	if err := s.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		log.Debug().Err(err).Msg("failed to write close message")
	}
	s.close()
}
