// Package http serves the overlay's health, status and metrics endpoints
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	v1alpha1 "github.com/wrale/wrale-overlay/api/types/v1alpha1"
	"github.com/wrale/wrale-overlay/internal/woverlay/metrics"
	"github.com/wrale/wrale-overlay/internal/woverlay/notification/controller"
)

// StatusSource reports controller state
type StatusSource interface {
	Snapshot() controller.Snapshot
}

// Link reports whether the control connection is currently held
type Link interface {
	Connected() bool
}

// History returns recently published lifecycle events, newest first
type History interface {
	Recent(ctx context.Context, n int) ([][]byte, error)
}

// Option configures a Handler
type Option func(*Handler)

// WithLink makes readiness also depend on the live transport state
func WithLink(l Link) Option {
	return func(h *Handler) {
		h.link = l
	}
}

// WithHistory serves recent lifecycle events on /events
func WithHistory(hist History) Option {
	return func(h *Handler) {
		h.history = hist
	}
}

// Handler encapsulates the status HTTP API
type Handler struct {
	source   StatusSource
	gatherer prometheus.Gatherer
	metrics  *metrics.Recorder
	link     Link
	history  History
	logger   zerolog.Logger
}

// NewHandler creates a status handler. metrics may be nil.
func NewHandler(source StatusSource, gatherer prometheus.Gatherer, m *metrics.Recorder, logger zerolog.Logger, opts ...Option) *Handler {
	h := &Handler{
		source:   source,
		gatherer: gatherer,
		metrics:  m,
		logger:   logger.With().Str("component", "status").Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router returns the HTTP router for status endpoints
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestIDHeaderMiddleware)
	r.Use(middleware.RealIP)
	r.Use(recoverMiddleware(h.logger))
	r.Use(logMiddleware(h.logger))
	if h.metrics != nil {
		r.Use(metricsMiddleware(h.metrics))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))

		r.Get("/healthz", h.handleHealth())
		r.Get("/readyz", h.handleReady())
		r.Get("/status", h.GetStatus)
		if h.history != nil {
			r.Get("/events", h.ListEvents)
		}
	})
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"}, h.logger)
	})

	return r
}

// handleHealth reports that the process is serving
func (h *Handler) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.logger)
	}
}

// handleReady reports ready only while the control link is up
func (h *Handler) handleReady() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.source.Snapshot().Connected || (h.link != nil && !h.link.Connected()) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "disconnected"}, h.logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.logger)
	}
}

// GetStatus returns the controller snapshot
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := ToAPI(h.source.Snapshot())
	if h.link != nil {
		up := h.link.Connected()
		status.LinkUp = &up
	}
	writeJSON(w, http.StatusOK, status, h.logger)
}

// ListEvents returns recent lifecycle events. The optional limit query
// parameter caps how many are returned.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"}, h.logger)
			return
		}
		limit = n
	}

	recent, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read event history")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "event history unavailable"}, h.logger)
		return
	}

	list := v1alpha1.OverlayEventList{
		TypeMeta: v1alpha1.TypeMeta{
			Kind:       "OverlayEventList",
			APIVersion: v1alpha1.APIVersion,
		},
		Items: make([]json.RawMessage, len(recent)),
	}
	for i, raw := range recent {
		list.Items[i] = raw
	}
	writeJSON(w, http.StatusOK, list, h.logger)
}

// ToAPI converts a controller snapshot to its published form
func ToAPI(s controller.Snapshot) v1alpha1.OverlayStatus {
	out := v1alpha1.OverlayStatus{
		TypeMeta: v1alpha1.TypeMeta{
			Kind:       "OverlayStatus",
			APIVersion: v1alpha1.APIVersion,
		},
		Connected: s.Connected,
		State:     string(s.State),
		Counters: v1alpha1.OverlayCounters{
			Received:     s.Counters.Received,
			Acknowledged: s.Counters.Acknowledged,
			Superseded:   s.Counters.Superseded,
			Abandoned:    s.Counters.Abandoned,
			Dropped:      s.Counters.Dropped,
		},
		UpdatedAt: s.UpdatedAt.UTC(),
	}
	if a := s.Active; a != nil {
		out.Active = &v1alpha1.ActiveNotification{
			ID:      a.ID,
			Kind:    string(a.Kind),
			Trigger: string(a.Trigger),
			Text:    a.Text,
			Sound:   a.Sound,
			Video:   a.Video,
			Since:   a.Since.UTC(),
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any, logger zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("failed to encode response")
	}
}
