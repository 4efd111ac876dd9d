/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes the read-only status and metrics HTTP surface.
// It observes the controller through the event bus so the control loop stays
// the sole owner of scheduling state.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/friendsincode/skuld_tv/internal/events"
	"github.com/friendsincode/skuld_tv/internal/logbuffer"
	"github.com/friendsincode/skuld_tv/internal/telemetry"
	"github.com/friendsincode/skuld_tv/internal/version"
)

// Status is the channel state reported by the API.
type Status struct {
	Version       string         `json:"version"`
	NowPlaying    map[string]any `json:"now_playing,omitempty"`
	Queue         []string       `json:"queue"`
	QueueDepth    int            `json:"queue_depth"`
	LastSlot      map[string]any `json:"last_slot,omitempty"`
	LastError     string         `json:"last_error,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at"`
	SkippedClips  int            `json:"skipped_clips"`
	StartedAt     time.Time      `json:"started_at"`
}

// Server serves the status API.
type Server struct {
	router    chi.Router
	logger    zerolog.Logger
	logBuffer *logbuffer.Buffer

	mu     sync.RWMutex
	status Status
}

// New creates the status server and starts consuming bus events.
func New(bus *events.Bus, logBuffer *logbuffer.Buffer, logger zerolog.Logger) *Server {
	s := &Server{
		logger:    logger.With().Str("component", "server").Logger(),
		logBuffer: logBuffer,
		status: Status{
			Version:   version.Version,
			StartedAt: time.Now(),
			Queue:     []string{},
		},
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(telemetry.MetricsMiddleware)

	router.Get("/healthz", s.handleHealth)
	router.Get("/api/status", s.handleStatus)
	router.Get("/api/logs", s.handleLogs)
	router.Handle("/metrics", promhttp.Handler())

	s.router = router

	// Subscriptions are registered before New returns so events published
	// immediately after construction are not lost.
	subs := subscriptions{
		nowPlaying: bus.Subscribe(events.EventNowPlaying),
		slotFired:  bus.Subscribe(events.EventSlotFired),
		refilled:   bus.Subscribe(events.EventQueueRefilled),
		cycleErr:   bus.Subscribe(events.EventCycleError),
		skipped:    bus.Subscribe(events.EventClipSkipped),
	}
	go s.consumeEvents(subs)
	return s
}

type subscriptions struct {
	nowPlaying events.Subscriber
	slotFired  events.Subscriber
	refilled   events.Subscriber
	cycleErr   events.Subscriber
	skipped    events.Subscriber
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer builds an http.Server bound to addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (s *Server) consumeEvents(subs subscriptions) {
	for {
		select {
		case payload, ok := <-subs.nowPlaying:
			if !ok {
				return
			}
			s.update(func(st *Status) { st.NowPlaying = payload })
		case payload, ok := <-subs.slotFired:
			if !ok {
				return
			}
			s.update(func(st *Status) { st.LastSlot = payload })
		case payload, ok := <-subs.refilled:
			if !ok {
				return
			}
			s.update(func(st *Status) {
				if depth, ok := payload["depth"].(int); ok {
					st.QueueDepth = depth
				}
				if clips, ok := payload["clips"].([]string); ok {
					st.Queue = clips
				}
			})
		case payload, ok := <-subs.cycleErr:
			if !ok {
				return
			}
			s.update(func(st *Status) {
				if msg, ok := payload["error"].(string); ok {
					st.LastError = msg
				}
			})
		case _, ok := <-subs.skipped:
			if !ok {
				return
			}
			s.update(func(st *Status) { st.SkippedClips++ })
		}
	}
}

func (s *Server) update(apply func(*Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	apply(&s.status)
	s.status.UpdatedAt = time.Now()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Version})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	status := s.status
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 200
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	level := r.URL.Query().Get("level")
	search := r.URL.Query().Get("q")

	var entries []logbuffer.Entry
	if level == "" && search == "" {
		entries = s.logBuffer.Tail(limit)
	} else {
		entries = s.logBuffer.Filter(level, search)
		if len(entries) > limit {
			entries = entries[len(entries)-limit:]
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
