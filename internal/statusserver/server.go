// Package statusserver exposes the narrow operational surface a long-running
// scan needs: a liveness probe, a Prometheus scrape endpoint, a point-in-time
// stats snapshot, and a server-sent-events stream of the pipeline's progress
// events. It is not a dashboard: there is no HTML, no request history, and no
// config editing.
package statusserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/fieldops/netdiscover/internal/config"
	"github.com/fieldops/netdiscover/internal/metrics"
	"github.com/fieldops/netdiscover/internal/pipeline"
	"github.com/fieldops/netdiscover/internal/tracing"
)

// subscriberBuffer bounds how many unread events a slow SSE client can
// accumulate before events are dropped for it.
const subscriberBuffer = 64

// Server serves /healthz, /metrics, /stats, and /events over HTTP. It also
// implements pipeline.Sink so the dispatcher can feed it progress events
// directly, which it then fans out to every connected SSE subscriber.
type Server struct {
	router    chi.Router
	collector *metrics.Collector
	addr      string
	server    *http.Server

	mu          sync.Mutex
	subscribers map[chan pipeline.Event]struct{}
}

// New creates a Server bound to collector and configured by cfg. It does not
// start listening until Start is called.
func New(collector *metrics.Collector, cfg config.StatusServerConfig) *Server {
	s := &Server{
		collector:   collector,
		addr:        fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port),
		subscribers: make(map[chan pipeline.Event]struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(tracing.HTTPMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/stats", s.handleStats)
	r.Get("/events", s.handleEvents)
	r.Get("/metrics", metrics.PrometheusHandler(collector))

	s.router = r
	return s
}

// Start begins listening on the configured address. It blocks until the
// server is shut down or fails to start.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // /events holds the connection open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("status server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server and closes every open SSE stream.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, ch)
	}
	s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Emit implements pipeline.Sink. It fans the event out to every connected
// SSE subscriber without blocking; a subscriber whose buffer is full misses
// the event rather than stalling the dispatcher.
func (s *Server) Emit(evt pipeline.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- evt:
		default:
			log.Warn().Str("kind", string(evt.Kind)).Msg("status server: dropping event for slow subscriber")
		}
	}
}

func (s *Server) subscribe() chan pipeline.Event {
	ch := make(chan pipeline.Event, subscriberBuffer)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan pipeline.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// handleHealthz reports whether the process is up. It never checks
// downstream dependencies: a scan run has none to report on beyond itself.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStats returns the current live collector snapshot as JSON, the same
// numbers /metrics exposes, shaped for a human or a script instead of
// Prometheus's scrape format.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.collector.Stats())
}

// handleEvents streams pipeline progress events as they occur using the
// text/event-stream wire format. The connection stays open until the client
// disconnects or the server shuts down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, evt); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// writeSSEEvent writes a single pipeline.Event to w in SSE wire format, with
// the event's Kind as the SSE event name and its JSON encoding as the data.
func writeSSEEvent(w http.ResponseWriter, evt pipeline.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", evt.Kind); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}

// writeJSON serialises v as JSON and writes it to w with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("status server: failed to write JSON response")
	}
}
