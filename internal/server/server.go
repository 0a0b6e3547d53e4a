// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr matches the host and port of the client's default endpoint.
	DefaultAddr = "127.0.0.1:10001"

	// ChatPath is the SSE chat route.
	ChatPath = "/api/v1/chat/sse"

	// DefaultChunkDelay paces streamed words.
	DefaultChunkDelay = 40 * time.Millisecond

	// MaxMessageLength bounds the echoed message.
	MaxMessageLength = 100000

	// Version is the server version.
	Version = "0.1.0"
)

// ============================================================================
// SERVER
// ============================================================================

// Options configures a Server.
type Options struct {
	// Addr is the listen address. Empty means DefaultAddr.
	Addr string
	// ChunkDelay is the pause between streamed words. Zero streams at once.
	ChunkDelay time.Duration
	// Tools are announced as tool calls before the reply and summarized in
	// a tool result after it.
	Tools []string
	Log   zerolog.Logger
}

// Stats counts requests served.
type Stats struct {
	TotalRequests    int64 `json:"total_requests"`
	StreamsCompleted int64 `json:"streams_completed"`
	StreamsCancelled int64 `json:"streams_cancelled"`
}

// Server is a local chat backend that streams each message back word by
// word over server-sent events. It keeps no state between requests beyond
// counters.
type Server struct {
	opts   Options
	log    zerolog.Logger
	router *http.ServeMux

	mu     sync.Mutex
	server *http.Server
	closed bool

	start     time.Time
	requests  atomic.Int64
	completed atomic.Int64
	cancelled atomic.Int64
}

// New creates a Server. Call Serve or ListenAndServe to start it.
func New(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	s := &Server{
		opts:   opts,
		log:    opts.Log.With().Str("component", "server").Logger(),
		router: http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.opts.Addr
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET "+ChatPath, s.handleChat)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /stats", s.handleStats)
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(s.log),
		LoggingMiddleware(s.log),
	)(s.router)
}

// ============================================================================
// CHAT HANDLER
// ============================================================================

// frame is one SSE data payload in the format the client decodes.
type frame struct {
	Text      string     `json:"text,omitempty"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
	Result    string     `json:"result,omitempty"`
}

type toolCall struct {
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)

	message := strings.TrimSpace(r.URL.Query().Get("message"))
	if message == "" {
		s.writeError(w, http.StatusBadRequest, "message parameter is required")
		return
	}
	if len(message) > MaxMessageLength {
		s.writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("message exceeds %d bytes", MaxMessageLength))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := s.stream(r.Context(), w, flusher, message); err != nil {
		s.cancelled.Add(1)
		s.log.Debug().Err(err).Msg("stream ended early")
		return
	}
	s.completed.Add(1)
}

// stream writes the reply frames, stopping when ctx ends.
func (s *Server) stream(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, message string) error {
	if len(s.opts.Tools) > 0 {
		calls := make([]toolCall, len(s.opts.Tools))
		for i, name := range s.opts.Tools {
			calls[i].Function.Name = name
		}
		if err := s.send(ctx, w, flusher, frame{ToolCalls: calls}); err != nil {
			return err
		}
	}

	for _, word := range replyWords(message) {
		if err := s.send(ctx, w, flusher, frame{Text: word}); err != nil {
			return err
		}
	}

	if len(s.opts.Tools) > 0 {
		// The backend escapes newlines in tool output; the client undoes it.
		result := `\n\n_Tools: ` + strings.Join(s.opts.Tools, ", ") + `_`
		if err := s.send(ctx, w, flusher, frame{Result: result}); err != nil {
			return err
		}
	}
	return nil
}

// send waits out the chunk delay, then writes one frame.
func (s *Server) send(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, f frame) error {
	if s.opts.ChunkDelay > 0 {
		timer := time.NewTimer(s.opts.ChunkDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// replyWords splits the echo reply into chunks that concatenate back to it.
func replyWords(message string) []string {
	words := strings.Fields("You said: " + message)
	for i := range words[:len(words)-1] {
		words[i] += " "
	}
	return words
}

// ============================================================================
// HEALTH AND STATS
// ============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       Version,
		UptimeSeconds: int64(time.Since(s.start).Seconds()),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Stats())
}

// Stats returns the request counters.
func (s *Server) Stats() Stats {
	return Stats{
		TotalRequests:    s.requests.Load(),
		StreamsCompleted: s.completed.Load(),
		StreamsCancelled: s.cancelled.Load(),
	}
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe listens on the configured address and serves until
// Shutdown. It returns nil after a clean shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.server = srv
	s.mu.Unlock()

	s.log.Info().Str("addr", ln.Addr().String()).Str("version", Version).Msg("server started")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for open streams up to ctx.
// A Serve that has not started yet returns at once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.log.Info().Msg("server shutting down")
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"code":    status,
		},
	})
}
