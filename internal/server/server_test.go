// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/mcpchat/internal/chat"
	"github.com/jeranaias/mcpchat/internal/session"
)

func chatURL(base, message string) string {
	return base + ChatPath + "?message=" + url.QueryEscape(message)
}

// =============================================================================
// HANDLER TESTS
// =============================================================================

func TestHandleChat_Frames(t *testing.T) {
	s := New(Options{Tools: []string{"search"}})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(chatURL(srv.URL, "hello world"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var frames []frame
	for _, line := range strings.Split(string(body), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var f frame
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f))
		frames = append(frames, f)
	}

	require.GreaterOrEqual(t, len(frames), 3)
	require.Len(t, frames[0].ToolCalls, 1)
	assert.Equal(t, "search", frames[0].ToolCalls[0].Function.Name)

	var text strings.Builder
	for _, f := range frames[1 : len(frames)-1] {
		text.WriteString(f.Text)
	}
	assert.Equal(t, "You said: hello world", text.String())
	assert.Equal(t, `\n\n_Tools: search_`, frames[len(frames)-1].Result)

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.StreamsCompleted)
}

func TestHandleChat_MissingMessage(t *testing.T) {
	s := New(Options{})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("GET", ChatPath, nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "message parameter is required")
}

func TestHandleChat_MessageTooLong(t *testing.T) {
	s := New(Options{})
	w := httptest.NewRecorder()
	long := strings.Repeat("a", MaxMessageLength+1)
	s.Handler().ServeHTTP(w, httptest.NewRequest("GET", ChatPath+"?message="+long, nil))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHandleChat_WrongMethod(t *testing.T) {
	s := New(Options{})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("POST", ChatPath+"?message=hi", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleHealth(t *testing.T) {
	s := New(Options{})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, Version, resp.Version)
}

func TestHandleStats(t *testing.T) {
	s := New(Options{})
	h := s.Handler()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", ChatPath, nil))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/stats", nil))

	var stats Stats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Equal(t, int64(0), stats.StreamsCompleted)
}

func TestReplyWords(t *testing.T) {
	words := replyWords("  a   b ")
	assert.Equal(t, []string{"You ", "said: ", "a ", "b"}, words)
}

// =============================================================================
// CLIENT ROUND TRIP
// =============================================================================

func TestControllerAgainstServer(t *testing.T) {
	s := New(Options{Tools: []string{"lookup"}})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	store := chat.NewStore()
	ctrl := session.NewController(store, session.WithAPIURL(srv.URL+ChatPath))

	full, err := ctrl.Send(context.Background(), "ping", session.SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, "You said: ping\n\n_Tools: lookup_", full)

	msgs := store.Messages()
	require.Len(t, msgs, 2)
	assert.Empty(t, msgs[1].ToolCalls, "the tool result clears the tool list")
	assert.False(t, msgs[1].Streaming)
}

func TestControllerStopCancelsStream(t *testing.T) {
	s := New(Options{ChunkDelay: 50 * time.Millisecond})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	store := chat.NewStore()
	ctrl := session.NewController(store, session.WithAPIURL(srv.URL+ChatPath))

	first := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Send(context.Background(), strings.Repeat("word ", 50), session.SendOptions{
			OnChunk: func(string, string) {
				select {
				case first <- struct{}{}:
				default:
				}
			},
		})
		done <- err
	}()

	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("no chunk arrived")
	}
	ctrl.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Send did not return after Stop")
	}

	require.Eventually(t, func() bool {
		return s.Stats().StreamsCancelled == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(Options{Addr: ln.Addr().String(), Log: zerolog.Nop()})
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, <-errCh)
}

func TestShutdownBeforeServe(t *testing.T) {
	assert.NoError(t, New(Options{}).Shutdown(context.Background()))
	assert.Equal(t, DefaultAddr, New(Options{}).Addr())
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mark("a"), mark("b"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestLoggingMiddlewareKeepsFlusher(t *testing.T) {
	var flushable bool
	h := LoggingMiddleware(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushable = w.(http.Flusher)
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.True(t, flushable)
	assert.Equal(t, http.StatusTeapot, w.Code)
}
