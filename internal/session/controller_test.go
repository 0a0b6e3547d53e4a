// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/mcpchat/internal/chat"
	"github.com/jeranaias/mcpchat/internal/model"
)

// =============================================================================
// HELPERS
// =============================================================================

// sseServer replays lines as a text/event-stream body, flushing after each.
func sseServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// blockingServer sends first, then holds the connection open until the
// client goes away.
func blockingServer(t *testing.T, first string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "%s\n\n", first)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	return srv
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type recorder struct {
	mu       sync.Mutex
	deltas   []string
	errs     []error
	complete []string
}

func (r *recorder) options(apiURL string) SendOptions {
	return SendOptions{
		APIURL: apiURL,
		OnChunk: func(delta, full string) {
			r.mu.Lock()
			r.deltas = append(r.deltas, delta)
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
		OnComplete: func(full string) {
			r.mu.Lock()
			r.complete = append(r.complete, full)
			r.mu.Unlock()
		},
	}
}

func assistantReply(t *testing.T, store *chat.Store) *model.Message {
	t.Helper()
	msgs := store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	return msgs[1]
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestSend_TextToolCallAndResult(t *testing.T) {
	srv := sseServer(t,
		`data: {"text":"Hello"}`,
		`data: {"tool_calls":[{"function":{"name":"search"}}]}`,
		`data: {"result":"42"}`,
	)

	store := chat.NewStore()
	store.CreateConversation("")

	var toolStates [][]string
	var mu sync.Mutex
	unsubscribe := store.Subscribe(func() {
		if m := store.InFlight(); m != nil {
			mu.Lock()
			toolStates = append(toolStates, m.ToolCalls)
			mu.Unlock()
		}
	})
	defer unsubscribe()

	rec := &recorder{}
	ctrl := NewController(store)
	full, err := ctrl.Send(context.Background(), "what is the answer?", rec.options(srv.URL))
	require.NoError(t, err)

	assert.Equal(t, "Hello42", full)
	assert.Equal(t, []string{"Hello", "42"}, rec.deltas)
	assert.Equal(t, []string{"Hello42"}, rec.complete)
	assert.Empty(t, rec.errs)

	reply := assistantReply(t, store)
	assert.Equal(t, "Hello42", reply.Content)
	assert.Empty(t, reply.ToolCalls)
	assert.False(t, reply.Streaming)
	assert.False(t, store.IsStreaming())
	assert.False(t, ctrl.Active())

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, toolStates, []string{"search"}, "tool call shown while running")

	conv := store.Active()
	assert.Equal(t, "what is the answer?", conv.Title)
	assert.Equal(t, "Hello42", conv.Messages[1].Content, "stored copy kept in sync")
}

func TestSend_RequestShape(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Header().Set("Content-Type", "text/event-stream")
	}))
	defer srv.Close()

	ctrl := NewController(chat.NewStore(), WithAPIURL(srv.URL+"/api/v1/chat/sse?lang=en"))
	_, err := ctrl.Send(context.Background(), "a & b = c?", SendOptions{})
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/api/v1/chat/sse", got.URL.Path)
	assert.Equal(t, "text/event-stream", got.Header.Get("Accept"))
	assert.Equal(t, "a & b = c?", got.URL.Query().Get("message"))
	assert.Equal(t, "en", got.URL.Query().Get("lang"))
}

func TestSend_MalformedEventSkipped(t *testing.T) {
	srv := sseServer(t,
		`data: {"text":"one "}`,
		`data: {not valid json}`,
		`data: {"text":"two"}`,
	)

	store := chat.NewStore()
	rec := &recorder{}
	full, err := NewController(store).Send(context.Background(), "count", rec.options(srv.URL))
	require.NoError(t, err)

	assert.Equal(t, "one two", full)
	assert.Equal(t, []string{"one ", "two"}, rec.deltas)
	assert.Empty(t, rec.errs)
}

func TestSend_EventNamesAndStructuredResults(t *testing.T) {
	srv := sseServer(t,
		"event: start_tool_call\ndata: {\"tool_calls\":[{\"custom\":{\"name\":\"chart\"}},{},{\"type\":\"code\"}]}",
		"event: tool_result\ndata: {\"result\":{\"rows\":2}}",
		"event: delta\ndata: {\"text\":\"\\n\"}",
		"event: tool_result\ndata: {\"result\":\"line\\\\nnext\\\\tcol\"}",
		"event: done\ndata: {}",
	)

	store := chat.NewStore()
	full, err := NewController(store).Send(context.Background(), "plot", SendOptions{APIURL: srv.URL})
	require.NoError(t, err)

	assert.Equal(t, "{\n  \"rows\": 2\n}\nline\nnext\tcol", full)
	assert.Equal(t, full, assistantReply(t, store).Content)
}

func TestSend_IgnoresEmptyAndFalsyFields(t *testing.T) {
	srv := sseServer(t,
		`data: {"text":""}`,
		`data: {"tool_calls":[]}`,
		`data: {"result":null}`,
		`data: {"result":0}`,
		`data: {"text":"ok"}`,
	)

	rec := &recorder{}
	full, err := NewController(chat.NewStore()).Send(context.Background(), "x", rec.options(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "ok", full)
	assert.Equal(t, []string{"ok"}, rec.deltas)
}

func TestSend_StopMidStream(t *testing.T) {
	srv := blockingServer(t, `data: {"text":"partial"}`)

	store := chat.NewStore()
	ctrl := NewController(store)

	firstChunk := make(chan struct{})
	var once sync.Once
	rec := &recorder{}
	opts := rec.options(srv.URL)
	onChunk := opts.OnChunk
	opts.OnChunk = func(delta, full string) {
		onChunk(delta, full)
		once.Do(func() { close(firstChunk) })
	}

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		text, err := ctrl.Send(context.Background(), "long question", opts)
		done <- outcome{text, err}
	}()

	select {
	case <-firstChunk:
	case <-time.After(5 * time.Second):
		t.Fatal("first chunk never arrived")
	}
	require.True(t, ctrl.Active())

	ctrl.Stop()
	// Finished immediately, before the network teardown completes.
	reply := assistantReply(t, store)
	assert.False(t, reply.Streaming)
	assert.False(t, store.IsStreaming())

	ctrl.Stop() // repeat is harmless

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, "partial", res.text)
	case <-time.After(5 * time.Second):
		t.Fatal("Send did not return after Stop")
	}

	reply = assistantReply(t, store)
	assert.Equal(t, "partial", reply.Content)
	assert.False(t, reply.Streaming)
	assert.Empty(t, reply.ToolCalls)
	assert.Empty(t, rec.errs, "stop is not an error")
	assert.Empty(t, rec.complete)
	assert.False(t, ctrl.Active())
}

func TestSend_StopClearsRunningTools(t *testing.T) {
	srv := blockingServer(t, `data: {"tool_calls":[{"function":{"name":"slow_tool"}}]}`)

	store := chat.NewStore()
	ctrl := NewController(store)

	running := make(chan struct{})
	var once sync.Once
	unsubscribe := store.Subscribe(func() {
		if m := store.InFlight(); m != nil && len(m.ToolCalls) > 0 {
			once.Do(func() { close(running) })
		}
	})
	defer unsubscribe()

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Send(context.Background(), "use the tool", SendOptions{APIURL: srv.URL})
		done <- err
	}()

	select {
	case <-running:
	case <-time.After(5 * time.Second):
		t.Fatal("tool call never shown")
	}
	ctrl.Stop()
	require.NoError(t, <-done)

	reply := assistantReply(t, store)
	assert.Empty(t, reply.ToolCalls)
	assert.Equal(t, "", reply.Content)
}

func TestSend_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := chat.NewStore()
	rec := &recorder{}
	full, err := NewController(store).Send(context.Background(), "hi", rec.options(srv.URL))
	require.Error(t, err)
	assert.Equal(t, "", full)

	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusInternalServerError, serr.StatusCode)
	assert.Equal(t, "backend exploded", serr.Body)
	assert.True(t, IsStatusError(err))

	reply := assistantReply(t, store)
	assert.Equal(t, FailureNotice, reply.Content)
	assert.False(t, reply.Streaming)
	require.Len(t, rec.errs, 1)
	assert.Empty(t, rec.complete)
}

func TestSend_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	store := chat.NewStore()
	rec := &recorder{}
	_, err := NewController(store).Send(context.Background(), "hi", rec.options(addr))
	require.Error(t, err)
	assert.False(t, IsStatusError(err))
	assert.Equal(t, FailureNotice, assistantReply(t, store).Content)
	assert.Len(t, rec.errs, 1)
}

func TestSend_ReadErrorMidStream(t *testing.T) {
	boom := errors.New("connection reset by peer")
	client := &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			body := io.MultiReader(strings.NewReader("data: {\"text\":\"half\"}\n\n"), iotest.ErrReader(boom))
			resp := &http.Response{
				StatusCode: http.StatusOK,
				Header:     make(http.Header),
				Body:       io.NopCloser(body),
			}
			resp.Header.Set("Content-Type", "text/event-stream")
			return resp, nil
		}),
	}

	store := chat.NewStore()
	rec := &recorder{}
	_, err := NewController(store, WithHTTPClient(client)).Send(context.Background(), "hi", rec.options("http://chat.invalid/sse"))
	require.ErrorIs(t, err, boom)

	assert.Equal(t, []string{"half"}, rec.deltas)
	assert.Equal(t, FailureNotice, assistantReply(t, store).Content)
	assert.Len(t, rec.errs, 1)
}

func TestSend_RejectsConcurrentSend(t *testing.T) {
	srv := blockingServer(t, `data: {"text":"busy"}`)

	store := chat.NewStore()
	ctrl := NewController(store)

	started := make(chan struct{})
	var once sync.Once
	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Send(context.Background(), "first", SendOptions{
			APIURL:  srv.URL,
			OnChunk: func(string, string) { once.Do(func() { close(started) }) },
		})
		done <- err
	}()
	<-started

	_, err := ctrl.Send(context.Background(), "second", SendOptions{APIURL: srv.URL})
	assert.ErrorIs(t, err, ErrStreamActive)
	assert.Len(t, store.Messages(), 2, "rejected send adds no messages")

	ctrl.Stop()
	require.NoError(t, <-done)

	// Idle again: a new send is accepted.
	quick := sseServer(t, `data: {"text":"next"}`)
	full, err := ctrl.Send(context.Background(), "third", SendOptions{APIURL: quick.URL})
	require.NoError(t, err)
	assert.Equal(t, "next", full)
	assert.Len(t, store.Messages(), 4)
}

func TestSend_ParentContextCanceledIsNotAnError(t *testing.T) {
	srv := blockingServer(t, `data: {"text":"so far"}`)

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	opts := rec.options(srv.URL)
	opts.OnChunk = func(string, string) { cancel() }

	store := chat.NewStore()
	full, err := NewController(store).Send(ctx, "hi", opts)
	require.NoError(t, err)
	assert.Equal(t, "so far", full)
	assert.Empty(t, rec.errs)
	assert.False(t, assistantReply(t, store).Streaming)
}

func TestSend_ParentContextCanceledClearsRunningTools(t *testing.T) {
	srv := blockingServer(t, `data: {"tool_calls":[{"function":{"name":"slow"}}]}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := chat.NewStore()
	store.CreateConversation("")
	var once sync.Once
	unsubscribe := store.Subscribe(func() {
		if m := store.InFlight(); m != nil && len(m.ToolCalls) > 0 {
			once.Do(cancel)
		}
	})
	defer unsubscribe()

	_, err := NewController(store).Send(ctx, "use the tool", SendOptions{APIURL: srv.URL})
	require.NoError(t, err)

	reply := assistantReply(t, store)
	assert.Empty(t, reply.ToolCalls)
	assert.False(t, reply.Streaming)
	assert.Empty(t, store.Active().Messages[1].ToolCalls, "stored copy is cleared too")
}

func TestSend_FailureClearsRunningTools(t *testing.T) {
	body := "data: {\"tool_calls\":[{\"function\":{\"name\":\"slow\"}}]}\n\n"
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": {"text/event-stream"}},
			Body: io.NopCloser(io.MultiReader(
				strings.NewReader(body),
				iotest.ErrReader(errors.New("connection reset")),
			)),
		}, nil
	})}

	store := chat.NewStore()
	_, err := NewController(store, WithHTTPClient(client)).Send(context.Background(), "hi", SendOptions{APIURL: "http://backend"})
	require.Error(t, err)

	reply := assistantReply(t, store)
	assert.Equal(t, FailureNotice, reply.Content)
	assert.Empty(t, reply.ToolCalls)
}

func TestSend_DeadlineIsAFailure(t *testing.T) {
	// Headers are never sent, so the deadline hits while waiting on them.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	store := chat.NewStore()
	rec := &recorder{}
	_, err := NewController(store).Send(ctx, "hi", rec.options(srv.URL))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, FailureNotice, assistantReply(t, store).Content)
	assert.Len(t, rec.errs, 1)
}

func TestSend_InvalidURL(t *testing.T) {
	store := chat.NewStore()
	_, err := NewController(store).Send(context.Background(), "hi", SendOptions{APIURL: "http://bad host/%zz"})
	require.Error(t, err)
	assert.Equal(t, FailureNotice, assistantReply(t, store).Content)
	assert.False(t, store.IsStreaming())
}

// =============================================================================
// STOP TESTS
// =============================================================================

func TestStop_IdleIsNoop(t *testing.T) {
	store := chat.NewStore()
	store.CreateConversation("")
	ctrl := NewController(store)

	assert.NotPanics(t, ctrl.Stop)
	assert.NotPanics(t, ctrl.Stop)
	assert.False(t, ctrl.Active())
	assert.Empty(t, store.Messages())
}

func TestStop_FromSubscriberWhenStreamBegins(t *testing.T) {
	srv := blockingServer(t, `data: {"text":"never shown"}`)

	store := chat.NewStore()
	ctrl := NewController(store)
	var once sync.Once
	unsubscribe := store.Subscribe(func() {
		if store.IsStreaming() {
			once.Do(ctrl.Stop)
		}
	})
	defer unsubscribe()

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Send(context.Background(), "hi", SendOptions{APIURL: srv.URL})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop at stream start was lost")
	}
	reply := assistantReply(t, store)
	assert.False(t, reply.Streaming)
	assert.Empty(t, reply.Content)
	assert.False(t, store.IsStreaming())
}

func TestStop_FromSubscriberAfterFirstFragment(t *testing.T) {
	srv := sseServer(t, `data: {"text":"one "}`, `data: {"text":"two"}`)

	store := chat.NewStore()
	ctrl := NewController(store)
	var once sync.Once
	unsubscribe := store.Subscribe(func() {
		if m := store.InFlight(); m != nil && m.Content != "" {
			once.Do(ctrl.Stop)
		}
	})
	defer unsubscribe()

	done := make(chan string, 1)
	go func() {
		full, _ := ctrl.Send(context.Background(), "hi", SendOptions{APIURL: srv.URL})
		done <- full
	}()

	select {
	case full := <-done:
		assert.Equal(t, "one ", full)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop from a subscriber deadlocked")
	}
	reply := assistantReply(t, store)
	assert.Equal(t, "one ", reply.Content, "no fragment after Stop")
	assert.False(t, reply.Streaming)
}

func TestBuildURL(t *testing.T) {
	got, err := buildURL("http://localhost:10001/api/v1/chat/sse", "hello world")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:10001/api/v1/chat/sse?message=hello+world", got)
}

func TestStatusError_Message(t *testing.T) {
	assert.Equal(t, "unexpected status 502", (&StatusError{StatusCode: 502}).Error())
	assert.Equal(t, "unexpected status 404: nope", (&StatusError{StatusCode: 404, Body: "nope"}).Error())
}
