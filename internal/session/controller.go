// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/jeranaias/mcpchat/internal/chat"
	"github.com/jeranaias/mcpchat/internal/config"
	"github.com/jeranaias/mcpchat/internal/escape"
	"github.com/jeranaias/mcpchat/internal/model"
	"github.com/jeranaias/mcpchat/internal/stream"
)

// =============================================================================
// OPTIONS
// =============================================================================

// SendOptions configures a single Send.
type SendOptions struct {
	// APIURL overrides the controller's endpoint for this send.
	APIURL string
	// OnChunk receives each applied fragment and the text so far.
	OnChunk func(delta, full string)
	// OnError receives failures. It is not called for cancellation.
	OnError func(err error)
	// OnComplete receives the full text when the stream ends normally.
	OnComplete func(full string)
}

// Option configures a Controller.
type Option func(*Controller)

// WithHTTPClient sets the client used for the stream request.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Controller) {
		if client != nil {
			c.client = client
		}
	}
}

// WithLogger sets the controller's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) {
		c.log = log.With().Str("component", "session").Logger()
	}
}

// WithAPIURL sets the default chat endpoint.
func WithAPIURL(apiURL string) Option {
	return func(c *Controller) {
		if apiURL != "" {
			c.apiURL = apiURL
		}
	}
}

// NewHTTPClient returns a client suited to long-lived streams: no overall
// timeout (cancellation goes through the request context) and an optional
// bound on the wait for response headers.
func NewHTTPClient(headerTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	transport.IdleConnTimeout = 90 * time.Second
	return &http.Client{Transport: transport}
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller streams replies into a chat.Store. Send and Stop may be called
// from different goroutines.
type Controller struct {
	store  *chat.Store
	client *http.Client
	apiURL string
	log    zerolog.Logger

	active atomic.Bool

	// mu guards the fields below. Store writes happen outside mu; the store
	// drops stream writes once the message is finished, so no fragment
	// lands after Stop returns and subscribers may call Stop.
	mu      sync.Mutex
	cancel  context.CancelFunc
	msgID   string
	stopped bool
}

// NewController returns a controller writing into store.
func NewController(store *chat.Store, opts ...Option) *Controller {
	c := &Controller{
		store:  store,
		client: NewHTTPClient(0),
		apiURL: config.DefaultAPIURL,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Active reports whether a Send is in progress.
func (c *Controller) Active() bool {
	return c.active.Load()
}

// Send posts text to the chat endpoint and streams the reply into a new
// assistant message. It blocks until the stream ends, fails or is stopped.
// A second Send while one is active fails with ErrStreamActive before
// touching the store.
func (c *Controller) Send(ctx context.Context, text string, opts SendOptions) (string, error) {
	if !c.active.CompareAndSwap(false, true) {
		return "", ErrStreamActive
	}
	defer c.active.Store(false)

	apiURL := opts.APIURL
	if apiURL == "" {
		apiURL = c.apiURL
	}

	c.store.AddMessage(model.RoleUser, text)
	reply := c.store.AddMessage(model.RoleAssistant, "", chat.WithStreaming(true))

	// Stop must see the message before subscribers see the session stream.
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.msgID = reply.ID
	c.stopped = false
	c.mu.Unlock()
	defer c.release()

	c.store.BeginStreaming(reply.ID)
	if c.wasStopped() {
		c.store.StopStreaming(reply.ID)
	}

	log := c.log.With().Str("message_id", reply.ID).Logger()
	log.Debug().Str("url", apiURL).Int("length", len(text)).Msg("stream started")

	full, err := c.stream(ctx, apiURL, text, reply.ID, opts, log)

	switch {
	case c.wasStopped() || (ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled)):
		c.store.StopStreaming(reply.ID)
		log.Info().Int("length", len(full)).Msg("stream stopped")
		return full, nil

	case err != nil:
		if !c.markStopped() {
			return full, nil
		}
		c.store.UpdateMessage(reply.ID, FailureNotice)
		c.store.StopStreaming(reply.ID)
		log.Error().Err(err).Msg("stream failed")
		if opts.OnError != nil {
			opts.OnError(err)
		}
		return "", fmt.Errorf("send message: %w", err)

	default:
		c.store.FinishStreaming(reply.ID)
		log.Debug().Int("length", len(full)).Msg("stream complete")
		if opts.OnComplete != nil {
			opts.OnComplete(full)
		}
		return full, nil
	}
}

// Stop cancels the open stream, clears the in-flight message's tool calls
// and finishes it right away. Repeat calls and calls while idle do nothing.
func (c *Controller) Stop() {
	c.mu.Lock()
	id := c.msgID
	if id == "" || c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	c.store.StopStreaming(id)
}

// markStopped claims the stream for the failure path. It reports false when
// Stop got there first.
func (c *Controller) markStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	c.stopped = true
	return true
}

func (c *Controller) wasStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// release drops the cancel handle. The context is always canceled so the
// request's resources are freed.
func (c *Controller) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.msgID = ""
	c.stopped = false
}

// =============================================================================
// STREAMING
// =============================================================================

func (c *Controller) stream(ctx context.Context, apiURL, text, msgID string, opts SendOptions, log zerolog.Logger) (string, error) {
	reqURL, err := buildURL(apiURL, text)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	var acc strings.Builder
	reader := stream.NewReader(resp.Body)
	for {
		name, payload, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return acc.String(), nil
		}
		if err != nil {
			return acc.String(), fmt.Errorf("read stream: %w", err)
		}

		ev, err := stream.Decode(name, payload)
		if err != nil {
			log.Warn().Err(err).Str("event", name).Str("payload", truncate(payload, 200)).Msg("skipping malformed event")
			continue
		}

		chunks, ok := c.apply(msgID, &acc, ev)
		if !ok {
			return acc.String(), context.Canceled
		}
		if opts.OnChunk != nil {
			for _, ch := range chunks {
				opts.OnChunk(ch.delta, ch.full)
			}
		}
	}
}

type chunk struct {
	delta string
	full  string
}

// apply writes one event into the store. It reports false once the stream
// has been stopped; nothing is written in that case.
func (c *Controller) apply(msgID string, acc *strings.Builder, ev stream.Event) ([]chunk, bool) {
	if c.wasStopped() {
		return nil, false
	}

	full := acc.String()
	var chunks []chunk
	var tools []string
	if ev.Text != "" {
		full += ev.Text
		chunks = append(chunks, chunk{delta: ev.Text, full: full})
	}
	if names := ev.ToolNames(); len(names) > 0 {
		tools = names
	}
	if res, ok := ev.ResultText(); ok {
		res = escape.Unescape(res)
		full += res
		tools = []string{}
		chunks = append(chunks, chunk{delta: res, full: full})
	}
	if len(chunks) == 0 && tools == nil {
		return nil, true
	}

	if !c.store.UpdateStreaming(msgID, full, tools) {
		return nil, false
	}
	acc.Reset()
	acc.WriteString(full)
	return chunks, true
}

// buildURL adds the message as the "message" query parameter, keeping any
// query the endpoint already has.
func buildURL(apiURL, text string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("invalid api url %q: %w", apiURL, err)
	}
	q := u.Query()
	q.Set("message", text)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func truncate(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	b = b[:max]
	for len(b) > 0 && !utf8.Valid(b) {
		b = b[:len(b)-1]
	}
	return string(b) + "..."
}
