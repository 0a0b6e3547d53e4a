// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"errors"
	"sync"
	"time"
)

// =============================================================================
// TOAST TYPES
// =============================================================================

// Level is a toast's severity.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// DefaultDuration is how long a toast stays up unless overridden.
const DefaultDuration = 2600 * time.Millisecond

// MaxSubscribers bounds Subscribe.
const MaxSubscribers = 16

// ErrTooManySubscribers is returned once MaxSubscribers are registered.
var ErrTooManySubscribers = errors.New("too many toast subscribers")

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("toast bus closed")

// Toast is one notification.
type Toast struct {
	ID        int
	Level     Level
	Message   string
	CreatedAt time.Time
	Duration  time.Duration // <= 0 stays until removed
}

// Event is delivered to subscribers when a toast appears or goes away.
type Event struct {
	Toast   Toast
	Removed bool
}

// ToastOption customizes Show.
type ToastOption func(*Toast)

// WithLevel sets the toast level.
func WithLevel(level Level) ToastOption {
	return func(t *Toast) { t.Level = level }
}

// WithDuration overrides DefaultDuration. A non-positive duration keeps the
// toast until Remove.
func WithDuration(d time.Duration) ToastOption {
	return func(t *Toast) { t.Duration = d }
}

// =============================================================================
// BUS
// =============================================================================

// Bus holds the visible toasts, newest first.
type Bus struct {
	mu     sync.Mutex
	toasts []Toast
	timers map[int]*time.Timer
	subs   map[int]chan Event
	nextID int
	subID  int
	closed bool
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{
		timers: make(map[int]*time.Timer),
		subs:   make(map[int]chan Event),
	}
}

// Show adds a toast and returns its ID. The default level is info.
func (b *Bus) Show(message string, opts ...ToastOption) int {
	t := Toast{
		Level:     LevelInfo,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  DefaultDuration,
	}
	for _, opt := range opts {
		opt(&t)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	t.ID = b.nextID
	if b.closed {
		return t.ID
	}

	b.toasts = append([]Toast{t}, b.toasts...)
	if t.Duration > 0 {
		id := t.ID
		b.timers[id] = time.AfterFunc(t.Duration, func() { b.Remove(id) })
	}
	b.publishLocked(Event{Toast: t})
	return t.ID
}

// Info shows an info toast.
func (b *Bus) Info(message string, opts ...ToastOption) int {
	return b.Show(message, append(opts, WithLevel(LevelInfo))...)
}

// Success shows a success toast.
func (b *Bus) Success(message string, opts ...ToastOption) int {
	return b.Show(message, append(opts, WithLevel(LevelSuccess))...)
}

// Warning shows a warning toast.
func (b *Bus) Warning(message string, opts ...ToastOption) int {
	return b.Show(message, append(opts, WithLevel(LevelWarning))...)
}

// Error shows an error toast.
func (b *Bus) Error(message string, opts ...ToastOption) int {
	return b.Show(message, append(opts, WithLevel(LevelError))...)
}

// Remove dismisses a toast. Unknown IDs are ignored.
func (b *Bus) Remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if timer, ok := b.timers[id]; ok {
		timer.Stop()
		delete(b.timers, id)
	}
	for i, t := range b.toasts {
		if t.ID == id {
			b.toasts = append(b.toasts[:i], b.toasts[i+1:]...)
			b.publishLocked(Event{Toast: t, Removed: true})
			return
		}
	}
}

// Toasts returns the visible toasts, newest first.
func (b *Bus) Toasts() []Toast {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Toast(nil), b.toasts...)
}

// Latest returns the newest visible toast.
func (b *Bus) Latest() (Toast, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.toasts) == 0 {
		return Toast{}, false
	}
	return b.toasts[0], true
}

// Subscribe returns a channel of toast events. Events are dropped for a
// subscriber whose buffer is full. The returned func unsubscribes and
// closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func(), error) {
	if buffer < 1 {
		buffer = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, nil, ErrClosed
	}
	if len(b.subs) >= MaxSubscribers {
		return nil, nil, ErrTooManySubscribers
	}

	id := b.subID
	b.subID++
	ch := make(chan Event, buffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}, nil
}

// Close stops every pending dismiss timer and closes all subscriber
// channels. Toasts shown afterwards are not tracked.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, timer := range b.timers {
		timer.Stop()
		delete(b.timers, id)
	}
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *Bus) publishLocked(ev Event) {
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
