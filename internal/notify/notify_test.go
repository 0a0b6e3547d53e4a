// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/peterh/liner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// BUS TESTS
// =============================================================================

func TestBus_ShowNewestFirst(t *testing.T) {
	b := NewBus()
	defer b.Close()

	first := b.Info("saved", WithDuration(0))
	second := b.Error("failed", WithDuration(0))

	toasts := b.Toasts()
	require.Len(t, toasts, 2)
	assert.Equal(t, second, toasts[0].ID)
	assert.Equal(t, LevelError, toasts[0].Level)
	assert.Equal(t, first, toasts[1].ID)
	assert.Equal(t, LevelInfo, toasts[1].Level)

	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, "failed", latest.Message)
}

func TestBus_LevelHelpers(t *testing.T) {
	b := NewBus()
	defer b.Close()

	b.Success("a", WithDuration(0))
	b.Warning("b", WithDuration(0))
	b.Show("c", WithDuration(0))

	levels := []Level{}
	for _, toast := range b.Toasts() {
		levels = append(levels, toast.Level)
	}
	assert.Equal(t, []Level{LevelInfo, LevelWarning, LevelSuccess}, levels)
}

func TestBus_AutoDismiss(t *testing.T) {
	b := NewBus()
	defer b.Close()

	b.Info("brief", WithDuration(20*time.Millisecond))
	b.Info("sticky", WithDuration(0))

	assert.Eventually(t, func() bool { return len(b.Toasts()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "sticky", b.Toasts()[0].Message)
}

func TestBus_DefaultDuration(t *testing.T) {
	b := NewBus()
	defer b.Close()

	b.Info("x")
	assert.Equal(t, DefaultDuration, b.Toasts()[0].Duration)
}

func TestBus_Remove(t *testing.T) {
	b := NewBus()
	defer b.Close()

	id := b.Info("x")
	b.Remove(999)
	assert.Len(t, b.Toasts(), 1)
	b.Remove(id)
	assert.Empty(t, b.Toasts())
	b.Remove(id)
}

func TestBus_Subscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe, err := b.Subscribe(4)
	require.NoError(t, err)

	id := b.Warning("careful", WithDuration(0))
	b.Remove(id)

	ev := <-ch
	assert.Equal(t, id, ev.Toast.ID)
	assert.False(t, ev.Removed)
	ev = <-ch
	assert.True(t, ev.Removed)

	unsubscribe()
	unsubscribe()
	_, open := <-ch
	assert.False(t, open, "unsubscribe closes the channel")
}

func TestBus_SlowSubscriberDropsEvents(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, _, err := b.Subscribe(1)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Info("spam", WithDuration(0))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Show blocked on a full subscriber")
	}
	assert.Len(t, ch, 1)
}

func TestBus_SubscriberLimit(t *testing.T) {
	b := NewBus()
	defer b.Close()

	for i := 0; i < MaxSubscribers; i++ {
		_, _, err := b.Subscribe(1)
		require.NoError(t, err)
	}
	_, _, err := b.Subscribe(1)
	assert.ErrorIs(t, err, ErrTooManySubscribers)
}

func TestBus_Close(t *testing.T) {
	b := NewBus()
	ch, unsubscribe, err := b.Subscribe(1)
	require.NoError(t, err)

	b.Info("pending", WithDuration(time.Hour))
	<-ch
	b.Close()
	b.Close()

	_, open := <-ch
	assert.False(t, open)
	assert.NotPanics(t, unsubscribe)

	_, _, err = b.Subscribe(1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.NotPanics(t, func() { b.Info("after close") })
}

// =============================================================================
// CONFIRM TESTS
// =============================================================================

type scriptedPrompter struct {
	answer string
	err    error
	prompt string
}

func (p *scriptedPrompter) Prompt(prompt string) (string, error) {
	p.prompt = prompt
	return p.answer, p.err
}

func TestRequest_WithDefaults(t *testing.T) {
	req := Request{Message: "Delete?"}.WithDefaults()
	assert.Equal(t, DefaultConfirmTitle, req.Title)
	assert.Equal(t, DefaultConfirmText, req.ConfirmText)
	assert.Equal(t, DefaultCancelText, req.CancelText)

	custom := Request{Title: "Remove", ConfirmText: "Delete", CancelText: "Keep"}.WithDefaults()
	assert.Equal(t, "Remove", custom.Title)
	assert.Equal(t, "Delete", custom.ConfirmText)
}

func TestStaticConfirmer(t *testing.T) {
	ok, err := StaticConfirmer(true).Confirm(context.Background(), Request{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = StaticConfirmer(false).Confirm(context.Background(), Request{})
	require.NoError(t, err)
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = StaticConfirmer(true).Confirm(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPromptConfirmer(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		err    error
		want   bool
		errOut bool
	}{
		{"yes", "yes", nil, true, false},
		{"y upper", " Y ", nil, true, false},
		{"no", "n", nil, false, false},
		{"empty", "", nil, false, false},
		{"aborted", "", liner.ErrPromptAborted, false, false},
		{"eof", "", io.EOF, false, false},
		{"read failure", "", errors.New("tty gone"), false, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			p := &scriptedPrompter{answer: tc.answer, err: tc.err}
			c := PromptConfirmer{Prompter: p, Out: &out}

			ok, err := c.Confirm(context.Background(), Request{Title: "Delete conversation", Message: "Weather"})
			if tc.errOut {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.want, ok)
			assert.Contains(t, out.String(), "Delete conversation")
			assert.Contains(t, out.String(), "Weather")
			assert.Contains(t, p.prompt, "[y/N]")
		})
	}
}

func TestDialog_Resolve(t *testing.T) {
	changes := make(chan struct{}, 8)
	d := NewDialog(func() { changes <- struct{}{} })

	result := make(chan bool, 1)
	go func() {
		ok, err := d.Confirm(context.Background(), Request{Message: "Delete?"})
		assert.NoError(t, err)
		result <- ok
	}()

	<-changes
	req, open := d.Pending()
	require.True(t, open)
	assert.Equal(t, "Delete?", req.Message)
	assert.Equal(t, DefaultConfirmText, req.ConfirmText)

	_, err := d.Confirm(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrDialogBusy)

	d.Resolve(true)
	assert.True(t, <-result)
	_, open = d.Pending()
	assert.False(t, open)

	d.Resolve(false) // nothing open
}

func TestDialog_ContextCanceled(t *testing.T) {
	d := NewDialog(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ok, err := d.Confirm(ctx, Request{})
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, open := d.Pending()
	assert.False(t, open)
}
