// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/peterh/liner"
)

// =============================================================================
// REQUEST
// =============================================================================

// Default dialog labels.
const (
	DefaultConfirmTitle = "Confirm"
	DefaultConfirmText  = "Confirm"
	DefaultCancelText   = "Cancel"
)

// Request describes what is being confirmed.
type Request struct {
	Title       string
	Message     string
	ConfirmText string
	CancelText  string
}

// WithDefaults fills empty labels.
func (r Request) WithDefaults() Request {
	if r.Title == "" {
		r.Title = DefaultConfirmTitle
	}
	if r.ConfirmText == "" {
		r.ConfirmText = DefaultConfirmText
	}
	if r.CancelText == "" {
		r.CancelText = DefaultCancelText
	}
	return r
}

// Confirmer asks the user to confirm req.
type Confirmer interface {
	Confirm(ctx context.Context, req Request) (bool, error)
}

// =============================================================================
// STATIC
// =============================================================================

// StaticConfirmer always returns its own value.
type StaticConfirmer bool

// Confirm implements Confirmer.
func (s StaticConfirmer) Confirm(ctx context.Context, _ Request) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return bool(s), nil
}

// =============================================================================
// PROMPT
// =============================================================================

// Prompter reads one line after showing a prompt.
type Prompter interface {
	Prompt(prompt string) (string, error)
}

var _ Prompter = (*liner.State)(nil)

// PromptConfirmer asks on a line prompt. Only "y" or "yes" confirms;
// aborting the prompt (Ctrl+C) or EOF cancels.
type PromptConfirmer struct {
	Prompter Prompter
	Out      io.Writer
}

// Confirm implements Confirmer.
func (p PromptConfirmer) Confirm(ctx context.Context, req Request) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	req = req.WithDefaults()

	if p.Out != nil {
		fmt.Fprintf(p.Out, "%s\n", req.Title)
		if req.Message != "" {
			fmt.Fprintf(p.Out, "  %s\n", req.Message)
		}
	}

	answer, err := p.Prompter.Prompt(fmt.Sprintf("%s? [y/N] (n = %s) ", req.ConfirmText, req.CancelText))
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// =============================================================================
// DIALOG
// =============================================================================

// ErrDialogBusy is returned when a second confirmation is opened while one
// is still waiting for an answer.
var ErrDialogBusy = errors.New("a confirmation is already open")

// Dialog is a Confirmer answered from elsewhere, typically a TUI key
// handler. Confirm blocks until Resolve is called or ctx ends.
type Dialog struct {
	mu       sync.Mutex
	req      Request
	open     bool
	answer   chan bool
	onChange func()
}

// NewDialog returns a dialog that calls onChange (if set) whenever it opens
// or closes. onChange must not block.
func NewDialog(onChange func()) *Dialog {
	return &Dialog{onChange: onChange}
}

// Confirm implements Confirmer.
func (d *Dialog) Confirm(ctx context.Context, req Request) (bool, error) {
	d.mu.Lock()
	if d.open {
		d.mu.Unlock()
		return false, ErrDialogBusy
	}
	d.req = req.WithDefaults()
	d.open = true
	answer := make(chan bool, 1)
	d.answer = answer
	d.mu.Unlock()
	d.changed()

	select {
	case ok := <-answer:
		return ok, nil
	case <-ctx.Done():
		d.close(answer)
		return false, ctx.Err()
	}
}

// Pending returns the open request.
func (d *Dialog) Pending() (Request, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.req, d.open
}

// Resolve answers the open request. It does nothing when none is open.
func (d *Dialog) Resolve(ok bool) {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return
	}
	answer := d.answer
	d.open = false
	d.answer = nil
	d.mu.Unlock()

	answer <- ok
	d.changed()
}

func (d *Dialog) close(answer chan bool) {
	d.mu.Lock()
	if d.answer != answer {
		d.mu.Unlock()
		return
	}
	d.open = false
	d.answer = nil
	d.mu.Unlock()
	d.changed()
}

func (d *Dialog) changed() {
	if d.onChange != nil {
		d.onChange()
	}
}
