// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jeranaias/mcpchat/internal/chat"
	msgmodel "github.com/jeranaias/mcpchat/internal/model"
	"github.com/jeranaias/mcpchat/internal/notify"
	"github.com/jeranaias/mcpchat/internal/session"
	"github.com/jeranaias/mcpchat/internal/ui/styles"
)

// Options wires the model to the rest of the application.
type Options struct {
	Store      *chat.Store
	Controller *session.Controller
	Toasts     *notify.Bus
	Theme      *styles.Theme
	// Markdown renders finished assistant answers with glamour.
	Markdown bool
	Log      zerolog.Logger
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	store    *chat.Store
	ctrl     *session.Controller
	toasts   *notify.Bus
	dialog   *notify.Dialog
	theme    *styles.Theme
	markdown bool
	log      zerolog.Logger
	keyMap   KeyMap

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	width, height int
	showSidebar   bool

	// Snapshot of the store, refreshed on every change signal.
	convs     []*msgmodel.Conversation
	messages  []*msgmodel.Message
	activeID  string
	streaming bool
	pending   *notify.Request

	toast *notify.Toast

	changes     chan struct{}
	unsubscribe func()
	toastCh     <-chan notify.Event
	toastCancel func()

	rendered *renderCache
	copyFn   func(string) error
}

// New builds the model and subscribes it to the store and the toast bus.
// Call Close when the program ends.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(styles.ThemeAuto)
	}
	toasts := opts.Toasts
	if toasts == nil {
		toasts = notify.NewBus()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	// One slot is enough: the UI re-reads the whole store on each signal.
	changes := make(chan struct{}, 1)
	signal := func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	}

	m := Model{
		store:       opts.Store,
		ctrl:        opts.Controller,
		toasts:      toasts,
		dialog:      notify.NewDialog(signal),
		theme:       theme,
		markdown:    opts.Markdown,
		log:         opts.Log.With().Str("component", "tui").Logger(),
		keyMap:      DefaultKeyMap(),
		viewport:    vp,
		input:       ti,
		spinner:     sp,
		showSidebar: true,
		changes:     changes,
		unsubscribe: opts.Store.Subscribe(signal),
		rendered:    newRenderCache(),
		copyFn:      clipboard.WriteAll,
	}

	ch, cancel, err := toasts.Subscribe(8)
	if err != nil {
		m.log.Warn().Err(err).Msg("toast subscription failed")
	} else {
		m.toastCh = ch
		m.toastCancel = cancel
	}

	m.refresh()
	return m
}

// Close drops the store and toast subscriptions.
func (m Model) Close() {
	m.unsubscribe()
	if m.toastCancel != nil {
		m.toastCancel()
	}
}

// Init starts the cursor blink, spinner and change listeners.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitForChange(m.changes),
		waitForToast(m.toastCh),
	)
}

// Run shows the chat screen until the user quits. A stream still open at
// exit is stopped.
func Run(opts Options) error {
	m := New(opts)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	if opts.Controller != nil {
		opts.Controller.Stop()
	}
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// refresh re-reads the store and the dialog and re-renders the viewport.
func (m *Model) refresh() {
	m.convs = m.store.Conversations()
	m.messages = m.store.Messages()
	m.activeID = m.store.ActiveID()
	m.streaming = m.store.IsStreaming()

	if req, open := m.dialog.Pending(); open {
		m.pending = &req
	} else {
		m.pending = nil
	}

	m.updateViewport()
}

func (m *Model) updateViewport() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderMessages(m.viewport.Width))
	if atBottom || m.streaming {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return storeChangedMsg{}
	}
}

func waitForToast(ch <-chan notify.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return toastsClosedMsg{}
		}
		return toastMsg{event: ev}
	}
}

// sendCmd streams one reply. It runs on a tea goroutine and blocks until
// the stream ends; progress reaches the UI through store changes.
func sendCmd(ctrl *session.Controller, text string) tea.Cmd {
	return func() tea.Msg {
		_, err := ctrl.Send(context.Background(), text, session.SendOptions{})
		return sendDoneMsg{err: err}
	}
}

func confirmDeleteCmd(dialog *notify.Dialog, conv *msgmodel.Conversation) tea.Cmd {
	id, title, count := conv.ID, conv.Title, len(conv.Messages)
	return func() tea.Msg {
		ok, err := dialog.Confirm(context.Background(), notify.Request{
			Title:       "Delete conversation",
			Message:     fmt.Sprintf("%q and its %d messages will be removed.", title, count),
			ConfirmText: "Delete",
		})
		return deleteAnsweredMsg{convID: id, title: title, ok: ok, err: err}
	}
}

func copyCmd(copyFn func(string) error, text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{err: copyFn(text)}
	}
}
