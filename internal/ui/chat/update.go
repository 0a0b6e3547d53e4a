// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/mcpchat/internal/notify"
	"github.com/jeranaias/mcpchat/internal/session"
)

const (
	headerHeight    = 1
	inputAreaHeight = 2 // separator + input line
	statusBarHeight = 1

	sidebarWidth    = 26
	minWidthSidebar = 70
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case storeChangedMsg:
		m.refresh()
		return m, waitForChange(m.changes)

	case toastMsg:
		if t, ok := m.toasts.Latest(); ok {
			m.toast = &t
		} else {
			m.toast = nil
		}
		return m, waitForToast(m.toastCh)

	case toastsClosedMsg:
		m.toast = nil
		return m, nil

	case sendDoneMsg:
		return m.handleSendDone(msg)

	case deleteAnsweredMsg:
		return m.handleDeleteAnswer(msg)

	case copiedMsg:
		if msg.err != nil {
			m.log.Warn().Err(msg.err).Msg("clipboard write failed")
			m.toasts.Error("Copy failed: " + msg.err.Error())
		} else {
			m.toasts.Success("Copied to clipboard")
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	vpHeight := m.height - headerHeight - inputAreaHeight - statusBarHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = max(m.mainWidth(), 1)
	m.viewport.Height = vpHeight

	inputWidth := m.mainWidth() - len(m.input.Prompt) - 1
	if inputWidth < 10 {
		inputWidth = 10
	}
	m.input.Width = inputWidth

	m.updateViewport()
	return m, nil
}

// sidebarVisible reports whether the terminal is wide enough for the
// sidebar and the user has not hidden it.
func (m Model) sidebarVisible() bool {
	return m.showSidebar && m.width >= minWidthSidebar
}

// mainWidth is the width left for messages.
func (m Model) mainWidth() int {
	w := m.width
	if m.sidebarVisible() {
		w -= sidebarWidth + 2 // border + padding
	}
	return w - 1 // main padding
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Quit) {
		m.dialog.Resolve(false)
		if m.ctrl != nil {
			m.ctrl.Stop()
		}
		return m, tea.Quit
	}

	// An open confirmation takes every key.
	if m.pending != nil {
		switch {
		case key.Matches(msg, m.keyMap.Confirm):
			m.dialog.Resolve(true)
		case key.Matches(msg, m.keyMap.Dismiss):
			m.dialog.Resolve(false)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keyMap.Submit):
		return m.submit()

	case key.Matches(msg, m.keyMap.Stop):
		if m.ctrl != nil && m.ctrl.Active() {
			m.ctrl.Stop()
			m.toasts.Info("Reply stopped")
		}
		return m, nil

	case key.Matches(msg, m.keyMap.New):
		m.store.CreateConversation("")
		m.input.Reset()
		return m, nil

	case key.Matches(msg, m.keyMap.PrevConv):
		m.switchBy(-1)
		return m, nil

	case key.Matches(msg, m.keyMap.NextConv):
		m.switchBy(1)
		return m, nil

	case key.Matches(msg, m.keyMap.Delete):
		conv := m.store.Active()
		if conv == nil {
			return m, nil
		}
		return m, confirmDeleteCmd(m.dialog, conv)

	case key.Matches(msg, m.keyMap.Copy):
		text := lastAnswer(m.messages)
		if text == "" {
			m.toasts.Warning("No answer to copy")
			return m, nil
		}
		return m, copyCmd(m.copyFn, text)

	case key.Matches(msg, m.keyMap.ToggleBar):
		m.showSidebar = !m.showSidebar
		return m.handleResize(tea.WindowSizeMsg{Width: m.width, Height: m.height})

	case key.Matches(msg, m.keyMap.PageUp, m.keyMap.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if m.ctrl == nil {
		m.toasts.Error("Not connected to a chat endpoint")
		return m, nil
	}
	if m.ctrl.Active() {
		m.toasts.Warning("A reply is still streaming. Press Esc to stop it.")
		return m, nil
	}

	m.input.Reset()
	m.viewport.GotoBottom()
	return m, sendCmd(m.ctrl, text)
}

// switchBy activates the conversation delta places away in the sidebar.
func (m *Model) switchBy(delta int) {
	idx := -1
	for i, c := range m.convs {
		if c.ID == m.activeID {
			idx = i
			break
		}
	}
	next := idx + delta
	if idx < 0 || next < 0 || next >= len(m.convs) {
		return
	}
	m.store.SwitchConversation(m.convs[next].ID)
}

// =============================================================================
// RESULTS
// =============================================================================

func (m Model) handleSendDone(msg sendDoneMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.err == nil:
	case errors.Is(msg.err, session.ErrStreamActive):
		m.toasts.Warning("A reply is still streaming")
	default:
		m.log.Error().Err(msg.err).Msg("send failed")
		m.toasts.Error(errorSummary(msg.err))
	}
	m.refresh()
	return m, nil
}

func (m Model) handleDeleteAnswer(msg deleteAnsweredMsg) (tea.Model, tea.Cmd) {
	switch {
	case errors.Is(msg.err, notify.ErrDialogBusy):
		return m, nil
	case msg.err != nil:
		m.toasts.Error("Delete failed: " + msg.err.Error())
	case msg.ok:
		m.store.DeleteConversation(msg.convID)
		m.toasts.Success("Deleted " + msg.title)
	}
	m.refresh()
	return m, nil
}

// errorSummary is the toast text for a failed send.
func errorSummary(err error) string {
	var se *session.StatusError
	if errors.As(err, &se) {
		return "Chat server error: " + se.Status
	}
	return "Message failed. Check that the chat server is running."
}
