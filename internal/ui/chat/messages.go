// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/mcpchat/internal/notify"
)

// storeChangedMsg means the store or the confirm dialog changed.
type storeChangedMsg struct{}

// toastMsg carries one toast bus event.
type toastMsg struct {
	event notify.Event
}

// toastsClosedMsg means the toast bus was closed.
type toastsClosedMsg struct{}

// sendDoneMsg is returned when a Send finishes, however it ended.
type sendDoneMsg struct {
	err error
}

// deleteAnsweredMsg is the outcome of a delete confirmation.
type deleteAnsweredMsg struct {
	convID string
	title  string
	ok     bool
	err    error
}

// copiedMsg reports a clipboard write.
type copiedMsg struct {
	err error
}
