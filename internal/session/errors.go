// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
)

// FailureNotice replaces the assistant reply when a send fails.
const FailureNotice = "Sorry, something went wrong while sending your message. Please try again later."

// ErrStreamActive is returned by Send while another reply is streaming.
var ErrStreamActive = errors.New("a reply is already streaming")

// StatusError reports a non-success response from the chat endpoint.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string // leading bytes of the response body
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsStatusError reports whether err (or any wrapped error) is a StatusError.
func IsStatusError(err error) bool {
	var serr *StatusError
	return errors.As(err, &serr)
}
