// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

var (
	dataPrefix  = []byte("data: ")
	eventPrefix = []byte("event:")
)

// =============================================================================
// SSE READER
// =============================================================================

// Reader parses server-sent events from a response body.
//
// Lines are reassembled across transport reads, so a payload split between
// two network chunks is still delivered whole.
type Reader struct {
	reader *bufio.Reader
	event  string
}

// NewReader creates a new SSE reader from an io.Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		reader: bufio.NewReader(r),
	}
}

// Next returns the next data payload and the name of the event it belongs to
// (empty when the server sent no "event:" line). Returns io.EOF when the
// stream ends.
func (s *Reader) Next() (string, []byte, error) {
	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", nil, err
		}

		// A final line without a trailing newline still counts.
		if len(line) > 0 {
			if payload, ok := s.consume(line); ok {
				return s.event, payload, nil
			}
		}

		if err != nil {
			return "", nil, io.EOF
		}
	}
}

// consume handles one line and reports a data payload if it carried one.
func (s *Reader) consume(line []byte) ([]byte, bool) {
	line = bytes.TrimSpace(line)

	switch {
	case len(line) == 0:
		// Blank line ends the current event.
		s.event = ""
	case bytes.HasPrefix(line, dataPrefix):
		return line[len(dataPrefix):], true
	case bytes.HasPrefix(line, eventPrefix):
		s.event = string(bytes.TrimSpace(line[len(eventPrefix):]))
	}
	// id:, retry:, comments and bare "data:" lines are ignored.
	return nil, false
}
