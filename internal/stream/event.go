// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEvent is returned by Decode when a payload is not a JSON object.
var ErrMalformedEvent = errors.New("malformed stream event")

// FallbackToolName labels tool calls that carry no usable name.
const FallbackToolName = "tool"

// =============================================================================
// EVENT
// =============================================================================

// Event is one decoded data payload.
type Event struct {
	// Name is the SSE event name, e.g. "delta" or "tool_result".
	Name string

	// Text is an incremental content delta.
	Text string

	// ToolCalls lists tools the backend started for this turn.
	ToolCalls []ToolCall

	// Result is the raw tool output. Use ResultText to read it.
	Result json.RawMessage
}

// wireEvent keeps every field raw so one oddly typed field does not make
// the rest of the event unreadable.
type wireEvent struct {
	Text      json.RawMessage `json:"text"`
	ToolCalls json.RawMessage `json:"tool_calls"`
	Result    json.RawMessage `json:"result"`
}

// Decode parses a data payload. The payload must be a JSON object; fields
// of the wrong type are treated as absent.
func Decode(name string, payload []byte) (Event, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || payload[0] != '{' {
		return Event{}, fmt.Errorf("%w: expected JSON object", ErrMalformedEvent)
	}

	var wire wireEvent
	if err := json.Unmarshal(payload, &wire); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	ev := Event{Name: name, Result: wire.Result}

	if len(wire.Text) > 0 {
		var text string
		if json.Unmarshal(wire.Text, &text) == nil {
			ev.Text = text
		}
	}

	if len(wire.ToolCalls) > 0 {
		var calls []ToolCall
		if json.Unmarshal(wire.ToolCalls, &calls) == nil {
			ev.ToolCalls = calls
		}
	}

	return ev, nil
}

// ToolNames maps the event's tool calls to display names, dropping empties.
func (e Event) ToolNames() []string {
	names := make([]string, 0, len(e.ToolCalls))
	for _, tc := range e.ToolCalls {
		if name := tc.DisplayName(); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ResultText stringifies the tool result: strings as-is, anything else as
// two-space indented JSON with the server's key order. It reports false when
// there is nothing to splice in (absent, null, "", false or 0).
func (e Event) ResultText() (string, bool) {
	raw := bytes.TrimSpace(e.Result)
	if len(raw) == 0 {
		return "", false
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return "", false
		}
		return s, true
	case 'n', 'f':
		// null, false
		return "", false
	}

	var num json.Number
	if json.Unmarshal(raw, &num) == nil {
		if f, err := num.Float64(); err == nil && f == 0 {
			return "", false
		}
	}

	var compact, pretty bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return "", false
	}
	if err := json.Indent(&pretty, compact.Bytes(), "", "  "); err != nil {
		return "", false
	}
	return pretty.String(), true
}

// =============================================================================
// TOOL CALLS
// =============================================================================

// ToolKind tells which shape a tool call arrived in.
type ToolKind int

const (
	KindUnknown ToolKind = iota
	KindFunction
	KindCustom
	KindTyped
)

// String returns the kind name.
func (k ToolKind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindCustom:
		return "custom"
	case KindTyped:
		return "typed"
	default:
		return "unknown"
	}
}

// ToolCall is one entry of "tool_calls". The backend sends
// {"function":{"name":..}}, {"custom":{"name":..}} or just {"type":..};
// the first shape with a non-empty name wins, in that order.
type ToolCall struct {
	Kind ToolKind
	Name string
}

// UnmarshalJSON decodes any of the known shapes. Input that matches none of
// them, including non-objects, decodes to KindUnknown rather than failing.
func (tc *ToolCall) UnmarshalJSON(data []byte) error {
	*tc = ToolCall{Kind: KindUnknown}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}

	if name := nestedName(fields["function"]); name != "" {
		*tc = ToolCall{Kind: KindFunction, Name: name}
		return nil
	}
	if name := nestedName(fields["custom"]); name != "" {
		*tc = ToolCall{Kind: KindCustom, Name: name}
		return nil
	}
	var typ string
	if raw := fields["type"]; len(raw) > 0 && json.Unmarshal(raw, &typ) == nil && typ != "" {
		*tc = ToolCall{Kind: KindTyped, Name: typ}
	}
	return nil
}

// DisplayName returns the name to show while the tool runs.
func (tc ToolCall) DisplayName() string {
	if tc.Kind == KindUnknown || tc.Name == "" {
		return FallbackToolName
	}
	return tc.Name
}

func nestedName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return v.Name
}
