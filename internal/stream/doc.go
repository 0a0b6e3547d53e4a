// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the chat backend's server-sent event stream.
//
// The backend pushes one JSON object per "data: " line. Fields are optional
// and independent:
//
//	data: {"text":"Hel"}                                  content delta
//	data: {"tool_calls":[{"function":{"name":"search"}}]} tools now running
//	data: {"result":"42"}                                 tool output to splice in
//
// "event:" lines name the event that follows and everything else is ignored.
//
// # Key Types
//
//   - Reader: line-oriented SSE reader yielding one payload per data line
//   - Event: decoded payload with text delta, tool calls and raw result
//   - ToolCall: tagged variant of the three tool-call shapes the backend sends
//
// # Usage
//
//	r := stream.NewReader(resp.Body)
//	for {
//	    name, payload, err := r.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    ev, err := stream.Decode(name, payload)
//	    ...
//	}
package stream
