// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides a local chat backend for trying the client
// without a real MCP service.
//
// Every message is streamed back word by word in the same SSE framing the
// client decodes. Configured tools are announced as tool calls before the
// reply and summarized in a tool result after it.
//
// # Endpoints
//
//   - GET /api/v1/chat/sse?message=... - Streamed echo reply
//   - GET /health                      - Health check
//   - GET /stats                       - Request counters
//
// # Usage
//
//	srv := server.New(server.Options{
//		Addr:       server.DefaultAddr,
//		ChunkDelay: server.DefaultChunkDelay,
//		Tools:      []string{"search"},
//		Log:        log,
//	})
//	if err := srv.ListenAndServe(); err != nil {
//		log.Fatal().Err(err).Msg("server failed")
//	}
package server
