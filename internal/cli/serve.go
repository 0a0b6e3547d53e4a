// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - Local echo backend for trying the client.

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/mcpchat/internal/logging"
	"github.com/jeranaias/mcpchat/internal/server"
)

const shutdownTimeout = 5 * time.Second

func (r *root) newServeCmd() *cobra.Command {
	var opts server.Options

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local echo chat backend",
		Long: `Serve the chat endpoint locally. Each message is streamed back word by
word, so the client can be tried without a real backend. Tools given with
--tools are announced before the reply.

Examples:
  mcpchat serve
  mcpchat serve --tools search,fetch --delay 100ms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := r.opts.LoadConfig()
			if err != nil {
				return err
			}
			log, closer, err := logging.Open(cfg.Log, "", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closer.Close()
			opts.Log = log

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(opts)
			fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s%s (Ctrl+C to stop)\n", srv.Addr(), server.ChatPath)
			return runServer(ctx, srv)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", server.DefaultAddr, "listen address")
	cmd.Flags().DurationVar(&opts.ChunkDelay, "delay", server.DefaultChunkDelay, "pause between streamed words")
	cmd.Flags().StringSliceVar(&opts.Tools, "tools", nil, "tool names to announce with each reply")
	return cmd
}

// runServer serves until ctx ends, then shuts down gracefully.
func runServer(ctx context.Context, srv *server.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
