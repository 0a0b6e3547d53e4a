// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// root.go - The mcpchat command tree.

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	chatui "github.com/jeranaias/mcpchat/internal/ui/chat"
	"github.com/jeranaias/mcpchat/internal/ui/styles"
)

// BuildInfo is stamped by main at build time.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
}

func (b BuildInfo) String() string {
	v := b.Version
	if v == "" {
		v = "dev"
	}
	return fmt.Sprintf("%s (commit %s, built %s)", v, orUnknown(b.GitCommit), orUnknown(b.BuildDate))
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// Dependencies holds the pieces commands get from outside the command tree.
// Tests replace them.
type Dependencies struct {
	// RunTUI runs the full-screen interface until the user quits.
	RunTUI func(app *App) error
	// NewApp builds the shared application state.
	NewApp func(opts GlobalOptions, cmd *cobra.Command) (*App, error)
}

// NewDependencies returns the production dependencies.
func NewDependencies() *Dependencies {
	return &Dependencies{
		RunTUI: runTUI,
		NewApp: func(opts GlobalOptions, cmd *cobra.Command) (*App, error) {
			return NewApp(opts, cmd.ErrOrStderr())
		},
	}
}

// root carries flag values and dependencies to every subcommand.
type root struct {
	opts GlobalOptions
	deps *Dependencies
}

// NewRootCmd builds the command tree.
func NewRootCmd(info BuildInfo, deps *Dependencies) *cobra.Command {
	if deps == nil {
		deps = NewDependencies()
	}
	r := &root{deps: deps}

	cmd := &cobra.Command{
		Use:   "mcpchat",
		Short: "Terminal client for a streaming MCP chat backend",
		Long: `mcpchat talks to a chat backend that streams replies over server-sent
events, shows tool activity as it happens, and keeps conversation history
on disk.

Examples:
  mcpchat                          Full-screen chat
  mcpchat chat                     Line-mode chat
  mcpchat ask "What is MCP?"       One question, answer on stdout
  echo "hello" | mcpchat ask       Question from stdin
  mcpchat history list             Saved conversations
  mcpchat config set chat.api_url http://localhost:10001/api/v1/chat/sse
  mcpchat serve                    Local echo backend for trying it out`,
		Version:       info.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, r.deps.RunTUI)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&r.opts.ConfigPath, "config", "", "config file (default ~/.mcpchat/config.toml)")
	flags.StringVar(&r.opts.APIURL, "api-url", "", "chat endpoint URL")
	flags.StringVar(&r.opts.LogLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.StringVar(&r.opts.Storage, "storage", "", "history backend: json or sqlite")

	cmd.AddCommand(
		r.newTUICmd(),
		r.newChatCmd(),
		r.newAskCmd(),
		r.newHistoryCmd(),
		r.newConfigCmd(),
		r.newServeCmd(),
	)
	return cmd
}

// Execute runs the command tree against os.Args and exits on failure.
func Execute(info BuildInfo) {
	cmd := NewRootCmd(info, nil)
	if err := cmd.Execute(); err != nil {
		p := NewPainter(os.Stderr)
		fmt.Fprintf(os.Stderr, "%s %v\n", p.Render(ErrorStyle, "Error:"), err)
		os.Exit(1)
	}
}

// withApp builds the App for one command run and always closes it, which
// flushes pending history.
func (r *root) withApp(cmd *cobra.Command, fn func(app *App) error) (err error) {
	app, err := r.deps.NewApp(r.opts, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(app)
}

// =============================================================================
// TUI
// =============================================================================

func (r *root) newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Full-screen chat (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, r.deps.RunTUI)
		},
	}
}

func runTUI(app *App) error {
	return chatui.Run(chatui.Options{
		Store:      app.Chat,
		Controller: app.Controller,
		Toasts:     app.Toasts,
		Theme:      styles.NewTheme(app.Config.UI.Theme),
		Markdown:   app.Config.UI.Markdown,
		Log:        app.Log,
	})
}
