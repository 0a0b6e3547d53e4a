// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One question, answer on stdout.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/mcpchat/internal/session"
	"github.com/jeranaias/mcpchat/internal/ui/styles"
	"github.com/jeranaias/mcpchat/internal/util"
)

// ErrNoQuestion is returned when ask has neither arguments nor piped input.
var ErrNoQuestion = errors.New("no question given: pass it as arguments or pipe it on stdin")

type askOptions struct {
	continueLast bool
	raw          bool
	output       string
}

func (r *root) newAskCmd() *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask one question and print the answer",
		Long: `Send one message and stream the reply to stdout. Without arguments the
question is read from stdin. On a terminal the finished answer is rendered
as markdown unless --raw is set. Ctrl+C stops the reply and keeps what
arrived.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := readQuestion(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return r.withApp(cmd, func(app *App) error {
				return runAsk(cmd.Context(), app, question, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			})
		},
	}

	cmd.Flags().BoolVarP(&opts.continueLast, "continue", "c", false, "add to the most recent conversation instead of starting one")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "print the answer as streamed, without markdown rendering")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "also save the answer to a file")
	return cmd
}

// readQuestion joins args, or reads in when there are none and it is not
// an interactive terminal.
func readQuestion(args []string, in io.Reader) (string, error) {
	if q := strings.TrimSpace(strings.Join(args, " ")); q != "" {
		return q, nil
	}
	if f, ok := in.(*os.File); ok {
		if stat, err := f.Stat(); err == nil && stat.Mode()&os.ModeCharDevice != 0 {
			return "", ErrNoQuestion
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	if q := strings.TrimSpace(string(data)); q != "" {
		return q, nil
	}
	return "", ErrNoQuestion
}

func runAsk(ctx context.Context, app *App, question string, opts askOptions, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	// A fresh history already holds an empty conversation; reuse it.
	if active := app.Chat.Active(); !opts.continueLast && (active == nil || len(active.Messages) > 0) {
		app.Chat.CreateConversation("")
	}

	render := !opts.raw && app.Config.UI.Markdown && IsTerminal(out)
	paint := NewPainter(errOut)

	shown := ""
	unsubscribe := app.Chat.Subscribe(func() {
		msg := app.Chat.InFlight()
		if msg == nil || len(msg.ToolCalls) == 0 {
			return
		}
		if names := strings.Join(msg.ToolCalls, ", "); names != shown {
			shown = names
			fmt.Fprintf(errOut, "%s\n", paint.Render(DimStyle, "[tools: "+names+"]"))
		}
	})
	defer unsubscribe()

	full, err := app.Controller.Send(ctx, question, session.SendOptions{
		OnChunk: func(delta, _ string) {
			if !render {
				fmt.Fprint(out, delta)
			}
		},
	})
	if err != nil {
		return err
	}

	if render {
		fmt.Fprintln(out, styles.Markdown(full, styles.MarkdownOptions{
			Dark:  styles.ResolveDark(app.Config.UI.Theme),
			Width: TerminalWidth(out),
		}))
	} else if full != "" && !strings.HasSuffix(full, "\n") {
		fmt.Fprintln(out)
	}

	if opts.output != "" {
		if err := util.AtomicWriteFile(opts.output, []byte(full), 0600); err != nil {
			return fmt.Errorf("save answer: %w", err)
		}
	}
	return nil
}
