// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// repl.go - Line-mode chat with input history and slash commands.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/mcpchat/internal/config"
	"github.com/jeranaias/mcpchat/internal/export"
	"github.com/jeranaias/mcpchat/internal/model"
	"github.com/jeranaias/mcpchat/internal/notify"
	"github.com/jeranaias/mcpchat/internal/session"
	"github.com/jeranaias/mcpchat/internal/util"
)

const historyFileName = "chat_history"

func (r *root) newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Line-mode chat with input history",
		Long: `Chat one line at a time. Up/Down recall earlier input, Ctrl+C stops a
reply that is still streaming, and Ctrl+C or Ctrl+D at the prompt exits.
Type /help for commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(app *App) error {
				return runChat(cmd.Context(), app, cmd.OutOrStdout())
			})
		},
	}
}

func runChat(ctx context.Context, app *App, out io.Writer) error {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	historyFile := ""
	if dir, err := config.ConfigDir(); err == nil {
		historyFile = filepath.Join(dir, historyFileName)
		if f, err := os.Open(historyFile); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}
	defer saveInputHistory(line, historyFile, app)

	// Ctrl+C while a reply streams stops it; at the prompt liner reports
	// ErrPromptAborted instead.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	repl := newREPL(app, line, out, notify.PromptConfirmer{Prompter: line, Out: out})
	go func() {
		for range sigCh {
			repl.interrupt()
		}
	}()

	repl.printWelcome()
	return repl.run(ctx)
}

func saveInputHistory(line *liner.State, path string, app *App) {
	if path == "" {
		return
	}
	var sb strings.Builder
	if _, err := line.WriteHistory(&sb); err != nil {
		return
	}
	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		app.Log.Warn().Err(err).Msg("failed to save input history")
	}
}

// =============================================================================
// REPL
// =============================================================================

// LineReader is the part of liner.State the REPL reads from.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

var _ LineReader = (*liner.State)(nil)

type repl struct {
	app     *App
	in      LineReader
	out     *syncWriter
	paint   Painter
	confirm notify.Confirmer

	// toolsShown is the last tool list printed for the streaming reply.
	toolsShown  string
	interrupted atomic.Bool
}

func newREPL(app *App, in LineReader, out io.Writer, confirm notify.Confirmer) *repl {
	return &repl{
		app:     app,
		in:      in,
		out:     &syncWriter{w: out},
		paint:   NewPainter(out),
		confirm: confirm,
	}
}

func (r *repl) run(ctx context.Context) error {
	unsubscribe := r.app.Chat.Subscribe(r.showTools)
	defer unsubscribe()

	for {
		input, err := r.in.Prompt("mcpchat> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				r.out.println()
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.in.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			next, err := r.handleCommand(ctx, input)
			if err != nil {
				r.out.printf("%s %v\n", r.paint.Render(ErrorStyle, "[Error]"), err)
			}
			if !next {
				return nil
			}
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}

		r.send(ctx, input)
	}
}

// send streams one reply to the terminal.
func (r *repl) send(ctx context.Context, text string) {
	r.toolsShown = ""
	r.interrupted.Store(false)
	r.out.printf("%s\n", r.paint.Render(RoleStyle, model.RoleAssistant.DisplayName()))

	_, err := r.app.Controller.Send(ctx, text, session.SendOptions{
		OnChunk: func(delta, _ string) {
			r.out.print(delta)
		},
	})
	r.out.println()

	switch {
	case err != nil:
		r.out.printf("%s %s\n", r.paint.Render(ErrorStyle, "[Error]"), session.FailureNotice)
		r.out.printf("%s\n", r.paint.Render(DimStyle, err.Error()))
	case r.interrupted.Load():
		r.out.printf("%s\n", r.paint.Render(WarningStyle, "[Stopped]"))
	}
	r.out.println()
}

// interrupt stops the streaming reply, if any.
func (r *repl) interrupt() {
	if !r.app.Controller.Active() {
		return
	}
	r.interrupted.Store(true)
	r.app.Controller.Stop()
}

// showTools prints the streaming reply's tool list when it changes. It runs
// as a store subscriber and must not block.
func (r *repl) showTools() {
	msg := r.app.Chat.InFlight()
	if msg == nil || len(msg.ToolCalls) == 0 {
		return
	}
	shown := strings.Join(msg.ToolCalls, ", ")
	if shown == r.toolsShown {
		return
	}
	r.toolsShown = shown
	r.out.printf("\n%s\n", r.paint.Render(DimStyle, "  [tools: "+shown+"]"))
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleCommand runs a slash command. It returns false to end the session.
func (r *repl) handleCommand(ctx context.Context, input string) (bool, error) {
	parts := strings.Fields(input)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		r.printHelp()

	case "/quit", "/q", "/exit":
		return false, nil

	case "/new", "/n":
		conv := r.app.Chat.CreateConversation(strings.Join(args, " "))
		r.out.printf("%s %s\n", r.paint.Render(SuccessStyle, "[New]"), conv.Title)

	case "/list", "/l":
		r.printList()

	case "/switch", "/s":
		if len(args) != 1 {
			return true, errors.New("usage: /switch N")
		}
		conv, _, err := resolveConversation(r.app.Chat.Conversations(), args[0])
		if err != nil {
			return true, err
		}
		r.app.Chat.SwitchConversation(conv.ID)
		r.out.printf("%s %s (%d messages)\n", r.paint.Render(SuccessStyle, "[Switched]"), conv.Title, len(conv.Messages))

	case "/rename":
		if len(args) == 0 {
			return true, errors.New("usage: /rename TITLE")
		}
		title := strings.Join(args, " ")
		r.app.Chat.Rename(r.app.Chat.ActiveID(), title)
		r.out.printf("%s %s\n", r.paint.Render(SuccessStyle, "[Renamed]"), title)

	case "/delete", "/d":
		return true, r.deleteConversation(ctx, args)

	case "/export":
		return true, r.export(args)

	case "/history":
		r.printConversation(r.app.Chat.Active())

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
	return true, nil
}

func (r *repl) deleteConversation(ctx context.Context, args []string) error {
	convs := r.app.Chat.Conversations()
	target := r.app.Chat.Active()
	if len(args) > 0 {
		conv, _, err := resolveConversation(convs, args[0])
		if err != nil {
			return err
		}
		target = conv
	}
	if target == nil {
		return ErrNoSuchConversation
	}

	ok, err := r.confirm.Confirm(ctx, notify.Request{
		Title:       "Delete conversation",
		Message:     fmt.Sprintf("%q and its %d messages will be removed.", target.Title, len(target.Messages)),
		ConfirmText: "Delete",
	})
	if err != nil {
		return err
	}
	if !ok {
		r.out.printf("%s\n", r.paint.Render(DimStyle, "[Kept]"))
		return nil
	}
	r.app.Chat.DeleteConversation(target.ID)
	r.out.printf("%s %s\n", r.paint.Render(SuccessStyle, "[Deleted]"), target.Title)
	return nil
}

func (r *repl) export(args []string) error {
	conv := r.app.Chat.Active()
	if conv == nil {
		return ErrNoSuchConversation
	}
	exporter := export.NewMarkdownExporter(nil)
	if len(args) == 0 {
		md, err := exporter.Export(conv)
		if err != nil {
			return err
		}
		r.out.print(string(md))
		return nil
	}
	path, err := writeExport(nil, conv, exporter, args[0])
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	r.out.printf("%s %s\n", r.paint.Render(SuccessStyle, "[Exported]"), path)
	return nil
}

// =============================================================================
// DISPLAY
// =============================================================================

func (r *repl) printWelcome() {
	r.out.println()
	r.out.printf("%s\n", r.paint.Render(TitleStyle, "mcpchat"))
	r.out.printf("%s\n", r.paint.Separator(30))
	r.out.printf("%s %s\n", r.paint.Render(DimStyle, "Endpoint:"), r.app.Config.Chat.APIURL)
	if conv := r.app.Chat.Active(); conv != nil {
		r.out.printf("%s %s\n", r.paint.Render(DimStyle, "Conversation:"), conv.Title)
	}
	r.out.println()
	r.out.printf("%s\n\n", r.paint.Render(DimStyle, "Type your message and press Enter. Commands: /help, /quit"))
}

func (r *repl) printHelp() {
	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/new [title]", "Start a new conversation"},
		{"/list, /l", "List conversations"},
		{"/switch N", "Switch to conversation N"},
		{"/rename TITLE", "Rename the current conversation"},
		{"/delete [N]", "Delete the current or Nth conversation"},
		{"/history", "Show the current conversation"},
		{"/export [file]", "Print or save the conversation as markdown"},
		{"/quit, /q", "Exit chat"},
	}

	r.out.println()
	r.out.printf("%s\n", r.paint.Render(TitleStyle, "Available Commands"))
	r.out.printf("%s\n\n", r.paint.Separator(20))
	for _, c := range commands {
		r.out.printf("  %s  %s\n", r.paint.Render(PromptStyle, fmt.Sprintf("%-15s", c.cmd)), c.desc)
	}
	r.out.println()
	r.out.printf("%s\n\n", r.paint.Render(DimStyle, "Tip: Ctrl+C stops a streaming reply, Ctrl+D exits"))
}

func (r *repl) printList() {
	activeID := r.app.Chat.ActiveID()
	for i, c := range r.app.Chat.Conversations() {
		marker := " "
		if c.ID == activeID {
			marker = "*"
		}
		r.out.printf("%s %2d  %s  %s\n", marker, i+1,
			padTitle(c.Title, 32),
			r.paint.Render(DimStyle, fmt.Sprintf("%d messages", len(c.Messages))))
	}
}

func (r *repl) printConversation(conv *model.Conversation) {
	if conv == nil || len(conv.Messages) == 0 {
		r.out.printf("%s\n", r.paint.Render(DimStyle, "(no messages yet)"))
		return
	}
	for _, m := range conv.Messages {
		r.out.printf("%s %s\n", r.paint.Render(RoleStyle, m.Role.DisplayName()),
			r.paint.Render(DimStyle, m.Timestamp.Format("15:04")))
		r.out.printf("%s\n\n", m.Content)
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

// syncWriter serializes writes from the REPL and the signal goroutine.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) print(a ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.w, a...)
}

func (s *syncWriter) printf(format string, a ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, a...)
}

func (s *syncWriter) println() {
	s.print("\n")
}
