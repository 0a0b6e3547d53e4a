// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history.go - Saved conversation management.

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/jeranaias/mcpchat/internal/export"
	"github.com/jeranaias/mcpchat/internal/model"
	"github.com/jeranaias/mcpchat/internal/notify"
	"github.com/jeranaias/mcpchat/internal/storage"
	"github.com/jeranaias/mcpchat/internal/util"
)

const (
	listTitleWidth   = 40
	showContentRunes = 2000
)

func (r *root) newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage saved conversations",
		Long: `View and manage local conversation history. N is a conversation's
position in "history list" (newest first) or its ID.`,
	}
	cmd.AddCommand(
		r.newHistoryListCmd(),
		r.newHistoryShowCmd(),
		r.newHistoryDeleteCmd(),
		r.newHistoryExportCmd(),
		r.newHistorySearchCmd(),
	)
	return cmd
}

func (r *root) newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(app *App) error {
				return listConversations(cmd.OutOrStdout(), app.Chat.Conversations())
			})
		},
	}
}

func listConversations(out io.Writer, convs []*model.Conversation) error {
	if len(convs) == 0 {
		fmt.Fprintln(out, "No conversations found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tTITLE\tMESSAGES\tUPDATED")
	_, _ = fmt.Fprintln(w, "-\t-----\t--------\t-------")
	for i, c := range convs {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%s\n",
			i+1, padTitle(c.Title, listTitleWidth), len(c.Messages), c.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

// padTitle fits title into width terminal cells, so wide characters keep
// columns aligned.
func padTitle(title string, width int) string {
	title = strings.ReplaceAll(title, "\n", " ")
	if runewidth.StringWidth(title) > width {
		title = runewidth.Truncate(title, width, "...")
	}
	return runewidth.FillRight(title, width)
}

func (r *root) newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <N>",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(app *App) error {
				conv, _, err := resolveConversation(app.Chat.Conversations(), args[0])
				if err != nil {
					return err
				}
				showConversation(cmd.OutOrStdout(), conv)
				return nil
			})
		},
	}
}

func showConversation(out io.Writer, conv *model.Conversation) {
	fmt.Fprintf(out, "ID: %s\n", conv.ID)
	fmt.Fprintf(out, "Title: %s\n", conv.Title)
	fmt.Fprintf(out, "Created: %s\n", conv.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Updated: %s\n", conv.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Messages: %d\n\n", len(conv.Messages))

	for i, msg := range conv.Messages {
		fmt.Fprintf(out, "[%d] %s (%s):\n", i+1, msg.Role.DisplayName(), msg.Timestamp.Format("15:04"))
		if len(msg.ToolCalls) > 0 {
			fmt.Fprintf(out, "  tools: %s\n", strings.Join(msg.ToolCalls, ", "))
		}
		fmt.Fprintf(out, "  %s\n\n", util.TruncateRunes(msg.Content, showContentRunes))
	}
}

func (r *root) newHistoryDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <N>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(app *App) error {
				conv, _, err := resolveConversation(app.Chat.Conversations(), args[0])
				if err != nil {
					return err
				}

				var confirmer notify.Confirmer = notify.StaticConfirmer(true)
				if !yes {
					confirmer = notify.PromptConfirmer{
						Prompter: newReaderPrompter(cmd.InOrStdin(), cmd.OutOrStdout()),
						Out:      cmd.OutOrStdout(),
					}
				}
				ok, err := confirmer.Confirm(cmd.Context(), notify.Request{
					Title:       "Delete conversation",
					Message:     fmt.Sprintf("%q and its %d messages will be removed.", conv.Title, len(conv.Messages)),
					ConfirmText: "Delete",
				})
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Kept.")
					return nil
				}

				app.Chat.DeleteConversation(conv.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted conversation: %s\n", conv.Title)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func (r *root) newHistoryExportCmd() *cobra.Command {
	var (
		format   string
		output   string
		metadata bool
		theme    string
	)

	cmd := &cobra.Command{
		Use:   "export <N>",
		Short: "Export a conversation as markdown, JSON or HTML",
		Long: `Export a saved conversation. Output goes to stdout unless -o is given.
When -o names an existing directory the file gets a generated name.

Examples:
  mcpchat history export 1
  mcpchat history export 2 -f html -o .
  mcpchat history export 1 --metadata -o notes.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exporter, err := export.ForFormat(format, &export.Options{
				IncludeMetadata:   metadata,
				IncludeTimestamps: true,
				Theme:             theme,
			})
			if err != nil {
				return err
			}
			return r.withApp(cmd, func(app *App) error {
				conv, _, err := resolveConversation(app.Chat.Conversations(), args[0])
				if err != nil {
					return err
				}
				path, err := writeExport(cmd.OutOrStdout(), conv, exporter, output)
				if err != nil || path == "" {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %q to %s\n", conv.Title, path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", export.FormatMarkdown, "export format: md, json or html")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file or directory instead of stdout")
	cmd.Flags().BoolVar(&metadata, "metadata", false, "include a metadata header and footer")
	cmd.Flags().StringVar(&theme, "theme", "dark", "HTML theme: dark or light")
	return cmd
}

// writeExport renders conv and writes it to w, to the file output, or into
// the directory output. It returns the written path, or "" for w.
func writeExport(w io.Writer, conv *model.Conversation, exporter export.Exporter, output string) (string, error) {
	if output != "" {
		if info, err := os.Stat(output); err == nil && info.IsDir() {
			return export.ExportToDir(conv, exporter, output)
		}
	}

	data, err := exporter.Export(conv)
	if err != nil {
		return "", err
	}
	if output == "" {
		_, err := w.Write(data)
		return "", err
	}
	if err := util.AtomicWriteFile(output, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return output, nil
}

func (r *root) newHistorySearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Find conversations containing text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(app *App) error {
				matches := storage.Search(app.Chat.Conversations(), strings.Join(args, " "))
				return listMatches(cmd.OutOrStdout(), matches)
			})
		},
	}
}

func listMatches(out io.Writer, matches []storage.Match) error {
	if len(matches) == 0 {
		fmt.Fprintln(out, "No matches.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tTITLE\tMATCH")
	for _, m := range matches {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", m.Index+1, padTitle(m.Conversation.Title, listTitleWidth), m.Snippet)
	}
	return w.Flush()
}
