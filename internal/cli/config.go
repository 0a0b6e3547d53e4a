// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Configuration commands.

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/mcpchat/internal/config"
)

func (r *root) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
		Long: `Configuration lives in ~/.mcpchat/config.toml (MCPCHAT_HOME moves the
directory). MCPCHAT_* environment variables override the file.

Keys:
  ` + strings.Join(config.Keys(), "\n  "),
	}
	cmd.AddCommand(
		r.newConfigShowCmd(),
		r.newConfigPathCmd(),
		r.newConfigInitCmd(),
		r.newConfigGetCmd(),
		r.newConfigSetCmd(),
	)
	return cmd
}

func (r *root) newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := r.opts.LoadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	}
}

func (r *root) newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := r.configFile()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func (r *root) newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := r.configFile()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveTOML(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func (r *root) newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := r.opts.LoadConfig()
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func (r *root) newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := r.configFile()
			if err != nil {
				return err
			}

			// Only the file's own values are rewritten; environment
			// overrides stay out of it.
			load, save := config.LoadTOML, config.SaveTOML
			if strings.EqualFold(filepath.Ext(path), ".json") {
				load, save = config.LoadJSON, config.SaveJSON
			}

			cfg := config.Default()
			if _, err := os.Stat(path); err == nil {
				if err := load(cfg, path); err != nil {
					return fmt.Errorf("failed to load %s: %w", path, err)
				}
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := save(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
			return nil
		},
	}
}

// configFile is --config when given, otherwise the default TOML path.
func (r *root) configFile() (string, error) {
	if r.opts.ConfigPath != "" {
		return r.opts.ConfigPath, nil
	}
	return config.ConfigPathTOML()
}

// =============================================================================
// PROMPTS
// =============================================================================

// readerPrompter is a notify.Prompter over plain streams, for commands that
// do not own a liner session.
type readerPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newReaderPrompter(in io.Reader, out io.Writer) *readerPrompter {
	return &readerPrompter{in: bufio.NewReader(in), out: out}
}

// Prompt writes prompt and reads one line. A final line without a newline
// is returned with a nil error; nothing at all is io.EOF.
func (p *readerPrompter) Prompt(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
