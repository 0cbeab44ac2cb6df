// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-mode chat for multichat.
//
// Command: chat
// Short:   Chat with every panel from a plain terminal
//
// Examples:
//   multichat chat                  Start with the saved panel layout
//   multichat chat --panels 3       Start with three panels
//   multichat chat --target multi   Send to the multi-send set
//
// Interactive commands are listed by /help.
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

	"github.com/fatih/color"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/koharyou1215/multi-chat/internal/config"
	"github.com/koharyou1215/multi-chat/internal/dispatch"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads saved input history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
	return c
}

// SetCompleter completes slash command names.
func (c *ChatCLI) SetCompleter(names []string) {
	c.line.SetCompleter(func(line string) []string {
		if !strings.HasPrefix(line, "/") || strings.Contains(line, " ") {
			return nil
		}
		var out []string
		for _, n := range names {
			if strings.HasPrefix("/"+n, line) {
				out = append(out, "/"+n+" ")
			}
		}
		return out
	})
}

// ReadInput reads one line, recording non-empty input in the history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with 0600 permissions and restores the terminal.
func (c *ChatCLI) Close() {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			c.line.WriteHistory(f)
			f.Close()
		}
	}
	c.line.Close()
}

// =============================================================================
// COMMAND
// =============================================================================

func chatCmd(g *globalFlags) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with every panel from a plain terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := dispatch.ParsePolicy(target)
			if err != nil {
				return NewValidationError("--target", target, "must be all, selected or multi")
			}
			if err := RequireTerminal("chat"); err != nil {
				return err
			}
			return withApp(cmd, g, OpenOptions{SetupLogging: true, Watch: true}, func(ctx context.Context, app *App) error {
				s := NewSession(app, cmd.OutOrStdout())
				s.policy = policy
				if StdoutIsTerminal() {
					s.render = renderMarkdown
				}
				return runChat(ctx, s, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", "all", "panels that receive messages: all, selected or multi")
	return cmd
}

// runChat is the REPL loop. Ctrl+C while waiting stops the wait; Ctrl+C or
// Ctrl+D at the prompt exits.
func runChat(ctx context.Context, s *Session, out io.Writer) error {
	in := NewChatCLI()
	defer in.Close()

	names := make([]string, 0, len(s.commands))
	for n := range s.commands {
		names = append(names, n)
	}
	in.SetCompleter(names)

	printWelcome(out, s)

	for {
		input, err := in.ReadInput(PromptStyle.Render(s.promptLabel()))
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				return err
			}
			fmt.Fprintln(out)
			return nil
		}

		waitCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		quit, err := s.Execute(waitCtx, input)
		stop()
		if err != nil {
			fmt.Fprintf(out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
		if quit {
			return nil
		}
	}
}

// promptLabel shows the target policy and staged attachment count.
func (s *Session) promptLabel() string {
	label := "multichat[" + s.policy.String()
	if n := len(s.staged); n > 0 {
		label += fmt.Sprintf(" +%d", n)
	}
	return label + "]> "
}

func printWelcome(out io.Writer, s *Session) {
	fmt.Fprintln(out, TitleStyle.Render("multichat "+Version))
	s.printPanels()
	if !s.app.Gate.Configured() {
		fmt.Fprintln(out, color.YellowString("No API key configured. Sending is disabled until you run /key set <key>."))
	}
	fmt.Fprintln(out, DimStyle.Render("Type /help for commands, Ctrl+D to quit."))
	fmt.Fprintln(out)
}
