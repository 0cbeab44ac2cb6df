// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Output width bounds used when laying out command output.
const (
	fallbackWidth  = 80
	narrowestWidth = 40
)

// terminalInfo is detected once per process.
type terminalInfo struct {
	stdin   bool
	stdout  bool
	profile termenv.Profile
}

var detectTerminal = sync.OnceValue(func() terminalInfo {
	info := terminalInfo{
		stdin:  term.IsTerminal(int(os.Stdin.Fd())),
		stdout: term.IsTerminal(int(os.Stdout.Fd())),
	}
	// NO_COLOR (https://no-color.org/) beats FORCE_COLOR, which beats
	// detection on stdout.
	switch {
	case os.Getenv("NO_COLOR") != "":
		info.profile = termenv.Ascii
	case os.Getenv("FORCE_COLOR") != "" || info.stdout:
		info.profile = termenv.ColorProfile()
		if info.profile == termenv.Ascii && os.Getenv("FORCE_COLOR") != "" {
			info.profile = termenv.ANSI
		}
	default:
		info.profile = termenv.Ascii
	}
	return info
})

// StdinIsTerminal reports whether input comes from a terminal.
func StdinIsTerminal() bool { return detectTerminal().stdin }

// StdoutIsTerminal reports whether output goes to a terminal.
func StdoutIsTerminal() bool { return detectTerminal().stdout }

// ColorProfile is the profile command output renders with.
func ColorProfile() termenv.Profile { return detectTerminal().profile }

// ColorsEnabled is false when output is plain text.
func ColorsEnabled() bool { return ColorProfile() != termenv.Ascii }

// OutputWidth is the stdout column count, never below narrowestWidth.
func OutputWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return max(w, narrowestWidth)
	}
	return fallbackWidth
}

// NotTerminalError means an interactive operation was attempted without a
// terminal on stdin.
type NotTerminalError struct {
	Operation string
}

func (e *NotTerminalError) Error() string {
	what := "interactive input is not available"
	if e.Operation != "" {
		what = "cannot " + e.Operation + " interactively"
	}
	return "stdin is not a terminal: " + what
}

// RequireTerminal fails with a NotTerminalError unless stdin is a terminal.
func RequireTerminal(operation string) error {
	if StdinIsTerminal() {
		return nil
	}
	return &NotTerminalError{Operation: operation}
}

// readSecret prompts on stderr and reads one line without echo.
func readSecret(prompt string) (string, error) {
	if err := RequireTerminal("read the API key"); err != nil {
		return "", err
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
