// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation prompts for destructive commands.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// RequireConfirmation asks "Are you sure you want to <action>?" on cmd's
// input. --yes skips the prompt. JSON mode and non-terminal stdin refuse to
// prompt and return an error instead.
func RequireConfirmation(cmd *cobra.Command, yes bool, action string, jsonMode bool) (bool, error) {
	if yes {
		return true, nil
	}
	if jsonMode {
		return false, NewValidationError("--yes", "", "confirmation required in JSON mode")
	}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && f == os.Stdin && !StdinIsTerminal() {
		return false, NewValidationError("--yes", "", "confirmation required but stdin is not a terminal")
	}
	return promptYesNo(in, cmd.ErrOrStderr(), fmt.Sprintf("Are you sure you want to %s?", action))
}

func promptYesNo(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return false, nil
		}
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// addYesFlag registers --yes/-y on cmd.
func addYesFlag(cmd *cobra.Command, yes *bool) {
	cmd.Flags().BoolVarP(yes, "yes", "y", false, "do not ask for confirmation")
}

func cancelled(cmd *cobra.Command) error {
	fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
	return nil
}
