// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/koharyou1215/multi-chat/internal/credential"
)

func keyCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the provider API key",
	}

	set := &cobra.Command{
		Use:   "set [key]",
		Short: "Save the API key to the config file",
		Long: `Save the API key to the config file (written with 0600 permissions).
Without an argument the key is read from the terminal without echo.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				var err error
				if key, err = readSecret("API key: "); err != nil {
					return err
				}
			}
			if key == "" {
				return ErrMissingArgument("key", "multichat key set sk-or-...")
			}
			return withApp(cmd, g, OpenOptions{Ephemeral: true}, func(ctx context.Context, app *App) error {
				if err := app.SaveKey(key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Key saved to %s (%s)\n", RenderStatus("ok"), app.ConfigPath, credential.Masked(key))
				return nil
			})
		},
	}

	var yesClear bool
	clearKey := &cobra.Command{
		Use:   "clear",
		Short: "Remove the API key from the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := RequireConfirmation(cmd, yesClear, "remove the API key", g.jsonOutput)
			if err != nil {
				return err
			}
			if !ok {
				return cancelled(cmd)
			}
			return withApp(cmd, g, OpenOptions{Ephemeral: true}, func(ctx context.Context, app *App) error {
				if err := app.SaveKey(""); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Key removed. Sending is disabled until a key is set.")
				return nil
			})
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show whether a key is configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, OpenOptions{Ephemeral: true}, func(ctx context.Context, app *App) error {
				st := app.Gate.Status()
				if g.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), "key status", keyStatusJSON(st))
				}
				printKeyStatus(cmd.OutOrStdout(), st)
				return nil
			})
		},
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check the key against the provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, OpenOptions{SetupLogging: true, Ephemeral: true}, func(ctx context.Context, app *App) error {
				if err := app.Gate.Check(); err != nil {
					return err
				}
				ok := app.Gate.Validate(ctx)
				if g.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), "key validate", keyStatusJSON(app.Gate.Status()))
				}
				printKeyStatus(cmd.OutOrStdout(), app.Gate.Status())
				if !ok {
					return &CommandError{Command: "key", Action: "validate", Reason: "the provider rejected the key or could not be reached", exit: ExitAuthError}
				}
				return nil
			})
		},
	}

	addYesFlag(clearKey, &yesClear)
	cmd.AddCommand(set, clearKey, status, validate)
	return cmd
}

type keyStatus struct {
	Configured  bool   `json:"configured"`
	Fingerprint string `json:"fingerprint"`
	State       string `json:"state"`
	CheckedAt   string `json:"checked_at,omitempty"`
}

func keyStatusJSON(st credential.Status) keyStatus {
	ks := keyStatus{Configured: st.Configured, Fingerprint: st.Fingerprint, State: st.State.String()}
	if !st.CheckedAt.IsZero() {
		ks.CheckedAt = st.CheckedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return ks
}

func printKeyStatus(out io.Writer, st credential.Status) {
	if !st.Configured {
		fmt.Fprintf(out, "%s%s\n", RenderLabel("API key"), RenderStatus("missing")+" not configured, sending is disabled")
		return
	}
	fmt.Fprintf(out, "%s%s\n", RenderLabel("API key"), ValueStyle.Render("configured (fingerprint "+st.Fingerprint+")"))
	line := RenderStatus(st.State.String())
	if !st.CheckedAt.IsZero() {
		line += DimStyle.Render(" checked " + st.CheckedAt.Format("15:04:05"))
	}
	fmt.Fprintf(out, "%s%s\n", RenderLabel("Validation"), line)
}
