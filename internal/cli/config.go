// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for multichat.
//
// Command: config [subcommand]
// Short:   View and modify configuration
//
// Subcommands:
//   show (default)      Display the effective configuration
//   get <key>           Print one value
//   set <key> <value>   Set a value in the config file
//   reset               Write the default configuration
//   path                Show the config file location
//   keys                List settable keys
//
// Examples:
//   multichat config set panels.count 3
//   multichat config set panels.default_model x-ai/grok-4
//   multichat config set cloud.backend openai-sdk
//   multichat config get cloud.base_url
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/koharyou1215/multi-chat/internal/config"
	"github.com/koharyou1215/multi-chat/internal/credential"
)

func configCmd(g *globalFlags) *cobra.Command {
	show := &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration (key redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(g)
			if err != nil {
				return err
			}
			if g.jsonOutput {
				fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
				return nil
			}
			printConfig(cmd, cfg, path)
			return nil
		},
	}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Args:  cobra.NoArgs,
		RunE:  show.RunE,
	}

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(g)
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return NewValidationErrorWithExample("key", args[0], err.Error(), "multichat config keys")
			}
			if args[0] == "cloud.api_key" {
				v = credential.Masked(cfg.Cloud.APIKey)
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a value in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFilePath(g)
			if err != nil {
				return err
			}
			cfg := config.Default()
			if _, err := os.Stat(path); err == nil {
				if err := config.LoadTOML(cfg, path); err != nil {
					return err
				}
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return NewValidationErrorWithExample("key", args[0], err.Error(), "multichat config set panels.count 2")
			}
			if err := cfg.Validate(); err != nil {
				return &CommandError{Command: "config", Action: "set", Reason: "the new value is invalid", Err: err, exit: ExitConfigError}
			}
			if err := config.SaveTOML(cfg, path); err != nil {
				return err
			}
			shown := args[1]
			if args[0] == "cloud.api_key" {
				shown = credential.Masked(args[1])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", RenderStatus("ok"), args[0], shown)
			return nil
		},
	}

	var yesReset bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Write the default configuration (keeps the API key)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFilePath(g)
			if err != nil {
				return err
			}
			old := config.Default()
			if _, err := os.Stat(path); err == nil {
				if err := config.LoadTOML(old, path); err != nil {
					return err
				}
			}
			ok, err := RequireConfirmation(cmd, yesReset, "reset "+path+" to defaults", g.jsonOutput)
			if err != nil {
				return err
			}
			if !ok {
				return cancelled(cmd)
			}
			cfg := config.Default()
			cfg.Cloud.APIKey = old.Cloud.APIKey
			if err := config.SaveTOML(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Configuration reset: %s\n", RenderStatus("ok"), path)
			return nil
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Show the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := configFilePath(g)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}

	keys := &cobra.Command{
		Use:   "keys",
		Short: "List settable configuration keys",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(config.Keys(), "\n"))
		},
	}

	addYesFlag(reset, &yesReset)
	cmd.AddCommand(show, get, set, reset, path, keys)
	return cmd
}

func configFilePath(g *globalFlags) (string, error) {
	if g.configPath != "" {
		return g.configPath, nil
	}
	return config.ConfigPath()
}

func printConfig(cmd *cobra.Command, cfg *config.Config, path string) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, TitleStyle.Render("multichat configuration"))
	fmt.Fprintf(out, "%s%s\n\n", RenderLabel("File"), DimStyle.Render(path))

	section := func(name string) { fmt.Fprintln(out, SectionStyle.Render(name)) }
	row := func(label string, v interface{}) {
		fmt.Fprintf(out, "  %s%v\n", RenderLabel(label), v)
	}

	section("Cloud")
	row("API key", credential.Masked(cfg.Cloud.APIKey))
	row("Backend", cfg.Cloud.Backend)
	row("Base URL", cfg.Cloud.BaseURL)
	row("Site", cfg.Cloud.SiteName+" <"+cfg.Cloud.SiteURL+">")
	row("Timeout (s)", cfg.Cloud.TimeoutSecs)
	row("Requests/sec", cfg.Cloud.RequestsPerSecond)

	section("Panels")
	row("Count", cfg.Panels.Count)
	row("Default model", cfg.Panels.DefaultModel)

	section("Storage")
	row("Database", cfg.Storage.DatabasePath)
	row("Transcripts", cfg.Storage.TranscriptDir)

	section("Logging")
	row("Level", cfg.Logging.Level)
	row("Format", cfg.Logging.Format)
	row("File", cfg.Logging.File)

	section("Telemetry")
	if cfg.Telemetry.Enabled() {
		row("Endpoint", cfg.Telemetry.Endpoint)
		row("Service", cfg.Telemetry.ServiceName)
	} else {
		row("Endpoint", "(disabled)")
	}

	section("UI")
	row("Theme", cfg.UI.Theme)
	row("Word wrap", cfg.UI.WordWrap)
}
