// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/koharyou1215/multi-chat/internal/config"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	panels     int
	logLevel   string
	jsonOutput bool
}

// TUIRunner starts the terminal UI. main injects it so the cli package does
// not depend on the ui package.
type TUIRunner func(ctx context.Context, app *App) error

// NewRootCmd builds the multichat command tree.
func NewRootCmd(runTUI TUIRunner) *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "multichat",
		Short: "Send one prompt to several AI models side by side",
		Long: `multichat fans a single message out to up to four chat panels, each bound
to its own model, and shows the replies next to each other.

Usage modes:
  multichat              Start the panel grid (default)
  multichat chat         Line-mode chat with slash commands
  multichat ask "..."    Broadcast one message and print the replies

Configuration lives in ~/.multichat/config.toml. The API key can also come
from MULTICHAT_API_KEY or OPENROUTER_API_KEY, or a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := RequireTerminal("start the panel grid"); err != nil {
				return err
			}
			return withApp(cmd, g, OpenOptions{SetupLogging: true, Watch: true}, func(ctx context.Context, app *App) error {
				return runTUI(ctx, app)
			})
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default ~/.multichat/config.toml)")
	pf.IntVarP(&g.panels, "panels", "p", 0, "number of panels (1-4), overrides config")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&g.jsonOutput, "json", false, "output as JSON where supported")

	root.AddGroup(
		&cobra.Group{ID: "chat", Title: "Chat:"},
		&cobra.Group{ID: "manage", Title: "Management:"},
	)

	for _, c := range []*cobra.Command{
		tuiCmd(g, runTUI),
		chatCmd(g),
		askCmd(g),
	} {
		c.GroupID = "chat"
		root.AddCommand(c)
	}
	for _, c := range []*cobra.Command{
		modelsCmd(g),
		keyCmd(g),
		promptsCmd(g),
		configCmd(g),
		doctorCmd(g),
	} {
		c.GroupID = "manage"
		root.AddCommand(c)
	}
	root.AddCommand(versionCmd())

	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, runTUI TUIRunner) int {
	root := NewRootCmd(runTUI)
	if err := root.ExecuteContext(ctx); err != nil {
		DisplayError(err, jsonRequested(root))
		return GetExitCode(err)
	}
	return ExitSuccess
}

func jsonRequested(root *cobra.Command) bool {
	v, err := root.PersistentFlags().GetBool("json")
	return err == nil && v
}

// loadConfig loads the config named by --config, or the default file, and
// applies flag overrides.
func loadConfig(g *globalFlags) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path = g.configPath
		err  error
	)
	if path != "" {
		cfg, err = config.LoadOrDefault(path)
	} else {
		cfg, err = config.Load()
		if err == nil {
			path, err = config.ConfigPath()
		}
	}
	if err != nil {
		return nil, "", &CommandError{Command: "config", Action: "load", Reason: "could not read configuration", Err: err, exit: ExitConfigError}
	}

	if g.panels != 0 {
		if g.panels < config.MinPanels || g.panels > config.MaxPanels {
			return nil, "", NewValidationErrorWithExample("--panels", fmt.Sprint(g.panels), "must be between 1 and 4", "multichat --panels 3")
		}
		cfg.Panels.Count = g.panels
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	return cfg, path, nil
}

// withApp loads configuration, opens an App, runs fn and closes the App.
func withApp(cmd *cobra.Command, g *globalFlags, opts OpenOptions, fn func(ctx context.Context, app *App) error) error {
	cfg, path, err := loadConfig(g)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := Open(ctx, cfg, path, opts)
	if err != nil {
		return err
	}
	defer app.Close()
	if g.panels != 0 {
		app.Store.SetPanelCount(g.panels)
	}
	return fn(ctx, app)
}

func tuiCmd(g *globalFlags, runTUI TUIRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the panel grid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := RequireTerminal("start the panel grid"); err != nil {
				return err
			}
			return withApp(cmd, g, OpenOptions{SetupLogging: true, Watch: true}, func(ctx context.Context, app *App) error {
				return runTUI(ctx, app)
			})
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "multichat %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  Commit:  %s\n", GitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "  Built:   %s\n", BuildDate)
			fmt.Fprintf(cmd.OutOrStdout(), "  Go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
