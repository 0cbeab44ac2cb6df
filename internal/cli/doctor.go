// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - Health checks for configuration, storage, credentials and terminal.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/koharyou1215/multi-chat/internal/cloud"
	"github.com/koharyou1215/multi-chat/internal/config"
	"github.com/koharyou1215/multi-chat/internal/credential"
	"github.com/koharyou1215/multi-chat/internal/storage"
)

var (
	checkPassStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	checkWarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	checkFailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	fixStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true).
			PaddingLeft(2)
)

// =============================================================================
// HEALTH CHECK TYPES
// =============================================================================

// CheckStatus represents the status of a health check.
type CheckStatus int

const (
	CheckPass CheckStatus = iota
	CheckWarn
	CheckFail
)

func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarn:
		return "warn"
	case CheckFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns the bracketed marker printed before a check.
func (s CheckStatus) Symbol() string {
	switch s {
	case CheckPass:
		return checkPassStyle.Render("[OK]")
	case CheckWarn:
		return checkWarnStyle.Render("[!!]")
	case CheckFail:
		return checkFailStyle.Render("[FAIL]")
	default:
		return "?"
	}
}

// HealthCheck is a single check result.
type HealthCheck struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"-"`
	Message string      `json:"message"`
	Fix     string      `json:"fix,omitempty"`
}

// Render formats the check with its fix hint when it did not pass.
func (c *HealthCheck) Render() string {
	out := fmt.Sprintf("%s %s", c.Status.Symbol(), c.Message)
	if c.Status != CheckPass && c.Fix != "" {
		out += "\n" + fixStyle.Render("-> "+c.Fix)
	}
	return out
}

type doctorCheckJSON struct {
	*HealthCheck
	Status string `json:"status"`
}

type doctorSummary struct {
	Passed  int  `json:"passed"`
	Warned  int  `json:"warned"`
	Failed  int  `json:"failed"`
	Healthy bool `json:"healthy"`
}

// =============================================================================
// COMMAND
// =============================================================================

func doctorCmd(g *globalFlags) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, storage and the API key",
		Long: `Run health checks against the local setup.

The key check sends one authenticated request to the provider unless
--offline is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := runAllChecks(cmd.Context(), g, offline)
			return reportChecks(cmd.OutOrStdout(), checks, g.jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the network key check")
	return cmd
}

func reportChecks(out io.Writer, checks []*HealthCheck, jsonMode bool) error {
	var sum doctorSummary
	for _, c := range checks {
		switch c.Status {
		case CheckPass:
			sum.Passed++
		case CheckWarn:
			sum.Warned++
		case CheckFail:
			sum.Failed++
		}
	}
	sum.Healthy = sum.Failed == 0

	if jsonMode {
		rows := make([]doctorCheckJSON, len(checks))
		for i, c := range checks {
			rows[i] = doctorCheckJSON{HealthCheck: c, Status: c.Status.String()}
		}
		if err := writeJSON(out, "doctor", map[string]interface{}{"checks": rows, "summary": sum}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out)
		fmt.Fprintln(out, TitleStyle.Render("multichat doctor"))
		fmt.Fprintln(out, RenderSeparator(41))
		for _, c := range checks {
			fmt.Fprintln(out, c.Render())
		}
		fmt.Fprintln(out, RenderSeparator(41))

		parts := []string{fmt.Sprintf("%d passed", sum.Passed)}
		if sum.Warned > 0 {
			parts = append(parts, checkWarnStyle.Render(fmt.Sprintf("%d warning", sum.Warned)))
		}
		if sum.Failed > 0 {
			parts = append(parts, checkFailStyle.Render(fmt.Sprintf("%d failed", sum.Failed)))
		}
		fmt.Fprintln(out, DimStyle.Render(strings.Join(parts, ", ")))
		fmt.Fprintln(out)
	}

	if sum.Failed > 0 {
		return &CommandError{Command: "doctor", Action: "check", Reason: fmt.Sprintf("%d health check(s) failed", sum.Failed), exit: ExitGeneralError}
	}
	return nil
}

// =============================================================================
// HEALTH CHECK FUNCTIONS
// =============================================================================

// runAllChecks runs every check. Checks needing configuration are skipped
// when it fails to load.
func runAllChecks(ctx context.Context, g *globalFlags, offline bool) []*HealthCheck {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, path, err := loadConfig(g)
	checks := []*HealthCheck{checkConfigValid(path, err)}
	if err == nil {
		gate := credential.NewGate(cfg.Cloud.APIKey)
		checks = append(checks,
			checkDatabase(cfg.Storage.DatabasePath),
			checkTranscriptDir(cfg.Storage.TranscriptDir),
			checkKeyConfigured(gate),
		)
		if !offline && gate.Configured() {
			checks = append(checks, checkKeyAccepted(ctx, cfg.Cloud, gate))
		}
	}
	return append(checks, checkTerminal())
}

func checkConfigValid(path string, loadErr error) *HealthCheck {
	check := &HealthCheck{Name: "config"}
	if loadErr != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Config invalid: %v", loadErr)
		check.Fix = "Run: multichat config reset"
		return check
	}
	if _, err := os.Stat(path); err != nil {
		check.Status = CheckPass
		check.Message = "No config file, using defaults"
		return check
	}
	check.Status = CheckPass
	check.Message = fmt.Sprintf("Config valid (%s)", path)
	return check
}

func checkDatabase(path string) *HealthCheck {
	check := &HealthCheck{Name: "storage"}
	db, err := storage.Open(path)
	if err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Database unavailable: %v", err)
		check.Fix = "Check permissions on " + filepath.Dir(path)
		return check
	}
	defer db.Close()
	check.Status = CheckPass
	check.Message = fmt.Sprintf("Database ready (%s)", path)
	return check
}

func checkTranscriptDir(dir string) *HealthCheck {
	check := &HealthCheck{Name: "transcripts"}
	if err := os.MkdirAll(dir, 0700); err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Cannot create transcript directory: %v", err)
		check.Fix = "Run: multichat config set storage.transcript_dir <dir>"
		return check
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Transcript directory not writable: %v", err)
		check.Fix = "Check permissions on " + dir
		return check
	}
	name := f.Name()
	f.Close()
	os.Remove(name)

	check.Status = CheckPass
	check.Message = fmt.Sprintf("Transcript directory writable (%s)", dir)
	return check
}

func checkKeyConfigured(gate *credential.Gate) *HealthCheck {
	check := &HealthCheck{Name: "api_key"}
	if !gate.Configured() {
		check.Status = CheckWarn
		check.Message = "No API key configured, sending is disabled"
		check.Fix = "Run: multichat key set"
		return check
	}
	check.Status = CheckPass
	check.Message = fmt.Sprintf("API key configured (%s)", gate.Status().Fingerprint)
	return check
}

func checkKeyAccepted(ctx context.Context, cfg config.CloudConfig, gate *credential.Gate) *HealthCheck {
	check := &HealthCheck{Name: "api_key_valid"}
	client, err := cloud.New(cfg, gate)
	if err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Provider backend unusable: %v", err)
		check.Fix = "Run: multichat config set cloud.backend openrouter"
		return check
	}
	gate.SetProber(client)

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if !gate.Validate(ctx) {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Provider at %s rejected the API key", cfg.BaseURL)
		check.Fix = "Run: multichat key set"
		return check
	}
	check.Status = CheckPass
	check.Message = "Provider accepted the API key"
	return check
}

func checkTerminal() *HealthCheck {
	check := &HealthCheck{Name: "terminal"}
	if !StdoutIsTerminal() {
		check.Status = CheckWarn
		check.Message = "Stdout is not a terminal, only 'ask' and 'chat' will work"
		return check
	}
	check.Status = CheckPass
	check.Message = fmt.Sprintf("Terminal %d columns, %s", OutputWidth(), profileName(ColorProfile()))
	return check
}

func profileName(p termenv.Profile) string {
	switch p {
	case termenv.TrueColor:
		return "true color"
	case termenv.ANSI256:
		return "256 colors"
	case termenv.ANSI:
		return "16 colors"
	default:
		return "no color"
	}
}
