// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/koharyou1215/multi-chat/internal/cloud"
	"github.com/koharyou1215/multi-chat/internal/config"
	"github.com/koharyou1215/multi-chat/internal/conversation"
	"github.com/koharyou1215/multi-chat/internal/credential"
	"github.com/koharyou1215/multi-chat/internal/dispatch"
	"github.com/koharyou1215/multi-chat/internal/logger"
	"github.com/koharyou1215/multi-chat/internal/storage"
	"github.com/koharyou1215/multi-chat/internal/tasks"
	"github.com/koharyou1215/multi-chat/internal/telemetry"
)

// App holds every long-lived component of a running client.
type App struct {
	Config     *config.Config
	ConfigPath string

	Gate       *credential.Gate
	Client     cloud.Client
	DB         *storage.DB
	Store      *conversation.Store
	Queue      *tasks.Queue
	Dispatcher *dispatch.Dispatcher

	ephemeral bool
	logCloser io.Closer
	telemetry *telemetry.Telemetry
	watcher   *config.Watcher
}

// OpenOptions controls which ambient services Open starts.
type OpenOptions struct {
	// SetupLogging installs the slog default logger and telemetry.
	SetupLogging bool

	// Watch reloads ConfigPath on change. The file key reaches the gate only
	// when no key is set in the environment.
	Watch bool

	// Ephemeral skips saving the view state on Close.
	Ephemeral bool
}

// Open builds an App from cfg. The caller must Close it.
func Open(ctx context.Context, cfg *config.Config, path string, opts OpenOptions) (*App, error) {
	a := &App{Config: cfg, ConfigPath: path, ephemeral: opts.Ephemeral}

	if opts.SetupLogging {
		tel, err := telemetry.Setup(ctx, cfg.Telemetry, Version)
		if err != nil {
			return nil, fmt.Errorf("failed to start telemetry: %w", err)
		}
		a.telemetry = tel

		closer, err := logger.Setup(cfg.Logging, cfg.Telemetry)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to set up logging: %w", err)
		}
		a.logCloser = closer
	}

	a.Gate = credential.NewGate(cfg.Cloud.APIKey)
	client, err := cloud.New(cfg.Cloud, a.Gate)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Client = client
	a.Gate.SetProber(client)

	db, err := storage.Open(cfg.Storage.DatabasePath)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.DB = db

	a.Store = conversation.New(cfg.Panels.Count, cfg.Panels.DefaultModel)
	if err := a.restoreState(ctx); err != nil {
		slog.Warn("failed to restore view state", "error", err)
	}

	history, err := db.PromptUsage(ctx)
	if err != nil {
		slog.Warn("failed to load prompt history", "error", err)
	}
	a.Queue = tasks.NewQueue(200)
	a.Dispatcher = dispatch.New(a.Store, a.Client, a.Gate,
		dispatch.WithQueue(a.Queue),
		dispatch.WithUsageRecorder(db),
		dispatch.WithPromptHistory(history),
	)

	if opts.Watch && path != "" {
		if err := a.watch(); err != nil {
			slog.Warn("config watcher disabled", "error", err)
		}
	}

	slog.Info("multichat started",
		"version", Version,
		"backend", cfg.Cloud.Backend,
		"panels", a.Store.PanelCount(),
		"key_configured", a.Gate.Configured(),
		"key_fingerprint", credential.Fingerprint(cfg.Cloud.APIKey))
	return a, nil
}

func (a *App) watch() error {
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}
	w, err := config.NewWatcher(a.ConfigPath, 0, a.reload)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		w.Close()
		return err
	}
	a.watcher = w
	return nil
}

// reload applies a changed config file. A key from the environment is
// never pushed into the gate, so a key entered in this session survives.
func (a *App) reload(cfg *config.Config) {
	if config.EnvAPIKey() == "" {
		a.Gate.Set(cfg.Cloud.APIKey)
	}
	a.Store.SetDefaultModel(cfg.Panels.DefaultModel)
}

// restoreState applies the saved view state and panel models.
func (a *App) restoreState(ctx context.Context) error {
	st, ok, err := a.DB.LoadUIState(ctx)
	if err != nil || !ok {
		return err
	}
	a.Store.RestoreViewState(conversation.ViewState{
		PanelCount: st.PanelCount,
		Selected:   st.Selected,
		MultiSend:  st.MultiSend,
	})
	for id, m := range st.PanelModels {
		a.Store.SetModel(id, m)
	}
	return nil
}

// SaveState persists the view state and panel models.
func (a *App) SaveState(ctx context.Context) error {
	if a.DB == nil || a.Store == nil {
		return nil
	}
	v := a.Store.ViewState()
	st := storage.UIState{
		PanelCount:  v.PanelCount,
		Selected:    v.Selected,
		MultiSend:   v.MultiSend,
		PanelModels: make(map[string]string, v.PanelCount),
	}
	for _, p := range a.Store.Panels() {
		st.PanelModels[p.ID] = p.ModelID
	}
	return a.DB.SaveUIState(ctx, st)
}

// SaveKey stores key in the gate and writes it to the config file. Only
// the file's own settings are rewritten; environment overrides stay out.
func (a *App) SaveKey(key string) error {
	a.Gate.Set(key)
	a.Config.Cloud.APIKey = a.Gate.APIKey()
	if a.ConfigPath == "" {
		return nil
	}

	fileCfg := config.Default()
	if _, err := os.Stat(a.ConfigPath); err == nil {
		if err := config.LoadTOML(fileCfg, a.ConfigPath); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	fileCfg.Cloud.APIKey = a.Gate.APIKey()
	if err := config.SaveTOML(fileCfg, a.ConfigPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// Close saves state and releases everything Open acquired.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if !a.ephemeral {
		if err := a.SaveState(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.watcher != nil {
		errs = append(errs, a.watcher.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}
