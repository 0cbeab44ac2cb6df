// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for multichat.
//
// # Key Types
//
//   - Config: main configuration structure
//   - CloudConfig: API key, base URL, backend selection, pacing
//   - PanelsConfig: start-up panel count and default model
//   - Watcher: reloads the file on change (used to hot-swap the API key)
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (MULTICHAT_*, OPENROUTER_API_KEY, OTEL_EXPORTER_OTLP_ENDPOINT)
//   - .env in the working directory
//   - ~/.multichat/config.toml (MULTICHAT_HOME overrides the directory)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Panels.Count, cfg.Cloud.Backend)
package config
