// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logger configures log/slog for multichat.
//
// Records go to the log file (the terminal belongs to the UI) or, when an
// OTLP endpoint is configured, to the OpenTelemetry log pipeline. Every
// record is enriched with the trace/span ids of its context and with the
// fields attached by WithLogFields:
//
//	ctx = logger.WithLogFields(ctx, logger.LogFields{PanelID: "panel-2", Component: "multichat.dispatch"})
//	slog.InfoContext(ctx, "cycle settled")
package logger
