// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are added to every record logged with the carrying context.
// Empty fields are omitted.
type LogFields struct {
	PanelID   string // Target panel ("panel-N")
	BatchID   string // Broadcast batch the cycle belongs to
	ModelID   string // Model bound to the panel at launch
	Component string // Dotted component name, e.g. "multichat.dispatch"
}

// WithLogFields enriches ctx with fields. Non-empty values in fields
// replace existing ones.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := mergeFields(GetLogFields(ctx), fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields returns the fields attached to ctx, or the zero value.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing
	if next.PanelID != "" {
		result.PanelID = next.PanelID
	}
	if next.BatchID != "" {
		result.BatchID = next.BatchID
	}
	if next.ModelID != "" {
		result.ModelID = next.ModelID
	}
	if next.Component != "" {
		result.Component = next.Component
	}
	return result
}

// Truncate shortens s to maxLen bytes for log output, appending "...".
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
