// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry wires OpenTelemetry trace and log export over OTLP/HTTP.
//
// Export is off unless telemetry.endpoint (or OTEL_EXPORTER_OTLP_ENDPOINT)
// is set. When off, Setup returns nil and the global providers stay no-op,
// so spans started by the dispatcher cost nothing.
package telemetry
