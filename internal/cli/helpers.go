// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/koharyou1215/multi-chat/internal/conversation"
)

// jsonEnvelope wraps every --json payload so scripts can check success and
// tell commands apart.
type jsonEnvelope struct {
	Success   bool   `json:"success"`
	Command   string `json:"command,omitempty"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

func writeJSON(w io.Writer, command string, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonEnvelope{
		Success:   true,
		Command:   command,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// formatBytes renders an attachment size in binary units.
func formatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d bytes", n)
	}
	size, unit := float64(n)/1024, "KB"
	if size >= 1024 {
		size, unit = size/1024, "MB"
	}
	return fmt.Sprintf("%.2f %s", size, unit)
}

// parsePanelRef accepts "2" or "panel-2" and returns the panel id. It does
// not check that the panel is active.
func parsePanelRef(s string) (string, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		n, _ = conversation.PanelOrdinal(s)
	}
	if n < conversation.MinPanels || n > conversation.MaxPanels {
		return "", NewValidationErrorWithExample("panel", s, "must be a panel number from 1 to 4", "/select 2")
	}
	return conversation.PanelID(n), nil
}
