// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const uiStateKey = "view"

// UIState is the view state restored at start-up. Panel histories are not
// part of it.
type UIState struct {
	PanelCount int      `json:"panel_count"`
	Selected   string   `json:"selected"`
	MultiSend  []string `json:"multi_send,omitempty"`

	// PanelModels maps panel ids to their bound model.
	PanelModels map[string]string `json:"panel_models,omitempty"`
}

// SaveUIState stores s, replacing any previous state.
func (d *DB) SaveUIState(ctx context.Context, s UIState) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO ui_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		uiStateKey, string(data))
	if err != nil {
		return fmt.Errorf("failed to save ui state: %w", err)
	}
	return nil
}

// LoadUIState returns the saved state. ok is false when nothing was saved.
func (d *DB) LoadUIState(ctx context.Context) (s UIState, ok bool, err error) {
	var raw string
	err = d.db.QueryRowContext(ctx, `SELECT value FROM ui_state WHERE key = ?`, uiStateKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return UIState{}, false, nil
	}
	if err != nil {
		return UIState{}, false, fmt.Errorf("failed to load ui state: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return UIState{}, false, fmt.Errorf("corrupt ui state: %w", err)
	}
	return s, true, nil
}
