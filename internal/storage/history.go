// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/koharyou1215/multi-chat/internal/model"
)

// AddPromptUsage records a prompt application and prunes the history to
// model.MaxPromptHistory entries.
func (d *DB) AddPromptUsage(ctx context.Context, u model.PromptUsage) error {
	ids, err := json.Marshal(u.PanelIDs)
	if err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO prompt_usage (id, prompt_id, title, panel_ids, applied_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.PromptID, u.Title, string(ids), toMillis(u.AppliedAt)); err != nil {
		return fmt.Errorf("failed to insert prompt usage: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM prompt_usage WHERE id NOT IN (
			SELECT id FROM prompt_usage ORDER BY applied_at DESC, rowid DESC LIMIT ?)`,
		model.MaxPromptHistory); err != nil {
		return fmt.Errorf("failed to prune prompt usage: %w", err)
	}
	return tx.Commit()
}

// PromptUsage returns the usage history, newest first.
func (d *DB) PromptUsage(ctx context.Context) ([]model.PromptUsage, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, prompt_id, title, panel_ids, applied_at FROM prompt_usage ORDER BY applied_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query prompt usage: %w", err)
	}
	defer rows.Close()

	var history []model.PromptUsage
	for rows.Next() {
		var (
			u       model.PromptUsage
			ids     string
			applied int64
		)
		if err := rows.Scan(&u.ID, &u.PromptID, &u.Title, &ids, &applied); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ids), &u.PanelIDs); err != nil {
			return nil, fmt.Errorf("corrupt panel ids for usage %s: %w", u.ID, err)
		}
		u.AppliedAt = fromMillis(applied)
		history = append(history, u)
	}
	return history, rows.Err()
}

// ClearPromptUsage deletes the usage history.
func (d *DB) ClearPromptUsage(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM prompt_usage`)
	return err
}
