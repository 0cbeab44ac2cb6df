// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/koharyou1215/multi-chat/internal/model"
)

// =============================================================================
// NORMALIZATION
// =============================================================================

// Fold returns the search form of s: NFKC-normalized and case-folded, so
// full-width and half-width forms and letter case compare equal.
func Fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

// NormalizeTags trims, folds and de-duplicates tags, keeping first
// occurrence order. Empty tags are dropped.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = Fold(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#")))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func searchKey(p model.Prompt) string {
	return Fold(p.Title + "\n" + p.Content + "\n#" + strings.Join(p.Tags, " #"))
}

// =============================================================================
// PROMPT LIBRARY
// =============================================================================

const promptColumns = `id, title, content, tags, is_optimized, original_content, created_at, updated_at`

// AddPrompt stores a new prompt. A missing id or timestamp is filled in.
func (d *DB) AddPrompt(ctx context.Context, p model.Prompt) (model.Prompt, error) {
	if err := validatePrompt(p); err != nil {
		return model.Prompt{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	p.Tags = NormalizeTags(p.Tags)

	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return model.Prompt{}, err
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO prompts (`+promptColumns+`, search_key) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Content, string(tags), p.IsOptimized, p.OriginalContent,
		toMillis(p.CreatedAt), toMillis(p.UpdatedAt), searchKey(p))
	if err != nil {
		return model.Prompt{}, fmt.Errorf("failed to insert prompt: %w", err)
	}
	return p, nil
}

// UpdatePrompt replaces a stored prompt and bumps UpdatedAt. Panels that
// already bound the prompt keep their copy.
func (d *DB) UpdatePrompt(ctx context.Context, p model.Prompt) (model.Prompt, error) {
	if err := validatePrompt(p); err != nil {
		return model.Prompt{}, err
	}
	p.Tags = NormalizeTags(p.Tags)
	p.UpdatedAt = time.Now()

	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return model.Prompt{}, err
	}
	res, err := d.db.ExecContext(ctx,
		`UPDATE prompts SET title = ?, content = ?, tags = ?, is_optimized = ?, original_content = ?,
			updated_at = ?, search_key = ? WHERE id = ?`,
		p.Title, p.Content, string(tags), p.IsOptimized, p.OriginalContent,
		toMillis(p.UpdatedAt), searchKey(p), p.ID)
	if err != nil {
		return model.Prompt{}, fmt.Errorf("failed to update prompt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Prompt{}, ErrPromptNotFound
	}
	return d.GetPrompt(ctx, p.ID)
}

func validatePrompt(p model.Prompt) error {
	if strings.TrimSpace(p.Title) == "" {
		return errors.New("prompt title is required")
	}
	if strings.TrimSpace(p.Content) == "" {
		return errors.New("prompt content is required")
	}
	return nil
}

// DeletePrompt removes a prompt. Its usage history is kept.
func (d *DB) DeletePrompt(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM prompts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPromptNotFound
	}
	return nil
}

// GetPrompt loads one prompt.
func (d *DB) GetPrompt(ctx context.Context, id string) (model.Prompt, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+promptColumns+` FROM prompts WHERE id = ?`, id)
	p, err := scanPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Prompt{}, ErrPromptNotFound
	}
	return p, err
}

// FindPrompt resolves a prompt by exact id, then by unique id prefix, then
// by case-folded title.
func (d *DB) FindPrompt(ctx context.Context, ref string) (model.Prompt, error) {
	if p, err := d.GetPrompt(ctx, ref); err == nil || !errors.Is(err, ErrPromptNotFound) {
		return p, err
	}
	all, err := d.ListPrompts(ctx)
	if err != nil {
		return model.Prompt{}, err
	}
	var match []model.Prompt
	for _, p := range all {
		if strings.HasPrefix(p.ID, ref) {
			match = append(match, p)
		}
	}
	if len(match) == 1 {
		return match[0], nil
	}
	for _, p := range all {
		if Fold(p.Title) == Fold(ref) {
			return p, nil
		}
	}
	return model.Prompt{}, ErrPromptNotFound
}

// ListPrompts returns every prompt, most recently updated first.
func (d *DB) ListPrompts(ctx context.Context) ([]model.Prompt, error) {
	return d.queryPrompts(ctx, `SELECT `+promptColumns+` FROM prompts ORDER BY updated_at DESC, title`)
}

// SearchPrompts returns prompts whose title, content or tags contain every
// whitespace-separated term of query, compared after folding. A term
// starting with '#' must match a tag exactly. An empty query lists all.
func (d *DB) SearchPrompts(ctx context.Context, query string) ([]model.Prompt, error) {
	terms := strings.Fields(Fold(query))
	if len(terms) == 0 {
		return d.ListPrompts(ctx)
	}

	var (
		where []string
		args  []any
	)
	for _, term := range terms {
		if tag, ok := strings.CutPrefix(term, "#"); ok && tag != "" {
			where = append(where, `EXISTS (SELECT 1 FROM json_each(prompts.tags) WHERE json_each.value = ?)`)
			args = append(args, tag)
			continue
		}
		where = append(where, `search_key LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(term)+"%")
	}
	q := `SELECT ` + promptColumns + ` FROM prompts WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY updated_at DESC, title`
	return d.queryPrompts(ctx, q, args...)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (d *DB) queryPrompts(ctx context.Context, q string, args ...any) ([]model.Prompt, error) {
	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prompts: %w", err)
	}
	defer rows.Close()

	var prompts []model.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrompt(s scanner) (model.Prompt, error) {
	var (
		p                model.Prompt
		tags             string
		created, updated int64
	)
	if err := s.Scan(&p.ID, &p.Title, &p.Content, &tags, &p.IsOptimized, &p.OriginalContent, &created, &updated); err != nil {
		return model.Prompt{}, err
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return model.Prompt{}, fmt.Errorf("corrupt tags for prompt %s: %w", p.ID, err)
	}
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return p, nil
}
