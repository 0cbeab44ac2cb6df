// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

// SchemaVersion is bumped whenever Schema changes incompatibly.
const SchemaVersion = "1"

// Schema creates every table. Timestamps are unix milliseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS prompts (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	tags TEXT NOT NULL DEFAULT '[]',
	is_optimized INTEGER NOT NULL DEFAULT 0,
	original_content TEXT NOT NULL DEFAULT '',
	search_key TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_prompts_updated_at ON prompts(updated_at);

CREATE TABLE IF NOT EXISTS prompt_usage (
	id TEXT PRIMARY KEY,
	prompt_id TEXT NOT NULL,
	title TEXT NOT NULL,
	panel_ids TEXT NOT NULL DEFAULT '[]',
	applied_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_prompt_usage_applied_at ON prompt_usage(applied_at);

CREATE TABLE IF NOT EXISTS ui_state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// InitMetadata seeds the metadata table.
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '` + SchemaVersion + `');
`
