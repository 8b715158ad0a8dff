package store

import "turn-orchestrator/internal/migration"

// Migrations is the ordered, idempotent schema for the Store's sqlite
// database (spec §4.1). Cascade deletes for Project→Conversation,
// Project→ProjectFile, and Conversation→ConversationMessage are declared
// foreign keys (requires `PRAGMA foreign_keys = ON`, set on every
// connection — see store.go). ContentChunk's parent is polymorphic
// (source_type, source_id), so its cascade and RetrievalIndex's cascade are
// explicit triggers instead of declared FKs.
var Migrations = []migration.Migration{
	{
		Name: "0001_projects",
		SQL: `
CREATE TABLE projects (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	settings    TEXT NOT NULL DEFAULT '{}',
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);

CREATE TABLE app_settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`,
	},
	{
		Name: "0002_conversations",
		SQL: `
CREATE TABLE conversations (
	id          TEXT PRIMARY KEY,
	project_id  TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	title       TEXT NOT NULL DEFAULT '',
	summary     TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL,
	round_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_conversations_project ON conversations(project_id);
`,
	},
	{
		Name: "0003_messages",
		SQL: `
CREATE TABLE conversation_messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	round_number    INTEGER NOT NULL,
	speaker         TEXT NOT NULL,
	content         TEXT NOT NULL,
	metadata        TEXT NOT NULL DEFAULT '{}',
	created_at      TIMESTAMP NOT NULL
);

CREATE INDEX idx_messages_conversation ON conversation_messages(conversation_id, round_number, created_at);
`,
	},
	{
		Name: "0004_files",
		SQL: `
CREATE TABLE project_files (
	id               TEXT PRIMARY KEY,
	project_id       TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	path             TEXT NOT NULL,
	content          TEXT,
	content_location TEXT,
	content_hash     TEXT NOT NULL,
	mime_type        TEXT NOT NULL,
	size_bytes       INTEGER NOT NULL,
	metadata         TEXT NOT NULL DEFAULT '{}',
	created_at       TIMESTAMP NOT NULL,
	updated_at       TIMESTAMP NOT NULL,
	UNIQUE(project_id, path)
);

CREATE INDEX idx_files_project ON project_files(project_id);
`,
	},
	{
		Name: "0005_chunks_and_index",
		SQL: `
CREATE TABLE content_chunks (
	id          TEXT PRIMARY KEY,
	source_type TEXT NOT NULL,
	source_id   TEXT NOT NULL,
	project_id  TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	content     TEXT NOT NULL,
	location    TEXT NOT NULL,
	token_count INTEGER NOT NULL,
	created_at  TIMESTAMP NOT NULL
);

CREATE INDEX idx_chunks_source ON content_chunks(source_type, source_id);
CREATE INDEX idx_chunks_project ON content_chunks(project_id);

CREATE VIRTUAL TABLE retrieval_index USING fts5(
	content,
	chunk_id UNINDEXED,
	project_id UNINDEXED,
	metadata UNINDEXED,
	tokenize = 'porter unicode61'
);

CREATE TRIGGER trg_files_cascade_chunks
AFTER DELETE ON project_files
BEGIN
	DELETE FROM content_chunks WHERE source_type = 'file' AND source_id = old.id;
END;

CREATE TRIGGER trg_messages_cascade_chunks
AFTER DELETE ON conversation_messages
BEGIN
	DELETE FROM content_chunks WHERE source_type = 'conversation_message' AND source_id = old.id;
END;

CREATE TRIGGER trg_chunks_cascade_index
AFTER DELETE ON content_chunks
BEGIN
	DELETE FROM retrieval_index WHERE chunk_id = old.id;
END;
`,
	},
	{
		Name: "0006_conversation_autosave",
		SQL: `
ALTER TABLE conversations ADD COLUMN autosave_enabled BOOLEAN NOT NULL DEFAULT 0;
ALTER TABLE conversations ADD COLUMN autosave_format TEXT NOT NULL DEFAULT '';
`,
	},
}

// DefaultProjectSettingKey is the app_settings key recording the default
// project's id (spec §3: "recorded in a configuration mapping under a
// well-known key").
const DefaultProjectSettingKey = "default_project_id"
