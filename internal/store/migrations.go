package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create conversations and messages",
		SQL: `
			CREATE TABLE conversations (
				id             TEXT PRIMARY KEY,
				key_str        TEXT NOT NULL,
				channel_id     TEXT NOT NULL,
				chat_id        TEXT NOT NULL,
				sender_id      TEXT NOT NULL DEFAULT '',
				state          TEXT NOT NULL,
				captured_zip   TEXT NOT NULL DEFAULT '',
				captured_phone TEXT NOT NULL DEFAULT '',
				captured_name  TEXT NOT NULL DEFAULT '',
				created_at     TEXT NOT NULL,
				updated_at     TEXT NOT NULL,
				closed_at      TEXT
			);

			CREATE INDEX idx_conversations_key ON conversations (key_str);
			CREATE INDEX idx_conversations_updated ON conversations (updated_at);

			CREATE TABLE messages (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				origin          TEXT NOT NULL,
				text            TEXT NOT NULL,
				action          TEXT,
				timestamp       TEXT NOT NULL
			);

			CREATE INDEX idx_messages_conversation ON messages (conversation_id, id);
		`,
	},
	{
		Version: 2,
		Name:    "create call attempts",
		SQL: `
			CREATE TABLE call_attempts (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				status          TEXT NOT NULL,
				reason          TEXT NOT NULL DEFAULT '',
				started_at      TEXT NOT NULL,
				ended_at        TEXT
			);

			CREATE INDEX idx_call_attempts_conversation ON call_attempts (conversation_id, id);
		`,
	},
}
