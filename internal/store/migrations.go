package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS drafts (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL UNIQUE,
	spreadsheet_path TEXT NOT NULL DEFAULT '',
	sheet_name       TEXT NOT NULL DEFAULT '',
	email_column     TEXT NOT NULL DEFAULT '',
	name_column      TEXT NOT NULL DEFAULT '',
	subject          TEXT NOT NULL DEFAULT '',
	body             TEXT NOT NULL DEFAULT '',
	attachments      TEXT NOT NULL DEFAULT '[]',
	delay_sec        REAL NOT NULL DEFAULT 0 CHECK(delay_sec >= 0),
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_drafts_updated_at ON drafts(updated_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE drafts ADD COLUMN body_format TEXT NOT NULL DEFAULT 'text'
	CHECK(body_format IN ('text', 'markdown'));

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
