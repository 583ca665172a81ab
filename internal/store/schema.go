package store

// schema is applied on every Open; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS personas (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		slug             TEXT NOT NULL,
		version          INTEGER NOT NULL CHECK (version >= 1),
		role             TEXT NOT NULL DEFAULT '',
		description      TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL CHECK (status IN ('draft', 'built', 'deployed', 'failed')),
		confidence_score REAL NOT NULL DEFAULT 0,
		confidence_grade TEXT NOT NULL DEFAULT 'F',
		spec_valid       INTEGER NOT NULL DEFAULT 0,
		created_at       TEXT NOT NULL,
		deployed_at      TEXT,
		failure_reason   TEXT,
		UNIQUE (slug, version)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_personas_slug ON personas(slug)`,
	`CREATE INDEX IF NOT EXISTS idx_personas_status ON personas(status)`,
	`CREATE INDEX IF NOT EXISTS idx_personas_name ON personas(name)`,
	`CREATE TABLE IF NOT EXISTS persona_artifacts (
		id            TEXT PRIMARY KEY,
		persona_id    TEXT NOT NULL REFERENCES personas(id) ON DELETE CASCADE,
		artifact_type TEXT NOT NULL CHECK (artifact_type IN ('system_prompt', 'openai_config', 'claude_config', 'test_suite')),
		content_json  TEXT,
		content_text  TEXT,
		created_at    TEXT NOT NULL,
		UNIQUE (persona_id, artifact_type),
		CHECK ((content_json IS NULL) <> (content_text IS NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_persona_artifacts_persona ON persona_artifacts(persona_id)`,
}
