// ABOUTME: Database schema definitions and migrations
// ABOUTME: Renders the same table layout for SQLite and Postgres column types
package db

import (
	"database/sql"
	"strings"
)

// schema is rendered per dialect: {{ts}} becomes the timestamp column type.
const schema = `
CREATE TABLE IF NOT EXISTS contacts (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	company TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	linkedin TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'new' CHECK (status IN ('new','contacted','responded','call_scheduled','pilot','closed','client','lost')),
	next_followup TEXT NOT NULL DEFAULT '',
	next_action TEXT NOT NULL DEFAULT '',
	next_action_due TEXT NOT NULL DEFAULT '',
	action_channel TEXT NOT NULL DEFAULT '',
	action_objective TEXT NOT NULL DEFAULT '',
	auto_created BOOLEAN NOT NULL DEFAULT FALSE,
	created_at {{ts}} NOT NULL,
	updated_at {{ts}} NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_email ON contacts(lower(email)) WHERE email <> '';
CREATE INDEX IF NOT EXISTS idx_contacts_linkedin ON contacts(linkedin);
CREATE INDEX IF NOT EXISTS idx_contacts_status ON contacts(status);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	completed BOOLEAN NOT NULL DEFAULT FALSE,
	completed_at {{ts}},
	date_entered TEXT NOT NULL,
	date_scheduled TEXT NOT NULL DEFAULT '',
	created_at {{ts}} NOT NULL,
	updated_at {{ts}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_date_entered ON tasks(date_entered);
CREATE INDEX IF NOT EXISTS idx_tasks_date_scheduled ON tasks(date_scheduled);

CREATE TABLE IF NOT EXISTS daily_plans (
	id TEXT PRIMARY KEY,
	date TEXT NOT NULL UNIQUE,
	one_thing TEXT NOT NULL DEFAULT '',
	tasks TEXT NOT NULL DEFAULT '[]',
	created_at {{ts}} NOT NULL,
	updated_at {{ts}} NOT NULL
);

CREATE TABLE IF NOT EXISTS external_events (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	external_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	occurred_at {{ts}},
	duration_minutes INTEGER NOT NULL DEFAULT 0,
	contact_id TEXT REFERENCES contacts(id) ON DELETE SET NULL,
	match_confidence TEXT NOT NULL DEFAULT '',
	needs_review BOOLEAN NOT NULL DEFAULT FALSE,
	proposed_status TEXT NOT NULL DEFAULT '',
	reasons TEXT NOT NULL DEFAULT '[]',
	excluded BOOLEAN NOT NULL DEFAULT FALSE,
	raw TEXT NOT NULL DEFAULT '',
	created_at {{ts}} NOT NULL,
	UNIQUE(source, external_id)
);

CREATE INDEX IF NOT EXISTS idx_external_events_contact ON external_events(contact_id);
CREATE INDEX IF NOT EXISTS idx_external_events_review ON external_events(needs_review);

CREATE TABLE IF NOT EXISTS action_items (
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL REFERENCES external_events(id) ON DELETE CASCADE,
	description TEXT NOT NULL,
	assignee TEXT NOT NULL DEFAULT '',
	completed BOOLEAN NOT NULL DEFAULT FALSE,
	completed_at {{ts}},
	task_id TEXT REFERENCES tasks(id),
	created_at {{ts}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_action_items_event ON action_items(event_id);

CREATE TABLE IF NOT EXISTS sync_runs (
	id TEXT PRIMARY KEY,
	sync_type TEXT NOT NULL,
	source TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('started','completed','failed')),
	processed INTEGER NOT NULL DEFAULT 0,
	new_count INTEGER NOT NULL DEFAULT 0,
	contacts_created INTEGER NOT NULL DEFAULT 0,
	needs_review INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	errors TEXT NOT NULL DEFAULT '[]',
	started_at {{ts}} NOT NULL,
	completed_at {{ts}}
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs(started_at);

CREATE TABLE IF NOT EXISTS sync_state (
	service TEXT PRIMARY KEY,
	last_sync_time {{ts}},
	status TEXT NOT NULL CHECK (status IN ('idle','syncing','error')),
	error_message TEXT NOT NULL DEFAULT '',
	updated_at {{ts}} NOT NULL
);
`

// InitSchema creates all tables and indexes if they do not exist.
func InitSchema(db *sql.DB, dialect Dialect) error {
	_, err := db.Exec(renderSchema(dialect))
	return err
}

func renderSchema(dialect Dialect) string {
	ts := "DATETIME"
	if dialect == DialectPostgres {
		ts = "TIMESTAMPTZ"
	}
	return strings.ReplaceAll(schema, "{{ts}}", ts)
}
