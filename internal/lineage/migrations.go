package lineage

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all lineage tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS types (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		UNIQUE (kind, name)
	)`,

	`CREATE TABLE IF NOT EXISTS artifacts (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		type_id           INTEGER NOT NULL,
		uri               TEXT NOT NULL DEFAULT '',
		properties        TEXT NOT NULL DEFAULT '{}',
		custom_properties TEXT NOT NULL DEFAULT '{}',
		created_at        TEXT NOT NULL,
		FOREIGN KEY (type_id) REFERENCES types(id)
	)`,

	`CREATE TABLE IF NOT EXISTS executions (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		type_id           INTEGER NOT NULL,
		properties        TEXT NOT NULL DEFAULT '{}',
		custom_properties TEXT NOT NULL DEFAULT '{}',
		created_at        TEXT NOT NULL,
		FOREIGN KEY (type_id) REFERENCES types(id)
	)`,

	`CREATE TABLE IF NOT EXISTS contexts (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		type_id           INTEGER NOT NULL,
		name              TEXT NOT NULL UNIQUE,
		properties        TEXT NOT NULL DEFAULT '{}',
		custom_properties TEXT NOT NULL DEFAULT '{}',
		created_at        TEXT NOT NULL,
		FOREIGN KEY (type_id) REFERENCES types(id)
	)`,

	`CREATE TABLE IF NOT EXISTS events (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		execution_id INTEGER NOT NULL,
		artifact_id  INTEGER NOT NULL,
		type         TEXT NOT NULL,
		path         TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL,
		FOREIGN KEY (execution_id) REFERENCES executions(id),
		FOREIGN KEY (artifact_id) REFERENCES artifacts(id)
	)`,

	`CREATE TABLE IF NOT EXISTS attributions (
		context_id  INTEGER NOT NULL,
		artifact_id INTEGER NOT NULL,
		UNIQUE (context_id, artifact_id),
		FOREIGN KEY (context_id) REFERENCES contexts(id),
		FOREIGN KEY (artifact_id) REFERENCES artifacts(id)
	)`,

	`CREATE TABLE IF NOT EXISTS associations (
		context_id   INTEGER NOT NULL,
		execution_id INTEGER NOT NULL,
		UNIQUE (context_id, execution_id),
		FOREIGN KEY (context_id) REFERENCES contexts(id),
		FOREIGN KEY (execution_id) REFERENCES executions(id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_artifacts_uri ON artifacts(uri)`,
	`CREATE INDEX IF NOT EXISTS idx_events_execution_id ON events(execution_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_artifact_id ON events(artifact_id)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			// Include the statement head in the error for diagnosis.
			head := stmt
			if idx := strings.Index(head, "("); idx > 0 {
				head = strings.TrimSpace(head[:idx])
			}
			return &migrationError{statement: head, err: err}
		}
	}
	return nil
}

type migrationError struct {
	statement string
	err       error
}

func (e *migrationError) Error() string {
	return "migrate: " + e.statement + ": " + e.err.Error()
}

func (e *migrationError) Unwrap() error {
	return e.err
}
