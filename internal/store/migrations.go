package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for the plan tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS plans (
		id              TEXT PRIMARY KEY,
		workflow        TEXT NOT NULL,
		pair            TEXT NOT NULL DEFAULT '',
		ref_build       TEXT NOT NULL,
		sequencing_type TEXT NOT NULL,
		scatter_count   INTEGER NOT NULL DEFAULT 0,
		fingerprint     TEXT NOT NULL,
		params          TEXT NOT NULL DEFAULT '{}',
		results         TEXT NOT NULL DEFAULT '{}',
		created_at      TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS plan_nodes (
		plan_id    TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
		id         TEXT NOT NULL,
		seq        INTEGER NOT NULL,
		task       TEXT NOT NULL,
		version    TEXT NOT NULL DEFAULT '',
		image      TEXT NOT NULL DEFAULT '',
		command    TEXT NOT NULL DEFAULT '',
		signature  TEXT NOT NULL,
		role       TEXT NOT NULL DEFAULT 'task',
		grp        TEXT NOT NULL DEFAULT '',
		idx        INTEGER NOT NULL DEFAULT -1,
		inputs     TEXT NOT NULL DEFAULT '{}',
		depends_on TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (plan_id, id)
	)`,

	`CREATE TABLE IF NOT EXISTS plan_edges (
		plan_id TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
		from_id TEXT NOT NULL,
		to_id   TEXT NOT NULL,
		PRIMARY KEY (plan_id, from_id, to_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_plans_pair ON plans(pair)`,
	`CREATE INDEX IF NOT EXISTS idx_plans_created_at ON plans(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_plan_nodes_seq ON plan_nodes(plan_id, seq)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
