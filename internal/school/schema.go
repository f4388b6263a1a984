package school

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema creates the tables used by the repositories.
const Schema = `
CREATE TABLE IF NOT EXISTS teacher (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	department TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	email      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS clazz (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	teacher_id    TEXT NOT NULL DEFAULT '',
	student_count INTEGER NOT NULL DEFAULT 0,
	description   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS clazz_teacher_id_idx ON clazz (teacher_id);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("school: migrate: %w", err)
	}
	return nil
}
