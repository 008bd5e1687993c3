package store

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
)

const (
	tableProgress  = "assessment_progress"
	tableResponses = "assessment_responses"
	tableResults   = "assessment_results"
	tableLLMEvents = "llm_request_events"
	tableSequence  = "global_sequence"
)

// ddl creates every table Taru needs. Statements are idempotent so migrate
// can run on each Open.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS ` + tableProgress + ` (
		user_id    TEXT    NOT NULL,
		type       TEXT    NOT NULL,
		questions  TEXT    NOT NULL,
		cursor     INTEGER NOT NULL DEFAULT 1,
		status     TEXT    NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, type)
	)`,
	`CREATE TABLE IF NOT EXISTS ` + tableResponses + ` (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id       TEXT    NOT NULL,
		type          TEXT    NOT NULL,
		question_id   TEXT    NOT NULL,
		answer        TEXT    NOT NULL,
		kind          TEXT    NOT NULL DEFAULT '',
		question_text TEXT    NOT NULL DEFAULT '',
		category      TEXT    NOT NULL DEFAULT '',
		answered_at   INTEGER NOT NULL,
		UNIQUE (user_id, type, question_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ` + tableResults + ` (
		user_id   TEXT    NOT NULL,
		type      TEXT    NOT NULL,
		result    TEXT    NOT NULL,
		scored_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, type)
	)`,
	`CREATE TABLE IF NOT EXISTS ` + tableLLMEvents + ` (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence      INTEGER NOT NULL,
		timestamp     INTEGER NOT NULL,
		provider      TEXT    NOT NULL,
		model         TEXT    NOT NULL,
		purpose       TEXT    NOT NULL,
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms    INTEGER NOT NULL DEFAULT 0,
		success       BOOLEAN NOT NULL,
		error_message TEXT    NOT NULL DEFAULT '',
		request_body  TEXT    NOT NULL DEFAULT '',
		response_body TEXT    NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS llm_request_events_purpose ON ` + tableLLMEvents + ` (purpose)`,
	`CREATE TABLE IF NOT EXISTS ` + tableSequence + ` (
		id       INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`,
}

func migrate(ctx context.Context, drv dialect.ExecQuerier) error {
	for _, stmt := range ddl {
		if err := drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("exec %.40q: %w", stmt, err)
		}
	}
	return nil
}
