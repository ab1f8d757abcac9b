package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            SERIAL PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'user',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id          BIGSERIAL PRIMARY KEY,
		subject     VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		start_date  DATE NOT NULL,
		due_date    DATE NOT NULL,
		status      TEXT NOT NULL CHECK (status IN ('new', 'incomplete', 'complete')),
		priority    TEXT NOT NULL CHECK (priority IN ('high', 'medium', 'low')),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS notes (
		id          BIGSERIAL PRIMARY KEY,
		task_id     BIGINT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		subject     VARCHAR(255) NOT NULL,
		note        TEXT NOT NULL,
		attachments JSONB,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_task_id ON notes(task_id)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_attachments ON notes USING GIN (attachments)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date)`,
}

// EnsureSchema creates tables and indexes that do not exist yet.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool, logger *zap.Logger) error {
	for i, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			logger.Error("Schema statement failed", zap.Int("index", i), zap.Error(err))
			return fmt.Errorf("ensure schema (statement %d): %w", i, err)
		}
	}
	logger.Info("Database schema ensured", zap.Int("statements", len(schemaStatements)))
	return nil
}
