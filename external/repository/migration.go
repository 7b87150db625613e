package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE session_status AS ENUM ('running', 'completed'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY,
		customer_name TEXT NOT NULL,
		customer_phone TEXT NOT NULL,
		vehicle_id TEXT NOT NULL,
		issue_type TEXT NOT NULL,
		service_center_name TEXT NOT NULL,
		service_center_phone TEXT NOT NULL,
		mode TEXT NOT NULL,
		status session_status NOT NULL DEFAULT 'running',
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		result_status TEXT NOT NULL DEFAULT '',
		scheduled_date TEXT NOT NULL DEFAULT '',
		scheduled_time TEXT NOT NULL DEFAULT '',
		confirmation_number TEXT NOT NULL DEFAULT '',
		failure_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_running ON sessions (status) WHERE status = 'running'`,
	`CREATE TABLE IF NOT EXISTS conversation_turns (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		speaker TEXT NOT NULL,
		content TEXT NOT NULL,
		turn_index INTEGER NOT NULL,
		spoken_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE(session_id, turn_index)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversation_turns_session ON conversation_turns (session_id, turn_index)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
