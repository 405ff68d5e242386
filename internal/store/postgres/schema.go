package postgres

import "context"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS doctors (
		doctor_id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		specialty TEXT NOT NULL DEFAULT '',
		accepting_queues BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS queue_entries (
		patient_id UUID PRIMARY KEY,
		doctor_id UUID NOT NULL,
		name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		code TEXT NOT NULL,
		position INTEGER NOT NULL CHECK (position > 0),
		skipped BOOLEAN NOT NULL DEFAULT FALSE,
		joined_at TIMESTAMPTZ NOT NULL,
		date_added TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS queue_entries_doctor_position
		ON queue_entries (doctor_id, position)`,
	`CREATE TABLE IF NOT EXISTS queue_archive (
		patient_id UUID NOT NULL,
		doctor_id UUID NOT NULL,
		name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		code TEXT NOT NULL,
		status TEXT NOT NULL,
		joined_at TIMESTAMPTZ NOT NULL,
		served_at TIMESTAMPTZ NOT NULL,
		date_added TEXT NOT NULL,
		date_served TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS queue_archive_doctor_day
		ON queue_archive (doctor_id, date_served)`,
	`CREATE TABLE IF NOT EXISTS queue_versions (
		doctor_id UUID PRIMARY KEY,
		version BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS code_sequences (
		doctor_id UUID NOT NULL,
		date_added TEXT NOT NULL,
		next_number BIGINT NOT NULL,
		PRIMARY KEY (doctor_id, date_added)
	)`,
	`CREATE TABLE IF NOT EXISTS daily_analytics (
		date TEXT NOT NULL,
		doctor_id UUID NOT NULL,
		total_served INTEGER NOT NULL DEFAULT 0,
		total_skipped INTEGER NOT NULL DEFAULT 0,
		total_canceled INTEGER NOT NULL DEFAULT 0,
		avg_wait_minutes INTEGER NOT NULL DEFAULT 0,
		min_wait_minutes INTEGER NOT NULL DEFAULT 0,
		max_wait_minutes INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, doctor_id)
	)`,
}

// Migrate creates the schema when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
