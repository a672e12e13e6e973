package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate создаёт схему, если её ещё нет. Выполняется при каждом старте;
// все операторы идемпотентны.
func Migrate(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			email VARCHAR(255) NOT NULL DEFAULT '',
			password_hash VARCHAR(255) NOT NULL,
			mmr INTEGER NOT NULL DEFAULT 1000,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS debates (
			id SERIAL PRIMARY KEY,
			user1_id INTEGER NOT NULL REFERENCES users(id),
			user2_id INTEGER NOT NULL REFERENCES users(id),
			topic TEXT NOT NULL,
			log TEXT NOT NULL DEFAULT '[]',
			winner_id INTEGER REFERENCES users(id),
			reason VARCHAR(20),
			result TEXT,
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			ended_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS topics (
			id SERIAL PRIMARY KEY,
			topic_text TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_debates_user1 ON debates(user1_id)`,
		`CREATE INDEX IF NOT EXISTS idx_debates_user2 ON debates(user2_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
