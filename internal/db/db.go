package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens the Postgres pool and runs migrations.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// The directory tables are owned by the team and booking services; they are
// created here only when missing so a standalone database works.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            full_name TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS teams (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS team_members (
            team_id INT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            role TEXT NOT NULL DEFAULT 'member',
            PRIMARY KEY(team_id, user_id)
        );`,
	`CREATE TABLE IF NOT EXISTS fields (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            address TEXT NOT NULL DEFAULT ''
        );`,
	`CREATE TABLE IF NOT EXISTS bookings (
            id SERIAL PRIMARY KEY,
            field_id INT NOT NULL REFERENCES fields(id),
            status TEXT NOT NULL DEFAULT 'confirmed',
            start_time TIMESTAMPTZ NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS matches (
            id SERIAL PRIMARY KEY,
            booking_id INT UNIQUE REFERENCES bookings(id),
            team_a_id INT NOT NULL REFERENCES teams(id),
            team_b_id INT NOT NULL REFERENCES teams(id),
            initiating_team_id INT NOT NULL REFERENCES teams(id),
            invited_team_id INT NOT NULL REFERENCES teams(id),
            status TEXT NOT NULL,
            match_date TIMESTAMPTZ,
            location TEXT,
            score_team_a INT,
            score_team_b INT,
            fair_play_rating_team_a INT,
            fair_play_rating_team_b INT,
            notes TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK (team_a_id <> team_b_id),
            CHECK (status IN ('pending_invitee_acceptance', 'pending_initiator_confirmation',
                'confirmed', 'completed', 'cancelled', 'expired'))
        );`,
	`CREATE INDEX IF NOT EXISTS idx_matches_pending ON matches (status, created_at);`,
	`CREATE TABLE IF NOT EXISTS chat_rooms (
            id SERIAL PRIMARY KEY,
            match_id INT NOT NULL UNIQUE REFERENCES matches(id) ON DELETE CASCADE,
            status TEXT NOT NULL DEFAULT 'active',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
            id SERIAL PRIMARY KEY,
            room_id INT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
            sender_id INT REFERENCES users(id),
            message_type TEXT NOT NULL DEFAULT 'user',
            content TEXT NOT NULL,
            timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_room_ts ON chat_messages (room_id, timestamp);`,
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
