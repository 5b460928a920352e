package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults and applies the schema.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(context.Background()); err != nil {
		return &DB{Client: db}, err
	}
	if err := migrate(db); err != nil {
		return &DB{Client: db}, fmt.Errorf("migrate: %w", err)
	}
	return &DB{Client: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS classes (
		id           UUID PRIMARY KEY,
		code         TEXT UNIQUE NOT NULL,
		name         TEXT NOT NULL DEFAULT '',
		professor_id TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS class_students (
		id          UUID PRIMARY KEY,
		class_id    UUID NOT NULL REFERENCES classes(id),
		student_id  TEXT NOT NULL,
		roll_number TEXT NOT NULL,
		full_name   TEXT NOT NULL DEFAULT '',
		joined_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (class_id, student_id),
		UNIQUE (class_id, roll_number)
	);

	CREATE TABLE IF NOT EXISTS attendance_sessions (
		id                UUID PRIMARY KEY,
		class_id          UUID NOT NULL REFERENCES classes(id),
		professor_id      TEXT NOT NULL,
		attendance_code   TEXT NOT NULL,
		status            TEXT NOT NULL DEFAULT 'created',
		is_active         BOOLEAN NOT NULL DEFAULT FALSE,
		code_activated_at TIMESTAMPTZ,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_class  ON attendance_sessions(class_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_active ON attendance_sessions(class_id) WHERE is_active;

	CREATE TABLE IF NOT EXISTS attendance_records (
		id                  UUID PRIMARY KEY,
		session_id          UUID NOT NULL REFERENCES attendance_sessions(id),
		class_id            UUID NOT NULL REFERENCES classes(id),
		student_id          TEXT,
		roll_number         TEXT NOT NULL,
		status              TEXT NOT NULL DEFAULT 'present',
		verification_status TEXT NOT NULL DEFAULT 'pending',
		marked_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_records_once_per_student
		ON attendance_records(session_id, student_id) WHERE student_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_records_class ON attendance_records(class_id, marked_at);

	CREATE TABLE IF NOT EXISTS refresh_tokens (
		token      TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		revoked    BOOLEAN NOT NULL DEFAULT FALSE,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
