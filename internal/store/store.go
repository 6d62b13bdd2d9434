package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

type Store struct{ DB *sqlx.DB }

func New(db *sqlx.DB) *Store { return &Store{DB: db} }

// Tx runs fn in a transaction, committing on nil and rolling back otherwise.
func (s *Store) Tx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// IsUniqueViolation reports whether err is a Postgres unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23505"
}

// Migrate creates the schema and seeds topics. Safe to run on every boot.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schema = `
CREATE EXTENSION IF NOT EXISTS "pgcrypto";

CREATE TABLE IF NOT EXISTS users (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    email text NOT NULL,
    password_hash text NOT NULL,
    created_at timestamptz NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_unique ON users (LOWER(email));

CREATE TABLE IF NOT EXISTS profiles (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id uuid NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
    nickname text NOT NULL,
    bio text,
    role text NOT NULL DEFAULT 'seeker',
    listener_status text NOT NULL DEFAULT 'unverified',
    is_available boolean NOT NULL DEFAULT false,
    rating_average double precision NOT NULL DEFAULT 0,
    rating_count integer NOT NULL DEFAULT 0,
    total_sessions integer NOT NULL DEFAULT 0,
    created_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS topics (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    name text NOT NULL UNIQUE,
    description text NOT NULL DEFAULT '',
    color text NOT NULL DEFAULT '#888888',
    is_active boolean NOT NULL DEFAULT true
);

INSERT INTO topics (name, description, color) VALUES
    ('Anxiety', 'Worry, stress and racing thoughts', '#6C8EBF'),
    ('Relationships', 'Family, friends and partners', '#D79B00'),
    ('Loneliness', 'Feeling isolated or unheard', '#82B366'),
    ('Work & Study', 'Pressure at work, school or university', '#9673A6'),
    ('Grief', 'Loss and bereavement', '#B85450')
ON CONFLICT (name) DO NOTHING;

CREATE TABLE IF NOT EXISTS chat_sessions (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    seeker_id uuid NOT NULL REFERENCES profiles(id),
    listener_id uuid REFERENCES profiles(id),
    topic_id uuid REFERENCES topics(id),
    description text NOT NULL DEFAULT '',
    status text NOT NULL DEFAULT 'waiting' CHECK (status IN ('waiting','active','completed')),
    duration_minutes integer NOT NULL DEFAULT 30,
    extended_duration_minutes integer NOT NULL DEFAULT 0,
    created_at timestamptz NOT NULL DEFAULT now(),
    ended_at timestamptz
);
CREATE INDEX IF NOT EXISTS chat_sessions_waiting_idx ON chat_sessions (created_at) WHERE status = 'waiting';

CREATE TABLE IF NOT EXISTS messages (
    id bigserial PRIMARY KEY,
    session_id uuid NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
    profile_id uuid NOT NULL REFERENCES profiles(id),
    content text NOT NULL,
    created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS messages_session_created_idx ON messages (session_id, created_at);

CREATE TABLE IF NOT EXISTS transactions (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    session_id uuid NOT NULL REFERENCES chat_sessions(id),
    profile_id uuid NOT NULL REFERENCES profiles(id),
    minutes integer NOT NULL,
    amount_cents integer NOT NULL,
    kind text NOT NULL,
    reference text NOT NULL DEFAULT '',
    created_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ratings (
    session_id uuid PRIMARY KEY REFERENCES chat_sessions(id),
    rater_id uuid NOT NULL REFERENCES profiles(id),
    listener_id uuid NOT NULL REFERENCES profiles(id),
    score integer NOT NULL CHECK (score BETWEEN 1 AND 5),
    comment text NOT NULL DEFAULT '',
    created_at timestamptz NOT NULL DEFAULT now()
);
`
