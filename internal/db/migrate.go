package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    email TEXT UNIQUE NOT NULL,
    password_hash TEXT,
    full_name TEXT,
    provider TEXT NOT NULL DEFAULT 'email',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS auth_sessions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    refresh_token_hash TEXT UNIQUE NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL,
    revoked_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS password_resets (
    token_hash TEXT PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    expires_at TIMESTAMPTZ NOT NULL,
    used_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS moods (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name TEXT UNIQUE NOT NULL,
    emoji TEXT NOT NULL,
    color TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS diary_entries (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    date DATE NOT NULL DEFAULT CURRENT_DATE,
    mood_id UUID REFERENCES moods(id) ON DELETE SET NULL,
    photo_url TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS tags (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE(user_id, name)
);

CREATE TABLE IF NOT EXISTS diary_entry_tags (
    entry_id UUID NOT NULL REFERENCES diary_entries(id) ON DELETE CASCADE,
    tag_id UUID NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    PRIMARY KEY (entry_id, tag_id)
);

CREATE TABLE IF NOT EXISTS practices (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    practice_type TEXT NOT NULL CHECK (practice_type IN ('photo', 'drawing', 'writing', 'music', 'daily_creation')),
    title TEXT NOT NULL,
    content TEXT,
    media_url TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- practice_id has no ON DELETE CASCADE; a practice with recorded days cannot
-- be deleted.
CREATE TABLE IF NOT EXISTS practice_entries (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    practice_id UUID NOT NULL REFERENCES practices(id),
    day_number INTEGER NOT NULL CHECK (day_number >= 1),
    content TEXT NOT NULL DEFAULT '',
    completed BOOLEAN NOT NULL DEFAULT false,
    completed_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS mood_entries (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    date DATE NOT NULL DEFAULT CURRENT_DATE,
    mood_rating INTEGER NOT NULL CHECK (mood_rating BETWEEN 1 AND 5),
    emotions TEXT[] NOT NULL DEFAULT '{}',
    notes TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS user_profiles (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID UNIQUE NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    full_name TEXT,
    preferred_language TEXT NOT NULL DEFAULT 'bn',
    theme TEXT NOT NULL DEFAULT 'dark' CHECK (theme IN ('light', 'dark')),
    font_size TEXT NOT NULL DEFAULT 'medium' CHECK (font_size IN ('small', 'medium', 'large')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const indexes = `
CREATE INDEX IF NOT EXISTS idx_diary_entries_user_date ON diary_entries (user_id, date DESC);
CREATE INDEX IF NOT EXISTS idx_practice_entries_practice_day ON practice_entries (practice_id, day_number);
CREATE INDEX IF NOT EXISTS idx_mood_entries_user_date ON mood_entries (user_id, date DESC);
CREATE INDEX IF NOT EXISTS idx_auth_sessions_user ON auth_sessions (user_id) WHERE revoked_at IS NULL;
`

// DefaultMoods seeds the read-only mood catalog.
var DefaultMoods = []struct{ Name, Emoji, Color string }{
	{"angry", "😠", "#ef4444"},
	{"anxious", "😰", "#f97316"},
	{"calm", "😌", "#06b6d4"},
	{"excited", "🤩", "#eab308"},
	{"grateful", "🙏", "#a855f7"},
	{"happy", "😊", "#22c55e"},
	{"loved", "🥰", "#ec4899"},
	{"neutral", "😐", "#9ca3af"},
	{"sad", "😢", "#3b82f6"},
	{"tired", "😴", "#64748b"},
}

// RunMigrations creates the schema and seeds the mood catalog. Every statement is
// idempotent so it runs on each start.
func RunMigrations(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, indexes); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	for _, m := range DefaultMoods {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO moods (name, emoji, color) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`,
			m.Name, m.Emoji, m.Color); err != nil {
			return fmt.Errorf("seed mood %s: %w", m.Name, err)
		}
	}
	return nil
}
