// Package localstate is the CLI's on-disk key/value store. It holds display
// settings and the persisted auth session.
package localstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"dinlipi/internal/errs"
	"dinlipi/internal/models"
)

const (
	KeyTheme    = "app-theme"
	KeyFontSize = "app-font-size"
	// AuthPrefix namespaces every key written by the session layer.
	AuthPrefix = "dinlipi.auth."
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
)`

type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the state database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Get returns the stored value and whether the key exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.GetContext(ctx, &v, `SELECT value FROM kv WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value,
		    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`, key, value)
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

// Keys lists every key starting with prefix, sorted.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	err := s.db.SelectContext(ctx, &keys,
		`SELECT key FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key`, len(prefix), prefix)
	return keys, err
}

// DeletePrefix removes every key starting with prefix and reports how many
// were removed.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE substr(key, 1, ?) = ?`, len(prefix), prefix)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Theme returns the stored theme, falling back to dark when unset or unknown.
func (s *Store) Theme(ctx context.Context) (string, error) {
	v, ok, err := s.Get(ctx, KeyTheme)
	if err != nil || !ok || !models.ValidTheme(v) {
		return models.DefaultTheme, err
	}
	return v, nil
}

func (s *Store) SetTheme(ctx context.Context, theme string) error {
	if !models.ValidTheme(theme) {
		return errs.Invalid("theme", "must be light or dark")
	}
	return s.Set(ctx, KeyTheme, theme)
}

// FontSize returns the stored font size, falling back to medium.
func (s *Store) FontSize(ctx context.Context) (string, error) {
	v, ok, err := s.Get(ctx, KeyFontSize)
	if err != nil || !ok || !models.ValidFontSize(v) {
		return models.DefaultFontSize, err
	}
	return v, nil
}

func (s *Store) SetFontSize(ctx context.Context, size string) error {
	if !models.ValidFontSize(size) {
		return errs.Invalid("font_size", "must be small, medium or large")
	}
	return s.Set(ctx, KeyFontSize, size)
}
