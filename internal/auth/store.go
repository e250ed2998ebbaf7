package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"dinlipi/internal/errs"
	"dinlipi/internal/models"
)

const userColumns = `id, email, password_hash, full_name, provider, created_at`

type querier interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

func insertUser(ctx context.Context, q querier, email string, passwordHash, fullName *string, provider string) (*models.User, error) {
	var u models.User
	err := q.GetContext(ctx, &u, `
		INSERT INTO users (email, password_hash, full_name, provider)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns, email, passwordHash, fullName, provider)
	if err != nil {
		if errs.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, errs.Remote("users.create", err)
	}
	return &u, nil
}

func userByEmail(ctx context.Context, q querier, email string) (*models.User, error) {
	var u models.User
	if err := q.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = $1`, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.Remote("users.get", err)
	}
	return &u, nil
}

func userByID(ctx context.Context, q querier, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := q.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.Remote("users.get", err)
	}
	return &u, nil
}

func setPassword(ctx context.Context, q querier, userID uuid.UUID, hash string) error {
	_, err := q.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, userID)
	return errs.Remote("users.set_password", err)
}

func insertSession(ctx context.Context, q querier, userID uuid.UUID, refreshHash string, expiresAt time.Time) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.GetContext(ctx, &id, `
		INSERT INTO auth_sessions (user_id, refresh_token_hash, expires_at)
		VALUES ($1, $2, $3) RETURNING id`, userID, refreshHash, expiresAt)
	return id, errs.Remote("sessions.create", err)
}

// rotateSession swaps the refresh token of a live session and returns the
// session id and owner. A token that is unknown, revoked or expired yields
// ErrInvalidToken.
func rotateSession(ctx context.Context, q querier, oldHash, newHash string, expiresAt time.Time) (uuid.UUID, uuid.UUID, error) {
	var row struct {
		ID     uuid.UUID `db:"id"`
		UserID uuid.UUID `db:"user_id"`
	}
	err := q.GetContext(ctx, &row, `
		UPDATE auth_sessions SET refresh_token_hash = $2, expires_at = $3
		WHERE refresh_token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()
		RETURNING id, user_id`, oldHash, newHash, expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, uuid.Nil, ErrInvalidToken
		}
		return uuid.Nil, uuid.Nil, errs.Remote("sessions.rotate", err)
	}
	return row.ID, row.UserID, nil
}

func sessionActive(ctx context.Context, q querier, id, userID uuid.UUID) (bool, error) {
	var ok bool
	err := q.GetContext(ctx, &ok, `
		SELECT EXISTS (SELECT 1 FROM auth_sessions
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL AND expires_at > NOW())`, id, userID)
	return ok, errs.Remote("sessions.check", err)
}

// revokeSessions revokes the user's live sessions selected by scope relative
// to current.
func revokeSessions(ctx context.Context, q querier, userID, current uuid.UUID, scope Scope) (int64, error) {
	query := `UPDATE auth_sessions SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`
	args := []any{userID}
	switch scope {
	case ScopeLocal:
		query += ` AND id = $2`
		args = append(args, current)
	case ScopeOthers:
		query += ` AND id <> $2`
		args = append(args, current)
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errs.Remote("sessions.revoke", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func insertReset(ctx context.Context, q querier, tokenHash string, userID uuid.UUID, expiresAt time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO password_resets (token_hash, user_id, expires_at) VALUES ($1, $2, $3)`,
		tokenHash, userID, expiresAt)
	return errs.Remote("password_resets.create", err)
}

// consumeReset marks a reset token used and returns its owner.
func consumeReset(ctx context.Context, q querier, tokenHash string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := q.GetContext(ctx, &userID, `
		UPDATE password_resets SET used_at = NOW()
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > NOW()
		RETURNING user_id`, tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, ErrInvalidToken
		}
		return uuid.Nil, errs.Remote("password_resets.consume", err)
	}
	return userID, nil
}
