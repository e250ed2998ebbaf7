package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"dinlipi/internal/errs"
	"dinlipi/internal/models"
)

const profileColumns = `id, user_id, full_name, preferred_language, theme, font_size, created_at, updated_at`

type ProfileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get returns nil when the user has no profile yet.
func (r *ProfileRepository) Get(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	var p models.UserProfile
	err := r.db.GetContext(ctx, &p, `SELECT `+profileColumns+` FROM user_profiles WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.Remote("profiles.get", err)
	}
	return &p, nil
}

func (r *ProfileRepository) Create(ctx context.Context, in models.NewProfile) (*models.UserProfile, error) {
	if in.UserID == uuid.Nil {
		return nil, errs.Invalid("user_id", "required")
	}
	if in.PreferredLanguage == "" {
		in.PreferredLanguage = models.DefaultLanguage
	}
	if in.Theme == "" {
		in.Theme = models.DefaultTheme
	}
	if in.FontSize == "" {
		in.FontSize = models.DefaultFontSize
	}
	if !models.ValidTheme(in.Theme) {
		return nil, errs.Invalid("theme", "must be light or dark")
	}
	if !models.ValidFontSize(in.FontSize) {
		return nil, errs.Invalid("font_size", "must be small, medium or large")
	}

	var p models.UserProfile
	err := r.db.GetContext(ctx, &p, `
		INSERT INTO user_profiles (user_id, full_name, preferred_language, theme, font_size)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+profileColumns,
		in.UserID, nullIfEmpty(in.FullName), in.PreferredLanguage, in.Theme, in.FontSize)
	if err != nil {
		return nil, errs.Remote("profiles.create", err)
	}
	return &p, nil
}

func (r *ProfileRepository) Update(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (*models.UserProfile, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	var set setBuilder
	if upd.FullName != nil {
		set.add("full_name", nullIfEmpty(upd.FullName))
	}
	if upd.PreferredLanguage != nil {
		set.add("preferred_language", strings.TrimSpace(*upd.PreferredLanguage))
	}
	if upd.Theme != nil {
		set.add("theme", *upd.Theme)
	}
	if upd.FontSize != nil {
		set.add("font_size", *upd.FontSize)
	}
	set.raw("updated_at=NOW()")

	var p models.UserProfile
	query := "UPDATE user_profiles SET " + set.String() +
		" WHERE user_id=" + set.arg(userID) + " RETURNING " + profileColumns
	if err := r.db.GetContext(ctx, &p, query, set.args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, errs.Remote("profiles.update", err)
	}
	return &p, nil
}
