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

const practiceColumns = `id, user_id, practice_type, title, content, media_url, created_at, updated_at`

const practiceEntryColumns = `id, user_id, practice_id, day_number, content, completed, completed_at, created_at`

type PracticeRepository struct {
	db *sqlx.DB
}

func NewPracticeRepository(db *sqlx.DB) *PracticeRepository {
	return &PracticeRepository{db: db}
}

func (r *PracticeRepository) CreatePractice(ctx context.Context, userID uuid.UUID, in models.NewPractice) (*models.Practice, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var p models.Practice
	err := r.db.GetContext(ctx, &p, `
		INSERT INTO practices (user_id, practice_type, title, content, media_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+practiceColumns,
		userID, in.Type, strings.TrimSpace(in.Title), nullIfEmpty(in.Content), nullIfEmpty(in.MediaURL))
	if err != nil {
		return nil, errs.Remote("practices.create", err)
	}
	return &p, nil
}

// GetPractice returns nil when the user owns no practice with that id.
func (r *PracticeRepository) GetPractice(ctx context.Context, userID, id uuid.UUID) (*models.Practice, error) {
	var p models.Practice
	err := r.db.GetContext(ctx, &p,
		`SELECT `+practiceColumns+` FROM practices WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.Remote("practices.get", err)
	}
	return &p, nil
}

// ListPractices returns the user's practices, newest first, optionally only of
// one type.
func (r *PracticeRepository) ListPractices(ctx context.Context, userID uuid.UUID, practiceType *models.PracticeType) ([]models.Practice, error) {
	query := `SELECT ` + practiceColumns + ` FROM practices WHERE user_id = $1`
	args := []any{userID}
	if practiceType != nil {
		if !practiceType.Valid() {
			return nil, errs.Invalid("practice_type", "unknown practice type")
		}
		query += ` AND practice_type = $2`
		args = append(args, *practiceType)
	}
	query += ` ORDER BY created_at DESC`

	out := []models.Practice{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, errs.Remote("practices.list", err)
	}
	return out, nil
}

// UpdatePractice changes only the fields that are set. An empty content or
// media_url clears the column.
func (r *PracticeRepository) UpdatePractice(ctx context.Context, userID, id uuid.UUID, upd models.PracticeUpdate) (*models.Practice, error) {
	var set setBuilder
	if upd.Title != nil {
		if strings.TrimSpace(*upd.Title) == "" {
			return nil, errs.Invalid("title", "must not be empty")
		}
		set.add("title", strings.TrimSpace(*upd.Title))
	}
	if upd.Content != nil {
		set.add("content", nullIfEmpty(upd.Content))
	}
	if upd.MediaURL != nil {
		set.add("media_url", nullIfEmpty(upd.MediaURL))
	}
	set.raw("updated_at=NOW()")

	var p models.Practice
	query := "UPDATE practices SET " + set.String() +
		" WHERE id=" + set.arg(id) + " AND user_id=" + set.arg(userID) +
		" RETURNING " + practiceColumns
	if err := r.db.GetContext(ctx, &p, query, set.args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, errs.Remote("practices.update", err)
	}
	return &p, nil
}

// DeletePractice removes only the practice row. Recorded days are left to the
// store's foreign key, which rejects the delete while any exist.
func (r *PracticeRepository) DeletePractice(ctx context.Context, userID, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM practices WHERE id = $1 AND user_id = $2`, id, userID)
	return errs.Remote("practices.delete", err)
}

func (r *PracticeRepository) CreatePracticeEntry(ctx context.Context, userID uuid.UUID, in models.NewPracticeEntry) (*models.PracticeEntry, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	// The INSERT ... SELECT yields no row unless the practice belongs to userID.
	var e models.PracticeEntry
	err := r.db.GetContext(ctx, &e, `
		INSERT INTO practice_entries (user_id, practice_id, day_number, content)
		SELECT $1, p.id, $3, $4 FROM practices p WHERE p.id = $2 AND p.user_id = $1
		RETURNING `+practiceEntryColumns,
		userID, in.PracticeID, in.DayNumber, in.Content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, errs.Remote("practice_entries.create", err)
	}
	return &e, nil
}

// CompletePracticeEntry marks a day done. Completing twice keeps the first
// completion time.
func (r *PracticeRepository) CompletePracticeEntry(ctx context.Context, userID, id uuid.UUID) (*models.PracticeEntry, error) {
	var e models.PracticeEntry
	err := r.db.GetContext(ctx, &e, `
		UPDATE practice_entries
		SET completed = true, completed_at = COALESCE(completed_at, NOW())
		WHERE id = $1 AND user_id = $2
		RETURNING `+practiceEntryColumns, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, errs.Remote("practice_entries.complete", err)
	}
	return &e, nil
}

func (r *PracticeRepository) ListPracticeEntries(ctx context.Context, userID, practiceID uuid.UUID) ([]models.PracticeEntry, error) {
	out := []models.PracticeEntry{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+practiceEntryColumns+` FROM practice_entries
		WHERE practice_id = $1 AND user_id = $2
		ORDER BY day_number ASC, created_at ASC`, practiceID, userID)
	if err != nil {
		return nil, errs.Remote("practice_entries.list", err)
	}
	return out, nil
}
