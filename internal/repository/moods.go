package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"dinlipi/internal/errs"
	"dinlipi/internal/models"
)

const moodEntryColumns = `id, user_id, date, mood_rating, emotions, notes, created_at`

type MoodRepository struct {
	db  *sqlx.DB
	enc Sealer
}

func NewMoodRepository(db *sqlx.DB, enc Sealer) *MoodRepository {
	return &MoodRepository{db: db, enc: enc}
}

// ListMoodCatalog returns the shared, read-only mood list.
func (r *MoodRepository) ListMoodCatalog(ctx context.Context) ([]models.Mood, error) {
	out := []models.Mood{}
	if err := r.db.SelectContext(ctx, &out, `SELECT id, name, emoji, color FROM moods ORDER BY name`); err != nil {
		return nil, errs.Remote("moods.list", err)
	}
	return out, nil
}

func (r *MoodRepository) CreateMoodEntry(ctx context.Context, userID uuid.UUID, in models.NewMoodEntry) (*models.MoodEntry, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	notes, err := r.enc.SealNotes(nullIfEmpty(in.Notes))
	if err != nil {
		return nil, fmt.Errorf("seal notes: %w", err)
	}
	emotions := pq.StringArray(in.Emotions)
	if emotions == nil {
		emotions = pq.StringArray{}
	}

	var m models.MoodEntry
	err = r.db.GetContext(ctx, &m, `
		INSERT INTO mood_entries (user_id, date, mood_rating, emotions, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+moodEntryColumns,
		userID, in.Date, in.MoodRating, emotions, notes)
	if err != nil {
		return nil, errs.Remote("mood_entries.create", err)
	}
	if err := r.enc.DecryptMoodEntry(&m); err != nil {
		return nil, fmt.Errorf("decrypt mood entry: %w", err)
	}
	return &m, nil
}

// GetMoodEntries lists entries newest first. Either bound may be nil; both are
// inclusive.
func (r *MoodRepository) GetMoodEntries(ctx context.Context, userID uuid.UUID, start, end *models.Date) ([]models.MoodEntry, error) {
	query := `SELECT ` + moodEntryColumns + ` FROM mood_entries WHERE user_id = $1`
	args := []any{userID}
	if start != nil && !start.IsZero() {
		args = append(args, *start)
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if end != nil && !end.IsZero() {
		args = append(args, *end)
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}
	query += ` ORDER BY date DESC, created_at DESC`

	out := []models.MoodEntry{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, errs.Remote("mood_entries.list", err)
	}
	for i := range out {
		if err := r.enc.DecryptMoodEntry(&out[i]); err != nil {
			return nil, fmt.Errorf("decrypt mood entry %s: %w", out[i].ID, err)
		}
	}
	return out, nil
}

// GetMoodEntryByDate returns the latest entry logged for date, or nil.
func (r *MoodRepository) GetMoodEntryByDate(ctx context.Context, userID uuid.UUID, date models.Date) (*models.MoodEntry, error) {
	var m models.MoodEntry
	err := r.db.GetContext(ctx, &m, `
		SELECT `+moodEntryColumns+` FROM mood_entries
		WHERE user_id = $1 AND date = $2
		ORDER BY created_at DESC LIMIT 1`, userID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.Remote("mood_entries.get_by_date", err)
	}
	if err := r.enc.DecryptMoodEntry(&m); err != nil {
		return nil, fmt.Errorf("decrypt mood entry: %w", err)
	}
	return &m, nil
}

const moodAggregateQuery = `
SELECT
	COALESCE(BOOL_OR(date = $2), false) AS has_today,
	COUNT(*) FILTER (WHERE date >= date_trunc('week', $2::timestamp)::date AND date <= $2) AS entries_this_week,
	COUNT(*) FILTER (WHERE date_trunc('month', date) = date_trunc('month', $2::date)) AS entries_this_month,
	COALESCE(AVG(mood_rating) FILTER (WHERE date_trunc('month', date) = date_trunc('month', $2::date)), 0) AS avg_month_rating
FROM mood_entries
WHERE user_id = $1`

const moodDistributionQuery = `
SELECT mood_rating, COUNT(*) AS n
FROM mood_entries
WHERE user_id = $1 AND date_trunc('month', date) = date_trunc('month', $2::date)
GROUP BY mood_rating`

// Consecutive days collapse to one group because date minus row number is
// constant across a run.
const moodStreakQuery = `
WITH d AS (
	SELECT DISTINCT date FROM mood_entries WHERE user_id = $1 AND date <= $2
), g AS (
	SELECT date, date - (ROW_NUMBER() OVER (ORDER BY date))::int AS grp FROM d
), c AS (
	SELECT COUNT(*) AS cnt, MAX(date) AS maxd FROM g GROUP BY grp
)
SELECT COALESCE((SELECT cnt FROM c WHERE maxd = $2), 0)`

const moodTrendQuery = `
SELECT d::date AS date, COALESCE(ROUND(AVG(e.mood_rating))::int, 0) AS rating
FROM generate_series($2::date - INTERVAL '6 days', $2::date, INTERVAL '1 day') AS d
LEFT JOIN mood_entries e ON e.user_id = $1 AND e.date = d::date
GROUP BY d
ORDER BY d`

// MoodSummary aggregates the user's mood log around ref, the user's "today".
// A zero ref uses the store's CURRENT_DATE. The four aggregates run concurrently.
func (r *MoodRepository) MoodSummary(ctx context.Context, userID uuid.UUID, ref models.Date) (*models.MoodSummary, error) {
	if ref.IsZero() {
		if err := r.db.QueryRowxContext(ctx, `SELECT CURRENT_DATE`).Scan(&ref); err != nil {
			return nil, errs.Remote("mood_entries.summary", err)
		}
	}
	sum := &models.MoodSummary{
		ReferenceDate: ref,
		Distribution:  make(map[int]int, models.MaxMoodRating),
	}
	for i := models.MinMoodRating; i <= models.MaxMoodRating; i++ {
		sum.Distribution[i] = 0
	}

	var dist []struct {
		Rating int `db:"mood_rating"`
		N      int `db:"n"`
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.db.QueryRowxContext(gctx, moodAggregateQuery, userID, ref).
			Scan(&sum.HasTodayEntry, &sum.EntriesThisWeek, &sum.EntriesThisMonth, &sum.AverageMonthRating)
	})
	g.Go(func() error {
		return r.db.SelectContext(gctx, &dist, moodDistributionQuery, userID, ref)
	})
	g.Go(func() error {
		return r.db.QueryRowxContext(gctx, moodStreakQuery, userID, ref).Scan(&sum.CurrentStreakDays)
	})
	g.Go(func() error {
		return r.db.SelectContext(gctx, &sum.Last7DaysTrend, moodTrendQuery, userID, ref)
	})
	if err := g.Wait(); err != nil {
		return nil, errs.Remote("mood_entries.summary", err)
	}
	for _, d := range dist {
		sum.Distribution[d.Rating] = d.N
	}
	return sum, nil
}
