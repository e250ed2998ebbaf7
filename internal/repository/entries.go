package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"dinlipi/internal/errs"
	"dinlipi/internal/models"
)

const entrySelect = `
SELECT e.id, e.user_id, e.title, e.content, e.date, e.mood_id, e.photo_url, e.created_at, e.updated_at,
       COALESCE(ARRAY_AGG(t.name ORDER BY t.name) FILTER (WHERE t.name IS NOT NULL), '{}') AS tags,
       m.id AS mood_ref_id, m.name AS mood_name, m.emoji AS mood_emoji, m.color AS mood_color
FROM diary_entries e
LEFT JOIN diary_entry_tags et ON et.entry_id = e.id
LEFT JOIN tags t ON t.id = et.tag_id
LEFT JOIN moods m ON m.id = e.mood_id
`

const entryGroupOrder = `
GROUP BY e.id, m.id
ORDER BY e.date DESC, e.created_at DESC`

// upsertTag returns the id of the user's tag with this name, creating it when
// missing. The no-op update makes RETURNING yield the existing row.
const upsertTag = `
INSERT INTO tags (user_id, name) VALUES ($1, $2)
ON CONFLICT (user_id, name) DO UPDATE SET name = EXCLUDED.name
RETURNING id`

// entryRow is one row of entrySelect: the entry columns plus the tag aggregate
// and the nullable mood join.
type entryRow struct {
	models.DiaryEntry
	Tags      pq.StringArray `db:"tags"`
	MoodRefID *uuid.UUID     `db:"mood_ref_id"`
	MoodName  *string        `db:"mood_name"`
	MoodEmoji *string        `db:"mood_emoji"`
	MoodColor *string        `db:"mood_color"`
}

// view shapes a joined row into the fixed EntryView form: tags never nil and
// mood nil unless the join matched.
func (r entryRow) view() models.EntryView {
	v := models.EntryView{DiaryEntry: r.DiaryEntry, Tags: []string{}}
	if len(r.Tags) > 0 {
		v.Tags = append(v.Tags, r.Tags...)
	}
	if r.MoodRefID != nil {
		v.Mood = &models.Mood{ID: *r.MoodRefID}
		if r.MoodName != nil {
			v.Mood.Name = *r.MoodName
		}
		if r.MoodEmoji != nil {
			v.Mood.Emoji = *r.MoodEmoji
		}
		if r.MoodColor != nil {
			v.Mood.Color = *r.MoodColor
		}
	}
	return v
}

type EntryRepository struct {
	db  *sqlx.DB
	enc Sealer
}

func NewEntryRepository(db *sqlx.DB, enc Sealer) *EntryRepository {
	return &EntryRepository{db: db, enc: enc}
}

// Create inserts an entry, resolves its tags and returns the stored view.
// Tag names are resolved concurrently before the entry transaction starts.
func (r *EntryRepository) Create(ctx context.Context, userID uuid.UUID, in models.NewEntry, tags []string) (*models.EntryView, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	content, err := r.enc.SealContent(in.Content)
	if err != nil {
		return nil, fmt.Errorf("seal content: %w", err)
	}
	tagIDs, err := r.resolveTags(ctx, userID, tags)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errs.Remote("entries.create", err)
	}
	defer tx.Rollback()

	var id uuid.UUID
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO diary_entries (user_id, title, content, date, mood_id, photo_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		userID, strings.TrimSpace(in.Title), content, in.Date, in.MoodID, nullIfEmpty(in.PhotoURL)).Scan(&id)
	if err != nil {
		return nil, errs.Remote("entries.create", err)
	}
	if err := linkTags(ctx, tx, id, tagIDs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errs.Remote("entries.create", err)
	}
	return r.mustGet(ctx, userID, id)
}

// List returns the user's entries, newest date first.
func (r *EntryRepository) List(ctx context.Context, userID uuid.UUID, f models.ListFilter) ([]models.EntryView, error) {
	where := []string{"e.user_id = $1"}
	args := []any{userID}

	if f.Year > 0 && f.Month >= time.January && f.Month <= time.December {
		first, last := models.MonthRange(f.Year, f.Month)
		args = append(args, first, last)
		where = append(where, fmt.Sprintf("e.date >= $%d AND e.date <= $%d", len(args)-1, len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(`(e.title ILIKE $%d OR EXISTS (
			SELECT 1 FROM diary_entry_tags et2 JOIN tags t2 ON t2.id = et2.tag_id
			WHERE et2.entry_id = e.id AND t2.name ILIKE $%d))`, n, n))
	}

	query := entrySelect + "WHERE " + strings.Join(where, " AND ") + entryGroupOrder
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if f.Offset > 0 {
			args = append(args, f.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	var rows []entryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errs.Remote("entries.list", err)
	}
	out := make([]models.EntryView, 0, len(rows))
	for _, row := range rows {
		v := row.view()
		if err := r.enc.DecryptEntry(&v.DiaryEntry); err != nil {
			return nil, fmt.Errorf("decrypt entry %s: %w", v.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// GetByDate returns the most recent entry written for date, or nil.
func (r *EntryRepository) GetByDate(ctx context.Context, userID uuid.UUID, date models.Date) (*models.EntryView, error) {
	return r.getOne(ctx, "entries.get_by_date",
		entrySelect+"WHERE e.user_id = $1 AND e.date = $2"+entryGroupOrder+" LIMIT 1", userID, date)
}

// GetByID returns the entry or nil when the user has no entry with that id.
func (r *EntryRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.EntryView, error) {
	return r.getOne(ctx, "entries.get",
		entrySelect+"WHERE e.user_id = $1 AND e.id = $2"+entryGroupOrder, userID, id)
}

func (r *EntryRepository) getOne(ctx context.Context, op, query string, args ...any) (*models.EntryView, error) {
	var row entryRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.Remote(op, err)
	}
	v := row.view()
	if err := r.enc.DecryptEntry(&v.DiaryEntry); err != nil {
		return nil, fmt.Errorf("decrypt entry %s: %w", v.ID, err)
	}
	return &v, nil
}

func (r *EntryRepository) mustGet(ctx context.Context, userID, id uuid.UUID) (*models.EntryView, error) {
	v, err := r.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, errs.ErrNotFound
	}
	return v, nil
}

// Update applies the non-nil fields of upd. When tags is non-nil, including an
// empty slice, the entry's tag links are replaced wholesale.
func (r *EntryRepository) Update(ctx context.Context, userID, id uuid.UUID, upd models.EntryUpdate, tags *[]string) (*models.EntryView, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	var set setBuilder
	if upd.Title != nil {
		set.add("title", strings.TrimSpace(*upd.Title))
	}
	if upd.Content != nil {
		content, err := r.enc.SealContent(*upd.Content)
		if err != nil {
			return nil, fmt.Errorf("seal content: %w", err)
		}
		set.add("content", content)
	}
	if upd.Date != nil {
		set.add("date", *upd.Date)
	}
	if upd.MoodID != nil {
		if *upd.MoodID == uuid.Nil {
			set.raw("mood_id=NULL")
		} else {
			set.add("mood_id", *upd.MoodID)
		}
	}
	if upd.PhotoURL != nil {
		set.add("photo_url", nullIfEmpty(upd.PhotoURL))
	}
	set.raw("updated_at=NOW()")

	var tagIDs []uuid.UUID
	if tags != nil {
		var err error
		if tagIDs, err = r.resolveTags(ctx, userID, *tags); err != nil {
			return nil, err
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errs.Remote("entries.update", err)
	}
	defer tx.Rollback()

	query := "UPDATE diary_entries SET " + set.String() +
		" WHERE id=" + set.arg(id) + " AND user_id=" + set.arg(userID)
	res, err := tx.ExecContext(ctx, query, set.args...)
	if err != nil {
		return nil, errs.Remote("entries.update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, errs.ErrNotFound
	}
	if tags != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM diary_entry_tags WHERE entry_id = $1`, id); err != nil {
			return nil, errs.Remote("entries.update", err)
		}
		if err := linkTags(ctx, tx, id, tagIDs); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, errs.Remote("entries.update", err)
	}
	return r.mustGet(ctx, userID, id)
}

// Delete removes the entry. Link rows go with it through the foreign key
// cascade. Deleting a missing entry is not an error.
func (r *EntryRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM diary_entries WHERE id = $1 AND user_id = $2`, id, userID)
	return errs.Remote("entries.delete", err)
}

// ListTags returns every tag the user has created.
func (r *EntryRepository) ListTags(ctx context.Context, userID uuid.UUID) ([]models.Tag, error) {
	tags := []models.Tag{}
	err := r.db.SelectContext(ctx, &tags,
		`SELECT id, user_id, name, created_at FROM tags WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, errs.Remote("tags.list", err)
	}
	return tags, nil
}

// EntryDates returns the distinct days of the month that have at least one entry.
func (r *EntryRepository) EntryDates(ctx context.Context, userID uuid.UUID, year int, month time.Month) ([]models.Date, error) {
	first, last := models.MonthRange(year, month)
	dates := []models.Date{}
	err := r.db.SelectContext(ctx, &dates, `
		SELECT DISTINCT date FROM diary_entries
		WHERE user_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date`, userID, first, last)
	if err != nil {
		return nil, errs.Remote("entries.dates", err)
	}
	return dates, nil
}

// resolveTags finds or creates one tag per distinct name, one round trip each,
// all in flight at once.
func (r *EntryRepository) resolveTags(ctx context.Context, userID uuid.UUID, names []string) ([]uuid.UUID, error) {
	names = normalizeTags(names)
	if len(names) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			return r.db.QueryRowxContext(gctx, upsertTag, userID, name).Scan(&ids[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errs.Remote("tags.resolve", err)
	}
	return ids, nil
}

func linkTags(ctx context.Context, tx *sqlx.Tx, entryID uuid.UUID, tagIDs []uuid.UUID) error {
	if len(tagIDs) == 0 {
		return nil
	}
	values := make([]string, 0, len(tagIDs))
	args := []any{entryID}
	for _, id := range tagIDs {
		args = append(args, id)
		values = append(values, fmt.Sprintf("($1, $%d)", len(args)))
	}
	query := "INSERT INTO diary_entry_tags (entry_id, tag_id) VALUES " + strings.Join(values, ", ") + " ON CONFLICT DO NOTHING"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return errs.Remote("entries.link_tags", err)
	}
	return nil
}

// normalizeTags trims names, drops blanks and duplicates, and sorts the result.
func normalizeTags(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
