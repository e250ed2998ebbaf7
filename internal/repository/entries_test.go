package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dinlipi/internal/errs"
	"dinlipi/internal/models"
)

var entryColumns = []string{
	"id", "user_id", "title", "content", "date", "mood_id", "photo_url", "created_at", "updated_at",
	"tags", "mood_ref_id", "mood_name", "mood_emoji", "mood_color",
}

func entryValues(id, userID uuid.UUID, title, content string, date models.Date, tags string) []driver.Value {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return []driver.Value{
		id.String(), userID.String(), title, content, date.Time(), nil, nil, now, now,
		tags, nil, nil, nil, nil,
	}
}

func TestCreateEntryWithoutTags(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEntryRepository(db, prefixSealer{})
	userID, entryID := uuid.New(), uuid.New()
	date := models.NewDate(2024, 3, 1)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO diary_entries").
		WithArgs(userID, "First day", "sealed:hello", date, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(entryID.String()))
	mock.ExpectCommit()
	mock.ExpectQuery("FROM diary_entries e").
		WithArgs(userID, entryID).
		WillReturnRows(sqlmock.NewRows(entryColumns).
			AddRow(entryValues(entryID, userID, "First day", "sealed:hello", date, "{}")...))

	got, err := repo.Create(context.Background(), userID, models.NewEntry{
		Title: "First day", Content: "hello", Date: date,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, entryID, got.ID)
	assert.Equal(t, "First day", got.Title)
	assert.Equal(t, "hello", got.Content)
	assert.True(t, got.Date.Equal(date))
	assert.NotNil(t, got.Tags)
	assert.Empty(t, got.Tags)
	assert.Nil(t, got.Mood)
}

func TestCreateEntryResolvesEachTagOnce(t *testing.T) {
	db, mock := newMock(t)
	mock.MatchExpectationsInOrder(false)
	repo := NewEntryRepository(db, prefixSealer{})
	userID, entryID := uuid.New(), uuid.New()
	tagA, tagB := uuid.New(), uuid.New()
	date := models.NewDate(2024, 3, 2)

	mock.ExpectQuery("INSERT INTO tags").WithArgs(userID, "a").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(tagA.String()))
	mock.ExpectQuery("INSERT INTO tags").WithArgs(userID, "b").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(tagB.String()))
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO diary_entries").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(entryID.String()))
	mock.ExpectExec("INSERT INTO diary_entry_tags").
		WithArgs(entryID, tagA, tagB).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()
	mock.ExpectQuery("FROM diary_entries e").
		WithArgs(userID, entryID).
		WillReturnRows(sqlmock.NewRows(entryColumns).
			AddRow(entryValues(entryID, userID, "t", "sealed:c", date, "{a,b}")...))

	got, err := repo.Create(context.Background(), userID, models.NewEntry{
		Title: "t", Content: "c", Date: date,
	}, []string{" b", "a", "a", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Tags)
}

func TestCreateEntryValidatesBeforeStore(t *testing.T) {
	db, _ := newMock(t)
	repo := NewEntryRepository(db, prefixSealer{})

	_, err := repo.Create(context.Background(), uuid.New(), models.NewEntry{
		Title: " ", Content: "c", Date: models.NewDate(2024, 1, 1),
	}, []string{"a"})

	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "title", ve.Field)
}

func TestCreateEntryRollsBackWhenLinkFails(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEntryRepository(db, prefixSealer{})
	userID, entryID, tagID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery("INSERT INTO tags").WithArgs(userID, "x").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(tagID.String()))
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO diary_entries").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(entryID.String()))
	mock.ExpectExec("INSERT INTO diary_entry_tags").
		WillReturnError(errors.New("link failed"))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), userID, models.NewEntry{
		Title: "t", Content: "c", Date: models.NewDate(2024, 1, 1),
	}, []string{"x"})

	var re *errs.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "link failed", err.Error())
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEntryRepository(db, prefixSealer{})

	mock.ExpectQuery("FROM diary_entries e").WillReturnRows(sqlmock.NewRows(entryColumns))

	got, err := repo.GetByID(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetByDateMissingReturnsNil(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEntryRepository(db, prefixSealer{})
	date := models.NewDate(2024, 2, 29)

	mock.ExpectQuery(regexp.QuoteMeta("e.date = $2")).
		WithArgs(sqlmock.AnyArg(), date).
		WillReturnRows(sqlmock.NewRows(entryColumns))

	got, err := repo.GetByDate(context.Background(), uuid.New(), date)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetByDateJoinsMood(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEntryRepository(db, prefixSealer{})
	userID, entryID, moodID := uuid.New(), uuid.New(), uuid.New()
	date := models.NewDate(2024, 2, 29)

	row := entryValues(entryID, userID, "leap", "sealed:day", date, "{work}")
	row[5] = moodID.String()
	row[10], row[11], row[12], row[13] = moodID.String(), "happy", "😊", "#22c55e"
	mock.ExpectQuery("FROM diary_entries e").
		WillReturnRows(sqlmock.NewRows(entryColumns).AddRow(row...))

	got, err := repo.GetByDate(context.Background(), userID, date)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Mood)
	assert.Equal(t, models.Mood{ID: moodID, Name: "happy", Emoji: "😊", Color: "#22c55e"}, *got.Mood)
	assert.Equal(t, []string{"work"}, got.Tags)
	assert.Equal(t, "day", got.Content)
}

func TestListMonthRangeWithPaging(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEntryRepository(db, prefixSealer{})
	userID := uuid.New()
	older, newer := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("e.date >= $2 AND e.date <= $3") + ".*" +
		regexp.QuoteMeta("ORDER BY e.date DESC, e.created_at DESC LIMIT $4 OFFSET $5")).
		WithArgs(userID, models.NewDate(2024, 2, 1), models.NewDate(2024, 2, 29), 10, 10).
		WillReturnRows(sqlmock.NewRows(entryColumns).
			AddRow(entryValues(newer, userID, "b", "sealed:2", models.NewDate(2024, 2, 20), "{}")...).
			AddRow(entryValues(older, userID, "a", "sealed:1", models.NewDate(2024, 2, 3), "{}")...))

	got, err := repo.List(context.Background(), userID, models.ListFilter{
		Year: 2024, Month: time.February, Limit: 10, Offset: 10,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer, got[0].ID)
	assert.Equal(t, "1", got[1].Content)
}

func TestListLimitWithoutOffset(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEntryRepository(db, prefixSealer{})
	userID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $2")).
		WithArgs(userID, 5).
		WillReturnRows(sqlmock.NewRows(entryColumns))

	got, err := repo.List(context.Background(), userID, models.ListFilter{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListSearchEscapesWildcards(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEntryRepository(db, prefixSealer{})
	userID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("e.title ILIKE $2")).
		WithArgs(userID, `%50\%%`).
		WillReturnRows(sqlmock.NewRows(entryColumns))

	_, err := repo.List(context.Background(), userID, models.ListFilter{Query: " 50% "})
	require.NoError(t, err)
}

func TestListPassesStoreMessageThrough(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEntryRepository(db, prefixSealer{})

	mock.ExpectQuery("FROM diary_entries e").WillReturnError(errors.New("relation \"diary_entries\" does not exist"))

	_, err := repo.List(context.Background(), uuid.New(), models.ListFilter{})
	var re *errs.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "entries.list", re.Op)
	assert.Equal(t, `relation "diary_entries" does not exist`, err.Error())
}

func TestUpdateReplacesTagLinks(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEntryRepository(db, prefixSealer{})
	userID, entryID, tagC := uuid.New(), uuid.New(), uuid.New()
	title := "renamed"

	mock.ExpectQuery("INSERT INTO tags").WithArgs(userID, "c").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(tagC.String()))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE diary_entries SET title=$1, updated_at=NOW() WHERE id=$2 AND user_id=$3")).
		WithArgs(title, entryID, userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM diary_entry_tags").WithArgs(entryID).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO diary_entry_tags").WithArgs(entryID, tagC).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("FROM diary_entries e").
		WillReturnRows(sqlmock.NewRows(entryColumns).
			AddRow(entryValues(entryID, userID, title, "sealed:x", models.NewDate(2024, 1, 1), "{c}")...))

	tags := []string{"c"}
	got, err := repo.Update(context.Background(), userID, entryID, models.EntryUpdate{Title: &title}, &tags)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got.Tags)
}

func TestUpdateEmptyTagsClearsLinks(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEntryRepository(db, prefixSealer{})
	userID, entryID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE diary_entries").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM diary_entry_tags").WithArgs(entryID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("FROM diary_entries e").
		WillReturnRows(sqlmock.NewRows(entryColumns).
			AddRow(entryValues(entryID, userID, "t", "sealed:x", models.NewDate(2024, 1, 1), "{}")...))

	got, err := repo.Update(context.Background(), userID, entryID, models.EntryUpdate{}, &[]string{})
	require.NoError(t, err)
	assert.Empty(t, got.Tags)
}

func TestUpdateClearsMood(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEntryRepository(db, prefixSealer{})
	userID, entryID := uuid.New(), uuid.New()
	none := uuid.Nil

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET mood_id=NULL, updated_at=NOW() WHERE id=$1 AND user_id=$2")).
		WithArgs(entryID, userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("FROM diary_entries e").
		WillReturnRows(sqlmock.NewRows(entryColumns).
			AddRow(entryValues(entryID, userID, "t", "sealed:x", models.NewDate(2024, 1, 1), "{}")...))

	got, err := repo.Update(context.Background(), userID, entryID, models.EntryUpdate{MoodID: &none}, nil)
	require.NoError(t, err)
	assert.Nil(t, got.Mood)
}

func TestUpdateMissingEntry(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEntryRepository(db, prefixSealer{})

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE diary_entries").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	content := "new body"
	_, err := repo.Update(context.Background(), uuid.New(), uuid.New(), models.EntryUpdate{Content: &content}, nil)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpdateRejectsBlankTitle(t *testing.T) {
	db, _ := newMock(t)
	repo := NewEntryRepository(db, prefixSealer{})
	blank := ""

	_, err := repo.Update(context.Background(), uuid.New(), uuid.New(), models.EntryUpdate{Title: &blank}, nil)
	var ve *errs.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestDeleteMissingIsNotAnError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEntryRepository(db, prefixSealer{})
	userID, id := uuid.New(), uuid.New()

	mock.ExpectExec("DELETE FROM diary_entries").WithArgs(id, userID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Delete(context.Background(), userID, id))
}

func TestEntryDates(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEntryRepository(db, prefixSealer{})
	userID := uuid.New()

	mock.ExpectQuery("SELECT DISTINCT date FROM diary_entries").
		WithArgs(userID, models.NewDate(2024, 4, 1), models.NewDate(2024, 4, 30)).
		WillReturnRows(sqlmock.NewRows([]string{"date"}).
			AddRow(time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)).
			AddRow(time.Date(2024, 4, 9, 0, 0, 0, 0, time.UTC)))

	got, err := repo.EntryDates(context.Background(), userID, 2024, time.April)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-04-09", got[1].String())
}

func TestListTags(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEntryRepository(db, prefixSealer{})
	userID := uuid.New()

	mock.ExpectQuery("FROM tags WHERE user_id").WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "created_at"}).
			AddRow(uuid.NewString(), userID.String(), "travel", time.Now()))

	got, err := repo.ListTags(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "travel", got[0].Name)
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, normalizeTags([]string{"b ", "", "a", " a"}))
	assert.Empty(t, normalizeTags(nil))
}
