package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dinlipi/internal/auth"
	"dinlipi/internal/errs"
	"dinlipi/internal/models"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestGetEntryByDateNotFoundIsNil(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/entries/date/2024-03-01", r.URL.Path)
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found", "code": "not_found"})
	})

	e, err := c.GetEntryByDate(context.Background(), models.NewDate(2024, 3, 1))
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestAPIErrorCarriesServerMessage(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "connection refused", "code": "remote_error"})
	})

	_, err := c.ListEntries(context.Background(), models.ListFilter{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "remote_error", apiErr.Code)
	assert.Equal(t, "connection refused", err.Error())
	assert.False(t, errors.Is(err, errs.ErrNotFound))
}

func TestAPIErrorSentinels(t *testing.T) {
	assert.ErrorIs(t, &APIError{Status: 401}, errs.ErrUnauthorized)
	assert.ErrorIs(t, &APIError{Status: 409}, errs.ErrConflict)
	assert.ErrorIs(t, &APIError{Status: 404}, errs.ErrNotFound)
	assert.NotErrorIs(t, &APIError{Status: 400}, errs.ErrConflict)
}

func TestBearerTokenAttached(t *testing.T) {
	var got []string
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []models.Tag{})
	})

	_, err := c.Tags(context.Background())
	require.NoError(t, err)
	c.SetToken("tok")
	_, err = c.Tags(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"", "Bearer tok"}, got)
}

func TestListEntriesQuery(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2024", q.Get("year"))
		assert.Equal(t, "2", q.Get("month"))
		assert.Equal(t, "10", q.Get("limit"))
		assert.Equal(t, "10", q.Get("offset"))
		assert.Equal(t, "rain", q.Get("q"))
		writeJSON(w, http.StatusOK, []models.EntryView{})
	})

	_, err := c.ListEntries(context.Background(), models.ListFilter{Year: 2024, Month: 2, Limit: 10, Offset: 10, Query: "rain"})
	require.NoError(t, err)
}

func TestUpdateEntryBody(t *testing.T) {
	var body map[string]any
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		b, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(b, &body))
		writeJSON(w, http.StatusOK, models.EntryView{})
	})

	title := "new"
	nilMood := uuid.Nil
	tags := []string{}
	_, err := c.UpdateEntry(context.Background(), uuid.New(), EntryPatch{
		EntryUpdate: models.EntryUpdate{Title: &title, MoodID: &nilMood},
		Tags:        &tags,
	})
	require.NoError(t, err)

	assert.Equal(t, "new", body["title"])
	v, present := body["mood_id"]
	assert.True(t, present)
	assert.Nil(t, v)
	assert.Equal(t, []any{}, body["tags"])
	_, hasContent := body["content"]
	assert.False(t, hasContent)
}

func TestSignOutSendsScope(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/logout", r.URL.Path)
		assert.Equal(t, "global", r.URL.Query().Get("scope"))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.SignOut(context.Background(), auth.ScopeGlobal))
}

func TestSignInDecodesSession(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.c", body["email"])
		writeJSON(w, http.StatusOK, auth.Session{AccessToken: "a", RefreshToken: "r", TokenType: "bearer"})
	})

	s, err := c.SignIn(context.Background(), "a@b.c", "secret")
	require.NoError(t, err)
	assert.Equal(t, "a", s.AccessToken)
	assert.Equal(t, "r", s.RefreshToken)
}
