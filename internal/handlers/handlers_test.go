package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dinlipi/internal/auth"
	"dinlipi/internal/errs"
	"dinlipi/internal/models"
	"dinlipi/internal/repository"
)

var (
	_ EntryStore    = (*repository.EntryRepository)(nil)
	_ PracticeStore = (*repository.PracticeRepository)(nil)
	_ MoodStore     = (*repository.MoodRepository)(nil)
	_ ProfileStore  = (*repository.ProfileRepository)(nil)
	_ AuthService   = (*auth.Service)(nil)
)

var testUser = uuid.MustParse("6f1c7c1e-3b1a-4a53-9a36-0d8a0b2f6d11")

type stubVerifier struct{}

func (stubVerifier) Authenticate(_ context.Context, token string) (*auth.Claims, error) {
	if token != "good" {
		return nil, auth.ErrInvalidToken
	}
	c := &auth.Claims{SessionID: uuid.New()}
	c.Subject = testUser.String()
	return c, nil
}

type fakeEntries struct {
	EntryStore
	created   *models.NewEntry
	tags      []string
	filter    models.ListFilter
	update    models.EntryUpdate
	updTags   *[]string
	byDate    *models.EntryView
	createErr error
}

func (f *fakeEntries) Create(_ context.Context, _ uuid.UUID, in models.NewEntry, tags []string) (*models.EntryView, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created, f.tags = &in, tags
	return &models.EntryView{DiaryEntry: models.DiaryEntry{ID: uuid.New(), Title: in.Title}, Tags: tags}, nil
}

func (f *fakeEntries) List(_ context.Context, _ uuid.UUID, filter models.ListFilter) ([]models.EntryView, error) {
	f.filter = filter
	return []models.EntryView{}, nil
}

func (f *fakeEntries) GetByDate(context.Context, uuid.UUID, models.Date) (*models.EntryView, error) {
	return f.byDate, nil
}

func (f *fakeEntries) Update(_ context.Context, _, id uuid.UUID, upd models.EntryUpdate, tags *[]string) (*models.EntryView, error) {
	f.update, f.updTags = upd, tags
	return &models.EntryView{DiaryEntry: models.DiaryEntry{ID: id}}, nil
}

func (f *fakeEntries) EntryDates(_ context.Context, _ uuid.UUID, year int, month time.Month) ([]models.Date, error) {
	return []models.Date{models.NewDate(year, month, 3)}, nil
}

type fakePractices struct {
	PracticeStore
	deleteErr error
	entry     models.NewPracticeEntry
}

func (f *fakePractices) DeletePractice(context.Context, uuid.UUID, uuid.UUID) error {
	return f.deleteErr
}

func (f *fakePractices) CreatePracticeEntry(_ context.Context, _ uuid.UUID, in models.NewPracticeEntry) (*models.PracticeEntry, error) {
	f.entry = in
	return &models.PracticeEntry{PracticeID: in.PracticeID, DayNumber: in.DayNumber}, nil
}

type fakeMoods struct {
	MoodStore
	ref models.Date
}

func (f *fakeMoods) ListMoodCatalog(context.Context) ([]models.Mood, error) {
	return []models.Mood{{Name: "Calm"}}, nil
}

func (f *fakeMoods) MoodSummary(_ context.Context, _ uuid.UUID, ref models.Date) (*models.MoodSummary, error) {
	f.ref = ref
	return &models.MoodSummary{ReferenceDate: ref}, nil
}

type fakeProfiles struct {
	ProfileStore
	profile *models.UserProfile
}

func (f *fakeProfiles) Get(context.Context, uuid.UUID) (*models.UserProfile, error) {
	return f.profile, nil
}

type fakeAuth struct {
	AuthService
	signedOut  bool
	claims     *auth.Claims
	scope      auth.Scope
	signInErr  error
	oauthState string
}

func (f *fakeAuth) SignIn(context.Context, string, string) (*auth.Session, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return &auth.Session{AccessToken: "a", RefreshToken: "r", TokenType: "bearer"}, nil
}

func (f *fakeAuth) SignOut(_ context.Context, claims *auth.Claims, scope auth.Scope) error {
	f.signedOut, f.claims, f.scope = true, claims, scope
	return nil
}

func (f *fakeAuth) CompleteOAuth(_ context.Context, _, _, state string) (*auth.Session, string, error) {
	f.oauthState = state
	return &auth.Session{AccessToken: "a", RefreshToken: "r", TokenType: "bearer"}, "https://app.example/cb", nil
}

type fixture struct {
	entries   *fakeEntries
	practices *fakePractices
	moods     *fakeMoods
	profiles  *fakeProfiles
	auth      *fakeAuth
	server    *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithAuth(t, nil)
}

// newFixtureWithAuth serves svc instead of the auth fake when it is not nil.
func newFixtureWithAuth(t *testing.T, svc AuthService) *fixture {
	t.Helper()
	f := &fixture{
		entries:   &fakeEntries{},
		practices: &fakePractices{},
		moods:     &fakeMoods{},
		profiles:  &fakeProfiles{},
		auth:      &fakeAuth{},
	}
	if svc == nil {
		svc = f.auth
	}
	h := NewRouter(Deps{
		Logger:    zap.NewNop(),
		Registry:  prometheus.NewRegistry(),
		Auth:      svc,
		Verifier:  stubVerifier{},
		Entries:   f.entries,
		Practices: f.practices,
		Moods:     f.moods,
		Profiles:  f.profiles,
	})
	f.server = httptest.NewServer(h)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, authed bool) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, rd)
	require.NoError(t, err)
	if authed {
		req.Header.Set("Authorization", "Bearer good")
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func decodeError(t *testing.T, b []byte) errorBody {
	t.Helper()
	var e errorBody
	require.NoError(t, json.Unmarshal(b, &e))
	return e
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/entries", "/api/profile", "/api/mood-entries/summary", "/api/practices"} {
		resp, _ := f.do(t, http.MethodGet, path, "", false)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestCreateEntryPassesTags(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodPost, "/api/entries",
		`{"title":"Rain","content":"wet","date":"2024-03-01","tags":["a","b"]}`, true)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, f.entries.created)
	assert.Equal(t, "Rain", f.entries.created.Title)
	assert.Equal(t, "2024-03-01", f.entries.created.Date.String())
	assert.Equal(t, []string{"a", "b"}, f.entries.tags)
}

func TestCreateEntryErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		msg    string
	}{
		{"validation", errs.Invalid("title", "required"), http.StatusBadRequest, "validation_failed", "title: required"},
		{"unique", errs.Remote("insert", &pgconn.PgError{Code: "23505", Message: "duplicate key"}), http.StatusConflict, "conflict", ""},
		{"remote", errs.Remote("insert", errors.New("connection refused")), http.StatusInternalServerError, "remote_error", "connection refused"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.entries.createErr = tc.err
			resp, b := f.do(t, http.MethodPost, "/api/entries", `{"title":"x"}`, true)

			assert.Equal(t, tc.status, resp.StatusCode)
			e := decodeError(t, b)
			assert.Equal(t, tc.code, e.Code)
			if tc.msg != "" {
				assert.Equal(t, tc.msg, e.Error)
			}
		})
	}
}

func TestListEntriesParsesFilter(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodGet, "/api/entries?year=2024&month=2&limit=10&offset=10&q=rain", "", true)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.ListFilter{Year: 2024, Month: time.February, Limit: 10, Offset: 10, Query: "rain"}, f.entries.filter)
}

func TestListEntriesRejectsLoneYear(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodGet, "/api/entries?year=2024", "", true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/entries?limit=-1", "", true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetEntryByDate(t *testing.T) {
	f := newFixture(t)
	resp, b := f.do(t, http.MethodGet, "/api/entries/date/2024-03-01", "", true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decodeError(t, b).Code)

	f.entries.byDate = &models.EntryView{DiaryEntry: models.DiaryEntry{Title: "found"}, Tags: []string{}}
	resp, b = f.do(t, http.MethodGet, "/api/entries/date/2024-03-01", "", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(b), `"title":"found"`)

	resp, _ = f.do(t, http.MethodGet, "/api/entries/date/yesterday", "", true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateEntryNullMoodAndTags(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	resp, _ := f.do(t, http.MethodPut, "/api/entries/"+id.String(), `{"mood_id":null,"tags":[]}`, true)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, f.entries.update.MoodID)
	assert.Equal(t, uuid.Nil, *f.entries.update.MoodID)
	require.NotNil(t, f.entries.updTags)
	assert.Empty(t, *f.entries.updTags)
	assert.Nil(t, f.entries.update.Title)
}

func TestUpdateEntryWithoutTagsKeepsThem(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodPut, "/api/entries/"+uuid.NewString(), `{"title":"new"}`, true)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, f.entries.updTags)
	assert.Nil(t, f.entries.update.MoodID)
	require.NotNil(t, f.entries.update.Title)
	assert.Equal(t, "new", *f.entries.update.Title)
}

func TestUpdateEntryBadID(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodPut, "/api/entries/not-a-uuid", `{}`, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCalendar(t *testing.T) {
	f := newFixture(t)
	resp, b := f.do(t, http.MethodGet, "/api/calendar?year=2024&month=5", "", true)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"year":2024,"month":5,"dates":["2024-05-03"]}`, string(b))
}

func TestDeletePracticeWithEntriesConflicts(t *testing.T) {
	f := newFixture(t)
	f.practices.deleteErr = errs.Remote("delete practice", &pgconn.PgError{Code: "23503"})
	resp, b := f.do(t, http.MethodDelete, "/api/practices/"+uuid.NewString(), "", true)

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", decodeError(t, b).Code)

	f.practices.deleteErr = nil
	resp, _ = f.do(t, http.MethodDelete, "/api/practices/"+uuid.NewString(), "", true)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCreatePracticeEntryUsesPathID(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	resp, _ := f.do(t, http.MethodPost, "/api/practices/"+id.String()+"/entries", `{"day_number":3,"content":"sketch"}`, true)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, id, f.practices.entry.PracticeID)
	assert.Equal(t, 3, f.practices.entry.DayNumber)
}

func TestMoodCatalogIsPublic(t *testing.T) {
	f := newFixture(t)
	resp, b := f.do(t, http.MethodGet, "/api/moods", "", false)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(b), "Calm")
}

func TestMoodSummaryLocalDate(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodGet, "/api/mood-entries/summary?local_date=2024-06-10", "", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2024-06-10", f.moods.ref.String())

	resp, _ = f.do(t, http.MethodGet, "/api/mood-entries/summary", "", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, f.moods.ref.IsZero())

	resp, _ = f.do(t, http.MethodGet, "/api/mood-entries/summary?local_date=10/06/2024", "", true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProfileMissing(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodGet, "/api/profile", "", true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	f.profiles.profile = &models.UserProfile{Theme: models.ThemeDark}
	resp, b := f.do(t, http.MethodGet, "/api/profile", "", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(b), `"theme":"dark"`)
}

func TestLogoutWithoutSession(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodPost, "/api/auth/logout", "", false)

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.True(t, f.auth.signedOut)
	assert.Nil(t, f.auth.claims)
	assert.Equal(t, auth.ScopeLocal, f.auth.scope)
}

func TestLogoutScopes(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodPost, "/api/auth/logout?scope=global", "", true)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, auth.ScopeGlobal, f.auth.scope)
	require.NotNil(t, f.auth.claims)

	resp, _ = f.do(t, http.MethodPost, "/api/auth/logout?scope=everything", "", true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	f.auth.signInErr = auth.ErrInvalidCredentials
	resp, b := f.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@b.c","password":"nope"}`, false)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_credentials", decodeError(t, b).Code)

	resp, _ = f.do(t, http.MethodPost, "/api/auth/login", `{"email":""}`, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOAuthCallbackRedirectsWithFragment(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodGet, "/api/auth/oauth/google/callback?code=c&state=s", "", false)

	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc := resp.Header.Get("Location")
	assert.True(t, strings.HasPrefix(loc, "https://app.example/cb#"))
	assert.Contains(t, loc, "access_token=a")
	assert.Contains(t, loc, "refresh_token=r")
	assert.Equal(t, "s", f.auth.oauthState)
}

type plainHasher struct{}

func (plainHasher) HashToken(t string) string { return t }

type consentProvider struct{}

func (consentProvider) AuthCodeURL(state string) string {
	return "https://accounts.example/o?state=" + url.QueryEscape(state)
}

func (consentProvider) Identify(context.Context, string) (*auth.Identity, error) {
	return nil, errors.New("not used")
}

func TestRedirectTargetsAreAllowlisted(t *testing.T) {
	// no database: the redirect check runs before any lookup
	svc := auth.NewService(nil, plainHasher{}, auth.Config{
		Secret:            []byte("secret"),
		AccessTTL:         time.Hour,
		RefreshTTL:        time.Hour,
		PublicURL:         "https://app.example",
		RedirectAllowlist: []string{"dinlipi://auth"},
	}, auth.WithProvider("google", consentProvider{}))
	f := newFixtureWithAuth(t, svc)

	resp, b := f.do(t, http.MethodGet, "/api/auth/oauth/google?redirect_to="+url.QueryEscape("https://evil.example/catch"), "", false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_failed", decodeError(t, b).Code)

	resp, b = f.do(t, http.MethodGet, "/api/auth/oauth/google?redirect_to="+url.QueryEscape("dinlipi://auth/done"), "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]string
	require.NoError(t, json.Unmarshal(b, &out))
	assert.True(t, strings.HasPrefix(out["url"], "https://accounts.example/o?state="))

	resp, b = f.do(t, http.MethodPost, "/api/auth/recover", `{"email":"victim@example.com","redirect_to":"https://evil.example/steal"}`, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_failed", decodeError(t, b).Code)
}

func TestOAuthCallbackDenied(t *testing.T) {
	f := newFixture(t)
	resp, b := f.do(t, http.MethodGet, "/api/auth/oauth/google/callback?error=access_denied", "", false)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "oauth_denied", decodeError(t, b).Code)
	assert.Empty(t, f.auth.oauthState)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodGet, "/healthz", "", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, b := f.do(t, http.MethodGet, "/metrics", "", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(b), `dinlipi_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func preflight(t *testing.T, origins []string, origin string) http.Header {
	t.Helper()
	h := NewRouter(Deps{
		Logger:      zap.NewNop(),
		Registry:    prometheus.NewRegistry(),
		CORSOrigins: origins,
		Auth:        &fakeAuth{},
		Verifier:    stubVerifier{},
	})
	req := httptest.NewRequest(http.MethodOptions, "/api/entries", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Header()
}

func TestCORSCredentialsOnlyForListedOrigins(t *testing.T) {
	wild := preflight(t, nil, "https://evil.example")
	assert.Empty(t, wild.Get("Access-Control-Allow-Credentials"))

	listed := preflight(t, []string{"https://app.example"}, "https://app.example")
	assert.Equal(t, "https://app.example", listed.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", listed.Get("Access-Control-Allow-Credentials"))

	other := preflight(t, []string{"https://app.example"}, "https://evil.example")
	assert.Empty(t, other.Get("Access-Control-Allow-Origin"))
}
