// Package client talks to the dinlipi HTTP API on behalf of the CLI.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"dinlipi/internal/auth"
	"dinlipi/internal/errs"
	"dinlipi/internal/models"
)

// APIError is a non-2xx answer from the server. Message is the server's own
// text, which for store failures is the store's message.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Code    string `json:"code"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return e.Message
}

// Is lets callers test API failures against the errs sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case errs.ErrNotFound:
		return e.Status == http.StatusNotFound
	case errs.ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case errs.ErrConflict:
		return e.Status == http.StatusConflict
	}
	return false
}

type Client struct {
	http *resty.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

// WithHTTPClient swaps the transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		base := c.http.BaseURL
		c.http = resty.NewWithClient(hc).SetBaseURL(base)
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second),
	}
	for _, o := range opts {
		o(c)
	}
	c.http.SetHeader("Accept", "application/json")
	c.http.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if tok := c.Token(); tok != "" {
			r.SetAuthToken(tok)
		}
		return nil
	})
	return c
}

// SetToken sets the bearer token sent with every request. Empty clears it.
func (c *Client) SetToken(tok string) {
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, mod func(*resty.Request)) error {
	apiErr := &APIError{}
	req := c.http.R().SetContext(ctx).SetError(apiErr)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	if mod != nil {
		mod(req)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		return apiErr
	}
	return nil
}

func pathParam(name, value string) func(*resty.Request) {
	return func(r *resty.Request) { r.SetPathParam(name, value) }
}

// orNil turns a 404 into a nil result.
func orNil(err error) error {
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	return err
}

// Auth

type credentials struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"full_name,omitempty"`
}

func (c *Client) SignUp(ctx context.Context, email, password string, fullName *string) (*auth.Session, error) {
	var s auth.Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", credentials{email, password, fullName}, &s, nil); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*auth.Session, error) {
	var s auth.Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", credentials{Email: email, Password: password}, &s, nil); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*auth.Session, error) {
	var s auth.Session
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/api/auth/refresh", body, &s, nil); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) SignOut(ctx context.Context, scope auth.Scope) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, func(r *resty.Request) {
		r.SetQueryParam("scope", string(scope))
	})
}

func (c *Client) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	body := map[string]string{"email": email, "redirect_to": redirectTo}
	return c.do(ctx, http.MethodPost, "/api/auth/recover", body, nil, nil)
}

func (c *Client) ConfirmPasswordReset(ctx context.Context, token, password string) (*auth.Session, error) {
	var s auth.Session
	body := map[string]string{"token": token, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/recover/confirm", body, &s, nil); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) UpdatePassword(ctx context.Context, password string) error {
	return c.do(ctx, http.MethodPut, "/api/auth/password", map[string]string{"password": password}, nil, nil)
}

// SessionInfo describes the session behind the current token.
type SessionInfo struct {
	User      models.User `json:"user"`
	SessionID uuid.UUID   `json:"session_id"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (c *Client) Session(ctx context.Context) (*SessionInfo, error) {
	var s SessionInfo
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, &s, nil); err != nil {
		return nil, err
	}
	return &s, nil
}

// Entries

func filterParams(f models.ListFilter) func(*resty.Request) {
	return func(r *resty.Request) {
		if f.Year > 0 && f.Month > 0 {
			r.SetQueryParam("year", strconv.Itoa(f.Year))
			r.SetQueryParam("month", strconv.Itoa(int(f.Month)))
		}
		if f.Limit > 0 {
			r.SetQueryParam("limit", strconv.Itoa(f.Limit))
		}
		if f.Offset > 0 {
			r.SetQueryParam("offset", strconv.Itoa(f.Offset))
		}
		if f.Query != "" {
			r.SetQueryParam("q", f.Query)
		}
	}
}

func (c *Client) ListEntries(ctx context.Context, f models.ListFilter) ([]models.EntryView, error) {
	var out []models.EntryView
	if err := c.do(ctx, http.MethodGet, "/api/entries", nil, &out, filterParams(f)); err != nil {
		return nil, err
	}
	return out, nil
}

type newEntryBody struct {
	models.NewEntry
	Tags []string `json:"tags"`
}

func (c *Client) CreateEntry(ctx context.Context, in models.NewEntry, tags []string) (*models.EntryView, error) {
	var e models.EntryView
	if err := c.do(ctx, http.MethodPost, "/api/entries", newEntryBody{in, tags}, &e, nil); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) GetEntry(ctx context.Context, id uuid.UUID) (*models.EntryView, error) {
	var e models.EntryView
	if err := c.do(ctx, http.MethodGet, "/api/entries/{id}", nil, &e, pathParam("id", id.String())); err != nil {
		return nil, orNil(err)
	}
	return &e, nil
}

// GetEntryByDate returns nil when the day has no entry.
func (c *Client) GetEntryByDate(ctx context.Context, date models.Date) (*models.EntryView, error) {
	var e models.EntryView
	if err := c.do(ctx, http.MethodGet, "/api/entries/date/{date}", nil, &e, pathParam("date", date.String())); err != nil {
		return nil, orNil(err)
	}
	return &e, nil
}

// EntryPatch is a partial entry update. A MoodID of uuid.Nil clears the mood
// and a non-nil Tags replaces every tag.
type EntryPatch struct {
	models.EntryUpdate
	Tags *[]string
}

func (p EntryPatch) body() map[string]any {
	b := map[string]any{}
	if p.Title != nil {
		b["title"] = *p.Title
	}
	if p.Content != nil {
		b["content"] = *p.Content
	}
	if p.Date != nil {
		b["date"] = *p.Date
	}
	if p.MoodID != nil {
		if *p.MoodID == uuid.Nil {
			b["mood_id"] = nil
		} else {
			b["mood_id"] = *p.MoodID
		}
	}
	if p.PhotoURL != nil {
		b["photo_url"] = *p.PhotoURL
	}
	if p.Tags != nil {
		tags := *p.Tags
		if tags == nil {
			tags = []string{}
		}
		b["tags"] = tags
	}
	return b
}

func (c *Client) UpdateEntry(ctx context.Context, id uuid.UUID, p EntryPatch) (*models.EntryView, error) {
	var e models.EntryView
	if err := c.do(ctx, http.MethodPut, "/api/entries/{id}", p.body(), &e, pathParam("id", id.String())); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/entries/{id}", nil, nil, pathParam("id", id.String()))
}

func (c *Client) Tags(ctx context.Context) ([]models.Tag, error) {
	var out []models.Tag
	if err := c.do(ctx, http.MethodGet, "/api/tags", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Calendar(ctx context.Context, year int, month time.Month) ([]models.Date, error) {
	var out struct {
		Dates []models.Date `json:"dates"`
	}
	err := c.do(ctx, http.MethodGet, "/api/calendar", nil, &out, func(r *resty.Request) {
		r.SetQueryParam("year", strconv.Itoa(year))
		r.SetQueryParam("month", strconv.Itoa(int(month)))
	})
	if err != nil {
		return nil, err
	}
	return out.Dates, nil
}

// Moods

func (c *Client) MoodCatalog(ctx context.Context) ([]models.Mood, error) {
	var out []models.Mood
	if err := c.do(ctx, http.MethodGet, "/api/moods", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) LogMood(ctx context.Context, in models.NewMoodEntry) (*models.MoodEntry, error) {
	var m models.MoodEntry
	if err := c.do(ctx, http.MethodPost, "/api/mood-entries", in, &m, nil); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) MoodEntries(ctx context.Context, start, end *models.Date) ([]models.MoodEntry, error) {
	var out []models.MoodEntry
	err := c.do(ctx, http.MethodGet, "/api/mood-entries", nil, &out, func(r *resty.Request) {
		if start != nil {
			r.SetQueryParam("start_date", start.String())
		}
		if end != nil {
			r.SetQueryParam("end_date", end.String())
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MoodByDate(ctx context.Context, date models.Date) (*models.MoodEntry, error) {
	var m models.MoodEntry
	if err := c.do(ctx, http.MethodGet, "/api/mood-entries/date/{date}", nil, &m, pathParam("date", date.String())); err != nil {
		return nil, orNil(err)
	}
	return &m, nil
}

func (c *Client) MoodSummary(ctx context.Context, localDate models.Date) (*models.MoodSummary, error) {
	var s models.MoodSummary
	err := c.do(ctx, http.MethodGet, "/api/mood-entries/summary", nil, &s, func(r *resty.Request) {
		if !localDate.IsZero() {
			r.SetQueryParam("local_date", localDate.String())
		}
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Practices

func (c *Client) Practices(ctx context.Context, kind *models.PracticeType) ([]models.Practice, error) {
	var out []models.Practice
	err := c.do(ctx, http.MethodGet, "/api/practices", nil, &out, func(r *resty.Request) {
		if kind != nil {
			r.SetQueryParam("type", string(*kind))
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePractice(ctx context.Context, in models.NewPractice) (*models.Practice, error) {
	var p models.Practice
	if err := c.do(ctx, http.MethodPost, "/api/practices", in, &p, nil); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) GetPractice(ctx context.Context, id uuid.UUID) (*models.Practice, error) {
	var p models.Practice
	if err := c.do(ctx, http.MethodGet, "/api/practices/{id}", nil, &p, pathParam("id", id.String())); err != nil {
		return nil, orNil(err)
	}
	return &p, nil
}

func (c *Client) UpdatePractice(ctx context.Context, id uuid.UUID, upd models.PracticeUpdate) (*models.Practice, error) {
	var p models.Practice
	if err := c.do(ctx, http.MethodPut, "/api/practices/{id}", upd, &p, pathParam("id", id.String())); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) DeletePractice(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/practices/{id}", nil, nil, pathParam("id", id.String()))
}

func (c *Client) PracticeEntries(ctx context.Context, practiceID uuid.UUID) ([]models.PracticeEntry, error) {
	var out []models.PracticeEntry
	if err := c.do(ctx, http.MethodGet, "/api/practices/{id}/entries", nil, &out, pathParam("id", practiceID.String())); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) LogPracticeDay(ctx context.Context, in models.NewPracticeEntry) (*models.PracticeEntry, error) {
	var e models.PracticeEntry
	body := map[string]any{"day_number": in.DayNumber, "content": in.Content}
	if err := c.do(ctx, http.MethodPost, "/api/practices/{id}/entries", body, &e, pathParam("id", in.PracticeID.String())); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) CompletePracticeEntry(ctx context.Context, id uuid.UUID) (*models.PracticeEntry, error) {
	var e models.PracticeEntry
	if err := c.do(ctx, http.MethodPost, "/api/practice-entries/{id}/complete", nil, &e, pathParam("id", id.String())); err != nil {
		return nil, err
	}
	return &e, nil
}

// Profile

func (c *Client) Profile(ctx context.Context) (*models.UserProfile, error) {
	var p models.UserProfile
	if err := c.do(ctx, http.MethodGet, "/api/profile", nil, &p, nil); err != nil {
		return nil, orNil(err)
	}
	return &p, nil
}

func (c *Client) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.UserProfile, error) {
	var p models.UserProfile
	if err := c.do(ctx, http.MethodPut, "/api/profile", upd, &p, nil); err != nil {
		return nil, err
	}
	return &p, nil
}
