// Package session keeps the CLI's single auth session: it moves between
// anonymous, authenticating and authenticated, persists tokens locally and
// tells subscribers about every change.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"dinlipi/internal/auth"
	"dinlipi/internal/errs"
	"dinlipi/internal/localstate"
	"dinlipi/internal/models"
)

type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var ErrInProgress = errors.New("another sign-in is in progress")

const (
	keyAccess    = localstate.AuthPrefix + "access_token"
	keyRefresh   = localstate.AuthPrefix + "refresh_token"
	keyExpiresAt = localstate.AuthPrefix + "expires_at"
	keyUser      = localstate.AuthPrefix + "user"
)

// Backend is the remote side of the session. *client.Client implements it.
type Backend interface {
	SignUp(ctx context.Context, email, password string, fullName *string) (*auth.Session, error)
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.Session, error)
	ConfirmPasswordReset(ctx context.Context, token, password string) (*auth.Session, error)
	SignOut(ctx context.Context, scope auth.Scope) error
	SetToken(tok string)
}

// TokenStore persists the session. *localstate.Store implements it.
type TokenStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// Change is delivered to subscribers after every state change.
type Change struct {
	State State
	Event auth.EventKind
	User  *models.User
}

type Subscriber func(Change)

type subscription struct {
	id int
	fn Subscriber
}

type Manager struct {
	backend Backend
	store   TokenStore
	logger  *zap.Logger

	mu      sync.Mutex
	state   State
	session *auth.Session

	subMu  sync.Mutex
	nextID int
	subs   []subscription
}

func NewManager(backend Backend, store TokenStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{backend: backend, store: store, logger: logger}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns a copy of the current session, or nil when anonymous.
func (m *Manager) Session() *auth.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

// Subscribe registers fn for every change; calls are synchronous and in order.
func (m *Manager) Subscribe(fn Subscriber) (unsubscribe func()) {
	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs = append(m.subs, subscription{id: id, fn: fn})
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			defer m.subMu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (m *Manager) notify(c Change) {
	m.subMu.Lock()
	subs := append([]subscription(nil), m.subs...)
	m.subMu.Unlock()
	for _, s := range subs {
		s.fn(c)
	}
}

// Restore loads a persisted session. A missing or unreadable one leaves the
// manager anonymous.
func (m *Manager) Restore(ctx context.Context) error {
	access, ok, err := m.store.Get(ctx, keyAccess)
	if err != nil || !ok {
		return err
	}
	refresh, _, err := m.store.Get(ctx, keyRefresh)
	if err != nil {
		return err
	}
	s := &auth.Session{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}
	if v, ok, err := m.store.Get(ctx, keyExpiresAt); err == nil && ok {
		s.ExpiresAt, _ = time.Parse(time.RFC3339, v)
	}
	if v, ok, err := m.store.Get(ctx, keyUser); err == nil && ok {
		if err := json.Unmarshal([]byte(v), &s.User); err != nil {
			m.logger.Warn("discarding unreadable stored user", zap.Error(err))
		}
	}

	m.mu.Lock()
	m.session = s
	m.state = Authenticated
	m.mu.Unlock()
	m.backend.SetToken(access)
	m.notify(Change{State: Authenticated, User: &s.User})
	return nil
}

// Expired reports whether the stored access token is past its expiry.
func (m *Manager) Expired(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil && !m.session.ExpiresAt.IsZero() && now.After(m.session.ExpiresAt)
}

func (m *Manager) SignUp(ctx context.Context, email, password string, fullName *string) error {
	return m.authenticate(ctx, auth.SignedUp, func() (*auth.Session, error) {
		return m.backend.SignUp(ctx, email, password, fullName)
	})
}

func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	return m.authenticate(ctx, auth.SignedIn, func() (*auth.Session, error) {
		return m.backend.SignIn(ctx, email, password)
	})
}

func (m *Manager) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	return m.authenticate(ctx, auth.PasswordRecovery, func() (*auth.Session, error) {
		return m.backend.ConfirmPasswordReset(ctx, token, password)
	})
}

// Refresh trades the refresh token for a new session. A rejected refresh
// token ends the session locally.
func (m *Manager) Refresh(ctx context.Context) error {
	cur := m.Session()
	if cur == nil || cur.RefreshToken == "" {
		return errs.ErrUnauthorized
	}
	err := m.authenticate(ctx, auth.TokenRefreshed, func() (*auth.Session, error) {
		return m.backend.Refresh(ctx, cur.RefreshToken)
	})
	if errors.Is(err, errs.ErrUnauthorized) {
		if clearErr := m.clear(ctx); clearErr != nil {
			return clearErr
		}
	}
	return err
}

func (m *Manager) authenticate(ctx context.Context, kind auth.EventKind, attempt func() (*auth.Session, error)) error {
	m.mu.Lock()
	if m.state == Authenticating {
		m.mu.Unlock()
		return ErrInProgress
	}
	prev := m.state
	m.state = Authenticating
	m.mu.Unlock()
	m.notify(Change{State: Authenticating, Event: kind})

	s, err := attempt()
	if err == nil {
		err = m.persist(ctx, s)
	}
	if err != nil {
		m.mu.Lock()
		m.state = prev
		var u *models.User
		if prev == Authenticated && m.session != nil {
			u = &m.session.User
		}
		m.mu.Unlock()
		m.notify(Change{State: prev, User: u})
		return err
	}

	m.mu.Lock()
	m.session = s
	m.state = Authenticated
	m.mu.Unlock()
	m.backend.SetToken(s.AccessToken)
	m.notify(Change{State: Authenticated, Event: kind, User: &s.User})
	return nil
}

func (m *Manager) persist(ctx context.Context, s *auth.Session) error {
	user, err := json.Marshal(s.User)
	if err != nil {
		return err
	}
	values := map[string]string{
		keyAccess:    s.AccessToken,
		keyRefresh:   s.RefreshToken,
		keyExpiresAt: s.ExpiresAt.UTC().Format(time.RFC3339),
		keyUser:      string(user),
	}
	for k, v := range values {
		if err := m.store.Set(ctx, k, v); err != nil {
			return fmt.Errorf("persist session: %w", err)
		}
	}
	return nil
}

// clear drops the session locally and notifies subscribers.
func (m *Manager) clear(ctx context.Context) error {
	_, err := m.store.DeletePrefix(ctx, localstate.AuthPrefix)
	m.mu.Lock()
	m.session = nil
	m.state = Anonymous
	m.mu.Unlock()
	m.backend.SetToken("")
	m.notify(Change{State: Anonymous, Event: auth.SignedOut})
	return err
}

// SignOut ends the current session. Being signed out already is not an error.
func (m *Manager) SignOut(ctx context.Context) error {
	if m.Session() != nil {
		err := m.backend.SignOut(ctx, auth.ScopeLocal)
		if err != nil && !errors.Is(err, errs.ErrUnauthorized) && !errors.Is(err, errs.ErrNotFound) {
			return err
		}
	}
	return m.clear(ctx)
}

// SignOutEverywhere revokes every session on the server and then scrubs all
// local auth keys. The local scrub happens even when the server call fails.
func (m *Manager) SignOutEverywhere(ctx context.Context) error {
	if err := m.backend.SignOut(ctx, auth.ScopeGlobal); err != nil {
		m.logger.Warn("global sign-out failed; clearing local session anyway", zap.Error(err))
	}
	return m.clear(ctx)
}
