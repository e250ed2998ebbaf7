// Package auth is the identity provider: accounts, sessions, access and
// refresh tokens, password recovery, OAuth sign-in and session change events.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"dinlipi/internal/errs"
	"dinlipi/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailTaken         = errors.New("user already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUnknownProvider    = errors.New("unsupported oauth provider")
)

const minPasswordLength = 6

// Scope selects which sessions a sign-out revokes.
type Scope string

const (
	ScopeLocal  Scope = "local"
	ScopeGlobal Scope = "global"
	ScopeOthers Scope = "others"
)

func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "":
		return ScopeLocal, nil
	case ScopeLocal, ScopeGlobal, ScopeOthers:
		return Scope(s), nil
	}
	return "", errs.Invalid("scope", "must be local, global or others")
}

// TokenHasher hashes opaque tokens before they are stored.
// *services.EncryptionService implements it.
type TokenHasher interface {
	HashToken(token string) string
}

// Session is handed to the client after any successful sign-in.
type Session struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresAt    time.Time   `json:"expires_at"`
	User         models.User `json:"user"`
}

type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
	// PublicURL is used to build reset links when the caller gives no redirect.
	PublicURL string
	// RedirectAllowlist lists further origins a redirect_to may use besides
	// PublicURL.
	RedirectAllowlist []string
}

type Service struct {
	db        *sqlx.DB
	hasher    TokenHasher
	cfg       Config
	mailer    Mailer
	logger    *zap.Logger
	providers map[string]Provider
	redirects redirectPolicy
	events    hub
	now       func() time.Time
}

type Option func(*Service)

func WithMailer(m Mailer) Option { return func(s *Service) { s.mailer = m } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }

func WithProvider(name string, p Provider) Option {
	return func(s *Service) { s.providers[name] = p }
}

func NewService(db *sqlx.DB, hasher TokenHasher, cfg Config, opts ...Option) *Service {
	if cfg.ResetTTL == 0 {
		cfg.ResetTTL = time.Hour
	}
	s := &Service{
		db:        db,
		hasher:    hasher,
		cfg:       cfg,
		logger:    zap.NewNop(),
		providers: map[string]Provider{},
		redirects: newRedirectPolicy(cfg.PublicURL, cfg.RedirectAllowlist),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.mailer == nil {
		s.mailer = LogMailer{Logger: s.logger}
	}
	return s
}

// Subscribe registers fn for every session change and returns a function that
// removes it.
func (s *Service) Subscribe(fn Listener) (unsubscribe func()) {
	return s.events.subscribe(fn)
}

func (s *Service) emit(ctx context.Context, kind EventKind, u models.User, sessionID uuid.UUID) {
	s.events.emit(ctx, Event{Kind: kind, User: u, SessionID: sessionID, At: s.now()})
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", errs.Invalid("email", "a valid email is required")
	}
	return email, nil
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", errs.Invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func (s *Service) SignUp(ctx context.Context, email, password string, fullName *string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	if fullName != nil {
		if n := strings.TrimSpace(*fullName); n == "" {
			fullName = nil
		} else {
			fullName = &n
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errs.Remote("auth.sign_up", err)
	}
	defer tx.Rollback()

	u, err := insertUser(ctx, tx, email, &hash, fullName, "email")
	if err != nil {
		return nil, err
	}
	sess, sid, err := s.openSession(ctx, tx, *u)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errs.Remote("auth.sign_up", err)
	}
	s.logger.Info("user signed up", zap.String("user_id", u.ID.String()))
	s.emit(ctx, SignedUp, *u, sid)
	return sess, nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	u, err := userByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if u == nil || u.PasswordHash == nil ||
		bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	sess, sid, err := s.openSession(ctx, s.db, *u)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, SignedIn, *u, sid)
	return sess, nil
}

// openSession stores a new refresh token and signs a matching access token.
func (s *Service) openSession(ctx context.Context, q querier, u models.User) (*Session, uuid.UUID, error) {
	refresh := newOpaqueToken()
	now := s.now()
	sid, err := insertSession(ctx, q, u.ID, s.hasher.HashToken(refresh), now.Add(s.cfg.RefreshTTL))
	if err != nil {
		return nil, uuid.Nil, err
	}
	access, exp, err := signAccess(s.cfg.Secret, u.ID, sid, u.Email, now, s.cfg.AccessTTL)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("sign access token: %w", err)
	}
	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    exp,
		User:         u,
	}, sid, nil
}

// Refresh exchanges a refresh token for a new token pair. The presented
// refresh token stops working.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrInvalidToken
	}
	refresh := newOpaqueToken()
	now := s.now()
	sid, userID, err := rotateSession(ctx, s.db,
		s.hasher.HashToken(refreshToken), s.hasher.HashToken(refresh), now.Add(s.cfg.RefreshTTL))
	if err != nil {
		return nil, err
	}
	u, err := userByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidToken
	}
	access, exp, err := signAccess(s.cfg.Secret, u.ID, sid, u.Email, now, s.cfg.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	s.emit(ctx, TokenRefreshed, *u, sid)
	return &Session{AccessToken: access, RefreshToken: refresh, TokenType: "bearer", ExpiresAt: exp, User: *u}, nil
}

// Authenticate validates an access token and checks that its session is
// still live.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Claims, error) {
	claims, err := parseAccess(s.cfg.Secret, accessToken)
	if err != nil {
		return nil, err
	}
	userID, _ := claims.UserID()
	ok, err := sessionActive(ctx, s.db, claims.SessionID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: session revoked", ErrInvalidToken)
	}
	return claims, nil
}

// SignOut revokes sessions for the caller. Signing out without a session, or
// with one that is already revoked, succeeds.
func (s *Service) SignOut(ctx context.Context, claims *Claims, scope Scope) error {
	if claims == nil {
		return nil
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil
	}
	n, err := revokeSessions(ctx, s.db, userID, claims.SessionID, scope)
	if err != nil {
		return err
	}
	s.logger.Debug("sessions revoked",
		zap.String("user_id", userID.String()),
		zap.String("scope", string(scope)),
		zap.Int64("count", n))
	if scope != ScopeOthers {
		s.emit(ctx, SignedOut, models.User{ID: userID, Email: claims.Email}, claims.SessionID)
	}
	return nil
}

// RequestPasswordReset mails a one-time reset link. Unknown addresses succeed
// without sending anything.
func (s *Service) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if err := s.redirects.check(redirectTo); err != nil {
		return err
	}
	u, err := userByEmail(ctx, s.db, email)
	if err != nil {
		return err
	}
	if u == nil {
		return nil
	}
	token := newOpaqueToken()
	if err := insertReset(ctx, s.db, s.hasher.HashToken(token), u.ID, s.now().Add(s.cfg.ResetTTL)); err != nil {
		return err
	}
	link, err := resetLink(redirectTo, s.cfg.PublicURL, token)
	if err != nil {
		return err
	}
	if err := s.mailer.SendPasswordReset(ctx, u.Email, link); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	return nil
}

func resetLink(redirectTo, publicURL, token string) (string, error) {
	base := redirectTo
	if base == "" {
		base = strings.TrimRight(publicURL, "/") + "/reset-password"
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", errs.Invalid("redirect_to", "must be an absolute URL")
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ConfirmPasswordReset spends a reset token, sets the new password and signs
// the user in.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, password string) (*Session, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errs.Remote("auth.recover", err)
	}
	defer tx.Rollback()

	userID, err := consumeReset(ctx, tx, s.hasher.HashToken(token))
	if err != nil {
		return nil, err
	}
	if err := setPassword(ctx, tx, userID, hash); err != nil {
		return nil, err
	}
	u, err := userByID(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidToken
	}
	sess, sid, err := s.openSession(ctx, tx, *u)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errs.Remote("auth.recover", err)
	}
	s.emit(ctx, PasswordRecovery, *u, sid)
	return sess, nil
}

func (s *Service) UpdatePassword(ctx context.Context, userID uuid.UUID, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	if err := setPassword(ctx, s.db, userID, hash); err != nil {
		return err
	}
	u, err := userByID(ctx, s.db, userID)
	if err != nil {
		return err
	}
	if u != nil {
		s.emit(ctx, UserUpdated, *u, uuid.Nil)
	}
	return nil
}

// User returns the account or nil.
func (s *Service) User(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return userByID(ctx, s.db, userID)
}

// OAuthURL returns the provider consent URL. redirectTo is echoed back after
// the callback completes.
func (s *Service) OAuthURL(provider, redirectTo string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", ErrUnknownProvider
	}
	if err := s.redirects.check(redirectTo); err != nil {
		return "", err
	}
	state, err := signState(s.cfg.Secret, provider, redirectTo, s.now())
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return p.AuthCodeURL(state), nil
}

// CompleteOAuth finishes the code flow. An unknown email becomes a new account
// (signed_up); a known one signs in (signed_in).
func (s *Service) CompleteOAuth(ctx context.Context, provider, code, state string) (*Session, string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, "", ErrUnknownProvider
	}
	st, err := parseState(s.cfg.Secret, provider, state)
	if err != nil {
		return nil, "", err
	}
	// the allowlist may have shrunk since the state was signed
	if err := s.redirects.check(st.RedirectTo); err != nil {
		return nil, "", fmt.Errorf("%w: redirect not allowed", ErrInvalidToken)
	}
	id, err := p.Identify(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("%s sign-in: %w", provider, err)
	}

	kind := SignedIn
	u, err := userByEmail(ctx, s.db, id.Email)
	if err != nil {
		return nil, "", err
	}
	if u == nil {
		var name *string
		if id.FullName != "" {
			name = &id.FullName
		}
		if u, err = insertUser(ctx, s.db, id.Email, nil, name, provider); err != nil {
			return nil, "", err
		}
		kind = SignedUp
	}
	sess, sid, err := s.openSession(ctx, s.db, *u)
	if err != nil {
		return nil, "", err
	}
	s.emit(ctx, kind, *u, sid)
	return sess, st.RedirectTo, nil
}
