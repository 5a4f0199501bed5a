// ./fieldcam-backend/internal/auth/session.go
package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"fieldcam/backend/internal/models"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// TokenLifetime is how long a freshly issued token is trusted locally.
// It sits just under the provider's one hour so we stop before the server does.
const TokenLifetime = 3500 * time.Second

type State string

const (
	StateSignedOut      State = "signed_out"
	StateAuthenticating State = "authenticating"
	StateSignedIn       State = "signed_in"
	StateExpired        State = "expired"
)

// IdentityProvider issues access tokens and resolves them to an identity.
type IdentityProvider interface {
	RequestToken(ctx context.Context) (string, error)
	UserInfo(ctx context.Context, accessToken string) (*models.Identity, error)
}

// Store persists the session across restarts. Load returns (nil, nil) when
// nothing is stored.
type Store interface {
	Load(ctx context.Context) (*models.Session, error)
	Save(ctx context.Context, s models.Session) error
	Clear(ctx context.Context) error
}

// Status is a read-only view of the manager for the HTTP layer.
type Status struct {
	State     State      `json:"state"`
	Email     string     `json:"email,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Manager owns the token lifecycle. All methods are safe for concurrent use;
// an invalidation is visible to every call that starts after it returns.
type Manager struct {
	mu      sync.RWMutex
	state   State
	session *models.Session
	// attempt is bumped by every SignIn and SignOut; a flow commits only
	// while its own attempt is still current.
	attempt uint64
	cancel  context.CancelFunc

	provider IdentityProvider
	store    Store
	now      func() time.Time
	log      *zap.Logger
}

type Option func(*Manager)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(provider IdentityProvider, store Store, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		state:    StateSignedOut,
		provider: provider,
		store:    store,
		now:      time.Now,
		log:      logger.Named("session"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore loads a persisted session. An expired one is discarded.
func (m *Manager) Restore(ctx context.Context) error {
	saved, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("could not load saved session: %w", err)
	}
	if saved == nil {
		return nil
	}
	if saved.AccessToken == "" || saved.Expired(m.now()) {
		m.log.Info("discarding expired saved session", zap.Time("expires_at", saved.ExpiresAt))
		if err := m.store.Clear(ctx); err != nil {
			m.log.Warn("failed to clear saved session", zap.Error(err))
		}
		return nil
	}

	m.mu.Lock()
	m.session = saved
	m.state = StateSignedIn
	m.mu.Unlock()

	m.log.Info("restored saved session", zap.String("email", emailOf(saved)), zap.Time("expires_at", saved.ExpiresAt))
	return nil
}

// SignIn runs the provider's token flow. On failure the manager is left
// signed out. A SignOut during the flow cancels it and wins.
func (m *Manager) SignIn(ctx context.Context) (models.Session, error) {
	m.mu.Lock()
	if m.state == StateAuthenticating {
		m.mu.Unlock()
		return models.Session{}, ErrSignInInProgress
	}
	m.attempt++
	attempt := m.attempt
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.state = StateAuthenticating
	m.session = nil
	m.mu.Unlock()
	defer cancel()

	token, err := m.provider.RequestToken(ctx)
	if err != nil {
		if !m.finish(attempt, StateSignedOut, nil) {
			return models.Session{}, ErrSignInCancelled
		}
		m.log.Error("sign-in failed", zap.Error(err))
		return models.Session{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	session := models.Session{
		AccessToken: token,
		ExpiresAt:   m.now().Add(TokenLifetime),
	}
	identity, err := m.provider.UserInfo(ctx, token)
	if err != nil {
		m.log.Warn("user info lookup failed, uploads will be attributed to unknown", zap.Error(err))
	} else {
		session.Identity = identity
	}

	if !m.finish(attempt, StateSignedIn, &session) {
		m.log.Info("sign-in abandoned after sign-out")
		return models.Session{}, ErrSignInCancelled
	}
	m.log.Info("signed in", zap.String("email", emailOf(&session)), zap.Time("expires_at", session.ExpiresAt))
	return session, nil
}

// finish commits the outcome of a sign-in attempt if it is still current.
// The store is written under the lock so a concurrent SignOut cannot clear
// it before this save lands.
func (m *Manager) finish(attempt uint64, state State, session *models.Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attempt != attempt {
		return false
	}
	m.cancel = nil
	m.state = state
	m.session = session
	if session != nil {
		if err := m.store.Save(context.Background(), *session); err != nil {
			m.log.Warn("failed to persist session", zap.Error(err))
		}
	}
	return true
}

// SignOut clears the session unconditionally and abandons a pending sign-in.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.attempt++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.session = nil
	m.state = StateSignedOut
	m.mu.Unlock()

	m.log.Info("signed out")
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("could not clear saved session: %w", err)
	}
	return nil
}

// EnsureValid returns the current session or an error. A session past its
// expiry is dropped and ErrSessionExpired returned; no silent refresh happens.
// StateExpired is a signed-out state kept only so callers can tell why.
func (m *Manager) EnsureValid(ctx context.Context) (models.Session, error) {
	m.mu.Lock()
	if m.state != StateSignedIn || m.session == nil {
		m.mu.Unlock()
		return models.Session{}, ErrNotAuthenticated
	}
	if m.session.Expired(m.now()) {
		expiredAt := m.session.ExpiresAt
		m.session = nil
		m.state = StateExpired
		m.mu.Unlock()

		m.log.Info("session expired", zap.Time("expires_at", expiredAt))
		if err := m.store.Clear(ctx); err != nil {
			m.log.Warn("failed to clear saved session", zap.Error(err))
		}
		return models.Session{}, ErrSessionExpired
	}
	s := *m.session
	m.mu.Unlock()
	return s, nil
}

// Invalidate drops the session because the server rejected accessToken.
// The server is authoritative over the local expiry. A rejection of an
// older token leaves a newer session alone.
func (m *Manager) Invalidate(ctx context.Context, accessToken, reason string) {
	m.mu.Lock()
	if m.session == nil || m.session.AccessToken != accessToken {
		m.mu.Unlock()
		m.log.Debug("ignoring rejection of a token that is no longer current", zap.String("reason", reason))
		return
	}
	m.session = nil
	m.state = StateSignedOut
	m.mu.Unlock()

	m.log.Warn("session invalidated", zap.String("reason", reason))
	if err := m.store.Clear(ctx); err != nil {
		m.log.Warn("failed to clear saved session", zap.Error(err))
	}
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Identity returns the signed-in identity, or nil.
func (m *Manager) Identity() *models.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil || m.session.Identity == nil {
		return nil
	}
	id := *m.session.Identity
	return &id
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Status{State: m.state}
	if m.session != nil {
		st.Email = emailOf(m.session)
		exp := m.session.ExpiresAt
		st.ExpiresAt = &exp
	}
	return st
}

// TokenSource yields the current bearer token, validating it on every call.
func (m *Manager) TokenSource() oauth2.TokenSource {
	return managerTokenSource{m: m}
}

// HTTPClient returns a client that authorizes every request with the
// current session. Tokens are never cached beyond the manager itself.
func (m *Manager) HTTPClient(base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{Transport: &oauth2.Transport{Source: m.TokenSource(), Base: base}}
}

type managerTokenSource struct {
	m *Manager
}

func (t managerTokenSource) Token() (*oauth2.Token, error) {
	s, err := t.m.EnsureValid(context.Background())
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: s.AccessToken, TokenType: "Bearer", Expiry: s.ExpiresAt}, nil
}

func emailOf(s *models.Session) string {
	if s == nil || s.Identity == nil {
		return ""
	}
	return s.Identity.Email
}
