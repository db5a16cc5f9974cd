package session

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/diptoe/collective-memory-sub000/internal/api"
)

// AuthBackend is the slice of the auth API the manager drives.
// *api.AuthService implements it.
type AuthBackend interface {
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	GuestLogin(ctx context.Context) (*api.LoginResponse, error)
	Register(ctx context.Context, email, password, displayName string) (*api.LoginResponse, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) (*api.LoginResponse, error)
}

const (
	// DefaultTTL is the browser session lifetime.
	DefaultTTL = 24 * time.Hour

	// refreshSkew is how close to token expiry a resolve triggers a
	// background refresh attempt.
	refreshSkew = 5 * time.Minute
)

// Options tunes a Manager. The zero value uses defaults.
type Options struct {
	TTL time.Duration
	Now func() time.Time
}

// Manager owns the sign-in lifecycle: exchanging credentials for backend
// tokens, minting session IDs, resolving cookies back to tokens, and
// refreshing tokens that are about to lapse.
type Manager struct {
	store Store
	auth  AuthBackend
	log   *zap.Logger
	ttl   time.Duration
	now   func() time.Time
}

// NewManager builds a Manager over the given store and auth backend.
func NewManager(store Store, auth AuthBackend, logger *zap.Logger, opts Options) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		store: store,
		auth:  auth,
		log:   logger.Named("session"),
		ttl:   ttl,
		now:   now,
	}
}

// Login exchanges credentials for a new session. Credential errors pass
// through unwrapped so handlers can distinguish bad logins from outages.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	res, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return m.create(ctx, res)
}

// GuestLogin creates a session for an ephemeral guest account.
func (m *Manager) GuestLogin(ctx context.Context) (*Session, error) {
	res, err := m.auth.GuestLogin(ctx)
	if err != nil {
		return nil, err
	}
	return m.create(ctx, res)
}

// Register creates a backend account and signs it in.
func (m *Manager) Register(ctx context.Context, email, password, displayName string) (*Session, error) {
	res, err := m.auth.Register(ctx, email, password, displayName)
	if err != nil {
		return nil, err
	}
	return m.create(ctx, res)
}

func (m *Manager) create(ctx context.Context, res *api.LoginResponse) (*Session, error) {
	now := m.now()
	s := &Session{
		ID:        uuid.NewString(),
		Token:     res.Token,
		User:      res.User,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Put(ctx, s); err != nil {
		return nil, err
	}
	m.log.Info("session created",
		zap.String("user", s.User.UserKey), zap.Bool("guest", s.User.IsGuest))
	return s, nil
}

// Logout revokes the backend token best-effort and always drops the local
// session.
func (m *Manager) Logout(ctx context.Context, id string) error {
	s, err := m.store.Get(ctx, id)
	if err == nil {
		if err := m.auth.Logout(api.WithToken(ctx, s.Token)); err != nil {
			m.log.Warn("backend logout failed", zap.Error(err))
		}
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return m.store.Delete(ctx, id)
}

// Resolve maps a session ID back to its session, refreshing the backend
// token when it is close to expiry. Unknown, expired and revoked sessions
// all come back as ErrNotFound.
func (m *Manager) Resolve(ctx context.Context, id string) (*Session, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Expired(m.now()) {
		_ = m.store.Delete(ctx, id)
		return nil, ErrNotFound
	}
	return m.maybeRefresh(ctx, s)
}

// maybeRefresh renews the backend token if its expiry is within the skew.
// Transient refresh failures keep the old token; a definitive rejection
// kills the session.
func (m *Manager) maybeRefresh(ctx context.Context, s *Session) (*Session, error) {
	exp, ok := tokenExpiry(s.Token)
	if !ok || exp.After(m.now().Add(refreshSkew)) {
		return s, nil
	}

	var (
		res     *api.LoginResponse
		lastErr error
	)
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(3),
		retry.DelayType(retry.BackOffDelay),
	)
	err := r.Do(func() error {
		res, lastErr = m.auth.Refresh(api.WithToken(ctx, s.Token))
		return lastErr
	})
	if err != nil {
		if errors.Is(lastErr, api.ErrUnauthorized) {
			m.log.Info("token rejected on refresh, dropping session",
				zap.String("user", s.User.UserKey))
			_ = m.store.Delete(ctx, s.ID)
			return nil, ErrNotFound
		}
		m.log.Warn("token refresh failed, keeping current token", zap.Error(err))
		return s, nil
	}

	s.Token = res.Token
	if res.User.UserKey != "" {
		s.User = res.User
	}
	if err := m.store.Put(ctx, s); err != nil {
		return nil, err
	}
	m.log.Debug("token refreshed", zap.String("user", s.User.UserKey))
	return s, nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// console never validates tokens, it only schedules refreshes. Opaque
// non-JWT tokens report no expiry.
func tokenExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
