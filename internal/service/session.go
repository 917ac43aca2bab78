package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yardline/marketclient/internal/domain"
	"github.com/yardline/marketclient/internal/event"
	"github.com/yardline/marketclient/internal/repository"
	apperrors "github.com/yardline/marketclient/pkg/errors"
	"github.com/yardline/marketclient/pkg/logger"
)

// SessionManager owns the current identity and its persisted copy.
type SessionManager struct {
	store      repository.KeyValueStore
	bus        event.Publisher
	logger     *slog.Logger
	offlineLog *slog.Logger
	now        func() time.Time

	// persistMu orders Restore, Login and Logout end to end, so the stored
	// pair always matches the last transition. Subscribers to
	// session.changed must not call back into them.
	persistMu sync.Mutex

	mu      sync.RWMutex
	session domain.Session
}

// NewSessionManager creates a manager holding the anonymous session. Call
// Restore once at startup.
func NewSessionManager(store repository.KeyValueStore, bus event.Publisher, log *slog.Logger) *SessionManager {
	return &SessionManager{
		store:      store,
		bus:        bus,
		logger:     log,
		offlineLog: logger.WithChannel(log, logger.ChannelOfflineFallback),
		now:        time.Now,
		session:    domain.AnonymousSession(),
	}
}

// Restore loads the persisted session. It never fails: unreadable, partial
// or expired state is cleared and the anonymous session is kept.
func (m *SessionManager) Restore(ctx context.Context) domain.Session {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	// Older seller flows left a second copy of the token behind.
	if err := m.store.Delete(ctx, repository.KeyLegacySellerToken); err != nil {
		m.logger.WarnContext(ctx, "failed to remove legacy seller token",
			slog.String("error", err.Error()),
		)
	}

	s, err := m.load(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "discarding persisted session",
			slog.String("error", err.Error()),
		)
		if err := m.store.Delete(ctx, repository.SessionKeys...); err != nil {
			m.logger.ErrorContext(ctx, "failed to clear persisted session",
				slog.String("error", err.Error()),
			)
		}
		s = domain.AnonymousSession()
	}

	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	if s.IsAuthenticated() {
		m.logger.InfoContext(ctx, "session restored",
			slog.String("user_id", s.User.ID),
			slog.String("mode", string(s.Mode)),
		)
		if s.IsOffline() {
			m.offlineLog.WarnContext(ctx, "restored an offline session; backend calls will not carry a token",
				slog.String("user_id", s.User.ID),
			)
		}
		m.publish(ctx, s)
	}
	return s.Clone()
}

// load reads the persisted pair. A nil error with an anonymous session means
// nothing was stored.
func (m *SessionManager) load(ctx context.Context) (domain.Session, error) {
	token, err := m.store.Get(ctx, repository.KeyToken)
	if errors.Is(err, apperrors.ErrNotFound) {
		return domain.AnonymousSession(), nil
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("read token: %w", err)
	}
	if token == "" {
		return domain.Session{}, errors.New("stored token is empty")
	}

	raw, err := m.store.Get(ctx, repository.KeyUser)
	if err != nil {
		return domain.Session{}, fmt.Errorf("read user: %w", err)
	}
	var user domain.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return domain.Session{}, fmt.Errorf("parse user: %w", err)
	}
	if user.ID == "" {
		return domain.Session{}, errors.New("stored user has no id")
	}

	if domain.ModeForToken(token) == domain.SessionOnline {
		if err := m.checkExpiry(token); err != nil {
			return domain.Session{}, err
		}
	}
	return domain.NewSession(token, user), nil
}

// checkExpiry rejects JWTs whose exp is in the past. The signature is not
// checked here; the backend does that. Opaque tokens pass.
func (m *SessionManager) checkExpiry(token string) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return fmt.Errorf("read token expiry: %w", err)
	}
	if exp != nil && !exp.After(m.now()) {
		return fmt.Errorf("token expired at %s", exp.UTC().Format(time.RFC3339))
	}
	return nil
}

// Login replaces the current session and persists it. A failure to persist
// is logged; the in-memory session stays valid until the process exits.
func (m *SessionManager) Login(ctx context.Context, token string, user domain.User) (domain.Session, error) {
	if token == "" || user.ID == "" {
		return domain.Session{}, apperrors.InvalidInput("a session needs both a token and a user")
	}
	if user.Role == "" {
		user.Role = domain.RoleBuyer
	}
	s := domain.NewSession(token, user)

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	raw, err := json.Marshal(user)
	if err == nil {
		err = m.store.SetMany(ctx, map[string]string{
			repository.KeyToken: token,
			repository.KeyUser:  string(raw),
		})
	}
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to persist session",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	if s.IsOffline() {
		m.offlineLog.WarnContext(ctx, "offline session started; this identity was not issued by the backend",
			slog.String("user_id", user.ID),
			slog.String("username", user.Username),
		)
	} else {
		m.logger.InfoContext(ctx, "session started",
			slog.String("user_id", user.ID),
			slog.String("role", string(user.Role)),
		)
	}

	m.publish(ctx, s)
	return s.Clone(), nil
}

// Logout clears the session and every persisted key.
func (m *SessionManager) Logout(ctx context.Context) {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	prev := m.session
	m.session = domain.AnonymousSession()
	m.mu.Unlock()

	if err := m.store.Delete(ctx, repository.SessionKeys...); err != nil {
		m.logger.ErrorContext(ctx, "failed to clear persisted session",
			slog.String("error", err.Error()),
		)
	}

	if prev.IsAuthenticated() {
		m.logger.InfoContext(ctx, "session ended", slog.String("user_id", prev.User.ID))
	}
	m.publish(ctx, domain.AnonymousSession())
}

// Current returns a snapshot of the session.
func (m *SessionManager) Current() domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Clone()
}

// Token returns the current token, or "" when anonymous.
func (m *SessionManager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Token
}

func (m *SessionManager) publish(ctx context.Context, s domain.Session) {
	e := event.Event{Topic: event.TopicSessionChanged, Data: event.NewSessionChanged(s)}
	if s.User != nil {
		e.Subject = s.User.ID
	}
	m.bus.Publish(ctx, e)
}
