package domain

import "strings"

// SessionMode distinguishes real backend sessions from identities minted
// locally when the backend was unreachable.
type SessionMode string

const (
	SessionAnonymous SessionMode = "anonymous"
	SessionOnline    SessionMode = "online"
	SessionOffline   SessionMode = "offline"
)

// OfflineTokenPrefix marks tokens that were never issued by the backend.
const OfflineTokenPrefix = "offline-"

// Session is the identity held by the client. User is non-nil iff Token is
// non-empty.
type Session struct {
	Token string      `json:"token,omitempty"`
	User  *User       `json:"user,omitempty"`
	Mode  SessionMode `json:"mode"`
}

// AnonymousSession returns the empty session.
func AnonymousSession() Session {
	return Session{Mode: SessionAnonymous}
}

// NewSession builds a session for token and user, deriving the mode from the
// token.
func NewSession(token string, user User) Session {
	u := user
	return Session{Token: token, User: &u, Mode: ModeForToken(token)}
}

// ModeForToken returns SessionOffline for locally minted tokens.
func ModeForToken(token string) SessionMode {
	switch {
	case token == "":
		return SessionAnonymous
	case strings.HasPrefix(token, OfflineTokenPrefix):
		return SessionOffline
	default:
		return SessionOnline
	}
}

// IsAuthenticated reports whether the session carries an identity.
func (s Session) IsAuthenticated() bool {
	return s.Token != "" && s.User != nil
}

// IsOffline reports whether the identity was minted without the backend.
func (s Session) IsOffline() bool {
	return s.Mode == SessionOffline
}

// CanSell derives seller access from the user's role.
func (s Session) CanSell() bool {
	return s.IsAuthenticated() && s.User.CanSell()
}

// Clone returns a deep copy so callers cannot mutate manager state.
func (s Session) Clone() Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}
