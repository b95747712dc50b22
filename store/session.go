package store

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	sessionKeyAuth = "auth"

	// SessionStoreName is the persistence name of the session store.
	SessionStoreName = "session"
)

// User is the authenticated identity returned by the auth collaborator.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SessionState is the value held by a SessionStore.
type SessionState struct {
	User    *User
	Token   string
	Loading bool
	Error   string
}

// IsAuthenticated is derived from token presence.
func (s SessionState) IsAuthenticated() bool { return s.Token != "" }

func (s SessionState) clone() SessionState {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// BeginAuth is the start transition shared by login and register.
func (s SessionState) BeginAuth() SessionState {
	s.Loading = true
	s.Error = ""
	return s
}

// CompleteAuth stores the credentials returned by the collaborator.
func (s SessionState) CompleteAuth(token string, user User) SessionState {
	s.Token = token
	s.User = &user
	s.Loading = false
	s.Error = ""
	return s
}

// FailAuth records msg and leaves the identity untouched.
func (s SessionState) FailAuth(msg string) SessionState {
	s.Loading = false
	s.Error = msg
	return s
}

// SessionStore owns authentication identity and token.
type SessionStore struct {
	c   *container[SessionState]
	now func() time.Time
}

// NewSessionStore returns an anonymous session store.
func NewSessionStore(log zerolog.Logger) *SessionStore {
	return &SessionStore{
		c:   newContainer(SessionStoreName, SessionState{}, log),
		now: time.Now,
	}
}

// State returns a copy of the current session.
func (s *SessionStore) State() SessionState { return s.c.snapshot() }

// Token returns the current bearer token, or "" when anonymous.
func (s *SessionStore) Token() string { return s.State().Token }

// Subscribe registers fn to observe every committed mutation.
func (s *SessionStore) Subscribe(fn func(SessionState)) (cancel func()) { return s.c.subscribe(fn) }

func (s *SessionStore) BeginLogin() Ticket {
	return s.c.begin("login", sessionKeyAuth, SessionState.BeginAuth)
}

// CompleteLogin is the only way, together with CompleteRegister, to become
// authenticated.
func (s *SessionStore) CompleteLogin(t Ticket, token string, user User) bool {
	return s.c.resolveInContext("login", PhaseSuccess, t, func(st SessionState) SessionState {
		return st.CompleteAuth(token, user)
	})
}

func (s *SessionStore) FailLogin(t Ticket, msg string) bool {
	return s.c.resolveInContext("login", PhaseFailure, t, func(st SessionState) SessionState {
		return st.FailAuth(msg)
	})
}

func (s *SessionStore) BeginRegister() Ticket {
	return s.c.begin("register", sessionKeyAuth, SessionState.BeginAuth)
}

func (s *SessionStore) CompleteRegister(t Ticket, token string, user User) bool {
	return s.c.resolveInContext("register", PhaseSuccess, t, func(st SessionState) SessionState {
		return st.CompleteAuth(token, user)
	})
}

func (s *SessionStore) FailRegister(t Ticket, msg string) bool {
	return s.c.resolveInContext("register", PhaseFailure, t, func(st SessionState) SessionState {
		return st.FailAuth(msg)
	})
}

// Logout resets to anonymous defaults and retires any pending login or
// register so a late success cannot re-authenticate.
func (s *SessionStore) Logout() {
	s.c.commit("logout", PhaseLocal, func(g *generations, _ SessionState) (SessionState, bool) {
		g.reset()
		return SessionState{}, true
	})
}

func (s *SessionStore) ClearError() {
	s.c.apply("clear_error", PhaseLocal, func(st SessionState) SessionState {
		st.Error = ""
		return st
	})
}

// persistedSession is the durable shape; loading and error flags are never
// written.
type persistedSession struct {
	User  *User  `json:"user,omitempty"`
	Token string `json:"token,omitempty"`
}

// PersistName implements persist.Persistable.
func (s *SessionStore) PersistName() string { return SessionStoreName }

// Snapshot encodes the durable part of the session.
func (s *SessionStore) Snapshot() (json.RawMessage, error) {
	st := s.State()
	return json.Marshal(persistedSession{User: st.User, Token: st.Token})
}

// Restore replaces the session with a persisted value. A JWT whose exp claim
// has passed is rejected so the caller keeps anonymous defaults.
func (s *SessionStore) Restore(raw json.RawMessage) error {
	var p persistedSession
	if err := json.Unmarshal(raw, &p); err != nil {
		return errors.Wrap(err, "decode session")
	}
	if p.Token == "" {
		if p.User != nil {
			return errors.New("session has a user but no token")
		}
		return nil
	}
	if expired(p.Token, s.now()) {
		return ErrSessionExpired
	}
	s.c.apply("restore", PhaseLocal, func(SessionState) SessionState {
		return SessionState{User: p.User, Token: p.Token}
	})
	return nil
}

// OnChange implements persist.Persistable.
func (s *SessionStore) OnChange(fn func()) (cancel func()) {
	return s.c.subscribe(func(SessionState) { fn() })
}

// expired reports whether token is a JWT carrying an exp claim before now.
// Tokens that are not JWTs are opaque and never considered expired.
func expired(token string, now time.Time) bool {
	if strings.Count(token, ".") != 2 {
		return false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !claims.ExpiresAt.After(now)
}
