package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidToken is returned when a token is malformed or already expired
var ErrInvalidToken = errors.New("invalid or expired access token")

// ErrSubjectMismatch is returned when a token for another user is offered to
// a session that is already bound to a subject
var ErrSubjectMismatch = errors.New("access token belongs to a different user")

// User is the identity decoded from the access token claims
type User struct {
	Subject  string `json:"sub"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Session holds the bearer credential used for inventory API calls and
// tells interested parties when it stops being valid
type Session struct {
	mu          sync.RWMutex
	token       string
	user        User
	invalidated bool
	// owner is the subject of the first accepted token. It survives
	// invalidation so only the same user can sign the session back in.
	owner      string
	bound      bool
	hooks      map[int]func(reason string)
	nextHookID int
	now        func() time.Time
}

// New creates an empty session
func New() *Session {
	return &Session{
		hooks: make(map[int]func(reason string)),
		now:   time.Now,
	}
}

// NewWithToken creates a session from an existing access token
func NewWithToken(token string) (*Session, error) {
	s := New()
	if err := s.SetToken(token); err != nil {
		return nil, err
	}
	return s, nil
}

// IsValidToken accepts three-part JWTs whose exp claim, when present, lies in the future.
// The signature is not checked; the inventory API does that.
func IsValidToken(token string, now time.Time) bool {
	_, err := parseClaims(token, now)
	return err == nil
}

func parseClaims(token string, now time.Time) (jwt.MapClaims, error) {
	if len(strings.Split(token, ".")) != 3 {
		return nil, ErrInvalidToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !claims.VerifyExpiresAt(now.Unix(), false) {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// SetToken stores a new access token and re-arms the invalidation hooks.
// Once bound, the session only accepts tokens for the same subject.
func (s *Session) SetToken(token string) error {
	claims, err := parseClaims(token, s.now())
	if err != nil {
		return err
	}

	user := User{}
	if sub, ok := claims["sub"].(string); ok {
		user.Subject = sub
	}
	if name, ok := claims["username"].(string); ok {
		user.Username = name
	}
	if role, ok := claims["role"].(string); ok {
		user.Role = role
	}

	s.mu.Lock()
	if s.bound && user.Subject != s.owner {
		s.mu.Unlock()
		slog.Warn("Rejected token for a different subject", "subject", user.Subject)
		return ErrSubjectMismatch
	}
	s.owner = user.Subject
	s.bound = true
	s.token = token
	s.user = user
	s.invalidated = false
	s.mu.Unlock()

	slog.Debug("Session token stored", "subject", user.Subject, "username", user.Username)
	return nil
}

// Token returns the current bearer token, or "" when unauthenticated
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the identity decoded from the current token
func (s *Session) User() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Authenticated reports whether a non-expired token is held
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	return token != "" && IsValidToken(token, s.now())
}

// OnInvalidated registers fn to run when the session is lost. The returned
// function unregisters it.
func (s *Session) OnInvalidated(fn func(reason string)) func() {
	s.mu.Lock()
	id := s.nextHookID
	s.nextHookID++
	s.hooks[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.hooks, id)
		s.mu.Unlock()
	}
}

// Invalidate clears the credential and runs the registered hooks. Hooks run
// once per session loss no matter how many failing calls report it.
func (s *Session) Invalidate(reason string) {
	s.mu.Lock()
	if s.invalidated {
		s.mu.Unlock()
		return
	}
	s.invalidated = true
	s.token = ""
	s.user = User{}
	hooks := make([]func(string), 0, len(s.hooks))
	for _, fn := range s.hooks {
		hooks = append(hooks, fn)
	}
	s.mu.Unlock()

	slog.Warn("Session invalidated", "reason", reason)

	for _, fn := range hooks {
		fn(reason)
	}
}

// Invalidated reports whether the session was lost and not re-established
func (s *Session) Invalidated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.invalidated
}
