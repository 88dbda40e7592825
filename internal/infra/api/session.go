package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quiz-tournament-client/internal/domain"
)

// RoleAdmin is the role claim that unlocks tournament administration.
const RoleAdmin = "admin"

// Session holds the auth token of the logged-in user. It is created empty, filled
// by Login and cleared by Logout, and handed to the Client by reference.
type Session struct {
	mu     sync.RWMutex
	token  string
	claims sessionClaims
}

type sessionClaims struct {
	UserID string `json:"userId,omitempty"`
	Role   string `json:"role,omitempty"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func NewSession() *Session {
	return &Session{}
}

// SetToken stores token and decodes its claims. The signature is not verified
// here; the API verifies every request.
func (s *Session) SetToken(token string) error {
	var claims sessionClaims
	if token != "" {
		if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
			return fmt.Errorf("%w: malformed token: %v", domain.ErrUnauthorized, err)
		}
		if claims.UserID == "" {
			claims.UserID = claims.Subject
		}
	}
	s.mu.Lock()
	s.token = token
	s.claims = claims
	s.mu.Unlock()
	return nil
}

// Clear forgets the token.
func (s *Session) Clear() {
	s.mu.Lock()
	s.token = ""
	s.claims = sessionClaims{}
	s.mu.Unlock()
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claims.UserID
}

func (s *Session) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claims.Role
}

func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claims.Name
}

func (s *Session) IsAdmin() bool {
	return s.Role() == RoleAdmin
}

// Authenticated reports whether the session holds a token that has not expired at now.
func (s *Session) Authenticated(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return false
	}
	if s.claims.ExpiresAt != nil && !now.Before(s.claims.ExpiresAt.Time) {
		return false
	}
	return true
}

// ExpiresAt returns the token expiry, if the token carries one.
func (s *Session) ExpiresAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return s.claims.ExpiresAt.Time, true
}
