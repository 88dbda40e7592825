package memory

import (
	"sync"

	"quiz-tournament-client/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.QuizController
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.QuizController),
	}
}

func (s *SessionStore) Put(sessionID string, controller *app.QuizController) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = controller
}

func (s *SessionStore) Get(sessionID string) (*app.QuizController, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
