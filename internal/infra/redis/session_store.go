package redis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-tournament-client/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Controllers live in a local map; Redis only carries a liveness marker per
// session (value: tournament id) so operators can see what is being played.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	logger   *slog.Logger
	mu       sync.RWMutex
	sessions map[string]*app.QuizController
}

func NewSessionStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		logger:   logger,
		sessions: make(map[string]*app.QuizController),
	}
}

func (s *SessionStore) Put(sessionID string, controller *app.QuizController) {
	s.mu.Lock()
	s.sessions[sessionID] = controller
	s.mu.Unlock()
	// best-effort liveness marker
	if err := s.client.Set(context.Background(), s.key(sessionID), controller.TournamentID(), s.ttl).Err(); err != nil {
		s.logger.Warn("mark session live", slog.String("session_id", sessionID), slog.Any("error", err))
	}
}

func (s *SessionStore) Get(sessionID string) (*app.QuizController, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	controller, ok := s.sessions[sessionID]
	return controller, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := s.client.Del(context.Background(), s.key(sessionID)).Err(); err != nil {
		s.logger.Warn("clear session marker", slog.String("session_id", sessionID), slog.Any("error", err))
	}
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}
