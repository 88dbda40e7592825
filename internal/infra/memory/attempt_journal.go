package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-tournament-client/internal/domain"
)

// AttemptJournal keeps completed attempts in process memory.
type AttemptJournal struct {
	mu       sync.RWMutex
	attempts []domain.Attempt
}

func NewAttemptJournal() *AttemptJournal {
	return &AttemptJournal{}
}

func (j *AttemptJournal) Record(_ context.Context, attempt domain.Attempt) error {
	attempt.Answers = append([]string(nil), attempt.Answers...)
	j.mu.Lock()
	j.attempts = append(j.attempts, attempt)
	j.mu.Unlock()
	return nil
}

// ListByUser returns the user's attempts, newest first.
func (j *AttemptJournal) ListByUser(_ context.Context, userID string) ([]domain.Attempt, error) {
	j.mu.RLock()
	out := make([]domain.Attempt, 0, len(j.attempts))
	for _, a := range j.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	j.mu.RUnlock()
	sort.SliceStable(out, func(i, k int) bool {
		return out[i].CompletedAt.After(out[k].CompletedAt)
	})
	return out, nil
}
