package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-tournament-client/internal/domain"
)

func TestTournamentRepositoryCaches(t *testing.T) {
	loader := &countingLoader{TournamentLoader: sampleLoader()}
	repo := NewTournamentRepository(loader, time.Minute)
	ctx := context.Background()

	if _, err := repo.GetTournament(ctx, "t1"); err != nil {
		t.Fatalf("get tournament: %v", err)
	}
	if _, err := repo.GetTournament(ctx, "t1"); err != nil {
		t.Fatalf("get tournament 2: %v", err)
	}
	if loader.tournamentCalls() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.tournamentCalls())
	}

	questions, err := repo.GetQuestions(ctx, "t1")
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	questions[0].Question = "mutated"
	again, _ := repo.GetQuestions(ctx, "t1")
	if again[0].Question == "mutated" {
		t.Fatalf("cached questions must not be shared with callers")
	}
}

func TestTournamentRepositoryExpiresAndInvalidates(t *testing.T) {
	loader := &countingLoader{TournamentLoader: sampleLoader()}
	repo := NewTournamentRepository(loader, time.Minute)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }
	ctx := context.Background()

	_, _ = repo.GetTournament(ctx, "t1")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetTournament(ctx, "t1")
	if loader.tournamentCalls() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.tournamentCalls())
	}

	repo.Invalidate(ctx, "t1")
	_, _ = repo.GetTournament(ctx, "t1")
	if loader.tournamentCalls() != 3 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.tournamentCalls())
	}
}

func TestTournamentRepositoryDoesNotCacheErrors(t *testing.T) {
	loader := &countingLoader{TournamentLoader: sampleLoader()}
	repo := NewTournamentRepository(loader, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := repo.GetTournament(context.Background(), "missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if loader.tournamentCalls() != 2 {
		t.Fatalf("expected errors to bypass the cache, loader calls %d", loader.tournamentCalls())
	}
}

type countingLoader struct {
	TournamentLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadTournament(ctx context.Context, id string) (domain.Tournament, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.TournamentLoader.LoadTournament(ctx, id)
}

func (l *countingLoader) tournamentCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func sampleLoader() *StaticLoader {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return NewStaticLoader(
		map[string]domain.Tournament{
			"t1": {ID: "t1", Name: "Capital Cities Cup", StartDate: start, EndDate: start.Add(6 * time.Hour)},
		},
		map[string][]domain.Question{
			"t1": {
				{ID: "q1", Question: "Capital of France?", Options: []string{"Paris", "Berlin"}},
				{ID: "q2", Question: "Capital of Italy?", Options: []string{"Rome", "Milan"}},
			},
		},
	)
}
