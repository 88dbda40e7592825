package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quiz-tournament-client/internal/domain"
)

type stubLoader struct {
	mu              sync.Mutex
	tournamentCalls int
	questionCalls   int
}

func (l *stubLoader) LoadTournament(_ context.Context, id string) (domain.Tournament, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tournamentCalls++
	if id != "t1" {
		return domain.Tournament{}, fmt.Errorf("tournament %s: %w", id, domain.ErrNotFound)
	}
	passing := 60
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return domain.Tournament{ID: "t1", Name: "Capital Cities Cup", StartDate: start, EndDate: start.Add(time.Hour), MinimumPassingScore: &passing}, nil
}

func (l *stubLoader) LoadQuestions(_ context.Context, _ string) ([]domain.Question, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.questionCalls++
	return []domain.Question{{ID: "q1", Question: "Capital of France?", Options: []string{"Paris", "Berlin"}}}, nil
}

func (l *stubLoader) calls() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tournamentCalls, l.questionCalls
}

func newTestRepository(t *testing.T) (*TournamentRepository, *stubLoader, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	loader := &stubLoader{}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewTournamentRepository(client, loader, time.Minute, nil), loader, mr
}

func TestTournamentRepositoryFillsCacheOnMiss(t *testing.T) {
	repo, loader, mr := newTestRepository(t)
	ctx := context.Background()

	first, err := repo.GetTournament(ctx, "t1")
	if err != nil {
		t.Fatalf("get tournament: %v", err)
	}
	if !mr.Exists("tournament:t1") {
		t.Fatalf("expected tournament to be cached")
	}
	ttl := mr.TTL("tournament:t1")
	if ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl with at most 10%% jitter, got %v", ttl)
	}

	second, err := repo.GetTournament(ctx, "t1")
	if err != nil {
		t.Fatalf("get tournament 2: %v", err)
	}
	if tc, _ := loader.calls(); tc != 1 {
		t.Fatalf("expected one load, got %d", tc)
	}
	if !second.StartDate.Equal(first.StartDate) || *second.MinimumPassingScore != 60 {
		t.Fatalf("cached tournament differs: %+v", second)
	}

	questions, err := repo.GetQuestions(ctx, "t1")
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if len(questions) != 1 || questions[0].Options[0] != "Paris" {
		t.Fatalf("unexpected questions: %+v", questions)
	}
	_, _ = repo.GetQuestions(ctx, "t1")
	if _, qc := loader.calls(); qc != 1 {
		t.Fatalf("expected one questions load, got %d", qc)
	}
}

func TestTournamentRepositoryInvalidate(t *testing.T) {
	repo, loader, mr := newTestRepository(t)
	ctx := context.Background()

	_, _ = repo.GetTournament(ctx, "t1")
	_, _ = repo.GetQuestions(ctx, "t1")
	repo.Invalidate(ctx, "t1")
	if mr.Exists("tournament:t1") || mr.Exists("tournament:t1:questions") {
		t.Fatalf("expected keys to be removed")
	}

	_, _ = repo.GetTournament(ctx, "t1")
	if tc, _ := loader.calls(); tc != 2 {
		t.Fatalf("expected reload after invalidate, got %d loads", tc)
	}
}

func TestTournamentRepositoryDropsCorruptEntries(t *testing.T) {
	repo, loader, mr := newTestRepository(t)
	if err := mr.Set("tournament:t1", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := repo.GetTournament(context.Background(), "t1")
	if err != nil {
		t.Fatalf("get tournament: %v", err)
	}
	if got.ID != "t1" {
		t.Fatalf("unexpected tournament %+v", got)
	}
	if tc, _ := loader.calls(); tc != 1 {
		t.Fatalf("expected corrupt entry to force a load, got %d", tc)
	}
}

func TestTournamentRepositoryPropagatesLoaderErrors(t *testing.T) {
	repo, _, mr := newTestRepository(t)

	_, err := repo.GetTournament(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if mr.Exists("tournament:missing") {
		t.Fatalf("errors must not be cached")
	}
}
