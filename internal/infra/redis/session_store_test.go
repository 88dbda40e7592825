package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quiz-tournament-client/internal/app"
	"quiz-tournament-client/internal/domain"
)

type noopSubmitter struct{}

func (noopSubmitter) SubmitAttempt(context.Context, string, []string) (domain.SubmitResult, error) {
	return domain.SubmitResult{}, nil
}

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute, nil)

	controller, err := app.NewQuizController(app.ControllerConfig{
		Tournament:        domain.Tournament{ID: "t1"},
		Questions:         []domain.Question{{ID: "q1", Options: []string{"a", "b"}}},
		PassingPercentage: 50,
		Submitter:         noopSubmitter{},
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}

	store.Put("session-1", controller)
	got, err := mr.Get("quiz:session:session-1")
	if err != nil {
		t.Fatalf("expected redis key to be set: %v", err)
	}
	if got != "t1" {
		t.Fatalf("expected marker to hold tournament id, got %q", got)
	}
	if ttl := mr.TTL("quiz:session:session-1"); ttl != time.Minute {
		t.Fatalf("expected ttl of a minute, got %v", ttl)
	}
	if c, ok := store.Get("session-1"); !ok || c != controller {
		t.Fatalf("expected controller to be stored locally")
	}

	store.Delete("session-1")
	if mr.Exists("quiz:session:session-1") {
		t.Fatalf("expected redis key to be removed")
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
}
