package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-tournament-client/internal/app"
	"quiz-tournament-client/internal/domain"
	"quiz-tournament-client/internal/infra/memory"
)

func TestStatusWatcherReportsTransitions(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testNow)
	tournament := domain.Tournament{ID: "t1", StartDate: testNow.Add(time.Minute), EndDate: testNow.Add(2 * time.Minute)}
	repo := memory.NewTournamentRepository(memory.NewStaticLoader(map[string]domain.Tournament{"t1": tournament}, nil), time.Hour)

	watcher, err := app.NewStatusWatcher(repo, time.Second, clock, nil)
	require.NoError(t, err)

	var changes []app.StatusChange
	watcher.Watch("t1", func(c app.StatusChange) { changes = append(changes, c) })
	cancelled := 0
	cancel := watcher.Watch("t1", func(app.StatusChange) { cancelled++ })
	cancel()
	ctx := context.Background()

	watcher.Poll(ctx)
	watcher.Poll(ctx)
	clock.Advance(time.Minute)
	watcher.Poll(ctx)
	clock.Advance(time.Minute + time.Millisecond)
	watcher.Poll(ctx)

	require.Len(t, changes, 3)
	assert.Equal(t, domain.TournamentStatus(""), changes[0].From)
	assert.Equal(t, domain.StatusUpcoming, changes[0].To)
	assert.Equal(t, domain.StatusUpcoming, changes[1].From)
	assert.Equal(t, domain.StatusOngoing, changes[1].To)
	assert.Equal(t, domain.StatusCompleted, changes[2].To)
	assert.Zero(t, cancelled)
}

func TestStatusWatcherPollsOnSchedule(t *testing.T) {
	now := time.Now()
	tournament := domain.Tournament{ID: "t1", StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour)}
	repo := memory.NewTournamentRepository(memory.NewStaticLoader(map[string]domain.Tournament{"t1": tournament}, nil), time.Hour)

	watcher, err := app.NewStatusWatcher(repo, 20*time.Millisecond, clockwork.NewRealClock(), nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var got []domain.TournamentStatus
	watcher.Watch("t1", func(c app.StatusChange) {
		mu.Lock()
		got = append(got, c.To)
		mu.Unlock()
	})
	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == domain.StatusOngoing
	}, 2*time.Second, 10*time.Millisecond)
}
