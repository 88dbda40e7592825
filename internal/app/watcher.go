package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"quiz-tournament-client/internal/domain"
)

// StatusChange is emitted when a watched tournament's status changes. The first
// poll of a watch reports the initial status with an empty From.
type StatusChange struct {
	TournamentID string                  `json:"tournamentId"`
	From         domain.TournamentStatus `json:"from"`
	To           domain.TournamentStatus `json:"to"`
	At           time.Time               `json:"at"`
}

type watch struct {
	tournamentID string
	notify       func(StatusChange)
	last         domain.TournamentStatus
}

// StatusWatcher polls watched tournaments and reports status transitions.
type StatusWatcher struct {
	tournaments TournamentRepository
	clock       clockwork.Clock
	interval    time.Duration
	logger      *slog.Logger
	scheduler   gocron.Scheduler

	mu      sync.Mutex
	nextID  int
	watches map[int]*watch
}

func NewStatusWatcher(tournaments TournamentRepository, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) (*StatusWatcher, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	scheduler, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &StatusWatcher{
		tournaments: tournaments,
		clock:       clock,
		interval:    interval,
		logger:      logger,
		scheduler:   scheduler,
		watches:     make(map[int]*watch),
	}, nil
}

// Start schedules polling every interval, beginning immediately.
func (w *StatusWatcher) Start() error {
	_, err := w.scheduler.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() { w.Poll(context.Background()) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule status poll: %w", err)
	}
	w.scheduler.Start()
	w.logger.Info("status watcher started", slog.Duration("interval", w.interval))
	return nil
}

// Stop shuts the scheduler down.
func (w *StatusWatcher) Stop() error {
	return w.scheduler.Shutdown()
}

// Watch registers notify for status changes of a tournament.
func (w *StatusWatcher) Watch(tournamentID string, notify func(StatusChange)) (cancel func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.watches[id] = &watch{tournamentID: tournamentID, notify: notify}
	return func() {
		w.mu.Lock()
		delete(w.watches, id)
		w.mu.Unlock()
	}
}

// Poll resolves every watched tournament's status once.
func (w *StatusWatcher) Poll(ctx context.Context) {
	w.mu.Lock()
	watches := make([]*watch, 0, len(w.watches))
	for _, wt := range w.watches {
		watches = append(watches, wt)
	}
	w.mu.Unlock()

	now := w.clock.Now()
	for _, wt := range watches {
		t, err := w.tournaments.GetTournament(ctx, wt.tournamentID)
		if err != nil {
			w.logger.Warn("status poll failed", slog.String("tournament_id", wt.tournamentID), slog.Any("error", err))
			continue
		}
		status := StatusOf(t, now)

		w.mu.Lock()
		from := wt.last
		changed := from != status
		wt.last = status
		w.mu.Unlock()

		if changed {
			wt.notify(StatusChange{TournamentID: wt.tournamentID, From: from, To: status, At: now})
		}
	}
}
