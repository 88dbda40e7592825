package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"quiz-tournament-client/internal/domain"
)

// AttemptSubmitter sends a finished answer list to the remote API.
type AttemptSubmitter interface {
	SubmitAttempt(ctx context.Context, tournamentID string, answers []string) (domain.SubmitResult, error)
}

// ControllerConfig holds everything a quiz session needs. Questions must not be empty
// and PassingPercentage must already have any default applied.
type ControllerConfig struct {
	Tournament        domain.Tournament
	Questions         []domain.Question
	PassingPercentage int
	Submitter         AttemptSubmitter
	Clock             clockwork.Clock
	Logger            *slog.Logger
}

// QuizController walks a player through a fixed sequence of questions:
//
//	NotStarted -> InProgress(i) -> Submitting -> Completed | Failed
//
// Selections stay pending until the player moves on. Submission is at-most-once:
// a repeated Submit waits for or returns the first outcome instead of calling
// the API again. Failed sessions may be resubmitted with the buffered answers.
type QuizController struct {
	tournament domain.Tournament
	questions  []domain.Question
	passing    int
	submitter  AttemptSubmitter
	clock      clockwork.Clock
	logger     *slog.Logger

	mu        sync.Mutex
	version   uint64
	phase     domain.Phase
	current   int
	pending   string
	answers   map[int]string
	submitted []string
	deadline  *time.Time
	timer     clockwork.Timer
	done      chan struct{}
	outcome   *domain.AttemptOutcome
	err       error

	// queued snapshots are appended under mu in version order and handed to
	// observers by one goroutine at a time.
	queued     []domain.SessionSnapshot
	delivering bool

	observersMu sync.Mutex
	nextID      int
	observers   map[int]func(domain.SessionSnapshot)
}

func NewQuizController(cfg ControllerConfig) (*QuizController, error) {
	if len(cfg.Questions) == 0 {
		return nil, fmt.Errorf("%w: tournament %s has no questions", domain.ErrConfiguration, cfg.Tournament.ID)
	}
	if err := ValidatePassingPercentage(cfg.PassingPercentage); err != nil {
		return nil, err
	}
	if cfg.Submitter == nil {
		return nil, errors.New("quiz controller requires a submitter")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &QuizController{
		tournament: cfg.Tournament,
		questions:  append([]domain.Question(nil), cfg.Questions...),
		passing:    cfg.PassingPercentage,
		submitter:  cfg.Submitter,
		clock:      cfg.Clock,
		logger:     cfg.Logger.With(slog.String("tournament_id", cfg.Tournament.ID)),
		phase:      domain.PhaseNotStarted,
		answers:    make(map[int]string),
		observers:  make(map[int]func(domain.SessionSnapshot)),
	}, nil
}

// OnSessionChange registers fn to receive a snapshot after every state change.
// The returned function unregisters it.
func (c *QuizController) OnSessionChange(fn func(domain.SessionSnapshot)) func() {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()
	id := c.nextID
	c.nextID++
	c.observers[id] = fn
	return func() {
		c.observersMu.Lock()
		delete(c.observers, id)
		c.observersMu.Unlock()
	}
}

// Start begins the quiz. The tournament must be ongoing at the controller's clock.
func (c *QuizController) Start() error {
	return c.update("start", func() error {
		if c.phase != domain.PhaseNotStarted {
			return c.invalidLocked("start")
		}
		now := c.clock.Now()
		if status := StatusOf(c.tournament, now); status != domain.StatusOngoing {
			return fmt.Errorf("%w: tournament is %s", domain.ErrInvalidState, status)
		}
		c.phase = domain.PhaseInProgress
		c.current = 0
		c.pending = ""
		c.answers = make(map[int]string, len(c.questions))
		if limit := c.tournament.TimeLimit; limit > 0 {
			deadline := now.Add(limit)
			c.deadline = &deadline
			c.timer = c.clock.AfterFunc(limit, c.expire)
		}
		return nil
	})
}

// SelectAnswer records the pending selection for the current question.
func (c *QuizController) SelectAnswer(option string) error {
	return c.update("select", func() error {
		if c.phase != domain.PhaseInProgress {
			return c.invalidLocked("select")
		}
		q := c.questions[c.current]
		if len(q.Options) > 0 && !q.HasOption(option) {
			return fmt.Errorf("%w: %q", domain.ErrUnknownOption, option)
		}
		if option == "" {
			return fmt.Errorf("%w: empty selection", domain.ErrUnknownOption)
		}
		c.pending = option
		return nil
	})
}

// Next commits the pending selection and advances. On the last question it submits.
func (c *QuizController) Next(ctx context.Context) error {
	last := false
	err := c.update("next", func() error {
		if c.phase != domain.PhaseInProgress {
			return c.invalidLocked("next")
		}
		if c.pending == "" {
			if _, ok := c.answers[c.current]; !ok {
				return fmt.Errorf("%w: no answer selected for question %d", domain.ErrInvalidState, c.current+1)
			}
		} else {
			c.answers[c.current] = c.pending
		}
		if c.current+1 < len(c.questions) {
			c.moveLocked(c.current + 1)
			return nil
		}
		last = true
		return nil
	})
	if err != nil || !last {
		return err
	}
	_, err = c.Submit(ctx)
	return err
}

// Previous commits the pending selection, even when empty, and steps back.
func (c *QuizController) Previous() error {
	return c.update("previous", func() error {
		if c.phase != domain.PhaseInProgress {
			return c.invalidLocked("previous")
		}
		if c.current == 0 {
			return fmt.Errorf("%w: already on the first question", domain.ErrInvalidState)
		}
		c.commitLocked()
		c.moveLocked(c.current - 1)
		return nil
	})
}

// JumpTo commits the pending selection and moves to index.
func (c *QuizController) JumpTo(index int) error {
	return c.update("jump", func() error {
		if c.phase != domain.PhaseInProgress {
			return c.invalidLocked("jump")
		}
		if index < 0 || index >= len(c.questions) {
			return fmt.Errorf("%w: question %d out of range [1,%d]", domain.ErrInvalidState, index+1, len(c.questions))
		}
		c.commitLocked()
		c.moveLocked(index)
		return nil
	})
}

// Submit sends the answers. Unanswered questions are sent as empty strings so the
// list always has one entry per question. The request is not cancelled by ctx once
// it has been sent.
func (c *QuizController) Submit(ctx context.Context) (domain.AttemptOutcome, error) {
	c.mu.Lock()
	switch c.phase {
	case domain.PhaseInProgress:
		c.commitLocked()
		c.submitted = c.answerListLocked()
	case domain.PhaseFailed:
		c.logger.Info("retrying submit with buffered answers")
	case domain.PhaseSubmitting:
		done := c.done
		c.mu.Unlock()
		c.logger.Debug("submit ignored", slog.Any("reason", domain.ErrAlreadySubmitted), slog.String("phase", string(domain.PhaseSubmitting)))
		select {
		case <-done:
		case <-ctx.Done():
			return domain.AttemptOutcome{}, ctx.Err()
		}
		return c.Outcome()
	case domain.PhaseCompleted:
		outcome := *c.outcome
		c.mu.Unlock()
		c.logger.Debug("submit ignored", slog.Any("reason", domain.ErrAlreadySubmitted), slog.String("phase", string(domain.PhaseCompleted)))
		return outcome, nil
	default:
		err := c.invalidLocked("submit")
		c.mu.Unlock()
		c.logger.Warn("quiz operation rejected", slog.String("op", "submit"), slog.Any("error", err))
		return domain.AttemptOutcome{}, err
	}

	c.phase = domain.PhaseSubmitting
	c.err = nil
	c.done = make(chan struct{})
	c.stopTimerLocked()
	answers := append([]string(nil), c.submitted...)
	c.changedLocked()
	c.mu.Unlock()
	c.deliver()

	result, err := c.submitter.SubmitAttempt(context.WithoutCancel(ctx), c.tournament.ID, answers)

	c.mu.Lock()
	var outcome domain.AttemptOutcome
	if err != nil {
		c.phase = domain.PhaseFailed
		c.err = err
		c.logger.Warn("submit failed", slog.Any("error", err))
	} else {
		outcome = c.outcomeFor(result)
		c.phase = domain.PhaseCompleted
		c.outcome = &outcome
		c.logger.Info("attempt submitted",
			slog.Int("score", result.Score),
			slog.Int("total_questions", result.TotalQuestions),
			slog.Bool("passed", outcome.Result.Passed))
	}
	close(c.done)
	c.changedLocked()
	c.mu.Unlock()
	c.deliver()
	return outcome, err
}

// Outcome returns the stored result of a finished submission.
func (c *QuizController) Outcome() (domain.AttemptOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.phase {
	case domain.PhaseCompleted:
		return *c.outcome, nil
	case domain.PhaseFailed:
		return domain.AttemptOutcome{}, c.err
	}
	return domain.AttemptOutcome{}, c.invalidLocked("outcome")
}

// Discard abandons the session without side effects. It is rejected once
// submission has begun.
func (c *QuizController) Discard() error {
	return c.update("discard", func() error {
		switch c.phase {
		case domain.PhaseSubmitting:
			return c.invalidLocked("discard")
		case domain.PhaseCompleted, domain.PhaseDiscarded:
			return nil
		}
		c.stopTimerLocked()
		c.phase = domain.PhaseDiscarded
		c.pending = ""
		c.answers = make(map[int]string)
		c.submitted = nil
		c.deadline = nil
		return nil
	})
}

// Snapshot returns the current session state.
func (c *QuizController) Snapshot() domain.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Phase returns the current phase.
func (c *QuizController) Phase() domain.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// TournamentID returns the id of the tournament being played.
func (c *QuizController) TournamentID() string {
	return c.tournament.ID
}

// update runs fn under the lock and notifies observers when it succeeds.
func (c *QuizController) update(op string, fn func() error) error {
	c.mu.Lock()
	if err := fn(); err != nil {
		c.mu.Unlock()
		if errors.Is(err, domain.ErrInvalidState) {
			c.logger.Warn("quiz operation rejected", slog.String("op", op), slog.Any("error", err))
		}
		return err
	}
	c.changedLocked()
	c.mu.Unlock()
	c.deliver()
	return nil
}

// deliver drains queued snapshots to the observers. If another goroutine is
// already draining, it picks up the new snapshots and deliver returns at once,
// so observers see versions in order and never concurrently.
func (c *QuizController) deliver() {
	c.mu.Lock()
	if c.delivering {
		c.mu.Unlock()
		return
	}
	c.delivering = true
	for len(c.queued) > 0 {
		batch := c.queued
		c.queued = nil
		c.mu.Unlock()
		for _, snap := range batch {
			c.notify(snap)
		}
		c.mu.Lock()
	}
	c.delivering = false
	c.mu.Unlock()
}

func (c *QuizController) notify(snap domain.SessionSnapshot) {
	c.observersMu.Lock()
	fns := make([]func(domain.SessionSnapshot), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.observersMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

func (c *QuizController) expire() {
	c.logger.Info("time limit reached, submitting")
	if _, err := c.Submit(context.Background()); err != nil {
		c.logger.Warn("auto-submit failed", slog.Any("error", err))
	}
}

func (c *QuizController) outcomeFor(result domain.SubmitResult) domain.AttemptOutcome {
	total := result.TotalQuestions
	if total <= 0 {
		total = len(c.questions)
	}
	eval, err := Evaluate(result.Score, total, c.passing)
	if err != nil {
		c.logger.Error("evaluate submitted attempt", slog.Any("error", err))
	} else if eval.Passed != result.Passed {
		c.logger.Warn("client evaluation disagrees with api verdict",
			slog.Bool("api_passed", result.Passed),
			slog.Bool("client_passed", eval.Passed),
			slog.Int("required_score", eval.RequiredScore))
	}
	return domain.AttemptOutcome{Result: result, Evaluation: eval}
}

// commitLocked stores the pending selection for the current index. An empty
// selection clears any stale answer.
func (c *QuizController) commitLocked() {
	if c.pending == "" {
		delete(c.answers, c.current)
		return
	}
	c.answers[c.current] = c.pending
}

func (c *QuizController) moveLocked(index int) {
	c.current = index
	c.pending = c.answers[index]
}

func (c *QuizController) answerListLocked() []string {
	list := make([]string, len(c.questions))
	for i := range list {
		list[i] = c.answers[i]
	}
	return list
}

func (c *QuizController) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *QuizController) invalidLocked(op string) error {
	return fmt.Errorf("%w: cannot %s while %s", domain.ErrInvalidState, op, c.phase)
}

// changedLocked bumps the version and queues the new snapshot for observers.
func (c *QuizController) changedLocked() {
	c.version++
	c.queued = append(c.queued, c.snapshotLocked())
}

func (c *QuizController) snapshotLocked() domain.SessionSnapshot {
	answers := make(map[int]string, len(c.answers))
	for i, a := range c.answers {
		answers[i] = a
	}
	snap := domain.SessionSnapshot{
		Version:       c.version,
		TournamentID:  c.tournament.ID,
		Phase:         c.phase,
		CurrentIndex:  c.current,
		Total:         len(c.questions),
		Pending:       c.pending,
		Answers:       answers,
		AnsweredCount: len(answers),
	}
	if c.phase == domain.PhaseInProgress {
		q := c.questions[c.current]
		q.CorrectAnswer = ""
		snap.Question = &q
	}
	if c.deadline != nil {
		d := *c.deadline
		snap.Deadline = &d
	}
	if c.submitted != nil {
		snap.Submitted = append([]string(nil), c.submitted...)
	}
	if c.outcome != nil {
		o := *c.outcome
		snap.Outcome = &o
	}
	if c.err != nil {
		snap.Error = c.err.Error()
	}
	return snap
}
