package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jonboulle/clockwork"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"quiz-tournament-client/internal/domain"
)

// DefaultPassingPercentage is applied when a tournament record has no passing score.
const DefaultPassingPercentage = 70

// TournamentRepository loads tournament content (from cache/backing store).
type TournamentRepository interface {
	GetTournament(ctx context.Context, id string) (domain.Tournament, error)
	GetQuestions(ctx context.Context, tournamentID string) ([]domain.Question, error)
	Invalidate(ctx context.Context, id string)
}

// TournamentAdmin covers the administrator endpoints of the API.
type TournamentAdmin interface {
	ListTournaments(ctx context.Context) ([]domain.Tournament, error)
	CreateTournament(ctx context.Context, draft domain.TournamentDraft) (domain.Tournament, error)
	UpdateTournament(ctx context.Context, id string, update domain.TournamentUpdate) (domain.Tournament, error)
}

// Likes is a pass-through to the like endpoints.
type Likes interface {
	LikeTournament(ctx context.Context, id string) error
	GetLikeCount(ctx context.Context, id string) (int, error)
}

// AttemptJournal keeps the completed attempts of this client.
type AttemptJournal interface {
	Record(ctx context.Context, attempt domain.Attempt) error
	ListByUser(ctx context.Context, userID string) ([]domain.Attempt, error)
}

// Identity is the logged-in user as seen by the service.
type Identity interface {
	UserID() string
	IsAdmin() bool
}

// ServiceConfig wires a TournamentService. Journal and Identity are optional.
type ServiceConfig struct {
	Tournaments              TournamentRepository
	Submitter                AttemptSubmitter
	Admin                    TournamentAdmin
	Likes                    Likes
	Journal                  AttemptJournal
	Identity                 Identity
	Clock                    clockwork.Clock
	Logger                   *slog.Logger
	// DefaultPassingPercentage applies to tournaments without a passing score.
	// Nil means DefaultPassingPercentage.
	DefaultPassingPercentage *int
}

// TournamentService contains the tournament use cases around the quiz core.
type TournamentService struct {
	tournaments    TournamentRepository
	submitter      AttemptSubmitter
	admin          TournamentAdmin
	likes          Likes
	journal        AttemptJournal
	identity       Identity
	clock          clockwork.Clock
	logger         *slog.Logger
	defaultPassing int
}

func NewTournamentService(cfg ServiceConfig) *TournamentService {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	defaultPassing := DefaultPassingPercentage
	if cfg.DefaultPassingPercentage != nil {
		defaultPassing = *cfg.DefaultPassingPercentage
	}
	return &TournamentService{
		tournaments:    cfg.Tournaments,
		submitter:      cfg.Submitter,
		admin:          cfg.Admin,
		likes:          cfg.Likes,
		journal:        cfg.Journal,
		identity:       cfg.Identity,
		clock:          cfg.Clock,
		logger:         cfg.Logger,
		defaultPassing: defaultPassing,
	}
}

// PlayableTournament is a tournament whose configuration has been validated once
// at load time.
type PlayableTournament struct {
	Tournament        domain.Tournament
	Questions         []domain.Question
	PassingPercentage int
}

// Load fetches a tournament with its questions and validates that it can be played.
func (s *TournamentService) Load(ctx context.Context, id string) (PlayableTournament, error) {
	t, err := s.tournaments.GetTournament(ctx, id)
	if err != nil {
		return PlayableTournament{}, err
	}
	questions, err := s.tournaments.GetQuestions(ctx, id)
	if err != nil {
		return PlayableTournament{}, err
	}
	if len(questions) == 0 {
		return PlayableTournament{}, fmt.Errorf("%w: tournament %s has no questions", domain.ErrConfiguration, id)
	}
	if !t.EndDate.After(t.StartDate) {
		return PlayableTournament{}, fmt.Errorf("%w: tournament %s ends before it starts", domain.ErrConfiguration, id)
	}
	passing := s.passingPercentage(t)
	if err := ValidatePassingPercentage(passing); err != nil {
		return PlayableTournament{}, err
	}
	return PlayableTournament{Tournament: t, Questions: questions, PassingPercentage: passing}, nil
}

// Play loads a tournament and returns a new quiz session for it. Completed
// attempts are appended to the journal.
func (s *TournamentService) Play(ctx context.Context, id string) (*QuizController, error) {
	playable, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	controller, err := NewQuizController(ControllerConfig{
		Tournament:        playable.Tournament,
		Questions:         playable.Questions,
		PassingPercentage: playable.PassingPercentage,
		Submitter:         s.submitter,
		Clock:             s.clock,
		Logger:            s.logger,
	})
	if err != nil {
		return nil, err
	}
	if s.journal != nil {
		var once sync.Once
		controller.OnSessionChange(func(snap domain.SessionSnapshot) {
			if snap.Phase != domain.PhaseCompleted || snap.Outcome == nil {
				return
			}
			once.Do(func() { s.record(snap) })
		})
	}
	return controller, nil
}

func (s *TournamentService) record(snap domain.SessionSnapshot) {
	attempt := domain.Attempt{
		ID:             uuid.NewString(),
		TournamentID:   snap.TournamentID,
		UserID:         s.userID(),
		Answers:        snap.Submitted,
		Score:          snap.Outcome.Result.Score,
		TotalQuestions: snap.Outcome.Result.TotalQuestions,
		Passed:         snap.Outcome.Result.Passed,
		CompletedAt:    s.clock.Now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.journal.Record(ctx, attempt); err != nil {
		s.logger.Error("record attempt", slog.String("tournament_id", attempt.TournamentID), slog.Any("error", err))
	}
}

// Status resolves the tournament's status at the current time.
func (s *TournamentService) Status(ctx context.Context, id string) (domain.TournamentStatus, error) {
	t, err := s.tournaments.GetTournament(ctx, id)
	if err != nil {
		return "", err
	}
	return StatusOf(t, s.clock.Now()), nil
}

// Now returns the service clock's current time.
func (s *TournamentService) Now() time.Time {
	return s.clock.Now()
}

// Get returns a tournament by id.
func (s *TournamentService) Get(ctx context.Context, id string) (domain.Tournament, error) {
	return s.tournaments.GetTournament(ctx, id)
}

// List returns all tournaments.
func (s *TournamentService) List(ctx context.Context) ([]domain.Tournament, error) {
	return s.admin.ListTournaments(ctx)
}

// Find looks a tournament up by id, then by the slug or exact name.
func (s *TournamentService) Find(ctx context.Context, ref string) (domain.Tournament, error) {
	t, err := s.tournaments.GetTournament(ctx, ref)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Tournament{}, err
	}
	all, err := s.admin.ListTournaments(ctx)
	if err != nil {
		return domain.Tournament{}, err
	}
	for _, candidate := range all {
		if slug.Make(candidate.Name) == ref || strings.EqualFold(candidate.Name, ref) {
			return candidate, nil
		}
	}
	return domain.Tournament{}, fmt.Errorf("tournament %q: %w", ref, domain.ErrNotFound)
}

// Search ranks tournaments whose names fuzzily match term, best match first.
func (s *TournamentService) Search(ctx context.Context, term string) ([]domain.Tournament, error) {
	all, err := s.admin.ListTournaments(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(all))
	for i, t := range all {
		names[i] = t.Name
	}
	ranks := fuzzy.RankFindNormalizedFold(term, names)
	sort.Stable(ranks)
	found := make([]domain.Tournament, 0, len(ranks))
	for _, r := range ranks {
		found = append(found, all[r.OriginalIndex])
	}
	return found, nil
}

// Create validates an administrator's draft and creates the tournament.
func (s *TournamentService) Create(ctx context.Context, draft domain.TournamentDraft) (domain.Tournament, error) {
	if err := s.requireAdmin(); err != nil {
		return domain.Tournament{}, err
	}
	draft.Name = strings.TrimSpace(draft.Name)
	if draft.Name == "" {
		return domain.Tournament{}, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if !draft.Difficulty.Valid() {
		return domain.Tournament{}, fmt.Errorf("%w: difficulty %q must be easy, medium or hard", domain.ErrValidation, draft.Difficulty)
	}
	if !draft.EndDate.After(draft.StartDate) {
		return domain.Tournament{}, domain.ErrInvalidDateRange
	}
	if draft.MinimumPassingScore == nil {
		p := s.defaultPassing
		draft.MinimumPassingScore = &p
	}
	if p := *draft.MinimumPassingScore; p < 0 || p > 100 {
		return domain.Tournament{}, fmt.Errorf("%w: minimum passing score %d must be between 0 and 100", domain.ErrValidation, p)
	}
	t, err := s.admin.CreateTournament(ctx, draft)
	if err != nil {
		return domain.Tournament{}, err
	}
	s.logger.Info("tournament created", slog.String("tournament_id", t.ID), slog.String("name", t.Name))
	return t, nil
}

// Edit changes a tournament's name or dates. Completed tournaments are locked.
func (s *TournamentService) Edit(ctx context.Context, id string, update domain.TournamentUpdate) (domain.Tournament, error) {
	if err := s.requireAdmin(); err != nil {
		return domain.Tournament{}, err
	}
	s.tournaments.Invalidate(ctx, id)
	current, err := s.tournaments.GetTournament(ctx, id)
	if err != nil {
		return domain.Tournament{}, err
	}
	if StatusOf(current, s.clock.Now()) == domain.StatusCompleted {
		return domain.Tournament{}, domain.ErrTournamentLocked
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return domain.Tournament{}, fmt.Errorf("%w: name is required", domain.ErrValidation)
		}
		update.Name = &name
	}
	start, end := current.StartDate, current.EndDate
	if update.StartDate != nil {
		start = *update.StartDate
	}
	if update.EndDate != nil {
		end = *update.EndDate
	}
	if !end.After(start) {
		return domain.Tournament{}, domain.ErrInvalidDateRange
	}
	t, err := s.admin.UpdateTournament(ctx, id, update)
	if err != nil {
		return domain.Tournament{}, err
	}
	s.tournaments.Invalidate(ctx, id)
	s.logger.Info("tournament updated", slog.String("tournament_id", id))
	return t, nil
}

// Like records a like for the tournament.
func (s *TournamentService) Like(ctx context.Context, id string) error {
	return s.likes.LikeTournament(ctx, id)
}

// LikeCount returns the tournament's like count.
func (s *TournamentService) LikeCount(ctx context.Context, id string) (int, error) {
	return s.likes.GetLikeCount(ctx, id)
}

// History returns the journaled attempts of the current user.
func (s *TournamentService) History(ctx context.Context) ([]domain.Attempt, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.ListByUser(ctx, s.userID())
}

func (s *TournamentService) passingPercentage(t domain.Tournament) int {
	if t.MinimumPassingScore != nil {
		return *t.MinimumPassingScore
	}
	s.logger.Warn("tournament has no minimum passing score, applying default",
		slog.String("tournament_id", t.ID),
		slog.Int("default", s.defaultPassing))
	return s.defaultPassing
}

func (s *TournamentService) requireAdmin() error {
	if s.identity == nil || s.identity.UserID() == "" {
		return domain.ErrUnauthorized
	}
	if !s.identity.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}

func (s *TournamentService) userID() string {
	if s.identity == nil {
		return ""
	}
	return s.identity.UserID()
}
