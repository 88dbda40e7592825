package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-tournament-client/internal/domain"
)

// TournamentLoader fetches tournament content from the backing API.
type TournamentLoader interface {
	LoadTournament(ctx context.Context, id string) (domain.Tournament, error)
	LoadQuestions(ctx context.Context, tournamentID string) ([]domain.Question, error)
}

// TournamentRepository caches tournaments and their questions with a TTL so that
// re-rendering a tournament does not hit the API every time.
type TournamentRepository struct {
	loader TournamentLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedEntry
}

type cachedEntry struct {
	value     any
	expiresAt time.Time
}

func NewTournamentRepository(loader TournamentLoader, ttl time.Duration) *TournamentRepository {
	return &TournamentRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedEntry),
	}
}

func (r *TournamentRepository) GetTournament(ctx context.Context, id string) (domain.Tournament, error) {
	v, err := r.get(ctx, tournamentKey(id), func(ctx context.Context) (any, error) {
		return r.loader.LoadTournament(ctx, id)
	})
	if err != nil {
		return domain.Tournament{}, err
	}
	return v.(domain.Tournament), nil
}

func (r *TournamentRepository) GetQuestions(ctx context.Context, tournamentID string) ([]domain.Question, error) {
	v, err := r.get(ctx, questionsKey(tournamentID), func(ctx context.Context) (any, error) {
		return r.loader.LoadQuestions(ctx, tournamentID)
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Question(nil), v.([]domain.Question)...), nil
}

// Invalidate drops the cached tournament and questions.
func (r *TournamentRepository) Invalidate(_ context.Context, id string) {
	r.mu.Lock()
	delete(r.cache, tournamentKey(id))
	delete(r.cache, questionsKey(id))
	r.mu.Unlock()
	r.sf.Forget(tournamentKey(id))
	r.sf.Forget(questionsKey(id))
}

func (r *TournamentRepository) get(ctx context.Context, key string, load func(context.Context) (any, error)) (any, error) {
	if v, ok := r.lookup(key); ok {
		return v, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		if v, ok := r.lookup(key); ok {
			return v, nil
		}

		v, err := load(ctx)
		if err != nil {
			return nil, err
		}

		now := r.clock()
		r.mu.Lock()
		r.cache[key] = cachedEntry{
			value:     v,
			expiresAt: now.Add(r.ttlWithJitterLocked()),
		}
		r.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *TournamentRepository) lookup(key string) (any, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
		return entry.value, true
	}
	return nil, false
}

func (r *TournamentRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func tournamentKey(id string) string {
	return "tournament:" + id
}

func questionsKey(id string) string {
	return "tournament:" + id + ":questions"
}

// StaticLoader is a loader backed by in-memory maps (useful for tests/demos).
type StaticLoader struct {
	tournaments map[string]domain.Tournament
	questions   map[string][]domain.Question
}

func NewStaticLoader(tournaments map[string]domain.Tournament, questions map[string][]domain.Question) *StaticLoader {
	return &StaticLoader{tournaments: tournaments, questions: questions}
}

func (l *StaticLoader) LoadTournament(_ context.Context, id string) (domain.Tournament, error) {
	if t, ok := l.tournaments[id]; ok {
		return t, nil
	}
	return domain.Tournament{}, fmt.Errorf("tournament %s: %w", id, domain.ErrNotFound)
}

func (l *StaticLoader) LoadQuestions(_ context.Context, tournamentID string) ([]domain.Question, error) {
	if _, ok := l.tournaments[tournamentID]; !ok {
		return nil, fmt.Errorf("tournament %s: %w", tournamentID, domain.ErrNotFound)
	}
	return l.questions[tournamentID], nil
}

// ListTournaments returns every tournament the loader knows.
func (l *StaticLoader) ListTournaments(_ context.Context) ([]domain.Tournament, error) {
	out := make([]domain.Tournament, 0, len(l.tournaments))
	for _, t := range l.tournaments {
		out = append(out, t)
	}
	return out, nil
}
