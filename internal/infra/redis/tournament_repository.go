package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-tournament-client/internal/domain"
)

// TournamentLoader fetches tournament content from the API on a cache miss.
type TournamentLoader interface {
	LoadTournament(ctx context.Context, id string) (domain.Tournament, error)
	LoadQuestions(ctx context.Context, tournamentID string) ([]domain.Question, error)
}

// TournamentRepository caches tournaments in Redis so that several clients (or
// several CLI invocations) share one copy of the API's answer.
// Tournaments are stored as: SET tournament:{id} {json}
// Questions are stored as:   SET tournament:{id}:questions {json}
type TournamentRepository struct {
	client *redis.Client
	loader TournamentLoader
	ttl    time.Duration
	logger *slog.Logger
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewTournamentRepository(client *redis.Client, loader TournamentLoader, ttl time.Duration, logger *slog.Logger) *TournamentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &TournamentRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *TournamentRepository) GetTournament(ctx context.Context, id string) (domain.Tournament, error) {
	var t domain.Tournament
	err := r.get(ctx, tournamentKey(id), &t, func(ctx context.Context) (any, error) {
		return r.loader.LoadTournament(ctx, id)
	})
	return t, err
}

func (r *TournamentRepository) GetQuestions(ctx context.Context, tournamentID string) ([]domain.Question, error) {
	var questions []domain.Question
	err := r.get(ctx, questionsKey(tournamentID), &questions, func(ctx context.Context) (any, error) {
		return r.loader.LoadQuestions(ctx, tournamentID)
	})
	return questions, err
}

// Invalidate removes the cached tournament and its questions.
func (r *TournamentRepository) Invalidate(ctx context.Context, id string) {
	if err := r.client.Del(ctx, tournamentKey(id), questionsKey(id)).Err(); err != nil {
		r.logger.Warn("invalidate tournament cache", slog.String("tournament_id", id), slog.Any("error", err))
	}
	r.sf.Forget(tournamentKey(id))
	r.sf.Forget(questionsKey(id))
}

// get decodes the cached value at key into dst, loading and caching it on a miss.
// Redis failures degrade to a direct load.
func (r *TournamentRepository) get(ctx context.Context, key string, dst any, load func(context.Context) (any, error)) error {
	if r.lookup(ctx, key, dst) {
		return nil
	}

	raw, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if cached, err := r.client.Get(ctx, key).Bytes(); err == nil {
			return cached, nil
		}

		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		if err := r.client.Set(ctx, key, encoded, r.ttlWithJitter()).Err(); err != nil {
			r.logger.Warn("cache tournament", slog.String("key", key), slog.Any("error", err))
		}
		return encoded, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), dst)
}

func (r *TournamentRepository) lookup(ctx context.Context, key string, dst any) bool {
	cached, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("read tournament cache", slog.String("key", key), slog.Any("error", err))
		}
		return false
	}
	if err := json.Unmarshal(cached, dst); err != nil {
		r.logger.Warn("discarding corrupt cache entry", slog.String("key", key), slog.Any("error", err))
		_ = r.client.Del(ctx, key).Err()
		return false
	}
	return true
}

func (r *TournamentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func tournamentKey(id string) string {
	return "tournament:" + id
}

func questionsKey(id string) string {
	return "tournament:" + id + ":questions"
}
