package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-tournament-client/internal/app"
	"quiz-tournament-client/internal/config"
	"quiz-tournament-client/internal/infra/api"
	"quiz-tournament-client/internal/infra/memory"
	"quiz-tournament-client/internal/infra/postgres"
	infraredis "quiz-tournament-client/internal/infra/redis"
)

// runtime is the wired object graph shared by the subcommands.
type runtime struct {
	cfg     config.Config
	logger  *slog.Logger
	session *api.Session
	client  *api.Client
	repo    app.TournamentRepository
	service *app.TournamentService

	redisClient *redis.Client
	pool        *pgxpool.Pool
}

func setup(ctx context.Context, configPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logger := newLogger(os.Stderr, level, cfg.Log.Format)

	session := api.NewSession()
	if err := loadToken(cfg.Auth.TokenFile, session); err != nil {
		logger.Warn("ignoring stored token", slog.Any("error", err))
		session.Clear()
	}
	client := api.NewClient(api.Config{
		BaseURL:       cfg.API.BaseURL,
		Timeout:       config.TTLDuration(cfg.API.Timeout, 10*time.Second),
		RatePerSecond: cfg.API.RatePerSecond,
		Burst:         cfg.API.Burst,
		MaxRetries:    cfg.API.MaxRetries,
	}, session, logger)

	rt := &runtime{cfg: cfg, logger: logger, session: session, client: client}

	cacheTTL := config.TTLDuration(cfg.Cache.TTL, time.Minute)
	if cfg.Redis.Addr != "" {
		rt.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.repo = infraredis.NewTournamentRepository(rt.redisClient, client, cacheTTL, logger)
	} else {
		rt.repo = memory.NewTournamentRepository(client, cacheTTL)
	}

	var journal app.AttemptJournal = memory.NewAttemptJournal()
	if cfg.Postgres.URL != "" {
		rt.pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		journal = postgres.NewAttemptJournal(rt.pool)
	}

	defaultPassing := cfg.Scoring.DefaultPassingPercentage
	rt.service = app.NewTournamentService(app.ServiceConfig{
		Tournaments:              rt.repo,
		Submitter:                client,
		Admin:                    client,
		Likes:                    client,
		Journal:                  journal,
		Identity:                 session,
		Logger:                   logger,
		DefaultPassingPercentage: &defaultPassing,
	})
	return rt, nil
}

// sessionStore picks the live-session registry for the play server.
func (rt *runtime) sessionStore() app.SessionRepository {
	if rt.redisClient != nil {
		return infraredis.NewSessionStore(rt.redisClient, config.TTLDuration(rt.cfg.Redis.TTL, 10*time.Minute), rt.logger)
	}
	return memory.NewSessionStore()
}

func (rt *runtime) Close() {
	if rt.pool != nil {
		rt.pool.Close()
	}
	if rt.redisClient != nil {
		_ = rt.redisClient.Close()
	}
}

// withRuntime adapts a runtime-consuming function to cobra's RunE.
func withRuntime(configPath *string, fn func(cmd *cobra.Command, rt *runtime, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd.Context(), *configPath)
		if err != nil {
			return err
		}
		defer rt.Close()
		return fn(cmd, rt, args)
	}
}
