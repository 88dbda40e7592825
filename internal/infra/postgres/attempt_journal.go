package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-tournament-client/internal/domain"
)

// AttemptJournal stores completed attempts in the attempts table, answers as JSONB.
type AttemptJournal struct {
	pool *pgxpool.Pool
}

func NewAttemptJournal(pool *pgxpool.Pool) *AttemptJournal {
	return &AttemptJournal{pool: pool}
}

func (j *AttemptJournal) Record(ctx context.Context, attempt domain.Attempt) error {
	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = j.pool.Exec(ctx, `
		INSERT INTO attempts (id, tournament_id, user_id, answers, score, total_questions, passed, completed_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		attempt.ID, attempt.TournamentID, attempt.UserID, string(answers),
		attempt.Score, attempt.TotalQuestions, attempt.Passed, attempt.CompletedAt)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// ListByUser returns the user's attempts, newest first.
func (j *AttemptJournal) ListByUser(ctx context.Context, userID string) ([]domain.Attempt, error) {
	rows, err := j.pool.Query(ctx, `
		SELECT id::text, tournament_id, user_id, answers, score, total_questions, passed, completed_at
		FROM attempts
		WHERE user_id = $1
		ORDER BY completed_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.Attempt
	for rows.Next() {
		var (
			a   domain.Attempt
			raw []byte
		)
		if err := rows.Scan(&a.ID, &a.TournamentID, &a.UserID, &raw, &a.Score, &a.TotalQuestions, &a.Passed, &a.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if err := json.Unmarshal(raw, &a.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
		a.CompletedAt = a.CompletedAt.UTC()
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}
