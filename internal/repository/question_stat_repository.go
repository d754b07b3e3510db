package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepforge/prepforge-backend/internal/model"
)

// QuestionStatRepository aggregates per-question outcomes for weak-question
// tracking. Writes come from the stat worker, reads from the focus-mode API.
type QuestionStatRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionStatRepository creates a new QuestionStatRepository.
func NewQuestionStatRepository(pool *pgxpool.Pool) *QuestionStatRepository {
	return &QuestionStatRepository{pool: pool}
}

// Upsert records one outcome into the per-question aggregate.
func (r *QuestionStatRepository) Upsert(ctx context.Context, o *model.QuestionOutcome) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO question_stats (question_id, times_seen, times_correct, last_attempt_at, last_correct)
		 VALUES ($1, 1, CASE WHEN $2 THEN 1 ELSE 0 END, $3, $2)
		 ON CONFLICT (question_id) DO UPDATE
		 SET times_seen = question_stats.times_seen + 1,
		     times_correct = question_stats.times_correct + CASE WHEN EXCLUDED.last_correct THEN 1 ELSE 0 END,
		     last_attempt_at = EXCLUDED.last_attempt_at,
		     last_correct = EXCLUDED.last_correct`,
		o.QuestionID, o.WasCorrect, o.At)
	return err
}

// ListWeak retrieves questions whose most recent outcome was wrong, most
// seen first. A non-nil since restricts to outcomes at or after it.
func (r *QuestionStatRepository) ListWeak(ctx context.Context, limit int, since *time.Time) ([]model.WeakQuestion, error) {
	query := `
		SELECT q.id, q.text, q.option_a, q.option_b, q.option_c, q.option_d,
		       q.correct, q.topic, q.explanation, q.created_at,
		       s.times_seen, s.times_correct, s.last_attempt_at
		FROM question_stats s
		JOIN questions q ON q.id = s.question_id
		WHERE s.last_correct = FALSE
	`
	args := []any{}
	if since != nil {
		args = append(args, *since)
		query += ` AND s.last_attempt_at >= $1`
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY s.times_seen DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var weak []model.WeakQuestion
	for rows.Next() {
		var w model.WeakQuestion
		if err := rows.Scan(&w.ID, &w.Text, &w.OptionA, &w.OptionB, &w.OptionC, &w.OptionD,
			&w.Correct, &w.Topic, &w.Explanation, &w.CreatedAt,
			&w.TimesSeen, &w.TimesCorrect, &w.LastAttemptAt); err != nil {
			return nil, err
		}
		weak = append(weak, w)
	}
	return weak, rows.Err()
}
