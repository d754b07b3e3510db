package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepforge/prepforge-backend/internal/model"
)

// AttemptRepository handles attempt data access. The conditional update in
// Finalize is the serialization point for the submit-vs-timeout race.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts a new attempt in the created state.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (exam_id, exam_name, question_ids, negative_mark, time_limit_minutes, answers)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, started_at`,
		a.ExamID, a.ExamName, a.QuestionIDs, a.NegativeMark, a.TimeLimit, answers,
	).Scan(&a.ID, &a.StartedAt)
}

// GetByID retrieves a single attempt.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	var answers, byTopic []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, exam_name, question_ids, negative_mark, time_limit_minutes,
		        answers, started_at, finished_at,
		        score_total, score_by_topic, correct_count, wrong_count, blank_count
		 FROM attempts
		 WHERE id = $1`, id,
	).Scan(&a.ID, &a.ExamID, &a.ExamName, &a.QuestionIDs, &a.NegativeMark, &a.TimeLimit,
		&answers, &a.StartedAt, &a.FinishedAt,
		&a.ScoreTotal, &byTopic, &a.CorrectCount, &a.WrongCount, &a.BlankCount)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answers, &a.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	if byTopic != nil {
		if err := json.Unmarshal(byTopic, &a.ScoreByTopic); err != nil {
			return nil, fmt.Errorf("unmarshal score_by_topic: %w", err)
		}
	}
	return a, nil
}

// MergeAnswers folds a partial submission into the stored answer map.
// Finished attempts are left untouched; the merge is best-effort and the
// caller has already rejected the finished case at the API boundary.
func (r *AttemptRepository) MergeAnswers(ctx context.Context, id uuid.UUID, answers model.AnswerMap) error {
	patch, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE attempts
		 SET answers = answers || $2::jsonb, updated_at = NOW()
		 WHERE id = $1 AND finished_at IS NULL`,
		id, patch)
	return err
}

// Finalize writes the answers, result fields, and finished_at in a single
// conditional update. Returns false without mutating anything when another
// caller already finalized the attempt.
func (r *AttemptRepository) Finalize(ctx context.Context, id uuid.UUID, answers model.AnswerMap, res model.FinalizedResult, finishedAt time.Time) (bool, error) {
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return false, fmt.Errorf("marshal answers: %w", err)
	}
	byTopicJSON, err := json.Marshal(res.ScoreByTopic)
	if err != nil {
		return false, fmt.Errorf("marshal score_by_topic: %w", err)
	}

	var updated uuid.UUID
	err = r.pool.QueryRow(ctx,
		`UPDATE attempts
		 SET answers = $2, finished_at = $3,
		     score_total = $4, score_by_topic = $5,
		     correct_count = $6, wrong_count = $7, blank_count = $8,
		     updated_at = NOW()
		 WHERE id = $1 AND finished_at IS NULL
		 RETURNING id`,
		id, answersJSON, finishedAt,
		res.ScoreTotal, byTopicJSON,
		res.CorrectCount, res.WrongCount, res.BlankCount,
	).Scan(&updated)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List retrieves attempt summaries, newest first.
func (r *AttemptRepository) List(ctx context.Context) ([]model.AttemptSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_name, score_total, started_at, finished_at
		 FROM attempts
		 ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []model.AttemptSummary
	for rows.Next() {
		var s model.AttemptSummary
		if err := rows.Scan(&s.ID, &s.ExamName, &s.ScoreTotal, &s.StartedAt, &s.FinishedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// LastFinishedAt returns the finish time of the most recently finalized
// attempt, or nil when none exists yet.
func (r *AttemptRepository) LastFinishedAt(ctx context.Context) (*time.Time, error) {
	var last *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MAX(finished_at) FROM attempts WHERE finished_at IS NOT NULL`,
	).Scan(&last)
	if err != nil {
		return nil, err
	}
	return last, nil
}
