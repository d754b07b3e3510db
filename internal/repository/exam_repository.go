package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepforge/prepforge-backend/internal/model"
)

// ExamRepository provides read access to exams. Exam authoring is an
// external concern; the attempt core only resolves sources.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam with its ordered question-id list.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, question_ids, negative_mark, time_limit_minutes, created_at, updated_at
		 FROM exams
		 WHERE id = $1`, id,
	).Scan(&e.ID, &e.Name, &e.QuestionIDs, &e.NegativeMark, &e.TimeLimit, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}
