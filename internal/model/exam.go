package model

import (
	"time"

	"github.com/google/uuid"
)

// Exam is a named, fixed question-id list with default attempt parameters.
// The core only reads exams; authoring and bulk import live outside this
// service.
type Exam struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	QuestionIDs  []uuid.UUID `json:"question_ids"`
	NegativeMark float64     `json:"negative_mark"`
	TimeLimit    int         `json:"time_limit"` // minutes
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
