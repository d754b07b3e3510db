package model

import (
	"time"

	"github.com/google/uuid"
)

// Attempt defaults and bounds, applied when a start request omits or
// exceeds the snapshot parameters.
const (
	DefaultNegativeMark = 0.25
	DefaultTimeLimit    = 120 // minutes
	MinTimeLimit        = 10
	MaxTimeLimit        = 240
)

// Attempt is one test-taker's timed run through a fixed question set.
// ExamID is nil for focus-mode attempts built from an ad-hoc question list.
// NegativeMark and TimeLimit are snapshotted at creation and immutable.
// The result fields are set together with FinishedAt, exactly once.
type Attempt struct {
	ID           uuid.UUID    `json:"id"`
	ExamID       *uuid.UUID   `json:"exam_id,omitempty"`
	ExamName     string       `json:"exam_name,omitempty"`
	QuestionIDs  []uuid.UUID  `json:"question_ids"`
	NegativeMark float64      `json:"negative_mark"`
	TimeLimit    int          `json:"time_limit"` // minutes
	Answers      AnswerMap    `json:"answers"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"`
	ScoreTotal   *float64     `json:"score_total,omitempty"`
	ScoreByTopic []TopicScore `json:"score_by_topic,omitempty"`
	CorrectCount *int         `json:"correct_count,omitempty"`
	WrongCount   *int         `json:"wrong_count,omitempty"`
	BlankCount   *int         `json:"blank_count,omitempty"`
}

// IsFinished reports whether the attempt has been finalized.
func (a *Attempt) IsFinished() bool {
	return a.FinishedAt != nil
}

// Duration returns the snapshotted time limit as a duration.
func (a *Attempt) Duration() time.Duration {
	return time.Duration(a.TimeLimit) * time.Minute
}

// TopicScore is the canonical per-topic score representation.
type TopicScore struct {
	Topic string  `json:"topic"`
	Score float64 `json:"score"`
}

// FinalizedResult is the score breakdown persisted atomically with the
// finished timestamp.
type FinalizedResult struct {
	ScoreTotal   float64
	ScoreByTopic []TopicScore
	CorrectCount int
	WrongCount   int
	BlankCount   int
}

// AttemptSummary is the listing shape (history view).
type AttemptSummary struct {
	ID         uuid.UUID  `json:"id"`
	ExamName   string     `json:"exam_name,omitempty"`
	ScoreTotal *float64   `json:"score_total,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// StartAttemptRequest is the payload for starting an exam-backed attempt.
type StartAttemptRequest struct {
	ExamID       string   `json:"exam_id" binding:"required,uuid"`
	NegativeMark *float64 `json:"negative_mark" binding:"omitempty,min=0,max=1"`
	TimeLimit    *int     `json:"time_limit" binding:"omitempty,min=10,max=240"`
}

// StartWeakAttemptRequest is the payload for a focus-mode attempt over an
// explicit question list.
type StartWeakAttemptRequest struct {
	QuestionIDs  []string `json:"question_ids" binding:"required,min=1,dive,uuid"`
	NegativeMark *float64 `json:"negative_mark" binding:"omitempty,min=0,max=1"`
	TimeLimit    *int     `json:"time_limit" binding:"omitempty,min=10,max=240"`
}

// SubmitAnswersRequest carries an answer map for partial or final submission.
// Values are validated into the closed Answer set by ParseAnswerMap.
type SubmitAnswersRequest struct {
	Answers map[string]*string `json:"answers" binding:"required"`
}

// StartAttemptResponse is returned by both start operations.
type StartAttemptResponse struct {
	AttemptID    uuid.UUID `json:"attempt_id"`
	ChannelToken string    `json:"channel_token"`
	TimeLimit    int       `json:"time_limit"`
}

// AttemptPaper is the pre-finalize view: attempt metadata plus the question
// set with correct answers and explanations stripped.
type AttemptPaper struct {
	Attempt   AttemptMeta        `json:"attempt"`
	Questions []QuestionForTaker `json:"questions"`
}

// AttemptMeta is the metadata subset safe to expose before finalize.
type AttemptMeta struct {
	ID           uuid.UUID   `json:"id"`
	ExamID       *uuid.UUID  `json:"exam_id,omitempty"`
	ExamName     string      `json:"exam_name,omitempty"`
	QuestionIDs  []uuid.UUID `json:"question_ids"`
	NegativeMark float64     `json:"negative_mark"`
	TimeLimit    int         `json:"time_limit"`
	StartedAt    time.Time   `json:"started_at"`
}

// AttemptState supports resume: the autosaved answers so far and the
// remaining time recomputed from the immutable start timestamp.
type AttemptState struct {
	AttemptID        uuid.UUID `json:"attempt_id"`
	AutosavedAnswers AnswerMap `json:"autosaved_answers"`
	RemainingSeconds float64   `json:"remaining_seconds"`
}

// AttemptReview is the post-finalize view with full answer-key data.
type AttemptReview struct {
	AttemptID    uuid.UUID    `json:"attempt_id"`
	ExamName     string       `json:"exam_name,omitempty"`
	Questions    []Question   `json:"questions"`
	Answers      AnswerMap    `json:"answers"`
	ScoreTotal   float64      `json:"score_total"`
	ScoreByTopic []TopicScore `json:"score_by_topic"`
	CorrectCount int          `json:"correct_count"`
	WrongCount   int          `json:"wrong_count"`
	BlankCount   int          `json:"blank_count"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
}

// FinalizeResponse is the acknowledgement for an explicit finish call.
type FinalizeResponse struct {
	AttemptID    uuid.UUID    `json:"attempt_id"`
	ScoreTotal   float64      `json:"score_total"`
	ScoreByTopic []TopicScore `json:"score_by_topic"`
	CorrectCount int          `json:"correct_count"`
	WrongCount   int          `json:"wrong_count"`
	BlankCount   int          `json:"blank_count"`
}
