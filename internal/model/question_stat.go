package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionOutcome is one scored question's result, recorded fire-and-forget
// after finalize for weak-question tracking.
type QuestionOutcome struct {
	QuestionID uuid.UUID `json:"question_id"`
	WasCorrect bool      `json:"was_correct"`
	At         time.Time `json:"at"`
}

// QuestionStat aggregates outcomes per question across attempts.
type QuestionStat struct {
	QuestionID    uuid.UUID `json:"question_id"`
	TimesSeen     int       `json:"times_seen"`
	TimesCorrect  int       `json:"times_correct"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
	LastCorrect   bool      `json:"last_correct"`
}

// WeakQuestion is a question the taker keeps getting wrong, with its stats.
type WeakQuestion struct {
	Question
	TimesSeen     int       `json:"times_seen"`
	TimesCorrect  int       `json:"times_correct"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
}
