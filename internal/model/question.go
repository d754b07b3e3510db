package model

import (
	"time"

	"github.com/google/uuid"
)

// Question is a four-option multiple-choice question. Correct and
// Explanation must never reach a client before the attempt is finalized;
// QuestionForTaker is the stripped shape used until then.
type Question struct {
	ID          uuid.UUID `json:"id"`
	Text        string    `json:"text"`
	OptionA     string    `json:"option_a"`
	OptionB     string    `json:"option_b"`
	OptionC     string    `json:"option_c"`
	OptionD     string    `json:"option_d"`
	Correct     Answer    `json:"correct"`
	Topic       string    `json:"topic"`
	Explanation string    `json:"explanation"`
	CreatedAt   time.Time `json:"created_at"`
}

// ForTaker strips the answer key and explanation.
func (q *Question) ForTaker() QuestionForTaker {
	return QuestionForTaker{
		ID:      q.ID,
		Text:    q.Text,
		OptionA: q.OptionA,
		OptionB: q.OptionB,
		OptionC: q.OptionC,
		OptionD: q.OptionD,
		Topic:   q.Topic,
	}
}

// QuestionForTaker is a question as shown during a live attempt.
type QuestionForTaker struct {
	ID      uuid.UUID `json:"id"`
	Text    string    `json:"text"`
	OptionA string    `json:"option_a"`
	OptionB string    `json:"option_b"`
	OptionC string    `json:"option_c"`
	OptionD string    `json:"option_d"`
	Topic   string    `json:"topic"`
}
