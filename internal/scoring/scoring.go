// Package scoring grades an attempt's answer map against a question set.
// It is pure: no I/O, no clock, no side effects.
package scoring

import (
	"sort"

	"github.com/google/uuid"
	"github.com/prepforge/prepforge-backend/internal/model"
)

// QuestionKey is the slice of a question the engine needs.
type QuestionKey struct {
	ID      uuid.UUID
	Topic   string
	Correct model.Answer
}

// Result is the full score breakdown for one attempt.
// CorrectCount + WrongCount + BlankCount always equals the question count.
type Result struct {
	ScoreTotal   float64
	ScoreByTopic []model.TopicScore
	CorrectCount int
	WrongCount   int
	BlankCount   int
	Outcomes     []Outcome
}

// Outcome is the per-question verdict, one entry per scored question.
// A blank answer counts as not correct.
type Outcome struct {
	QuestionID uuid.UUID
	WasCorrect bool
}

// Score grades answers against questions under the given negative-mark rate.
//
// Every question in questions is scored: missing or unanswered entries count
// as blank, matches as correct, everything else as wrong. Entries in answers
// whose key is not among questions are ignored (stale client state).
// ScoreTotal = max(0, (correct - wrong*negativeMark) * 100 / total).
//
// An empty question set is a caller bug and panics; attempts are validated
// non-empty at creation.
func Score(questions []QuestionKey, answers model.AnswerMap, negativeMark float64) Result {
	if len(questions) == 0 {
		panic("scoring: empty question set")
	}

	type topicTally struct {
		correct int
		total   int
	}

	var res Result
	res.Outcomes = make([]Outcome, 0, len(questions))
	topics := make(map[string]*topicTally)

	for _, q := range questions {
		tally, ok := topics[q.Topic]
		if !ok {
			tally = &topicTally{}
			topics[q.Topic] = tally
		}
		tally.total++

		answer := answers[q.ID.String()]
		correct := false
		switch {
		case answer == model.AnswerUnanswered:
			res.BlankCount++
		case answer == q.Correct:
			res.CorrectCount++
			tally.correct++
			correct = true
		default:
			res.WrongCount++
		}
		res.Outcomes = append(res.Outcomes, Outcome{QuestionID: q.ID, WasCorrect: correct})
	}

	total := float64(len(questions))
	raw := (float64(res.CorrectCount) - float64(res.WrongCount)*negativeMark) * 100 / total
	if raw < 0 {
		raw = 0
	}
	res.ScoreTotal = raw

	res.ScoreByTopic = make([]model.TopicScore, 0, len(topics))
	for topic, tally := range topics {
		res.ScoreByTopic = append(res.ScoreByTopic, model.TopicScore{
			Topic: topic,
			Score: float64(tally.correct) * 100 / float64(tally.total),
		})
	}
	// Map iteration order is random; sort for a deterministic result.
	sort.Slice(res.ScoreByTopic, func(i, j int) bool {
		return res.ScoreByTopic[i].Topic < res.ScoreByTopic[j].Topic
	})

	return res
}
