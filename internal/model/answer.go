package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Answer is the closed set of values a test-taker can give for a question.
// The zero value means unanswered.
type Answer string

const (
	AnswerUnanswered Answer = ""
	AnswerA          Answer = "A"
	AnswerB          Answer = "B"
	AnswerC          Answer = "C"
	AnswerD          Answer = "D"
)

// ParseAnswer validates a raw answer string against the closed option set.
// The empty string parses as AnswerUnanswered.
func ParseAnswer(raw string) (Answer, error) {
	switch Answer(raw) {
	case AnswerUnanswered, AnswerA, AnswerB, AnswerC, AnswerD:
		return Answer(raw), nil
	default:
		return AnswerUnanswered, fmt.Errorf("invalid answer value %q", raw)
	}
}

// MarshalJSON encodes AnswerUnanswered as JSON null so stored answer maps
// stay readable as "no answer given" rather than an empty string.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a == AnswerUnanswered {
		return []byte("null"), nil
	}
	return json.Marshal(string(a))
}

// UnmarshalJSON accepts null or one of the option letters.
func (a *Answer) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*a = AnswerUnanswered
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAnswer(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// AnswerMap maps a question ID (UUID string) to the given answer.
type AnswerMap map[string]Answer

// ParseAnswerMap converts a raw request payload into a validated AnswerMap.
// Keys must be well-formed UUIDs; nil values mean unanswered. Unknown
// question IDs are allowed here and ignored later by the scoring engine.
func ParseAnswerMap(raw map[string]*string) (AnswerMap, error) {
	answers := make(AnswerMap, len(raw))
	for qid, val := range raw {
		if _, err := uuid.Parse(qid); err != nil {
			return nil, fmt.Errorf("invalid question id %q", qid)
		}
		if val == nil {
			answers[qid] = AnswerUnanswered
			continue
		}
		parsed, err := ParseAnswer(*val)
		if err != nil {
			return nil, err
		}
		answers[qid] = parsed
	}
	return answers, nil
}
