package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/prepforge/prepforge-backend/internal/config"
	"github.com/prepforge/prepforge-backend/internal/model"
	"github.com/redis/go-redis/v9"
)

// AnswerBuffer keeps the live autosave state of an attempt in a Redis hash
// and feeds the persistence/outcome queues the background workers consume.
// It is best-effort by contract; the Postgres attempt row stays the source
// of truth.
type AnswerBuffer struct {
	rdb *redis.Client
}

// NewAnswerBuffer creates a new AnswerBuffer.
func NewAnswerBuffer(rdb *redis.Client) *AnswerBuffer {
	return &AnswerBuffer{rdb: rdb}
}

// answersPayload is the persistence-queue message: one partial submission.
type answersPayload struct {
	AttemptID string          `json:"attempt_id"`
	Answers   model.AnswerMap `json:"answers"`
}

// SaveAnswers merges a partial submission into the attempt's autosave hash
// and queues it for durable persistence.
func (b *AnswerBuffer) SaveAnswers(ctx context.Context, attemptID uuid.UUID, answers model.AnswerMap) error {
	if len(answers) == 0 {
		return nil
	}

	key := config.CacheKey.AttemptAnswersKey(attemptID.String())
	fields := make(map[string]interface{}, len(answers))
	for qid, ans := range answers {
		fields[qid] = string(ans)
	}

	pipe := b.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)

	payload, err := json.Marshal(answersPayload{AttemptID: attemptID.String(), Answers: answers})
	if err != nil {
		return fmt.Errorf("marshal answers payload: %w", err)
	}
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload)

	_, err = pipe.Exec(ctx)
	return err
}

// LoadAnswers returns the autosaved answers for an attempt. Entries that do
// not parse as valid answers are skipped.
func (b *AnswerBuffer) LoadAnswers(ctx context.Context, attemptID uuid.UUID) (model.AnswerMap, error) {
	raw, err := b.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String())).Result()
	if err != nil {
		return nil, err
	}

	answers := make(model.AnswerMap, len(raw))
	for qid, val := range raw {
		ans, err := model.ParseAnswer(val)
		if err != nil {
			continue
		}
		answers[qid] = ans
	}
	return answers, nil
}

// Clear drops the autosave hash after finalize.
func (b *AnswerBuffer) Clear(ctx context.Context, attemptID uuid.UUID) error {
	return b.rdb.Del(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String())).Err()
}

// EnqueueOutcomes pushes per-question outcomes onto the stat worker's queue.
func (b *AnswerBuffer) EnqueueOutcomes(ctx context.Context, outcomes []model.QuestionOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	pipe := b.rdb.Pipeline()
	for i := range outcomes {
		payload, err := json.Marshal(outcomes[i])
		if err != nil {
			return fmt.Errorf("marshal outcome: %w", err)
		}
		pipe.RPush(ctx, config.WorkerKey.PersistOutcomesQueue, payload)
	}
	_, err := pipe.Exec(ctx)
	return err
}
