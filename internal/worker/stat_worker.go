package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepforge/prepforge-backend/internal/config"
	"github.com/prepforge/prepforge-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	StatBatchSize    = 50
	StatBatchTimeout = 2 * time.Second
	StatPollTimeout  = 1 * time.Second
)

// StatWorker consumes finalize outcomes and folds them into the
// per-question aggregates behind the weak-question view.
type StatWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewStatWorker creates a new StatWorker.
func NewStatWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *StatWorker {
	return &StatWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "stat_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *StatWorker) Start(ctx context.Context) {
	w.log.Info().Msg("StatWorker started")

	batch := make([]*model.QuestionOutcome, 0, StatBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= StatBatchSize || time.Since(lastFlush) >= StatBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, StatPollTimeout, config.WorkerKey.PersistOutcomesQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var o model.QuestionOutcome
			if err := json.Unmarshal([]byte(item[1]), &o); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &o)
		}
	}
}

// ----------------------------------------------------------------
// Batch upsert wrapper
// ----------------------------------------------------------------

func (w *StatWorker) flushSafe(ctx context.Context, batch []*model.QuestionOutcome) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkUpsertStats(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk stat upsert failed, using fallback")

		for _, o := range batch {
			if err := w.persistSingle(ctx, o); err != nil {
				w.log.Error().Err(err).Msg("persistSingle failed — requeueing")
				raw, _ := json.Marshal(o)
				w.rdb.RPush(ctx, config.WorkerKey.PersistOutcomesQueue, raw)
			}
		}
	}
}

// statDelta is one question's outcomes collapsed within a batch, so the
// bulk upsert never touches the same row twice in one statement.
type statDelta struct {
	seen        int
	correct     int
	lastCorrect bool
	lastAt      time.Time
}

// ----------------------------------------------------------------
// BULK PostgreSQL upsert using UNNEST
// ----------------------------------------------------------------

func (w *StatWorker) bulkUpsertStats(ctx context.Context, batch []*model.QuestionOutcome) error {
	deltas := make(map[uuid.UUID]*statDelta, len(batch))
	for _, o := range batch {
		d, ok := deltas[o.QuestionID]
		if !ok {
			d = &statDelta{}
			deltas[o.QuestionID] = d
		}
		d.seen++
		if o.WasCorrect {
			d.correct++
		}
		if !o.At.Before(d.lastAt) {
			d.lastAt = o.At
			d.lastCorrect = o.WasCorrect
		}
	}

	n := len(deltas)
	questionIDs := make([]uuid.UUID, 0, n)
	seens := make([]int, 0, n)
	corrects := make([]int, 0, n)
	lastCorrects := make([]bool, 0, n)
	lastAts := make([]time.Time, 0, n)
	for id, d := range deltas {
		questionIDs = append(questionIDs, id)
		seens = append(seens, d.seen)
		corrects = append(corrects, d.correct)
		lastCorrects = append(lastCorrects, d.lastCorrect)
		lastAts = append(lastAts, d.lastAt)
	}

	query := `
		INSERT INTO question_stats (question_id, times_seen, times_correct, last_attempt_at, last_correct)
		SELECT u.question_id, u.seen, u.correct, u.last_at, u.last_correct
		FROM UNNEST(
			$1::uuid[],
			$2::int[],
			$3::int[],
			$4::timestamptz[],
			$5::bool[]
		) AS u (question_id, seen, correct, last_at, last_correct)
		ON CONFLICT (question_id) DO UPDATE
		SET times_seen = question_stats.times_seen + EXCLUDED.times_seen,
		    times_correct = question_stats.times_correct + EXCLUDED.times_correct,
		    last_attempt_at = EXCLUDED.last_attempt_at,
		    last_correct = EXCLUDED.last_correct
	`

	_, err := w.pool.Exec(ctx, query, questionIDs, seens, corrects, lastAts, lastCorrects)
	return err
}

// ----------------------------------------------------------------
// FALLBACK single upsert
// ----------------------------------------------------------------

func (w *StatWorker) persistSingle(ctx context.Context, o *model.QuestionOutcome) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO question_stats (question_id, times_seen, times_correct, last_attempt_at, last_correct)
		 VALUES ($1, 1, CASE WHEN $2 THEN 1 ELSE 0 END, $3, $2)
		 ON CONFLICT (question_id) DO UPDATE
		 SET times_seen = question_stats.times_seen + 1,
		     times_correct = question_stats.times_correct + CASE WHEN EXCLUDED.last_correct THEN 1 ELSE 0 END,
		     last_attempt_at = EXCLUDED.last_attempt_at,
		     last_correct = EXCLUDED.last_correct`,
		o.QuestionID, o.WasCorrect, o.At,
	)
	return err
}
