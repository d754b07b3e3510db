package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prepforge/prepforge-backend/internal/model"
)

// Weak-question listing defaults.
const (
	DefaultWeakLimit = 100
	WeakModeAll      = "all"
	WeakModeRecent   = "recent"
)

// QuestionStatStore reads the per-question outcome aggregates.
type QuestionStatStore interface {
	ListWeak(ctx context.Context, limit int, since *time.Time) ([]model.WeakQuestion, error)
}

// FinishedAttemptStore narrows AttemptStore for the recent-mode cutoff.
type FinishedAttemptStore interface {
	LastFinishedAt(ctx context.Context) (*time.Time, error)
}

// StatService serves the weak-question practice view built by the stat
// worker from finalize outcomes.
type StatService struct {
	stats    QuestionStatStore
	attempts FinishedAttemptStore
}

// NewStatService creates a new StatService.
func NewStatService(stats QuestionStatStore, attempts FinishedAttemptStore) *StatService {
	return &StatService{stats: stats, attempts: attempts}
}

// ListWeak returns questions whose latest outcome was wrong, most practiced
// first. Mode "recent" restricts to questions seen in the most recently
// finalized attempt's window; anything else means all.
func (s *StatService) ListWeak(ctx context.Context, limit int, mode string) ([]model.WeakQuestion, error) {
	if limit <= 0 {
		limit = DefaultWeakLimit
	}

	var since *time.Time
	if mode == WeakModeRecent {
		last, err := s.attempts.LastFinishedAt(ctx)
		if err != nil {
			return nil, fmt.Errorf("last finished attempt: %w", err)
		}
		// No finished attempt yet: nothing qualifies as recent.
		if last == nil {
			return []model.WeakQuestion{}, nil
		}
		since = last
	}

	return s.stats.ListWeak(ctx, limit, since)
}
