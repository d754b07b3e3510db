// Package session owns the per-attempt countdown timers and the registry
// that binds them to live channels.
package session

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTickInterval is the cadence at which remaining time is pushed to
// the client.
const DefaultTickInterval = time.Second

// Timer is the countdown authority for one live attempt. Remaining time is
// recomputed on every tick from the immutable start timestamp, never
// decremented, so missed ticks and process pauses cannot skew it.
type Timer struct {
	attemptID uuid.UUID
	startedAt time.Time
	limit     time.Duration
	interval  time.Duration
	now       func() time.Time

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewTimer creates a timer for an attempt with the given wall-clock start
// and time limit. It does not tick until Start is called.
func NewTimer(attemptID uuid.UUID, startedAt time.Time, limit, interval time.Duration) *Timer {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Timer{
		attemptID: attemptID,
		startedAt: startedAt,
		limit:     limit,
		interval:  interval,
		now:       time.Now,
		stopped:   make(chan struct{}),
	}
}

// AttemptID returns the attempt this timer belongs to.
func (t *Timer) AttemptID() uuid.UUID {
	return t.attemptID
}

// Remaining computes the authoritative remaining time, floored at zero.
func (t *Timer) Remaining() time.Duration {
	rem := t.limit - t.now().Sub(t.startedAt)
	if rem < 0 {
		return 0
	}
	return rem
}

// RemainingSeconds is Remaining rounded up to whole seconds, the unit
// pushed over the channel.
func (t *Timer) RemainingSeconds() int {
	return int(math.Ceil(t.Remaining().Seconds()))
}

// Start runs the tick loop in a new goroutine. onTick fires on every tick
// with the remaining whole seconds; when the countdown reaches zero,
// onExpire fires exactly once and the loop ends. Stop ends the loop without
// firing onExpire.
func (t *Timer) Start(onTick func(remainingSeconds int), onExpire func()) {
	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			rem := t.Remaining()
			onTick(int(math.Ceil(rem.Seconds())))
			if rem <= 0 {
				onExpire()
				return
			}

			select {
			case <-t.stopped:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop cancels the tick loop. Safe to call multiple times and concurrently
// with expiry; whichever wins, onExpire fires at most once.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopped)
	})
}
