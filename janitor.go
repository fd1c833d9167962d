package opool

import (
	"context"
	"log/slog"
	"time"

	"github.com/opoolio/opool/internal"
)

// JanitorConfig defines the scheduling parameters for a Janitor.
//
// Interval defines how often the janitor invokes Clean on its pool.
// Spec.md §4.4 places this at roughly ttl/3; a zero or negative Interval
// makes NewJanitor use the pool's own TTL()/3, while a positive one lets
// a Registry apply one interval policy across pools with different TTLs.
type JanitorConfig struct {
	Interval time.Duration
}

// Janitor periodically invokes Clean on a single ObjectPool.
//
// Janitor is intended to run for the lifetime of the process; it is
// normally started indirectly, once per registered pool, by a Registry's
// janitor rather than directly by application code.
//
// Janitor has a strict lifecycle:
//   - Start may only be called once.
//   - Stop must be called to terminate the janitor.
//   - Stop cancels the ticking task and waits for it to exit or until the
//     timeout expires. A clean call already running in the gate's
//     goroutine is not waited for; it sees the cancelled context.
//
// Overlapping ticks never run concurrently: a tick that arrives while a
// clean call is already in flight is dropped (exhaustMap, spec.md §9),
// not queued.
type Janitor struct {
	lcBase
	pool     *ObjectPool
	task     internal.TimerTask
	gate     internal.Gate
	log      *slog.Logger
	interval time.Duration
}

// NewJanitor creates a new Janitor for pool using the provided
// configuration. The janitor is not started automatically; call Start.
func NewJanitor(pool *ObjectPool, config JanitorConfig, log *slog.Logger) *Janitor {
	interval := config.Interval
	if interval <= 0 {
		interval = pool.TTL() / 3
	}
	return &Janitor{
		pool:     pool,
		log:      log,
		interval: interval,
	}
}

func (j *Janitor) clean(ctx context.Context) {
	j.gate.TryRun(func() {
		objects, err := j.pool.Clean(ctx)
		if err != nil {
			j.log.Error("janitor clean failed", "pool", j.pool.Name(), "err", err)
			return
		}
		if len(objects) > 0 {
			j.log.Info("janitor reclaimed objects", "pool", j.pool.Name(), "count", len(objects))
		}
	})
}

// Start begins periodic execution of the cleaning task.
//
// Start returns ErrDoubleStarted if the janitor has already been started.
func (j *Janitor) Start(ctx context.Context) error {
	if err := j.tryStart(); err != nil {
		return err
	}
	j.task.Start(ctx, j.clean, j.interval)
	return nil
}

// Stop terminates the background cleaning task.
//
// Stop waits until the task finishes or the specified timeout expires.
// If shutdown does not complete within the timeout, ErrStopTimeout is
// returned.
//
// Stop returns ErrDoubleStopped if the janitor is not running.
func (j *Janitor) Stop(timeout time.Duration) error {
	return j.tryStop(timeout, j.task.Stop)
}
