package datasync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/c-dragonai/stockllm/internal/storage"
	"github.com/c-dragonai/stockllm/pkg/logger"
)

// RetryPolicy controls retries of a whole sync run.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     float64
	// Timeout bounds each attempt; zero means no limit.
	Timeout time.Duration
}

// DefaultRetryPolicy suits a multi-gigabyte dataset over a developer connection.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   30 * time.Second,
	Jitter:     0.2,
	Timeout:    30 * time.Minute,
}

// RetryingSyncer re-runs a Syncer after failures.
type RetryingSyncer struct {
	inner   Syncer
	policy  RetryPolicy
	backoff *Backoff
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRetryingSyncer wraps inner with policy.
func NewRetryingSyncer(inner Syncer, policy RetryPolicy) *RetryingSyncer {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	return &RetryingSyncer{
		inner:   inner,
		policy:  policy,
		backoff: NewBackoff(policy.BaseDelay, policy.MaxDelay, policy.Jitter),
		sleep:   sleepContext,
	}
}

func (r *RetryingSyncer) Sync(ctx context.Context, src storage.Location, destDir string) error {
	log := logger.With("sync")

	var lastErr error
	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.backoff.ForAttempt(attempt - 1)
			log.Warn().
				Err(lastErr).
				Int("attempt", attempt+1).
				Int("max_attempts", r.policy.MaxRetries+1).
				Dur("backoff", delay).
				Msg("sync failed, retrying")
			if err := r.sleep(ctx, delay); err != nil {
				return fmt.Errorf("sync aborted after %d attempts: %w", attempt, errors.Join(err, lastErr))
			}
		}

		lastErr = r.attempt(ctx, src, destDir)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("sync aborted: %w", lastErr)
		}
	}

	return fmt.Errorf("sync failed after %d attempts: %w", r.policy.MaxRetries+1, lastErr)
}

func (r *RetryingSyncer) attempt(ctx context.Context, src storage.Location, destDir string) error {
	if r.policy.Timeout <= 0 {
		return r.inner.Sync(ctx, src, destDir)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
	defer cancel()

	err := r.inner.Sync(attemptCtx, src, destDir)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("attempt timed out after %s: %w", r.policy.Timeout, err)
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Syncer = (*RetryingSyncer)(nil)
