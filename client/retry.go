package client

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gatewatch/core"
)

// RetryManager enforces a total wall-clock budget per tool invocation,
// subdivided across a bounded number of attempts. The correlation and
// enrichment logic below it is timeout-agnostic; it simply fails when its
// context is aborted.
type RetryManager struct {
	// TotalBudget is the wall-clock budget for all attempts combined.
	TotalBudget time.Duration
	// MaxAttempts bounds how many times the operation is tried.
	MaxAttempts int
	// MinAttemptFloor is the minimum time an attempt must have left; when
	// the remaining budget drops below it, no further attempt is made.
	MinAttemptFloor time.Duration

	logger *zap.SugaredLogger
}

// NewRetryManager creates a retry manager with the given budget split.
func NewRetryManager(totalBudget time.Duration, maxAttempts int, minAttemptFloor time.Duration, logger *zap.SugaredLogger) *RetryManager {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryManager{
		TotalBudget:     totalBudget,
		MaxAttempts:     maxAttempts,
		MinAttemptFloor: minAttemptFloor,
		logger:          logger,
	}
}

// Do runs op under the budget. Each attempt gets an equal share of the
// remaining budget, never less than MinAttemptFloor. Exhausting the budget
// returns core.ErrBudgetExhausted wrapped with the last attempt's error.
func (r *RetryManager) Do(ctx context.Context, op func(ctx context.Context) error) error {
	deadline := time.Now().Add(r.TotalBudget)
	var lastErr error

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		remaining := time.Until(deadline)
		if remaining < r.MinAttemptFloor {
			break
		}
		attemptBudget := remaining / time.Duration(r.MaxAttempts-attempt+1)
		if attemptBudget < r.MinAttemptFloor {
			attemptBudget = r.MinAttemptFloor
		}

		attemptCtx, cancel := context.WithTimeout(ctx, attemptBudget)
		err := op(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if r.logger != nil {
			r.logger.Warnw("attempt failed, retrying",
				"attempt", attempt,
				"max_attempts", r.MaxAttempts,
				"error", err.Error(),
			)
		}
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %v", core.ErrBudgetExhausted, lastErr)
	}
	return core.ErrBudgetExhausted
}
