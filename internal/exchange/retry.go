package exchange

import (
	"context"
	"time"

	"cdczone-bot-go/internal/logger"
	"cdczone-bot-go/internal/models"
)

// RetryPolicy retries transient execution failures with exponential backoff.
type RetryPolicy struct {
	Attempts     int
	InitialDelay time.Duration
}

// Do runs fn up to Attempts times, doubling the delay between attempts. The
// context cancels the wait. The last error is wrapped as an ExecutionError.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.InitialDelay

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		logger.S().Warnw("operation failed, retrying",
			"op", op, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return &models.ExecutionError{Op: op, Err: ctx.Err()}
		}
		delay *= 2
	}
	return &models.ExecutionError{Op: op, Err: err}
}
