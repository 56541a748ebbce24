package models

import "errors"

// Sentinel errors for the evaluation cycle. All of these are recoverable:
// the cycle for the affected pair is skipped and retried on the next tick.
var (
	// ErrInsufficientData means an indicator's lookback exceeds the number of
	// closed candles available.
	ErrInsufficientData = errors.New("insufficient candle data for lookback")

	// ErrUnconfiguredPair means no active configuration exists for the pair.
	ErrUnconfiguredPair = errors.New("pair has no active configuration")

	// ErrCircuitBreakerActive is a deliberate block, not a failure. Cycles
	// log it as skipped-by-breaker and move on.
	ErrCircuitBreakerActive = errors.New("circuit breaker active")

	// ErrPendingOrderOutstanding blocks a new order for a pair while an
	// earlier order for the same transition has not been reconciled.
	ErrPendingOrderOutstanding = errors.New("pending order outstanding for pair")
)
