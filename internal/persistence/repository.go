package persistence

import "cdczone-bot-go/internal/models"

// Repository abstracts the key/value store holding the per-pair position
// records and the process-wide circuit breaker state.
type Repository interface {
	// GetPosition loads the position record for a pair. A missing record
	// returns (nil, nil): the caller treats it as a fresh FLAT position.
	GetPosition(pair string) (*models.PositionState, error)

	// PutPosition saves the position record atomically.
	PutPosition(pos *models.PositionState) error

	// GetCircuitBreaker loads the breaker state, (nil, nil) when none exists.
	GetCircuitBreaker() (*models.CircuitBreakerState, error)

	// PutCircuitBreaker saves the breaker state atomically.
	PutCircuitBreaker(state *models.CircuitBreakerState) error

	// Close gracefully closes the connection to the database.
	Close() error
}
