package persistence

import (
	"sync"

	"cdczone-bot-go/internal/models"
)

// MemoryRepository is a Repository for backtests and paper runs where state
// does not need to survive the process.
type MemoryRepository struct {
	mu        sync.Mutex
	positions map[string]models.PositionState
	breaker   *models.CircuitBreakerState
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{positions: make(map[string]models.PositionState)}
}

func (m *MemoryRepository) GetPosition(pair string) (*models.PositionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[pair]
	if !ok {
		return nil, nil
	}
	copied := pos
	return &copied, nil
}

func (m *MemoryRepository) PutPosition(pos *models.PositionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[pos.Pair] = *pos
	return nil
}

func (m *MemoryRepository) GetCircuitBreaker() (*models.CircuitBreakerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breaker == nil {
		return nil, nil
	}
	copied := *m.breaker
	return &copied, nil
}

func (m *MemoryRepository) PutCircuitBreaker(state *models.CircuitBreakerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *state
	m.breaker = &copied
	return nil
}

func (m *MemoryRepository) Close() error { return nil }
