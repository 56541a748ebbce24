package persistence

import (
	"encoding/json"
	"errors"

	"cdczone-bot-go/internal/models"

	"github.com/dgraph-io/badger/v3"
)

const (
	positionKeyPrefix = "position:"
	breakerKey        = "circuit_breaker"
)

// badgerRepository is the BadgerDB implementation of the Repository.
type badgerRepository struct {
	db *badger.DB
}

// NewBadgerRepository opens the BadgerDB database at dbPath.
func NewBadgerRepository(dbPath string) (Repository, error) {
	opts := badger.DefaultOptions(dbPath)
	// Badger's own logging is disabled to keep the app's logs clean; errors
	// still surface from DB operations.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerRepository{db: db}, nil
}

func (r *badgerRepository) GetPosition(pair string) (*models.PositionState, error) {
	var pos models.PositionState
	found, err := r.getJSON([]byte(positionKeyPrefix+pair), &pos)
	if err != nil || !found {
		return nil, err
	}
	return &pos, nil
}

func (r *badgerRepository) PutPosition(pos *models.PositionState) error {
	return r.putJSON([]byte(positionKeyPrefix+pos.Pair), pos)
}

func (r *badgerRepository) GetCircuitBreaker() (*models.CircuitBreakerState, error) {
	var state models.CircuitBreakerState
	found, err := r.getJSON([]byte(breakerKey), &state)
	if err != nil || !found {
		return nil, err
	}
	return &state, nil
}

func (r *badgerRepository) PutCircuitBreaker(state *models.CircuitBreakerState) error {
	return r.putJSON([]byte(breakerKey), state)
}

func (r *badgerRepository) putJSON(key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// getJSON reads and unmarshals the value under key. A missing key returns
// (false, nil): callers treat it as "no record yet".
func (r *badgerRepository) getJSON(key []byte, v interface{}) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return errors.New("value is empty in database")
			}
			return json.Unmarshal(val, v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *badgerRepository) Close() error {
	return r.db.Close()
}
