package persistence

import (
	"testing"
	"time"

	"cdczone-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) Repository {
	t.Helper()
	repo, err := NewBadgerRepository(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestGetPosition_MissingRecordIsNil(t *testing.T) {
	repo := newTestRepository(t)

	pos, err := repo.GetPosition("BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestPutGetPosition(t *testing.T) {
	repo := newTestRepository(t)

	want := &models.PositionState{
		Pair:            "BTCUSDT",
		Status:          models.StatusLong,
		EntryPrice:      104.2,
		EntryTime:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		WLow:            98.5,
		SLPrice:         98.2,
		ActivationPrice: 115.0,
		Qty:             0.5,
		UpdatedAt:       time.Date(2026, 8, 1, 12, 0, 1, 0, time.UTC),
	}
	require.NoError(t, repo.PutPosition(want))

	got, err := repo.GetPosition("BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, got)

	// Records are keyed per pair.
	other, err := repo.GetPosition("ETHUSDT")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestCircuitBreakerRoundTrip(t *testing.T) {
	repo := newTestRepository(t)

	missing, err := repo.GetCircuitBreaker()
	require.NoError(t, err)
	assert.Nil(t, missing)

	want := &models.CircuitBreakerState{
		IsActive:         true,
		Reason:           "MAX_DRAWDOWN",
		TotalDrawdownPct: 0.12,
		LastResetDate:    "2026-09-01",
		ActivatedAt:      time.Date(2026, 9, 1, 3, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.PutCircuitBreaker(want))

	got, err := repo.GetCircuitBreaker()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
