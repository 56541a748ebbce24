package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"cdczone-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientOrderID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewClientOrderID()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		assert.Contains(t, id, "cdc")
	}
}

func TestRetryPolicy_SucceedsAfterTransientFailures(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, InitialDelay: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), "test_op", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_ExhaustionWrapsExecutionError(t *testing.T) {
	policy := RetryPolicy{Attempts: 2, InitialDelay: time.Millisecond}

	boom := errors.New("down")
	err := policy.Do(context.Background(), "test_op", func() error { return boom })
	require.Error(t, err)

	var execErr *models.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "test_op", execErr.Op)
	assert.ErrorIs(t, err, boom)
}

func TestRetryPolicy_ContextCancelStopsRetrying(t *testing.T) {
	policy := RetryPolicy{Attempts: 5, InitialDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := policy.Do(ctx, "test_op", func() error {
		calls++
		return errors.New("transient")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPaperClient_FullFill(t *testing.T) {
	paper := NewPaperClient("USDT", 10000)
	paper.SetPrice("BTCUSDT", 100)

	fill, err := paper.PlaceMarketOrder(context.Background(), "BTCUSDT", models.Buy, 2, "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderFilled, fill.Status)
	assert.Equal(t, 2.0, fill.FilledQty)
	assert.Equal(t, 100.0, fill.AvgPrice)
	assert.Positive(t, fill.ExchangeOrderID)

	// The buy debits the quote balance; a sell credits it back.
	cash, err := paper.GetBalance(context.Background(), "USDT")
	require.NoError(t, err)
	assert.Equal(t, 9800.0, cash)

	_, err = paper.PlaceMarketOrder(context.Background(), "BTCUSDT", models.Sell, 2, "c-2")
	require.NoError(t, err)
	cash, err = paper.GetBalance(context.Background(), "USDT")
	require.NoError(t, err)
	assert.Equal(t, 10000.0, cash)
}

func TestPaperClient_PartialFill(t *testing.T) {
	paper := NewPaperClient("USDT", 10000)
	paper.SetPrice("BTCUSDT", 100)
	paper.FillRatio = 0.5

	fill, err := paper.PlaceMarketOrder(context.Background(), "BTCUSDT", models.Buy, 2, "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderPartial, fill.Status)
	assert.Equal(t, 1.0, fill.FilledQty)

	// Status queries report the recorded fill.
	status, err := paper.GetOrderStatus(context.Background(), "BTCUSDT", fill.ExchangeOrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPartial, status.Status)
	assert.Equal(t, 1.0, status.FilledQty)
}

func TestPaperClient_NoPriceFails(t *testing.T) {
	paper := NewPaperClient("USDT", 10000)
	_, err := paper.PlaceMarketOrder(context.Background(), "BTCUSDT", models.Buy, 1, "c-1")
	var execErr *models.ExecutionError
	assert.ErrorAs(t, err, &execErr)
}
