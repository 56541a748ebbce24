package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"cdczone-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrderStore(t *testing.T) *OrderStore {
	t.Helper()
	store, err := NewOrderStore(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func entryOrder(clientID string) *models.OrderRecord {
	return &models.OrderRecord{
		ClientOrderID: clientID,
		Pair:          "BTCUSDT",
		OrderType:     models.OrderEntry,
		Side:          models.Buy,
		RequestedQty:  0.5,
		Status:        models.OrderPending,
		Reason:        "entry_signal",
		SignalBar:     time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC),
		RequestedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAppendOrder_AssignsID(t *testing.T) {
	store := newTestOrderStore(t)

	order := entryOrder("c-1")
	require.NoError(t, store.AppendOrder(order))
	assert.Positive(t, order.ID)
}

func TestPendingOrders_OnlyPendingForPair(t *testing.T) {
	store := newTestOrderStore(t)

	pending := entryOrder("c-1")
	require.NoError(t, store.AppendOrder(pending))

	filled := entryOrder("c-2")
	filled.Status = models.OrderFilled
	filled.FilledQty = 0.5
	filled.AvgPrice = 101.0
	filled.FilledAt = time.Date(2026, 8, 1, 12, 0, 2, 0, time.UTC)
	require.NoError(t, store.AppendOrder(filled))

	otherPair := entryOrder("c-3")
	otherPair.Pair = "ETHUSDT"
	require.NoError(t, store.AppendOrder(otherPair))

	got, err := store.PendingOrders("BTCUSDT")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c-1", got[0].ClientOrderID)
	assert.Equal(t, models.OrderPending, got[0].Status)
}

func TestUpdateOrder_FinalizesFill(t *testing.T) {
	store := newTestOrderStore(t)

	order := entryOrder("c-1")
	require.NoError(t, store.AppendOrder(order))

	order.ExchangeOrderID = 991
	order.Status = models.OrderFilled
	order.FilledQty = 0.5
	order.AvgPrice = 100.5
	order.FilledAt = time.Date(2026, 8, 1, 12, 0, 3, 0, time.UTC)
	require.NoError(t, store.UpdateOrder(order))

	got, err := store.PendingOrders("BTCUSDT")
	require.NoError(t, err)
	assert.Empty(t, got)

	all, err := store.OrdersForPair("BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.OrderFilled, all[0].Status)
	assert.Equal(t, int64(991), all[0].ExchangeOrderID)
	assert.Equal(t, 0.5, all[0].FilledQty)
	assert.Equal(t, order.FilledAt, all[0].FilledAt)
}

func TestOrdersForPair_NewestFirst(t *testing.T) {
	store := newTestOrderStore(t)

	first := entryOrder("c-1")
	require.NoError(t, store.AppendOrder(first))
	second := entryOrder("c-2")
	second.OrderType = models.OrderExit
	second.Side = models.Sell
	require.NoError(t, store.AppendOrder(second))

	got, err := store.OrdersForPair("BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c-2", got[0].ClientOrderID)
	assert.Equal(t, "c-1", got[1].ClientOrderID)
}

func TestAppendEvaluation(t *testing.T) {
	store := newTestOrderStore(t)

	eval := &models.RuleEvaluation{
		Pair:        "BTCUSDT",
		Timestamp:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		BarOpenTime: time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC),
		EntryRules: map[string]bool{
			models.EntryRuleCDCGreen:   true,
			models.EntryRuleLeadingRed: false,
		},
		EntryPass: false,
		Snapshot: models.IndicatorSnapshot{
			CDCColorLTF: models.ColorGreen,
			CDCColorHTF: models.ColorGreen,
			RSI:         61.4,
		},
	}
	assert.NoError(t, store.AppendEvaluation(eval))
}
