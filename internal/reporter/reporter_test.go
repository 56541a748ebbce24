package reporter

import (
	"bytes"
	"testing"
	"time"

	"cdczone-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exitOrder(reason string, pnl float64) models.OrderRecord {
	return models.OrderRecord{
		OrderType: models.OrderExit,
		Status:    models.OrderFilled,
		Reason:    reason,
		FilledQty: 1,
		AvgPrice:  100 + pnl,
		PnL:       pnl,
		PnLPct:    pnl / 100,
		FilledAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBuild_Metrics(t *testing.T) {
	orders := []models.OrderRecord{
		{OrderType: models.OrderEntry, Status: models.OrderFilled}, // ignored
		exitOrder(models.ExitRuleTrailingStop, 40),
		exitOrder(models.ExitRuleTrailingStop, 20),
		exitOrder(models.ExitRuleStructuralSL, -15),
		{OrderType: models.OrderExit, Status: models.OrderFailed}, // ignored
	}
	curve := []float64{10000, 10040, 10060, 10045}

	s := Build("BTCUSDT", orders, 10000, 10045, curve,
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, 3, s.TotalTrades)
	assert.Equal(t, 2, s.WinningTrades)
	assert.Equal(t, 1, s.LosingTrades)
	assert.InDelta(t, 66.6667, s.WinRate, 0.01)
	// avg win 30 vs avg loss 15
	assert.InDelta(t, 2.0, s.AvgProfitLoss, 1e-9)
	assert.InDelta(t, 45.0, s.TotalProfit, 1e-9)
	assert.InDelta(t, 0.45, s.ProfitPercentage, 1e-9)
	// peak 10060 down to 10045
	assert.InDelta(t, (10060.0-10045.0)/10060.0*100, s.MaxDrawdown, 1e-9)
	assert.Equal(t, 2, s.ExitsByReason[models.ExitRuleTrailingStop])
	assert.Equal(t, 1, s.ExitsByReason[models.ExitRuleStructuralSL])
}

func TestBuild_NoTrades(t *testing.T) {
	s := Build("BTCUSDT", nil, 10000, 10000, nil, time.Time{}, time.Time{})
	assert.Zero(t, s.TotalTrades)
	assert.Zero(t, s.WinRate)
	assert.Zero(t, s.MaxDrawdown)
}

func TestRender(t *testing.T) {
	orders := []models.OrderRecord{exitOrder(models.ExitRuleEMACross, 12.5)}
	s := Build("BTCUSDT", orders, 10000, 10012.5, []float64{10000, 10012.5},
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))

	var buf bytes.Buffer
	s.Render(&buf)
	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, "BTCUSDT")
	assert.Contains(t, out, models.ExitRuleEMACross)
	assert.Contains(t, out, "Win Rate")
}
