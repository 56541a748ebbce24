package backtest

import (
	"context"
	"testing"
	"time"

	"cdczone-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(pair, timeframe string, base time.Time, step time.Duration, closes []float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Pair:      pair,
			Timeframe: timeframe,
			OpenTime:  base.Add(time.Duration(i) * step),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Closed:    true,
		}
	}
	return out
}

// tradeCloses builds a full round trip: a long decline, one weak bar, a steep
// rally that triggers the entry rules and arms the trailing stop, then a drop
// that fires it.
func tradeCloses() []float64 {
	closes := make([]float64, 0, 80)
	for i := 0; i < 40; i++ {
		closes = append(closes, 100-float64(i))
	}
	closes = append(closes, 62)
	for i := 1; i <= 29; i++ {
		closes = append(closes, 62+8*float64(i))
	}
	// Peak 294, then a slide through the trailing stop.
	for _, c := range []float64{280, 266, 252, 238, 224, 210} {
		closes = append(closes, c)
	}
	return closes
}

func backtestConfig() models.Config {
	return models.Config{
		Pairs: []models.PairConfig{{
			Pair:       "BTCUSDT",
			Timeframe:  "1h",
			BudgetPct:  0.2,
			RuleParams: models.DefaultRuleParams(),
		}},
		Risk: models.RiskSettings{
			PerTradeCapPct:      0.10,
			TotalExposureCapPct: 0.30,
			DailyLossLimitPct:   0.90,
			MaxDrawdownPct:      0.90,
		},
		RetryAttempts:       1,
		RetryInitialDelayMs: 1,
	}
}

func TestRunner_FullRoundTrip(t *testing.T) {
	ltfBase := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	ltf := series("BTCUSDT", "1h", ltfBase, time.Hour, tradeCloses())

	htfCloses := make([]float64, 45)
	for i := range htfCloses {
		htfCloses[i] = 10 + 2*float64(i)
	}
	// Daily bars all closed before the hourly replay starts.
	htf := series("BTCUSDT", "1d", ltfBase.AddDate(0, 0, -46), 24*time.Hour, htfCloses)

	runner, err := NewRunnerFromSeries(backtestConfig(), ltf, htf, 10000)
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, summary.TotalTrades)
	trade := summary.Trades[0]
	assert.Equal(t, models.ExitRuleTrailingStop, trade.Reason)
	assert.Positive(t, trade.PnL)
	assert.Greater(t, summary.FinalEquity, summary.InitialEquity)
	assert.Equal(t, 1, summary.ExitsByReason[models.ExitRuleTrailingStop])
	assert.NotEmpty(t, summary.Trades)
}

func TestRunner_NoSignalNoTrades(t *testing.T) {
	ltfBase := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	// A steady decline never turns green.
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 200 - float64(i)
	}
	ltf := series("BTCUSDT", "1h", ltfBase, time.Hour, closes)

	htfCloses := make([]float64, 45)
	for i := range htfCloses {
		htfCloses[i] = 10 + 2*float64(i)
	}
	htf := series("BTCUSDT", "1d", ltfBase.AddDate(0, 0, -46), 24*time.Hour, htfCloses)

	runner, err := NewRunnerFromSeries(backtestConfig(), ltf, htf, 10000)
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.TotalTrades)
	assert.InDelta(t, 10000.0, summary.FinalEquity, 1e-9)
}

func TestNewRunnerFromSeries_RequiresData(t *testing.T) {
	_, err := NewRunnerFromSeries(backtestConfig(), nil, nil, 10000)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}
