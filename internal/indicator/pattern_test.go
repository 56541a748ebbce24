package indicator

import (
	"testing"
	"time"

	"cdczone-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flatCandles builds a series with constant lows/highs; dips and peaks are
// then carved in by index so that fractal detection sees exactly one swing
// per carve.
func flatCandles(n int, low, high float64) []models.Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			Pair:      "BTCUSDT",
			Timeframe: "1h",
			OpenTime:  base.Add(time.Duration(i) * time.Hour),
			Open:      (low + high) / 2,
			High:      high,
			Low:       low,
			Close:     (low + high) / 2,
			Closed:    true,
		}
	}
	return out
}

func TestSwingLows_FindsStrictLocalMinima(t *testing.T) {
	candles := flatCandles(11, 110, 112)
	candles[5].Low = 100

	lows := SwingLows(candles, 2)
	require.Len(t, lows, 1)
	assert.Equal(t, 5, lows[0].Index)
	assert.Equal(t, 100.0, lows[0].Price)
}

func TestSwingLows_EqualLowsAreNotSwings(t *testing.T) {
	candles := flatCandles(11, 110, 112)
	lows := SwingLows(candles, 2)
	assert.Empty(t, lows)
}

func TestSwingHighs_FindsStrictLocalMaxima(t *testing.T) {
	candles := flatCandles(11, 110, 112)
	candles[4].High = 125

	highs := SwingHighs(candles, 2)
	require.Len(t, highs, 1)
	assert.Equal(t, 4, highs[0].Index)
	assert.True(t, highs[0].IsHigh)
}

func TestCheckWShape_DetectsDoubleBottom(t *testing.T) {
	p := models.DefaultRuleParams()
	candles := flatCandles(p.WWindowBars, 110, 112)
	candles[10].Low = 100
	candles[15].High = 120
	candles[20].Low = 101

	ok, w := CheckWShape(candles, p)
	require.True(t, ok)
	assert.Equal(t, 100.0, w.Low1)
	assert.Equal(t, 120.0, w.MidHigh)
	assert.Equal(t, 101.0, w.Low2)
	assert.Equal(t, 5, w.Leg1Bars)
	assert.Equal(t, 5, w.Leg2Bars)
}

func TestCheckWShape_RejectsLowerSecondLow(t *testing.T) {
	p := models.DefaultRuleParams()
	candles := flatCandles(p.WWindowBars, 110, 112)
	candles[10].Low = 100
	candles[15].High = 120
	candles[20].Low = 95

	ok, _ := CheckWShape(candles, p)
	assert.False(t, ok)
}

func TestCheckWShape_RejectsShallowMidHigh(t *testing.T) {
	p := models.DefaultRuleParams()
	p.WMidHighMinDiffPct = 0.25
	candles := flatCandles(p.WWindowBars, 110, 112)
	candles[10].Low = 100
	candles[15].High = 120
	candles[20].Low = 101

	// (120-100)/100 = 0.20 < 0.25 threshold
	ok, _ := CheckWShape(candles, p)
	assert.False(t, ok)
}

func TestCheckWShape_RejectsLegsOutOfRange(t *testing.T) {
	p := models.DefaultRuleParams()
	candles := flatCandles(p.WWindowBars, 110, 112)
	candles[10].Low = 100
	candles[12].High = 120
	candles[14].Low = 101

	ok, _ := CheckWShape(candles, p)
	assert.False(t, ok)
}

func TestCheckWShape_InsufficientData(t *testing.T) {
	p := models.DefaultRuleParams()
	ok, _ := CheckWShape(flatCandles(10, 110, 112), p)
	assert.False(t, ok)
}

func TestCheckVShape_DetectsSharpDropAndRecovery(t *testing.T) {
	p := models.DefaultRuleParams()
	p.VWindowBars = 8
	candles := flatCandles(8, 99, 101)
	for i := range candles {
		candles[i].Close = 100
	}
	candles[3].Low = 90
	candles[7].Close = 97

	assert.True(t, CheckVShape(candles, p))
}

func TestCheckVShape_ShallowDropIsNotV(t *testing.T) {
	p := models.DefaultRuleParams()
	p.VWindowBars = 8
	candles := flatCandles(8, 99, 101)
	for i := range candles {
		candles[i].Close = 100
	}
	candles[3].Low = 98
	candles[7].Close = 100

	assert.False(t, CheckVShape(candles, p))
}

func TestClassifyPattern_WAllowsEntry(t *testing.T) {
	p := models.DefaultRuleParams()
	candles := flatCandles(p.WWindowBars, 110, 112)
	candles[10].Low = 100
	candles[15].High = 120
	candles[20].Low = 101

	pattern, w := ClassifyPattern(candles, p)
	assert.Equal(t, models.PatternW, pattern)
	assert.Equal(t, 101.0, w.Low2)
}

func TestClassifyPattern_NoStructureIsNone(t *testing.T) {
	p := models.DefaultRuleParams()
	pattern, _ := ClassifyPattern(flatCandles(p.WWindowBars, 110, 112), p)
	assert.Equal(t, models.PatternNone, pattern)
}
