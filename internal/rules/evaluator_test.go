package rules

import (
	"testing"
	"time"

	"cdczone-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pairConfig() models.PairConfig {
	return models.PairConfig{
		Pair:                "BTCUSDT",
		Timeframe:           "1h",
		BudgetPct:           0.2,
		EnableWShape:        true,
		EnableLeadingSignal: true,
		RuleParams:          models.DefaultRuleParams(),
	}
}

func candlesFromCloses(closes []float64) []models.Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Pair:      "BTCUSDT",
			Timeframe: "1h",
			OpenTime:  base.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Closed:    true,
		}
	}
	return out
}

func trendCloses(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestEvaluateEntry_InsufficientData(t *testing.T) {
	cfg := pairConfig()
	ltf := candlesFromCloses(trendCloses(5, 100, 1))
	htf := candlesFromCloses(trendCloses(5, 100, 1))

	_, _, err := EvaluateEntry(cfg, ltf, htf, time.Now())
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestEvaluateEntry_RecordsAllFourRules(t *testing.T) {
	cfg := pairConfig()
	ltf := candlesFromCloses(trendCloses(60, 100, 2))
	htf := candlesFromCloses(trendCloses(40, 100, 5))
	now := time.Now()

	eval, _, err := EvaluateEntry(cfg, ltf, htf, now)
	require.NoError(t, err)

	require.Len(t, eval.EntryRules, 4)
	expectedPass := eval.EntryRules[models.EntryRuleCDCGreen] &&
		eval.EntryRules[models.EntryRuleLeadingRed] &&
		eval.EntryRules[models.EntryRuleLeadingSignal] &&
		eval.EntryRules[models.EntryRuleWShape]
	assert.Equal(t, expectedPass, eval.EntryPass)
	assert.Equal(t, ltf[59].OpenTime, eval.BarOpenTime)
	assert.Equal(t, now, eval.Timestamp)
	assert.Equal(t, "BTCUSDT", eval.Pair)

	// A steady rise without a prior red leg cannot satisfy leading red.
	assert.False(t, eval.EntryRules[models.EntryRuleLeadingRed])
	assert.False(t, eval.EntryPass)
	assert.Equal(t, models.ColorGreen, eval.Snapshot.CDCColorLTF)
	assert.Equal(t, models.ColorGreen, eval.Snapshot.CDCColorHTF)
}

func TestEvaluateEntry_DisabledRulesPassVacuously(t *testing.T) {
	cfg := pairConfig()
	cfg.EnableWShape = false
	cfg.EnableLeadingSignal = false

	ltf := candlesFromCloses(trendCloses(60, 220, -2))
	htf := candlesFromCloses(trendCloses(40, 220, -2))

	eval, plan, err := EvaluateEntry(cfg, ltf, htf, time.Now())
	require.NoError(t, err)

	assert.True(t, eval.EntryRules[models.EntryRuleWShape])
	assert.True(t, eval.EntryRules[models.EntryRuleLeadingSignal])
	// The snapshot keeps the real outcome even when the rule is disabled.
	assert.Equal(t, models.PatternNone, eval.Snapshot.Pattern)
	assert.False(t, eval.Snapshot.LeadingSignal)
	assert.Equal(t, models.PatternNone, plan.Pattern)

	// Falling trend fails the color rule, so the AND still fails.
	assert.False(t, eval.EntryRules[models.EntryRuleCDCGreen])
	assert.False(t, eval.EntryPass)
}

func TestEvaluateEntry_WShapeAnchorsPlan(t *testing.T) {
	cfg := pairConfig()
	p := cfg.RuleParams

	candles := candlesFromCloses(trendCloses(p.WWindowBars, 111, 0))
	for i := range candles {
		candles[i].High = 112
		candles[i].Low = 110
	}
	candles[10].Low = 100
	candles[15].High = 120
	candles[20].Low = 101
	htf := candlesFromCloses(trendCloses(10, 100, 5))

	eval, plan, err := EvaluateEntry(cfg, candles, htf, time.Now())
	require.NoError(t, err)

	assert.Equal(t, models.PatternW, plan.Pattern)
	assert.Equal(t, 100.0, plan.WLow)
	assert.Equal(t, 120.0, plan.WShape.MidHigh)
	assert.True(t, eval.EntryRules[models.EntryRuleWShape])
	assert.Equal(t, 100.0, eval.Snapshot.WLow)
}

func longPosition() *models.PositionState {
	return &models.PositionState{
		Pair:       "BTCUSDT",
		Status:     models.StatusLong,
		EntryPrice: 100,
		Qty:        1,
	}
}

func TestEvaluateExit_StructuralSLUsesRealtimePrice(t *testing.T) {
	cfg := pairConfig()
	pos := longPosition()
	pos.SLPrice = 100
	ltf := candlesFromCloses(trendCloses(60, 100, 2))

	reason, outcomes := EvaluateExit(cfg, pos, ltf, 99.5)
	assert.Equal(t, models.ExitRuleStructuralSL, reason)
	assert.True(t, outcomes[models.ExitRuleStructuralSL])
}

func TestEvaluateExit_TrailingRequiresActivation(t *testing.T) {
	cfg := pairConfig()
	pos := longPosition()
	pos.TrailingStopPrice = 120
	pos.TrailingStopActivated = false
	ltf := candlesFromCloses(trendCloses(60, 100, 2))

	reason, outcomes := EvaluateExit(cfg, pos, ltf, 119)
	assert.Empty(t, reason)
	assert.False(t, outcomes[models.ExitRuleTrailingStop])

	pos.TrailingStopActivated = true
	reason, outcomes = EvaluateExit(cfg, pos, ltf, 119)
	assert.Equal(t, models.ExitRuleTrailingStop, reason)
	assert.True(t, outcomes[models.ExitRuleTrailingStop])
}

func TestEvaluateExit_BearishEMACross(t *testing.T) {
	cfg := pairConfig()
	pos := longPosition()
	pos.SLPrice = 1
	ltf := candlesFromCloses(trendCloses(60, 220, -2))

	reason, outcomes := EvaluateExit(cfg, pos, ltf, 80)
	assert.Equal(t, models.ExitRuleEMACross, reason)
	assert.True(t, outcomes[models.ExitRuleEMACross])
}

func TestEvaluateExit_OrangeRedTransitionRecorded(t *testing.T) {
	cfg := pairConfig()
	pos := longPosition()

	closes := trendCloses(10, 10, 10) // 10..100
	for i := 0; i < 9; i++ {
		closes = append(closes, 20)
	}
	ltf := candlesFromCloses(closes)

	reason, outcomes := EvaluateExit(cfg, pos, ltf, 20)
	assert.True(t, outcomes[models.ExitRuleOrangeRed])
	// The same bar that completes ORANGE to RED also crosses the EMAs, and
	// the cross carries higher priority for the recorded reason.
	assert.True(t, outcomes[models.ExitRuleEMACross])
	assert.Equal(t, models.ExitRuleEMACross, reason)
}

func TestEvaluateExit_NoSignal(t *testing.T) {
	cfg := pairConfig()
	pos := longPosition()
	pos.SLPrice = 50
	ltf := candlesFromCloses(trendCloses(60, 100, 2))

	reason, outcomes := EvaluateExit(cfg, pos, ltf, 218)
	assert.Empty(t, reason)
	for name, fired := range outcomes {
		assert.False(t, fired, name)
	}
}
