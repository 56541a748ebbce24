package rules

import (
	"time"

	"cdczone-bot-go/internal/indicator"
	"cdczone-bot-go/internal/models"
)

// MACD signal line period, fixed alongside the configurable fast/slow EMAs.
const macdSignalPeriod = 9

// EntryPlan carries the pattern context an entry order needs beyond the
// pass/fail verdict: the stop anchor and the trailing activation inputs.
type EntryPlan struct {
	Pattern models.Pattern
	WShape  indicator.WShape
	WLow    float64
}

// MinEntryCandles is the number of closed LTF bars the entry rules need.
func MinEntryCandles(p models.RuleParams) int {
	min := p.WWindowBars
	if p.EMASlowPeriod > min {
		min = p.EMASlowPeriod
	}
	if p.RSIPeriod+1 > min {
		min = p.RSIPeriod + 1
	}
	return min
}

// EvaluateEntry runs the four entry rules over closed candles only and
// returns the audit record plus the entry plan. All four rules are evaluated
// and recorded even when an earlier one fails. Disabled rules pass vacuously;
// the snapshot still carries the real indicator outcome.
func EvaluateEntry(cfg models.PairConfig, ltf, htf []models.Candle, now time.Time) (*models.RuleEvaluation, EntryPlan, error) {
	p := cfg.RuleParams
	if len(ltf) < MinEntryCandles(p) || len(htf) < 1 {
		return nil, EntryPlan{}, models.ErrInsufficientData
	}

	ltfCloses := closesOf(ltf)
	htfCloses := closesOf(htf)
	ltfZone := indicator.ComputeZone(ltfCloses, p.EMAFastPeriod, p.EMASlowPeriod)
	htfZone := indicator.ComputeZone(htfCloses, p.EMAFastPeriod, p.EMASlowPeriod)

	ruleCDC := ltfZone.Last() == models.ColorGreen && htfZone.Last() == models.ColorGreen

	ruleLeadingRed := indicator.CheckLeadingRed(ltfZone, htfZone, p.LeadRedMinBars, p.LeadRedMaxBars)

	hist := indicator.MACDHistogram(ltfCloses, p.EMAFastPeriod, p.EMASlowPeriod, macdSignalPeriod)
	momentumFlip := indicator.CheckMomentumFlip(hist, p.MomentumLookback)
	higherLow := indicator.CheckHigherLow(ltf, p.HigherLowMinDiffPct, p.HigherLowMaxBars)
	leadingSignal := momentumFlip && higherLow
	ruleLeadingSignal := leadingSignal
	if !cfg.EnableLeadingSignal {
		ruleLeadingSignal = true
	}

	pattern, w := indicator.ClassifyPattern(ltf, p)
	rulePattern := pattern == models.PatternW
	if !cfg.EnableWShape {
		rulePattern = true
	}

	plan := EntryPlan{Pattern: pattern, WShape: w}
	if pattern == models.PatternW {
		plan.WLow = w.Low1
		if w.Low2 < w.Low1 {
			plan.WLow = w.Low2
		}
	}

	n := len(ltf)
	rsi := indicator.RSISeries(ltfCloses, p.RSIPeriod)
	divergences := indicator.DivergenceStates(
		rsi, lowsOf(ltf), highsOf(ltf), bullTrendOf(ltfZone), ltfZone.Colors)

	eval := &models.RuleEvaluation{
		Pair:        cfg.Pair,
		Timestamp:   now,
		BarOpenTime: ltf[n-1].OpenTime,
		EntryRules: map[string]bool{
			models.EntryRuleCDCGreen:      ruleCDC,
			models.EntryRuleLeadingRed:    ruleLeadingRed,
			models.EntryRuleLeadingSignal: ruleLeadingSignal,
			models.EntryRuleWShape:        rulePattern,
		},
		EntryPass: ruleCDC && ruleLeadingRed && ruleLeadingSignal && rulePattern,
		Snapshot: models.IndicatorSnapshot{
			CDCColorLTF:   ltfZone.Last(),
			CDCColorHTF:   htfZone.Last(),
			LeadingRed:    ruleLeadingRed,
			LeadingSignal: leadingSignal,
			Pattern:       pattern,
			WLow:          plan.WLow,
			WMidHigh:      w.MidHigh,
			EMAFast:       ltfZone.EMAFast[n-1],
			EMASlow:       ltfZone.EMASlow[n-1],
			RSI:           rsi[n-1],
			RSIDivergence: divergences[n-1],
		},
	}
	return eval, plan, nil
}

// EvaluateExit runs the five exit rules for an open LONG position. The
// protective stops (structural and trailing) use the real-time price; the
// trend rules use only the closed-bar series. The returned reason is the
// highest-priority rule that fired; the map records every rule's outcome.
func EvaluateExit(cfg models.PairConfig, pos *models.PositionState, ltf []models.Candle, currentPrice float64) (string, map[string]bool) {
	p := cfg.RuleParams

	structuralHit := pos.SLPrice > 0 && currentPrice <= pos.SLPrice
	trailingHit := pos.TrailingStopActivated && pos.TrailingStopPrice > 0 &&
		currentPrice <= pos.TrailingStopPrice

	emaCross := false
	orangeRed := false
	strongSell := false
	if len(ltf) >= 2 {
		closes := closesOf(ltf)
		zone := indicator.ComputeZone(closes, p.EMAFastPeriod, p.EMASlowPeriod)
		n := len(ltf)
		emaCross = zone.EMAFast[n-1] < zone.EMASlow[n-1]
		orangeRed = zone.Colors[n-2] == models.ColorOrange && zone.Colors[n-1] == models.ColorRed

		rsi := indicator.RSISeries(closes, p.RSIPeriod)
		divergences := indicator.DivergenceStates(
			rsi, lowsOf(ltf), highsOf(ltf), bullTrendOf(zone), zone.Colors)
		strongSell = divergences[n-1] == models.DivergenceStrongSell
	}

	outcomes := map[string]bool{
		models.ExitRuleStructuralSL: structuralHit,
		models.ExitRuleEMACross:     emaCross,
		models.ExitRuleTrailingStop: trailingHit,
		models.ExitRuleOrangeRed:    orangeRed,
		models.ExitRuleStrongSell:   strongSell,
	}

	switch {
	case structuralHit:
		return models.ExitRuleStructuralSL, outcomes
	case emaCross:
		return models.ExitRuleEMACross, outcomes
	case trailingHit:
		return models.ExitRuleTrailingStop, outcomes
	case orangeRed:
		return models.ExitRuleOrangeRed, outcomes
	case strongSell:
		return models.ExitRuleStrongSell, outcomes
	}
	return "", outcomes
}

func closesOf(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Close
	}
	return out
}

func lowsOf(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Low
	}
	return out
}

func highsOf(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].High
	}
	return out
}

func bullTrendOf(z indicator.Zone) []bool {
	out := make([]bool, len(z.EMAFast))
	for i := range out {
		out[i] = z.EMAFast[i] > z.EMASlow[i]
	}
	return out
}
