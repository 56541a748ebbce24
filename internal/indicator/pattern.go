package indicator

import "cdczone-bot-go/internal/models"

// WShape describes a detected double-bottom base.
type WShape struct {
	Low1     float64
	MidHigh  float64
	Low2     float64
	Leg1Bars int
	Leg2Bars int
}

// CheckWShape scans the trailing window for a double bottom: two swing lows
// with one swing high between them, both legs within the configured bar
// range, the mid high sufficiently above the first low, and the second low
// not below the first.
func CheckWShape(candles []models.Candle, p models.RuleParams) (bool, WShape) {
	if len(candles) < p.WWindowBars {
		return false, WShape{}
	}
	recent := candles[len(candles)-p.WWindowBars:]
	lows := SwingLows(recent, FractalWindow)
	highs := SwingHighs(recent, FractalWindow)
	if len(lows) < 2 || len(highs) < 1 {
		return false, WShape{}
	}

	// Most recent pair of lows wins.
	for i := len(lows) - 1; i > 0; i-- {
		low2 := lows[i]
		low1 := lows[i-1]

		var mid *SwingPoint
		for j := range highs {
			h := highs[j]
			if low1.Index < h.Index && h.Index < low2.Index {
				if mid == nil || h.Price > mid.Price {
					mid = &highs[j]
				}
			}
		}
		if mid == nil {
			continue
		}

		leg1 := mid.Index - low1.Index
		leg2 := low2.Index - mid.Index
		if leg1 < p.WLegMinBars || leg1 > p.WLegMaxBars {
			continue
		}
		if leg2 < p.WLegMinBars || leg2 > p.WLegMaxBars {
			continue
		}
		if (mid.Price-low1.Price)/low1.Price < p.WMidHighMinDiffPct {
			continue
		}
		if (low2.Price-low1.Price)/low1.Price < p.WMinHigherLowPct {
			continue
		}

		return true, WShape{
			Low1:     low1.Price,
			MidHigh:  mid.Price,
			Low2:     low2.Price,
			Leg1Bars: leg1,
			Leg2Bars: leg2,
		}
	}
	return false, WShape{}
}

// CheckVShape detects a sharp drop and sharp recovery in the trailing window.
// A V means the consolidation was too shallow to base a trade on.
func CheckVShape(candles []models.Candle, p models.RuleParams) bool {
	if len(candles) < p.VWindowBars {
		return false
	}
	recent := candles[len(candles)-p.VWindowBars:]

	lowestIdx := 0
	for i := 1; i < len(recent); i++ {
		if recent[i].Low < recent[lowestIdx].Low {
			lowestIdx = i
		}
	}
	if lowestIdx == 0 || lowestIdx >= p.VMaxDropBars {
		return false
	}

	startPrice := recent[0].Close
	lowestPrice := recent[lowestIdx].Low
	if (startPrice-lowestPrice)/startPrice < p.VMinDropPct {
		return false
	}

	recoveryBars := len(recent) - 1 - lowestIdx
	if recoveryBars < 1 || recoveryBars > p.VMaxRecoveryBars {
		return false
	}
	endPrice := recent[len(recent)-1].Close
	return (endPrice-lowestPrice)/lowestPrice >= p.VMinRecoveryPct
}

// ClassifyPattern labels the trailing price structure. V is checked first
// since it blocks entries; W produces the base metadata used for the
// structural stop and trailing activation.
func ClassifyPattern(candles []models.Candle, p models.RuleParams) (models.Pattern, WShape) {
	if CheckVShape(candles, p) {
		return models.PatternV, WShape{}
	}
	if ok, w := CheckWShape(candles, p); ok {
		return models.PatternW, w
	}
	return models.PatternNone, WShape{}
}
