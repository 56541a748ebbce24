package indicator

import "cdczone-bot-go/internal/models"

// CheckLeadingRed reports whether the multi-timeframe leading-red setup holds:
// HTF and current LTF bars are both GREEN, and a RED LTF bar exists within
// [minBars, maxBars] lookback from the current bar.
func CheckLeadingRed(ltf, htf Zone, minBars, maxBars int) bool {
	if len(ltf.Colors) == 0 || len(htf.Colors) == 0 {
		return false
	}
	if htf.Last() != models.ColorGreen || ltf.Last() != models.ColorGreen {
		return false
	}

	n := len(ltf.Colors)
	start := n - maxBars - 1
	if start < 0 {
		start = 0
	}
	end := n - minBars - 1
	if end < 0 {
		end = 0
	}
	for i := start; i <= end && i < n; i++ {
		if ltf.Colors[i] == models.ColorRed {
			return true
		}
	}
	return false
}

// CheckMomentumFlip reports whether the MACD histogram flipped from negative
// to non-negative within the lookback window.
func CheckMomentumFlip(histogram []float64, lookback int) bool {
	if len(histogram) < 2 {
		return false
	}
	start := len(histogram) - lookback - 1
	if start < 0 {
		start = 0
	}
	for i := start; i < len(histogram)-1; i++ {
		if histogram[i] < 0 && histogram[i+1] >= 0 {
			return true
		}
	}
	return false
}

// higherLowSwingLookback bounds the swing scan for the higher-low check.
const higherLowSwingLookback = 50

// CheckHigherLow reports whether the two most recent qualifying swing lows
// form a higher low: second above first by at least minDiffPct, with at most
// maxBarsBetween bars between them.
func CheckHigherLow(candles []models.Candle, minDiffPct float64, maxBarsBetween int) bool {
	if len(candles) < 10 {
		return false
	}
	start := len(candles) - higherLowSwingLookback
	if start < 0 {
		start = 0
	}
	lows := SwingLows(candles[start:], FractalWindow)
	if len(lows) < 2 {
		return false
	}
	for i := len(lows) - 1; i > 0; i-- {
		low2 := lows[i]
		low1 := lows[i-1]
		if low2.Index-low1.Index > maxBarsBetween {
			continue
		}
		if low2.Price > low1.Price {
			if (low2.Price-low1.Price)/low1.Price >= minDiffPct {
				return true
			}
		}
	}
	return false
}
