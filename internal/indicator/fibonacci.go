package indicator

import "cdczone-bot-go/internal/models"

// FibExtension100 projects the full height of the low-to-high move above the
// high: high + (high - low).
func FibExtension100(low, high float64) float64 {
	return 2*high - low
}

// TrailingActivation picks the trailing-stop arm level for a new position.
// W bases extend from the lower of the two lows, the same anchor the
// structural stop uses; V and unclassified bases fall back to a 7.5% profit
// level.
func TrailingActivation(pattern models.Pattern, w WShape, entryPrice, activationMarginPct float64) float64 {
	if pattern == models.PatternW && w.MidHigh > 0 && w.Low1 > 0 {
		low := w.Low1
		if w.Low2 > 0 && w.Low2 < low {
			low = w.Low2
		}
		return FibExtension100(low, w.MidHigh) * (1 + activationMarginPct)
	}
	return entryPrice * 1.075
}

// StructuralSL places the protective stop a small buffer below the base low.
func StructuralSL(wLow, bufferPct float64) float64 {
	return wLow * (1 - bufferPct)
}
