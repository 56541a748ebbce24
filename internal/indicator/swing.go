package indicator

import "cdczone-bot-go/internal/models"

// SwingPoint is a local price extreme found by fractal comparison.
type SwingPoint struct {
	Index  int
	Price  float64
	IsHigh bool
}

// FractalWindow is the number of bars on each side a swing extreme must beat.
const FractalWindow = 2

// SwingLows finds local minima: bars whose low is strictly below the lows of
// the surrounding window bars on both sides.
func SwingLows(candles []models.Candle, window int) []SwingPoint {
	var lows []SwingPoint
	for i := window; i < len(candles)-window; i++ {
		cur := candles[i].Low
		ok := true
		for j := 1; j <= window; j++ {
			if cur >= candles[i-j].Low || cur >= candles[i+j].Low {
				ok = false
				break
			}
		}
		if ok {
			lows = append(lows, SwingPoint{Index: i, Price: cur})
		}
	}
	return lows
}

// SwingHighs finds local maxima: bars whose high is strictly above the highs
// of the surrounding window bars on both sides.
func SwingHighs(candles []models.Candle, window int) []SwingPoint {
	var highs []SwingPoint
	for i := window; i < len(candles)-window; i++ {
		cur := candles[i].High
		ok := true
		for j := 1; j <= window; j++ {
			if cur <= candles[i-j].High || cur <= candles[i+j].High {
				ok = false
				break
			}
		}
		if ok {
			highs = append(highs, SwingPoint{Index: i, Price: cur, IsHigh: true})
		}
	}
	return highs
}

// NearestSwingLow returns the most recent swing low in the trailing lookback
// window, falling back to 5% below the last low when none exists.
func NearestSwingLow(candles []models.Candle, lookback int) float64 {
	if len(candles) == 0 {
		return 0
	}
	start := len(candles) - lookback
	if start < 0 {
		start = 0
	}
	recent := candles[start:]
	lows := SwingLows(recent, FractalWindow)
	if len(lows) == 0 {
		return candles[len(candles)-1].Low * 0.95
	}
	return lows[len(lows)-1].Price
}
