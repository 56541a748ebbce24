package indicator

import "cdczone-bot-go/internal/models"

// Zone holds the per-bar trend zone outputs for one candle series.
type Zone struct {
	Colors  []models.CDCColor
	EMAFast []float64
	EMASlow []float64
}

// ComputeZone classifies every bar into a trend color from the fast/slow EMA
// relationship and the close's position relative to them:
//
//	GREEN  : fast > slow and close > fast
//	RED    : fast < slow and close < fast
//	ORANGE : fast > slow and close < fast and close < slow
//	NONE   : everything else
func ComputeZone(closes []float64, fastPeriod, slowPeriod int) Zone {
	fast := EMASeries(closes, fastPeriod)
	slow := EMASeries(closes, slowPeriod)
	colors := make([]models.CDCColor, len(closes))
	for i, price := range closes {
		bull := fast[i] > slow[i]
		bear := fast[i] < slow[i]
		switch {
		case bull && price > fast[i]:
			colors[i] = models.ColorGreen
		case bear && price < fast[i]:
			colors[i] = models.ColorRed
		case bull && price < fast[i] && price < slow[i]:
			colors[i] = models.ColorOrange
		default:
			colors[i] = models.ColorNone
		}
	}
	return Zone{Colors: colors, EMAFast: fast, EMASlow: slow}
}

// Last returns the color of the most recent bar, or NONE on an empty series.
func (z Zone) Last() models.CDCColor {
	if len(z.Colors) == 0 {
		return models.ColorNone
	}
	return z.Colors[len(z.Colors)-1]
}
