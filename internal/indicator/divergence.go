package indicator

import "cdczone-bot-go/internal/models"

// Divergence detection thresholds. Zone 1 is the extreme band, zone 2 the
// near band the RSI must revisit without the price confirming.
const (
	oversoldThreshold       = 30.0
	nearOversoldThreshold   = 35.0
	overboughtThreshold     = 70.0
	nearOverboughtThreshold = 65.0
	minCandlesBetweenZones  = 10
)

// DivergenceSignal is one confirmed RSI divergence.
type DivergenceSignal struct {
	Type       models.Divergence
	StartIndex int
	EndIndex   int
	RSIStart   float64
	RSIEnd     float64
	PriceStart float64
	PriceEnd   float64
}

type zonePoint struct {
	index int
	rsi   float64
	price float64
}

type divergenceSide struct {
	currentZone    []zonePoint
	nearZone       []zonePoint
	previousZone   *zonePoint
	previousBear   bool
	waitingForNear bool
}

func (s *divergenceSide) reset() {
	s.previousZone = nil
	s.previousBear = false
	s.nearZone = nil
	s.waitingForNear = false
}

// DivergenceDetector finds RSI divergences with a two-zone state machine:
// an extreme-zone visit establishes the anchor, a later near-zone visit at
// least minCandlesBetweenZones away confirms when price and RSI disagree.
type DivergenceDetector struct {
	bullish divergenceSide
	bearish divergenceSide
}

// NewDivergenceDetector returns a detector with empty state.
func NewDivergenceDetector() *DivergenceDetector {
	return &DivergenceDetector{}
}

// Detect scans the aligned series and returns every confirmed divergence.
// bullTrend[i] is fast EMA > slow EMA at bar i.
func (d *DivergenceDetector) Detect(rsi, lows, highs []float64, bullTrend []bool) []DivergenceSignal {
	var signals []DivergenceSignal
	if len(rsi) < 30 {
		return signals
	}
	for i := range rsi {
		if sig := d.processBullish(i, rsi[i], lows[i], !bullTrend[i]); sig != nil {
			signals = append(signals, *sig)
		}
		if sig := d.processBearish(i, rsi[i], highs[i], bullTrend[i]); sig != nil {
			signals = append(signals, *sig)
		}
	}
	return signals
}

func (d *DivergenceDetector) processBullish(i int, rsi, low float64, isBear bool) *DivergenceSignal {
	s := &d.bullish

	if rsi < oversoldThreshold {
		s.currentZone = append(s.currentZone, zonePoint{i, rsi, low})
	} else if len(s.currentZone) > 0 {
		lowest := s.currentZone[0]
		for _, p := range s.currentZone[1:] {
			if p.rsi < lowest.rsi {
				lowest = p
			}
		}
		if s.previousZone == nil || lowest.rsi < s.previousZone.rsi {
			s.previousZone = &lowest
			s.previousBear = isBear
		}
		s.currentZone = nil
		s.waitingForNear = true
		s.nearZone = nil
	}

	// A stronger extreme replaces the anchor.
	if s.waitingForNear && rsi < oversoldThreshold && isBear {
		if s.previousZone == nil || rsi < s.previousZone.rsi {
			s.previousZone = &zonePoint{i, rsi, low}
			s.previousBear = true
			s.nearZone = nil
		}
	}

	if s.waitingForNear && s.previousBear && !isBear {
		s.reset()
	}

	if s.waitingForNear && rsi <= nearOversoldThreshold && isBear {
		s.nearZone = append(s.nearZone, zonePoint{i, rsi, low})
	} else if s.waitingForNear && len(s.nearZone) > 0 && rsi > nearOversoldThreshold {
		lowestNear := s.nearZone[0]
		for _, p := range s.nearZone[1:] {
			if p.rsi < lowestNear.rsi {
				lowestNear = p
			}
		}

		if s.previousZone != nil && lowestNear.index-s.previousZone.index < minCandlesBetweenZones {
			s.nearZone = nil
			return nil
		}

		if s.previousZone != nil && s.previousBear {
			if lowestNear.rsi <= s.previousZone.rsi {
				s.previousZone = &lowestNear
				s.previousBear = true
			} else {
				prevLow := s.previousZone.price
				currLow := s.nearZone[0].price
				for _, p := range s.nearZone[1:] {
					if p.price < currLow {
						currLow = p.price
					}
				}
				if currLow < prevLow {
					sig := &DivergenceSignal{
						Type:       models.DivergenceBull,
						StartIndex: s.previousZone.index,
						EndIndex:   lowestNear.index,
						RSIStart:   s.previousZone.rsi,
						RSIEnd:     lowestNear.rsi,
						PriceStart: prevLow,
						PriceEnd:   currLow,
					}
					s.reset()
					return sig
				}
			}
		}
		s.nearZone = nil
	}

	if s.waitingForNear && rsi > 50 {
		s.reset()
	}
	return nil
}

func (d *DivergenceDetector) processBearish(i int, rsi, high float64, isBull bool) *DivergenceSignal {
	s := &d.bearish

	if rsi > overboughtThreshold {
		s.currentZone = append(s.currentZone, zonePoint{i, rsi, high})
	} else if len(s.currentZone) > 0 {
		highest := s.currentZone[0]
		for _, p := range s.currentZone[1:] {
			if p.rsi > highest.rsi {
				highest = p
			}
		}
		if s.previousZone == nil || highest.rsi > s.previousZone.rsi {
			s.previousZone = &highest
			s.previousBear = !isBull
		}
		s.currentZone = nil
		s.waitingForNear = true
		s.nearZone = nil
	}

	if s.waitingForNear && rsi > overboughtThreshold && isBull {
		if s.previousZone == nil || rsi > s.previousZone.rsi {
			s.previousZone = &zonePoint{i, rsi, high}
			s.previousBear = false
			s.nearZone = nil
		}
	}

	if s.waitingForNear && !s.previousBear && !isBull {
		s.reset()
	}

	if s.waitingForNear && rsi >= nearOverboughtThreshold && isBull {
		s.nearZone = append(s.nearZone, zonePoint{i, rsi, high})
	} else if s.waitingForNear && len(s.nearZone) > 0 && rsi < nearOverboughtThreshold {
		highestNear := s.nearZone[0]
		for _, p := range s.nearZone[1:] {
			if p.rsi > highestNear.rsi {
				highestNear = p
			}
		}

		if s.previousZone != nil && highestNear.index-s.previousZone.index < minCandlesBetweenZones {
			s.nearZone = nil
			return nil
		}

		if s.previousZone != nil && !s.previousBear {
			if highestNear.rsi >= s.previousZone.rsi {
				s.previousZone = &highestNear
				s.previousBear = false
			} else {
				prevHigh := s.previousZone.price
				currHigh := s.nearZone[0].price
				for _, p := range s.nearZone[1:] {
					if p.price > currHigh {
						currHigh = p.price
					}
				}
				if currHigh > prevHigh {
					sig := &DivergenceSignal{
						Type:       models.DivergenceBear,
						StartIndex: s.previousZone.index,
						EndIndex:   highestNear.index,
						RSIStart:   s.previousZone.rsi,
						RSIEnd:     highestNear.rsi,
						PriceStart: prevHigh,
						PriceEnd:   currHigh,
					}
					s.reset()
					return sig
				}
			}
		}
		s.nearZone = nil
	}

	if s.waitingForNear && rsi < 50 {
		s.reset()
	}
	return nil
}

// DivergenceStates assigns a per-bar divergence classification. A bearish
// divergence arms the bar as BEAR; it escalates to STRONG_SELL on the first
// ORANGE bar afterwards and then disarms. Bullish divergences arm BULL until
// the trend confirms.
func DivergenceStates(rsi, lows, highs []float64, bullTrend []bool, colors []models.CDCColor) []models.Divergence {
	out := make([]models.Divergence, len(rsi))
	for i := range out {
		out[i] = models.DivergenceNone
	}

	detector := NewDivergenceDetector()
	signals := detector.Detect(rsi, lows, highs, bullTrend)

	byEnd := make(map[int]models.Divergence, len(signals))
	for _, sig := range signals {
		byEnd[sig.EndIndex] = sig.Type
	}

	bullActive := false
	bearActive := false
	for i := range out {
		if t, ok := byEnd[i]; ok {
			switch t {
			case models.DivergenceBull:
				bullActive = true
			case models.DivergenceBear:
				bearActive = true
			}
		}

		if bearActive && colors[i] == models.ColorOrange {
			out[i] = models.DivergenceStrongSell
			bearActive = false
			continue
		}
		if bullActive && colors[i] == models.ColorGreen {
			bullActive = false
		}

		switch {
		case bearActive:
			out[i] = models.DivergenceBear
		case bullActive:
			out[i] = models.DivergenceBull
		}
	}
	return out
}
