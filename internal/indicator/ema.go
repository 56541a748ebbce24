package indicator

// EMASeries computes an exponential moving average with alpha = 2/(period+1),
// seeded from the first value. Output is aligned 1:1 with the input.
func EMASeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(values))
	ema := values[0]
	out[0] = ema
	for i := 1; i < len(values); i++ {
		ema = alpha*values[i] + (1-alpha)*ema
		out[i] = ema
	}
	return out
}

// MACDHistogram computes the MACD histogram series, aligned 1:1 with closes.
// Histogram = (EMA(fast) - EMA(slow)) - EMA(macd line, signal).
func MACDHistogram(closes []float64, fastPeriod, slowPeriod, signalPeriod int) []float64 {
	if len(closes) == 0 {
		return nil
	}
	fast := EMASeries(closes, fastPeriod)
	slow := EMASeries(closes, slowPeriod)
	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = fast[i] - slow[i]
	}
	signal := EMASeries(macdLine, signalPeriod)
	hist := make([]float64, len(closes))
	for i := range closes {
		hist[i] = macdLine[i] - signal[i]
	}
	return hist
}

// RSISeries computes Wilder-smoothed RSI, aligned 1:1 with closes. Indices
// before the first full averaging window are filled with the neutral 50.0, so
// rerunning over the same closes always yields the same series.
func RSISeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) < period+1 {
		for i := range out {
			out[i] = 50.0
		}
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := 0; i < period; i++ {
		out[i] = 50.0
	}
	out[period] = rsiFromAverages(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}
