package candles

import (
	"context"
	"fmt"
	"time"

	"cdczone-bot-go/internal/models"
)

// Feed supplies OHLCV candles for evaluation cycles.
type Feed interface {
	// Candles returns up to limit most recent candles for pair/timeframe,
	// oldest first. The final candle may still be forming (Closed == false).
	Candles(ctx context.Context, pair, timeframe string, limit int) ([]models.Candle, error)
}

// TimeframeDuration converts a timeframe label into its bar duration.
func TimeframeDuration(timeframe string) (time.Duration, error) {
	switch timeframe {
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	case "1w":
		return 7 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unsupported timeframe %q", timeframe)
}

// HigherTimeframe maps a lower timeframe to the confirmation timeframe the
// multi-timeframe rules evaluate against.
func HigherTimeframe(ltf string) string {
	switch ltf {
	case "1h":
		return "1d"
	default:
		return "1w"
	}
}

// MarkClosed stamps each candle's Closed flag: a bar is closed once its
// open time plus the bar duration is not after now.
func MarkClosed(candles []models.Candle, now time.Time) error {
	for i := range candles {
		d, err := TimeframeDuration(candles[i].Timeframe)
		if err != nil {
			return err
		}
		candles[i].Closed = !candles[i].OpenTime.Add(d).After(now)
	}
	return nil
}

// SplitClosed separates the closed bars from the still-forming one. Entry
// rules and trend exits see only the closed slice; protective stops read the
// current bar.
func SplitClosed(candles []models.Candle) ([]models.Candle, *models.Candle) {
	if len(candles) == 0 {
		return nil, nil
	}
	last := candles[len(candles)-1]
	if last.Closed {
		return candles, nil
	}
	return candles[:len(candles)-1], &last
}
