package candles

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"cdczone-bot-go/internal/models"
)

// LoadCSV reads a kline CSV export (open_time_ms, open, high, low, close,
// volume, ... extra columns ignored) into closed candles, oldest first.
func LoadCSV(path, pair, timeframe string) ([]models.Candle, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}

	out := make([]models.Candle, 0, len(records))
	for i, rec := range records {
		if len(rec) < 6 {
			return nil, fmt.Errorf("csv %s row %d: expected at least 6 columns, got %d", path, i+1, len(rec))
		}
		openTime, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			// Skip a header row.
			if i == 0 {
				continue
			}
			return nil, fmt.Errorf("csv %s row %d: bad open time: %w", path, i+1, err)
		}
		c := models.Candle{
			Pair:      pair,
			Timeframe: timeframe,
			OpenTime:  time.UnixMilli(openTime).UTC(),
			Closed:    true,
		}
		if c.Open, err = strconv.ParseFloat(rec[1], 64); err != nil {
			return nil, fmt.Errorf("csv %s row %d: bad open: %w", path, i+1, err)
		}
		if c.High, err = strconv.ParseFloat(rec[2], 64); err != nil {
			return nil, fmt.Errorf("csv %s row %d: bad high: %w", path, i+1, err)
		}
		if c.Low, err = strconv.ParseFloat(rec[3], 64); err != nil {
			return nil, fmt.Errorf("csv %s row %d: bad low: %w", path, i+1, err)
		}
		if c.Close, err = strconv.ParseFloat(rec[4], 64); err != nil {
			return nil, fmt.Errorf("csv %s row %d: bad close: %w", path, i+1, err)
		}
		if c.Volume, err = strconv.ParseFloat(rec[5], 64); err != nil {
			return nil, fmt.Errorf("csv %s row %d: bad volume: %w", path, i+1, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// HistoryFeed replays preloaded candles as a Feed for backtests. Advance
// moves the replay cursor one bar forward on the lower timeframe.
type HistoryFeed struct {
	series  map[string][]models.Candle
	cursor  map[string]int
	primary string
}

// NewHistoryFeed builds a replay feed. Keys are pair+"/"+timeframe.
func NewHistoryFeed() *HistoryFeed {
	return &HistoryFeed{
		series: make(map[string][]models.Candle),
		cursor: make(map[string]int),
	}
}

func seriesKey(pair, timeframe string) string {
	return pair + "/" + timeframe
}

// Load registers a candle series for replay.
func (h *HistoryFeed) Load(pair, timeframe string, series []models.Candle) {
	key := seriesKey(pair, timeframe)
	h.series[key] = series
	h.cursor[key] = 0
}

// SetPrimary marks the series whose cursor defines replay time. Candles
// requests for any other series are answered relative to the primary cursor,
// so the higher timeframe stays aligned with the replayed bar.
func (h *HistoryFeed) SetPrimary(pair, timeframe string) {
	h.primary = seriesKey(pair, timeframe)
}

// Advance moves the cursor forward one bar; returns false at the end.
func (h *HistoryFeed) Advance(pair, timeframe string) bool {
	key := seriesKey(pair, timeframe)
	if h.cursor[key]+1 >= len(h.series[key]) {
		return false
	}
	h.cursor[key]++
	return true
}

// Now returns the open time of the cursor bar on the given series.
func (h *HistoryFeed) Now(pair, timeframe string) time.Time {
	key := seriesKey(pair, timeframe)
	series := h.series[key]
	if len(series) == 0 {
		return time.Time{}
	}
	return series[h.cursor[key]].OpenTime
}

// CandlesUntil returns the bars of a series fully closed as of now, oldest
// first, capped at limit. Backtests use it to align the higher timeframe
// with the lower-timeframe cursor.
func (h *HistoryFeed) CandlesUntil(pair, timeframe string, limit int, now time.Time) ([]models.Candle, error) {
	key := seriesKey(pair, timeframe)
	series, ok := h.series[key]
	if !ok {
		return nil, fmt.Errorf("no series loaded for %s %s", pair, timeframe)
	}
	d, err := TimeframeDuration(timeframe)
	if err != nil {
		return nil, err
	}
	end := 0
	for end < len(series) && !series[end].OpenTime.Add(d).After(now) {
		end++
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	window := make([]models.Candle, end-start)
	copy(window, series[start:end])
	return window, nil
}

// Candles serves the window ending at the cursor. The cursor bar is returned
// with Closed=false: it is "now" from the replay's point of view.
func (h *HistoryFeed) Candles(_ context.Context, pair, timeframe string, limit int) ([]models.Candle, error) {
	key := seriesKey(pair, timeframe)
	series, ok := h.series[key]
	if !ok {
		return nil, fmt.Errorf("no series loaded for %s %s", pair, timeframe)
	}
	if h.primary != "" && key != h.primary {
		primarySeries := h.series[h.primary]
		if len(primarySeries) == 0 {
			return nil, fmt.Errorf("primary series empty")
		}
		now := primarySeries[h.cursor[h.primary]].OpenTime
		return h.CandlesUntil(pair, timeframe, limit, now)
	}
	end := h.cursor[key] + 1
	start := end - limit
	if start < 0 {
		start = 0
	}
	window := make([]models.Candle, end-start)
	copy(window, series[start:end])
	if len(window) > 0 {
		window[len(window)-1].Closed = false
	}
	return window, nil
}
