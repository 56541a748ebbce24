package candles

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"cdczone-bot-go/internal/logger"

	"github.com/adshao/go-binance/v2"
)

// Downloader fetches historical klines from Binance and writes them as CSV
// files that LoadCSV can read back for backtesting.
type Downloader struct {
	client *binance.Client
	pause  time.Duration
}

// NewDownloader builds a downloader. Market data is public, no API key needed.
func NewDownloader() *Downloader {
	return &Downloader{
		client: binance.NewClient("", ""),
		pause:  200 * time.Millisecond,
	}
}

// Download writes the pair's klines between start and end to path. An existing
// file is treated as a cache and left untouched.
func (d *Downloader) Download(ctx context.Context, pair, timeframe, path string, start, end time.Time) error {
	if _, err := os.Stat(path); err == nil {
		logger.S().Infow("using cached klines", "pair", pair, "timeframe", timeframe, "path", path)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"open_time", "open", "high", "low", "close", "volume", "close_time"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	logger.S().Infow("downloading klines",
		"pair", pair,
		"timeframe", timeframe,
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
	)

	for t := start; t.Before(end); {
		klines, err := d.client.NewKlinesService().
			Symbol(pair).
			Interval(timeframe).
			StartTime(t.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(1000).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("fetch klines for %s: %w", pair, err)
		}
		if len(klines) == 0 {
			break
		}
		if err := writeKlines(writer, klines); err != nil {
			return fmt.Errorf("write csv rows: %w", err)
		}

		t = time.UnixMilli(klines[len(klines)-1].CloseTime + 1)
		logger.S().Debugw("downloaded klines", "pair", pair, "through", t.UTC())

		// Pace requests below the public rate limit.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.pause):
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	logger.S().Infow("klines saved", "pair", pair, "timeframe", timeframe, "path", path)
	return nil
}

func writeKlines(w *csv.Writer, klines []*binance.Kline) error {
	for _, k := range klines {
		rec := []string{
			strconv.FormatInt(k.OpenTime, 10),
			k.Open,
			k.High,
			k.Low,
			k.Close,
			k.Volume,
			strconv.FormatInt(k.CloseTime, 10),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}
