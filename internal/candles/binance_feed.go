package candles

import (
	"context"
	"strconv"
	"time"

	"cdczone-bot-go/internal/exchange"
	"cdczone-bot-go/internal/models"
)

// BinanceFeed serves candles from the Binance klines endpoint.
type BinanceFeed struct {
	client *exchange.BinanceClient
}

// NewBinanceFeed wraps the execution client's kline access as a Feed.
func NewBinanceFeed(client *exchange.BinanceClient) *BinanceFeed {
	return &BinanceFeed{client: client}
}

func (f *BinanceFeed) Candles(ctx context.Context, pair, timeframe string, limit int) ([]models.Candle, error) {
	klines, err := f.client.Klines(ctx, pair, timeframe, limit)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		c := models.Candle{
			Pair:      pair,
			Timeframe: timeframe,
			OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
			Closed:    time.UnixMilli(k.CloseTime).Before(now),
		}
		c.Open, _ = strconv.ParseFloat(k.Open, 64)
		c.High, _ = strconv.ParseFloat(k.High, 64)
		c.Low, _ = strconv.ParseFloat(k.Low, 64)
		c.Close, _ = strconv.ParseFloat(k.Close, 64)
		c.Volume, _ = strconv.ParseFloat(k.Volume, 64)
		out = append(out, c)
	}
	return out, nil
}
