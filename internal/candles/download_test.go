package candles

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteKlines_RoundTripsThroughLoadCSV(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	klines := []*binance.Kline{
		{
			OpenTime:  base.UnixMilli(),
			CloseTime: base.Add(time.Hour).UnixMilli() - 1,
			Open:      "100.5", High: "103", Low: "99.25", Close: "102", Volume: "12.5",
		},
		{
			OpenTime:  base.Add(time.Hour).UnixMilli(),
			CloseTime: base.Add(2 * time.Hour).UnixMilli() - 1,
			Open:      "102", High: "104", Low: "101", Close: "103.75", Volume: "8",
		},
	}

	path := filepath.Join(t.TempDir(), "klines.csv")
	file, err := os.Create(path)
	require.NoError(t, err)

	writer := csv.NewWriter(file)
	require.NoError(t, writer.Write([]string{"open_time", "open", "high", "low", "close", "volume", "close_time"}))
	require.NoError(t, writeKlines(writer, klines))
	writer.Flush()
	require.NoError(t, writer.Error())
	require.NoError(t, file.Close())

	got, err := LoadCSV(path, "BTCUSDT", "1h")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, base, got[0].OpenTime)
	assert.Equal(t, 100.5, got[0].Open)
	assert.Equal(t, 99.25, got[0].Low)
	assert.Equal(t, 103.75, got[1].Close)
	assert.Equal(t, 8.0, got[1].Volume)
	assert.True(t, got[1].Closed)
}
