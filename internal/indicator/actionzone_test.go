package indicator

import (
	"testing"

	"cdczone-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func risingCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)*2
	}
	return out
}

func TestComputeZone_RisingTrendIsGreen(t *testing.T) {
	zone := ComputeZone(risingCloses(60), 12, 26)
	require.Len(t, zone.Colors, 60)
	assert.Equal(t, models.ColorGreen, zone.Last())
	assert.Greater(t, zone.EMAFast[59], zone.EMASlow[59])
}

func TestComputeZone_FallingTrendIsRed(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 200 - float64(i)*2
	}
	zone := ComputeZone(closes, 12, 26)
	assert.Equal(t, models.ColorRed, zone.Last())
	assert.Less(t, zone.EMAFast[59], zone.EMASlow[59])
}

func TestComputeZone_PullbackBelowBothEMAsIsOrange(t *testing.T) {
	closes := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 20}
	zone := ComputeZone(closes, 12, 26)
	last := len(closes) - 1
	require.Greater(t, zone.EMAFast[last], zone.EMASlow[last])
	require.Less(t, closes[last], zone.EMASlow[last])
	assert.Equal(t, models.ColorOrange, zone.Last())
}

func TestComputeZone_EmptySeries(t *testing.T) {
	zone := ComputeZone(nil, 12, 26)
	assert.Equal(t, models.ColorNone, zone.Last())
	assert.Empty(t, zone.Colors)
}
