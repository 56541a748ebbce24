package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEMASeries_SeedsFromFirstValue(t *testing.T) {
	out := EMASeries([]float64{10, 20}, 3)
	require.Len(t, out, 2)
	assert.Equal(t, 10.0, out[0])
	// alpha = 2/(3+1) = 0.5
	assert.InDelta(t, 15.0, out[1], 1e-9)
}

func TestEMASeries_ConstantInput(t *testing.T) {
	out := EMASeries([]float64{42, 42, 42, 42, 42}, 12)
	for _, v := range out {
		assert.InDelta(t, 42.0, v, 1e-9)
	}
}

func TestEMASeries_Empty(t *testing.T) {
	assert.Nil(t, EMASeries(nil, 12))
}

func TestMACDHistogram_ConstantInputIsZero(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100
	}
	hist := MACDHistogram(closes, 12, 26, 9)
	require.Len(t, hist, 50)
	for _, v := range hist {
		assert.InDelta(t, 0.0, v, 1e-9)
	}
}

func TestMACDHistogram_FlipsPositiveOnReversal(t *testing.T) {
	var closes []float64
	for i := 0; i < 30; i++ {
		closes = append(closes, 100-float64(i))
	}
	for i := 0; i < 30; i++ {
		closes = append(closes, 70+float64(i)*2)
	}
	hist := MACDHistogram(closes, 12, 26, 9)
	assert.Negative(t, hist[29])
	assert.Positive(t, hist[len(hist)-1])
}

func TestRSISeries_InsufficientDataIsNeutral(t *testing.T) {
	out := RSISeries([]float64{1, 2, 3}, 14)
	require.Len(t, out, 3)
	for _, v := range out {
		assert.Equal(t, 50.0, v)
	}
}

func TestRSISeries_AllGainsIsHundred(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	out := RSISeries(closes, 14)
	require.Len(t, out, 20)
	assert.Equal(t, 50.0, out[13])
	assert.Equal(t, 100.0, out[14])
	assert.Equal(t, 100.0, out[19])
}

func TestRSISeries_Deterministic(t *testing.T) {
	closes := []float64{44, 44.5, 43.8, 45.2, 46.1, 45.7, 46.3, 47.0, 46.5, 47.2,
		48.1, 47.6, 48.4, 49.0, 48.2, 49.5, 50.1, 49.4, 50.6, 51.2}
	first := RSISeries(closes, 14)
	second := RSISeries(closes, 14)
	assert.Equal(t, first, second)
	assert.Greater(t, first[19], 50.0)
	assert.LessOrEqual(t, first[19], 100.0)
}
