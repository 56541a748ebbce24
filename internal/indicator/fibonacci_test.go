package indicator

import (
	"testing"

	"cdczone-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestFibExtension100(t *testing.T) {
	assert.InDelta(t, 140.0, FibExtension100(100, 120), 1e-9)
}

func TestTrailingActivation_WUsesFibExtension(t *testing.T) {
	w := WShape{Low1: 100, MidHigh: 120, Low2: 101}
	got := TrailingActivation(models.PatternW, w, 118, 0.05)
	assert.InDelta(t, 140.0*1.05, got, 1e-9)
}

func TestTrailingActivation_WAnchorsLowerLow(t *testing.T) {
	// A second low below the first moves the extension anchor down with it.
	w := WShape{Low1: 100, MidHigh: 120, Low2: 98}
	got := TrailingActivation(models.PatternW, w, 118, 0.05)
	assert.InDelta(t, (2*120-98)*1.05, got, 1e-9)
}

func TestTrailingActivation_FallbackIsProfitTarget(t *testing.T) {
	got := TrailingActivation(models.PatternNone, WShape{}, 200, 0.05)
	assert.InDelta(t, 215.0, got, 1e-9)

	got = TrailingActivation(models.PatternV, WShape{}, 100, 0.05)
	assert.InDelta(t, 107.5, got, 1e-9)
}

func TestStructuralSL(t *testing.T) {
	assert.InDelta(t, 99.7, StructuralSL(100, 0.003), 1e-9)
}
