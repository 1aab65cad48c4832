package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPickTier_WaitWhenFilterNotConfident(t *testing.T) {
	tr := pickTier(thresholdsFor(ModeSync), 0, false)
	assert.Equal(t, tierWait, tr)
}

func TestPickTier_Deadband(t *testing.T) {
	tr := pickTier(thresholdsFor(ModeSync), 0.5, true)
	assert.Equal(t, tierDeadband, tr)
}

func TestPickTier_Samples(t *testing.T) {
	tr := pickTier(thresholdsFor(ModeSync), 5, true)
	assert.Equal(t, tierSamples, tr)
}

func TestPickTier_Rate(t *testing.T) {
	tr := pickTier(thresholdsFor(ModeSync), 50, true)
	assert.Equal(t, tierRate, tr)
}

func TestPickTier_Resync(t *testing.T) {
	tr := pickTier(thresholdsFor(ModeSync), 250, true)
	assert.Equal(t, tierResync, tr)
}

func TestPickTier_QualityModeHasNoRateTier(t *testing.T) {
	tr := pickTier(thresholdsFor(ModeQuality), 20, true)
	assert.Equal(t, tierSamples, tr)
}

func TestRateFor_SmallAndLargeNudge(t *testing.T) {
	tr := thresholdsFor(ModeSync)
	assert.InDelta(t, 1.01, rateFor(tr, 10), 1e-9)
	assert.InDelta(t, 0.99, rateFor(tr, -10), 1e-9)
	assert.InDelta(t, 1.02, rateFor(tr, 40), 1e-9)
	assert.InDelta(t, 0.98, rateFor(tr, -40), 1e-9)
}
