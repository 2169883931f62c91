package sysid

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procsight/domain/core"
	"procsight/domain/series"
	"procsight/internal/testkit"
)

func TestFitRecoversExactFirstOrderResponse(t *testing.T) {
	const (
		k   = 5.0
		tau = 10.0
		y0  = 2.0
	)
	// 6·tau worth of one-second samples covers the full transient.
	s := testkit.FirstOrderSeries("resp", 80, time.Second, k, tau, y0)
	w := series.StepWindow{
		Key:        s.Key,
		StartIndex: 0,
		EndIndex:   s.Len() - 1,
		StartTime:  s.Timestamps[0],
		EndTime:    s.Timestamps[s.Len()-1],
	}

	model, err := NewIdentifier().Fit(s, w)
	require.NoError(t, err)

	assert.InEpsilon(t, k, model.K, 0.01)
	assert.InEpsilon(t, tau, model.Tau, 0.01)
	assert.InDelta(t, y0, model.Y0, 0.05)
	assert.GreaterOrEqual(t, model.R2, 0.999)
}

func TestFitWindowTooShort(t *testing.T) {
	s := testkit.FirstOrderSeries("resp", 40, time.Second, 5, 10, 2)
	w := series.StepWindow{Key: s.Key, StartIndex: 0, EndIndex: MinWindowSamples - 2}

	_, err := NewIdentifier().Fit(s, w)
	assert.ErrorIs(t, err, core.ErrWindowTooShort)
}

func TestRSquaredUndefinedOnConstantSegment(t *testing.T) {
	s := testkit.FlatSeries("flat", 40, 7.0)
	w := series.StepWindow{Key: s.Key, StartIndex: 0, EndIndex: 39}

	model, err := NewIdentifier().Fit(s, w)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(model.R2), "zero total variance must yield NaN, not 0 or 1")
}

func TestTuneHeuristicConstants(t *testing.T) {
	rec := Tune(series.FittedStepModel{K: 5, Tau: 10, Y0: 2})

	assert.InDelta(t, 1.0, rec.L, 1e-12)
	assert.InDelta(t, 2.0, rec.Ti, 1e-12)
	assert.InDelta(t, 0.5, rec.Td, 1e-12)
	assert.InDelta(t, 1.2*10/(5*1.0), rec.Kp, 1e-6)
}

func TestTuneGuardsNearZeroGain(t *testing.T) {
	rec := Tune(series.FittedStepModel{K: 0, Tau: 10})

	assert.False(t, math.IsInf(rec.Kp, 0), "gain floor must keep Kp finite")
	assert.False(t, math.IsNaN(rec.Kp))
}

func TestTuneNegativeGainUsesMagnitude(t *testing.T) {
	pos := Tune(series.FittedStepModel{K: 5, Tau: 10})
	neg := Tune(series.FittedStepModel{K: -5, Tau: 10})

	assert.InDelta(t, pos.Kp, neg.Kp, 1e-12)
}
