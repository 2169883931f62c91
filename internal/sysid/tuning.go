package sysid

import (
	"math"

	"procsight/domain/series"
)

const (
	deadTimeFraction = 0.1
	gainFloor        = 1e-9
	lagGuard         = 1e-9
)

// Tune derives PID settings from a fitted first-order model using the
// Ziegler-Nichols open-loop rules, with the apparent dead time approximated
// as a fixed fraction of the time constant.
func Tune(m series.FittedStepModel) series.TuningRecommendation {
	l := math.Max(0, deadTimeFraction*m.Tau)

	gain := math.Abs(m.K)
	if gain < gainFloor {
		gain = gainFloor
	}

	return series.TuningRecommendation{
		L:  l,
		Kp: 1.2 * m.Tau / (gain * (l + lagGuard)),
		Ti: 2 * l,
		Td: 0.5 * l,
	}
}
