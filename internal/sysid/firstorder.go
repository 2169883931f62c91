package sysid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"procsight/domain/core"
	"procsight/domain/series"
)

// Fitting limits. The iteration budget is generous because the problem is
// tiny (three parameters) and non-convergence should mean "no step-like
// segment", not "ran out of iterations".
const (
	MinWindowSamples = 6
	maxIterations    = 200
	steadyMeanSpan   = 10 // samples averaged on each side of the window
	tauGuard         = 1e-9
	tauFloorSeconds  = 1e-3 // keeps tau away from the division singularity
)

// Identifier fits the first-order lag model
//
//	y(t) = K·(1 − e^(−t/τ)) + y0
//
// to a windowed step segment, t in seconds from the window's first
// timestamp.
type Identifier struct{}

// NewIdentifier constructs an Identifier.
func NewIdentifier() *Identifier {
	return &Identifier{}
}

// SteadyStates returns the pre-step and post-step steady values: the mean of
// up to steadyMeanSpan samples ending at the window start, and the mean of
// up to steadyMeanSpan samples starting at the window end, both clamped to
// the series bounds.
func (id *Identifier) SteadyStates(s series.Series, w series.StepWindow) (pre, post float64) {
	lo := w.StartIndex - steadyMeanSpan
	if lo < 0 {
		lo = 0
	}
	pre = meanOf(s.Values[lo : w.StartIndex+1])

	hi := w.EndIndex + steadyMeanSpan
	if hi > s.Len()-1 {
		hi = s.Len() - 1
	}
	post = meanOf(s.Values[w.EndIndex : hi+1])
	return pre, post
}

// Fit identifies the model over one step window. A window with fewer than
// MinWindowSamples is a data-sufficiency error; non-convergence is a
// numerical error. Both are per-series conditions for the batch driver,
// never fatal.
func (id *Identifier) Fit(s series.Series, w series.StepWindow) (series.FittedStepModel, error) {
	if w.SampleCount() < MinWindowSamples {
		return series.FittedStepModel{}, fmt.Errorf("%w: %d samples, need %d",
			core.ErrWindowTooShort, w.SampleCount(), MinWindowSamples)
	}

	t := make([]float64, w.SampleCount())
	y := make([]float64, w.SampleCount())
	base := s.Timestamps[w.StartIndex]
	for i := range t {
		t[i] = s.Timestamps[w.StartIndex+i].Sub(base).Seconds()
		y[i] = s.Values[w.StartIndex+i]
	}

	pre, post := id.SteadyStates(s, w)

	// Initial guess: gain from the steady levels, tau at a third of the
	// window span (floored at one second), offset at the pre-step level.
	guess := [3]float64{
		post - pre,
		math.Max(1.0, (t[len(t)-1]-t[0])/3.0),
		pre,
	}

	params, err := levenbergMarquardt(t, y, guess)
	if err != nil {
		return series.FittedStepModel{}, fmt.Errorf("%w: %v", core.ErrFitFailed, err)
	}

	model := series.FittedStepModel{K: params[0], Tau: params[1], Y0: params[2]}
	model.R2 = rSquared(t, y, model)
	return model, nil
}

// rSquared computes 1 − SSres/SStot. A constant segment (SStot == 0) yields
// NaN: undefined, not zero. Negative values mean the fit is worse than the
// mean predictor and are reported as-is.
func rSquared(t, y []float64, m series.FittedStepModel) float64 {
	mean := meanOf(y)
	ssRes, ssTot := 0.0, 0.0
	for i := range y {
		r := y[i] - m.Eval(t[i])
		ssRes += r * r
		d := y[i] - mean
		ssTot += d * d
	}
	if ssTot == 0 {
		return math.NaN()
	}
	return 1 - ssRes/ssTot
}

// levenbergMarquardt minimizes the residual sum of squares of the
// three-parameter model by damped Gauss-Newton steps, solving the 3×3
// normal equations with gonum.
func levenbergMarquardt(t, y []float64, guess [3]float64) ([3]float64, error) {
	params := guess
	params[1] = clampTau(params[1])

	lambda := 1e-3
	cost := residualCost(t, y, params)
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return params, fmt.Errorf("initial residual is not finite")
	}

	for iter := 0; iter < maxIterations; iter++ {
		jtj, jtr := normalEquations(t, y, params)

		// Damped system: (JᵀJ + λ·diag(JᵀJ))·δ = Jᵀr
		damped := mat.NewDense(3, 3, nil)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				v := jtj.At(i, j)
				if i == j {
					v += lambda * jtj.At(i, i)
				}
				damped.Set(i, j, v)
			}
		}

		var delta mat.VecDense
		if err := delta.SolveVec(damped, jtr); err != nil {
			lambda *= 10
			if lambda > 1e12 {
				return params, fmt.Errorf("normal equations singular")
			}
			continue
		}

		trial := [3]float64{
			params[0] + delta.AtVec(0),
			clampTau(params[1] + delta.AtVec(1)),
			params[2] + delta.AtVec(2),
		}
		trialCost := residualCost(t, y, trial)

		if !math.IsNaN(trialCost) && trialCost < cost {
			relImprovement := (cost - trialCost) / math.Max(cost, 1e-300)
			params = trial
			cost = trialCost
			lambda = math.Max(lambda/10, 1e-12)
			if relImprovement < 1e-12 || cost < 1e-30 {
				return params, nil
			}
		} else {
			lambda *= 10
			if lambda > 1e12 {
				// Cannot improve further; accept if the descent ever worked.
				return params, nil
			}
		}
	}
	return params, nil
}

// normalEquations builds JᵀJ and Jᵀr for the current parameters, where
// r_i = y_i − model(t_i).
func normalEquations(t, y []float64, p [3]float64) (*mat.SymDense, *mat.VecDense) {
	k, tau, y0 := p[0], p[1], p[2]
	jtj := mat.NewSymDense(3, nil)
	jtr := mat.NewVecDense(3, nil)

	for i := range t {
		e := math.Exp(-t[i] / (tau + tauGuard))
		model := k*(1-e) + y0
		r := y[i] - model

		// Partial derivatives of the model.
		g := tau + tauGuard
		j0 := 1 - e                    // d/dK
		j1 := -k * e * t[i] / (g * g)  // d/dτ
		j2 := 1.0                      // d/dy0
		row := [3]float64{j0, j1, j2}

		for a := 0; a < 3; a++ {
			for b := a; b < 3; b++ {
				jtj.SetSym(a, b, jtj.At(a, b)+row[a]*row[b])
			}
			jtr.SetVec(a, jtr.AtVec(a)+row[a]*r)
		}
	}
	return jtj, jtr
}

func residualCost(t, y []float64, p [3]float64) float64 {
	m := series.FittedStepModel{K: p[0], Tau: p[1], Y0: p[2]}
	cost := 0.0
	for i := range t {
		r := y[i] - m.Eval(t[i])
		cost += r * r
	}
	return cost
}

// clampTau keeps the time constant away from the division singularity at
// zero; negative excursions during iteration fold back to the floor.
func clampTau(tau float64) float64 {
	if tau < tauFloorSeconds {
		return tauFloorSeconds
	}
	return tau
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
