package causality

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"procsight/domain/core"
	"procsight/domain/series"
)

// DefaultMaxLagCap bounds the lag scan regardless of series length.
const DefaultMaxLagCap = 10

// Ranker runs Granger-style predictability tests over every ordered pair of
// selected series. The result is a predictability ranking, not a causality
// claim: the reported lag is the one with the smallest p-value across
// 1..maxlag with no multiple-comparison correction.
type Ranker struct {
	MaxLagCap int
}

// NewRanker constructs a Ranker with the given lag cap (0 = default).
func NewRanker(maxLagCap int) *Ranker {
	if maxLagCap < 1 {
		maxLagCap = DefaultMaxLagCap
	}
	return &Ranker{MaxLagCap: maxLagCap}
}

// Rank evaluates every ordered pair (x, y), x != y, over an already-cleaned
// dataset. A per-pair failure becomes an error marker on that pair only and
// never aborts the remaining pairs.
func (r *Ranker) Rank(ds *series.Dataset) []series.CausalityResult {
	n := ds.Len()
	maxLag := n / 5
	if maxLag < 1 {
		maxLag = 1
	}
	if maxLag > r.MaxLagCap {
		maxLag = r.MaxLagCap
	}

	var results []series.CausalityResult
	for _, source := range ds.Columns {
		for _, target := range ds.Columns {
			if source == target {
				continue
			}
			res := series.CausalityResult{Source: source, Target: target}
			lag, p, err := bestLag(ds.Values[source], ds.Values[target], maxLag)
			if err != nil {
				res.Err = err.Error()
			} else {
				res.BestLag = lag
				res.PValue = p
			}
			results = append(results, res)
		}
	}
	return results
}

// bestLag scans lags 1..maxLag and returns the lag whose F-test p-value is
// smallest.
func bestLag(x, y []float64, maxLag int) (int, float64, error) {
	bestLag, bestP := 0, math.Inf(1)
	var lastErr error
	for lag := 1; lag <= maxLag; lag++ {
		p, err := grangerPValue(x, y, lag)
		if err != nil {
			lastErr = err
			continue
		}
		if p < bestP {
			bestP = p
			bestLag = lag
		}
	}
	if bestLag == 0 {
		if lastErr == nil {
			lastErr = core.ErrInsufficientData
		}
		return 0, 0, lastErr
	}
	return bestLag, bestP, nil
}

// grangerPValue tests whether lags of x improve a linear forecast of y
// beyond y's own lags, via the sum-of-squared-residuals F test.
func grangerPValue(x, y []float64, lag int) (float64, error) {
	n := len(y)
	nobs := n - lag
	// Unrestricted model: constant + lag y-lags + lag x-lags.
	dfUnrestricted := 2*lag + 1
	df2 := nobs - dfUnrestricted
	if df2 < 1 {
		return 0, fmt.Errorf("%w: %d observations for lag %d", core.ErrInsufficientData, nobs, lag)
	}

	response := y[lag:]

	restricted := mat.NewDense(nobs, lag+1, nil)
	unrestricted := mat.NewDense(nobs, dfUnrestricted, nil)
	for i := 0; i < nobs; i++ {
		restricted.Set(i, 0, 1)
		unrestricted.Set(i, 0, 1)
		for l := 1; l <= lag; l++ {
			restricted.Set(i, l, y[lag+i-l])
			unrestricted.Set(i, l, y[lag+i-l])
			unrestricted.Set(i, lag+l, x[lag+i-l])
		}
	}

	rssRestricted, err := residualSumSquares(restricted, response)
	if err != nil {
		return 0, err
	}
	rssUnrestricted, err := residualSumSquares(unrestricted, response)
	if err != nil {
		return 0, err
	}

	if rssUnrestricted <= 0 {
		// Perfect unrestricted fit: the added regressors explain everything
		// only if they actually reduced the residual.
		if rssRestricted > 0 {
			return 0, nil
		}
		return 1, nil
	}

	f := ((rssRestricted - rssUnrestricted) / float64(lag)) / (rssUnrestricted / float64(df2))
	if f <= 0 || math.IsNaN(f) {
		return 1, nil
	}

	dist := distuv.F{D1: float64(lag), D2: float64(df2)}
	p := 1 - dist.CDF(f)
	if p < 0 {
		p = 0
	}
	return p, nil
}

// residualSumSquares solves the least-squares problem X·beta = y and returns
// the residual sum of squares.
func residualSumSquares(X *mat.Dense, y []float64) (float64, error) {
	nobs, _ := X.Dims()
	b := mat.NewDense(nobs, 1, y)

	var beta mat.Dense
	if err := beta.Solve(X, b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return 0, fmt.Errorf("lag regression is singular: %w", err)
		}
		// Ill-conditioned but solvable (near-collinear regressors); the RSS
		// is still meaningful for the F comparison.
	}

	var fitted mat.Dense
	fitted.Mul(X, &beta)

	rss := 0.0
	for i := 0; i < nobs; i++ {
		r := y[i] - fitted.At(i, 0)
		rss += r * r
	}
	return rss, nil
}
