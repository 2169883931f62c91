package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"procsight/domain/core"
	"procsight/domain/series"
)

// CorrelationMatrix is the symmetric Pearson coefficient matrix over the
// selected series. Diagonal entries are 1.0 by construction for any series
// with nonzero variance, NaN otherwise.
type CorrelationMatrix struct {
	Keys   []core.SeriesKey `json:"keys"`
	Labels []string         `json:"labels"` // short names, same order as Keys
	Coef   [][]float64      `json:"coef"`
}

// Correlate computes the Pearson matrix over an already-cleaned dataset
// (interpolated, rows with missing values dropped). Callers enforce the
// selection minimum of two series and at least one clean row.
func Correlate(ds *series.Dataset) CorrelationMatrix {
	n := len(ds.Columns)
	m := CorrelationMatrix{
		Keys:   append([]core.SeriesKey(nil), ds.Columns...),
		Labels: make([]string, n),
		Coef:   make([][]float64, n),
	}
	for i, key := range ds.Columns {
		label := ds.Meta[key].ShortName
		if label == "" {
			label = string(key)
		}
		m.Labels[i] = label
		m.Coef[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		xi := ds.Values[ds.Columns[i]]
		if variance(xi) > 0 {
			m.Coef[i][i] = 1.0
		} else {
			m.Coef[i][i] = math.NaN()
		}
		for j := i + 1; j < n; j++ {
			r := stat.Correlation(xi, ds.Values[ds.Columns[j]], nil)
			m.Coef[i][j] = r
			m.Coef[j][i] = r
		}
	}
	return m
}

func variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.Variance(values, nil)
}
