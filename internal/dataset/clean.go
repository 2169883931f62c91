package dataset

import (
	"time"

	"procsight/domain/core"
	"procsight/domain/series"
)

// Clean applies the engine's shared data-cleaning convention: linearly
// interpolate interior gaps per column, then drop any row that still holds
// a missing value. Correlation, causality, fuzzy mining, and step
// identification all clean the same way so their row sets agree.
func Clean(ds *series.Dataset) *series.Dataset {
	if ds.IsEmpty() {
		return ds
	}

	interp := make(map[core.SeriesKey][]float64, len(ds.Columns))
	for _, key := range ds.Columns {
		interp[key] = Interpolate(ds.Values[key])
	}

	keep := make([]int, 0, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		complete := true
		for _, key := range ds.Columns {
			if series.IsMissing(interp[key][i]) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}

	out := &series.Dataset{
		ID:      ds.ID,
		Columns: ds.Columns,
		Index:   make([]time.Time, len(keep)),
		Values:  make(map[core.SeriesKey][]float64, len(ds.Columns)),
		Meta:    ds.Meta,
	}
	for j, i := range keep {
		out.Index[j] = ds.Index[i]
	}
	for _, key := range ds.Columns {
		col := make([]float64, len(keep))
		src := interp[key]
		for j, i := range keep {
			col[j] = src[i]
		}
		out.Values[key] = col
	}
	return out
}

// Interpolate fills interior gaps by linear interpolation between the
// surrounding valid samples and carries the last valid value forward over a
// trailing gap. Leading gaps stay missing; Clean's row drop removes them.
func Interpolate(values []float64) []float64 {
	out := append([]float64(nil), values...)

	lastValid := -1
	for i, v := range out {
		if series.IsMissing(v) {
			continue
		}
		if lastValid >= 0 && i-lastValid > 1 {
			step := (v - out[lastValid]) / float64(i-lastValid)
			for j := lastValid + 1; j < i; j++ {
				out[j] = out[lastValid] + step*float64(j-lastValid)
			}
		}
		lastValid = i
	}

	// Trailing gap: repeat the last observation.
	if lastValid >= 0 {
		for j := lastValid + 1; j < len(out); j++ {
			out[j] = out[lastValid]
		}
	}
	return out
}
