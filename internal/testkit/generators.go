// Package testkit generates synthetic process data with known ground truth
// for the analysis test suites.
package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"procsight/domain/core"
	"procsight/domain/series"
)

// BaseTime anchors all generated axes at a fixed instant so tests are
// reproducible.
var BaseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Timestamps returns n instants spaced dt apart starting at BaseTime.
func Timestamps(n int, dt time.Duration) []time.Time {
	ts := make([]time.Time, n)
	for i := range ts {
		ts[i] = BaseTime.Add(time.Duration(i) * dt)
	}
	return ts
}

// FlatSeries is a constant-valued series: no step detector should fire on
// it.
func FlatSeries(key string, n int, value float64) series.Series {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = value
	}
	return series.Series{Key: core.SeriesKey(key), Timestamps: Timestamps(n, time.Second), Values: vals}
}

// StepSeries holds pre until stepAt, ramps to post over ramp samples, then
// holds post. A ramp of 2..3 samples survives the detector's median
// smoothing; an instantaneous jump is a single-sample spike the smoother
// removes.
func StepSeries(key string, n, stepAt, ramp int, pre, post float64) series.Series {
	vals := make([]float64, n)
	for i := range vals {
		switch {
		case i < stepAt:
			vals[i] = pre
		case i >= stepAt+ramp:
			vals[i] = post
		default:
			frac := float64(i-stepAt+1) / float64(ramp+1)
			vals[i] = pre + frac*(post-pre)
		}
	}
	return series.Series{Key: core.SeriesKey(key), Timestamps: Timestamps(n, time.Second), Values: vals}
}

// FirstOrderSeries is an exact noise-free first-order step response
// y(t) = K·(1−e^(−t/tau)) + y0 sampled every dt.
func FirstOrderSeries(key string, n int, dt time.Duration, k, tau, y0 float64) series.Series {
	vals := make([]float64, n)
	for i := range vals {
		t := float64(i) * dt.Seconds()
		vals[i] = k*(1-math.Exp(-t/tau)) + y0
	}
	return series.Series{Key: core.SeriesKey(key), Timestamps: Timestamps(n, dt), Values: vals}
}

// UniformSeries draws n values uniformly from [lo, hi) with a fixed seed.
func UniformSeries(key string, n int, seed int64, lo, hi float64) series.Series {
	rng := rand.New(rand.NewSource(seed))
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = lo + rng.Float64()*(hi-lo)
	}
	return series.Series{Key: core.SeriesKey(key), Timestamps: Timestamps(n, time.Second), Values: vals}
}

// DatasetOf assembles series sharing one axis into a Dataset. All series
// must have the same length; the first one's timestamps become the axis.
func DatasetOf(ss ...series.Series) *series.Dataset {
	ds := series.NewDataset()
	if len(ss) == 0 {
		return ds
	}
	ds.Index = ss[0].Timestamps
	for _, s := range ss {
		ds.Columns = append(ds.Columns, s.Key)
		ds.Values[s.Key] = s.Values
		ds.Meta[s.Key] = series.SeriesMeta{Key: s.Key, ShortName: string(s.Key)}
	}
	return ds
}

// WriteCSVFile writes a simple time/value table under dir and returns its
// path. Values that are missing render as empty cells.
func WriteCSVFile(dir, name string, times []time.Time, columns map[string][]float64, order []string) (string, error) {
	var b strings.Builder
	b.WriteString("time")
	for _, col := range order {
		b.WriteString("," + col)
	}
	b.WriteString("\n")
	for i, t := range times {
		b.WriteString(t.Format("2006-01-02 15:04:05"))
		for _, col := range order {
			v := columns[col][i]
			if series.IsMissing(v) {
				b.WriteString(",")
			} else {
				b.WriteString(fmt.Sprintf(",%g", v))
			}
		}
		b.WriteString("\n")
	}
	path := filepath.Join(dir, name)
	return path, os.WriteFile(path, []byte(b.String()), 0o644)
}

// WriteXLSXFile writes the same table shape as a single-sheet workbook.
func WriteXLSXFile(dir, name string, times []time.Time, columns map[string][]float64, order []string) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := append([]string{"time"}, order...)
	for col, title := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return "", err
		}
	}
	for i, t := range times {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetCellValue(sheet, cell, t.Format("2006-01-02 15:04:05")); err != nil {
			return "", err
		}
		for j, col := range order {
			v := columns[col][i]
			if series.IsMissing(v) {
				continue
			}
			cell, _ = excelize.CoordinatesToCellName(j+2, i+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return "", err
			}
		}
	}

	path := filepath.Join(dir, name)
	return path, f.SaveAs(path)
}
