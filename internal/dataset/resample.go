package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"procsight/domain/core"
	"procsight/domain/series"
)

// Aggregator names accepted by Resample.
const (
	AggMean   = "mean"
	AggFirst  = "first"
	AggMax    = "max"
	AggMin    = "min"
	AggMedian = "median"
)

// Resample groups the dataset into fixed-width time buckets anchored at the
// first timestamp and applies one aggregator per numeric column. Buckets
// that end up entirely missing are dropped, so no output timestamp ever
// falls outside the original span. Callers treat an error as "keep the
// pre-resample data and report".
func Resample(ds *series.Dataset, period string, aggregator string) (*series.Dataset, error) {
	if ds.IsEmpty() {
		return ds, nil
	}

	step, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	agg, err := aggregateFunc(aggregator)
	if err != nil {
		return nil, err
	}

	// The index is sorted, so bucket ordinals are non-decreasing; occupied
	// buckets are materialized in order, empty ones never exist.
	origin := ds.Index[0]
	buckets := make([]int, ds.Len()) // row -> position in starts
	last := -1
	var starts []time.Time
	for i, t := range ds.Index {
		ord := int(t.Sub(origin) / step)
		if len(starts) == 0 || ord != last {
			starts = append(starts, origin.Add(time.Duration(ord)*step))
			last = ord
		}
		buckets[i] = len(starts) - 1
	}

	out := &series.Dataset{
		ID:      core.SnapshotID(core.NewID()),
		Columns: ds.Columns,
		Meta:    ds.Meta,
		Values:  make(map[core.SeriesKey][]float64, len(ds.Columns)),
	}

	// Rows of one bucket are contiguous; track [first,last] row per bucket.
	nBuckets := len(starts)
	first := make([]int, nBuckets)
	lastIdx := make([]int, nBuckets)
	for i := range first {
		first[i] = -1
	}
	for i, b := range buckets {
		if first[b] == -1 {
			first[b] = i
		}
		lastIdx[b] = i
	}

	for _, key := range ds.Columns {
		src := ds.Values[key]
		col := make([]float64, nBuckets)
		scratch := make([]float64, 0, 16)
		for b := 0; b < nBuckets; b++ {
			scratch = scratch[:0]
			for i := first[b]; i <= lastIdx[b]; i++ {
				if !series.IsMissing(src[i]) {
					scratch = append(scratch, src[i])
				}
			}
			if len(scratch) == 0 {
				col[b] = series.Missing
				continue
			}
			col[b] = agg(scratch)
		}
		out.Values[key] = col
	}

	// Drop rows where every column is missing.
	keep := make([]int, 0, nBuckets)
	for b := 0; b < nBuckets; b++ {
		for _, key := range ds.Columns {
			if !series.IsMissing(out.Values[key][b]) {
				keep = append(keep, b)
				break
			}
		}
	}
	out.Index = make([]time.Time, len(keep))
	for j, b := range keep {
		out.Index[j] = starts[b]
	}
	for _, key := range ds.Columns {
		col := make([]float64, len(keep))
		for j, b := range keep {
			col[j] = out.Values[key][b]
		}
		out.Values[key] = col
	}
	return out, nil
}

// ParsePeriod accepts Go duration syntax ("90s", "5m") plus the pandas-style
// shorthand the original data files used: 1S, 30S, 1T/5T (minutes), 1H.
func ParsePeriod(period string) (time.Duration, error) {
	p := strings.TrimSpace(period)
	if p == "" {
		return 0, fmt.Errorf("%w: empty period", core.ErrBadPeriod)
	}

	if d, err := time.ParseDuration(p); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("%w: %s", core.ErrBadPeriod, period)
		}
		return d, nil
	}

	upper := strings.ToUpper(p)
	unit := upper[len(upper)-1:]
	numPart := upper[:len(upper)-1]
	var mult time.Duration
	switch unit {
	case "S":
		mult = time.Second
	case "T":
		mult = time.Minute
	case "H":
		mult = time.Hour
	case "D":
		mult = 24 * time.Hour
	default:
		return 0, fmt.Errorf("%w: %s", core.ErrBadPeriod, period)
	}
	if numPart == "" {
		numPart = "1"
	}
	n, err := strconv.Atoi(numPart)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s", core.ErrBadPeriod, period)
	}
	return time.Duration(n) * mult, nil
}

func aggregateFunc(name string) (func([]float64) float64, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case AggMean:
		return func(v []float64) float64 {
			m, err := stats.Mean(v)
			if err != nil {
				return series.Missing
			}
			return m
		}, nil
	case AggFirst:
		return func(v []float64) float64 { return v[0] }, nil
	case AggMax:
		return func(v []float64) float64 {
			m, err := stats.Max(v)
			if err != nil {
				return series.Missing
			}
			return m
		}, nil
	case AggMin:
		return func(v []float64) float64 {
			m, err := stats.Min(v)
			if err != nil {
				return series.Missing
			}
			return m
		}, nil
	case AggMedian:
		return func(v []float64) float64 {
			m, err := stats.Median(v)
			if err != nil {
				return series.Missing
			}
			return m
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", core.ErrBadAggregator, name)
	}
}
