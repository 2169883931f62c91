package series

import (
	"fmt"
	"time"

	"procsight/domain/core"
)

// Dataset is the merged, time-indexed multivariable table. All columns share
// one time axis; unaligned positions hold the Missing marker. A Dataset is
// an immutable snapshot: ingestion builds a new one rather than mutating a
// snapshot an in-flight analysis may be reading.
type Dataset struct {
	ID      core.SnapshotID                  `json:"id"`
	Index   []time.Time                      `json:"index"`
	Columns []core.SeriesKey                 `json:"columns"` // source-load order
	Values  map[core.SeriesKey][]float64     `json:"values"`
	Meta    map[core.SeriesKey]SeriesMeta    `json:"meta"`
}

// NewDataset creates an empty snapshot.
func NewDataset() *Dataset {
	return &Dataset{
		ID:     core.SnapshotID(core.NewID()),
		Values: make(map[core.SeriesKey][]float64),
		Meta:   make(map[core.SeriesKey]SeriesMeta),
	}
}

// Len returns the number of rows on the time axis.
func (d *Dataset) Len() int { return len(d.Index) }

// IsEmpty reports whether the snapshot holds no rows or no columns.
func (d *Dataset) IsEmpty() bool { return d == nil || len(d.Index) == 0 || len(d.Columns) == 0 }

// Has reports whether the column exists.
func (d *Dataset) Has(key core.SeriesKey) bool {
	_, ok := d.Values[key]
	return ok
}

// Series returns one column bound to the shared time axis.
func (d *Dataset) Series(key core.SeriesKey) (Series, error) {
	vals, ok := d.Values[key]
	if !ok {
		return Series{}, fmt.Errorf("%w: %s", core.ErrUnknownSeries, key)
	}
	return Series{Key: key, Timestamps: d.Index, Values: vals}, nil
}

// Span returns the first and last timestamps of the axis.
func (d *Dataset) Span() (time.Time, time.Time) {
	if len(d.Index) == 0 {
		return time.Time{}, time.Time{}
	}
	return d.Index[0], d.Index[len(d.Index)-1]
}

// Select returns a snapshot restricted to the given columns, preserving the
// caller's order. Order matters downstream: fuzzy mining treats the last
// selected series as the output, causality iterates ordered pairs.
func (d *Dataset) Select(keys []core.SeriesKey) (*Dataset, error) {
	out := &Dataset{
		ID:     d.ID,
		Index:  d.Index,
		Values: make(map[core.SeriesKey][]float64, len(keys)),
		Meta:   make(map[core.SeriesKey]SeriesMeta, len(keys)),
	}
	for _, key := range keys {
		vals, ok := d.Values[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", core.ErrUnknownSeries, key)
		}
		out.Columns = append(out.Columns, key)
		out.Values[key] = vals
		out.Meta[key] = d.Meta[key]
	}
	return out, nil
}

// Filter returns a snapshot restricted to rows inside the inclusive window.
// An empty result is a reported (non-fatal) condition for the caller, not
// an error here.
func (d *Dataset) Filter(w Window) *Dataset {
	if w.IsZero() {
		return d
	}
	out := &Dataset{
		ID:      d.ID,
		Columns: d.Columns,
		Values:  make(map[core.SeriesKey][]float64, len(d.Columns)),
		Meta:    d.Meta,
	}
	keep := make([]int, 0, len(d.Index))
	for i, t := range d.Index {
		if w.Contains(t) {
			keep = append(keep, i)
		}
	}
	out.Index = make([]time.Time, len(keep))
	for j, i := range keep {
		out.Index[j] = d.Index[i]
	}
	for _, key := range d.Columns {
		src := d.Values[key]
		col := make([]float64, len(keep))
		for j, i := range keep {
			col[j] = src[i]
		}
		out.Values[key] = col
	}
	return out
}

// DefaultWindow returns the last seven days of the merged range, clamped to
// the range start. Used when the caller supplies no window.
func (d *Dataset) DefaultWindow() Window {
	first, last := d.Span()
	if last.IsZero() {
		return Window{}
	}
	start := last.AddDate(0, 0, -7)
	if start.Before(first) {
		start = first
	}
	return Window{Start: start, End: last}
}
