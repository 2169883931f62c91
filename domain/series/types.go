package series

import (
	"math"
	"time"

	"procsight/domain/core"
)

// Missing marks an unaligned or unparseable sample position.
// All engine code treats NaN as "missing", never as zero.
var Missing = math.NaN()

// IsMissing reports whether v holds the missing marker.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// SeriesMeta carries per-series bookkeeping created once at ingestion.
// It is passed by value and never inferred from a display layer.
type SeriesMeta struct {
	Key       core.SeriesKey `json:"key"`
	ShortName string         `json:"short_name"`
	Source    string         `json:"source"` // file base name the column came from
	Original  string         `json:"original"`
	Units     string         `json:"units,omitempty"`
}

// Series is an ordered sequence of (timestamp, value) pairs sharing the
// dataset's time axis. Gaps hold the Missing marker.
type Series struct {
	Key        core.SeriesKey `json:"key"`
	Timestamps []time.Time    `json:"timestamps"`
	Values     []float64      `json:"values"`
}

// Len returns the number of positions on the time axis.
func (s Series) Len() int { return len(s.Values) }

// ValidCount returns the number of non-missing samples.
func (s Series) ValidCount() int {
	n := 0
	for _, v := range s.Values {
		if !IsMissing(v) {
			n++
		}
	}
	return n
}

// DropMissing returns a copy of the series with missing positions removed,
// timestamps kept in step with values.
func (s Series) DropMissing() Series {
	out := Series{Key: s.Key}
	for i, v := range s.Values {
		if IsMissing(v) {
			continue
		}
		out.Timestamps = append(out.Timestamps, s.Timestamps[i])
		out.Values = append(out.Values, v)
	}
	return out
}

// Window is an inclusive time range used to filter a dataset before any
// statistic, fit, or rule-mining operation.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsZero reports whether the window is unset.
func (w Window) IsZero() bool { return w.Start.IsZero() && w.End.IsZero() }

// Contains reports whether t falls inside the inclusive range.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

// StepWindow is a contiguous index range in a series flagged as containing
// a step transition. Produced by the step detector, consumed once by the
// first-order identifier, not persisted.
type StepWindow struct {
	Key        core.SeriesKey `json:"key"`
	StartIndex int            `json:"start_index"`
	EndIndex   int            `json:"end_index"` // inclusive
	StartTime  time.Time      `json:"start_time"`
	EndTime    time.Time      `json:"end_time"`
}

// SampleCount returns the number of samples the window spans.
func (w StepWindow) SampleCount() int { return w.EndIndex - w.StartIndex + 1 }

// FittedStepModel holds the parameters of a fitted first-order-lag curve
// over a StepWindow. R2 may be negative (fit worse than the mean predictor)
// and is NaN for a degenerate constant segment; callers must not clamp it.
type FittedStepModel struct {
	K   float64 `json:"k"`
	Tau float64 `json:"tau"` // seconds, clamped away from zero during fitting
	Y0  float64 `json:"y0"`
	R2  float64 `json:"r2"`
}

// Eval evaluates the fitted curve at t seconds from the window start.
func (m FittedStepModel) Eval(t float64) float64 {
	return m.K*(1-math.Exp(-t/(m.Tau+1e-9))) + m.Y0
}

// TuningRecommendation is derived deterministically from a FittedStepModel.
// Advisory values only; never validated against stability criteria.
type TuningRecommendation struct {
	L  float64 `json:"l"` // dead-time estimate, seconds
	Kp float64 `json:"kp"`
	Ti float64 `json:"ti"`
	Td float64 `json:"td"`
}

// FuzzyLabel is a linguistic label produced by quantile fuzzification.
type FuzzyLabel string

const (
	LabelLow    FuzzyLabel = "low"
	LabelMedium FuzzyLabel = "medium"
	LabelHigh   FuzzyLabel = "high"
)

// FuzzyRule is one mined antecedent -> consequent co-occurrence with its
// support count. Fully recomputed each run, no incremental state.
type FuzzyRule struct {
	Antecedent []FuzzyLabel `json:"antecedent"` // one label per input, in selection order
	Consequent FuzzyLabel   `json:"consequent"`
	Support    int          `json:"support"`
}

// CausalityResult is one ordered-pair predictability outcome. Err is the
// per-pair error marker; when set the numeric fields are meaningless.
type CausalityResult struct {
	Source  core.SeriesKey `json:"source"`
	Target  core.SeriesKey `json:"target"`
	BestLag int            `json:"best_lag"`
	PValue  float64        `json:"p_value"`
	Err     string         `json:"error,omitempty"`
}
