package stepdetect

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"procsight/domain/core"
	"procsight/domain/series"
)

// Defaults match the engine's tuning for noisy process data.
const (
	MinSeriesLength = 30   // shorter series are skipped with a reported reason
	DefaultDistance = 5    // minimum index separation between accepted peaks
	ThresholdFloor  = 1e-6 // keeps perfectly flat data from producing a zero threshold
	windowHalfSpan  = 8    // emitted window reaches p±8, clamped to bounds
)

// Detector finds candidate step-change windows in a single series using an
// adaptive MAD-based threshold over median-smoothed first differences.
type Detector struct {
	Distance       int
	ThresholdFloor float64
}

// NewDetector constructs a Detector with engine defaults.
func NewDetector() *Detector {
	return &Detector{Distance: DefaultDistance, ThresholdFloor: ThresholdFloor}
}

// Detect returns all candidate step windows in index order, or a
// data-sufficiency error for series shorter than MinSeriesLength. The input
// series must already be time-filtered and cleaned.
func (d *Detector) Detect(s series.Series) ([]series.StepWindow, error) {
	n := s.Len()
	if n < MinSeriesLength {
		return nil, fmt.Errorf("%w: %d samples, need %d", core.ErrSeriesTooShort, n, MinSeriesLength)
	}

	// 1. First differences of the value sequence.
	diff := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diff[i-1] = s.Values[i] - s.Values[i-1]
	}

	// 2. Centered rolling median (window 3) to suppress single-sample
	// noise spikes.
	smoothed := rollingMedian3(diff)

	// 3-4. Robust scale estimate and adaptive threshold.
	threshold := d.threshold(smoothed)

	// 5. Local maxima of |smoothed| above the threshold, with a minimum
	// separation between accepted peaks.
	absDiff := make([]float64, len(smoothed))
	for i, v := range smoothed {
		absDiff[i] = math.Abs(v)
	}
	peaks := findPeaks(absDiff, threshold, d.Distance)

	// 6. One window per accepted peak, clamped to series bounds.
	windows := make([]series.StepWindow, 0, len(peaks))
	for _, p := range peaks {
		start := p - windowHalfSpan
		if start < 0 {
			start = 0
		}
		end := p + windowHalfSpan
		if end > n-1 {
			end = n - 1
		}
		windows = append(windows, series.StepWindow{
			Key:        s.Key,
			StartIndex: start,
			EndIndex:   end,
			StartTime:  s.Timestamps[start],
			EndTime:    s.Timestamps[end],
		})
	}
	return windows, nil
}

// threshold computes max(floor, 3·MAD) over the smoothed differences.
func (d *Detector) threshold(smoothed []float64) float64 {
	med, err := stats.Median(smoothed)
	if err != nil {
		return d.ThresholdFloor
	}
	deviations := make([]float64, len(smoothed))
	for i, v := range smoothed {
		deviations[i] = math.Abs(v - med)
	}
	mad, err := stats.Median(deviations)
	if err != nil {
		return d.ThresholdFloor
	}
	return math.Max(d.ThresholdFloor, 3*mad)
}

// rollingMedian3 applies a centered window-3 median with shrinking edges
// (min one sample), so the output length matches the input.
func rollingMedian3(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		lo := i - 1
		if lo < 0 {
			lo = 0
		}
		hi := i + 1
		if hi > len(values)-1 {
			hi = len(values) - 1
		}
		out[i] = median3(values[lo : hi+1])
	}
	return out
}

func median3(window []float64) float64 {
	switch len(window) {
	case 1:
		return window[0]
	case 2:
		return (window[0] + window[1]) / 2
	default:
		a, b, c := window[0], window[1], window[2]
		if a > b {
			a, b = b, a
		}
		if b > c {
			b = c
		}
		if a > b {
			b = a
		}
		return b
	}
}

// findPeaks returns indices of local maxima with height above the threshold,
// accepted greedily from the tallest down while enforcing the minimum index
// separation, then reported in index order.
func findPeaks(values []float64, threshold float64, distance int) []int {
	var candidates []int
	for i := 1; i < len(values)-1; i++ {
		if values[i] >= threshold && values[i] > values[i-1] && values[i] >= values[i+1] {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return values[candidates[a]] > values[candidates[b]]
	})

	var accepted []int
	for _, c := range candidates {
		ok := true
		for _, a := range accepted {
			if abs(c-a) < distance {
				ok = false
				break
			}
		}
		if ok {
			accepted = append(accepted, c)
		}
	}
	sort.Ints(accepted)
	return accepted
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
