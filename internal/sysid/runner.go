package sysid

import (
	"errors"
	"log"

	"procsight/domain/core"
	"procsight/domain/series"
	"procsight/internal/stepdetect"
)

// Status is the terminal state of one series in a step-identification run.
// Every series reaches exactly one of these; none of them aborts the batch.
type Status string

const (
	StatusTooShort    Status = "too_short"
	StatusNoStepFound Status = "no_step_found"
	StatusFitFailed   Status = "fit_failed"
	StatusFitted      Status = "fitted"
)

// Overlay holds the fitted response sampled on the window's own timestamps,
// for plotting the model against the raw segment.
type Overlay struct {
	Window series.StepWindow
	Times  []float64 // seconds from window start
	Fitted []float64
}

// Result is the outcome for a single series. Model, Tuning and Overlay are
// only meaningful when Status is StatusFitted. Detail carries the reason a
// series fell short, in report-ready form.
type Result struct {
	Key     core.SeriesKey
	Status  Status
	Detail  string
	Windows []series.StepWindow
	Model   series.FittedStepModel
	Tuning  series.TuningRecommendation
	Overlay Overlay
}

// Runner drives step detection and model fitting over one series at a time.
type Runner struct {
	detector   *stepdetect.Detector
	identifier *Identifier
}

// NewRunner wires a Runner from its two stages.
func NewRunner(detector *stepdetect.Detector, identifier *Identifier) *Runner {
	return &Runner{detector: detector, identifier: identifier}
}

// Run takes a series through detection and fitting. All detected windows
// are reported, but only the first one is fitted: a first-window failure is
// the series' outcome, not a cue to try the next candidate.
func (r *Runner) Run(s series.Series) Result {
	res := Result{Key: s.Key}

	windows, err := r.detector.Detect(s)
	switch {
	case errors.Is(err, core.ErrSeriesTooShort):
		res.Status = StatusTooShort
		res.Detail = err.Error()
		return res
	case err != nil:
		res.Status = StatusNoStepFound
		res.Detail = err.Error()
		return res
	}
	res.Windows = windows

	if len(windows) == 0 {
		res.Status = StatusNoStepFound
		res.Detail = "no step-like change above the noise threshold"
		return res
	}

	first := windows[0]
	model, ferr := r.identifier.Fit(s, first)
	if ferr != nil {
		log.Printf("[SysID] %s: window %d..%d: %v", s.Key, first.StartIndex, first.EndIndex, ferr)
		res.Status = StatusFitFailed
		res.Detail = ferr.Error()
		return res
	}

	res.Status = StatusFitted
	res.Model = model
	res.Tuning = Tune(model)
	res.Overlay = buildOverlay(s, first, model)
	return res
}

func buildOverlay(s series.Series, w series.StepWindow, m series.FittedStepModel) Overlay {
	n := w.SampleCount()
	ov := Overlay{
		Window: w,
		Times:  make([]float64, n),
		Fitted: make([]float64, n),
	}
	base := s.Timestamps[w.StartIndex]
	for i := 0; i < n; i++ {
		t := s.Timestamps[w.StartIndex+i].Sub(base).Seconds()
		ov.Times[i] = t
		ov.Fitted[i] = m.Eval(t)
	}
	return ov
}
