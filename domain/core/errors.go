package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Ingestion errors (per file, non-fatal for the batch)
	ErrEmptyFile       = errors.New("file contains no data rows")
	ErrTimeColumn      = errors.New("time column could not be parsed")
	ErrUnsupportedFile = errors.New("unsupported file type")

	// Selection errors
	ErrTooFewSeries   = errors.New("too few series selected")
	ErrUnknownSeries  = errors.New("unknown series")
	ErrEmptySelection = errors.New("no series selected")

	// Data-sufficiency errors (per series, other series continue)
	ErrSeriesTooShort = errors.New("series too short")
	ErrWindowTooShort = errors.New("step window too short to fit")
	ErrNoStepFound    = errors.New("no step change detected")
	ErrEmptyWindow    = errors.New("no data in selected time window")

	// Numerical errors (guarded, reported, never propagated as a crash)
	ErrFitFailed        = errors.New("curve fit did not converge")
	ErrDegenerateFit    = errors.New("constant segment, goodness-of-fit undefined")
	ErrInsufficientData = errors.New("insufficient data for analysis")

	// Resampling errors
	ErrBadPeriod     = errors.New("invalid resample period")
	ErrBadAggregator = errors.New("unknown aggregator")
)

// NewSelectionError reports an analysis that needs more selected series.
func NewSelectionError(analysis string, need, got int) error {
	return fmt.Errorf("%w: %s requires at least %d series, got %d", ErrTooFewSeries, analysis, need, got)
}

// NewSeriesError attaches a series key to a per-series condition.
func NewSeriesError(key SeriesKey, err error) error {
	return fmt.Errorf("%s: %w", key, err)
}

// IsDataError reports whether err is an expected data-sufficiency condition
// rather than a programming or I/O failure.
func IsDataError(err error) bool {
	return errors.Is(err, ErrSeriesTooShort) ||
		errors.Is(err, ErrWindowTooShort) ||
		errors.Is(err, ErrNoStepFound) ||
		errors.Is(err, ErrEmptyWindow) ||
		errors.Is(err, ErrInsufficientData)
}
