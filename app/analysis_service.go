package app

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"procsight/domain/core"
	"procsight/domain/series"
	"procsight/internal/causality"
	"procsight/internal/dataset"
	"procsight/internal/fuzzy"
	"procsight/internal/report"
	"procsight/internal/stats"
	"procsight/internal/stepdetect"
	"procsight/internal/sysid"
)

// AnalysisService runs the five analyses over one dataset snapshot. It holds
// only stateless collaborators, so a single instance serves concurrent
// callers.
type AnalysisService struct {
	ranker   *causality.Ranker
	miner    *fuzzy.Miner
	stepper  *sysid.Runner
	labeller func(core.SeriesKey) string
}

// AnalysisRequest names everything one run depends on. Selection order is
// preserved: fuzzy mining treats the last series as the output and causality
// iterates ordered pairs.
type AnalysisRequest struct {
	Selection  []core.SeriesKey
	Window     series.Window // zero value selects the trailing 7 days
	Period     string        // resample period, empty to skip resampling
	Aggregator string        // one of the dataset aggregators, defaults to mean
}

// NewAnalysisService wires a service from its analysis stages. labeller maps
// a series key to its display short name and may be nil.
func NewAnalysisService(ranker *causality.Ranker, miner *fuzzy.Miner, stepper *sysid.Runner, labeller func(core.SeriesKey) string) *AnalysisService {
	if labeller == nil {
		labeller = func(key core.SeriesKey) string { return string(key) }
	}
	return &AnalysisService{
		ranker:   ranker,
		miner:    miner,
		stepper:  stepper,
		labeller: labeller,
	}
}

// Analyze is a pure function of the snapshot and the request: it never
// mutates ds and produces a complete Report. Sections fail independently;
// only selection errors (unknown or empty series list) fail the run itself.
func (s *AnalysisService) Analyze(ctx context.Context, ds *series.Dataset, req AnalysisRequest) (*report.Report, error) {
	started := time.Now()

	if len(req.Selection) == 0 {
		return nil, core.ErrEmptySelection
	}
	selected, err := ds.Select(req.Selection)
	if err != nil {
		return nil, err
	}

	window := req.Window
	if window.IsZero() {
		window = selected.DefaultWindow()
	}
	filtered := selected.Filter(window)

	// A bad period or aggregator does not sink the run. The analyses fall
	// back to the unresampled rows and the report carries the error.
	var resampleErr string
	if req.Period != "" {
		agg := req.Aggregator
		if agg == "" {
			agg = dataset.AggMean
		}
		resampled, rerr := dataset.Resample(filtered, req.Period, agg)
		if rerr != nil {
			resampleErr = rerr.Error()
			log.Printf("[Analysis] resample skipped: %v", rerr)
		} else {
			filtered = resampled
		}
	}

	rep := &report.Report{
		RunID:       core.NewRunID(),
		SnapshotID:  ds.ID,
		GeneratedAt: started,
		Window:      window,
		Selection:   req.Selection,
		Labels:      make(map[core.SeriesKey]string, len(req.Selection)),
		ResampleErr: resampleErr,
	}
	for _, key := range req.Selection {
		rep.Labels[key] = s.labeller(key)
	}

	// Cleaning interpolates interior gaps and drops rows that still hold a
	// missing value. Statistics describe the uncleaned table so missing
	// rates stay honest; everything else works on the cleaned one.
	cleaned := dataset.Clean(filtered)

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		rep.Stats = stats.Describe(filtered)
		return nil
	})
	g.Go(func() error {
		if len(cleaned.Columns) < 2 {
			rep.CorrelationErr = core.ErrTooFewSeries.Error()
			return nil
		}
		if cleaned.Len() == 0 {
			rep.CorrelationErr = core.ErrInsufficientData.Error()
			return nil
		}
		matrix := stats.Correlate(cleaned)
		for i, key := range matrix.Keys {
			matrix.Labels[i] = s.labeller(key)
		}
		rep.Correlation = &matrix
		return nil
	})
	g.Go(func() error {
		if len(cleaned.Columns) < 2 {
			rep.CausalityErr = core.ErrTooFewSeries.Error()
			return nil
		}
		rep.Causality = s.ranker.Rank(cleaned)
		return nil
	})
	g.Go(func() error {
		rules, ferr := s.miner.Mine(cleaned)
		if ferr != nil {
			rep.FuzzyErr = ferr.Error()
			return nil
		}
		rep.FuzzyRules = rules
		return nil
	})
	g.Go(func() error {
		rep.StepID = s.runStepID(filtered)
		return nil
	})

	g.Wait()

	log.Printf("[Analysis] run %s: %d series, %d rows, %s",
		rep.RunID, len(req.Selection), filtered.Len(), time.Since(started))
	return rep, nil
}

// runStepID drives the step pipeline per series. Each series drops its own
// missing samples first, so one gappy column cannot shorten another's
// record.
func (s *AnalysisService) runStepID(ds *series.Dataset) []sysid.Result {
	results := make([]sysid.Result, 0, len(ds.Columns))
	for _, key := range ds.Columns {
		sr, err := ds.Series(key)
		if err != nil {
			results = append(results, sysid.Result{
				Key:    key,
				Status: sysid.StatusNoStepFound,
				Detail: err.Error(),
			})
			continue
		}
		results = append(results, s.stepper.Run(sr.DropMissing()))
	}
	return results
}

// DefaultAnalysisService assembles the service with the stock stage
// parameters.
func DefaultAnalysisService(labeller func(core.SeriesKey) string) *AnalysisService {
	return NewAnalysisService(
		causality.NewRanker(causality.DefaultMaxLagCap),
		fuzzy.NewMiner(fuzzy.DefaultTopRules),
		sysid.NewRunner(stepdetect.NewDetector(), sysid.NewIdentifier()),
		labeller,
	)
}
