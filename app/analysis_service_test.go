package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procsight/domain/core"
	"procsight/domain/series"
	"procsight/internal/testkit"
)

func buildDataset() *series.Dataset {
	step := testkit.StepSeries("plant_Temp", 400, 200, 3, 10, 30)
	flow := testkit.UniformSeries("plant_Flow", 400, 9, 0, 100)
	press := testkit.UniformSeries("plant_Press", 400, 10, 0, 5)
	return testkit.DatasetOf(step, flow, press)
}

func TestAnalyzeProducesAllSections(t *testing.T) {
	svc := DefaultAnalysisService(nil)
	ds := buildDataset()

	rep, err := svc.Analyze(context.Background(), ds, AnalysisRequest{
		Selection: []core.SeriesKey{"plant_Temp", "plant_Flow", "plant_Press"},
	})
	require.NoError(t, err)

	assert.Len(t, rep.Stats, 3)
	require.NotNil(t, rep.Correlation)
	assert.Len(t, rep.Causality, 6, "ordered pairs excluding self")
	assert.Len(t, rep.StepID, 3)
	assert.NotEmpty(t, rep.FuzzyRules)
	assert.Equal(t, ds.ID, rep.SnapshotID)
	assert.NotEmpty(t, rep.RunID)

	text := rep.Render()
	for _, section := range []string{
		"Descriptive Statistics",
		"Pearson Correlation",
		"Predictive Causality",
		"Step Identification",
		"Fuzzy Rules",
	} {
		assert.Contains(t, text, section)
	}
}

func TestAnalyzeEmptySelection(t *testing.T) {
	svc := DefaultAnalysisService(nil)

	_, err := svc.Analyze(context.Background(), buildDataset(), AnalysisRequest{})
	assert.ErrorIs(t, err, core.ErrEmptySelection)
}

func TestAnalyzeUnknownSeries(t *testing.T) {
	svc := DefaultAnalysisService(nil)

	_, err := svc.Analyze(context.Background(), buildDataset(), AnalysisRequest{
		Selection: []core.SeriesKey{"nope"},
	})
	assert.ErrorIs(t, err, core.ErrUnknownSeries)
}

func TestAnalyzeSingleSeriesSoftFailsMultivariateSections(t *testing.T) {
	svc := DefaultAnalysisService(nil)

	rep, err := svc.Analyze(context.Background(), buildDataset(), AnalysisRequest{
		Selection: []core.SeriesKey{"plant_Temp"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, rep.CorrelationErr, "correlation needs two series")
	assert.NotEmpty(t, rep.CausalityErr)
	assert.NotEmpty(t, rep.FuzzyErr)
	assert.Len(t, rep.Stats, 1, "univariate sections still run")
	assert.Len(t, rep.StepID, 1)
}

func TestAnalyzeWithResampling(t *testing.T) {
	svc := DefaultAnalysisService(nil)

	rep, err := svc.Analyze(context.Background(), buildDataset(), AnalysisRequest{
		Selection: []core.SeriesKey{"plant_Temp", "plant_Flow"},
		Period:    "10s",
	})
	require.NoError(t, err)
	require.Len(t, rep.Stats, 2)
	assert.LessOrEqual(t, rep.Stats[0].Count, 41, "400 one-second samples collapse to ~40 buckets")
}

func TestAnalyzeBadPeriod(t *testing.T) {
	svc := DefaultAnalysisService(nil)

	rep, err := svc.Analyze(context.Background(), buildDataset(), AnalysisRequest{
		Selection: []core.SeriesKey{"plant_Temp"},
		Period:    "bogus",
	})
	require.NoError(t, err, "a bad period falls back to the unresampled rows")
	assert.Contains(t, rep.ResampleErr, "bogus")
	require.Len(t, rep.Stats, 1)
	assert.Equal(t, 400, rep.Stats[0].Count, "analyses ran on the original samples")
}

func TestAnalyzeRespectsWindow(t *testing.T) {
	svc := DefaultAnalysisService(nil)
	ds := buildDataset()

	w := series.Window{
		Start: testkit.BaseTime,
		End:   testkit.BaseTime.Add(99 * time.Second),
	}
	rep, err := svc.Analyze(context.Background(), ds, AnalysisRequest{
		Selection: []core.SeriesKey{"plant_Flow"},
		Window:    w,
	})
	require.NoError(t, err)
	require.Len(t, rep.Stats, 1)
	assert.Equal(t, 100, rep.Stats[0].Count, "inclusive window keeps both endpoints")
	assert.True(t, strings.Contains(rep.Render(), "Window:"))
}
