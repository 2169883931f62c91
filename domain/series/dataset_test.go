package series

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procsight/domain/core"
)

func buildDataset(t *testing.T) *Dataset {
	t.Helper()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ds := NewDataset()
	for i := 0; i < 10; i++ {
		ds.Index = append(ds.Index, base.Add(time.Duration(i)*time.Hour))
	}
	for _, key := range []core.SeriesKey{"a", "b"} {
		vals := make([]float64, 10)
		for i := range vals {
			vals[i] = float64(i)
		}
		ds.Columns = append(ds.Columns, key)
		ds.Values[key] = vals
		ds.Meta[key] = SeriesMeta{Key: key, ShortName: string(key)}
	}
	return ds
}

func TestSelectPreservesCallerOrder(t *testing.T) {
	ds := buildDataset(t)

	out, err := ds.Select([]core.SeriesKey{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, []core.SeriesKey{"b", "a"}, out.Columns)

	_, err = ds.Select([]core.SeriesKey{"a", "missing"})
	assert.ErrorIs(t, err, core.ErrUnknownSeries)
}

func TestFilterInclusiveWindow(t *testing.T) {
	ds := buildDataset(t)
	start := ds.Index[2]
	end := ds.Index[5]

	out := ds.Filter(Window{Start: start, End: end})
	require.Equal(t, 4, out.Len(), "both endpoints included")
	assert.Equal(t, start, out.Index[0])
	assert.Equal(t, end, out.Index[out.Len()-1])
	assert.Equal(t, []float64{2, 3, 4, 5}, out.Values["a"])
}

func TestFilterZeroWindowIsIdentity(t *testing.T) {
	ds := buildDataset(t)
	assert.Equal(t, ds.Len(), ds.Filter(Window{}).Len())
}

func TestDefaultWindowTrailingWeek(t *testing.T) {
	ds := NewDataset()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		ds.Index = append(ds.Index, base.AddDate(0, 0, i))
	}

	w := ds.DefaultWindow()
	assert.Equal(t, ds.Index[29], w.End)
	assert.Equal(t, ds.Index[29].AddDate(0, 0, -7), w.Start)

	// A short record clamps to its own start.
	short := NewDataset()
	short.Index = ds.Index[:3]
	assert.Equal(t, short.Index[0], short.DefaultWindow().Start)
}

func TestDropMissingKeepsTimestampsAligned(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := Series{
		Key:        "v",
		Timestamps: []time.Time{base, base.Add(time.Second), base.Add(2 * time.Second)},
		Values:     []float64{1, Missing, 3},
	}

	out := s.DropMissing()
	require.Equal(t, 2, out.Len())
	assert.Equal(t, []float64{1, 3}, out.Values)
	assert.Equal(t, base.Add(2*time.Second), out.Timestamps[1])
}

func TestStepWindowSampleCount(t *testing.T) {
	w := StepWindow{StartIndex: 4, EndIndex: 12}
	assert.Equal(t, 9, w.SampleCount())
}

func TestFittedStepModelEval(t *testing.T) {
	m := FittedStepModel{K: 5, Tau: 10, Y0: 2}

	assert.InDelta(t, 2.0, m.Eval(0), 1e-9)
	assert.InDelta(t, 7.0, m.Eval(1e6), 1e-6, "asymptote is y0+K")
	assert.InDelta(t, 2+5*(1-math.Exp(-1)), m.Eval(10), 1e-9)
}
