package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procsight/domain/core"
	"procsight/domain/series"
	"procsight/internal/testkit"
)

func TestLoadFilesAlignsDisjointSourcesOnUnionAxis(t *testing.T) {
	dir := t.TempDir()

	timesA := testkit.Timestamps(3, time.Minute)
	pathA, err := testkit.WriteCSVFile(dir, "alpha.csv", timesA,
		map[string][]float64{"Temp": {1, 2, 3}}, []string{"Temp"})
	require.NoError(t, err)

	timesB := []time.Time{
		testkit.BaseTime.Add(30 * time.Second),
		testkit.BaseTime.Add(90 * time.Second),
	}
	pathB, err := testkit.WriteCSVFile(dir, "beta.csv", timesB,
		map[string][]float64{"Flow": {10, 20}}, []string{"Flow"})
	require.NoError(t, err)

	store := NewStore()
	result := store.LoadFiles([]string{pathA, pathB})
	require.Empty(t, result.Errors)
	require.Len(t, result.Loaded, 2)

	ds := store.Snapshot()
	assert.Equal(t, 5, ds.Len(), "axis must be the union of both sources")
	assert.Equal(t, []core.SeriesKey{"alpha_Temp", "beta_Flow"}, ds.Columns)

	// Unaligned positions hold the missing marker, never zero.
	temp := ds.Values["alpha_Temp"]
	assert.True(t, series.IsMissing(temp[1]), "alpha has no sample at 12:00:30")
	assert.Equal(t, 1.0, temp[0])
}

func TestLoadFilesFirstSourceWinsOnCollision(t *testing.T) {
	dir := t.TempDir()
	times := testkit.Timestamps(2, time.Second)

	pathA, err := testkit.WriteCSVFile(dir, "dup.csv", times,
		map[string][]float64{"Temp": {1, 2}}, []string{"Temp"})
	require.NoError(t, err)

	store := NewStore()
	store.LoadFiles([]string{pathA})
	before := store.Snapshot().Values["dup_Temp"][0]

	// Reloading the same file collides on every prefixed name.
	store.LoadFiles([]string{pathA})
	ds := store.Snapshot()

	require.Len(t, ds.Columns, 1)
	assert.Equal(t, before, ds.Values["dup_Temp"][0])
}

func TestLoadFilesSkipsPlaceholderColumns(t *testing.T) {
	dir := t.TempDir()
	times := testkit.Timestamps(2, time.Second)

	path, err := testkit.WriteCSVFile(dir, "src.csv", times,
		map[string][]float64{"Temp": {1, 2}, "Unnamed: 3": {9, 9}},
		[]string{"Temp", "Unnamed: 3"})
	require.NoError(t, err)

	store := NewStore()
	store.LoadFiles([]string{path})

	assert.Equal(t, []core.SeriesKey{"src_Temp"}, store.Snapshot().Columns)
}

func TestLoadFilesBadFileDoesNotAbortBatch(t *testing.T) {
	dir := t.TempDir()
	times := testkit.Timestamps(2, time.Second)

	good, err := testkit.WriteCSVFile(dir, "good.csv", times,
		map[string][]float64{"V": {1, 2}}, []string{"V"})
	require.NoError(t, err)

	store := NewStore()
	result := store.LoadFiles([]string{dir + "/missing.csv", good})

	assert.Len(t, result.Errors, 1)
	assert.Equal(t, []string{good}, result.Loaded)
	assert.Len(t, store.Snapshot().Columns, 1)
}

func TestLoadFilesMintsNewSnapshotID(t *testing.T) {
	dir := t.TempDir()
	times := testkit.Timestamps(2, time.Second)
	path, err := testkit.WriteCSVFile(dir, "s.csv", times,
		map[string][]float64{"V": {1, 2}}, []string{"V"})
	require.NoError(t, err)

	store := NewStore()
	first := store.Snapshot()
	store.LoadFiles([]string{path})
	second := store.Snapshot()

	assert.NotEqual(t, first.ID, second.ID)
	assert.Empty(t, first.Columns, "older snapshot must stay untouched")
}

func TestShortNameDerivation(t *testing.T) {
	store := NewStore()

	cases := map[string]string{
		"Temperature (TC-4)":        "Temperature",
		"(TC-4)":                    "TC-4",
		"Flow":                      "Flow",
		"a_very_long_column_name_x": "a_very_long_col...",
	}
	for full, want := range cases {
		assert.Equal(t, want, store.ShortName(core.SeriesKey(full)), full)
	}

	// Memoized: repeated lookups return the identical value.
	assert.Equal(t, "Temperature", store.ShortName(core.SeriesKey("Temperature (TC-4)")))
}
