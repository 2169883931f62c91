package dataset

import (
	"log"
	"strings"
	"sync"
	"time"

	"procsight/adapters/ingest"
	"procsight/domain/core"
	"procsight/domain/series"
	"procsight/internal/errors"
)

// Store owns the merged, time-indexed multivariable table plus the
// column-name bookkeeping: source prefixing, de-duplication, and short-name
// derivation. Ingestion is an exclusive operation producing a new snapshot;
// analyses read whatever snapshot they were handed and never see mutation.
type Store struct {
	mu         sync.RWMutex
	current    *series.Dataset
	shortNames map[core.SeriesKey]string // short-name memo owned here, no global
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		current:    series.NewDataset(),
		shortNames: make(map[core.SeriesKey]string),
	}
}

// Snapshot returns the current immutable dataset. Ingestion replaces the
// snapshot wholesale, so holders of an older pointer keep a consistent view.
func (s *Store) Snapshot() *series.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// LoadResult reports the outcome of one LoadFiles call. Per-file failures
// are collected, never raised: a bad file skips that file only.
type LoadResult struct {
	Loaded []string
	Errors map[string]error
}

// LoadFiles parses each path and merges it into a fresh snapshot derived
// from the current one. Sources merge in argument order (load order), which
// fixes collision precedence: first source wins.
func (s *Store) LoadFiles(paths []string) *LoadResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := &LoadResult{Errors: make(map[string]error)}

	next := cloneDataset(s.current)
	for _, path := range paths {
		table, err := ingest.NewDataReader(path).Read()
		if err != nil {
			log.Printf("[Store] skipping %s: %v", path, err)
			result.Errors[path] = errors.Wrap(err, "load failed")
			continue
		}
		s.mergeTable(next, table)
		result.Loaded = append(result.Loaded, path)
	}
	next.ID = core.SnapshotID(core.NewID())
	s.current = next
	return result
}

// Clear drops all loaded data and the short-name memo.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = series.NewDataset()
	s.shortNames = make(map[core.SeriesKey]string)
}

// mergeTable outer-joins one source table onto the snapshot's time axis.
func (s *Store) mergeTable(ds *series.Dataset, table *ingest.RawTable) {
	index := unionIndex(ds.Index, table.Times)

	// Reindex existing columns onto the union axis.
	if len(index) != len(ds.Index) {
		pos := indexPositions(index, ds.Index)
		for _, key := range ds.Columns {
			ds.Values[key] = scatter(ds.Values[key], pos, len(index))
		}
		ds.Index = index
	}

	tablePos := indexPositions(index, table.Times)
	for _, name := range table.Headers {
		if isPlaceholderColumn(name) {
			continue
		}
		key := core.SeriesKey(table.SourceID + "_" + name)
		if ds.Has(key) {
			// First-source-wins: a later column colliding after prefixing
			// is discarded.
			log.Printf("[Store] duplicate column %s discarded (first source wins)", key)
			continue
		}
		ds.Columns = append(ds.Columns, key)
		ds.Values[key] = scatter(table.Columns[name], tablePos, len(index))
		ds.Meta[key] = series.SeriesMeta{
			Key:       key,
			ShortName: s.shortName(key),
			Source:    table.SourceID,
			Original:  name,
		}
	}
}

// ShortName derives (and memoizes) a display-friendly short name for a full
// series key. Names with a parenthesized part keep the text before the
// bracket, or the bracket content when nothing precedes it; everything else
// is truncated to 15 runes.
func (s *Store) ShortName(key core.SeriesKey) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shortName(key)
}

// shortName is ShortName without the lock, for use inside LoadFiles.
func (s *Store) shortName(key core.SeriesKey) string {
	if short, ok := s.shortNames[key]; ok {
		return short
	}
	short := deriveShortName(string(key))
	s.shortNames[key] = short
	return short
}

func deriveShortName(full string) string {
	if open := strings.Index(full, "("); open >= 0 {
		if close := strings.Index(full[open:], ")"); close >= 0 {
			before := strings.TrimSpace(full[:open])
			if before != "" {
				return before
			}
			return strings.TrimSpace(full[open+1 : open+close])
		}
	}
	runes := []rune(full)
	if len(runes) > 15 {
		return string(runes[:15]) + "..."
	}
	return full
}

// isPlaceholderColumn reports columns that are blank, whitespace, or an
// auto-generated parsing artifact; those never make it into the merge.
func isPlaceholderColumn(name string) bool {
	trimmed := strings.TrimSpace(name)
	return trimmed == "" || strings.HasPrefix(trimmed, "Unnamed:")
}

// unionIndex merges two sorted timestamp axes into their sorted union.
func unionIndex(a, b []time.Time) []time.Time {
	out := make([]time.Time, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Before(b[j]):
			out = append(out, a[i])
			i++
		case b[j].Before(a[i]):
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// indexPositions maps each timestamp of sub onto its row in the union axis.
// Both inputs are sorted; sub is always a subset of union.
func indexPositions(union, sub []time.Time) []int {
	pos := make([]int, len(sub))
	i := 0
	for j, t := range sub {
		for i < len(union) && union[i].Before(t) {
			i++
		}
		pos[j] = i
	}
	return pos
}

// scatter spreads column values onto the union axis, filling unaligned
// positions with the missing marker (never zero).
func scatter(values []float64, pos []int, size int) []float64 {
	out := make([]float64, size)
	for i := range out {
		out[i] = series.Missing
	}
	for j, p := range pos {
		if j < len(values) {
			out[p] = values[j]
		}
	}
	return out
}

func cloneDataset(ds *series.Dataset) *series.Dataset {
	out := series.NewDataset()
	out.Index = append([]time.Time(nil), ds.Index...)
	out.Columns = append([]core.SeriesKey(nil), ds.Columns...)
	for key, vals := range ds.Values {
		out.Values[key] = append([]float64(nil), vals...)
	}
	for key, meta := range ds.Meta {
		out.Meta[key] = meta
	}
	return out
}
