package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"procsight/app"
	"procsight/domain/core"
	"procsight/domain/series"
	"procsight/internal/dataset"
)

// loadRequest names the files to ingest, in load order. Order matters:
// the first source to claim a column name keeps it.
type loadRequest struct {
	Paths []string `json:"paths"`
}

type loadResponse struct {
	SnapshotID string            `json:"snapshot_id"`
	Loaded     []string          `json:"loaded"`
	Errors     map[string]string `json:"errors,omitempty"`
	Rows       int               `json:"rows"`
	Series     int               `json:"series"`
}

func (s *Server) handleLoadSources(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Paths) == 0 {
		writeError(w, http.StatusBadRequest, "no file paths given")
		return
	}

	result := s.store.LoadFiles(req.Paths)
	snap := s.store.Snapshot()

	resp := loadResponse{
		SnapshotID: snap.ID.String(),
		Loaded:     result.Loaded,
		Rows:       snap.Len(),
		Series:     len(snap.Columns),
	}
	if len(result.Errors) > 0 {
		resp.Errors = make(map[string]string, len(result.Errors))
		for path, err := range result.Errors {
			resp.Errors[path] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearSources(w http.ResponseWriter, r *http.Request) {
	s.store.Clear()
	w.WriteHeader(http.StatusNoContent)
}

type seriesInfo struct {
	Key       string  `json:"key"`
	ShortName string  `json:"short_name"`
	Source    string  `json:"source"`
	Missing   float64 `json:"missing_rate"`
}

type datasetSummary struct {
	SnapshotID string       `json:"snapshot_id"`
	Rows       int          `json:"rows"`
	Start      *time.Time   `json:"start,omitempty"`
	End        *time.Time   `json:"end,omitempty"`
	Series     []seriesInfo `json:"series"`
}

func (s *Server) handleDatasetSummary(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()

	summary := datasetSummary{
		SnapshotID: snap.ID.String(),
		Rows:       snap.Len(),
		Series:     make([]seriesInfo, 0, len(snap.Columns)),
	}
	if snap.Len() > 0 {
		first, last := snap.Span()
		summary.Start, summary.End = &first, &last
	}
	for _, key := range snap.Columns {
		meta := snap.Meta[key]
		sr, err := snap.Series(key)
		missing := 0.0
		if err == nil && sr.Len() > 0 {
			missing = float64(sr.Len()-sr.ValidCount()) / float64(sr.Len())
		}
		summary.Series = append(summary.Series, seriesInfo{
			Key:       key.String(),
			ShortName: meta.ShortName,
			Source:    meta.Source,
			Missing:   missing,
		})
	}
	writeJSON(w, http.StatusOK, summary)
}

type seriesPoints struct {
	Key       string     `json:"key"`
	ShortName string     `json:"short_name"`
	Values    []*float64 `json:"values"`
}

type seriesDataResponse struct {
	SnapshotID string         `json:"snapshot_id"`
	Times      []time.Time    `json:"times"`
	Series     []seriesPoints `json:"series"`
}

// handleSeriesData returns raw points for plotting. Missing samples encode
// as JSON null so gaps survive the trip.
func (s *Server) handleSeriesData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	out := s.store.Snapshot()
	if keys := q["series"]; len(keys) > 0 {
		selected, err := out.Select(core.SeriesKeys(keys))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		out = selected
	}

	window, err := parseWindow(q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out = out.Filter(window)

	if period := q.Get("period"); period != "" {
		agg := q.Get("aggregator")
		if agg == "" {
			agg = dataset.AggMean
		}
		out, err = dataset.Resample(out, period, agg)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
	}

	resp := seriesDataResponse{
		SnapshotID: out.ID.String(),
		Times:      out.Index,
		Series:     make([]seriesPoints, 0, len(out.Columns)),
	}
	for _, key := range out.Columns {
		values := make([]*float64, out.Len())
		col := out.Values[key]
		for i, v := range col {
			if !series.IsMissing(v) {
				vv := v
				values[i] = &vv
			}
		}
		resp.Series = append(resp.Series, seriesPoints{
			Key:       key.String(),
			ShortName: out.Meta[key].ShortName,
			Values:    values,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// analyzeRequest mirrors the analysis inputs. Times are RFC3339; both empty
// selects the trailing-week default window.
type analyzeRequest struct {
	Series     []string `json:"series"`
	Start      string   `json:"start,omitempty"`
	End        string   `json:"end,omitempty"`
	Period     string   `json:"period,omitempty"`
	Aggregator string   `json:"aggregator,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	window, err := parseWindow(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Period == "" {
		req.Period = s.cfg.Analysis.ResamplePeriod
	}
	if req.Aggregator == "" {
		req.Aggregator = s.cfg.Analysis.Aggregator
	}

	rep, err := s.analysis.Analyze(r.Context(), s.store.Snapshot(), toAnalysisRequest(req, window))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"report": rep,
		"text":   rep.Render(),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	snap := s.store.Snapshot()
	out := snap
	if keys := q["series"]; len(keys) > 0 {
		selected, err := snap.Select(core.SeriesKeys(keys))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		out = selected
	}

	window, err := parseWindow(q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out = out.Filter(window)

	if period := q.Get("period"); period != "" {
		agg := q.Get("aggregator")
		if agg == "" {
			agg = dataset.AggMean
		}
		out, err = dataset.Resample(out, period, agg)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="export.csv"`)
	if err := dataset.WriteCSV(w, out); err != nil {
		log.Printf("[API] export write failed: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toAnalysisRequest(req analyzeRequest, window series.Window) app.AnalysisRequest {
	return app.AnalysisRequest{
		Selection:  core.SeriesKeys(req.Series),
		Window:     window,
		Period:     req.Period,
		Aggregator: req.Aggregator,
	}
}

func parseWindow(start, end string) (series.Window, error) {
	var w series.Window
	if start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return w, err
		}
		w.Start = t
	}
	if end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return w, err
		}
		w.End = t
	}
	return w, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] response encode failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownSeries),
		errors.Is(err, core.ErrEmptySelection),
		errors.Is(err, core.ErrTooFewSeries),
		errors.Is(err, core.ErrBadPeriod),
		errors.Is(err, core.ErrBadAggregator):
		return http.StatusBadRequest
	case core.IsDataError(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
