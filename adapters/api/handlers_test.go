package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procsight/internal/config"
	"procsight/internal/container"
	"procsight/internal/testkit"
)

func newTestServer(t *testing.T) (*Server, *container.Container) {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	c, err := container.New(cfg)
	require.NoError(t, err)
	return NewServer(c.Store, c.Analysis, cfg), c
}

func loadFixture(t *testing.T, srv *Server) {
	t.Helper()
	times := testkit.Timestamps(100, time.Second)
	cols := map[string][]float64{
		"Temp": make([]float64, 100),
		"Flow": make([]float64, 100),
	}
	for i := 0; i < 100; i++ {
		cols["Temp"][i] = float64(i % 17)
		cols["Flow"][i] = float64((i * 3) % 11)
	}
	path, err := testkit.WriteCSVFile(t.TempDir(), "rig.csv", times, cols, []string{"Temp", "Flow"})
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]any{"paths": []string{path}})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sources", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLoadAndSummarize(t *testing.T) {
	srv, _ := newTestServer(t)
	loadFixture(t, srv)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dataset", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var summary datasetSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 100, summary.Rows)
	require.Len(t, summary.Series, 2)
	assert.Equal(t, "rig_Temp", summary.Series[0].Key)
}

func TestAnalyzeEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	loadFixture(t, srv)

	body, _ := json.Marshal(map[string]any{"series": []string{"rig_Temp", "rig_Flow"}})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Text, "Pearson Correlation")
	assert.Contains(t, resp.Text, "Fuzzy Rules")
}

func TestAnalyzeUnknownSeriesIsBadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	loadFixture(t, srv)

	body, _ := json.Marshal(map[string]any{"series": []string{"rig_Nope"}})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportEndpointCSV(t *testing.T) {
	srv, _ := newTestServer(t)
	loadFixture(t, srv)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/export?series=rig_Temp", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Equal(t, "time,rig_Temp", lines[0])
	assert.Len(t, lines, 101)
}

func TestSeriesDataEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	loadFixture(t, srv)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/series?series=rig_Flow", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp seriesDataResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Series, 1)
	assert.Equal(t, "rig_Flow", resp.Series[0].Key)
	assert.Len(t, resp.Times, 100)
	require.Len(t, resp.Series[0].Values, 100)
	require.NotNil(t, resp.Series[0].Values[1])
	assert.Equal(t, 3.0, *resp.Series[0].Values[1])
}

func TestClearSources(t *testing.T) {
	srv, c := newTestServer(t)
	loadFixture(t, srv)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sources", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, c.Store.Snapshot().Len())
}
