package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/growthsim/internal/entropy"
	"github.com/talgya/growthsim/internal/scenario"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	sc, err := scenario.LoadEmbedded(entropy.NewSource(7))
	require.NoError(t, err)
	return &Server{
		Scenario: sc,
		Sessions: NewSessionManager(100, time.Hour),
	}
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &payload)
	}
	return rec, payload
}

func createRun(t *testing.T, h http.Handler, followers int64) string {
	t.Helper()
	rec, payload := doJSON(t, h, http.MethodPost, "/api/v1/runs", `{"followers": `+jsonInt(followers)+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	id, _ := payload["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func jsonInt(v int64) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func TestStatusEndpoint(t *testing.T) {
	s := testServer(t)
	rec, payload := doJSON(t, s.Handler(), http.MethodGet, "/api/v1/status", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "growthsim", payload["name"])
	assert.Equal(t, float64(7), payload["chapters"])
	assert.Equal(t, float64(6), payload["decisions"])
	assert.Equal(t, float64(0), payload["live_runs"])
}

func TestScenarioEndpoint(t *testing.T) {
	s := testServer(t)
	rec, payload := doJSON(t, s.Handler(), http.MethodGet, "/api/v1/scenario", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	chapters, ok := payload["chapters"].([]any)
	require.True(t, ok)
	assert.Len(t, chapters, 7)
}

func TestCreateRun(t *testing.T) {
	s := testServer(t)
	h := s.Handler()

	rec, payload := doJSON(t, h, http.MethodPost, "/api/v1/runs", `{"followers": 2000}`)
	require.Equal(t, http.StatusOK, rec.Code)

	state := payload["state"].(map[string]any)
	assert.Equal(t, float64(2000), state["followers"])
	assert.Equal(t, float64(10000), state["views"])
	assert.Equal(t, false, payload["all_choices_made"])

	history := payload["history"].([]any)
	assert.Len(t, history, 7)

	assert.Equal(t, 1, s.Sessions.Count())
}

func TestCreateRunRejectsBadBaseline(t *testing.T) {
	s := testServer(t)
	h := s.Handler()

	rec, _ := doJSON(t, h, http.MethodPost, "/api/v1/runs", `{"followers": 5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, h, http.MethodPost, "/api/v1/runs", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, h, http.MethodGet, "/api/v1/runs", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestChoiceFlow(t *testing.T) {
	s := testServer(t)
	h := s.Handler()
	id := createRun(t, h, 1000)

	rec, payload := doJSON(t, h, http.MethodPost, "/api/v1/run/"+id+"/choice", `{"chapter": 0, "choice": 1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	history := payload["history"].([]any)
	assert.NotEqual(t, history[0], history[1])

	selections := payload["selections"].([]any)
	assert.Equal(t, float64(1), selections[0])
	assert.Equal(t, float64(-1), selections[1])

	// Bad selections are rejected without side effects.
	rec, _ = doJSON(t, h, http.MethodPost, "/api/v1/run/"+id+"/choice", `{"chapter": 99, "choice": 0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, after := doJSON(t, h, http.MethodGet, "/api/v1/run/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload["history"], after["history"])
}

func TestResetEndpoint(t *testing.T) {
	s := testServer(t)
	h := s.Handler()
	id := createRun(t, h, 8000)

	_, _ = doJSON(t, h, http.MethodPost, "/api/v1/run/"+id+"/choice", `{"chapter": 0, "choice": 0}`)

	rec, payload := doJSON(t, h, http.MethodPost, "/api/v1/run/"+id+"/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)

	state := payload["state"].(map[string]any)
	assert.Equal(t, float64(1000), state["followers"]) // default baseline
	assert.Equal(t, false, payload["all_choices_made"])
}

func TestPreviewEndpoint(t *testing.T) {
	s := testServer(t)
	h := s.Handler()
	id := createRun(t, h, 1000)

	rec, before := doJSON(t, h, http.MethodGet, "/api/v1/run/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, eff := doJSON(t, h, http.MethodGet, "/api/v1/run/"+id+"/preview?chapter=0&choice=0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, eff, "followers")

	// Preview never changes committed state.
	rec, after := doJSON(t, h, http.MethodGet, "/api/v1/run/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, before["state"], after["state"])
	assert.Equal(t, before["history"], after["history"])

	rec, _ = doJSON(t, h, http.MethodGet, "/api/v1/run/"+id+"/preview?chapter=99&choice=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, h, http.MethodGet, "/api/v1/run/"+id+"/preview?chapter=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMaximumEndpoint(t *testing.T) {
	s := testServer(t)
	h := s.Handler()
	id := createRun(t, h, 1000)

	rec, payload := doJSON(t, h, http.MethodGet, "/api/v1/run/"+id+"/maximum", "")
	require.Equal(t, http.StatusOK, rec.Code)

	series := payload["series"].([]any)
	require.Len(t, series, 7)
	assert.Equal(t, float64(1000), series[0])
}

func TestChartEndpoint(t *testing.T) {
	s := testServer(t)
	h := s.Handler()
	id := createRun(t, h, 1000)

	rec, payload := doJSON(t, h, http.MethodGet, "/api/v1/run/"+id+"/chart?samples=4", "")
	require.Equal(t, http.StatusOK, rec.Code)

	series := payload["series"].([]any)
	assert.Len(t, series, 6*4+1)

	rec, _ = doJSON(t, h, http.MethodGet, "/api/v1/run/"+id+"/chart?samples=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRun(t *testing.T) {
	s := testServer(t)
	h := s.Handler()

	rec, _ := doJSON(t, h, http.MethodGet, "/api/v1/run/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, h, http.MethodGet, "/api/v1/run/does-not-exist/chart", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecentRunsWithoutArchive(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/recent", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestCORSPreflightAndOrigin(t *testing.T) {
	s := testServer(t)
	s.CORSOrigins = []string{"https://studio.example"}
	h := s.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
	req.Header.Set("Origin", "https://studio.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://studio.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
