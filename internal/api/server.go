// Package api serves simulation runs over HTTP. The frontend drives a run
// with POST commands and re-reads the query endpoints after each one; the
// server never pushes events. GET endpoints are read-only; run creation is
// rate limited per IP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/growthsim/internal/chart"
	"github.com/talgya/growthsim/internal/engine"
	"github.com/talgya/growthsim/internal/persistence"
	"github.com/talgya/growthsim/internal/projection"
	"github.com/talgya/growthsim/internal/scenario"
)

const (
	defaultChartSamples = 12
	maxChartSamples     = 100
)

// Server exposes one loaded scenario and the runs playing through it.
type Server struct {
	Scenario    *scenario.Scenario
	Sessions    *SessionManager
	DB          *persistence.DB // Optional run archive; nil disables it.
	Port        int
	CORSOrigins []string
}

// Handler builds the full route table with middleware applied.
func (s *Server) Handler() http.Handler {
	createLimiter := NewRateLimiter(120, time.Hour)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/scenario", s.handleScenario)
	mux.HandleFunc("/api/v1/runs", RateLimitMiddleware(createLimiter, s.handleRuns))
	mux.HandleFunc("/api/v1/runs/recent", s.handleRecentRuns)
	mux.HandleFunc("/api/v1/run/", s.handleRunRoutes)

	return corsMiddleware(mux, s.CORSOrigins)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "archive", s.DB != nil)

	go func() {
		if err := http.ListenAndServe(addr, s.Handler()); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins. Localhost
// dev servers are always allowed; extra origins come from configuration or
// the CORS_ORIGINS env var.
func corsMiddleware(next http.Handler, extra []string) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range extra {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowedOrigins[origin] = true
		}
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"name":          "growthsim",
		"chapters":      len(s.Scenario.Chapters),
		"decisions":     s.Scenario.NonTerminalCount(),
		"scenario_seed": s.Scenario.Seed,
		"live_runs":     s.Sessions.Count(),
	}
	if s.DB != nil {
		if n, err := s.DB.CountRuns(); err == nil {
			status["archived_runs"] = n
		}
	}
	writeJSON(w, status)
}

func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Scenario)
}

// handleRuns creates a new run: POST {"followers": N}.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Followers int64 `json:"followers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := s.Sessions.Create(s.Scenario, req.Followers)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("run created", "id", session.ID, "followers", req.Followers)
	writeJSON(w, runPayload(session))
}

// handleRecentRuns lists archived runs, newest first.
func (s *Server) handleRecentRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		writeJSON(w, []any{})
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	recs, err := s.DB.ListRuns(limit)
	if err != nil {
		slog.Error("list runs failed", "error", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, recs)
}

// handleRunRoutes dispatches /api/v1/run/{id} and its sub-resources.
func (s *Server) handleRunRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/run/")
	id, sub, _ := strings.Cut(path, "/")

	session, ok := s.Sessions.Get(id)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		writeJSON(w, runPayload(session))
	case sub == "choice" && r.Method == http.MethodPost:
		s.handleChoice(w, r, session)
	case sub == "reset" && r.Method == http.MethodPost:
		session.Engine.Reset()
		writeJSON(w, runPayload(session))
	case sub == "preview" && r.Method == http.MethodGet:
		s.handlePreview(w, r, session)
	case sub == "maximum" && r.Method == http.MethodGet:
		series := projection.TheoreticalMaximum(s.Scenario, session.Engine.Baseline().Followers)
		writeJSON(w, map[string]any{"series": series})
	case sub == "chart" && r.Method == http.MethodGet:
		s.handleChart(w, r, session)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// handleChoice commits a choice: POST {"chapter": N, "choice": M}. A choice
// of -1 clears the slot. Completing the last open chapter archives the run.
func (s *Server) handleChoice(w http.ResponseWriter, r *http.Request, session *Session) {
	var req struct {
		Chapter int `json:"chapter"`
		Choice  int `json:"choice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := session.Engine.SelectChoice(req.Chapter, req.Choice); err != nil {
		writeError(w, err)
		return
	}

	if s.DB != nil && session.Engine.AllChoicesMade() {
		rec, err := persistence.NewRunRecord(session.ID, session.Engine)
		if err == nil {
			err = s.DB.SaveRun(rec)
		}
		if err != nil {
			slog.Error("run archive failed", "id", session.ID, "error", err)
		}
	}

	writeJSON(w, runPayload(session))
}

// handlePreview answers a what-if query without touching committed state:
// GET ?chapter=N&choice=M.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, session *Session) {
	chapter, err1 := strconv.Atoi(r.URL.Query().Get("chapter"))
	choice, err2 := strconv.Atoi(r.URL.Query().Get("choice"))
	if err1 != nil || err2 != nil {
		http.Error(w, "chapter and choice query params required", http.StatusBadRequest)
		return
	}

	eff, err := projection.Preview(s.Scenario, session.Engine.HistoryByStep(), chapter, choice)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, eff)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request, session *Session) {
	samples := defaultChartSamples
	if v := r.URL.Query().Get("samples"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxChartSamples {
			http.Error(w, "samples must be between 1 and 100", http.StatusBadRequest)
			return
		}
		samples = n
	}

	series := chart.Series(session.Engine.HistoryByStep(), samples, s.Scenario.Seed)
	writeJSON(w, map[string]any{"series": series, "samples_per_step": samples})
}

// runPayload is the full run view the frontend re-reads after every command.
func runPayload(session *Session) map[string]any {
	e := session.Engine
	return map[string]any{
		"id":               session.ID,
		"baseline":         e.Baseline(),
		"state":            e.Snapshot(),
		"history":          e.HistoryByStep(),
		"selections":       e.Selections(),
		"monthly_cost":     e.CurrentMonthlyCost(),
		"all_choices_made": e.AllChoicesMade(),
	}
}

// writeError maps engine failures to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrInvalidBaseline),
		errors.Is(err, engine.ErrInvalidSelection):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrNoScenarioData),
		errors.Is(err, ErrSessionLimit):
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
