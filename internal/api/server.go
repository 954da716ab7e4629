// Package api provides the HTTP API behind the interactive tree viewer.
// GET endpoints read session state; POST endpoints create sessions and
// advance them. Deleting a session requires the admin bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/treesim/internal/engine"
	"github.com/talgya/treesim/internal/persistence"
	"github.com/talgya/treesim/internal/weather"
)

// Loader builds a fresh model, e.g. by reading the tree inventory.
type Loader func() (*engine.CityModel, error)

// Server serves simulation sessions over HTTP.
type Server struct {
	Load       Loader
	DB         *persistence.DB // Optional run archive
	Sessions   *SessionStore
	Port       int
	AdminKey   string // Bearer token for DELETE. Empty = disabled.
	MaxAdvance int    // Cap on years per advance request

	// Climate is the scenario advance uses when no preset is requested.
	Climate weather.Scenario

	createLimiter *RateLimiter
}

// NewServer creates a server with default limits.
func NewServer(load Loader, db *persistence.DB) *Server {
	return &Server{
		Load:          load,
		DB:            db,
		Sessions:      NewSessionStore(32),
		Port:          8080,
		MaxAdvance:    100,
		Climate:       mustPreset("baseline"),
		createLimiter: NewRateLimiter(10, time.Minute),
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	if s.createLimiter == nil {
		s.createLimiter = NewRateLimiter(10, time.Minute)
	}
	if s.Sessions == nil {
		s.Sessions = NewSessionStore(0)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/climate/presets", s.handlePresets)

	mux.HandleFunc("POST /api/v1/sessions", RateLimitMiddleware(s.createLimiter, s.handleCreate))
	mux.HandleFunc("GET /api/v1/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.withSession(s.handleStatus))
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.adminOnly(s.handleDelete))
	mux.HandleFunc("POST /api/v1/sessions/{id}/step", s.withSession(s.handleStep))
	mux.HandleFunc("POST /api/v1/sessions/{id}/advance", s.withSession(s.handleAdvance))
	mux.HandleFunc("GET /api/v1/sessions/{id}/metrics", s.withSession(s.handleMetrics))
	mux.HandleFunc("GET /api/v1/sessions/{id}/metrics/{year}", s.withSession(s.handleMetricsYear))
	mux.HandleFunc("GET /api/v1/sessions/{id}/species", s.withSession(s.handleSpecies))
	mux.HandleFunc("GET /api/v1/sessions/{id}/trees", s.withSession(s.handleTrees))

	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}/history", s.handleRunHistory)

	return corsMiddleware(mux)
}

// Start begins serving in a goroutine. The returned server can be shut down.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "archive", s.DB != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed viewer origins.
// CORS_ORIGINS is a comma-separated list; localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:8501": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	return ok && token == s.AdminKey
}

func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no TREESIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// withSession resolves {id} and holds the session lock for the handler.
func (s *Server) withSession(next func(http.ResponseWriter, *http.Request, *Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.Sessions.Get(r.PathValue("id"))
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		sess.mu.Lock()
		defer sess.mu.Unlock()
		next(w, r, sess)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"ok": true, "sessions": s.Sessions.Len()})
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	out := make([]weather.Scenario, 0)
	for _, name := range weather.Presets() {
		sc, _ := weather.Preset(name)
		out = append(out, sc)
	}
	writeJSON(w, map[string]any{
		"presets": out,
		"ranges": map[string]float64{
			"min_precipitation": weather.MinPrecipitation,
			"max_precipitation": weather.MaxPrecipitation,
			"min_temperature":   weather.MinTemperature,
			"max_temperature":   weather.MaxTemperature,
		},
	})
}

// handleCreate builds a new model. A loader failure creates no session.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	m, err := s.Load()
	if err != nil {
		slog.Error("model construction failed", "error", err)
		http.Error(w, "model construction failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	sess, err := s.Sessions.Add(m)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	if s.DB != nil {
		run, err := s.DB.SaveHistory(m)
		if err != nil {
			slog.Error("archive run failed", "session", sess.ID, "error", err)
		} else {
			sess.RunID = run.ID
		}
	}

	slog.Info("session created", "session", sess.ID, "trees", m.Population().Len(), "year", m.Year)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, s.status(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"sessions": s.Sessions.IDs()})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.Sessions.Delete(r.PathValue("id")) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) status(sess *Session) map[string]any {
	m := sess.Model
	c := m.Climate()
	return map[string]any{
		"id":            sess.ID,
		"run_id":        sess.RunID,
		"year":          m.Year,
		"next_year":     m.Year + 1,
		"trees":         m.Population().Len(),
		"alive":         m.AliveCount(),
		"dead_total":    m.DeadTreeCount,
		"planted_total": m.TotalPlanted,
		"climate":       c,
		"climate_label": c.Describe(),
		"load_report":   m.Report,
		"seed":          m.Seed(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, sess *Session) {
	writeJSON(w, s.status(sess))
}

type stepRequest struct {
	Precipitation *float64 `json:"precipitation"`
	Temperature   *float64 `json:"temperature"`
}

// handleStep applies the posted climate to the upcoming year and steps.
// Missing values fall back to the scenario's initial climate.
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request, sess *Session) {
	m := sess.Model
	p := m.Params()
	c := weather.Climate{Precipitation: p.InitialPrecipitation, Temperature: p.InitialTemperature}

	if r.Body != nil {
		var req stepRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.Precipitation != nil {
			c.Precipitation = *req.Precipitation
		}
		if req.Temperature != nil {
			c.Temperature = *req.Temperature
		}
	}

	m.SetClimate(c.Clamp())
	snap := m.Step()
	s.archive(sess, snap)
	writeJSON(w, snap)
}

// handleAdvance runs several years with a generated climate series.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request, sess *Session) {
	years := 1
	if v := r.URL.Query().Get("years"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > s.MaxAdvance {
			http.Error(w, fmt.Sprintf("years must be 1..%d", s.MaxAdvance), http.StatusBadRequest)
			return
		}
		years = n
	}
	sc := s.Climate
	if preset := r.URL.Query().Get("climate"); preset != "" {
		var err error
		if sc, err = weather.Preset(preset); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	} else if sc.Name == "" {
		sc = mustPreset("baseline")
	}

	m := sess.Model
	eng := engine.NewEngine(m, weather.NewGenerator(sc, m.ClimateSeed(), m.Params().StartYear))
	eng.Years = years
	var snaps []engine.Snapshot
	eng.OnYear = func(snap engine.Snapshot) {
		s.archive(sess, snap)
		snaps = append(snaps, snap)
	}
	if _, err := eng.Run(r.Context()); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("advance failed", "session", sess.ID, "error", err)
	}
	writeJSON(w, snaps)
}

func (s *Server) archive(sess *Session, snap engine.Snapshot) {
	if s.DB == nil || sess.RunID == "" {
		return
	}
	if err := s.DB.SaveSnapshots(sess.RunID, []engine.Snapshot{snap}); err != nil {
		slog.Error("archive snapshot failed", "session", sess.ID, "year", snap.Year, "error", err)
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request, sess *Session) {
	h := sess.Model.History()
	from, to := 0, int(^uint(0)>>1)
	if v, err := strconv.Atoi(r.URL.Query().Get("from")); err == nil {
		from = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("to")); err == nil {
		to = v
	}
	snaps := h.Range(from, to)
	if snaps == nil {
		snaps = []engine.Snapshot{}
	}
	writeJSON(w, snaps)
}

func (s *Server) handleMetricsYear(w http.ResponseWriter, r *http.Request, sess *Session) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		http.Error(w, "invalid year", http.StatusBadRequest)
		return
	}
	snap, ok := sess.Model.History().ForYear(year)
	if !ok {
		http.Error(w, "no snapshot for year", http.StatusNotFound)
		return
	}
	writeJSON(w, snap)
}

// handleSpecies returns the top species of a year (default: latest).
func (s *Server) handleSpecies(w http.ResponseWriter, r *http.Request, sess *Session) {
	h := sess.Model.History()
	snap, ok := h.Latest()
	if v := r.URL.Query().Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid year", http.StatusBadRequest)
			return
		}
		snap, ok = h.ForYear(year)
	}
	if !ok {
		http.Error(w, "no snapshot for year", http.StatusNotFound)
		return
	}

	top := 5
	if v, err := strconv.Atoi(r.URL.Query().Get("top")); err == nil && v > 0 {
		top = v
	}
	writeJSON(w, map[string]any{
		"year":    snap.Year,
		"species": snap.TopSpecies(top),
	})
}

func (s *Server) handleTrees(w http.ResponseWriter, r *http.Request, sess *Session) {
	m := sess.Model
	limit := m.Params().DisplaySample
	if v, err := strconv.Atoi(r.URL.Query().Get("max")); err == nil && v > 0 {
		limit = v
	}
	markers := sampleMarkers(m.Population().Trees(), m.Year, limit)
	writeJSON(w, map[string]any{
		"year":    m.Year,
		"total":   m.Population().Len(),
		"shown":   len(markers),
		"markers": markers,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "archive not available", http.StatusServiceUnavailable)
		return
	}
	limit := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	runs, err := s.DB.ListRuns(limit)
	if err != nil {
		slog.Error("list runs failed", "error", err)
		http.Error(w, "archive query failed", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []persistence.Run{}
	}
	writeJSON(w, runs)
}

func (s *Server) handleRunHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "archive not available", http.StatusServiceUnavailable)
		return
	}

	from, to, limit := 0, 1<<31-1, 200
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("from")); err == nil {
		from = v
	}
	if v, err := strconv.Atoi(q.Get("to")); err == nil {
		to = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 && v <= 1000 {
		limit = v
	}

	rows, err := s.DB.LoadStatsHistory(r.PathValue("id"), from, to, limit)
	if err != nil {
		slog.Error("stats history query failed", "error", err)
		writeJSON(w, []persistence.StatsRow{})
		return
	}
	if rows == nil {
		rows = []persistence.StatsRow{}
	}
	writeJSON(w, rows)
}

func mustPreset(name string) weather.Scenario {
	sc, err := weather.Preset(name)
	if err != nil {
		panic(err)
	}
	return sc
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
