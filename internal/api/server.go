// Package api serves the settlement over HTTP.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token and are rate-limited per IP.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/talgya/homestead/internal/catalog"
	"github.com/talgya/homestead/internal/engine"
	"github.com/talgya/homestead/internal/persistence"
	"github.com/talgya/homestead/internal/progress"
	"github.com/talgya/homestead/internal/world"
)

// Server serves the simulation over HTTP.
type Server struct {
	Sim      *engine.Simulation
	DB       *persistence.DB // nil disables database saves
	SavesDir string          // empty disables snapshot export
	Port     int
	AdminKey string       // Bearer token for POST endpoints. Empty = POST disabled.
	Limiter  *RateLimiter // nil = no rate limiting

	streamConns int32
	upgrader    websocket.Upgrader
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/resources", s.handleResources)
	mux.HandleFunc("/api/v1/stages", s.handleStages)
	mux.HandleFunc("/api/v1/frontier", s.handleFrontier)
	mux.HandleFunc("/api/v1/parcels", s.handleParcels)
	mux.HandleFunc("/api/v1/parcel/", s.handleParcelDetail)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/preview", s.handlePreview)
	mux.HandleFunc("/api/v1/catalog", s.handleCatalog)

	// Tick stream (websocket).
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// Player and admin actions (POST, require bearer token).
	mux.HandleFunc("/api/v1/build", s.action(s.handleBuild))
	mux.HandleFunc("/api/v1/demolish", s.action(s.handleDemolish))
	mux.HandleFunc("/api/v1/plan", s.action(s.handlePlan))
	mux.HandleFunc("/api/v1/purchase", s.action(s.handlePurchase))
	mux.HandleFunc("/api/v1/unlock", s.action(s.handleUnlock))
	mux.HandleFunc("/api/v1/snapshot", s.action(s.handleSnapshot))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine and returns the server
// so the caller can shut it down.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
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

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no HOMESTEAD_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

// action is the middleware stack for POST-only endpoints.
func (s *Server) action(next http.HandlerFunc) http.HandlerFunc {
	return s.adminOnly(RateLimitMiddleware(s.Limiter, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status map[string]any
	s.Sim.View(func(sim *engine.Simulation) {
		caps := sim.World.Capacity()
		status = map[string]any{
			"name":      sim.Name,
			"world_id":  sim.ID,
			"tick":      sim.LastTick,
			"elapsed":   engine.Elapsed(sim.LastTick, sim.Interval).String(),
			"parcels":   len(sim.World.Parcels),
			"frontier":  len(sim.World.Frontier()),
			"scope":     sim.World.Rules.Scope.String(),
			"capacity":  caps,
			"storage":   humanize.Comma(int64(caps.Storage)),
			"unlocked":  unlockedStages(sim.Stages),
			"resources": sim.Ledger,
		}
	})
	writeJSON(w, status)
}

func unlockedStages(stages []*progress.Stage) []int {
	var out []int
	for _, st := range stages {
		if st.Unlocked() {
			out = append(out, st.Num)
		}
	}
	return out
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	type resource struct {
		Key       string  `json:"key"`
		Name      string  `json:"name"`
		Symbol    string  `json:"symbol"`
		Amount    int     `json:"amount"`
		Cap       int     `json:"cap"`
		Produced  int     `json:"produced"`
		PerSecond float64 `json:"per_second"`
	}
	var out []resource
	s.Sim.View(func(sim *engine.Simulation) {
		caps := sim.World.Capacity()
		for _, res := range catalog.AllResources() {
			out = append(out, resource{
				Key:       res.Key(),
				Name:      res.Name(),
				Symbol:    res.Symbol(),
				Amount:    sim.Ledger.Get(res),
				Cap:       caps.Cap(res),
				Produced:  sim.LastProduction.Produced[res],
				PerSecond: sim.PerSecond[res],
			})
		}
	})
	writeJSON(w, out)
}

func (s *Server) handleStages(w http.ResponseWriter, r *http.Request) {
	type stage struct {
		*progress.Stage
		Ready bool `json:"ready"`
	}
	var out []stage
	s.Sim.View(func(sim *engine.Simulation) {
		for _, st := range sim.Stages {
			cp := *st
			out = append(out, stage{Stage: &cp, Ready: st.Ready(sim.Ledger)})
		}
	})
	writeJSON(w, out)
}

func (s *Server) handleFrontier(w http.ResponseWriter, r *http.Request) {
	type plot struct {
		X          int  `json:"x"`
		Y          int  `json:"y"`
		Cost       int  `json:"cost"`
		Affordable bool `json:"affordable"`
	}
	out := []plot{}
	s.Sim.View(func(sim *engine.Simulation) {
		tax := sim.Ledger.Get(catalog.ResourceTax)
		for _, pos := range sim.World.Frontier() {
			cost := world.PurchaseCost(pos)
			out = append(out, plot{X: pos.X, Y: pos.Y, Cost: cost, Affordable: tax >= cost})
		}
	})
	writeJSON(w, out)
}

// countsByKey renders a count map with building keys.
func countsByKey(m map[catalog.BuildingType]int) map[string]int {
	out := make(map[string]int, len(m))
	for t, n := range m {
		if t != catalog.BuildingGround && n > 0 {
			out[t.Key()] = n
		}
	}
	return out
}

func (s *Server) handleParcels(w http.ResponseWriter, r *http.Request) {
	type parcelSummary struct {
		X       int            `json:"x"`
		Y       int            `json:"y"`
		Counts  map[string]int `json:"counts"`
		Planned int            `json:"planned"`
	}
	out := []parcelSummary{}
	s.Sim.View(func(sim *engine.Simulation) {
		for _, pos := range sim.World.Owned() {
			p := sim.World.Parcel(pos)
			out = append(out, parcelSummary{
				X:       pos.X,
				Y:       pos.Y,
				Counts:  countsByKey(p.LocalCounts),
				Planned: len(p.Planned),
			})
		}
	})
	writeJSON(w, out)
}

// handleParcelDetail serves GET /api/v1/parcel/{x}/{y}.
func (s *Server) handleParcelDetail(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/parcel/"), "/"), "/")
	if len(parts) != 2 {
		http.Error(w, "want /api/v1/parcel/{x}/{y}", http.StatusBadRequest)
		return
	}
	x, errX := strconv.Atoi(parts[0])
	y, errY := strconv.Atoi(parts[1])
	if errX != nil || errY != nil {
		http.Error(w, "invalid parcel coordinates", http.StatusBadRequest)
		return
	}
	pos := world.Pos{X: x, Y: y}

	type planned struct {
		X    int                  `json:"x"`
		Y    int                  `json:"y"`
		Type catalog.BuildingType `json:"type"`
	}
	var detail map[string]any
	s.Sim.View(func(sim *engine.Simulation) {
		p := sim.World.Parcel(pos)
		if p == nil {
			return
		}
		cells := make([][]catalog.BuildingType, world.GridSize)
		for cx := range p.Cells {
			cells[cx] = make([]catalog.BuildingType, world.GridSize)
			for cy := range p.Cells[cx] {
				cells[cx][cy] = p.Cells[cx][cy].Type
			}
		}
		pl := []planned{}
		for _, c := range p.PlannedCells() {
			pl = append(pl, planned{X: c.X, Y: c.Y, Type: p.Planned[c]})
		}
		detail = map[string]any{
			"x":               pos.X,
			"y":               pos.Y,
			"cells":           cells,
			"planned":         pl,
			"local_counts":    countsByKey(p.LocalCounts),
			"neighbor_counts": countsByKey(p.NeighborCounts),
			"grid":            strings.Split(p.String(), "\n"),
		}
	})
	if detail == nil {
		http.Error(w, "parcel not owned", http.StatusNotFound)
		return
	}
	writeJSON(w, detail)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events := s.Sim.RecentEvents(maxEventScan)

	// Optional category filter.
	if category := r.URL.Query().Get("category"); category != "" {
		var filtered []engine.Event
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	out := events[start:]
	if out == nil {
		out = []engine.Event{}
	}
	writeJSON(w, out)
}

const maxEventScan = 1000

// handlePreview serves GET /api/v1/preview?px=&py=&x=&y=&type=.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var coords [4]int
	for i, k := range []string{"px", "py", "x", "y"} {
		n, err := strconv.Atoi(q.Get(k))
		if err != nil {
			http.Error(w, "invalid "+k, http.StatusBadRequest)
			return
		}
		coords[i] = n
	}
	t, ok := catalog.ParseBuildingType(q.Get("type"))
	if !ok {
		http.Error(w, "unknown building type", http.StatusBadRequest)
		return
	}
	writeJSON(w, s.Sim.Preview(world.Pos{X: coords[0], Y: coords[1]}, world.Pos{X: coords[2], Y: coords[3]}, t))
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		catalog.Building
		Key    string           `json:"key"`
		Name   string           `json:"name"`
		Stage  int              `json:"stage"`
		Output []catalog.Amount `json:"output"`
	}
	var out []entry
	s.Sim.View(func(sim *engine.Simulation) {
		for _, t := range catalog.AllBuildingTypes() {
			out = append(out, entry{
				Building: sim.World.Derive(t),
				Key:      t.Key(),
				Name:     t.Name(),
				Stage:    catalog.StageOf(t),
				Output:   sim.World.Catalog.Output(t),
			})
		}
	})
	writeJSON(w, out)
}

type editRequest struct {
	Parcel world.Pos `json:"parcel"`
	Cell   world.Pos `json:"cell"`
	Type   string    `json:"type"`
}

type editResponse struct {
	Changed    bool               `json:"changed"`
	Result     world.Result       `json:"result"`
	Demolished []world.Demolition `json:"demolished,omitempty"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if !decode(w, r, &req) {
		return
	}
	t, ok := catalog.ParseBuildingType(req.Type)
	if !ok {
		http.Error(w, "unknown building type", http.StatusBadRequest)
		return
	}
	out := s.Sim.Build(req.Parcel, req.Cell, t)
	writeJSON(w, editResponse{Changed: out.Changed(), Result: out.Result, Demolished: out.Demolished})
}

func (s *Server) handleDemolish(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if !decode(w, r, &req) {
		return
	}
	out := s.Sim.Demolish(req.Parcel, req.Cell)
	writeJSON(w, editResponse{Changed: out.Changed(), Result: out.Result, Demolished: out.Demolished})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if !decode(w, r, &req) {
		return
	}
	t, ok := catalog.ParseBuildingType(req.Type)
	if !ok {
		http.Error(w, "unknown building type", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]bool{"changed": s.Sim.Plan(req.Parcel, req.Cell, t)})
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req world.Pos
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, map[string]any{
		"changed": s.Sim.Purchase(req),
		"cost":    world.PurchaseCost(req),
	})
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stage int `json:"stage"`
	}
	if !decode(w, r, &req) {
		return
	}
	changed := s.Sim.UnlockEarly(req.Stage)
	if changed {
		slog.Info("stage unlocked via API", "stage", req.Stage)
	}
	writeJSON(w, map[string]bool{"changed": changed})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil && s.SavesDir == "" {
		http.Error(w, "persistence not available", http.StatusServiceUnavailable)
		return
	}

	resp := map[string]any{"tick": s.Sim.CurrentTick()}
	if s.DB != nil {
		if err := s.DB.SaveWorldState(s.Sim); err != nil {
			slog.Error("snapshot save failed", "error", err)
			http.Error(w, "snapshot failed", http.StatusInternalServerError)
			return
		}
		resp["saved"] = true
	}
	if s.SavesDir != "" {
		path, err := persistence.ExportSnapshot(s.SavesDir, s.Sim)
		if err != nil {
			slog.Error("snapshot export failed", "error", err)
			http.Error(w, "snapshot export failed", http.StatusInternalServerError)
			return
		}
		resp["path"] = path
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Debug("write response", "error", err)
	}
}
