// Package api provides the HTTP API for watching and steering the city.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/tilecity/internal/agents"
	"github.com/talgya/tilecity/internal/engine"
	"github.com/talgya/tilecity/internal/persistence"
	"github.com/talgya/tilecity/internal/world"
)

// Server serves the city over HTTP.
type Server struct {
	Sim          *engine.Simulation
	Eng          *engine.Engine
	DB           *persistence.DB // Optional
	Hub          *Hub            // Optional; enables /api/v1/ws
	Port         int
	AdminKey     string // Bearer token for POST endpoints. Empty = POST disabled.
	SnapshotPath string // Optional zstd snapshot file for save/load

	// BroadcastEvery is how often PublishTick pushes a status frame.
	BroadcastEvery uint64

	ToolLimiter *RateLimiter
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	if s.ToolLimiter == nil {
		s.ToolLimiter = NewRateLimiter(120, time.Minute)
	}

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/map", s.handleMap)
	mux.HandleFunc("/api/v1/tile/", s.handleTile)
	mux.HandleFunc("/api/v1/sims", s.handleSims)
	mux.HandleFunc("/api/v1/sim/", s.handleSimDetail)
	mux.HandleFunc("/api/v1/vehicles", s.handleVehicles)
	mux.HandleFunc("/api/v1/economy", s.handleEconomy)
	mux.HandleFunc("/api/v1/claims", s.handleClaims)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	if s.Hub != nil {
		mux.HandleFunc("/api/v1/ws", s.Hub.ServeWS)
	}

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/tool", s.adminOnly(RateLimitMiddleware(s.ToolLimiter, s.handleTool)))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/save", s.adminOnly(s.handleSave))
	mux.HandleFunc("/api/v1/load", s.adminOnly(s.handleLoad))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine. The returned server
// is for shutdown.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "websocket", s.Hub != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// Shutdown stops srv, waiting up to five seconds for requests to finish.
func Shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}
}

// PublishTick pushes the status and the events of the last BroadcastEvery
// ticks to WebSocket watchers.
func (s *Server) PublishTick(tick uint64) {
	if s.Hub == nil || s.BroadcastEvery == 0 || tick%s.BroadcastEvery != 0 {
		return
	}
	s.Hub.Broadcast("status", tick, s.Sim.Status())
	var fresh []engine.Event
	for _, e := range s.Sim.RecentEvents(50) {
		if e.Tick+s.BroadcastEvery <= tick {
			break
		}
		fresh = append(fresh, e)
	}
	if len(fresh) > 0 {
		s.Hub.Broadcast("events", tick, fresh)
	}
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
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no CITYSIM_ADMIN_KEY set)", http.StatusForbidden)
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

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"name":    "tilecity",
		"city":    s.Sim.Status(),
		"speed":   s.Eng.Speed(),
		"running": s.Eng.Running(),
	})
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	labels := s.Sim.GridLabels()
	cols := 0
	if len(labels) > 0 {
		cols = len(labels[0])
	}
	writeJSON(w, map[string]any{
		"rows":  len(labels),
		"cols":  cols,
		"tiles": labels,
	})
}

// handleTile serves GET /api/v1/tile/:row/:col.
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/tile/"), "/")
	if len(parts) != 2 {
		http.Error(w, "usage: /api/v1/tile/{row}/{col}", http.StatusBadRequest)
		return
	}
	row, err1 := strconv.Atoi(parts[0])
	col, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		http.Error(w, "row and col must be integers", http.StatusBadRequest)
		return
	}

	pos := world.Pos(row, col)
	kind, err := s.Sim.TileAt(pos)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	homes, jobs := s.Sim.Claims()
	var occupants []agents.SimID
	for _, sim := range s.Sim.Sims() {
		if sim.Pos == pos {
			occupants = append(occupants, sim.ID)
		}
	}
	writeJSON(w, map[string]any{
		"pos":        pos,
		"kind":       kind,
		"home_claim": contains(homes, pos),
		"job_claim":  contains(jobs, pos),
		"sims_here":  occupants,
	})
}

func contains(ps []world.Position, p world.Position) bool {
	for _, q := range ps {
		if q == p {
			return true
		}
	}
	return false
}

func (s *Server) handleSims(w http.ResponseWriter, r *http.Request) {
	sims := s.Sim.Sims()
	if state := r.URL.Query().Get("state"); state != "" {
		filtered := sims[:0]
		for _, sim := range sims {
			if sim.State.String() == state {
				filtered = append(filtered, sim)
			}
		}
		sims = filtered
	}
	writeJSON(w, sims)
}

// handleSimDetail serves GET /api/v1/sim/:id.
func (s *Server) handleSimDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(strings.TrimPrefix(r.URL.Path, "/api/v1/sim/"), 10, 64)
	if err != nil {
		http.Error(w, "invalid sim id", http.StatusBadRequest)
		return
	}
	sim, ok := s.Sim.Sim(agents.SimID(id))
	if !ok {
		http.Error(w, "sim not found", http.StatusNotFound)
		return
	}
	writeJSON(w, sim)
}

func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Vehicles())
}

func (s *Server) handleEconomy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Economy())
}

func (s *Server) handleClaims(w http.ResponseWriter, r *http.Request) {
	homes, jobs := s.Sim.Claims()
	writeJSON(w, map[string]any{
		"homes": homes,
		"jobs":  jobs,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	var events []engine.Event
	if r.URL.Query().Get("source") == "db" {
		if s.DB == nil {
			http.Error(w, "database not available", http.StatusServiceUnavailable)
			return
		}
		var err error
		if events, err = s.DB.RecentEvents(limit); err != nil {
			slog.Error("query events", "error", err)
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
	} else {
		events = s.Sim.RecentEvents(0)
	}

	category := r.URL.Query().Get("category")
	out := make([]engine.Event, 0, limit)
	for _, e := range events {
		if len(out) == limit {
			break
		}
		if category == "" || e.Category == category {
			out = append(out, e)
		}
	}
	writeJSON(w, out)
}

type toolRequest struct {
	Tool string `json:"tool"`
	Row  int    `json:"row"`
	Col  int    `json:"col"`
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req toolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	tool, err := engine.ParseTool(req.Tool)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pos := world.Pos(req.Row, req.Col)
	if err := s.Sim.ApplyTool(tool, pos); err != nil {
		http.Error(w, err.Error(), toolStatus(err))
		return
	}
	kind, _ := s.Sim.TileAt(pos)
	writeJSON(w, map[string]any{
		"pos":   pos,
		"kind":  kind,
		"money": s.Sim.Economy().Money,
	})
}

func toolStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, engine.ErrTileOccupied), errors.Is(err, engine.ErrNoRoadAccess):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil && s.SnapshotPath == "" {
		http.Error(w, "no storage configured", http.StatusServiceUnavailable)
		return
	}

	saved := []string{}
	if s.DB != nil {
		if err := s.DB.SaveWorldState(s.Sim); err != nil {
			slog.Error("save failed", "error", err)
			http.Error(w, "save failed", http.StatusInternalServerError)
			return
		}
		saved = append(saved, "database")
	}
	if s.SnapshotPath != "" {
		snap := persistence.NewSnapshot(s.Sim.RunID(), s.Sim.CurrentTick(), s.Sim.GridLabels())
		if err := persistence.WriteSnapshot(s.SnapshotPath, snap); err != nil {
			slog.Error("snapshot write failed", "path", s.SnapshotPath, "error", err)
			http.Error(w, "snapshot failed", http.StatusInternalServerError)
			return
		}
		saved = append(saved, "snapshot")
	}

	writeJSON(w, map[string]any{
		"tick":  s.Sim.CurrentTick(),
		"saved": saved,
	})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		source = "db"
	}

	switch source {
	case "db":
		if s.DB == nil {
			http.Error(w, "database not available", http.StatusServiceUnavailable)
			return
		}
		if _, err := s.DB.LoadWorldState(s.Sim); err != nil {
			if errors.Is(err, persistence.ErrNoSavedGrid) {
				http.Error(w, "no saved map", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
	case "snapshot":
		if s.SnapshotPath == "" {
			http.Error(w, "no snapshot path configured", http.StatusServiceUnavailable)
			return
		}
		snap, err := persistence.ReadSnapshot(s.SnapshotPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				http.Error(w, "no saved map", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		if err := s.Sim.ReplaceGrid(snap.Tiles); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
	default:
		http.Error(w, "source must be db or snapshot", http.StatusBadRequest)
		return
	}

	writeJSON(w, map[string]any{
		"tick":   s.Sim.CurrentTick(),
		"source": source,
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
