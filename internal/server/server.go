package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lazypower/decayregion/internal/engine"
	"github.com/lazypower/decayregion/internal/ledger"
	"github.com/lazypower/decayregion/internal/region"
	"github.com/lazypower/decayregion/internal/snapshot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Runner executes a function on the goroutine that owns the engine.
type Runner interface {
	Do(fn func())
}

// Server is the decayregion admin API server.
type Server struct {
	engine   *engine.Engine
	runner   Runner
	gatherer prometheus.Gatherer
	router   chi.Router
	version  string
	started  time.Time
}

// New creates a Server. Every engine call is made through runner. A nil
// gatherer disables /metrics.
func New(eng *engine.Engine, runner Runner, gatherer prometheus.Gatherer, version string) *Server {
	s := &Server{
		engine:   eng,
		runner:   runner,
		gatherer: gatherer,
		version:  version,
		started:  time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/lookup", s.handleLookup)

		r.Get("/regions", s.handleListRegions)
		r.Post("/regions", s.handleCreateRegion)
		r.Route("/regions/{id}", func(r chi.Router) {
			r.Get("/", s.handleRegionInfo)
			r.Delete("/", s.handleRemoveRegion)
			r.Post("/rename", s.handleRenameRegion)
			r.Put("/decay", s.handleSetDecay)
			r.Post("/snapshot", s.handleSnapshot)
			r.Post("/restore", s.handleRestore)
			r.Post("/reset", s.handleReset)
			r.Post("/force-clear", s.handleForceClear)
			r.Post("/export", s.handleExport)
		})
		r.Post("/snapshots/import", s.handleImport)

		r.Put("/world/block", s.handleSetBlock)
		r.Route("/events", func(r chi.Router) {
			r.Post("/place", s.handlePlaceEvent)
			r.Post("/fluid", s.handleFluidEvent)
			r.Post("/flow", s.handleFlowEvent)
			r.Post("/form", s.handleFormEvent)
			r.Post("/break", s.handleBreakEvent)
			r.Post("/interact", s.handleInteractEvent)
			r.Post("/fill", s.handleFillEvent)
			r.Post("/entity", s.handleEntityEvent)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var regions, tasks int
	ledgerOK := true
	s.runner.Do(func() {
		regions = s.engine.Regions.Len()
		tasks = s.engine.ActiveTasks()
		if _, err := s.engine.Ledger.RegionKeys(); err != nil {
			ledgerOK = false
		}
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"version":      s.version,
		"uptime":       time.Since(s.started).Seconds(),
		"regions":      regions,
		"active_tasks": tasks,
		"ledger":       ledgerOK,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeErr maps engine errors onto status codes.
func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, region.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, region.ErrExists), errors.Is(err, region.ErrOverlap):
		status = http.StatusConflict
	case errors.Is(err, region.ErrInvalid), errors.Is(err, snapshot.ErrTooLarge):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrUnavailable), errors.Is(err, snapshot.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}
