package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lazypower/decayregion/internal/archive"
	"github.com/lazypower/decayregion/internal/engine"
	"github.com/lazypower/decayregion/internal/ledger"
	"github.com/lazypower/decayregion/internal/region"
	"github.com/lazypower/decayregion/internal/snapshot"
	"github.com/lazypower/decayregion/internal/world"
)

func (s *Server) handleListRegions(w http.ResponseWriter, r *http.Request) {
	var out []engine.RegionInfo
	s.runner.Do(func() {
		for _, reg := range s.engine.Regions.All() {
			info, err := s.engine.Info(reg.ID)
			if err == nil {
				out = append(out, info)
			}
		}
	})
	if out == nil {
		out = []engine.RegionInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(out),
		"regions": out,
	})
}

func (s *Server) handleCreateRegion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID           string    `json:"id"`
		World        string    `json:"world"`
		Min          world.Pos `json:"min"`
		Max          world.Pos `json:"max"`
		DecaySeconds int       `json:"decay_seconds"`
	}
	if !decode(w, r, &req) {
		return
	}

	var (
		created region.Region
		err     error
	)
	s.runner.Do(func() {
		var reg *region.Region
		if reg, err = s.engine.CreateRegion(req.ID, req.World, req.Min, req.Max, req.DecaySeconds); err == nil {
			created = *reg
		}
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleRegionInfo(w http.ResponseWriter, r *http.Request) {
	var (
		info engine.RegionInfo
		err  error
	)
	s.runner.Do(func() {
		info, err = s.engine.Info(chi.URLParam(r, "id"))
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleRemoveRegion(w http.ResponseWriter, r *http.Request) {
	var (
		removed region.Region
		err     error
	)
	s.runner.Do(func() {
		var reg *region.Region
		if reg, err = s.engine.RemoveRegion(chi.URLParam(r, "id")); err == nil {
			removed = *reg
		}
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "removed", "region": removed})
}

func (s *Server) handleRenameRegion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}

	var (
		renamed *region.Region
		err     error
	)
	s.runner.Do(func() {
		var reg *region.Region
		if reg, err = s.engine.RenameRegion(chi.URLParam(r, "id"), req.ID); reg != nil {
			cp := *reg
			renamed = &cp
		}
	})
	if err != nil && renamed == nil {
		writeErr(w, err)
		return
	}
	if err != nil {
		// The region itself was renamed; its rows were not all moved.
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "region": renamed})
		return
	}
	writeJSON(w, http.StatusOK, renamed)
}

func (s *Server) handleSetDecay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seconds int `json:"seconds"`
	}
	if !decode(w, r, &req) {
		return
	}

	var (
		updated region.Region
		err     error
	)
	s.runner.Do(func() {
		var reg *region.Region
		if reg, err = s.engine.SetDecaySeconds(chi.URLParam(r, "id"), req.Seconds); err == nil {
			updated = *reg
		}
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var (
		n   int
		err error
	)
	s.runner.Do(func() {
		n, err = s.engine.SnapshotRegion(chi.URLParam(r, "id"))
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "saved", "rows": n})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	s.restore(w, r, s.engine.RestoreRegion)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.restore(w, r, s.engine.ResetRegion)
}

func (s *Server) restore(w http.ResponseWriter, r *http.Request, fn func(string) (snapshot.RestoreResult, error)) {
	var (
		res snapshot.RestoreResult
		err error
	)
	s.runner.Do(func() {
		res, err = fn(chi.URLParam(r, "id"))
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "restored",
		"total":    res.Total(),
		"exact":    res.Exact,
		"material": res.Material,
		"air":      res.Air,
	})
}

func (s *Server) handleForceClear(w http.ResponseWriter, r *http.Request) {
	var (
		cleared ledger.Counts
		err     error
	)
	s.runner.Do(func() {
		reg, ok := s.engine.Regions.Get(chi.URLParam(r, "id"))
		if !ok {
			err = fmt.Errorf("force clear %q: %w", chi.URLParam(r, "id"), region.ErrNotFound)
			return
		}
		cleared = s.engine.ForceClearRegion(reg.Key())
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "cleared", "cleared": cleared})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path required")
		return
	}

	var (
		key  string
		rows []snapshot.Row
		err  error
	)
	s.runner.Do(func() {
		reg, ok := s.engine.Regions.Get(chi.URLParam(r, "id"))
		if !ok {
			err = fmt.Errorf("export %q: %w", chi.URLParam(r, "id"), region.ErrNotFound)
			return
		}
		key = reg.Key()
		rows, err = s.engine.Snapshots.Rows(key)
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	// File I/O stays off the tick goroutine.
	if err := archive.Export(req.Path, key, rows); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "exported", "path": req.Path, "rows": len(rows)})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path   string `json:"path"`
		Region string `json:"region"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path required")
		return
	}

	h, rows, err := archive.Import(req.Path)
	if err != nil {
		if errors.Is(err, archive.ErrVersion) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeErr(w, err)
		return
	}
	target := h.Region
	if req.Region != "" {
		target = req.Region
	}
	key := region.Key(target)

	s.runner.Do(func() {
		err = s.engine.ImportSnapshot(target, rows)
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "imported", "region": key, "rows": len(rows)})
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var coords [3]int
	for i, name := range []string{"x", "y", "z"} {
		n, err := strconv.Atoi(q.Get(name))
		if err != nil {
			writeError(w, http.StatusBadRequest, name+" must be an integer")
			return
		}
		coords[i] = n
	}
	loc := world.At(q.Get("world"), coords[0], coords[1], coords[2])

	var (
		found region.Region
		ok    bool
	)
	s.runner.Do(func() {
		var reg *region.Region
		if reg, ok = s.engine.RegionAt(loc); ok {
			found = *reg
		}
	})
	if !ok {
		writeError(w, http.StatusNotFound, "no region at "+loc.String())
		return
	}
	writeJSON(w, http.StatusOK, found)
}
