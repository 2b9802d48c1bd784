package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/lazypower/decayregion/internal/engine"
	"github.com/lazypower/decayregion/internal/world"
)

// Spawner is implemented by worlds that can create entities on request.
type Spawner interface {
	SpawnEntity(kind world.EntityKind, loc world.Location) world.Entity
}

type eventRequest struct {
	Actor    string `json:"actor"`
	Operator bool   `json:"operator"`
	World    string `json:"world"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Z        int    `json:"z"`

	// State is the block placed or formed, as a full state encoding.
	State string `json:"state,omitempty"`
	// Fluid is "water" or "lava" for fluid placement.
	Fluid string `json:"fluid,omitempty"`
	// Kind is the entity kind for entity placement.
	Kind string `json:"kind,omitempty"`
	// To is the destination cell of a flow event.
	To *world.Pos `json:"to,omitempty"`
	// EmptyContainer is set when the actor holds an empty bucket.
	EmptyContainer bool `json:"empty_container,omitempty"`
}

func (e eventRequest) actor() engine.Actor {
	return engine.Actor{ID: e.Actor, Operator: e.Operator}
}

func (e eventRequest) location() world.Location {
	return world.At(e.World, e.X, e.Y, e.Z)
}

// setBlock parses req.State and writes it into the world.
func (s *Server) setBlock(w http.ResponseWriter, req eventRequest) bool {
	var ok bool
	var parseErr error
	s.runner.Do(func() {
		var b world.Block
		b, parseErr = s.engine.World.ParseBlock(req.State)
		if parseErr != nil {
			return
		}
		ok = s.engine.World.SetBlock(req.location(), b)
	})
	if parseErr != nil {
		writeError(w, http.StatusBadRequest, "invalid state: "+parseErr.Error())
		return false
	}
	if !ok {
		writeError(w, http.StatusNotFound, "world "+req.World+" not loaded")
		return false
	}
	return true
}

func (s *Server) handleSetBlock(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decode(w, r, &req) {
		return
	}
	if !s.setBlock(w, req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePlaceEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decode(w, r, &req) {
		return
	}
	if !s.setBlock(w, req) {
		return
	}
	var tracked bool
	s.runner.Do(func() {
		tracked = s.engine.HandleBlockPlace(req.actor(), req.location())
	})
	writeJSON(w, http.StatusOK, map[string]bool{"tracked": tracked})
}

func (s *Server) handleFluidEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decode(w, r, &req) {
		return
	}
	kind, ok := world.ParseFluidKind(req.Fluid)
	if !ok {
		writeError(w, http.StatusBadRequest, "fluid must be water or lava")
		return
	}
	var tracked, loaded bool
	s.runner.Do(func() {
		loc := req.location()
		if loaded = s.engine.World.SetBlock(loc, world.FluidSource(kind)); loaded {
			tracked = s.engine.HandleFluidPlace(req.actor(), loc)
		}
	})
	if !loaded {
		writeError(w, http.StatusNotFound, "world "+req.World+" not loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"tracked": tracked})
}

func (s *Server) handleFlowEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decode(w, r, &req) {
		return
	}
	if req.To == nil {
		writeError(w, http.StatusBadRequest, "to required")
		return
	}
	var cancelled bool
	s.runner.Do(func() {
		cancelled = s.engine.HandleFluidFlow(req.location(), world.Location{World: req.World, Pos: *req.To})
	})
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

func (s *Server) handleFormEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decode(w, r, &req) {
		return
	}
	var (
		tracked bool
		known   bool
	)
	s.runner.Do(func() {
		var m world.Material
		if m, known = s.engine.World.MaterialByName(req.State); known {
			tracked = s.engine.HandleBlockForm(req.location(), m)
			s.engine.World.SetBlock(req.location(), world.Of(m))
		}
	})
	if !known {
		writeError(w, http.StatusBadRequest, "unknown material "+req.State)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"tracked": tracked})
}

func (s *Server) handleBreakEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decode(w, r, &req) {
		return
	}
	var allowed bool
	s.runner.Do(func() {
		loc := req.location()
		if allowed = s.engine.HandleBlockBreak(req.actor(), loc); allowed {
			s.engine.World.BreakNaturally(loc)
		}
	})
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

func (s *Server) handleInteractEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decode(w, r, &req) {
		return
	}
	s.runner.Do(func() {
		s.engine.HandleInteract(req.actor(), req.location(), req.EmptyContainer)
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFillEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decode(w, r, &req) {
		return
	}
	s.runner.Do(func() {
		s.engine.HandleBucketFill(req.actor(), req.location())
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEntityEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decode(w, r, &req) {
		return
	}
	sp, ok := s.engine.World.(Spawner)
	if !ok {
		writeError(w, http.StatusNotImplemented, "world cannot spawn entities")
		return
	}

	var (
		allowed bool
		id      uuid.UUID
	)
	s.runner.Do(func() {
		ent := sp.SpawnEntity(world.EntityKind(req.Kind), req.location())
		id = ent.ID
		if allowed = s.engine.HandleEntityPlace(ent); !allowed {
			s.engine.World.RemoveEntity(ent.ID, false)
		}
	})
	resp := map[string]any{"allowed": allowed}
	if allowed {
		resp["id"] = id.String()
	}
	writeJSON(w, http.StatusOK, resp)
}
