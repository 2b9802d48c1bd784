package engine

import (
	"log"

	"github.com/lazypower/decayregion/internal/region"
	"github.com/lazypower/decayregion/internal/world"
)

// HandleFluidPlace tracks fluid emptied from a container at loc. The host
// finishes the placement after the event, so the cell is read one tick
// later.
func (e *Engine) HandleFluidPlace(actor Actor, loc world.Location) bool {
	r, ok := e.Regions.At(loc)
	if !ok || actor.Operator {
		return false
	}
	e.clock.After(1, func() {
		b, ok := e.World.BlockAt(loc)
		if !ok {
			return
		}
		kind, isFluid := world.FluidOf(b.Material)
		if !isFluid {
			return
		}
		e.ScheduleFluidRemoval(r, loc, kind)
	})
	return true
}

// ScheduleFluidRemoval records a fluid source and flood-clears the body it
// fed once the region's decay duration has passed. A cell already
// scheduled is ignored.
func (e *Engine) ScheduleFluidRemoval(r *region.Region, loc world.Location, kind world.FluidKind) bool {
	if _, dup := e.fluids[loc]; dup {
		return false
	}
	if err := e.Ledger.RecordFluidSource(r.Key(), loc, kind); err != nil {
		e.ledgerError("record fluid source", err)
	}
	e.fluids[loc] = e.clock.After(e.ticks(r.DecaySeconds), func() {
		key := r.Key()
		e.FloodClear(key, loc, kind, e.cfg.Decay.MaxFloodBlocks)
		if err := e.Ledger.RemoveFluidSource(key, loc, kind); err != nil {
			e.ledgerError("remove fluid source", err)
		}
		delete(e.fluids, loc)
		e.metrics.fluidRemovals.Inc()
	})
	return true
}

// FluidScheduled reports whether a removal is pending for loc.
func (e *Engine) FluidScheduled(loc world.Location) bool {
	_, ok := e.fluids[loc]
	return ok
}

// FloodClear removes the connected body of kind reachable from start
// through face-adjacent cells that stay inside the region keyed regionKey.
// It clears at most limit cells and returns how many it cleared.
func (e *Engine) FloodClear(regionKey string, start world.Location, kind world.FluidKind, limit int) int {
	target := kind.Material()
	queue := []world.Location{start}
	visited := map[world.Location]bool{start: true}
	cleared := 0

	for len(queue) > 0 {
		if cleared >= limit {
			if pending := e.floodPending(regionKey, queue, target); pending > 0 {
				e.metrics.floodSaturated.Inc()
				log.Printf("flood: %s fill from %s hit limit %d with %d cells pending", kind, start, limit, pending)
			}
			break
		}
		cur := queue[0]
		queue = queue[1:]

		if !e.floodMatch(regionKey, cur, target) {
			continue
		}
		e.World.SetBlock(cur, world.AirBlock)
		cleared++

		for _, n := range cur.Neighbors() {
			next := world.Location{World: cur.World, Pos: n}
			if visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}

	e.metrics.floodCleared.Add(float64(cleared))
	return cleared
}

// floodMatch reports whether loc holds target inside the region keyed regionKey.
func (e *Engine) floodMatch(regionKey string, loc world.Location, target world.Material) bool {
	r, ok := e.Regions.At(loc)
	if !ok || r.Key() != regionKey {
		return false
	}
	b, ok := e.World.BlockAt(loc)
	return ok && b.Material == target
}

func (e *Engine) floodPending(regionKey string, queue []world.Location, target world.Material) int {
	n := 0
	for _, loc := range queue {
		if e.floodMatch(regionKey, loc, target) {
			n++
		}
	}
	return n
}

// HandleFluidFlow is called before fluid spreads from one cell to another.
// It returns true when the flow must be cancelled: water never leaves a
// region cell that touches a flow blocker on its four sides or below.
// Flow that creates a new water source next to a tracked source schedules
// that source for removal too.
func (e *Engine) HandleFluidFlow(from, to world.Location) bool {
	fb, ok := e.World.BlockAt(from)
	if !ok || fb.Material != world.Water {
		return false
	}

	if e.Regions.InAny(from) && e.touchesBlocker(from) {
		return true
	}

	e.clock.After(1, func() {
		b, ok := e.World.BlockAt(to)
		if !ok || b.Material != world.Water || b.Level() != 0 {
			return
		}
		r, ok := e.Regions.At(to)
		if !ok {
			return
		}
		near, err := e.Ledger.IsNearFluidSource(r.Key(), to, e.cfg.Decay.InfiniteFluidRadius)
		if err != nil {
			e.ledgerError("near fluid source", err)
			return
		}
		if near {
			e.ScheduleFluidRemoval(r, to, world.FluidWater)
		}
	})
	return false
}

func (e *Engine) touchesBlocker(loc world.Location) bool {
	for _, off := range [5][3]int{{-1, 0, 0}, {1, 0, 0}, {0, 0, 1}, {0, 0, -1}, {0, -1, 0}} {
		b, ok := e.World.BlockAt(loc.Offset(off[0], off[1], off[2]))
		if ok && e.blockers[b.Material] {
			return true
		}
	}
	return false
}
