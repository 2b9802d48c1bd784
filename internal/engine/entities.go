package engine

import (
	"github.com/google/uuid"
	"github.com/lazypower/decayregion/internal/region"
	"github.com/lazypower/decayregion/internal/world"
)

// HandleEntityPlace decides whether a placed vehicle or crystal may stay.
// Kinds denied by configuration are refused inside regions; allowed ones
// are recorded and removed, item dropped, after the region's decay
// duration. Other kinds are not tracked.
func (e *Engine) HandleEntityPlace(ent world.Entity) bool {
	boat := ent.Kind.IsBoat()
	cart := ent.Kind == world.KindMinecart
	crystal := ent.Kind == world.KindEndCrystal
	if !boat && !cart && !crystal {
		return true
	}
	r, ok := e.Regions.At(ent.Location)
	if !ok {
		return true
	}
	deny := e.cfg.DenyPlace
	if (boat && deny.Boats) || (cart && deny.Minecarts) || (crystal && deny.EndCrystals) {
		return false
	}
	e.ScheduleEntityDecay(r, ent.ID)
	return true
}

// ScheduleEntityDecay records an object and removes it once the region's
// decay duration has passed, provided it still exists inside the same
// region. Its ledger row is dropped either way.
func (e *Engine) ScheduleEntityDecay(r *region.Region, id uuid.UUID) {
	if err := e.Ledger.RecordEntity(r.Key(), id); err != nil {
		e.ledgerError("record entity", err)
	}
	if prev, ok := e.entities[id]; ok {
		e.clock.Cancel(prev)
	}
	e.entities[id] = e.clock.After(e.ticks(r.DecaySeconds), func() {
		delete(e.entities, id)
		defer func() {
			if err := e.Ledger.RemoveEntity(id); err != nil {
				e.ledgerError("remove entity", err)
			}
		}()

		cur, ok := e.World.Entity(id)
		if !ok || !cur.Valid {
			return
		}
		now, ok := e.Regions.At(cur.Location)
		if !ok || now.Key() != r.Key() {
			return
		}
		e.World.RemoveEntity(id, true)
		e.metrics.entityDecays.Inc()
	})
}

// EntityScheduled reports whether a removal is pending for id.
func (e *Engine) EntityScheduled(id uuid.UUID) bool {
	_, ok := e.entities[id]
	return ok
}
