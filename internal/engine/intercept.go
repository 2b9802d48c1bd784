package engine

import (
	"github.com/lazypower/decayregion/internal/world"
)

// HandleInteract grants actor a one-shot right to break a waterlogged block
// when they use an empty container on one inside a region.
func (e *Engine) HandleInteract(actor Actor, loc world.Location, holdingEmptyContainer bool) {
	if !holdingEmptyContainer {
		return
	}
	e.grantIfWaterlogged(actor, loc)
}

// HandleBucketFill grants the same right when actor scoops water out of a
// waterlogged block.
func (e *Engine) HandleBucketFill(actor Actor, loc world.Location) {
	e.grantIfWaterlogged(actor, loc)
}

func (e *Engine) grantIfWaterlogged(actor Actor, loc world.Location) {
	if actor.Operator || !e.Regions.InAny(loc) {
		return
	}
	b, ok := e.World.BlockAt(loc)
	if !ok || !b.Waterlogged() {
		return
	}
	e.tokens[actor.ID] = e.clock.Now()
}

// HasWaterToken reports whether actor holds an unexpired removal right.
func (e *Engine) HasWaterToken(actorID string) bool {
	granted, ok := e.tokens[actorID]
	if !ok {
		return false
	}
	ttl := e.cfg.Decay.WaterTokenTicks
	if ttl > 0 && e.clock.Now()-granted > ttl {
		delete(e.tokens, actorID)
		return false
	}
	return true
}

// HandleBlockBreak decides whether actor may break the block at loc.
// Inside a region only content with a running decay task, fluids and free
// decorative materials may be broken; a waterlogged block may also go once
// per granted right. Breaking a decaying block stops its decay and drops
// its ledger row.
func (e *Engine) HandleBlockBreak(actor Actor, loc world.Location) bool {
	r, ok := e.Regions.At(loc)
	if !ok || actor.Operator {
		return true
	}
	b, ok := e.World.BlockAt(loc)
	if !ok {
		return true
	}
	if b.Material.IsFluid() || e.free[b.Material] {
		return true
	}

	if e.CancelDecay(loc) {
		if err := e.Ledger.RemoveBlock(r.Key(), loc); err != nil {
			e.ledgerError("remove block", err)
		}
		return true
	}

	if !b.Waterlogged() {
		return false
	}
	if !e.HasWaterToken(actor.ID) {
		return false
	}
	delete(e.tokens, actor.ID)
	return true
}
