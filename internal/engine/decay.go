package engine

import (
	"github.com/lazypower/decayregion/internal/region"
	"github.com/lazypower/decayregion/internal/tick"
	"github.com/lazypower/decayregion/internal/world"
)

// Steps is the number of visual stages a block passes through before it
// is removed.
const Steps = 5

// maxFeedbackSource bounds the ids handed to DecayProgress.
const maxFeedbackSource = 1_000_000

type decayTask struct {
	id       tick.TaskID
	loc      world.Location
	region   *region.Region
	material world.Material
	step     int
	source   int
}

// Cancel reasons reported by the tasks-cancelled metric.
const (
	reasonChanged  = "content_changed"
	reasonLeft     = "left_region"
	reasonBroken   = "broken"
	reasonCleared  = "force_cleared"
	reasonReplaced = "replaced"
)

// HandleBlockPlace tracks a solid block placed by actor and starts its
// decay. Fluids placed as blocks go through HandleFluidPlace instead.
func (e *Engine) HandleBlockPlace(actor Actor, loc world.Location) bool {
	r, ok := e.Regions.At(loc)
	if !ok || actor.Operator {
		return false
	}
	b, ok := e.World.BlockAt(loc)
	if !ok || b.IsAir() || b.Material.IsFluid() {
		return false
	}
	if err := e.Ledger.RecordBlock(r.Key(), loc); err != nil {
		e.ledgerError("record block", err)
	}
	return e.ScheduleBlockDecay(r, loc)
}

// ScheduleBlockDecay starts the staged removal of whatever occupies loc.
// Any task already running at loc is cancelled and the countdown starts
// over from step 0.
func (e *Engine) ScheduleBlockDecay(r *region.Region, loc world.Location) bool {
	b, ok := e.World.BlockAt(loc)
	if !ok || b.IsAir() {
		return false
	}
	if t, ok := e.tasks[loc]; ok {
		// Restart without touching the fresh ledger row.
		e.stopTask(t, reasonReplaced)
	}

	interval := e.ticks(r.DecaySeconds) / Steps
	if interval < 1 {
		interval = 1
	}

	e.nextSource++
	if e.nextSource >= maxFeedbackSource {
		e.nextSource = 1
	}
	t := &decayTask{
		loc:      loc,
		region:   r,
		material: b.Material,
		source:   e.nextSource,
	}
	t.id = e.clock.Every(interval, interval, func() { e.stepDecay(t) })
	e.tasks[loc] = t

	e.metrics.tasksStarted.Inc()
	e.metrics.activeTasks.Set(float64(len(e.tasks)))
	return true
}

func (e *Engine) stepDecay(t *decayTask) {
	cur, ok := e.World.BlockAt(t.loc)
	if !ok || cur.Material != t.material {
		e.stopTask(t, reasonChanged)
		e.removeBlockRecord(t)
		return
	}
	if !e.Regions.InAny(t.loc) {
		e.stopTask(t, reasonLeft)
		e.removeBlockRecord(t)
		return
	}

	t.step++
	if t.step < Steps {
		e.World.DecayProgress(t.loc, t.source, float64(t.step)/Steps)
		return
	}

	e.clock.Cancel(t.id)
	delete(e.tasks, t.loc)
	e.World.DecayProgress(t.loc, t.source, 0)
	e.World.BreakNaturally(t.loc)
	e.removeBlockRecord(t)

	e.metrics.tasksCompleted.Inc()
	e.metrics.activeTasks.Set(float64(len(e.tasks)))
}

// stopTask cancels a task and clears its feedback without touching the ledger.
func (e *Engine) stopTask(t *decayTask, reason string) {
	e.clock.Cancel(t.id)
	if cur, ok := e.tasks[t.loc]; ok && cur == t {
		delete(e.tasks, t.loc)
	}
	e.World.DecayProgress(t.loc, t.source, 0)
	e.metrics.tasksCancelled.WithLabelValues(reason).Inc()
	e.metrics.activeTasks.Set(float64(len(e.tasks)))
}

// removeBlockRecord drops the task's ledger row from the region that now
// holds the cell, else the region it was tracked under.
func (e *Engine) removeBlockRecord(t *decayTask) {
	key := t.region.Key()
	if r, ok := e.Regions.At(t.loc); ok {
		key = r.Key()
	}
	if err := e.Ledger.RemoveBlock(key, t.loc); err != nil {
		e.ledgerError("remove block", err)
	}
}

// CancelDecay stops the task at loc, if any, and clears its feedback.
func (e *Engine) CancelDecay(loc world.Location) bool {
	t, ok := e.tasks[loc]
	if !ok {
		return false
	}
	e.stopTask(t, reasonBroken)
	return true
}

// DecayStep reports the current stage of the task at loc.
func (e *Engine) DecayStep(loc world.Location) (int, bool) {
	t, ok := e.tasks[loc]
	if !ok {
		return 0, false
	}
	return t.step, true
}

// ActiveTasks returns the number of running block decay tasks.
func (e *Engine) ActiveTasks() int {
	return len(e.tasks)
}

// HandleBlockForm tracks a block produced by a fluid reaction, such as
// obsidian, when it forms inside a region near a tracked fluid source.
func (e *Engine) HandleBlockForm(loc world.Location, formed world.Material) bool {
	if !e.formed[formed] {
		return false
	}
	r, ok := e.Regions.At(loc)
	if !ok {
		return false
	}
	if e.cfg.Decay.FormedOnlyFromTrackedFluids {
		near, err := e.Ledger.IsNearFluidSource(r.Key(), loc, e.cfg.Decay.FormedFluidRadius)
		if err != nil {
			e.ledgerError("near fluid source", err)
			return false
		}
		if !near {
			return false
		}
	}

	// The host sets the formed block after the event; look one tick later.
	e.clock.After(1, func() {
		b, ok := e.World.BlockAt(loc)
		if !ok || b.Material != formed {
			return
		}
		if err := e.Ledger.RecordBlock(r.Key(), loc); err != nil {
			e.ledgerError("record formed block", err)
		}
		e.ScheduleBlockDecay(r, loc)
	})
	return true
}
