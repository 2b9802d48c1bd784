package engine

import (
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/lazypower/decayregion/internal/config"
	"github.com/lazypower/decayregion/internal/ledger"
	"github.com/lazypower/decayregion/internal/region"
	"github.com/lazypower/decayregion/internal/snapshot"
	"github.com/lazypower/decayregion/internal/tick"
	"github.com/lazypower/decayregion/internal/world"
)

// Actor is whoever triggered a world event. Operators bypass tracking and
// interception entirely.
type Actor struct {
	ID       string
	Operator bool
}

// Deps are the collaborators an Engine drives.
type Deps struct {
	Regions   *region.Registry
	Ledger    ledger.Ledger
	Snapshots *snapshot.Service
	World     world.World
	Clock     tick.Scheduler
	Metrics   *Metrics
}

// Engine tracks player-introduced content inside decay regions and reverts
// it on a timer. All methods must be called from the tick goroutine.
type Engine struct {
	Regions   *region.Registry
	Ledger    ledger.Ledger
	Snapshots *snapshot.Service
	World     world.World

	clock   tick.Scheduler
	cfg     config.Config
	metrics *Metrics

	tasks      map[world.Location]*decayTask
	nextSource int
	fluids     map[world.Location]tick.TaskID
	entities   map[uuid.UUID]tick.TaskID
	tokens     map[string]int64

	formed   map[world.Material]bool
	blockers map[world.Material]bool
	free     map[world.Material]bool

	flushID tick.TaskID
}

// New creates an Engine. A nil Ledger is replaced by ledger.Disabled.
func New(d Deps, cfg config.Config) *Engine {
	if d.Ledger == nil {
		d.Ledger = ledger.Disabled{}
	}
	if d.Metrics == nil {
		d.Metrics = NewMetrics(nil)
	}
	if d.Snapshots == nil {
		d.Snapshots = snapshot.New(nil, d.World, snapshot.Options{})
	}
	return &Engine{
		Regions:   d.Regions,
		Ledger:    d.Ledger,
		Snapshots: d.Snapshots,
		World:     d.World,
		clock:     d.Clock,
		cfg:       cfg,
		metrics:   d.Metrics,
		tasks:     make(map[world.Location]*decayTask),
		fluids:    make(map[world.Location]tick.TaskID),
		entities:  make(map[uuid.UUID]tick.TaskID),
		tokens:    make(map[string]int64),
		formed:    materialSet(cfg.Decay.FormedMaterials),
		blockers:  materialSet(cfg.Decay.FlowBlockers),
		free:      materialSet(cfg.Decay.FreeBreakMaterials),
	}
}

func materialSet(names []string) map[world.Material]bool {
	set := make(map[world.Material]bool, len(names))
	for _, n := range names {
		if m, _, err := world.ParseState(n); err == nil {
			set[m] = true
		}
	}
	return set
}

// Start schedules the periodic ledger flush.
func (e *Engine) Start() {
	period := e.ticks(e.cfg.Ledger.FlushSeconds)
	e.flushID = e.clock.Every(period, period, e.flush)
}

// Stop cancels every pending timer and flushes the ledger. Cancelled decays
// are not reverted; their records survive for the next startup.
func (e *Engine) Stop() {
	if e.flushID != 0 {
		e.clock.Cancel(e.flushID)
		e.flushID = 0
	}
	for loc, t := range e.tasks {
		e.clock.Cancel(t.id)
		delete(e.tasks, loc)
	}
	for loc, id := range e.fluids {
		e.clock.Cancel(id)
		delete(e.fluids, loc)
	}
	for obj, id := range e.entities {
		e.clock.Cancel(id)
		delete(e.entities, obj)
	}
	e.metrics.activeTasks.Set(0)
	e.flush()
}

// ticks converts seconds to ticks at the configured loop rate.
func (e *Engine) ticks(seconds int) int64 {
	return tick.Seconds(seconds, e.cfg.Tick.RateHz)
}

func (e *Engine) flush() {
	err := e.Ledger.Flush()
	if err != nil && !errors.Is(err, ledger.ErrUnavailable) {
		e.ledgerError("flush", err)
	}
}

// ledgerError logs a storage failure. The world-facing action that caused
// it always goes ahead.
func (e *Engine) ledgerError(op string, err error) {
	e.metrics.ledgerErrors.Inc()
	log.Printf("ledger: %s: %v", op, err)
}

// RegionAt returns the region containing loc.
func (e *Engine) RegionAt(loc world.Location) (*region.Region, bool) {
	return e.Regions.At(loc)
}

// Overlaps reports whether candidate would overlap an existing region.
func (e *Engine) Overlaps(candidate *region.Region) bool {
	return e.Regions.Overlaps(candidate)
}
