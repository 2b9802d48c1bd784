package engine

import (
	"testing"

	"github.com/lazypower/decayregion/internal/config"
	"github.com/lazypower/decayregion/internal/ledger"
	"github.com/lazypower/decayregion/internal/region"
	"github.com/lazypower/decayregion/internal/snapshot"
	"github.com/lazypower/decayregion/internal/store"
	"github.com/lazypower/decayregion/internal/tick"
	"github.com/lazypower/decayregion/internal/world"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ow = "overworld"

var player = Actor{ID: "steve"}

type fixture struct {
	eng   *Engine
	loop  *tick.Loop
	world *world.Memory
	db    *store.DB
}

// newFixture builds an engine over an in-memory store with region "A"
// spanning (0,0,0)-(10,10,10) and a 10 second decay.
func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := config.Default()
	for _, fn := range mutate {
		fn(&cfg)
	}

	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	w := world.NewMemory(ow)
	loop := tick.NewLoop()
	eng := New(Deps{
		Regions:   region.NewRegistry(),
		Ledger:    db,
		Snapshots: snapshot.New(db, w, snapshot.Options{MaxVolume: cfg.Snapshot.MaxVolume}),
		World:     w,
		Clock:     loop,
	}, cfg)

	_, err = eng.CreateRegion("A", ow, world.Pos{}, world.Pos{X: 10, Y: 10, Z: 10}, 10)
	require.NoError(t, err)
	return &fixture{eng: eng, loop: loop, world: w, db: db}
}

func (f *fixture) place(t *testing.T, loc world.Location, m world.Material) {
	t.Helper()
	require.True(t, f.world.SetBlock(loc, world.Of(m)))
	require.True(t, f.eng.HandleBlockPlace(player, loc), "place %s at %s", m, loc)
}

func (f *fixture) material(loc world.Location) world.Material {
	b, _ := f.world.BlockAt(loc)
	if b.IsAir() {
		return world.Air
	}
	return b.Material
}

func (f *fixture) counts(t *testing.T, key string) ledger.Counts {
	t.Helper()
	c, err := f.db.Counts(key)
	require.NoError(t, err)
	return c
}

func mustRegion(t *testing.T, f *fixture, id string) *region.Region {
	t.Helper()
	r, ok := f.eng.Regions.Get(id)
	require.True(t, ok, "region %s", id)
	return r
}

func TestBlockDecaysAfterDuration(t *testing.T) {
	f := newFixture(t)
	loc := world.At(ow, 5, 5, 5)
	f.place(t, loc, world.Stone)

	assert.Equal(t, 1, f.counts(t, "a").Blocks)
	assert.Equal(t, 1, f.eng.ActiveTasks())

	f.loop.Advance(199)
	assert.Equal(t, world.Stone, f.material(loc))
	step, ok := f.eng.DecayStep(loc)
	require.True(t, ok)
	assert.Equal(t, 4, step)
	assert.InDelta(t, 0.8, f.world.Progress(loc), 1e-9)

	f.loop.Advance(1)
	assert.Equal(t, world.Air, f.material(loc))
	assert.Zero(t, f.counts(t, "a").Blocks)
	assert.Zero(t, f.eng.ActiveTasks())
	assert.Zero(t, f.world.Progress(loc))
	require.Len(t, f.world.Drops, 1)
	assert.Equal(t, "stone", f.world.Drops[0].Item)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.eng.metrics.tasksCompleted))
}

func TestDecayProgressPerStep(t *testing.T) {
	f := newFixture(t)
	loc := world.At(ow, 1, 1, 1)
	f.place(t, loc, "glass")

	for i := 1; i < Steps; i++ {
		f.loop.Advance(40)
		assert.InDelta(t, float64(i)/Steps, f.world.Progress(loc), 1e-9, "step %d", i)
	}
}

func TestShortDecayUsesOneTickInterval(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.SetDecaySeconds("A", 1)
	require.NoError(t, err)

	loc := world.At(ow, 1, 1, 1)
	f.place(t, loc, world.Stone)
	f.loop.Advance(20)
	assert.Equal(t, world.Air, f.material(loc))
}

func TestDecayFollowsTickRate(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Tick.RateHz = 10 })
	loc := world.At(ow, 1, 1, 1)
	f.place(t, loc, world.Stone)

	f.loop.Advance(99)
	assert.Equal(t, world.Stone, f.material(loc))
	f.loop.Advance(1)
	assert.Equal(t, world.Air, f.material(loc))
}

func TestOperatorsAreNotTracked(t *testing.T) {
	f := newFixture(t)
	loc := world.At(ow, 5, 5, 5)
	f.world.SetBlock(loc, world.Of(world.Stone))

	assert.False(t, f.eng.HandleBlockPlace(Actor{ID: "admin", Operator: true}, loc))
	assert.Zero(t, f.eng.ActiveTasks())
	assert.Zero(t, f.counts(t, "a").Total())
	assert.True(t, f.eng.HandleBlockBreak(Actor{ID: "admin", Operator: true}, loc))
}

func TestPlacementOutsideRegionIgnored(t *testing.T) {
	f := newFixture(t)
	loc := world.At(ow, 20, 5, 5)
	f.world.SetBlock(loc, world.Of(world.Stone))

	assert.False(t, f.eng.HandleBlockPlace(player, loc))
	assert.True(t, f.eng.HandleBlockBreak(player, loc))
}

func TestFluidBlockPlacementNotDecayed(t *testing.T) {
	f := newFixture(t)
	loc := world.At(ow, 5, 5, 5)
	f.world.SetBlock(loc, world.FluidSource(world.FluidWater))
	assert.False(t, f.eng.HandleBlockPlace(player, loc))
}

func TestOneTaskPerCell(t *testing.T) {
	f := newFixture(t)
	loc := world.At(ow, 3, 3, 3)
	f.place(t, loc, world.Stone)

	r := mustRegion(t, f, "A")
	f.loop.Advance(50)
	assert.True(t, f.eng.ScheduleBlockDecay(r, loc), "same content reschedules")
	assert.Equal(t, 1, f.eng.ActiveTasks())
	step, _ := f.eng.DecayStep(loc)
	assert.Zero(t, step)

	f.loop.Advance(100)
	f.place(t, loc, "glass")
	assert.Equal(t, 1, f.eng.ActiveTasks())
	step, _ = f.eng.DecayStep(loc)
	assert.Zero(t, step, "replacement restarts the task")

	f.loop.Advance(199)
	assert.Equal(t, world.Material("glass"), f.material(loc))
	f.loop.Advance(1)
	assert.Equal(t, world.Air, f.material(loc))
	assert.Zero(t, f.eng.ActiveTasks())
}

func TestReplaceSameMaterialRestartsDecay(t *testing.T) {
	f := newFixture(t)
	loc := world.At(ow, 5, 5, 5)
	f.place(t, loc, world.Stone)

	f.loop.Advance(120)
	step, _ := f.eng.DecayStep(loc)
	require.Equal(t, 3, step)

	f.world.SetBlock(loc, world.AirBlock)
	f.place(t, loc, world.Stone)
	step, ok := f.eng.DecayStep(loc)
	require.True(t, ok)
	assert.Zero(t, step)
	assert.Zero(t, f.world.Progress(loc))
	assert.Equal(t, 1, f.counts(t, "a").Blocks)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.eng.metrics.tasksCancelled.WithLabelValues(reasonReplaced)))

	f.loop.Advance(199)
	assert.Equal(t, world.Stone, f.material(loc), "decayed before the full duration")
	f.loop.Advance(1)
	assert.Equal(t, world.Air, f.material(loc))
}

func TestDecayStopsWhenContentChanges(t *testing.T) {
	f := newFixture(t)
	loc := world.At(ow, 5, 5, 5)
	f.place(t, loc, world.Stone)

	f.world.SetBlock(loc, world.Of("glass"))
	f.loop.Advance(40)

	assert.Equal(t, world.Material("glass"), f.material(loc))
	assert.Zero(t, f.eng.ActiveTasks())
	assert.Zero(t, f.counts(t, "a").Blocks)
	assert.Zero(t, f.world.Progress(loc))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.eng.metrics.tasksCancelled.WithLabelValues(reasonChanged)))
}

func TestDecayStopsWhenRegionGone(t *testing.T) {
	f := newFixture(t)
	loc := world.At(ow, 5, 5, 5)
	f.place(t, loc, world.Stone)

	_, err := f.eng.Regions.Remove("A")
	require.NoError(t, err)
	f.loop.Advance(40)

	assert.Equal(t, world.Stone, f.material(loc))
	assert.Zero(t, f.eng.ActiveTasks())
	assert.Zero(t, f.counts(t, "a").Blocks)
}

func TestFeedbackSourceWraps(t *testing.T) {
	f := newFixture(t)
	f.eng.nextSource = maxFeedbackSource
	loc := world.At(ow, 2, 2, 2)
	f.place(t, loc, world.Stone)
	assert.Equal(t, 1, f.eng.tasks[loc].source)
}

func TestStopCancelsTimers(t *testing.T) {
	f := newFixture(t)
	f.eng.Start()
	f.place(t, world.At(ow, 1, 1, 1), world.Stone)
	require.True(t, f.eng.ScheduleFluidRemoval(mustRegion(t, f, "A"), world.At(ow, 2, 0, 2), world.FluidWater))

	f.eng.Stop()
	assert.Zero(t, f.eng.ActiveTasks())
	assert.Zero(t, f.loop.Pending())
	assert.Equal(t, 1, f.counts(t, "a").Blocks, "records survive for the next startup")
}

func TestDegradedModeStillDecays(t *testing.T) {
	cfg := config.Default()
	w := world.NewMemory(ow)
	loop := tick.NewLoop()
	eng := New(Deps{Regions: region.NewRegistry(), World: w, Clock: loop}, cfg)

	_, err := eng.CreateRegion("A", ow, world.Pos{}, world.Pos{X: 4, Y: 4, Z: 4}, 1)
	require.NoError(t, err, "a refused snapshot does not fail creation")
	assert.Equal(t, 1.0, testutil.ToFloat64(eng.metrics.snapshotRefusals))

	loc := world.At(ow, 1, 1, 1)
	w.SetBlock(loc, world.Of(world.Stone))
	assert.True(t, eng.HandleBlockPlace(player, loc))
	loop.Advance(20)

	b, _ := w.BlockAt(loc)
	assert.True(t, b.IsAir())
	assert.Greater(t, testutil.ToFloat64(eng.metrics.ledgerErrors), 0.0)

	_, err = eng.SnapshotRegion("A")
	assert.ErrorIs(t, err, snapshot.ErrUnavailable)
	assert.NotPanics(t, eng.Reconcile)
}
