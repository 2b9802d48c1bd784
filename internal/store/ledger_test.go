package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/lazypower/decayregion/internal/ledger"
	"github.com/lazypower/decayregion/internal/world"
)

func TestRecordBlockIdempotent(t *testing.T) {
	db := testDB(t)
	loc := world.At("overworld", 3, 70, -2)

	for i := 0; i < 3; i++ {
		if err := db.RecordBlock("arena", loc); err != nil {
			t.Fatalf("RecordBlock: %v", err)
		}
	}
	recs, err := db.Records("arena")
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(recs.Blocks) != 1 || recs.Blocks[0] != loc {
		t.Errorf("Blocks = %v, want [%v]", recs.Blocks, loc)
	}

	if err := db.RemoveBlock("arena", loc); err != nil {
		t.Fatalf("RemoveBlock: %v", err)
	}
	if err := db.RemoveBlock("arena", loc); err != nil {
		t.Fatalf("RemoveBlock missing: %v", err)
	}
	c, _ := db.Counts("arena")
	if c.Blocks != 0 {
		t.Errorf("Blocks after remove = %d, want 0", c.Blocks)
	}
}

func TestEntityBelongsToOneRegion(t *testing.T) {
	db := testDB(t)
	id := uuid.New()

	if err := db.RecordEntity("a", id); err != nil {
		t.Fatalf("RecordEntity: %v", err)
	}
	if err := db.RecordEntity("b", id); err != nil {
		t.Fatalf("RecordEntity: %v", err)
	}
	ca, _ := db.Counts("a")
	cb, _ := db.Counts("b")
	if ca.Entities != 0 || cb.Entities != 1 {
		t.Errorf("entities a=%d b=%d, want 0 and 1", ca.Entities, cb.Entities)
	}

	if err := db.RemoveEntity(id); err != nil {
		t.Fatalf("RemoveEntity: %v", err)
	}
	cb, _ = db.Counts("b")
	if cb.Entities != 0 {
		t.Errorf("entities after remove = %d, want 0", cb.Entities)
	}
}

func TestFluidSources(t *testing.T) {
	db := testDB(t)
	loc := world.At("overworld", 0, 64, 0)

	if err := db.RecordFluidSource("arena", loc, world.FluidWater); err != nil {
		t.Fatalf("RecordFluidSource: %v", err)
	}
	if err := db.RecordFluidSource("arena", loc, world.FluidLava); err != nil {
		t.Fatalf("RecordFluidSource: %v", err)
	}
	recs, _ := db.Records("arena")
	if len(recs.Fluids) != 2 {
		t.Fatalf("Fluids = %v, want water and lava at one cell", recs.Fluids)
	}

	if err := db.RemoveFluidSource("arena", loc, world.FluidWater); err != nil {
		t.Fatalf("RemoveFluidSource: %v", err)
	}
	recs, _ = db.Records("arena")
	if len(recs.Fluids) != 1 || recs.Fluids[0].Kind != world.FluidLava {
		t.Errorf("Fluids = %v, want only lava", recs.Fluids)
	}
}

func TestIsNearFluidSource(t *testing.T) {
	db := testDB(t)
	src := world.At("overworld", 10, 64, 10)
	if err := db.RecordFluidSource("arena", src, world.FluidWater); err != nil {
		t.Fatalf("RecordFluidSource: %v", err)
	}

	tests := []struct {
		name   string
		key    string
		loc    world.Location
		radius int
		want   bool
	}{
		{"same cell", "arena", src, 0, true},
		{"corner of cube", "arena", src.Offset(3, -3, 3), 3, true},
		{"just outside", "arena", src.Offset(4, 0, 0), 3, false},
		{"other region", "pit", src, 3, false},
		{"other world", "arena", world.At("nether", 10, 64, 10), 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.IsNearFluidSource(tt.key, tt.loc, tt.radius)
			if err != nil {
				t.Fatalf("IsNearFluidSource: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsNearFluidSource = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegionKeysAndDelete(t *testing.T) {
	db := testDB(t)
	db.RecordBlock("b", world.At("overworld", 0, 0, 0))
	db.RecordEntity("a", uuid.New())
	db.RecordFluidSource("c", world.At("overworld", 0, 0, 0), world.FluidWater)
	db.RecordBlock("a", world.At("overworld", 1, 0, 0))

	keys, err := db.RegionKeys()
	if err != nil {
		t.Fatalf("RegionKeys: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(keys) != len(want) {
		t.Fatalf("RegionKeys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("RegionKeys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}

	if err := db.DeleteRegion("a"); err != nil {
		t.Fatalf("DeleteRegion: %v", err)
	}
	if c, _ := db.Counts("a"); c.Total() != 0 {
		t.Errorf("Counts(a) after delete = %+v", c)
	}

	if err := db.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	keys, _ = db.RegionKeys()
	if len(keys) != 0 {
		t.Errorf("RegionKeys after DeleteAll = %v", keys)
	}
}

func TestRenameRegionMovesAllKinds(t *testing.T) {
	db := testDB(t)
	loc := world.At("overworld", 2, 2, 2)
	id := uuid.New()
	db.RecordBlock("old", loc)
	db.RecordEntity("old", id)
	db.RecordFluidSource("old", loc, world.FluidLava)

	if err := db.RenameRegion("old", "new"); err != nil {
		t.Fatalf("RenameRegion: %v", err)
	}

	if c, _ := db.Counts("old"); c.Total() != 0 {
		t.Errorf("old counts = %+v, want empty", c)
	}
	c, _ := db.Counts("new")
	if c != (ledger.Counts{Blocks: 1, Entities: 1, Fluids: 1}) {
		t.Errorf("new counts = %+v, want one of each", c)
	}
}

func TestImportLegacy(t *testing.T) {
	db := testDB(t)
	path := filepath.Join(t.TempDir(), "placed-data.yml")
	id := uuid.New()
	legacy := `regions:
  Arena:
    blocks:
      - "overworld;1;64;2"
      - "overworld;not;a;number"
    entities:
      - "` + id.String() + `"
      - "garbage"
    fluidSources:
      - "overworld;5;64;5;WATER"
      - "overworld;6;64;5;MILK"
`
	if err := os.WriteFile(path, []byte(legacy), 0644); err != nil {
		t.Fatal(err)
	}

	n, err := ledger.ImportLegacy(db, path)
	if err != nil {
		t.Fatalf("ImportLegacy: %v", err)
	}
	if n != 3 {
		t.Errorf("imported = %d, want 3", n)
	}
	c, _ := db.Counts("arena")
	if c != (ledger.Counts{Blocks: 1, Entities: 1, Fluids: 1}) {
		t.Errorf("counts = %+v, want one of each", c)
	}

	// A populated ledger is never overwritten.
	n, err = ledger.ImportLegacy(db, path)
	if err != nil {
		t.Fatalf("second ImportLegacy: %v", err)
	}
	if n != 0 {
		t.Errorf("second import = %d, want 0", n)
	}

	n, err = ledger.ImportLegacy(db, filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil || n != 0 {
		t.Errorf("missing file import = %d, %v; want 0, nil", n, err)
	}
}
