package world

import (
	"testing"
)

func TestParseState(t *testing.T) {
	tests := []struct {
		in      string
		mat     Material
		props   map[string]string
		wantErr bool
	}{
		{in: "stone", mat: Stone},
		{in: "OAK_STAIRS[facing=east,half=top]", mat: "oak_stairs", props: map[string]string{"facing": "east", "half": "top"}},
		{in: "water[level=3]", mat: Water, props: map[string]string{"level": "3"}},
		{in: "chest[]", mat: "chest", props: map[string]string{}},
		{in: "", wantErr: true},
		{in: "[level=1]", wantErr: true},
		{in: "water[level=1", wantErr: true},
		{in: "water[level]", wantErr: true},
		{in: "oak=stairs", wantErr: true},
	}
	for _, tt := range tests {
		mat, props, err := ParseState(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseState(%q) = nil error, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseState(%q): %v", tt.in, err)
			continue
		}
		if mat != tt.mat {
			t.Errorf("ParseState(%q) material = %q, want %q", tt.in, mat, tt.mat)
		}
		for k, v := range tt.props {
			if props[k] != v {
				t.Errorf("ParseState(%q) %s = %q, want %q", tt.in, k, props[k], v)
			}
		}
	}
}

func TestFormatStateSortsKeys(t *testing.T) {
	got := FormatState("oak_stairs", map[string]string{"waterlogged": "true", "facing": "north"})
	want := "oak_stairs[facing=north,waterlogged=true]"
	if got != want {
		t.Errorf("FormatState = %q, want %q", got, want)
	}
}

func TestBlockProps(t *testing.T) {
	b := Block{Material: "oak_slab", State: "oak_slab[type=bottom,waterlogged=true]"}
	if !b.Waterlogged() {
		t.Error("Waterlogged = false, want true")
	}
	if Of(Stone).Waterlogged() {
		t.Error("plain stone reported waterlogged")
	}
	if lvl := FlowingFluid(FluidWater, 4).Level(); lvl != 4 {
		t.Errorf("Level = %d, want 4", lvl)
	}
	if lvl := FluidSource(FluidLava).Level(); lvl != 0 {
		t.Errorf("source Level = %d, want 0", lvl)
	}
}

func TestNeighbors(t *testing.T) {
	p := Pos{X: 1, Y: 2, Z: 3}
	seen := make(map[Pos]bool)
	for _, n := range p.Neighbors() {
		d := abs(n.X-p.X) + abs(n.Y-p.Y) + abs(n.Z-p.Z)
		if d != 1 {
			t.Errorf("neighbor %v at distance %d", n, d)
		}
		seen[n] = true
	}
	if len(seen) != 6 {
		t.Errorf("distinct neighbors = %d, want 6", len(seen))
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func TestMemoryBlocks(t *testing.T) {
	m := NewMemory("overworld")
	loc := At("overworld", 0, 64, 0)

	b, ok := m.BlockAt(loc)
	if !ok || !b.IsAir() {
		t.Fatalf("BlockAt empty = %v,%v, want air,true", b, ok)
	}
	if _, ok := m.BlockAt(At("nether", 0, 0, 0)); ok {
		t.Error("BlockAt in unloaded world returned ok")
	}

	m.SetBlock(loc, Of("oak_planks"))
	if !m.BreakNaturally(loc) {
		t.Fatal("BreakNaturally = false")
	}
	if b, _ := m.BlockAt(loc); !b.IsAir() {
		t.Errorf("after break = %v, want air", b)
	}
	if len(m.Drops) != 1 || m.Drops[0].Item != "oak_planks" {
		t.Errorf("Drops = %v, want one oak_planks", m.Drops)
	}
}

func TestMemoryParseBlock(t *testing.T) {
	m := NewMemory("overworld")

	b, err := m.ParseBlock("oak_stairs[waterlogged=false,facing=west]")
	if err != nil {
		t.Fatalf("ParseBlock: %v", err)
	}
	if b.State != "oak_stairs[facing=west,waterlogged=false]" {
		t.Errorf("State = %q", b.State)
	}

	if _, err := m.ParseBlock("copper_bulb[lit=true]"); err == nil {
		t.Error("ParseBlock unknown material: want error")
	}
	if _, ok := m.MaterialByName("copper_bulb"); ok {
		t.Error("MaterialByName unknown: want false")
	}

	m.UnregisterMaterial("oak_stairs")
	if _, err := m.ParseBlock("oak_stairs"); err == nil {
		t.Error("ParseBlock after unregister: want error")
	}
}

func TestMemoryEntities(t *testing.T) {
	m := NewMemory("overworld")
	e := m.SpawnEntity(KindArmorStand, At("overworld", 1, 1, 1))

	if _, ok := m.Entity(e.ID); !ok {
		t.Fatal("Entity not found after spawn")
	}
	if !m.RemoveEntity(e.ID, true) {
		t.Fatal("RemoveEntity = false")
	}
	if m.RemoveEntity(e.ID, true) {
		t.Error("second RemoveEntity = true")
	}
	if len(m.Drops) != 1 || m.Drops[0].Item != string(KindArmorStand) {
		t.Errorf("Drops = %v", m.Drops)
	}
}
