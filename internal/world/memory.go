package world

import (
	"fmt"

	"github.com/google/uuid"
)

// DefaultMaterials is the material registry a fresh Memory world knows.
var DefaultMaterials = []Material{
	Air, Water, Lava, Stone, Cobblestone, Obsidian, Azalea,
	"dirt", "grass_block", "sand", "gravel", "glass", "torch",
	"oak_planks", "oak_log", "oak_stairs", "oak_slab", "oak_fence",
	"stone_bricks", "bricks", "tnt", "ladder", "chest",
}

// Drop records an item produced by a natural break or entity removal.
type Drop struct {
	Location Location
	Item     string
}

// Memory is an in-process World. It is not safe for concurrent use; the
// tick loop serializes access.
type Memory struct {
	materials map[Material]bool
	worlds    map[string]map[Pos]Block
	entities  map[uuid.UUID]*Entity
	progress  map[Location]float64

	// Drops lists every item produced so far, in order.
	Drops []Drop
}

var _ World = (*Memory)(nil)

// NewMemory creates a world set with the given loaded worlds.
func NewMemory(worlds ...string) *Memory {
	m := &Memory{
		materials: make(map[Material]bool),
		worlds:    make(map[string]map[Pos]Block),
		entities:  make(map[uuid.UUID]*Entity),
		progress:  make(map[Location]float64),
	}
	for _, mat := range DefaultMaterials {
		m.materials[mat] = true
	}
	for _, w := range worlds {
		m.AddWorld(w)
	}
	return m
}

// AddWorld loads an empty world.
func (m *Memory) AddWorld(name string) {
	if _, ok := m.worlds[name]; !ok {
		m.worlds[name] = make(map[Pos]Block)
	}
}

// RegisterMaterial makes a material name resolvable.
func (m *Memory) RegisterMaterial(mat Material) {
	m.materials[mat] = true
}

// UnregisterMaterial forgets a material, as after a host version change.
func (m *Memory) UnregisterMaterial(mat Material) {
	delete(m.materials, mat)
}

func (m *Memory) HasWorld(name string) bool {
	_, ok := m.worlds[name]
	return ok
}

func (m *Memory) BlockAt(loc Location) (Block, bool) {
	cells, ok := m.worlds[loc.World]
	if !ok {
		return Block{}, false
	}
	b, ok := cells[loc.Pos]
	if !ok {
		return AirBlock, true
	}
	return b, true
}

func (m *Memory) SetBlock(loc Location, b Block) bool {
	cells, ok := m.worlds[loc.World]
	if !ok {
		return false
	}
	if b.IsAir() {
		delete(cells, loc.Pos)
		return true
	}
	cells[loc.Pos] = b
	return true
}

func (m *Memory) BreakNaturally(loc Location) bool {
	b, ok := m.BlockAt(loc)
	if !ok {
		return false
	}
	if !b.IsAir() && !b.Material.IsFluid() {
		m.Drops = append(m.Drops, Drop{Location: loc, Item: string(b.Material)})
	}
	return m.SetBlock(loc, AirBlock)
}

func (m *Memory) ParseBlock(encoding string) (Block, error) {
	mat, props, err := ParseState(encoding)
	if err != nil {
		return Block{}, err
	}
	if !m.materials[mat] {
		return Block{}, fmt.Errorf("unknown material %q", mat)
	}
	if len(props) == 0 {
		return Of(mat), nil
	}
	return Block{Material: mat, State: FormatState(mat, props)}, nil
}

func (m *Memory) MaterialByName(name string) (Material, bool) {
	mat, _, err := ParseState(name)
	if err != nil || !m.materials[mat] {
		return "", false
	}
	return mat, true
}

// SpawnEntity places an object and returns it.
func (m *Memory) SpawnEntity(kind EntityKind, loc Location) Entity {
	e := &Entity{ID: uuid.New(), Kind: kind, Location: loc, Valid: true}
	m.entities[e.ID] = e
	return *e
}

// MoveEntity relocates a live object.
func (m *Memory) MoveEntity(id uuid.UUID, loc Location) bool {
	e, ok := m.entities[id]
	if !ok {
		return false
	}
	e.Location = loc
	return true
}

func (m *Memory) Entity(id uuid.UUID) (Entity, bool) {
	e, ok := m.entities[id]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

func (m *Memory) RemoveEntity(id uuid.UUID, drop bool) bool {
	e, ok := m.entities[id]
	if !ok {
		return false
	}
	delete(m.entities, id)
	if drop {
		m.Drops = append(m.Drops, Drop{Location: e.Location, Item: string(e.Kind)})
	}
	return true
}

// EntityCount returns the number of live objects.
func (m *Memory) EntityCount() int {
	return len(m.entities)
}

func (m *Memory) DecayProgress(loc Location, source int, progress float64) {
	if progress <= 0 {
		delete(m.progress, loc)
		return
	}
	m.progress[loc] = progress
}

// Progress returns the feedback currently shown at loc.
func (m *Memory) Progress(loc Location) float64 {
	return m.progress[loc]
}
