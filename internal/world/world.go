// Package world describes the slice of a voxel world that decay regions
// operate on: coordinates, block contents, fluids and placed entities.
//
// The host game is reached only through the World interface. Memory is an
// in-process implementation used by the sandbox server and by tests.
package world

import (
	"fmt"

	"github.com/google/uuid"
)

// Pos is an integer block coordinate.
type Pos struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

// Add returns p offset by (dx, dy, dz).
func (p Pos) Add(dx, dy, dz int) Pos {
	return Pos{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

// Neighbors returns the six face-adjacent positions.
func (p Pos) Neighbors() [6]Pos {
	return [6]Pos{
		p.Add(1, 0, 0), p.Add(-1, 0, 0),
		p.Add(0, 1, 0), p.Add(0, -1, 0),
		p.Add(0, 0, 1), p.Add(0, 0, -1),
	}
}

// Location is a block coordinate inside a named world.
type Location struct {
	World string `json:"world"`
	Pos
}

// At builds a Location.
func At(world string, x, y, z int) Location {
	return Location{World: world, Pos: Pos{X: x, Y: y, Z: z}}
}

// Offset returns the location shifted by (dx, dy, dz) in the same world.
func (l Location) Offset(dx, dy, dz int) Location {
	return Location{World: l.World, Pos: l.Pos.Add(dx, dy, dz)}
}

func (l Location) String() string {
	return fmt.Sprintf("%s(%d,%d,%d)", l.World, l.X, l.Y, l.Z)
}

// EntityKind names a placeable object type.
type EntityKind string

const (
	KindBoat       EntityKind = "boat"
	KindChestBoat  EntityKind = "chest_boat"
	KindMinecart   EntityKind = "minecart"
	KindEndCrystal EntityKind = "end_crystal"
	KindArmorStand EntityKind = "armor_stand"
)

// IsBoat reports whether k is any boat variant.
func (k EntityKind) IsBoat() bool {
	return k == KindBoat || k == KindChestBoat
}

// Entity is a placed non-block object.
type Entity struct {
	ID       uuid.UUID
	Kind     EntityKind
	Location Location
	Valid    bool
}

// World is the host surface the decay engine drives. Implementations are
// called only from the tick goroutine.
type World interface {
	// HasWorld reports whether the named world is loaded.
	HasWorld(name string) bool
	// BlockAt returns the content at loc; ok is false when the world is not loaded.
	BlockAt(loc Location) (b Block, ok bool)
	// SetBlock replaces content without physics updates and without drops.
	SetBlock(loc Location, b Block) bool
	// BreakNaturally removes content the way a player would, producing drops.
	BreakNaturally(loc Location) bool
	// ParseBlock resolves a full state encoding. It fails for unknown or
	// outdated encodings.
	ParseBlock(encoding string) (Block, error)
	// MaterialByName resolves a material name in its default state.
	MaterialByName(name string) (Material, bool)
	// Entity looks up a live object by id.
	Entity(id uuid.UUID) (Entity, bool)
	// RemoveEntity removes an object, ejecting passengers and optionally
	// dropping its item form.
	RemoveEntity(id uuid.UUID, drop bool) bool
	// DecayProgress shows partial-destruction feedback; progress 0 clears it.
	DecayProgress(loc Location, source int, progress float64)
}
