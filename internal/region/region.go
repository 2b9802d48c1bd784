// Package region defines decay regions: named axis-aligned boxes inside one
// world, each carrying its own decay duration.
package region

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lazypower/decayregion/internal/world"
)

var (
	ErrNotFound = errors.New("region not found")
	ErrExists   = errors.New("region already exists")
	ErrOverlap  = errors.New("region overlaps an existing region")
	ErrInvalid  = errors.New("invalid region")
)

// Region is an inclusive box [Min, Max] in World.
type Region struct {
	ID           string    `json:"id" yaml:"id"`
	World        string    `json:"world" yaml:"world"`
	Min          world.Pos `json:"min" yaml:"min"`
	Max          world.Pos `json:"max" yaml:"max"`
	DecaySeconds int       `json:"decay_seconds" yaml:"decay_seconds"`
}

// New builds a region from two arbitrary corners.
func New(id, worldName string, a, b world.Pos, decaySeconds int) *Region {
	return &Region{
		ID:    id,
		World: worldName,
		Min: world.Pos{
			X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z),
		},
		Max: world.Pos{
			X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z),
		},
		DecaySeconds: decaySeconds,
	}
}

// Key is the case-insensitive identity used by every persisted record.
func (r *Region) Key() string {
	return Key(r.ID)
}

// Key normalizes a region id.
func Key(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Contains reports whether loc lies inside the box, bounds inclusive.
func (r *Region) Contains(loc world.Location) bool {
	if !strings.EqualFold(loc.World, r.World) {
		return false
	}
	return loc.X >= r.Min.X && loc.X <= r.Max.X &&
		loc.Y >= r.Min.Y && loc.Y <= r.Max.Y &&
		loc.Z >= r.Min.Z && loc.Z <= r.Max.Z
}

// Volume is the number of cells in the box.
func (r *Region) Volume() int64 {
	return int64(r.Max.X-r.Min.X+1) *
		int64(r.Max.Y-r.Min.Y+1) *
		int64(r.Max.Z-r.Min.Z+1)
}

// Cells calls fn for every cell, x outermost then y then z. It stops early
// when fn returns false.
func (r *Region) Cells(fn func(world.Location) bool) {
	for x := r.Min.X; x <= r.Max.X; x++ {
		for y := r.Min.Y; y <= r.Max.Y; y++ {
			for z := r.Min.Z; z <= r.Max.Z; z++ {
				if !fn(world.At(r.World, x, y, z)) {
					return
				}
			}
		}
	}
}

// Overlaps reports whether two boxes in the same world share any cell.
func Overlaps(a, b *Region) bool {
	if !strings.EqualFold(a.World, b.World) {
		return false
	}
	return a.Min.X <= b.Max.X && a.Max.X >= b.Min.X &&
		a.Min.Y <= b.Max.Y && a.Max.Y >= b.Min.Y &&
		a.Min.Z <= b.Max.Z && a.Max.Z >= b.Min.Z
}

func (r *Region) validate() error {
	if Key(r.ID) == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalid)
	}
	if strings.ContainsAny(r.ID, " /;:") {
		return fmt.Errorf("%w: id contains a space or one of / ; :", ErrInvalid)
	}
	if r.World == "" {
		return fmt.Errorf("%w: world is empty", ErrInvalid)
	}
	if r.DecaySeconds < 1 {
		return fmt.Errorf("%w: decay seconds must be positive", ErrInvalid)
	}
	return nil
}
