// Package ledger defines the durable record of player-introduced content
// inside decay regions. Every record is keyed by the owning region's
// lowercase key.
package ledger

import (
	"errors"

	"github.com/google/uuid"
	"github.com/lazypower/decayregion/internal/world"
)

// ErrUnavailable is returned when no backing store could be opened.
var ErrUnavailable = errors.New("ledger storage unavailable")

// FluidSource is a tracked fluid cell.
type FluidSource struct {
	Location world.Location  `json:"location"`
	Kind     world.FluidKind `json:"kind"`
}

// Records is everything tracked for one region.
type Records struct {
	Blocks   []world.Location `json:"blocks"`
	Entities []uuid.UUID      `json:"entities"`
	Fluids   []FluidSource    `json:"fluids"`
}

// Empty reports whether no records are held.
func (r Records) Empty() bool {
	return len(r.Blocks) == 0 && len(r.Entities) == 0 && len(r.Fluids) == 0
}

// Counts summarizes Records.
type Counts struct {
	Blocks   int `json:"blocks"`
	Entities int `json:"entities"`
	Fluids   int `json:"fluids"`
}

// Total is the number of records of every kind.
func (c Counts) Total() int {
	return c.Blocks + c.Entities + c.Fluids
}

// Ledger persists placements. Writes may be staged and only become durable
// on Flush; reads always observe staged writes.
type Ledger interface {
	RecordBlock(regionKey string, loc world.Location) error
	RemoveBlock(regionKey string, loc world.Location) error
	RecordEntity(regionKey string, id uuid.UUID) error
	RemoveEntity(id uuid.UUID) error
	RecordFluidSource(regionKey string, loc world.Location, kind world.FluidKind) error
	RemoveFluidSource(regionKey string, loc world.Location, kind world.FluidKind) error

	// IsNearFluidSource reports whether a tracked source of either kind
	// lies within the cube of the given radius around loc.
	IsNearFluidSource(regionKey string, loc world.Location, radius int) (bool, error)

	Records(regionKey string) (Records, error)
	Counts(regionKey string) (Counts, error)
	// RegionKeys lists every key holding at least one record of any kind.
	RegionKeys() ([]string, error)

	DeleteRegion(regionKey string) error
	DeleteAll() error
	// RenameRegion moves every record from oldKey to newKey atomically.
	RenameRegion(oldKey, newKey string) error

	Flush() error
	Close() error
}

// Disabled is the ledger used when storage could not be opened. Every call
// fails with ErrUnavailable.
type Disabled struct{}

var _ Ledger = Disabled{}

func (Disabled) RecordBlock(string, world.Location) error { return ErrUnavailable }
func (Disabled) RemoveBlock(string, world.Location) error { return ErrUnavailable }
func (Disabled) RecordEntity(string, uuid.UUID) error     { return ErrUnavailable }
func (Disabled) RemoveEntity(uuid.UUID) error             { return ErrUnavailable }
func (Disabled) RecordFluidSource(string, world.Location, world.FluidKind) error {
	return ErrUnavailable
}
func (Disabled) RemoveFluidSource(string, world.Location, world.FluidKind) error {
	return ErrUnavailable
}
func (Disabled) IsNearFluidSource(string, world.Location, int) (bool, error) {
	return false, ErrUnavailable
}
func (Disabled) Records(string) (Records, error) { return Records{}, ErrUnavailable }
func (Disabled) Counts(string) (Counts, error)   { return Counts{}, ErrUnavailable }
func (Disabled) RegionKeys() ([]string, error)   { return nil, ErrUnavailable }
func (Disabled) DeleteRegion(string) error       { return ErrUnavailable }
func (Disabled) DeleteAll() error                { return ErrUnavailable }
func (Disabled) RenameRegion(string, string) error {
	return ErrUnavailable
}
func (Disabled) Flush() error { return ErrUnavailable }
func (Disabled) Close() error { return nil }
