// Package snapshot captures the full block content of a region and writes
// it back on demand. Rows are persisted through a RowStore.
package snapshot

import (
	"errors"
	"fmt"
	"log"

	"github.com/lazypower/decayregion/internal/region"
	"github.com/lazypower/decayregion/internal/world"
)

// Row is one captured cell.
type Row struct {
	World    string `json:"world"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Z        int    `json:"z"`
	Material string `json:"material"`
	State    string `json:"state"`
}

// Location returns the cell the row was captured from.
func (r Row) Location() world.Location {
	return world.At(r.World, r.X, r.Y, r.Z)
}

// RowStore persists snapshot rows per region key.
type RowStore interface {
	// ReplaceSnapshot atomically swaps every row of regionKey for rows.
	ReplaceSnapshot(regionKey string, rows []Row) error
	SnapshotRows(regionKey string) ([]Row, error)
	SnapshotCount(regionKey string) (int, error)
	DeleteSnapshot(regionKey string) error
	RenameSnapshot(oldKey, newKey string) error
}

// Options bounds capture.
type Options struct {
	MaxVolume  int64
	NonAirOnly bool
}

// RestoreResult counts restored cells per fallback tier.
type RestoreResult struct {
	Exact    int `json:"exact"`
	Material int `json:"material"`
	Air      int `json:"air"`
}

// Total is the number of cells written.
func (r RestoreResult) Total() int {
	return r.Exact + r.Material + r.Air
}

// Service captures and restores region content.
type Service struct {
	rows  RowStore
	world world.World
	opts  Options
}

// New creates a Service. A nil RowStore puts the service in degraded mode
// where every operation logs and reports failure.
func New(rows RowStore, w world.World, opts Options) *Service {
	return &Service{rows: rows, world: w, opts: opts}
}

// ErrTooLarge is returned when a region exceeds the volume ceiling.
var ErrTooLarge = errors.New("region exceeds snapshot volume limit")

// ErrUnavailable is returned in degraded mode.
var ErrUnavailable = errors.New("snapshot storage unavailable")

// Capture reads every cell of r and replaces its stored snapshot. It returns
// the number of rows written. Oversized regions and unloaded worlds are
// refused without touching the previous snapshot.
func (s *Service) Capture(r *region.Region) (int, error) {
	if s.rows == nil {
		return 0, ErrUnavailable
	}
	if s.opts.MaxVolume > 0 && r.Volume() > s.opts.MaxVolume {
		log.Printf("snapshot: region %s volume %d exceeds limit %d, not saved", r.ID, r.Volume(), s.opts.MaxVolume)
		return 0, fmt.Errorf("capture %s: %w", r.ID, ErrTooLarge)
	}
	if !s.world.HasWorld(r.World) {
		return 0, fmt.Errorf("capture %s: world %q not loaded", r.ID, r.World)
	}

	var rows []Row
	r.Cells(func(loc world.Location) bool {
		b, ok := s.world.BlockAt(loc)
		if !ok {
			return true
		}
		if s.opts.NonAirOnly && b.IsAir() {
			return true
		}
		mat := b.Material
		if mat == "" {
			mat = world.Air
		}
		rows = append(rows, Row{
			World: loc.World, X: loc.X, Y: loc.Y, Z: loc.Z,
			Material: string(mat),
			State:    b.Encoding(),
		})
		return true
	})

	if err := s.rows.ReplaceSnapshot(r.Key(), rows); err != nil {
		return 0, fmt.Errorf("capture %s: %w", r.ID, err)
	}
	return len(rows), nil
}

// Restore writes every stored row back into the world. Each row resolves to
// its exact recorded state, else the default state of its material, else air.
func (s *Service) Restore(r *region.Region) (RestoreResult, error) {
	var res RestoreResult
	if s.rows == nil {
		return res, ErrUnavailable
	}
	rows, err := s.rows.SnapshotRows(r.Key())
	if err != nil {
		return res, fmt.Errorf("restore %s: %w", r.ID, err)
	}
	for _, row := range rows {
		loc := row.Location()
		if !s.world.HasWorld(loc.World) {
			continue
		}
		b, tier := s.resolve(row)
		if !s.world.SetBlock(loc, b) {
			continue
		}
		switch tier {
		case tierExact:
			res.Exact++
		case tierMaterial:
			res.Material++
		default:
			res.Air++
		}
	}
	return res, nil
}

type tier int

const (
	tierExact tier = iota
	tierMaterial
	tierAir
)

func (s *Service) resolve(row Row) (world.Block, tier) {
	if row.State != "" {
		if b, err := s.world.ParseBlock(row.State); err == nil {
			return b, tierExact
		}
	}
	if m, ok := s.world.MaterialByName(row.Material); ok {
		return world.Of(m), tierMaterial
	}
	return world.AirBlock, tierAir
}

// Delete drops a region's snapshot.
func (s *Service) Delete(regionKey string) error {
	if s.rows == nil {
		return ErrUnavailable
	}
	return s.rows.DeleteSnapshot(regionKey)
}

// Rename re-keys a region's snapshot.
func (s *Service) Rename(oldKey, newKey string) error {
	if s.rows == nil {
		return ErrUnavailable
	}
	return s.rows.RenameSnapshot(oldKey, newKey)
}

// Rows returns a region's stored rows.
func (s *Service) Rows(regionKey string) ([]Row, error) {
	if s.rows == nil {
		return nil, ErrUnavailable
	}
	return s.rows.SnapshotRows(regionKey)
}

// Count returns how many rows a region's snapshot holds.
func (s *Service) Count(regionKey string) (int, error) {
	if s.rows == nil {
		return 0, ErrUnavailable
	}
	return s.rows.SnapshotCount(regionKey)
}

// Replace stores rows for a region as-is, as when importing an archive.
func (s *Service) Replace(regionKey string, rows []Row) error {
	if s.rows == nil {
		return ErrUnavailable
	}
	return s.rows.ReplaceSnapshot(regionKey, rows)
}
