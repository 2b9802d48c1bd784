package engine

import (
	"errors"
	"fmt"
	"log"

	"github.com/lazypower/decayregion/internal/ledger"
	"github.com/lazypower/decayregion/internal/region"
	"github.com/lazypower/decayregion/internal/snapshot"
	"github.com/lazypower/decayregion/internal/world"
)

// RegionInfo is a region with its tracked content summarized.
type RegionInfo struct {
	Region       region.Region `json:"region"`
	Ledger       ledger.Counts `json:"ledger"`
	SnapshotRows int           `json:"snapshot_rows"`
	ActiveTasks  int           `json:"active_tasks"`
}

// CreateRegion defines a new region and captures its initial snapshot. A
// decaySeconds of zero uses the configured default. A refused snapshot does
// not fail the creation.
func (e *Engine) CreateRegion(id, worldName string, a, b world.Pos, decaySeconds int) (*region.Region, error) {
	if decaySeconds == 0 {
		decaySeconds = e.cfg.Decay.DefaultSeconds
	}
	r, err := e.Regions.Create(region.New(id, worldName, a, b, decaySeconds))
	if err != nil {
		return nil, err
	}
	if _, err := e.Snapshots.Capture(r); err != nil {
		e.snapshotError(r, err)
	}
	return r, nil
}

// RemoveRegion force-clears a region, deletes it and drops its snapshot.
func (e *Engine) RemoveRegion(id string) (*region.Region, error) {
	r, ok := e.Regions.Get(id)
	if !ok {
		return nil, fmt.Errorf("remove %q: %w", id, region.ErrNotFound)
	}
	e.ForceClearRegion(r.Key())
	if _, err := e.Regions.Remove(id); err != nil {
		return nil, err
	}
	if err := e.Snapshots.Delete(r.Key()); err != nil {
		log.Printf("snapshot: delete %s: %v", r.Key(), err)
	}
	return r, nil
}

// RenameRegion renames a region and moves its ledger and snapshot rows to
// the new key. The region keeps its new id even when moving rows fails; the
// failure is reported.
func (e *Engine) RenameRegion(oldID, newID string) (*region.Region, error) {
	oldKey := region.Key(oldID)
	r, err := e.Regions.Rename(oldID, newID)
	if err != nil {
		return nil, err
	}
	newKey := r.Key()
	if newKey == oldKey {
		return r, nil
	}

	var errs []error
	if err := e.Ledger.RenameRegion(oldKey, newKey); err != nil {
		if errors.Is(err, ledger.ErrUnavailable) {
			e.ledgerError("rename region", err)
		} else {
			errs = append(errs, fmt.Errorf("move ledger rows: %w", err))
		}
	}
	if err := e.Snapshots.Rename(oldKey, newKey); err != nil {
		if errors.Is(err, snapshot.ErrUnavailable) {
			log.Printf("snapshot: rename %s: %v", oldKey, err)
		} else {
			errs = append(errs, fmt.Errorf("move snapshot rows: %w", err))
		}
	}
	if len(errs) > 0 {
		return r, fmt.Errorf("rename %s to %s: %w", oldKey, newKey, errors.Join(errs...))
	}
	return r, nil
}

// SetDecaySeconds changes a region's decay duration. Running tasks keep
// their interval.
func (e *Engine) SetDecaySeconds(id string, seconds int) (*region.Region, error) {
	return e.Regions.SetDecaySeconds(id, seconds)
}

// SnapshotRegion replaces a region's stored snapshot with its current
// content and returns the number of rows captured.
func (e *Engine) SnapshotRegion(id string) (int, error) {
	r, ok := e.Regions.Get(id)
	if !ok {
		return 0, fmt.Errorf("snapshot %q: %w", id, region.ErrNotFound)
	}
	n, err := e.Snapshots.Capture(r)
	if err != nil {
		e.snapshotError(r, err)
		return 0, err
	}
	return n, nil
}

// RestoreRegion writes a region's stored snapshot back into the world.
func (e *Engine) RestoreRegion(id string) (snapshot.RestoreResult, error) {
	r, ok := e.Regions.Get(id)
	if !ok {
		return snapshot.RestoreResult{}, fmt.Errorf("restore %q: %w", id, region.ErrNotFound)
	}
	return e.Snapshots.Restore(r)
}

// ImportSnapshot replaces the stored snapshot of region id with rows read
// from an archive. Every row must lie inside the region.
func (e *Engine) ImportSnapshot(id string, rows []snapshot.Row) error {
	if id == "" {
		return fmt.Errorf("import: %w: no target region", region.ErrInvalid)
	}
	r, ok := e.Regions.Get(id)
	if !ok {
		return fmt.Errorf("import %q: %w", id, region.ErrNotFound)
	}
	for _, row := range rows {
		if !r.Contains(row.Location()) {
			return fmt.Errorf("import %q: %w: row %s lies outside the region", id, region.ErrInvalid, row.Location())
		}
	}
	return e.Snapshots.Replace(r.Key(), rows)
}

// ResetRegion force-clears a region and restores its snapshot.
func (e *Engine) ResetRegion(id string) (snapshot.RestoreResult, error) {
	r, ok := e.Regions.Get(id)
	if !ok {
		return snapshot.RestoreResult{}, fmt.Errorf("reset %q: %w", id, region.ErrNotFound)
	}
	e.ForceClearRegion(r.Key())
	return e.Snapshots.Restore(r)
}

// Info summarizes a region's ledger, snapshot and running tasks.
func (e *Engine) Info(id string) (RegionInfo, error) {
	r, ok := e.Regions.Get(id)
	if !ok {
		return RegionInfo{}, fmt.Errorf("info %q: %w", id, region.ErrNotFound)
	}
	info := RegionInfo{Region: *r}
	if c, err := e.Ledger.Counts(r.Key()); err == nil {
		info.Ledger = c
	}
	if n, err := e.Snapshots.Count(r.Key()); err == nil {
		info.SnapshotRows = n
	}
	for _, t := range e.tasks {
		if t.region.Key() == r.Key() {
			info.ActiveTasks++
		}
	}
	return info, nil
}

// ForceClearRegion reverts everything tracked under regionKey and deletes
// its ledger rows. Blocks become air, objects are removed without drops and
// fluid sources are flood-cleared. It returns what the ledger held.
func (e *Engine) ForceClearRegion(regionKey string) ledger.Counts {
	cleared, _ := e.forceClear(regionKey)
	return cleared
}

// forceClear is ForceClearRegion reporting whether the ledger could be read.
// On error nothing was reverted from the ledger and its rows are kept.
func (e *Engine) forceClear(regionKey string) (ledger.Counts, error) {
	var cleared ledger.Counts

	for _, t := range e.tasks {
		if t.region.Key() == regionKey {
			e.stopTask(t, reasonCleared)
			e.World.SetBlock(t.loc, world.AirBlock)
		}
	}

	recs, err := e.Ledger.Records(regionKey)
	if err != nil {
		e.ledgerError("records", err)
		return cleared, err
	}

	for _, loc := range recs.Blocks {
		if t, ok := e.tasks[loc]; ok {
			e.stopTask(t, reasonCleared)
		}
		e.World.SetBlock(loc, world.AirBlock)
		cleared.Blocks++
	}
	for _, id := range recs.Entities {
		if tid, ok := e.entities[id]; ok {
			e.clock.Cancel(tid)
			delete(e.entities, id)
		}
		e.World.RemoveEntity(id, false)
		cleared.Entities++
	}
	for _, src := range recs.Fluids {
		if tid, ok := e.fluids[src.Location]; ok {
			e.clock.Cancel(tid)
			delete(e.fluids, src.Location)
		}
		e.FloodClear(regionKey, src.Location, src.Kind, e.cfg.ForceClear.MaxFloodBlocks)
		cleared.Fluids++
	}

	if err := e.Ledger.DeleteRegion(regionKey); err != nil {
		e.ledgerError("delete region", err)
	}
	return cleared, nil
}

// Reconcile brings the world back to a known-clean state after a restart:
// every region holding ledger rows is force-cleared and the ledger emptied,
// then every defined region is restored from its snapshot. Force clearing
// is skipped when disabled in configuration.
func (e *Engine) Reconcile() {
	if e.cfg.ForceClear.OnStartup {
		keys, err := e.Ledger.RegionKeys()
		if err != nil {
			e.ledgerError("region keys", err)
		}
		var total ledger.Counts
		failed := 0
		for _, key := range keys {
			c, cerr := e.forceClear(key)
			if cerr != nil {
				failed++
			}
			total.Blocks += c.Blocks
			total.Entities += c.Entities
			total.Fluids += c.Fluids
		}
		// Rows of a region that could not be reverted stay for the next start.
		if failed > 0 {
			log.Printf("reconcile: %d of %d regions could not be read, keeping ledger", failed, len(keys))
		}
		if err == nil && failed == 0 {
			if err := e.Ledger.DeleteAll(); err != nil {
				e.ledgerError("delete all", err)
			}
			e.flush()
		}
		if len(keys) > 0 {
			log.Printf("reconcile: cleared %d regions (%d blocks, %d entities, %d fluid sources)",
				len(keys), total.Blocks, total.Entities, total.Fluids)
		}
	}

	for _, r := range e.Regions.All() {
		res, err := e.Snapshots.Restore(r)
		if err != nil {
			log.Printf("reconcile: restore %s: %v", r.ID, err)
			continue
		}
		if res.Material > 0 || res.Air > 0 {
			log.Printf("reconcile: restored %s with %d exact, %d material-only, %d air fallbacks",
				r.ID, res.Exact, res.Material, res.Air)
		}
	}
}

func (e *Engine) snapshotError(r *region.Region, err error) {
	e.metrics.snapshotRefusals.Inc()
	log.Printf("snapshot: region %s: %v", r.ID, err)
}
