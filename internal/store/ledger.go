package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lazypower/decayregion/internal/ledger"
	"github.com/lazypower/decayregion/internal/world"
)

var _ ledger.Ledger = (*DB)(nil)

func (db *DB) stagedExec(what, query string, args ...any) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	tx, err := db.stage()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// RecordBlock tracks a placed block. Re-recording the same cell is a no-op.
func (db *DB) RecordBlock(regionKey string, loc world.Location) error {
	return db.stagedExec("record block",
		`INSERT OR REPLACE INTO placed_blocks (region, world, x, y, z) VALUES (?, ?, ?, ?, ?)`,
		regionKey, loc.World, loc.X, loc.Y, loc.Z)
}

// RemoveBlock forgets a placed block.
func (db *DB) RemoveBlock(regionKey string, loc world.Location) error {
	return db.stagedExec("remove block",
		`DELETE FROM placed_blocks WHERE region = ? AND world = ? AND x = ? AND y = ? AND z = ?`,
		regionKey, loc.World, loc.X, loc.Y, loc.Z)
}

// RecordEntity tracks a placed object. An object belongs to one region at a time.
func (db *DB) RecordEntity(regionKey string, id uuid.UUID) error {
	return db.stagedExec("record entity",
		`INSERT INTO placed_entities (object_id, region) VALUES (?, ?)
		 ON CONFLICT(object_id) DO UPDATE SET region = excluded.region`,
		id.String(), regionKey)
}

// RemoveEntity forgets a placed object.
func (db *DB) RemoveEntity(id uuid.UUID) error {
	return db.stagedExec("remove entity",
		`DELETE FROM placed_entities WHERE object_id = ?`, id.String())
}

// RecordFluidSource tracks a fluid source cell.
func (db *DB) RecordFluidSource(regionKey string, loc world.Location, kind world.FluidKind) error {
	return db.stagedExec("record fluid source",
		`INSERT OR REPLACE INTO fluid_sources (region, world, x, y, z, kind) VALUES (?, ?, ?, ?, ?, ?)`,
		regionKey, loc.World, loc.X, loc.Y, loc.Z, string(kind))
}

// RemoveFluidSource forgets a fluid source cell.
func (db *DB) RemoveFluidSource(regionKey string, loc world.Location, kind world.FluidKind) error {
	return db.stagedExec("remove fluid source",
		`DELETE FROM fluid_sources WHERE region = ? AND world = ? AND x = ? AND y = ? AND z = ? AND kind = ?`,
		regionKey, loc.World, loc.X, loc.Y, loc.Z, string(kind))
}

// IsNearFluidSource reports whether any tracked source lies within radius
// of loc on every axis.
func (db *DB) IsNearFluidSource(regionKey string, loc world.Location, radius int) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var one int
	err := db.reader().QueryRow(`
		SELECT 1 FROM fluid_sources
		WHERE region = ? AND world = ?
		  AND x BETWEEN ? AND ?
		  AND z BETWEEN ? AND ?
		  AND y BETWEEN ? AND ?
		LIMIT 1`,
		regionKey, loc.World,
		loc.X-radius, loc.X+radius,
		loc.Z-radius, loc.Z+radius,
		loc.Y-radius, loc.Y+radius,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query near fluid source: %w", err)
	}
	return true, nil
}

// Records returns everything tracked for a region.
func (db *DB) Records(regionKey string) (ledger.Records, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out ledger.Records
	q := db.reader()

	rows, err := q.Query(`SELECT world, x, y, z FROM placed_blocks WHERE region = ? ORDER BY world, x, y, z`, regionKey)
	if err != nil {
		return out, fmt.Errorf("query blocks: %w", err)
	}
	for rows.Next() {
		var loc world.Location
		if err := rows.Scan(&loc.World, &loc.X, &loc.Y, &loc.Z); err != nil {
			rows.Close()
			return out, fmt.Errorf("scan block: %w", err)
		}
		out.Blocks = append(out.Blocks, loc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("iterate blocks: %w", err)
	}

	rows, err = q.Query(`SELECT object_id FROM placed_entities WHERE region = ? ORDER BY object_id`, regionKey)
	if err != nil {
		return out, fmt.Errorf("query entities: %w", err)
	}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			rows.Close()
			return out, fmt.Errorf("scan entity: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		out.Entities = append(out.Entities, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("iterate entities: %w", err)
	}

	rows, err = q.Query(`SELECT world, x, y, z, kind FROM fluid_sources WHERE region = ? ORDER BY world, x, y, z, kind`, regionKey)
	if err != nil {
		return out, fmt.Errorf("query fluid sources: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var f ledger.FluidSource
		var kind string
		if err := rows.Scan(&f.Location.World, &f.Location.X, &f.Location.Y, &f.Location.Z, &kind); err != nil {
			return out, fmt.Errorf("scan fluid source: %w", err)
		}
		f.Kind = world.FluidKind(kind)
		out.Fluids = append(out.Fluids, f)
	}
	return out, rows.Err()
}

// Counts returns how many records of each kind a region holds.
func (db *DB) Counts(regionKey string) (ledger.Counts, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var c ledger.Counts
	err := db.reader().QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM placed_blocks WHERE region = ?),
			(SELECT COUNT(*) FROM placed_entities WHERE region = ?),
			(SELECT COUNT(*) FROM fluid_sources WHERE region = ?)`,
		regionKey, regionKey, regionKey,
	).Scan(&c.Blocks, &c.Entities, &c.Fluids)
	if err != nil {
		return c, fmt.Errorf("count records: %w", err)
	}
	return c, nil
}

// RegionKeys lists every region key with at least one record.
func (db *DB) RegionKeys() ([]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.reader().Query(`
		SELECT region FROM placed_blocks
		UNION SELECT region FROM placed_entities
		UNION SELECT region FROM fluid_sources
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("query region keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan region key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DeleteRegion forgets every record of a region.
func (db *DB) DeleteRegion(regionKey string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	tx, err := db.stage()
	if err != nil {
		return err
	}
	for _, table := range []string{"placed_blocks", "placed_entities", "fluid_sources"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE region = ?`, regionKey); err != nil {
			return fmt.Errorf("delete %s for %s: %w", table, regionKey, err)
		}
	}
	return nil
}

// DeleteAll forgets every ledger record.
func (db *DB) DeleteAll() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	tx, err := db.stage()
	if err != nil {
		return err
	}
	for _, table := range []string{"placed_blocks", "placed_entities", "fluid_sources"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

// RenameRegion moves all three record kinds to newKey and commits at once.
// Records already held by newKey for the same cell are replaced.
func (db *DB) RenameRegion(oldKey, newKey string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.commitLocked(); err != nil {
		return err
	}
	tx, err := db.stage()
	if err != nil {
		return err
	}
	for _, table := range []string{"placed_blocks", "placed_entities", "fluid_sources"} {
		if _, err := tx.Exec(`UPDATE OR REPLACE `+table+` SET region = ? WHERE region = ?`, newKey, oldKey); err != nil {
			db.tx = nil
			tx.Rollback()
			return fmt.Errorf("rename %s %s to %s: %w", table, oldKey, newKey, err)
		}
	}
	return db.commitLocked()
}
