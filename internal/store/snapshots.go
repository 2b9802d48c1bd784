package store

import (
	"fmt"

	"github.com/lazypower/decayregion/internal/snapshot"
)

var _ snapshot.RowStore = (*DB)(nil)

// ReplaceSnapshot swaps a region's stored rows for rows in one transaction.
// Staged ledger writes are committed first.
func (db *DB) ReplaceSnapshot(regionKey string, rows []snapshot.Row) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.commitLocked(); err != nil {
		return err
	}
	tx, err := db.DB.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM region_snapshots WHERE region = ?`, regionKey); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear snapshot %s: %w", regionKey, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO region_snapshots (region, world, x, y, z, material, state) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	for _, r := range rows {
		if _, err := stmt.Exec(regionKey, r.World, r.X, r.Y, r.Z, r.Material, r.State); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("insert snapshot row %s(%d,%d,%d): %w", r.World, r.X, r.Y, r.Z, err)
		}
	}
	stmt.Close()

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot %s: %w", regionKey, err)
	}
	return nil
}

// SnapshotRows returns a region's stored rows in capture order.
func (db *DB) SnapshotRows(regionKey string) ([]snapshot.Row, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.reader().Query(`
		SELECT world, x, y, z, material, state FROM region_snapshots
		WHERE region = ? ORDER BY world, x, y, z`, regionKey)
	if err != nil {
		return nil, fmt.Errorf("query snapshot %s: %w", regionKey, err)
	}
	defer rows.Close()

	var out []snapshot.Row
	for rows.Next() {
		var r snapshot.Row
		if err := rows.Scan(&r.World, &r.X, &r.Y, &r.Z, &r.Material, &r.State); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SnapshotCount returns the number of stored rows for a region.
func (db *DB) SnapshotCount(regionKey string) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var n int
	err := db.reader().QueryRow(`SELECT COUNT(*) FROM region_snapshots WHERE region = ?`, regionKey).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count snapshot %s: %w", regionKey, err)
	}
	return n, nil
}

// DeleteSnapshot drops a region's stored rows.
func (db *DB) DeleteSnapshot(regionKey string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.commitLocked(); err != nil {
		return err
	}
	if _, err := db.DB.Exec(`DELETE FROM region_snapshots WHERE region = ?`, regionKey); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", regionKey, err)
	}
	return nil
}

// RenameSnapshot re-keys a region's stored rows.
func (db *DB) RenameSnapshot(oldKey, newKey string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.commitLocked(); err != nil {
		return err
	}
	if _, err := db.DB.Exec(`UPDATE OR REPLACE region_snapshots SET region = ? WHERE region = ?`, newKey, oldKey); err != nil {
		return fmt.Errorf("rename snapshot %s to %s: %w", oldKey, newKey, err)
	}
	return nil
}
