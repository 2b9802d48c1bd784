package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "placement ledger: blocks, entities, fluid sources",
		SQL: `
CREATE TABLE placed_blocks (
    region  TEXT NOT NULL,
    world   TEXT NOT NULL,
    x       INTEGER NOT NULL,
    y       INTEGER NOT NULL,
    z       INTEGER NOT NULL,
    PRIMARY KEY (region, world, x, y, z)
);

CREATE TABLE placed_entities (
    object_id TEXT PRIMARY KEY,
    region    TEXT NOT NULL
);

CREATE TABLE fluid_sources (
    region  TEXT NOT NULL,
    world   TEXT NOT NULL,
    x       INTEGER NOT NULL,
    y       INTEGER NOT NULL,
    z       INTEGER NOT NULL,
    kind    TEXT NOT NULL CHECK (kind IN ('water', 'lava')),
    PRIMARY KEY (region, world, x, y, z, kind)
);

CREATE INDEX idx_blocks_region   ON placed_blocks(region);
CREATE INDEX idx_entities_region ON placed_entities(region);
CREATE INDEX idx_fluids_region   ON fluid_sources(region);
CREATE INDEX idx_fluids_near     ON fluid_sources(region, world, x, z, y);
`,
	},
	{
		Version:     2,
		Description: "region_snapshots: captured cell contents per region",
		SQL: `
CREATE TABLE region_snapshots (
    region   TEXT NOT NULL,
    world    TEXT NOT NULL,
    x        INTEGER NOT NULL,
    y        INTEGER NOT NULL,
    z        INTEGER NOT NULL,
    material TEXT NOT NULL,
    state    TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (region, world, x, y, z)
);

CREATE INDEX idx_snapshots_region ON region_snapshots(region);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var version int
	err := db.reader().QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
