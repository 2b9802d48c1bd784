package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all decayregion configuration.
type Config struct {
	DataDir     string           `yaml:"data_dir"`
	RegionsFile string           `yaml:"regions_file"`
	Server      ServerConfig     `yaml:"server"`
	Database    DatabaseConfig   `yaml:"database"`
	Tick        TickConfig       `yaml:"tick"`
	Decay       DecayConfig      `yaml:"decay"`
	ForceClear  ForceClearConfig `yaml:"force_clear"`
	Snapshot    SnapshotConfig   `yaml:"snapshot"`
	Ledger      LedgerConfig     `yaml:"ledger"`
	DenyPlace   DenyPlaceConfig  `yaml:"deny_place"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Backend   string `yaml:"backend"` // "sqlite" or "badger"
	Path      string `yaml:"path"`
	BadgerDir string `yaml:"badger_dir"`
}

type TickConfig struct {
	RateHz int `yaml:"rate_hz"`
}

type DecayConfig struct {
	DefaultSeconds              int      `yaml:"default_seconds"`
	FormedOnlyFromTrackedFluids bool     `yaml:"formed_only_from_tracked_fluids"`
	FormedMaterials             []string `yaml:"formed_materials"`
	FormedFluidRadius           int      `yaml:"formed_fluid_radius"`
	InfiniteFluidRadius         int      `yaml:"infinite_fluid_radius"`
	FlowBlockers                []string `yaml:"flow_blockers"`
	FreeBreakMaterials          []string `yaml:"free_break_materials"`
	MaxFloodBlocks              int      `yaml:"max_flood_blocks"`
	WaterTokenTicks             int64    `yaml:"water_token_ticks"`
}

type ForceClearConfig struct {
	MaxFloodBlocks int  `yaml:"max_flood_blocks"`
	OnStartup      bool `yaml:"on_startup"`
}

type SnapshotConfig struct {
	MaxVolume  int64 `yaml:"max_volume"`
	NonAirOnly bool  `yaml:"non_air_only"`
}

type LedgerConfig struct {
	FlushSeconds int `yaml:"flush_seconds"`
}

type DenyPlaceConfig struct {
	Boats       bool `yaml:"boats"`
	Minecarts   bool `yaml:"minecarts"`
	EndCrystals bool `yaml:"end_crystals"`
}

// Default returns a Config with sensible defaults. Paths and the port are
// left empty and filled in by Resolve.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
		},
		Database: DatabaseConfig{
			Backend: "sqlite",
		},
		Tick: TickConfig{
			RateHz: 20,
		},
		Decay: DecayConfig{
			DefaultSeconds:              30,
			FormedOnlyFromTrackedFluids: true,
			FormedMaterials:             []string{"obsidian", "cobblestone", "stone"},
			FormedFluidRadius:           3,
			InfiniteFluidRadius:         2,
			FlowBlockers:                []string{"azalea"},
			MaxFloodBlocks:              20000,
			WaterTokenTicks:             200,
		},
		ForceClear: ForceClearConfig{
			MaxFloodBlocks: 500000,
			OnStartup:      true,
		},
		Snapshot: SnapshotConfig{
			MaxVolume: 200000,
		},
		Ledger: LedgerConfig{
			FlushSeconds: 5,
		},
		DenyPlace: DenyPlaceConfig{
			Boats:       true,
			Minecarts:   true,
			EndCrystals: true,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path falls back to
// DECAYREGION_CONFIG; with neither set the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("DECAYREGION_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Resolve(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Resolve fills empty paths from DataDir, defaulting DataDir to
// ~/.decayregion. An unset port comes from DECAYREGION_PORT, else 37778.
func (c *Config) Resolve() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("get home dir: %w", err)
		}
		c.DataDir = filepath.Join(home, ".decayregion")
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(c.DataDir, "data.db")
	}
	if c.Database.BadgerDir == "" {
		c.Database.BadgerDir = filepath.Join(c.DataDir, "ledger")
	}
	if c.RegionsFile == "" {
		c.RegionsFile = filepath.Join(c.DataDir, "decay_region.yml")
	}
	if c.Server.Port == 0 {
		c.Server.Port = 37778
		if v := os.Getenv("DECAYREGION_PORT"); v != "" {
			if port, err := strconv.Atoi(v); err == nil && port > 0 {
				c.Server.Port = port
			}
		}
	}
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Backend {
	case "sqlite", "badger":
	default:
		return fmt.Errorf("database.backend %q: want sqlite or badger", c.Database.Backend)
	}
	if c.Decay.DefaultSeconds < 1 {
		return fmt.Errorf("decay.default_seconds must be positive, got %d", c.Decay.DefaultSeconds)
	}
	if c.Tick.RateHz < 1 || c.Tick.RateHz > 1000 {
		return fmt.Errorf("tick.rate_hz must be between 1 and 1000, got %d", c.Tick.RateHz)
	}
	if c.Ledger.FlushSeconds < 1 {
		return fmt.Errorf("ledger.flush_seconds must be positive, got %d", c.Ledger.FlushSeconds)
	}
	if c.Decay.MaxFloodBlocks < 1 || c.ForceClear.MaxFloodBlocks < 1 {
		return fmt.Errorf("flood limits must be positive")
	}
	return nil
}

// LegacyLedgerPath is where older releases kept placements as YAML.
func (c *Config) LegacyLedgerPath() string {
	return filepath.Join(c.DataDir, "placed-data.yml")
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
