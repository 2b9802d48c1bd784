package ledger

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lazypower/decayregion/internal/world"
	"gopkg.in/yaml.v3"
)

// legacyFile is the flat YAML placement file written by earlier releases:
//
//	regions:
//	  arena:
//	    blocks: ["world;1;64;2"]
//	    entities: ["<uuid>"]
//	    fluidSources: ["world;1;64;2;WATER"]
type legacyFile struct {
	Regions map[string]struct {
		Blocks       []string `yaml:"blocks"`
		Entities     []string `yaml:"entities"`
		FluidSources []string `yaml:"fluidSources"`
	} `yaml:"regions"`
}

// ImportLegacy copies a legacy placement file into l when l holds no
// records. It returns the number of records imported; a missing file
// imports nothing. Malformed entries are skipped.
func ImportLegacy(l Ledger, path string) (int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read legacy ledger: %w", err)
	}

	keys, err := l.RegionKeys()
	if err != nil {
		return 0, fmt.Errorf("check ledger empty: %w", err)
	}
	if len(keys) > 0 {
		return 0, nil
	}

	var f legacyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("parse legacy ledger: %w", err)
	}

	imported := 0
	for name, sec := range f.Regions {
		key := strings.ToLower(name)
		for _, s := range sec.Blocks {
			loc, rest, ok := parseLegacyLocation(s)
			if !ok || len(rest) != 0 {
				continue
			}
			if err := l.RecordBlock(key, loc); err != nil {
				return imported, err
			}
			imported++
		}
		for _, s := range sec.Entities {
			id, err := uuid.Parse(strings.TrimSpace(s))
			if err != nil {
				continue
			}
			if err := l.RecordEntity(key, id); err != nil {
				return imported, err
			}
			imported++
		}
		for _, s := range sec.FluidSources {
			loc, rest, ok := parseLegacyLocation(s)
			if !ok || len(rest) != 1 {
				continue
			}
			kind, ok := world.ParseFluidKind(rest[0])
			if !ok {
				continue
			}
			if err := l.RecordFluidSource(key, loc, kind); err != nil {
				return imported, err
			}
			imported++
		}
	}
	if err := l.Flush(); err != nil {
		return imported, fmt.Errorf("flush legacy import: %w", err)
	}
	return imported, nil
}

func parseLegacyLocation(s string) (world.Location, []string, bool) {
	parts := strings.Split(s, ";")
	if len(parts) < 4 || parts[0] == "" {
		return world.Location{}, nil, false
	}
	var xyz [3]int
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i+1]))
		if err != nil {
			return world.Location{}, nil, false
		}
		xyz[i] = n
	}
	return world.At(parts[0], xyz[0], xyz[1], xyz[2]), parts[4:], true
}
