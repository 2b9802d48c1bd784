package region

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lazypower/decayregion/internal/world"
	"gopkg.in/yaml.v3"
)

// Registry holds every defined region in creation order. When Path is set
// each mutation is written back to the region file.
type Registry struct {
	Path    string
	regions []*Region
	byKey   map[string]*Region
}

// NewRegistry creates an empty registry that is never persisted.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]*Region)}
}

type regionFile struct {
	Regions []*Region `yaml:"regions"`
}

// Load reads the region file at path. A missing file yields an empty
// registry bound to path.
func Load(path string) (*Registry, error) {
	reg := NewRegistry()
	reg.Path = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return reg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read regions: %w", err)
	}

	var f regionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse regions: %w", err)
	}
	for _, r := range f.Regions {
		if r == nil {
			continue
		}
		r = New(r.ID, r.World, r.Min, r.Max, r.DecaySeconds)
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("region %q: %w", r.ID, err)
		}
		if _, dup := reg.byKey[r.Key()]; dup {
			return nil, fmt.Errorf("region %q: %w", r.ID, ErrExists)
		}
		reg.add(r)
	}
	return reg, nil
}

// Save writes the region file. A registry without a path is not persisted.
func (reg *Registry) Save() error {
	if reg.Path == "" {
		return nil
	}
	data, err := yaml.Marshal(regionFile{Regions: reg.regions})
	if err != nil {
		return fmt.Errorf("encode regions: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(reg.Path), 0755); err != nil {
		return fmt.Errorf("create regions dir: %w", err)
	}
	tmp := reg.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write regions: %w", err)
	}
	if err := os.Rename(tmp, reg.Path); err != nil {
		return fmt.Errorf("replace regions: %w", err)
	}
	return nil
}

func (reg *Registry) add(r *Region) {
	reg.regions = append(reg.regions, r)
	reg.byKey[r.Key()] = r
}

// Get looks a region up by id, case-insensitively.
func (reg *Registry) Get(id string) (*Region, bool) {
	r, ok := reg.byKey[Key(id)]
	return r, ok
}

// All returns the regions in creation order.
func (reg *Registry) All() []*Region {
	out := make([]*Region, len(reg.regions))
	copy(out, reg.regions)
	return out
}

// Len returns the number of regions.
func (reg *Registry) Len() int {
	return len(reg.regions)
}

// At returns the first region, in creation order, containing loc.
func (reg *Registry) At(loc world.Location) (*Region, bool) {
	for _, r := range reg.regions {
		if r.Contains(loc) {
			return r, true
		}
	}
	return nil, false
}

// InAny reports whether loc lies inside some region.
func (reg *Registry) InAny(loc world.Location) bool {
	_, ok := reg.At(loc)
	return ok
}

// Overlaps reports whether candidate shares a cell with any other region.
// A region with the candidate's key is skipped.
func (reg *Registry) Overlaps(candidate *Region) bool {
	_, ok := reg.overlapping(candidate)
	return ok
}

func (reg *Registry) overlapping(candidate *Region) (*Region, bool) {
	key := candidate.Key()
	for _, r := range reg.regions {
		if r.Key() == key {
			continue
		}
		if Overlaps(r, candidate) {
			return r, true
		}
	}
	return nil, false
}

// Create adds a normalized copy of r after validating it and returns the
// stored region. The region file is saved on success.
func (reg *Registry) Create(r *Region) (*Region, error) {
	r = New(r.ID, r.World, r.Min, r.Max, r.DecaySeconds)
	if err := r.validate(); err != nil {
		return nil, err
	}
	if _, ok := reg.byKey[r.Key()]; ok {
		return nil, fmt.Errorf("create %q: %w", r.ID, ErrExists)
	}
	if other, ok := reg.overlapping(r); ok {
		return nil, fmt.Errorf("create %q overlaps %q: %w", r.ID, other.ID, ErrOverlap)
	}
	reg.add(r)
	return r, reg.Save()
}

// Remove deletes a region and returns it.
func (reg *Registry) Remove(id string) (*Region, error) {
	key := Key(id)
	r, ok := reg.byKey[key]
	if !ok {
		return nil, fmt.Errorf("remove %q: %w", id, ErrNotFound)
	}
	delete(reg.byKey, key)
	for i, cur := range reg.regions {
		if cur == r {
			reg.regions = append(reg.regions[:i], reg.regions[i+1:]...)
			break
		}
	}
	return r, reg.Save()
}

// Rename changes a region's id in place, keeping its bounds and position in
// creation order. A case-only rename keeps the key.
func (reg *Registry) Rename(oldID, newID string) (*Region, error) {
	oldKey, newKey := Key(oldID), Key(newID)
	r, ok := reg.byKey[oldKey]
	if !ok {
		return nil, fmt.Errorf("rename %q: %w", oldID, ErrNotFound)
	}
	if newKey == "" {
		return nil, fmt.Errorf("rename %q: %w", oldID, ErrInvalid)
	}
	if other, ok := reg.byKey[newKey]; ok && other != r {
		return nil, fmt.Errorf("rename %q to %q: %w", oldID, newID, ErrExists)
	}

	prevID := r.ID
	r.ID = newID
	if err := r.validate(); err != nil {
		r.ID = prevID
		return nil, err
	}
	delete(reg.byKey, oldKey)
	reg.byKey[newKey] = r
	return r, reg.Save()
}

// SetDecaySeconds updates a region's decay duration.
func (reg *Registry) SetDecaySeconds(id string, seconds int) (*Region, error) {
	r, ok := reg.byKey[Key(id)]
	if !ok {
		return nil, fmt.Errorf("set decay %q: %w", id, ErrNotFound)
	}
	if seconds < 1 {
		return nil, fmt.Errorf("set decay %q to %d: %w", id, seconds, ErrInvalid)
	}
	r.DecaySeconds = seconds
	return r, reg.Save()
}
