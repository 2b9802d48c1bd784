package world

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Material is a lowercase block type name.
type Material string

const (
	Air         Material = "air"
	Water       Material = "water"
	Lava        Material = "lava"
	Stone       Material = "stone"
	Cobblestone Material = "cobblestone"
	Obsidian    Material = "obsidian"
	Azalea      Material = "azalea"
)

// FluidKind distinguishes the two flowing fluids.
type FluidKind string

const (
	FluidWater FluidKind = "water"
	FluidLava  FluidKind = "lava"
)

// Material returns the block material holding this fluid.
func (k FluidKind) Material() Material {
	return Material(k)
}

// ParseFluidKind accepts "water"/"lava" in any case.
func ParseFluidKind(s string) (FluidKind, bool) {
	switch FluidKind(strings.ToLower(s)) {
	case FluidWater:
		return FluidWater, true
	case FluidLava:
		return FluidLava, true
	}
	return "", false
}

// FluidOf reports which fluid, if any, a material is.
func FluidOf(m Material) (FluidKind, bool) {
	switch m {
	case Water:
		return FluidWater, true
	case Lava:
		return FluidLava, true
	}
	return "", false
}

// IsFluid reports whether m is water or lava.
func (m Material) IsFluid() bool {
	_, ok := FluidOf(m)
	return ok
}

// Block is the content of one cell. State is the full state encoding
// ("oak_stairs[facing=east,waterlogged=true]"); empty means the material's
// default state.
type Block struct {
	Material Material `json:"material"`
	State    string   `json:"state,omitempty"`
}

// AirBlock is an empty cell.
var AirBlock = Block{Material: Air}

// Of returns the default-state block for m.
func Of(m Material) Block {
	return Block{Material: m}
}

// FluidSource returns a level-0 fluid block of the given kind.
func FluidSource(k FluidKind) Block {
	return Block{Material: k.Material(), State: string(k) + "[level=0]"}
}

// FlowingFluid returns a fluid block with the given level.
func FlowingFluid(k FluidKind, level int) Block {
	return Block{Material: k.Material(), State: fmt.Sprintf("%s[level=%d]", k, level)}
}

// IsAir reports whether the cell is empty.
func (b Block) IsAir() bool {
	return b.Material == "" || b.Material == Air
}

// Encoding returns the full state string for the block.
func (b Block) Encoding() string {
	if b.State != "" {
		return b.State
	}
	if b.Material == "" {
		return string(Air)
	}
	return string(b.Material)
}

// Prop returns one state property.
func (b Block) Prop(key string) (string, bool) {
	if b.State == "" {
		return "", false
	}
	_, props, err := ParseState(b.State)
	if err != nil {
		return "", false
	}
	v, ok := props[key]
	return v, ok
}

// Waterlogged reports whether the block holds water in the same cell.
func (b Block) Waterlogged() bool {
	v, ok := b.Prop("waterlogged")
	return ok && v == "true"
}

// Level returns the fluid level; absent levels read as a source (0).
func (b Block) Level() int {
	v, ok := b.Prop("level")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

var errEmptyState = errors.New("empty state")

// ParseState splits "name[k=v,...]" into its material and properties.
func ParseState(s string) (Material, map[string]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil, errEmptyState
	}
	open := strings.IndexByte(s, '[')
	if open < 0 {
		if strings.ContainsAny(s, "]=,") {
			return "", nil, fmt.Errorf("malformed state %q", s)
		}
		return Material(strings.ToLower(s)), nil, nil
	}
	if !strings.HasSuffix(s, "]") || open == 0 {
		return "", nil, fmt.Errorf("malformed state %q", s)
	}
	name := Material(strings.ToLower(s[:open]))
	body := s[open+1 : len(s)-1]
	props := make(map[string]string)
	if body == "" {
		return name, props, nil
	}
	for _, kv := range strings.Split(body, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" || v == "" {
			return "", nil, fmt.Errorf("malformed property %q in %q", kv, s)
		}
		props[k] = v
	}
	return name, props, nil
}

// FormatState is the inverse of ParseState with properties in key order.
func FormatState(m Material, props map[string]string) string {
	if len(props) == 0 {
		return string(m)
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + props[k]
	}
	return string(m) + "[" + strings.Join(parts, ",") + "]"
}
