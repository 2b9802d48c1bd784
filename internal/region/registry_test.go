package region

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lazypower/decayregion/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func p(x, y, z int) world.Pos { return world.Pos{X: x, Y: y, Z: z} }

func TestNewNormalizesCorners(t *testing.T) {
	r := New("arena", "overworld", p(10, 70, -5), p(0, 60, 5), 30)
	assert.Equal(t, p(0, 60, -5), r.Min)
	assert.Equal(t, p(10, 70, 5), r.Max)
	assert.Equal(t, int64(11*11*11), r.Volume())
}

func TestContainsInclusiveBounds(t *testing.T) {
	r := New("arena", "overworld", p(0, 0, 0), p(10, 10, 10), 30)

	assert.True(t, r.Contains(world.At("overworld", 0, 0, 0)))
	assert.True(t, r.Contains(world.At("overworld", 10, 10, 10)))
	assert.True(t, r.Contains(world.At("OVERWORLD", 5, 5, 5)))
	assert.False(t, r.Contains(world.At("overworld", 11, 5, 5)))
	assert.False(t, r.Contains(world.At("overworld", 5, -1, 5)))
	assert.False(t, r.Contains(world.At("nether", 5, 5, 5)))
}

func TestOverlaps(t *testing.T) {
	a := New("a", "overworld", p(0, 0, 0), p(10, 10, 10), 30)

	tests := []struct {
		name string
		b    *Region
		want bool
	}{
		{"shared face cell", New("b", "overworld", p(10, 0, 0), p(20, 10, 10), 30), true},
		{"adjacent", New("b", "overworld", p(11, 0, 0), p(20, 10, 10), 30), false},
		{"contained", New("b", "overworld", p(2, 2, 2), p(3, 3, 3), 30), true},
		{"other world", New("b", "nether", p(0, 0, 0), p(10, 10, 10), 30), false},
		{"apart on y", New("b", "overworld", p(0, 11, 0), p(10, 20, 10), 30), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(a, tt.b))
			assert.Equal(t, tt.want, Overlaps(tt.b, a))
		})
	}
}

func TestRegistryCreate(t *testing.T) {
	reg := NewRegistry()

	a, err := reg.Create(New("Arena", "overworld", p(0, 0, 0), p(10, 10, 10), 30))
	require.NoError(t, err)
	assert.Equal(t, "arena", a.Key())

	_, err = reg.Create(New("ARENA", "nether", p(0, 0, 0), p(1, 1, 1), 30))
	assert.ErrorIs(t, err, ErrExists)

	_, err = reg.Create(New("pit", "overworld", p(5, 5, 5), p(15, 15, 15), 30))
	assert.ErrorIs(t, err, ErrOverlap)

	_, err = reg.Create(New("", "overworld", p(50, 0, 0), p(60, 1, 1), 30))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = reg.Create(New("zero", "overworld", p(50, 0, 0), p(60, 1, 1), 0))
	assert.ErrorIs(t, err, ErrInvalid)

	assert.Equal(t, 1, reg.Len())
}

func TestRegistryAtFirstMatch(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Create(New("one", "overworld", p(0, 0, 0), p(4, 4, 4), 30))
	require.NoError(t, err)
	_, err = reg.Create(New("two", "overworld", p(5, 0, 0), p(9, 4, 4), 30))
	require.NoError(t, err)

	r, ok := reg.At(world.At("overworld", 7, 1, 1))
	require.True(t, ok)
	assert.Equal(t, "two", r.ID)

	_, ok = reg.At(world.At("overworld", 20, 1, 1))
	assert.False(t, ok)
}

func TestRegistryRename(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Create(New("old", "overworld", p(0, 0, 0), p(4, 4, 4), 30))
	require.NoError(t, err)
	_, err = reg.Create(New("taken", "overworld", p(10, 0, 0), p(14, 4, 4), 30))
	require.NoError(t, err)

	_, err = reg.Rename("missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = reg.Rename("old", "TAKEN")
	assert.ErrorIs(t, err, ErrExists)

	r, err := reg.Rename("old", "fresh")
	require.NoError(t, err)
	assert.Equal(t, p(0, 0, 0), r.Min)
	assert.Equal(t, p(4, 4, 4), r.Max)

	_, ok := reg.Get("old")
	assert.False(t, ok)
	got, ok := reg.Get("FRESH")
	require.True(t, ok)
	assert.Same(t, r, got)

	// Case-only rename keeps the key.
	r, err = reg.Rename("fresh", "Fresh")
	require.NoError(t, err)
	assert.Equal(t, "Fresh", r.ID)
	assert.Equal(t, "fresh", r.Key())
}

func TestRegistryRemoveAndDecay(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Create(New("arena", "overworld", p(0, 0, 0), p(4, 4, 4), 30))
	require.NoError(t, err)

	r, err := reg.SetDecaySeconds("ARENA", 90)
	require.NoError(t, err)
	assert.Equal(t, 90, r.DecaySeconds)

	_, err = reg.SetDecaySeconds("arena", 0)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = reg.Remove("arena")
	require.NoError(t, err)
	_, err = reg.Remove("arena")
	assert.ErrorIs(t, err, ErrNotFound)

	// Removal frees the space for a new region.
	_, err = reg.Create(New("again", "overworld", p(0, 0, 0), p(4, 4, 4), 30))
	assert.NoError(t, err)
}

func TestRegistryPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions", "decay_region.yml")

	reg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())

	_, err = reg.Create(New("b-second", "overworld", p(20, 0, 0), p(24, 4, 4), 45))
	require.NoError(t, err)
	_, err = reg.Create(New("a-first", "overworld", p(0, 0, 0), p(4, 4, 4), 30))
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	all := reloaded.All()
	require.Len(t, all, 2)
	assert.Equal(t, "b-second", all[0].ID)
	assert.Equal(t, 45, all[0].DecaySeconds)
	assert.Equal(t, "a-first", all[1].ID)
	assert.Equal(t, p(4, 4, 4), all[1].Max)
}

func TestLoadRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decay_region.yml")
	bad := `regions:
  - id: dup
    world: overworld
    min: {x: 0, y: 0, z: 0}
    max: {x: 1, y: 1, z: 1}
    decay_seconds: 30
  - id: DUP
    world: overworld
    min: {x: 5, y: 0, z: 0}
    max: {x: 6, y: 1, z: 1}
    decay_seconds: 30
`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0644))
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrExists)
}
