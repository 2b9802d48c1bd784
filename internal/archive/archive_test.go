package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/lazypower/decayregion/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "arena.jsonl.zst")
	rows := []snapshot.Row{
		{World: "overworld", X: 0, Y: 64, Z: 0, Material: "stone", State: "stone"},
		{World: "overworld", X: 1, Y: 64, Z: 0, Material: "oak_stairs", State: "oak_stairs[facing=east,waterlogged=true]"},
		{World: "overworld", X: 2, Y: 64, Z: 0, Material: "air", State: "air"},
	}

	require.NoError(t, Export(path, "arena", rows))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file left behind")

	h, got, err := Import(path)
	require.NoError(t, err)
	assert.Equal(t, Header{Version: Version, Region: "arena", Rows: 3}, h)
	assert.Equal(t, rows, got)
}

func TestExportEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.zst")
	require.NoError(t, Export(path, "empty", nil))

	h, got, err := Import(path)
	require.NoError(t, err)
	assert.Zero(t, h.Rows)
	assert.Empty(t, got)
}

func TestImportRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.zst")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc, err := zstd.NewWriter(f)
	require.NoError(t, err)
	_, err = enc.Write([]byte(`{"version":99,"region":"x","rows":0}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	_, _, err = Import(path)
	assert.ErrorIs(t, err, ErrVersion)
}

func TestImportTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.zst")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc, err := zstd.NewWriter(f)
	require.NoError(t, err)
	_, err = enc.Write([]byte(`{"version":1,"region":"x","rows":2}` + "\n" + `{"world":"w","x":1,"y":2,"z":3,"material":"stone","state":"stone"}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	_, _, err = Import(path)
	assert.Error(t, err)
}

func TestImportMissingFile(t *testing.T) {
	_, _, err := Import(filepath.Join(t.TempDir(), "nope.zst"))
	assert.Error(t, err)
}
