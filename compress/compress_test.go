package compress

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/gridpipe/io"
)

func TestShuffle(t *testing.T) {
	b := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	out := make([]byte, len(b))
	Shuffle(b, out)
	assert.Equal(t, []byte{1, 5, 2, 6, 3, 7, 4, 8}, out)

	back := make([]byte, len(b))
	Unshuffle(out, back)
	assert.Equal(t, b, back)
}

func TestCompress(t *testing.T) {
	raw := make([]byte, 4*512)
	for i := range raw {
		raw[i] = byte(i % 7)
	}
	packed, err := Compress(raw, nil, DefaultLevel)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(raw))

	got, err := Decompress(packed)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(raw, got))

	_, err = Compress([]byte{1, 2, 3}, nil, DefaultLevel)
	assert.Error(t, err)
	_, err = Decompress([]byte("not zstd"))
	assert.Error(t, err)
}

func TestPackUnpack(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		filepath.Join(dir, "density", "00150.raw"),
		filepath.Join(dir, "pressure", "00150.raw"),
	}
	xs := make([]float64, 4*4*4)
	for i := range xs {
		xs[i] = float64(i) * 0.25
	}
	for _, path := range paths {
		require.NoError(t, io.WriteGrid(path, xs))
	}
	require.NoError(t, io.WriteManifest(dir, io.NewManifest("mesh", 4)))
	orig, err := os.ReadFile(paths[0])
	require.NoError(t, err)

	sum, err := Pack(dir, DefaultLevel, true)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Files)
	assert.Equal(t, int64(2*256), sum.BytesIn)
	assert.Greater(t, sum.Ratio(), 1.0)
	for _, path := range paths {
		assert.NoFileExists(t, path)
		assert.FileExists(t, path+Ext)
	}
	assert.FileExists(t, filepath.Join(dir, io.ManifestName))

	sum, err = Unpack(dir, false)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Files)
	got, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, orig, got)
	assert.FileExists(t, paths[0]+Ext)

	grid, err := io.ReadGrid(paths[1], 4)
	require.NoError(t, err)
	assert.Equal(t, float32(15.75), grid[63])
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.raw", "a.raw", "a.raw.zst", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	files, err := List(dir, RawExt)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.raw"), filepath.Join(dir, "b.raw"),
	}, files)

	_, err = List(filepath.Join(dir, "missing"), RawExt)
	assert.Error(t, err)
}
