package params

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const messyParams = `# Nyx parameters
nyx.comoving_h = 0.7    # Hubble
amr.n_cell     = 64 64 64

max_step=10
  amr.plot_int = 5
# trailing comment
amr.plot_file=plt
a.b = 1
a = 2
`

func canonical(t *testing.T, text string) string {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, Canonicalize(strings.NewReader(text), buf))
	return buf.String()
}

func TestCanonicalize(t *testing.T) {
	out := canonical(t, messyParams)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

	require.Len(t, lines, 7)
	assert.Equal(t, "a                                   = 2", lines[0])
	assert.Equal(t, "a.b                                 = 1", lines[1])
	assert.Equal(t, "amr.n_cell                          = 64 64 64", lines[2])
	assert.Equal(t, "amr.plot_file                       = plt", lines[3])
	assert.Equal(t, "amr.plot_int                        = 5", lines[4])
	assert.Equal(t, "max_step                            = 10", lines[5])
	assert.Equal(t, "nyx.comoving_h                      = 0.7", lines[6])
}

func TestCanonicalizeIdempotent(t *testing.T) {
	once := canonical(t, messyParams)
	twice := canonical(t, once)
	assert.Equal(t, once, twice)
}

func TestCanonicalizeRejectsBareLines(t *testing.T) {
	err := Canonicalize(strings.NewReader("a = 1\njust words\n"), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestStage(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base")
	require.NoError(t, os.WriteFile(base, []byte("max_step = 1000\nnyx.comoving_h = 0.6\n"), 0644))

	dst := filepath.Join(dir, "params")
	require.NoError(t, Stage(base, dst, []Param{
		{"max_step", "350"}, {"nyx.comoving_h", "0.550000"},
	}))

	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t,
		"max_step = 1000\nnyx.comoving_h = 0.6\n\n\n# new params\n"+
			"max_step = 350\nnyx.comoving_h = 0.550000", string(b))

	ps, err := Parse(bytes.NewReader(b))
	require.NoError(t, err)
	h, ok := Lookup(ps, "nyx.comoving_h")
	assert.True(t, ok)
	assert.Equal(t, "0.550000", h)
	_, ok = Lookup(ps, "amr.plot_file")
	assert.False(t, ok)

	assert.Error(t, Stage(filepath.Join(dir, "missing"), dst, nil))
}

func TestCanonicalizeFile(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in"), filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(in, []byte("b = 2\na = 1\n"), 0644))
	require.NoError(t, CanonicalizeFile(in, out))

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, canonical(t, "a = 1\nb = 2"), string(b))

	assert.Error(t, CanonicalizeFile(filepath.Join(dir, "missing"), out))
}
