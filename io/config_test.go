package io

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gcfg.v1"
)

func writeFile(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
}

func TestExampleFilesParse(t *testing.T) {
	sweep := DefaultSweepWrapper()
	require.NoError(t, gcfg.ReadStringInto(sweep, ExampleSweepFile))
	assert.Equal(t, "nyx.comoving_h", sweep.Sweep.ParamName)
	assert.Equal(t, 100, sweep.Sweep.Count)
	assert.Equal(t, 0.55, sweep.Sweep.Min)
	assert.Equal(t, 128, sweep.Sweep.Resolution)
	assert.True(t, sweep.Sweep.CacheSnapshots)

	convert := DefaultConvertWrapper()
	require.NoError(t, gcfg.ReadStringInto(convert, ExampleConvertFile))
	assert.Equal(t, "Mesh", convert.Convert.Kind)
	assert.Equal(t, "plt", convert.Convert.Prefix)
}

func TestReadSweepConfig(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base")
	writeFile(t, base, "amr.n_cell = 128 128 128\n")

	fname := filepath.Join(dir, "sweep.cfg")
	writeFile(t, fname, `[Sweep]
OutputRoot = `+filepath.Join(dir, "out")+`
BaseConfig = `+base+`
Executable = ./sim.ex
Min = 0.5
Max = 0.7
Count = 3
ExitPolicy = log
Timeout = 90m
Override = nyx.do_hydro = 1
Override = amr.check_int = -1
`)

	con, err := ReadSweepConfig(fname)
	require.NoError(t, err)
	assert.Equal(t, []string{"nyx.do_hydro = 1", "amr.check_int = -1"}, con.Override)
	assert.Equal(t, []string{"StateErr"}, con.Denylist)
	assert.Equal(t, 150, con.MinStep)
	assert.Equal(t, 350, con.MaxStep)

	d, err := con.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)
}

func TestSweepConfigEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base")
	writeFile(t, base, "max_step = 10\n")

	fname := filepath.Join(dir, "sweep.cfg")
	writeFile(t, fname, "[Sweep]\nOutputRoot = a\nBaseConfig = "+base+
		"\nExecutable = ./sim.ex\nCount = 1\n")

	t.Setenv("GRIDPIPE_OUTPUT_ROOT", filepath.Join(dir, "scratch"))
	t.Setenv("GRIDPIPE_RESOLUTION", "64")
	t.Setenv("GRIDPIPE_TIMEOUT", "2h")

	con, err := ReadSweepConfig(fname)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "scratch"), con.OutputRoot)
	assert.Equal(t, 64, con.Resolution)
	assert.Equal(t, "2h", con.Timeout)
	assert.Equal(t, "./sim.ex", con.Executable)
}

func TestSweepConfigCheck(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base")
	writeFile(t, base, "")

	valid := func() *SweepConfig {
		con := DefaultSweepWrapper().Sweep
		con.OutputRoot, con.BaseConfig, con.Executable = dir, base, "./x"
		con.Count, con.Min, con.Max = 2, 0, 1
		return &con
	}
	require.NoError(t, valid().Check())

	table := []struct {
		name   string
		modify func(con *SweepConfig)
	}{
		{"output", func(con *SweepConfig) { con.OutputRoot = " " }},
		{"base", func(con *SweepConfig) { con.BaseConfig = filepath.Join(dir, "nope") }},
		{"base dir", func(con *SweepConfig) { con.BaseConfig = dir }},
		{"exe", func(con *SweepConfig) { con.Executable = "" }},
		{"count", func(con *SweepConfig) { con.Count = 0 }},
		{"range", func(con *SweepConfig) { con.Min = 2 }},
		{"steps", func(con *SweepConfig) { con.MinStep = 400 }},
		{"res", func(con *SweepConfig) { con.Resolution = 0 }},
		{"policy", func(con *SweepConfig) { con.ExitPolicy = "ignore" }},
		{"timeout", func(con *SweepConfig) { con.Timeout = "soon" }},
		{"negative timeout", func(con *SweepConfig) { con.Timeout = "-1s" }},
	}

	for _, test := range table {
		con := valid()
		test.modify(con)
		assert.Error(t, con.Check(), test.name)
	}
}

func TestConvertConfigCheck(t *testing.T) {
	dir := t.TempDir()
	con := DefaultConvertWrapper().Convert
	con.Input, con.Output, con.Resolution = dir, filepath.Join(dir, "out"), 4
	require.NoError(t, con.Check())

	con.Kind = "gadget4"
	assert.NoError(t, con.Check())
	con.Kind = "ramses"
	assert.Error(t, con.Check())

	con.Kind = "Mesh"
	con.Input = filepath.Join(dir, "missing")
	assert.Error(t, con.Check())
}
