package io

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/gcfg.v1"
)

const (
	ExampleSweepFile = `[Sweep]

#######################
# Required Parameters #
#######################

# Directory which every run directory and the sweep logs are written to. It
# is deleted and recreated when the sweep starts.
OutputRoot = path/to/output/root

# Simulation parameter file which is copied into every run directory before
# the run-specific overrides are appended to it.
BaseConfig = sh/base

# Simulation executable. Relative paths are resolved against WorkDir. The
# executable is invoked with the path of the staged parameter file as its only
# argument.
Executable = ./Nyx3d.gnu.TPROF.MPI.CUDA.ex

# The parameter varied across the sweep and the range it is varied over.
# Values are evenly spaced and include both endpoints.
ParamName = nyx.comoving_h
Min = 0.55
Max = 0.85
Count = 100

#######################
# Optional Parameters #
#######################

# Directory the simulation runs in. It is also where mem_info.log is picked
# up from. Defaults to the current directory.
# WorkDir = .

# A whitespace-separated text file whose first column lists the parameter
# values to use instead of Min, Max and Count.
# ValuesFile = path/to/values.txt

# printf format used to write parameter values. Default is %.6f.
# ValueFormat = %.6f

# Range of simulation steps. MaxStep is passed to the simulation and plot
# files with a step below MinStep are not converted.
# MinStep = 150
# MaxStep = 350

# Number of grid cells on one side of every exported grid.
# Resolution = 128

# Variables the simulation writes to its plot files.
# PlotVars = density
# DerivePlotVars = pressure magvort x_velocity y_velocity z_velocity

# Additional lines appended to every staged parameter file. May be repeated.
# Override = nyx.do_hydro = 1

# What to do when the simulation exits with a non-zero code: "fail" marks the
# run as failed, "log" only logs the code and converts whatever was written.
# ExitPolicy = fail

# Maximum wall-clock time of one simulation, as a Go duration (e.g. 6h30m).
# The simulation's whole process group is killed when it is exceeded. 0 means
# no limit.
# Timeout = 0

# Prefix of the snapshot directories written by the simulation.
# SnapshotPrefix = plt

# Fields which are never exported. May be repeated. Default is StateErr.
# Denylist = StateErr

# Keep each snapshot open while all of its fields are converted instead of
# reopening it once per field.
# CacheSnapshots = true

# Start the simulation through nohup.
# Nohup = false

# Delete converted snapshots after a run. Turning this off keeps raw/ around
# for debugging but uses a great deal of disk.
# Cleanup = true

# Output file which progress messages are written to in
# addition to stderr.
# LogFile = log.out`

	ExampleConvertFile = `[Convert]

#######################
# Required Parameters #
#######################

# Directory containing the snapshots.
Input = path/to/input/dir
# Directory which the grids are written to. It is deleted and recreated.
Output = path/to/output/dir

# Format of the snapshots. Must be one of [ Mesh | Gadget2 | Gadget4 | Auto ].
# Mesh is an AMReX plotfile directory (e.g. Nyx's plt00150), Gadget2 is a
# binary Gadget-2 file and Gadget4 is an HDF5 Gadget-4 file.
Kind = Mesh

# Number of grid cells on one side of every exported grid.
Resolution = 128

#######################
# Optional Parameters #
#######################

# Prefix and suffix around the timestep in snapshot names. For Gadget-4
# output this would be snap_ and .hdf5.
# Prefix = plt
# Suffix =

# Snapshots with a timestep below MinStep are skipped.
# MinStep = 0

# Only convert these fields. May be repeated. Default is every field.
# Field = density

# Fields which are never exported. May be repeated. Default is StateErr.
# Denylist = StateErr

# Particle snapshots only: width of the periodic box. When this isn't set, the
# BoxSize in the snapshot header is used. If the header has none, the
# bounding box of the particles is used.
# BoxSize = 100
# Gadget-4 only: particle group and the mass used when it has no Masses
# dataset. By default the MassTable entry in the header is used.
# PartType = 0
# ParticleMass = 1

# Keep each snapshot open while all of its fields are converted.
# CacheSnapshots = true

# LogFile = log.out`
)

// SweepConfig describes a parameter sweep.
type SweepConfig struct {
	OutputRoot, BaseConfig, Executable, WorkDir string
	ParamName                                 string
	Min, Max                                  float64
	Count                                     int
	ValuesFile, ValueFormat                   string

	MinStep, MaxStep, Resolution int
	PlotVars, DerivePlotVars     string
	Override                     []string

	ExitPolicy, Timeout string
	SnapshotPrefix      string
	Denylist            []string
	CacheSnapshots      bool
	Nohup, Cleanup      bool

	LogFile string
}

// SweepWrapper exists so that gcfg can read a [Sweep] section.
type SweepWrapper struct {
	Sweep SweepConfig
}

// DefaultSweepWrapper returns a wrapper with every optional parameter set to
// its default value.
func DefaultSweepWrapper() *SweepWrapper {
	return &SweepWrapper{SweepConfig{
		WorkDir:        ".",
		ParamName:      "nyx.comoving_h",
		ValueFormat:    "%.6f",
		MinStep:        150,
		MaxStep:        350,
		Resolution:     128,
		PlotVars:       "density",
		DerivePlotVars: "pressure magvort x_velocity y_velocity z_velocity",
		ExitPolicy:     "fail",
		Timeout:        "0",
		SnapshotPrefix: "plt",
		CacheSnapshots: true,
		Cleanup:        true,
	}}
}

func (con *SweepConfig) ValidOutputRoot() bool {
	return strings.TrimSpace(con.OutputRoot) != ""
}

func (con *SweepConfig) ValidBaseConfig() bool {
	info, err := os.Stat(con.BaseConfig)
	return err == nil && !info.IsDir()
}

func (con *SweepConfig) ValidExecutable() bool { return con.Executable != "" }

func (con *SweepConfig) ValidValues() bool {
	if con.ValuesFile != "" {
		return true
	}
	return con.Count > 0 && con.Max >= con.Min
}

func (con *SweepConfig) ValidSteps() bool {
	return con.MinStep >= 0 && con.MaxStep >= con.MinStep
}

func (con *SweepConfig) ValidResolution() bool { return con.Resolution > 0 }

func (con *SweepConfig) ValidExitPolicy() bool {
	p := strings.ToLower(con.ExitPolicy)
	return p == "fail" || p == "log"
}

func (con *SweepConfig) ValidTimeout() bool {
	_, err := con.TimeoutDuration()
	return err == nil
}

// TimeoutDuration parses Timeout. "0" and "" mean no timeout.
func (con *SweepConfig) TimeoutDuration() (time.Duration, error) {
	return parseTimeout(con.Timeout)
}

// Check returns a descriptive error for the first invalid parameter.
func (con *SweepConfig) Check() error {
	switch {
	case !con.ValidOutputRoot():
		return fmt.Errorf("Invalid/non-existent 'OutputRoot' value.")
	case !con.ValidBaseConfig():
		return fmt.Errorf("'BaseConfig' value '%s' is not a readable file.", con.BaseConfig)
	case !con.ValidExecutable():
		return fmt.Errorf("Invalid/non-existent 'Executable' value.")
	case !con.ValidValues():
		return fmt.Errorf(
			"You must set either a 'ValuesFile' or a positive 'Count' with " +
				"'Min' <= 'Max'.",
		)
	case !con.ValidSteps():
		return fmt.Errorf(
			"'MinStep' must be non-negative and no larger than 'MaxStep'.",
		)
	case !con.ValidResolution():
		return fmt.Errorf("'Resolution' must be positive.")
	case !con.ValidExitPolicy():
		return fmt.Errorf(
			"'ExitPolicy' must be 'fail' or 'log', not '%s'.", con.ExitPolicy,
		)
	case !con.ValidTimeout():
		return fmt.Errorf(
			"'Timeout' value '%s' is not a valid duration.", con.Timeout,
		)
	}
	return nil
}

// ConvertConfig describes the conversion of a directory of existing
// snapshots.
type ConvertConfig struct {
	Input, Output, Kind string
	Resolution, MinStep int
	Prefix, Suffix      string
	Field, Denylist     []string

	BoxSize      float64
	PartType     int
	ParticleMass float64

	CacheSnapshots bool
	LogFile        string
}

// ConvertWrapper exists so that gcfg can read a [Convert] section.
type ConvertWrapper struct {
	Convert ConvertConfig
}

// DefaultConvertWrapper returns a wrapper with every optional parameter set
// to its default value.
func DefaultConvertWrapper() *ConvertWrapper {
	return &ConvertWrapper{ConvertConfig{
		Kind: "Auto", Prefix: "plt", CacheSnapshots: true,
	}}
}

func (con *ConvertConfig) ValidInput() bool {
	info, err := os.Stat(con.Input)
	return err == nil && info.IsDir()
}

func (con *ConvertConfig) ValidOutput() bool {
	return strings.TrimSpace(con.Output) != ""
}

func (con *ConvertConfig) ValidKind() bool {
	switch strings.ToLower(con.Kind) {
	case "mesh", "gadget2", "gadget4", "auto":
		return true
	}
	return false
}

func (con *ConvertConfig) ValidResolution() bool { return con.Resolution > 0 }

// Check returns a descriptive error for the first invalid parameter.
func (con *ConvertConfig) Check() error {
	switch {
	case !con.ValidInput():
		return fmt.Errorf("'Input' value '%s' is not a directory.", con.Input)
	case !con.ValidOutput():
		return fmt.Errorf("Invalid/non-existent 'Output' value.")
	case !con.ValidKind():
		return fmt.Errorf(
			"'Kind' must be one of [ Mesh | Gadget2 | Gadget4 | Auto ], "+
				"not '%s'.", con.Kind,
		)
	case !con.ValidResolution():
		return fmt.Errorf("'Resolution' must be positive.")
	case con.MinStep < 0:
		return fmt.Errorf("'MinStep' must be non-negative.")
	}
	return nil
}

// ReadSweepConfig reads a [Sweep] config file, applies GRIDPIPE_*
// environment overrides and checks the result.
func ReadSweepConfig(fname string) (*SweepConfig, error) {
	wrap := DefaultSweepWrapper()
	if err := gcfg.ReadFileInto(wrap, fname); err != nil {
		return nil, err
	}
	con := &wrap.Sweep
	if err := con.ApplyEnv(); err != nil {
		return nil, err
	}
	if len(con.Denylist) == 0 {
		con.Denylist = []string{"StateErr"}
	}
	if err := con.Check(); err != nil {
		return nil, err
	}
	return con, nil
}

// ReadConvertConfig reads a [Convert] config file and checks it.
func ReadConvertConfig(fname string) (*ConvertConfig, error) {
	wrap := DefaultConvertWrapper()
	if err := gcfg.ReadFileInto(wrap, fname); err != nil {
		return nil, err
	}
	con := &wrap.Convert
	if len(con.Denylist) == 0 {
		con.Denylist = []string{"StateErr"}
	}
	if err := con.Check(); err != nil {
		return nil, err
	}
	return con, nil
}

func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	} else if d < 0 {
		return 0, fmt.Errorf("negative timeout %s", d)
	}
	return d, nil
}
