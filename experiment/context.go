/*package experiment stages, runs and post-processes single simulation runs.

A Runner moves one run through the states

    Clean -> Staged -> Running -> Converting -> Done

and into Failed from any of the first four. Everything a run needs to know
about the sweep it belongs to is held in an explicit RunContext rather than in
package-level state.
*/
package experiment

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phil-mansfield/gridpipe/params"
	"github.com/phil-mansfield/gridpipe/snapshot"
)

// ExitPolicy decides what happens when the simulation exits with a non-zero
// code.
type ExitPolicy int

const (
	// FailOnExit moves the run to Failed.
	FailOnExit ExitPolicy = iota
	// LogExit logs the code and converts whatever the simulation wrote.
	LogExit
)

// ParseExitPolicy reads the ExitPolicy config value.
func ParseExitPolicy(s string) (ExitPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return FailOnExit, nil
	case "log":
		return LogExit, nil
	}
	return FailOnExit, fmt.Errorf("unknown exit policy '%s'", s)
}

func (p ExitPolicy) String() string {
	if p == LogExit {
		return "log"
	}
	return "fail"
}

// RunContext is the configuration shared by every run of a sweep.
type RunContext struct {
	// OutputRoot holds one directory per run, LogRoot holds the logs.
	OutputRoot, LogRoot string

	BaseConfig string
	// Executable is resolved against WorkDir when it is a relative path.
	Executable string
	// WorkDir is the directory the simulation runs in.
	WorkDir string
	Nohup   bool

	ParamName                string
	MinStep, MaxStep         int
	PlotVars, DerivePlotVars string
	// Overrides are appended after the per-run overrides.
	Overrides []params.Param

	Resolution     int
	Pattern        snapshot.Pattern
	Hint           snapshot.Hint
	Options        snapshot.Options
	CacheSnapshots bool
	Cleanup        bool

	ExitPolicy ExitPolicy
	// Timeout bounds the simulation's wall-clock time. Zero means no limit.
	Timeout time.Duration

	// Stdout receives a copy of every log line. nil means os.Stdout.
	Stdout io.Writer
}

// RunDir returns the directory owned by the run called name.
func (ctx *RunContext) RunDir(name string) string {
	return filepath.Join(ctx.OutputRoot, name)
}

// RunOverrides returns the parameters appended to the base config of the run
// called name, in the order they are written.
func (ctx *RunContext) RunOverrides(name, value string) []params.Param {
	dir := ctx.RunDir(name)
	ps := []params.Param{
		{Key: "max_step", Value: fmt.Sprint(ctx.MaxStep)},
		{Key: "amr.data_log", Value: filepath.Join(dir, "data_log.log")},
		{Key: "amr.plot_file", Value: filepath.Join(dir, "raw", ctx.Pattern.Prefix)},
		{Key: "amr.plot_vars", Value: ctx.PlotVars},
		{Key: "amr.derive_plot_vars", Value: ctx.DerivePlotVars},
		{Key: ctx.ParamName, Value: value},
	}
	return append(ps, ctx.Overrides...)
}

func (ctx *RunContext) stdout() io.Writer {
	if ctx.Stdout == nil {
		return os.Stdout
	}
	return ctx.Stdout
}
