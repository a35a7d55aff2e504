package experiment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/phil-mansfield/gridpipe/io"
	"github.com/phil-mansfield/gridpipe/params"
)

// MemInfoName is the memory report the simulation leaves in its working
// directory. It is moved into the run directory after every run.
const MemInfoName = "mem_info.log"

// BacktracePattern matches the per-rank crash reports the simulation leaves
// in its working directory. They are moved along with MemInfoName.
const BacktracePattern = "Backtrace.*"

// State is a stage of a run's life.
type State int

const (
	Clean State = iota
	Staged
	Running
	Converting
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Staged:
		return "staged"
	case Running:
		return "running"
	case Converting:
		return "converting"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal returns true for Done and Failed.
func (s State) Terminal() bool { return s == Done || s == Failed }

// Runner runs a single experiment. The steps may be called one at a time, in
// order, or all together with Run. A step which fails moves the run to
// Failed and returns the error, which is also stored in Err.
type Runner struct {
	Ctx         *RunContext
	Name, Value string
	State       State
	Err         error

	// ExitCode is the simulation's exit code, or -1 if it never exited
	// normally.
	ExitCode int
	// SimTime is the wall-clock time the simulation took.
	SimTime time.Duration
	Result  *ConvertResult

	log *Logger
}

// NewRunner returns a runner for the run called name, which sets the swept
// parameter to value.
func NewRunner(ctx *RunContext, name, value string) *Runner {
	return &Runner{Ctx: ctx, Name: name, Value: value, State: Clean, ExitCode: -1}
}

// Dir returns the run directory.
func (r *Runner) Dir() string { return r.Ctx.RunDir(r.Name) }

// LogPath returns the path of the run's log.
func (r *Runner) LogPath() string {
	return filepath.Join(r.Ctx.LogRoot, r.Name+".log")
}

// Run moves the run from Clean to either Done or Failed.
func (r *Runner) Run(ctx context.Context) error {
	defer r.Close()
	steps := []func() error{
		r.Stage,
		func() error { return r.Simulate(ctx) },
		r.Convert,
		r.Cleanup,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the run log.
func (r *Runner) Close() error {
	err := r.log.Close()
	r.log = nil
	return err
}

// Stage opens the run log, recreates the run directory and writes its
// parameter file.
func (r *Runner) Stage() error {
	if err := r.expect(Clean); err != nil {
		return err
	}

	lg, err := NewLogger(r.LogPath(), r.Ctx.stdout())
	if err != nil {
		return r.fail(&StagingError{r.LogPath(), err})
	}
	r.log = lg

	dir := r.Dir()
	r.log.Printf(0, "experiment %s started, %s is %s", r.Name, r.Ctx.ParamName, r.Value)
	r.log.Printf(0, "all the output file in %s", dir)

	if err := os.RemoveAll(dir); err != nil {
		return r.fail(&StagingError{dir, err})
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return r.fail(&StagingError{dir, err})
	}

	paramFile := filepath.Join(dir, "params")
	err = params.Stage(r.Ctx.BaseConfig, paramFile, r.Ctx.RunOverrides(r.Name, r.Value))
	if err != nil {
		return r.fail(&StagingError{paramFile, err})
	}

	r.State = Staged
	return nil
}

// Simulate runs the simulation on the staged parameter file and waits for
// it to exit. Its output goes to run.log in the run directory.
func (r *Runner) Simulate(ctx context.Context) error {
	if err := r.expect(Staged); err != nil {
		return err
	}
	r.State = Running

	dir := r.Dir()
	out, err := os.Create(filepath.Join(dir, "run.log"))
	if err != nil {
		return r.fail(&SubprocessError{"start", err})
	}
	defer out.Close()

	start := time.Now()
	p, err := Start(
		r.Ctx.Executable, []string{filepath.Join(dir, "params")},
		r.Ctx.WorkDir, out, r.Ctx.Nohup,
	)
	if err != nil {
		return r.fail(err)
	}

	code, err := p.Wait(ctx, r.Ctx.Timeout)
	r.SimTime = time.Since(start)
	r.ExitCode = code
	r.log.Printf(1, "simulation done in %.2f minutes", r.SimTime.Minutes())
	r.moveReports()

	if err != nil {
		return r.fail(err)
	}
	if code != 0 {
		exitErr := &ExitError{code}
		if r.Ctx.ExitPolicy == FailOnExit {
			return r.fail(exitErr)
		}
		r.log.Printf(1, "%s, converting anyway", exitErr)
	}

	r.State = Converting
	return nil
}

func (r *Runner) moveReports() {
	reports, err := filepath.Glob(filepath.Join(r.Ctx.WorkDir, BacktracePattern))
	if err != nil {
		r.log.Printf(1, "could not list %s: %s", BacktracePattern, err)
	}
	reports = append(reports, filepath.Join(r.Ctx.WorkDir, MemInfoName))

	for _, src := range reports {
		if _, err := os.Stat(src); err != nil {
			continue
		}
		name := filepath.Base(src)
		if err := os.Rename(src, filepath.Join(r.Dir(), name)); err != nil {
			r.log.Printf(1, "could not move %s: %s", name, err)
		}
	}
}

// Convert writes the simulation's snapshots to data/ in the run directory.
func (r *Runner) Convert() error {
	if err := r.expect(Converting); err != nil {
		return err
	}

	m := io.NewManifest("", r.Ctx.Resolution)
	m.Run, m.Parameter, m.Value = r.Name, r.Ctx.ParamName, r.Value

	res, err := Convert(&Job{
		RawDir:         r.RawDir(),
		DataDir:        filepath.Join(r.Dir(), "data"),
		Pattern:        r.Ctx.Pattern,
		MinTimestep:    r.Ctx.MinStep,
		Resolution:     r.Ctx.Resolution,
		Hint:           r.Ctx.Hint,
		Options:        r.Ctx.Options,
		CacheSnapshots: r.Ctx.CacheSnapshots,
		Manifest:       m,
	}, r.log)
	if err != nil {
		return r.fail(err)
	}
	r.Result = res
	return nil
}

// RawDir returns the directory the simulation writes snapshots to.
func (r *Runner) RawDir() string { return filepath.Join(r.Dir(), "raw") }

// Cleanup deletes the raw snapshots and finishes the run.
func (r *Runner) Cleanup() error {
	if err := r.expect(Converting); err != nil {
		return err
	}
	if !r.Ctx.Cleanup {
		r.log.Printf(1, "keeping raw plt data in %s", r.RawDir())
		r.State = Done
		return nil
	}

	r.log.Print(1, "clean all raw plt data ...")
	if err := os.RemoveAll(r.RawDir()); err != nil {
		return r.fail(err)
	}
	r.State = Done
	return nil
}

func (r *Runner) expect(s State) error {
	if r.State != s {
		return fmt.Errorf(
			"run %s is %s, but this step needs it to be %s", r.Name, r.State, s,
		)
	}
	return nil
}

func (r *Runner) fail(err error) error {
	r.State, r.Err = Failed, err
	r.log.Printf(1, "experiment %s failed: %s", r.Name, err)
	return err
}
