package experiment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phil-mansfield/gridpipe/io"
	"github.com/phil-mansfield/gridpipe/params"
	"github.com/phil-mansfield/gridpipe/snapshot"
)

// NewRunContext builds a RunContext from a checked [Sweep] config. Paths are
// made absolute, since the simulation runs in a different directory than
// gridpipe does.
func NewRunContext(con *io.SweepConfig) (*RunContext, error) {
	policy, err := ParseExitPolicy(con.ExitPolicy)
	if err != nil {
		return nil, err
	}
	timeout, err := con.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	ovs, err := params.Parse(strings.NewReader(strings.Join(con.Override, "\n")))
	if err != nil {
		return nil, fmt.Errorf("Invalid 'Override' value: %w", err)
	}

	ctx := &RunContext{
		BaseConfig: con.BaseConfig,
		Nohup:      con.Nohup,

		ParamName:      con.ParamName,
		MinStep:        con.MinStep,
		MaxStep:        con.MaxStep,
		PlotVars:       con.PlotVars,
		DerivePlotVars: con.DerivePlotVars,
		Overrides:      ovs,

		Resolution:     con.Resolution,
		Pattern:        snapshot.Pattern{Prefix: con.SnapshotPrefix},
		Hint:           snapshot.Plotfile,
		Options:        snapshot.DefaultOptions(),
		CacheSnapshots: con.CacheSnapshots,
		Cleanup:        con.Cleanup,

		ExitPolicy: policy,
		Timeout:    timeout,
	}
	if len(con.Denylist) > 0 {
		ctx.Options.Denylist = con.Denylist
	}

	if ctx.OutputRoot, err = filepath.Abs(con.OutputRoot); err != nil {
		return nil, err
	}
	ctx.LogRoot = filepath.Join(ctx.OutputRoot, "log")

	workDir := con.WorkDir
	if workDir == "" {
		workDir = "."
	}
	if ctx.WorkDir, err = filepath.Abs(workDir); err != nil {
		return nil, err
	}

	// Bare names are looked up in $PATH.
	ctx.Executable = con.Executable
	if !filepath.IsAbs(con.Executable) &&
		strings.ContainsRune(con.Executable, os.PathSeparator) {
		ctx.Executable = filepath.Join(ctx.WorkDir, con.Executable)
	}

	return ctx, nil
}

// NewConvertJob builds the Job described by a checked [Convert] config.
func NewConvertJob(con *io.ConvertConfig) (*Job, error) {
	hint, err := snapshot.ParseHint(con.Kind)
	if err != nil {
		return nil, err
	}

	opt := snapshot.DefaultOptions()
	opt.Denylist = con.Denylist
	opt.BoxSize = con.BoxSize
	opt.PartType = con.PartType
	opt.ParticleMass = con.ParticleMass

	m := io.NewManifest("", con.Resolution)
	m.Run = filepath.Base(filepath.Clean(con.Input))

	return &Job{
		RawDir:         con.Input,
		DataDir:        con.Output,
		Pattern:        snapshot.Pattern{Prefix: con.Prefix, Suffix: con.Suffix},
		MinTimestep:    con.MinStep,
		Resolution:     con.Resolution,
		Hint:           hint,
		Options:        opt,
		Fields:         con.Field,
		CacheSnapshots: con.CacheSnapshots,
		Manifest:       m,
	}, nil
}
