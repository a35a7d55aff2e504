package io

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvOverrides are the settings which may be overridden from the
// environment. This lets batch scripts point the same config file at a
// different scratch disk or binary without editing it.
type EnvOverrides struct {
	OutputRoot string `env:"GRIDPIPE_OUTPUT_ROOT"`
	Executable string `env:"GRIDPIPE_EXECUTABLE"`
	WorkDir    string `env:"GRIDPIPE_WORK_DIR"`
	ExitPolicy string `env:"GRIDPIPE_EXIT_POLICY"`
	Timeout    string `env:"GRIDPIPE_TIMEOUT"`
	Resolution int    `env:"GRIDPIPE_RESOLUTION"`
}

// ParseEnv populates target from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ApplyEnv overwrites every parameter of con with a set GRIDPIPE_*
// environment variable.
func (con *SweepConfig) ApplyEnv() error {
	ov := EnvOverrides{}
	if err := ParseEnv(&ov); err != nil {
		return err
	}

	if ov.OutputRoot != "" {
		con.OutputRoot = ov.OutputRoot
	}
	if ov.Executable != "" {
		con.Executable = ov.Executable
	}
	if ov.WorkDir != "" {
		con.WorkDir = ov.WorkDir
	}
	if ov.ExitPolicy != "" {
		con.ExitPolicy = ov.ExitPolicy
	}
	if ov.Timeout != "" {
		con.Timeout = ov.Timeout
	}
	if ov.Resolution != 0 {
		con.Resolution = ov.Resolution
	}
	return nil
}
