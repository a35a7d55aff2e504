package experiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// Process is a simulation started by Start. It runs in its own process
// group, and the group is killed if the process outlives its timeout or
// context. Exactly one call to Wait must be made.
type Process struct {
	cmd  *exec.Cmd
	done chan error
}

// Start launches name with args in dir. Stdout and stderr both go to out.
// If nohup is set the command is run through nohup.
func Start(name string, args []string, dir string, out io.Writer, nohup bool) (*Process, error) {
	if nohup {
		args = append([]string{name}, args...)
		name = "nohup"
	}

	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdout, cmd.Stderr = out, out
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, &SubprocessError{"start", err}
	}

	p := &Process{cmd: cmd, done: make(chan error, 1)}
	go func() { p.done <- cmd.Wait() }()
	return p, nil
}

// Pid returns the process ID, which is also the process group ID.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Wait blocks until the process exits and returns its exit code. If timeout
// is positive and passes first, or ctx is cancelled first, the process group
// is killed and a *SubprocessError is returned.
func (p *Process) Wait(ctx context.Context, timeout time.Duration) (int, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case err := <-p.done:
		return exitCode(err)
	case <-expired:
		p.kill()
		return -1, &SubprocessError{
			"timeout", fmt.Errorf("killed after %s", timeout),
		}
	case <-ctx.Done():
		p.kill()
		return -1, &SubprocessError{"cancel", ctx.Err()}
	}
}

// kill kills the process group and waits for the process to be reaped.
func (p *Process) kill() {
	killProcessGroup(p.cmd)
	<-p.done
}

func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, &SubprocessError{"wait", err}
}
