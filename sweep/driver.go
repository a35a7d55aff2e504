package sweep

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/phil-mansfield/gridpipe/experiment"
)

// AppLogName is the file name of the sweep log in the log directory.
const AppLogName = "app.log"

// RunName returns the name of the run with the given 1-based index.
func RunName(index int) string { return fmt.Sprintf("exp_%03d", index) }

// Driver runs a sweep: one experiment per value, one at a time. A failed run
// is logged and recorded and the sweep moves on to the next value.
type Driver struct {
	Ctx    *experiment.RunContext
	Values []string

	Records []Record
	metrics *Metrics
	log     *experiment.Logger
}

// NewDriver returns a driver which runs one experiment for every value.
func NewDriver(ctx *experiment.RunContext, values []string) *Driver {
	return &Driver{Ctx: ctx, Values: values, metrics: NewMetrics(len(values))}
}

// Run deletes and recreates the output root, then runs every experiment.
// It returns an error if the sweep itself could not be set up or if ctx was
// cancelled. Failed runs are not errors; see Records.
func (d *Driver) Run(ctx context.Context) error {
	if err := os.RemoveAll(d.Ctx.OutputRoot); err != nil {
		return err
	}
	if err := os.MkdirAll(d.Ctx.LogRoot, 0755); err != nil {
		return err
	}

	lg, err := experiment.NewLogger(
		filepath.Join(d.Ctx.LogRoot, AppLogName), d.Ctx.Stdout,
	)
	if err != nil {
		return err
	}
	d.log = lg
	defer lg.Close()

	d.log.Printf(0, "exp begin [counts: %d]", len(d.Values))
	for i, value := range d.Values {
		if err := ctx.Err(); err != nil {
			d.log.Printf(0, "sweep cancelled after %d runs", i)
			return err
		}
		if err := d.runOne(ctx, i+1, value); err != nil {
			return err
		}
	}
	d.log.Print(0, "all exp done")
	return nil
}

func (d *Driver) runOne(ctx context.Context, index int, value string) error {
	name := RunName(index)
	d.log.Print(0, "")
	d.log.Printf(1, "Running experiment %s, %s is %s", name, d.Ctx.ParamName, value)

	start := time.Now()
	r := experiment.NewRunner(d.Ctx, name, value)
	runErr := r.Run(ctx)
	minutes := time.Since(start).Minutes()

	if runErr != nil {
		d.log.Printf(1, "Experiment %s failed in state %s: %s",
			name, r.State, runErr)
	}
	d.log.Printf(1, "Done experiment %s, time: %.4f mins", name, minutes)
	d.log.Print(0, "")

	rec := NewRecord(index, r, minutes)
	d.Records = append(d.Records, rec)
	d.metrics.Observe(rec)

	if err := WriteSummary(filepath.Join(d.Ctx.LogRoot, SummaryName), d.Records); err != nil {
		return err
	}
	return d.metrics.WriteTextfile(filepath.Join(d.Ctx.LogRoot, MetricsName))
}

// Failed returns the records of every failed run.
func (d *Driver) Failed() []Record {
	var out []Record
	for _, rec := range d.Records {
		if rec.State == experiment.Failed {
			out = append(out, rec)
		}
	}
	return out
}
