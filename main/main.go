package main

import (
	"context"
	"flag"
	"fmt"
	stdio "io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	plt "github.com/phil-mansfield/pyplot"

	"github.com/phil-mansfield/gridpipe/analyze"
	"github.com/phil-mansfield/gridpipe/compress"
	"github.com/phil-mansfield/gridpipe/experiment"
	"github.com/phil-mansfield/gridpipe/io"
	"github.com/phil-mansfield/gridpipe/sweep"
)

// FileGroup holds the files which need to be closed before exiting.
type FileGroup struct {
	log *os.File
}

// Close closes the files inside FileGroup.
func (fg *FileGroup) Close() {
	if fg.log != nil {
		if err := fg.log.Close(); err != nil {
			log.Fatal(err.Error())
		}
	}
}

// setLogFile sends log output to fname as well as stderr.
func (fg *FileGroup) setLogFile(fname string) {
	if fname == "" {
		return
	}
	f, err := os.Create(fname)
	if err != nil {
		log.Fatal(err.Error())
	}
	fg.log = f
	log.SetOutput(stdio.MultiWriter(os.Stderr, f))
}

func main() {
	var (
		sweepStr, runStr, convertStr   string
		inspectStr, packStr, plotStr   string
		exampleConfig                  string
		name, value, output, paramName string
		resolution, level              int
		remove                         bool
	)
	vars := map[string]*string{
		"Sweep":         &sweepStr,
		"Run":           &runStr,
		"Convert":       &convertStr,
		"Inspect":       &inspectStr,
		"Pack":          &packStr,
		"Plot":          &plotStr,
		"ExampleConfig": &exampleConfig,
	}

	flag.StringVar(
		&sweepStr, "Sweep", "",
		"Configuration file for [Sweep] mode: runs one experiment per "+
			"parameter value.",
	)
	flag.StringVar(
		&runStr, "Run", "",
		"[Sweep] configuration file used to run a single experiment. "+
			"Requires -Name and -Value.",
	)
	flag.StringVar(
		&convertStr, "Convert", "",
		"Configuration file for [Convert] mode: converts existing "+
			"snapshots into raw grids.",
	)
	flag.StringVar(
		&inspectStr, "Inspect", "",
		"Raw grid file to print statistics for.",
	)
	flag.StringVar(
		&packStr, "Pack", "",
		"Data directory whose raw grids are compressed into .raw.zst files.",
	)
	flag.StringVar(
		&plotStr, "Plot", "",
		"Sweep summary file (log/summary.txt) to plot run times from.",
	)
	flag.StringVar(
		&exampleConfig, "ExampleConfig", "",
		"Prints an example configuration file of the specified type to "+
			"stdout. Accepted arguments are 'Sweep' and 'Convert'.",
	)

	flag.StringVar(&name, "Name", "", "Run name used by -Run, e.g. exp_001.")
	flag.StringVar(&value, "Value", "", "Parameter value used by -Run.")
	flag.IntVar(
		&resolution, "Resolution", 0,
		"Cells on a side of the grid read by -Inspect. Inferred from the "+
			"file size by default.",
	)
	flag.IntVar(
		&level, "Level", compress.DefaultLevel, "zstd level used by -Pack.",
	)
	flag.BoolVar(
		&remove, "Remove", false,
		"Delete raw grids once -Pack has compressed them.",
	)
	flag.StringVar(
		&output, "Output", "sweep.png", "Image file written by -Plot.",
	)
	flag.StringVar(
		&paramName, "Param", "parameter", "x-axis label used by -Plot.",
	)

	flag.Parse()

	// Figure out the mode and fail with a descriptive error if the user gave
	// incorrect flags.
	modeName, err := getModeName(vars)
	if err != nil {
		log.Fatal(err.Error())
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	fg := &FileGroup{}
	defer fg.Close()

	switch modeName {
	case "Sweep":
		con, err := io.ReadSweepConfig(sweepStr)
		if err != nil {
			log.Fatal(err.Error())
		}
		fg.setLogFile(con.LogFile)
		sweepMain(ctx, con)

	case "Run":
		if name == "" || value == "" {
			log.Fatal("-Run requires both -Name and -Value to be set.")
		}
		con, err := io.ReadSweepConfig(runStr)
		if err != nil {
			log.Fatal(err.Error())
		}
		fg.setLogFile(con.LogFile)
		runMain(ctx, con, name, value)

	case "Convert":
		con, err := io.ReadConvertConfig(convertStr)
		if err != nil {
			log.Fatal(err.Error())
		}
		fg.setLogFile(con.LogFile)
		convertMain(con)

	case "Inspect":
		inspectMain(inspectStr, resolution)

	case "Pack":
		sum, err := compress.Pack(packStr, level, remove)
		if err != nil {
			log.Fatal(err.Error())
		}
		log.Printf(
			"Packed %d grids: %d bytes -> %d bytes (ratio %.2f).",
			sum.Files, sum.BytesIn, sum.BytesOut, sum.Ratio(),
		)

	case "Plot":
		recs, err := sweep.ReadSummary(plotStr)
		if err != nil {
			log.Fatal(err.Error())
		}
		if err := sweep.PlotSummary(recs, paramName, output); err != nil {
			log.Fatal(err.Error())
		}
		plt.Execute()

	case "ExampleConfig":
		switch exampleConfig {
		case "Sweep":
			fmt.Println(io.ExampleSweepFile)
		case "Convert":
			fmt.Println(io.ExampleConvertFile)
		default:
			log.Fatal(
				"Unrecognized 'ExampleConfig' argument. Only recognized " +
					"arguments are 'Sweep' and 'Convert'.",
			)
		}

	default:
		panic("Impossible")
	}
}

// getModeName returns the name of the mode and fails with a descriptive error
// if the user provided less or more than one mode flag.
func getModeName(vars map[string]*string) (string, error) {
	setNames := []string{}
	for name, varPtr := range vars {
		if *varPtr != "" {
			setNames = append(setNames, name)
		}
	}
	sort.Strings(setNames)

	if len(setNames) == 0 {
		return "", fmt.Errorf("No mode flags have been set.")
	}

	if len(setNames) > 1 {
		return "", fmt.Errorf(
			"The following flags were set: %s, but gridpipe "+
				"only accepts one mode flag at a time.",
			strings.Join(setNames, ", "),
		)
	}

	return setNames[0], nil
}

func sweepMain(ctx context.Context, con *io.SweepConfig) {
	values, err := sweep.Values(
		con.Min, con.Max, con.Count, con.ValuesFile, con.ValueFormat,
	)
	if err != nil {
		log.Fatal(err.Error())
	}
	rc, err := experiment.NewRunContext(con)
	if err != nil {
		log.Fatal(err.Error())
	}

	log.Printf(
		"Sweeping %s over %d values, writing to %s.",
		rc.ParamName, len(values), rc.OutputRoot,
	)
	d := sweep.NewDriver(rc, values)
	if err := d.Run(ctx); err != nil {
		log.Fatal(err.Error())
	}

	failed := d.Failed()
	log.Printf("%d of %d runs failed.", len(failed), len(d.Records))
	for _, rec := range failed {
		log.Printf("  %s (%s = %s): %s", rec.Name, rc.ParamName, rec.Value, rec.Err)
	}
}

func runMain(ctx context.Context, con *io.SweepConfig, name, value string) {
	rc, err := experiment.NewRunContext(con)
	if err != nil {
		log.Fatal(err.Error())
	}

	r := experiment.NewRunner(rc, name, value)
	if err := r.Run(ctx); err != nil {
		log.Fatalf("Run %s ended in state %s: %s", name, r.State, err)
	}
	log.Printf(
		"Run %s wrote %d grids to %s.", name, r.Result.Grids,
		filepath.Join(r.Dir(), "data"),
	)
}

func convertMain(con *io.ConvertConfig) {
	job, err := experiment.NewConvertJob(con)
	if err != nil {
		log.Fatal(err.Error())
	}

	lg := experiment.NewStdoutLogger(os.Stdout)
	res, err := experiment.Convert(job, lg)
	if err != nil {
		log.Fatal(err.Error())
	}
	log.Printf(
		"Wrote %d %s grids for %d fields to %s; skipped %d snapshots.",
		res.Grids, res.Kind, len(res.Fields), con.Output, len(res.Skipped),
	)
}

func inspectMain(fname string, cells int) {
	var err error
	if cells <= 0 {
		if cells, err = io.GridCells(fname); err != nil {
			log.Fatal(err.Error())
		}
	}

	xs, err := io.ReadGrid(fname, cells)
	if err != nil {
		log.Fatal(err.Error())
	}
	fmt.Printf("%s: %d^3 %s, %s\n", fname, cells, io.GridDtype,
		analyze.Describe(analyze.Float64s(xs)))

	m, err := io.ReadManifest(filepath.Dir(filepath.Dir(fname)))
	if err == nil {
		fmt.Printf(
			"run %s, %s = %s, source %s, domain %v - %v\n",
			m.Run, m.Parameter, m.Value, m.Source, m.Domain.Lo, m.Domain.Hi,
		)
	}
}
