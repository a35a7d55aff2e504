package sweep

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/phil-mansfield/table"

	"github.com/phil-mansfield/gridpipe/experiment"
)

// SummaryName is the file name of the run summary in the log directory.
const SummaryName = "summary.txt"

// Record is one row of the run summary.
type Record struct {
	Index    int
	Name     string
	Value    string
	Minutes  float64
	ExitCode int
	State    experiment.State
	Grids    int
	Skipped  int
	Err      error
}

// NewRecord summarizes a finished run.
func NewRecord(index int, r *experiment.Runner, minutes float64) Record {
	rec := Record{
		Index: index, Name: r.Name, Value: r.Value, Minutes: minutes,
		ExitCode: r.ExitCode, State: r.State, Err: r.Err,
	}
	if r.Result != nil {
		rec.Grids, rec.Skipped = r.Result.Grids, len(r.Result.Skipped)
	}
	return rec
}

// WriteSummary writes every record to path as a whitespace-separated table.
// The file is rewritten from scratch so it can be called after every run.
func WriteSummary(path string, recs []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	wr := bufio.NewWriter(f)
	fmt.Fprintf(wr, "# Column 0 - Index\n")
	fmt.Fprintf(wr, "# Column 1 - Parameter value\n")
	fmt.Fprintf(wr, "# Column 2 - Wall-clock time [minutes]\n")
	fmt.Fprintf(wr, "# Column 3 - Simulation exit code (-1 if it never exited)\n")
	fmt.Fprintf(wr, "# Column 4 - Final state (%d = %s, %d = %s)\n",
		int(experiment.Done), experiment.Done,
		int(experiment.Failed), experiment.Failed)
	fmt.Fprintf(wr, "# Column 5 - Grids written\n")
	fmt.Fprintf(wr, "# Column 6 - Snapshots skipped\n")
	for _, rec := range recs {
		fmt.Fprintf(wr, "%4d %s %10.4f %4d %d %6d %4d\n",
			rec.Index, rec.Value, rec.Minutes, rec.ExitCode,
			int(rec.State), rec.Grids, rec.Skipped)
	}

	if err := wr.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadSummary reads a table written by WriteSummary. Run names are rebuilt
// from the index and Err is always nil.
func ReadSummary(path string) ([]Record, error) {
	cols, err := table.ReadTable(path, []int{0, 1, 2, 3, 4, 5, 6}, nil)
	if err != nil {
		return nil, err
	}

	recs := make([]Record, len(cols[0]))
	for i := range recs {
		recs[i] = Record{
			Index:    int(cols[0][i]),
			Name:     RunName(int(cols[0][i])),
			Value:    strconv.FormatFloat(cols[1][i], 'g', -1, 64),
			Minutes:  cols[2][i],
			ExitCode: int(cols[3][i]),
			State:    experiment.State(cols[4][i]),
			Grids:    int(cols[5][i]),
			Skipped:  int(cols[6][i]),
		}
	}
	return recs, nil
}
