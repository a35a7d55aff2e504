package sweep

import (
	"fmt"
	"strconv"

	plt "github.com/phil-mansfield/pyplot"

	"github.com/phil-mansfield/gridpipe/experiment"
)

// PlotSummary queues a plot of run duration against parameter value, with
// failed runs drawn in red, and saves it to fname. Nothing is drawn until
// plt.Execute is called.
func PlotSummary(recs []Record, param, fname string) error {
	var doneXs, doneYs, failXs, failYs []float64
	for _, rec := range recs {
		x, err := strconv.ParseFloat(rec.Value, 64)
		if err != nil {
			return fmt.Errorf(
				"Value '%s' of run %d is not a number.", rec.Value, rec.Index,
			)
		}
		if rec.State == experiment.Done {
			doneXs, doneYs = append(doneXs, x), append(doneYs, rec.Minutes)
		} else {
			failXs, failYs = append(failXs, x), append(failYs, rec.Minutes)
		}
	}

	plt.Figure(plt.FigSize(8, 6))
	if len(doneXs) > 0 {
		plt.Plot(doneXs, doneYs, "o", plt.C("k"))
	}
	if len(failXs) > 0 {
		plt.Plot(failXs, failYs, "x", plt.C("r"), plt.LW(2))
	}

	plt.Title(fmt.Sprintf(
		"%d runs, %d failed", len(recs), len(failXs),
	))
	plt.XLabel(param, plt.FontSize(16))
	plt.YLabel("Run time [minutes]", plt.FontSize(16))
	plt.Grid(plt.Axis("y"))
	plt.SaveFig(fname)
	return nil
}
