// Package plot renders the loss and accuracy curves of a run as PNG files.
// It implements the trainer's Reporter interface so the numerical loop stays
// decoupled from display concerns.
package plot

import (
	"log"
	"path/filepath"

	"github.com/pkg/errors"
	gonumplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/dvd42/lesionnet/internal/metrics"
)

// CurvePlotter rewrites loss.png and accuracy.png under Dir after each epoch.
type CurvePlotter struct {
	Dir string
}

// EpochEnd redraws both curve files. Render failures are logged, not fatal:
// plotting is a display concern and must not stop training.
func (c *CurvePlotter) EpochEnd(epoch int, hist *metrics.History) {
	if err := c.Render(hist); err != nil {
		log.Printf("plot: %v", err)
	}
}

// Render writes the current curves for hist.
func (c *CurvePlotter) Render(hist *metrics.History) error {
	if err := writeCurves(filepath.Join(c.Dir, "loss.png"), "Loss", hist.TrainLoss, hist.ValLoss); err != nil {
		return err
	}
	return writeCurves(filepath.Join(c.Dir, "accuracy.png"), "Accuracy", hist.TrainAcc, hist.ValAcc)
}

func writeCurves(path, title string, train, val []float64) error {
	p := gonumplot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = title
	p.Legend.Top = true

	if err := plotutil.AddLinePoints(p, "train", series(train), "validation", series(val)); err != nil {
		return errors.Wrap(err, "add series")
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}

func series(values []float64) plotter.XYs {
	xys := make(plotter.XYs, len(values))
	for i, v := range values {
		xys[i].X = float64(i)
		xys[i].Y = v
	}
	return xys
}
