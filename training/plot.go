package training

import (
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/findhome/pkg/errors"
)

// PlotName is the file name of the evaluation scatter under the artifact
// directory.
const PlotName = "evaluation.png"

// WriteScatter draws predicted against actual prices with the identity line
// and saves it as PNG at path.
func WriteScatter(path string, actual, predicted []float64) error {
	if len(actual) != len(predicted) {
		return errors.NewDimensionError("WriteScatter", len(actual), len(predicted), 0)
	}
	if len(actual) == 0 {
		return errors.NewModelError("WriteScatter", "empty data", errors.ErrEmptyData)
	}

	p := plot.New()
	p.Title.Text = "Predicted vs actual price"
	p.X.Label.Text = "actual"
	p.Y.Label.Text = "predicted"

	pts := make(plotter.XYs, len(actual))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range actual {
		pts[i] = plotter.XY{X: actual[i], Y: predicted[i]}
		lo = math.Min(lo, math.Min(actual[i], predicted[i]))
		hi = math.Max(hi, math.Max(actual[i], predicted[i]))
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "build scatter")
	}
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Radius = vg.Points(1.8)

	identity, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return errors.Wrap(err, "build identity line")
	}
	identity.LineStyle.Width = vg.Points(1)
	identity.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(s, identity, plotter.NewGrid())
	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.NewDataAccessError("WriteScatter", path, "cannot save plot", err)
	}
	return nil
}
