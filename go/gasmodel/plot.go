// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package gasmodel

import (
	"image/color"

	"github.com/Fantom-foundation/fvm-conformance/go/bench"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotFit renders observed against predicted costs of the given samples.
// Perfect predictions lie on the diagonal. The image format is derived
// from the file extension of the path.
func PlotFit(samples []bench.Sample, model *CostModel, path string) error {
	p := plot.New()
	p.Title.Text = "Gas model fit"
	p.X.Label.Text = "observed cost"
	p.Y.Label.Text = "predicted cost"

	points := make(plotter.XYs, len(samples))
	limit := 0.0
	for i, sample := range samples {
		points[i].X = sample.Cost
		points[i].Y = model.Predict(sample.Features)
		limit = max(limit, points[i].X, points[i].Y)
	}

	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Color = color.RGBA{R: 66, G: 133, B: 244, A: 255}
	scatter.GlyphStyle.Radius = vg.Points(3)

	diagonal := plotter.NewFunction(func(x float64) float64 { return x })
	diagonal.Color = color.RGBA{R: 219, G: 68, B: 55, A: 255}
	diagonal.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(scatter, diagonal, plotter.NewGrid())
	p.X.Min, p.Y.Min = 0, 0
	p.X.Max, p.Y.Max = limit, limit
	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}
