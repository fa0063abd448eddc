// Copyright 2025 lowrank Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mc

import (
	"fmt"
	"sort"

	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"modernc.org/sortutil"
)

// PlotLossCurve renders the per-epoch train and validate loss histories of
// a fit into a PNG file.
func PlotLossCurve(path string, trainLoss, validateLoss []float32) error {
	if len(trainLoss) == 0 {
		return errors.New("no loss history to plot")
	}
	if len(trainLoss) != len(validateLoss) {
		return errors.Errorf("mismatched loss histories: %d train and %d validate", len(trainLoss), len(validateLoss))
	}
	trainPoints := make(plotter.XYs, len(trainLoss))
	validatePoints := make(plotter.XYs, len(validateLoss))
	for i := range trainLoss {
		trainPoints[i] = plotter.XY{X: float64(i + 1), Y: float64(trainLoss[i])}
		validatePoints[i] = plotter.XY{X: float64(i + 1), Y: float64(validateLoss[i])}
	}
	p := plot.New()
	p.Title.Text = "Loss Curve"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "MAE"
	if err := plotutil.AddLinePoints(p, "train", trainPoints, "validate", validatePoints); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(p.Save(8*vg.Inch, 4*vg.Inch, path))
}

// PlotResidualHistogram renders the distribution of prediction residuals
// into a PNG file. The title carries the mean, standard deviation and 95th
// percentile of the residuals.
func PlotResidualHistogram(path string, predictions, truth []float32) error {
	if len(predictions) == 0 {
		return errors.New("no residuals to plot")
	}
	if len(predictions) != len(truth) {
		return errors.Errorf("mismatched arrays: %d predictions and %d truth", len(predictions), len(truth))
	}
	residuals := make(plotter.Values, len(predictions))
	absResiduals := make([]float32, len(predictions))
	for i := range predictions {
		residual := predictions[i] - truth[i]
		residuals[i] = float64(residual)
		absResiduals[i] = math32.Abs(residual)
	}
	sort.Sort(sortutil.Float32Slice(absResiduals))
	p95 := absResiduals[int(float64(len(absResiduals))*0.95)]
	p := plot.New()
	p.Title.Text = fmt.Sprintf("mean = %.4g, std = %.4g, p95(|res|) = %.4g",
		stat.Mean(residuals, nil), stat.StdDev(residuals, nil), p95)
	p.X.Label.Text = "residual"
	p.Y.Label.Text = "count"
	histogram, err := plotter.NewHist(residuals, 32)
	if err != nil {
		return errors.Trace(err)
	}
	p.Add(histogram)
	return errors.Trace(p.Save(8*vg.Inch, 4*vg.Inch, path))
}
