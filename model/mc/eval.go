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
	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/lowrank-io/lowrank/base/log"
	"github.com/lowrank-io/lowrank/common/parallel"
	"github.com/lowrank-io/lowrank/dataset"
)

// Evaluator measures the distance between predictions and ground truth.
// Both slices share one length.
type Evaluator func(predictions, truth []float32) float32

// MAE is the mean absolute error. It returns 0 on empty input.
func MAE(predictions, truth []float32) float32 {
	if len(predictions) == 0 {
		return 0
	}
	sum := float32(0)
	for i := range predictions {
		sum += math32.Abs(predictions[i] - truth[i])
	}
	return sum / float32(len(predictions))
}

// RMSE is the root mean squared error. It returns 0 on empty input.
func RMSE(predictions, truth []float32) float32 {
	if len(predictions) == 0 {
		return 0
	}
	sum := float32(0)
	for i := range predictions {
		diff := predictions[i] - truth[i]
		sum += diff * diff
	}
	return math32.Sqrt(sum / float32(len(predictions)))
}

// Evaluate scores a model on a test set with a list of evaluators.
func Evaluate(m MatrixCompletion, testSet *dataset.Dataset, jobs int, evaluators ...Evaluator) []float32 {
	predictions, truth := Predictions(m, testSet, jobs)
	results := make([]float32, len(evaluators))
	for i, evaluator := range evaluators {
		results[i] = evaluator(predictions, truth)
	}
	return results
}

// Predictions predicts every entry of a test set in parallel and returns the
// predictions with the ground truth. Entries that fail to predict are scored
// as zero.
func Predictions(m MatrixCompletion, testSet *dataset.Dataset, jobs int) ([]float32, []float32) {
	predictions := make([]float32, testSet.Count())
	parallel.For(testSet.Count(), jobs, func(i int) {
		rowIndex, colIndex, _ := testSet.Get(i)
		prediction, err := m.Predict(rowIndex, colIndex)
		if err != nil {
			log.Logger().Warn("failed to predict",
				zap.Int("row_index", rowIndex),
				zap.Int("column_index", colIndex),
				zap.Error(err))
			return
		}
		predictions[i] = prediction
	})
	return predictions, testSet.Values()
}

// Coverage returns the fraction of test entries whose row and column were
// both observed during training.
func Coverage(m MatrixCompletion, testSet *dataset.Dataset) float32 {
	if testSet.Count() == 0 {
		return 0
	}
	covered := 0
	for i := 0; i < testSet.Count(); i++ {
		rowIndex, colIndex, _ := testSet.Get(i)
		if m.IsRowObserved(rowIndex) && m.IsColObserved(colIndex) {
			covered++
		}
	}
	return float32(covered) / float32(testSet.Count())
}
