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

package dataset

import (
	"math"

	"github.com/juju/errors"
	"github.com/samber/lo"

	"github.com/lowrank-io/lowrank/common/floats"
	"github.com/lowrank-io/lowrank/common/parallel"
)

// Dataset is an array of (rowIndex, colIndex, value) observations of a
// partially observed matrix, stored as parallel slices.
type Dataset struct {
	rowIndices []int32
	colIndices []int32
	values     []float32
	numRows    int
	numColumns int
}

// NewDataset creates an empty dataset for a numRows by numColumns matrix.
func NewDataset(numRows, numColumns, capacity int) *Dataset {
	return &Dataset{
		rowIndices: make([]int32, 0, capacity),
		colIndices: make([]int32, 0, capacity),
		values:     make([]float32, 0, capacity),
		numRows:    numRows,
		numColumns: numColumns,
	}
}

// AddObservation appends one observed entry. Indices outside the matrix
// are rejected.
func (d *Dataset) AddObservation(rowIndex, colIndex int, value float32) error {
	if rowIndex < 0 || rowIndex >= d.numRows {
		return errors.Errorf("row index %d is out of range [0, %d)", rowIndex, d.numRows)
	}
	if colIndex < 0 || colIndex >= d.numColumns {
		return errors.Errorf("column index %d is out of range [0, %d)", colIndex, d.numColumns)
	}
	d.rowIndices = append(d.rowIndices, int32(rowIndex))
	d.colIndices = append(d.colIndices, int32(colIndex))
	d.values = append(d.values, value)
	return nil
}

// Count returns the number of observations.
func (d *Dataset) Count() int {
	return len(d.values)
}

// Get returns the i-th observation as (rowIndex, colIndex, value).
func (d *Dataset) Get(i int) (int, int, float32) {
	return int(d.rowIndices[i]), int(d.colIndices[i]), d.values[i]
}

func (d *Dataset) RowIndices() []int32 {
	return d.rowIndices
}

func (d *Dataset) ColIndices() []int32 {
	return d.colIndices
}

func (d *Dataset) Values() []float32 {
	return d.values
}

func (d *Dataset) NumRows() int {
	return d.numRows
}

func (d *Dataset) NumColumns() int {
	return d.numColumns
}

// Mean returns the mean of observed values, or zero for an empty dataset.
func (d *Dataset) Mean() float32 {
	if len(d.values) == 0 {
		return 0
	}
	return floats.Mean(d.values)
}

// Split partitions the dataset positionally: the training set is the
// prefix of round((1-testFraction)*Count()) observations and the test
// set is the remaining suffix. The original order is preserved and no
// shuffling happens, so both parts view the receiver's storage.
func (d *Dataset) Split(testFraction float64) (*Dataset, *Dataset, error) {
	if testFraction < 0 || testFraction > 1 {
		return nil, nil, errors.Errorf("test fraction %f is out of range [0, 1]", testFraction)
	}
	trainSize := int(math.Round((1 - testFraction) * float64(d.Count())))
	trainSet := &Dataset{
		rowIndices: d.rowIndices[:trainSize:trainSize],
		colIndices: d.colIndices[:trainSize:trainSize],
		values:     d.values[:trainSize:trainSize],
		numRows:    d.numRows,
		numColumns: d.numColumns,
	}
	testSet := &Dataset{
		rowIndices: d.rowIndices[trainSize:],
		colIndices: d.colIndices[trainSize:],
		values:     d.values[trainSize:],
		numRows:    d.numRows,
		numColumns: d.numColumns,
	}
	return trainSet, testSet, nil
}

// Fold partitions the dataset into k contiguous positional folds for
// cross validation. The i-th tuple holds the training set (everything
// outside the i-th fold) and the test set (the i-th fold).
func (d *Dataset) Fold(k int) []lo.Tuple2[*Dataset, *Dataset] {
	indices := make([]int, d.Count())
	for i := range indices {
		indices[i] = i
	}
	folds := make([]lo.Tuple2[*Dataset, *Dataset], 0, k)
	for _, chunk := range parallel.Split(indices, k) {
		begin, end := chunk[0], chunk[len(chunk)-1]+1
		trainSet := NewDataset(d.numRows, d.numColumns, d.Count()-len(chunk))
		testSet := NewDataset(d.numRows, d.numColumns, len(chunk))
		for i := 0; i < d.Count(); i++ {
			target := trainSet
			if i >= begin && i < end {
				target = testSet
			}
			target.rowIndices = append(target.rowIndices, d.rowIndices[i])
			target.colIndices = append(target.colIndices, d.colIndices[i])
			target.values = append(target.values, d.values[i])
		}
		folds = append(folds, lo.Tuple2[*Dataset, *Dataset]{A: trainSet, B: testSet})
	}
	return folds
}
