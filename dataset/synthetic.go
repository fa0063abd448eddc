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
	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"

	"github.com/lowrank-io/lowrank/base"
	"github.com/lowrank-io/lowrank/common/floats"
)

// Generator synthesizes observations of an exactly low-rank matrix. The
// ground truth factors are drawn once at construction, so every sample
// taken from the same generator observes the same matrix.
type Generator struct {
	numRows    int
	numColumns int
	rank       int
	rowFactor  [][]float32
	colFactor  [][]float32
	rng        base.RandomGenerator
}

// NewGenerator draws ground truth factors for a numRows by numColumns
// matrix of the given rank. Factor entries are normal with mean 0 and
// standard deviation 1/sqrt(rank), which keeps matrix entries at unit
// scale regardless of rank.
func NewGenerator(numRows, numColumns, rank int, seed int64) (*Generator, error) {
	if numRows <= 0 {
		return nil, errors.Errorf("number of rows must be positive, got %d", numRows)
	}
	if numColumns <= 0 {
		return nil, errors.Errorf("number of columns must be positive, got %d", numColumns)
	}
	if rank <= 0 {
		return nil, errors.Errorf("rank must be positive, got %d", rank)
	}
	rng := base.NewRandomGenerator(seed)
	stdDev := 1 / math32.Sqrt(float32(rank))
	return &Generator{
		numRows:    numRows,
		numColumns: numColumns,
		rank:       rank,
		rowFactor:  rng.NormalMatrix(numRows, rank, 0, stdDev),
		colFactor:  rng.NormalMatrix(numColumns, rank, 0, stdDev),
		rng:        rng,
	}, nil
}

// RowFactor returns the ground truth row factors.
func (g *Generator) RowFactor() [][]float32 {
	return g.rowFactor
}

// ColFactor returns the ground truth column factors.
func (g *Generator) ColFactor() [][]float32 {
	return g.colFactor
}

// Truth returns the exact matrix entry at (rowIndex, colIndex).
func (g *Generator) Truth(rowIndex, colIndex int) float32 {
	return floats.Dot(g.rowFactor[rowIndex], g.colFactor[colIndex])
}

// Sample draws count observations with uniform independent row and
// column indices. Duplicate positions are permitted. Values are the
// exact noise-free matrix entries.
func (g *Generator) Sample(count int) *Dataset {
	d := NewDataset(g.numRows, g.numColumns, count)
	for i := 0; i < count; i++ {
		rowIndex := g.rng.Intn(g.numRows)
		colIndex := g.rng.Intn(g.numColumns)
		d.rowIndices = append(d.rowIndices, int32(rowIndex))
		d.colIndices = append(d.colIndices, int32(colIndex))
		d.values = append(d.values, g.Truth(rowIndex, colIndex))
	}
	return d
}

// SampleDistinct draws count observations at distinct positions. It
// fails when count exceeds the number of matrix entries.
func (g *Generator) SampleDistinct(count int) (*Dataset, error) {
	if count > g.numRows*g.numColumns {
		return nil, errors.Errorf("cannot sample %d distinct entries from a %d x %d matrix",
			count, g.numRows, g.numColumns)
	}
	d := NewDataset(g.numRows, g.numColumns, count)
	sampled := mapset.NewSet[int]()
	for d.Count() < count {
		rowIndex := g.rng.Intn(g.numRows)
		colIndex := g.rng.Intn(g.numColumns)
		position := rowIndex*g.numColumns + colIndex
		if !sampled.Contains(position) {
			sampled.Add(position)
			d.rowIndices = append(d.rowIndices, int32(rowIndex))
			d.colIndices = append(d.colIndices, int32(colIndex))
			d.values = append(d.values, g.Truth(rowIndex, colIndex))
		}
	}
	return d, nil
}
