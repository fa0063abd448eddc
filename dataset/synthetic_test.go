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
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewGenerator(t *testing.T) {
	_, err := NewGenerator(0, 15, 4, 42)
	assert.ErrorContains(t, err, "number of rows")
	_, err = NewGenerator(20, -1, 4, 42)
	assert.ErrorContains(t, err, "number of columns")
	_, err = NewGenerator(20, 15, 0, 42)
	assert.ErrorContains(t, err, "rank")

	g, err := NewGenerator(20, 15, 4, 42)
	assert.NoError(t, err)
	assert.Len(t, g.RowFactor(), 20)
	assert.Len(t, g.RowFactor()[0], 4)
	assert.Len(t, g.ColFactor(), 15)
	assert.Len(t, g.ColFactor()[0], 4)
}

func TestGenerator_Sample(t *testing.T) {
	g, err := NewGenerator(20, 15, 4, 42)
	assert.NoError(t, err)
	d := g.Sample(500)
	assert.Equal(t, 500, d.Count())
	assert.Equal(t, 20, d.NumRows())
	assert.Equal(t, 15, d.NumColumns())
	for i := 0; i < d.Count(); i++ {
		rowIndex, colIndex, value := d.Get(i)
		assert.GreaterOrEqual(t, rowIndex, 0)
		assert.Less(t, rowIndex, 20)
		assert.GreaterOrEqual(t, colIndex, 0)
		assert.Less(t, colIndex, 15)
		// values are the exact matrix entries
		assert.Equal(t, g.Truth(rowIndex, colIndex), value)
	}
	assert.Zero(t, g.Sample(0).Count())
}

func TestGenerator_Determinism(t *testing.T) {
	g1, err := NewGenerator(20, 15, 4, 42)
	assert.NoError(t, err)
	g2, err := NewGenerator(20, 15, 4, 42)
	assert.NoError(t, err)
	d1 := g1.Sample(100)
	d2 := g2.Sample(100)
	assert.Equal(t, d1.RowIndices(), d2.RowIndices())
	assert.Equal(t, d1.ColIndices(), d2.ColIndices())
	assert.Equal(t, d1.Values(), d2.Values())
}

func TestGenerator_Rank(t *testing.T) {
	g, err := NewGenerator(20, 15, 4, 42)
	assert.NoError(t, err)
	dense := mat.NewDense(20, 15, nil)
	for i := 0; i < 20; i++ {
		for j := 0; j < 15; j++ {
			dense.Set(i, j, float64(g.Truth(i, j)))
		}
	}
	var svd mat.SVD
	require.True(t, svd.Factorize(dense, mat.SVDNone))
	values := svd.Values(nil)
	require.Len(t, values, 15)
	for i, v := range values {
		if i < 4 {
			assert.Greater(t, v, 1e-3)
		} else {
			assert.Less(t, v, 1e-4)
		}
	}
}

func TestGenerator_SampleDistinct(t *testing.T) {
	g, err := NewGenerator(5, 4, 2, 42)
	assert.NoError(t, err)
	d, err := g.SampleDistinct(20)
	assert.NoError(t, err)
	assert.Equal(t, 20, d.Count())
	positions := mapset.NewSet[int]()
	for i := 0; i < d.Count(); i++ {
		rowIndex, colIndex, value := d.Get(i)
		positions.Add(rowIndex*4 + colIndex)
		assert.Equal(t, g.Truth(rowIndex, colIndex), value)
	}
	assert.Equal(t, 20, positions.Cardinality())

	_, err = g.SampleDistinct(21)
	assert.Error(t, err)
}
