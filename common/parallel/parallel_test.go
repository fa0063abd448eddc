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
package parallel

import (
	"context"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func rangeInt(n int) []int {
	a := make([]int, n)
	for i := range a {
		a[i] = i
	}
	return a
}

func TestParallel(t *testing.T) {
	a := rangeInt(10000)
	b := make([]int, len(a))
	workerIds := make([]int, len(a))
	// multiple threads
	err := Parallel(context.Background(), len(a), 4, func(workerId, jobId int) error {
		b[jobId] = a[jobId]
		workerIds[jobId] = workerId
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, a, b)
	workersSet := mapset.NewSet(workerIds...)
	assert.GreaterOrEqual(t, 4, workersSet.Cardinality())
	// single thread
	err = Parallel(context.Background(), len(a), 1, func(workerId, jobId int) error {
		b[jobId] = a[jobId]
		workerIds[jobId] = workerId
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, a, b)
	workersSet = mapset.NewSet(workerIds...)
	assert.Equal(t, 1, workersSet.Cardinality())
}

func TestParallelFail(t *testing.T) {
	// multiple threads
	err := Parallel(context.Background(), 10000, 4, func(workerId, jobId int) error {
		if jobId == 42 {
			return errors.New("error from 42")
		}
		return nil
	})
	assert.Error(t, err)
	// a single thread stops at the first failure
	count := 0
	err = Parallel(context.Background(), 10000, 1, func(workerId, jobId int) error {
		count++
		if jobId == 42 {
			return errors.New("error from 42")
		}
		return nil
	})
	assert.Error(t, err)
	assert.Equal(t, 43, count)
}

func TestParallelCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Parallel(ctx, 100, 1, func(workerId, jobId int) error {
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	err = Parallel(ctx, 100, 4, func(workerId, jobId int) error {
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFor(t *testing.T) {
	a := rangeInt(10000)
	b := make([]int, len(a))
	// multiple threads
	For(len(a), 4, func(jobId int) {
		b[jobId] = a[jobId]
	})
	assert.Equal(t, a, b)
	// single thread
	For(len(a), 1, func(jobId int) {
		b[jobId] = a[jobId]
	})
	assert.Equal(t, a, b)
}

func TestForEach(t *testing.T) {
	a := rangeInt(10000)
	b := make([]int, len(a))
	// multiple threads
	ForEach(a, 4, func(i, v int) {
		b[i] = v
	})
	assert.Equal(t, a, b)
	// single thread
	ForEach(a, 1, func(i, v int) {
		b[i] = v
	})
	assert.Equal(t, a, b)
}

func TestSplit(t *testing.T) {
	a := []int{1, 2, 3, 4, 5, 6}
	b := Split(a, 3)
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5, 6}}, b)

	a = []int{1, 2, 3, 4, 5, 6, 7}
	b = Split(a, 3)
	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5}, {6, 7}}, b)

	// more chunks than elements
	b = Split([]int{1, 2}, 3)
	assert.Equal(t, [][]int{{1}, {2}}, b)
}
