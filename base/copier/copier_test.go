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

package copier

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestScalar(t *testing.T) {
	var a = 1
	var b int
	err := Copy(&b, a)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
	// not a pointer
	err = Copy(b, a)
	assert.True(t, errors.IsNotValid(err))
	// type mismatch
	var c bool
	err = Copy(&c, a)
	assert.True(t, errors.IsNotValid(err))
	// copy to interface
	var d interface{}
	err = Copy(&d, a)
	assert.NoError(t, err)
	assert.Equal(t, a, d)
}

func TestSlice(t *testing.T) {
	a := [][]float32{{1}, {2}, {3}, {4}}
	b := make([][]float32, 0)
	err := Copy(&b, a)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
	// deep copy
	a[0][0] = 100
	assert.Equal(t, float32(1), b[0][0])
	// reuse pre-allocated storage
	var row = []float32{10}
	c := [][]float32{row, {20}, {30}, {40}}
	err = Copy(&c, a)
	assert.NoError(t, err)
	row[0] = 100
	assert.Equal(t, float32(100), c[0][0])
	// copy to larger slice keeps capacity
	var d = [][]float32{{10}, {20}, {30}, {40}, {50}}
	err = Copy(&d, a)
	assert.NoError(t, err)
	assert.Equal(t, a, d)
	assert.Equal(t, 5, cap(d))
}

func TestMap(t *testing.T) {
	a := map[string][]float32{"u": {1}, "v": {2}}
	b := map[string][]float32{"w": {100}}
	err := Copy(&b, a)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
	// deep copy
	a["u"][0] = 100
	assert.Equal(t, float32(1), b["u"][0])
}

type table struct {
	Rank    int
	Factors [][]float32
}

type other struct {
	Rank int
}

func TestStruct(t *testing.T) {
	a := table{Rank: 2, Factors: [][]float32{{1, 2}}}
	b := table{Rank: 3, Factors: [][]float32{{4, 5}}}
	err := Copy(&b, a)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
	// deep copy
	a.Factors[0][0] = 100
	assert.Equal(t, float32(1), b.Factors[0][0])
	// struct mismatch
	var c other
	err = Copy(&c, a)
	assert.True(t, errors.IsNotValid(err))
}

func TestPtr(t *testing.T) {
	a := &table{Rank: 2, Factors: [][]float32{{1, 2}}}
	b := &table{Rank: 3, Factors: [][]float32{{4, 5}}}
	err := Copy(&b, a)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
	// nil destination pointer is allocated
	var c *table
	err = Copy(&c, a)
	assert.NoError(t, err)
	assert.Equal(t, a, c)
}

func TestInterface(t *testing.T) {
	var a = []interface{}{&table{Rank: 2, Factors: [][]float32{{3}}}, []int{100}, 1}
	var b []interface{}
	err := Copy(&b, a)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
	// reuse memory held by the interface
	var factors = [][]float32{{30}}
	var c = []interface{}{&table{Rank: 20, Factors: factors}, []int{1000}, 10}
	err = Copy(&c, a)
	assert.NoError(t, err)
	assert.Equal(t, a, c)
	factors[0][0] = 123
	assert.Equal(t, float32(123), c[0].(*table).Factors[0][0])
}

type sealed struct {
	text *string
}

func (s *sealed) MarshalBinary() ([]byte, error) {
	return []byte(*s.text), nil
}

func (s *sealed) UnmarshalBinary(data []byte) error {
	text := string(data)
	s.text = &text
	return nil
}

func TestUnexportedFields(t *testing.T) {
	hello := "hello"
	var a = sealed{&hello}
	var b sealed
	err := Copy(&b, a)
	assert.NoError(t, err)
	assert.Equal(t, "hello", *b.text)
	// deep copy
	*a.text = "world"
	assert.Equal(t, "hello", *b.text)
}
