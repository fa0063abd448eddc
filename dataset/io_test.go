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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeTempCSV(t *testing.T, text string) string {
	path := filepath.Join(t.TempDir(), "triples.csv")
	assert.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestReadCSV(t *testing.T) {
	path := writeTempCSV(t, "alice,foo,4.5\nbob,bar,1\n\nalice,bar,2.5\n")
	d, rowDict, colDict, err := ReadCSV(path, ",")
	assert.NoError(t, err)
	assert.Equal(t, 3, d.Count())
	assert.Equal(t, 2, d.NumRows())
	assert.Equal(t, 2, d.NumColumns())
	assert.Equal(t, []int32{0, 1, 0}, d.RowIndices())
	assert.Equal(t, []int32{0, 1, 1}, d.ColIndices())
	assert.Equal(t, []float32{4.5, 1, 2.5}, d.Values())

	key, ok := rowDict.String(0)
	assert.True(t, ok)
	assert.Equal(t, "alice", key)
	key, ok = colDict.String(1)
	assert.True(t, ok)
	assert.Equal(t, "bar", key)
}

func TestReadCSV_Malformed(t *testing.T) {
	// missing field
	path := writeTempCSV(t, "alice,4.5\n")
	_, _, _, err := ReadCSV(path, ",")
	assert.ErrorContains(t, err, "malformed line 1")

	// unparsable value
	path = writeTempCSV(t, "alice,foo,4.5\nbob,bar,x\n")
	_, _, _, err = ReadCSV(path, ",")
	assert.ErrorContains(t, err, "line 2")

	// missing file
	_, _, _, err = ReadCSV(filepath.Join(t.TempDir(), "missing.csv"), ",")
	assert.Error(t, err)
}
