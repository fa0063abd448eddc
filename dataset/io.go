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
	"bufio"
	"os"
	"strings"

	"github.com/juju/errors"

	"github.com/lowrank-io/lowrank/common/util"
)

// ReadCSV loads (rowKey, colKey, value) triples from a separated file:
//
//	<rowKey 1> <sep> <colKey 1> <sep> <value 1> <sep> <extras>
//	<rowKey 2> <sep> <colKey 2> <sep> <value 2> <sep> <extras>
//	...
//
// String keys are mapped to dense indices through the returned
// dictionaries. Blank lines are skipped; lines with fewer than three
// fields or unparsable values are errors.
func ReadCSV(path, sep string) (*Dataset, *FreqDict, *FreqDict, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	defer file.Close()

	var (
		rowDict    = NewFreqDict()
		colDict    = NewFreqDict()
		rowIndices []int32
		colIndices []int32
		values     []float32
		lineNumber int
	)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, sep)
		if len(fields) < 3 {
			return nil, nil, nil, errors.Errorf("malformed line %d: %q", lineNumber, line)
		}
		value, err := util.ParseFloat[float32](fields[2])
		if err != nil {
			return nil, nil, nil, errors.Annotatef(err, "malformed value in line %d", lineNumber)
		}
		rowIndices = append(rowIndices, int32(rowDict.Id(fields[0])))
		colIndices = append(colIndices, int32(colDict.Id(fields[1])))
		values = append(values, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	d := &Dataset{
		rowIndices: rowIndices,
		colIndices: colIndices,
		values:     values,
		numRows:    rowDict.Count(),
		numColumns: colDict.Count(),
	}
	return d, rowDict, colDict, nil
}
