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

// FreqDict maps string keys to dense indices and counts how often each
// key was seen. External row and column identifiers pass through a
// FreqDict before they reach a Dataset.
type FreqDict struct {
	indices map[string]int
	keys    []string
	counts  []int
}

func NewFreqDict() *FreqDict {
	return &FreqDict{indices: make(map[string]int)}
}

// Count returns the number of distinct keys.
func (d *FreqDict) Count() int {
	return len(d.keys)
}

// Id returns the dense index of a key, inserting it if unseen, and
// increments its frequency.
func (d *FreqDict) Id(key string) int {
	if index, ok := d.indices[key]; ok {
		d.counts[index]++
		return index
	}
	index := len(d.keys)
	d.indices[key] = index
	d.keys = append(d.keys, key)
	d.counts = append(d.counts, 1)
	return index
}

// NotCount returns the dense index of a key, inserting it if unseen,
// without touching its frequency.
func (d *FreqDict) NotCount(key string) int {
	if index, ok := d.indices[key]; ok {
		return index
	}
	index := len(d.keys)
	d.indices[key] = index
	d.keys = append(d.keys, key)
	d.counts = append(d.counts, 0)
	return index
}

// String returns the key of a dense index.
func (d *FreqDict) String(index int) (string, bool) {
	if index < 0 || index >= len(d.keys) {
		return "", false
	}
	return d.keys[index], true
}

// Freq returns how often the key of a dense index was counted.
func (d *FreqDict) Freq(index int) int {
	if index < 0 || index >= len(d.counts) {
		return 0
	}
	return d.counts[index]
}
