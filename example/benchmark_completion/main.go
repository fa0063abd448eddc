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

package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/lowrank-io/lowrank/base/log"
	"github.com/lowrank-io/lowrank/dataset"
	"github.com/lowrank-io/lowrank/model"
	"github.com/lowrank-io/lowrank/model/mc"
)

// The benchmark scenario: a 100x80 matrix of rank 5 with 3000 observed
// entries, 20% of them held out, trained for 1000 epochs by Adam.
const (
	numRows         = 100
	numColumns      = 80
	rank            = 5
	numObservations = 3000
	testFraction    = 0.2
	seed            = 0
)

func scenarioParams(nFactors int) model.Params {
	return model.Params{
		model.NFactors:    nFactors,
		model.NEpochs:     1000,
		model.BatchSize:   1000,
		model.Lr:          0.002,
		model.Optimizer:   model.Adam,
		model.RandomState: 42,
	}
}

func main() {
	// generate data
	generator, err := dataset.NewGenerator(numRows, numColumns, rank, seed)
	if err != nil {
		log.Logger().Fatal("failed to create generator", zap.Error(err))
	}
	data := generator.Sample(numObservations)
	trainSet, testSet, err := data.Split(testFraction)
	if err != nil {
		log.Logger().Fatal("failed to split dataset", zap.Error(err))
	}
	fitConfig := mc.NewFitConfig().SetJobs(runtime.NumCPU()).SetVerbose(100)

	lines := make([][]string, 0)
	run := func(name string, m mc.MatrixCompletion) {
		start := time.Now()
		score := m.Fit(context.Background(), trainSet, testSet, fitConfig)
		elapsed := time.Since(start)
		lines = append(lines, []string{
			name,
			fmt.Sprintf("%.6f", score.MAE),
			fmt.Sprintf("%.6f", score.RMSE),
			fmt.Sprintf("%.4f", mc.Coverage(m, testSet)),
			elapsed.Round(time.Millisecond).String(),
		})
		log.Logger().Info(fmt.Sprintf("benchmark %s complete", name), score.ZapFields()...)
	}

	// the scenario with the generator's rank
	run("mf", mc.NewMF(scenarioParams(rank)))
	run("svd", mc.NewSVD(scenarioParams(rank)))

	// capacity sweep: model ranks below and above the data rank
	for nFactors := 1; nFactors <= 8; nFactors++ {
		run(fmt.Sprintf("mf (NFactors = %d)", nFactors), mc.NewMF(scenarioParams(nFactors)))
	}

	// render table
	table := tablewriter.NewTable(os.Stdout)
	table.Header("Model", "MAE", "RMSE", "Coverage", "Time")
	for _, v := range lines {
		table.Append(v)
	}
	table.Render()
}
