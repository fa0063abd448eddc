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
	"time"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/lowrank-io/lowrank/base/log"
	"github.com/lowrank-io/lowrank/cmd/version"
	"github.com/lowrank-io/lowrank/config"
	"github.com/lowrank-io/lowrank/dataset"
	"github.com/lowrank-io/lowrank/model/mc"
)

var rootCommand = &cobra.Command{
	Use:   "lowrank",
	Short: "A playground for studying low-rank matrix completion.",
	Run: func(cmd *cobra.Command, args []string) {
		// Show version
		if showVersion, _ := cmd.PersistentFlags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}
		// setup logger
		debug, _ := cmd.PersistentFlags().GetBool("debug")
		log.SetLogger(cmd.PersistentFlags(), debug)

		// run experiment
		conf := loadConfig(cmd.PersistentFlags())
		if err := runExperiment(conf); err != nil {
			log.Logger().Fatal("failed to run experiment", zap.Error(err))
		}
	},
}

var tuneCommand = &cobra.Command{
	Use:   "tune",
	Short: "Search models and hyper-parameters by TPE.",
	Run: func(cmd *cobra.Command, args []string) {
		// setup logger
		rootFlags := cmd.Root().PersistentFlags()
		debug, _ := rootFlags.GetBool("debug")
		log.SetLogger(rootFlags, debug)

		// search models
		conf := loadConfig(rootFlags)
		numTrials, _ := cmd.PersistentFlags().GetInt("n-trials")
		if err := runSearch(conf, numTrials); err != nil {
			log.Logger().Fatal("failed to search models", zap.Error(err))
		}
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().BoolP("version", "v", false, "lowrank version")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.AddCommand(tuneCommand)
	tuneCommand.PersistentFlags().Int("n-trials", 10, "number of search trials")
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}

func loadConfig(flagSet *pflag.FlagSet) *config.Config {
	configPath, _ := flagSet.GetString("config")
	if configPath == "" {
		log.Logger().Info("no config file provided, use default config")
		return config.GetDefaultConfig()
	}
	log.Logger().Info("load config", zap.String("config", configPath))
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		log.Logger().Fatal("failed to load config", zap.Error(err))
	}
	return conf
}

// loadData generates a synthetic dataset, or reads observations from a CSV
// file when data.csv_path is set.
func loadData(conf *config.Config) (*dataset.Dataset, error) {
	if conf.Data.CSVPath != "" {
		log.Logger().Info("load dataset from CSV",
			zap.String("path", conf.Data.CSVPath))
		data, _, _, err := dataset.ReadCSV(conf.Data.CSVPath, conf.Data.CSVSeparator)
		return data, errors.Trace(err)
	}
	log.Logger().Info("generate synthetic dataset",
		zap.Int("num_rows", conf.Data.NumRows),
		zap.Int("num_columns", conf.Data.NumColumns),
		zap.Int("rank", conf.Data.Rank),
		zap.Int("num_observations", conf.Data.NumObservations),
		zap.Int64("seed", conf.Data.Seed))
	generator, err := dataset.NewGenerator(conf.Data.NumRows, conf.Data.NumColumns, conf.Data.Rank, conf.Data.Seed)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if conf.Data.Distinct {
		data, err := generator.SampleDistinct(conf.Data.NumObservations)
		return data, errors.Trace(err)
	}
	return generator.Sample(conf.Data.NumObservations), nil
}

func runExperiment(conf *config.Config) error {
	log.Logger().Info("start experiment", zap.String("run_id", uuid.NewString()))
	// load data
	data, err := loadData(conf)
	if err != nil {
		return errors.Trace(err)
	}
	trainSet, testSet, err := data.Split(conf.Train.TestFraction)
	if err != nil {
		return errors.Trace(err)
	}
	// fit model
	m, err := conf.Model.NewModel()
	if err != nil {
		return errors.Trace(err)
	}
	start := time.Now()
	score := m.Fit(context.Background(), trainSet, testSet, conf.Train.GetFitConfig())
	fitTime := time.Since(start)
	// render report
	table := tablewriter.NewTable(os.Stdout)
	table.Header("Model", "MAE", "RMSE", "Coverage", "Time")
	table.Append([]string{
		conf.Model.Type,
		fmt.Sprintf("%.6f", score.MAE),
		fmt.Sprintf("%.6f", score.RMSE),
		fmt.Sprintf("%.4f", mc.Coverage(m, testSet)),
		fitTime.Round(time.Millisecond).String(),
	})
	table.Render()
	// save plots
	if conf.Output.LossCurvePath != "" {
		trainLoss, validateLoss := mc.LossHistories(m)
		if err = mc.PlotLossCurve(conf.Output.LossCurvePath, trainLoss, validateLoss); err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("save loss curve", zap.String("path", conf.Output.LossCurvePath))
	}
	if conf.Output.ResidualHistogramPath != "" {
		predictions, truth := mc.Predictions(m, testSet, conf.Train.Jobs)
		if err = mc.PlotResidualHistogram(conf.Output.ResidualHistogramPath, predictions, truth); err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("save residual histogram", zap.String("path", conf.Output.ResidualHistogramPath))
	}
	// save model
	if conf.Output.ModelPath != "" {
		if err = saveModel(conf.Output.ModelPath, m); err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("save model", zap.String("path", conf.Output.ModelPath))
	}
	return nil
}

func runSearch(conf *config.Config, numTrials int) error {
	// load data
	data, err := loadData(conf)
	if err != nil {
		return errors.Trace(err)
	}
	trainSet, testSet, err := data.Split(conf.Train.TestFraction)
	if err != nil {
		return errors.Trace(err)
	}
	// search models
	search := mc.NewModelSearch(map[string]mc.ModelCreator{
		"mf":  func() mc.MatrixCompletion { return mc.NewMF(nil) },
		"svd": func() mc.MatrixCompletion { return mc.NewSVD(nil) },
	}, trainSet, testSet, conf.Train.GetFitConfig())
	study, err := goptuna.CreateStudy("lowrank",
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMinimize),
		goptuna.StudyOptionSampler(tpe.NewSampler()))
	if err != nil {
		return errors.Trace(err)
	}
	bar := progressbar.Default(int64(numTrials), "search models")
	err = study.Optimize(func(trial goptuna.Trial) (float64, error) {
		defer bar.Add(1)
		return search.Objective(trial)
	}, numTrials)
	if err != nil {
		return errors.Trace(err)
	}
	// render report
	result := search.Result()
	table := tablewriter.NewTable(os.Stdout)
	table.Header("Model", "MAE", "Params")
	table.Append([]string{
		result.Type,
		fmt.Sprintf("%.6f", result.Score.MAE),
		fmt.Sprint(result.Params),
	})
	table.Render()
	return nil
}

func saveModel(path string, m mc.MatrixCompletion) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer f.Close()
	return errors.Trace(mc.MarshalModel(f, m))
}
