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

// Package config provides the TOML experiment configuration.
package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/lowrank-io/lowrank/base/log"
	"github.com/lowrank-io/lowrank/model"
	"github.com/lowrank-io/lowrank/model/mc"
)

// Config is the configuration of one experiment.
type Config struct {
	Data   DataConfig   `mapstructure:"data"`
	Model  ModelConfig  `mapstructure:"model"`
	Train  TrainConfig  `mapstructure:"train"`
	Output OutputConfig `mapstructure:"output"`
}

// DataConfig describes the observation source: either the synthetic
// low-rank generator or a CSV file of (row, column, value) triples.
type DataConfig struct {
	NumRows         int    `mapstructure:"num_rows" validate:"gt=0"`
	NumColumns      int    `mapstructure:"num_columns" validate:"gt=0"`
	Rank            int    `mapstructure:"rank" validate:"gt=0"`
	NumObservations int    `mapstructure:"num_observations" validate:"gte=0"`
	Distinct        bool   `mapstructure:"distinct"`
	Seed            int64  `mapstructure:"seed"`
	CSVPath         string `mapstructure:"csv_path"`
	CSVSeparator    string `mapstructure:"csv_separator"`
}

// ModelConfig selects the model type and its hyper-parameters.
type ModelConfig struct {
	Type        string  `mapstructure:"type" validate:"oneof=mf svd"`
	NFactors    int     `mapstructure:"n_factors" validate:"gt=0"`
	NEpochs     int     `mapstructure:"n_epochs" validate:"gte=0"`
	BatchSize   int     `mapstructure:"batch_size" validate:"gt=0"`
	Lr          float32 `mapstructure:"lr" validate:"gt=0"`
	Reg         float32 `mapstructure:"reg" validate:"gte=0"`
	InitMean    float32 `mapstructure:"init_mean"`
	InitStdDev  float32 `mapstructure:"init_std_dev" validate:"gte=0"`
	Optimizer   string  `mapstructure:"optimizer" validate:"oneof=sgd adam"`
	RandomState int64   `mapstructure:"random_state"`
}

type TrainConfig struct {
	TestFraction float64 `mapstructure:"test_fraction" validate:"gte=0,lte=1"`
	Jobs         int     `mapstructure:"jobs" validate:"gt=0"`
	Verbose      int     `mapstructure:"verbose" validate:"gte=0"`
}

// OutputConfig lists optional report sinks. Empty paths disable a sink.
type OutputConfig struct {
	LossCurvePath         string `mapstructure:"loss_curve_path"`
	ResidualHistogramPath string `mapstructure:"residual_histogram_path"`
	ModelPath             string `mapstructure:"model_path"`
}

// NewModel creates the configured model.
func (config *ModelConfig) NewModel() (mc.MatrixCompletion, error) {
	switch config.Type {
	case "mf":
		return mc.NewMF(config.GetParams()), nil
	case "svd":
		return mc.NewSVD(config.GetParams()), nil
	}
	return nil, errors.Errorf("unknown model %v", config.Type)
}

// GetParams returns the hyper-parameters of the configured model.
func (config *ModelConfig) GetParams() model.Params {
	return model.Params{
		model.NFactors:    config.NFactors,
		model.NEpochs:     config.NEpochs,
		model.BatchSize:   config.BatchSize,
		model.Lr:          config.Lr,
		model.Reg:         config.Reg,
		model.InitMean:    config.InitMean,
		model.InitStdDev:  config.InitStdDev,
		model.Optimizer:   config.Optimizer,
		model.RandomState: config.RandomState,
	}
}

// GetFitConfig returns the fit configuration of the trainer.
func (config *TrainConfig) GetFitConfig() *mc.FitConfig {
	return mc.NewFitConfig().
		SetJobs(config.Jobs).
		SetVerbose(config.Verbose)
}

func setDefault() {
	// [data]
	viper.SetDefault("data.num_rows", 100)
	viper.SetDefault("data.num_columns", 80)
	viper.SetDefault("data.rank", 5)
	viper.SetDefault("data.num_observations", 3000)
	viper.SetDefault("data.distinct", false)
	viper.SetDefault("data.seed", 0)
	viper.SetDefault("data.csv_path", "")
	viper.SetDefault("data.csv_separator", ",")
	// [model]
	viper.SetDefault("model.type", "mf")
	viper.SetDefault("model.n_factors", 5)
	viper.SetDefault("model.n_epochs", 1000)
	viper.SetDefault("model.batch_size", 1000)
	viper.SetDefault("model.lr", 0.002)
	viper.SetDefault("model.reg", 1e-8)
	viper.SetDefault("model.init_mean", 0)
	viper.SetDefault("model.init_std_dev", 0)
	viper.SetDefault("model.optimizer", "adam")
	viper.SetDefault("model.random_state", 0)
	// [train]
	viper.SetDefault("train.test_fraction", 0.2)
	viper.SetDefault("train.jobs", 1)
	viper.SetDefault("train.verbose", 10)
	// [output]
	viper.SetDefault("output.loss_curve_path", "")
	viper.SetDefault("output.residual_histogram_path", "")
	viper.SetDefault("output.model_path", "")
}

// GetDefaultConfig returns the default configuration: the benchmark
// scenario of a 100 by 80 matrix of rank 5 observed at 3000 positions.
func GetDefaultConfig() *Config {
	setDefault()
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Logger().Fatal("failed to unmarshal config", zap.Error(err))
	}
	return &config
}

// LoadConfig loads the configuration from a TOML file. Bound environment
// variables take precedence over the file.
func LoadConfig(path string) (*Config, error) {
	setDefault()

	// Read config file
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return nil, errors.Trace(err)
	}

	// Bind environment variables
	for _, variable := range [][2]string{
		{"LOWRANK_DATA_CSV_PATH", "data.csv_path"},
		{"LOWRANK_DATA_SEED", "data.seed"},
		{"LOWRANK_MODEL_TYPE", "model.type"},
		{"LOWRANK_MODEL_N_EPOCHS", "model.n_epochs"},
		{"LOWRANK_TRAIN_JOBS", "train.jobs"},
		{"LOWRANK_OUTPUT_MODEL_PATH", "output.model_path"},
	} {
		if err := viper.BindEnv(variable[1], variable[0]); err != nil {
			return nil, errors.Trace(err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, errors.Trace(err)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &config, nil
}

// Validate checks field bounds and enumerations.
func (config *Config) Validate() error {
	validate := validator.New()
	return errors.Trace(validate.Struct(config))
}
