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

// Package mc provides matrix completion models trained on partially
// observed matrices. Models learn one embedding table per row and one per
// column and predict missing entries with dot products.
package mc

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/c-bata/goptuna"
	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"modernc.org/mathutil"

	"github.com/lowrank-io/lowrank/base/copier"
	"github.com/lowrank-io/lowrank/base/encoding"
	"github.com/lowrank-io/lowrank/base/log"
	"github.com/lowrank-io/lowrank/base/progress"
	"github.com/lowrank-io/lowrank/common/floats"
	"github.com/lowrank-io/lowrank/common/nn"
	"github.com/lowrank-io/lowrank/dataset"
	"github.com/lowrank-io/lowrank/model"
)

// Score reports the held-out quality of a model. Lower MAE is better.
type Score struct {
	MAE  float32
	RMSE float32
}

// BetterThan returns true if the score is better than s.
func (score Score) BetterThan(s Score) bool {
	return score.MAE < s.MAE
}

func (score Score) ZapFields() []zap.Field {
	return []zap.Field{
		zap.Float32("MAE", score.MAE),
		zap.Float32("RMSE", score.RMSE),
	}
}

type FitConfig struct {
	Jobs    int
	Verbose int
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 10,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

func (config *FitConfig) LoadDefaultIfNil() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	return config
}

// MatrixCompletion is the interface of models that fill in the missing
// entries of a partially observed matrix.
type MatrixCompletion interface {
	model.Model
	// Fit a model with a train set and parameters.
	Fit(ctx context.Context, trainSet, validateSet *dataset.Dataset, config *FitConfig) Score
	// Predict the value of an entry by its row index and column index.
	Predict(rowIndex, colIndex int) (float32, error)
	// BatchPredict predicts the values of entries listed in parallel arrays.
	BatchPredict(rowIndices, colIndices []int32) ([]float32, error)
	// IsRowObserved returns false if the row had no training observation and
	// its embedding vector was never trained.
	IsRowObserved(rowIndex int) bool
	// IsColObserved returns false if the column had no training observation
	// and its embedding vector was never trained.
	IsColObserved(colIndex int) bool
	// Marshal model into byte stream.
	Marshal(w io.Writer) error
	// Unmarshal model from byte stream.
	Unmarshal(r io.Reader) error
	// SuggestParams suggests hyper-parameters for a search trial.
	SuggestParams(trial goptuna.Trial) model.Params
}

type BaseMatrixCompletion struct {
	model.BaseModel
	NumRows     int
	NumColumns  int
	RowObserved *bitset.BitSet
	ColObserved *bitset.BitSet
	// Model parameters
	RowFactor [][]float32 // p_i
	ColFactor [][]float32 // q_j
	// Per-epoch loss histories of the last fit
	TrainLoss    []float32
	ValidateLoss []float32
}

func (baseModel *BaseMatrixCompletion) Init(trainSet *dataset.Dataset) {
	baseModel.NumRows = trainSet.NumRows()
	baseModel.NumColumns = trainSet.NumColumns()
	// set observed flags
	baseModel.RowObserved = bitset.New(uint(baseModel.NumRows))
	baseModel.ColObserved = bitset.New(uint(baseModel.NumColumns))
	for i := 0; i < trainSet.Count(); i++ {
		rowIndex, colIndex, _ := trainSet.Get(i)
		baseModel.RowObserved.Set(uint(rowIndex))
		baseModel.ColObserved.Set(uint(colIndex))
	}
	// reset histories
	baseModel.TrainLoss = nil
	baseModel.ValidateLoss = nil
}

// IsRowObserved returns false if the row had no training observation and its
// embedding vector was never trained.
func (baseModel *BaseMatrixCompletion) IsRowObserved(rowIndex int) bool {
	if rowIndex < 0 || rowIndex >= baseModel.NumRows {
		return false
	}
	return baseModel.RowObserved.Test(uint(rowIndex))
}

// IsColObserved returns false if the column had no training observation and
// its embedding vector was never trained.
func (baseModel *BaseMatrixCompletion) IsColObserved(colIndex int) bool {
	if colIndex < 0 || colIndex >= baseModel.NumColumns {
		return false
	}
	return baseModel.ColObserved.Test(uint(colIndex))
}

func (baseModel *BaseMatrixCompletion) checkBounds(rowIndex, colIndex int) error {
	if rowIndex < 0 || rowIndex >= baseModel.NumRows {
		return errors.Errorf("row index %d is out of range [0, %d)", rowIndex, baseModel.NumRows)
	}
	if colIndex < 0 || colIndex >= baseModel.NumColumns {
		return errors.Errorf("column index %d is out of range [0, %d)", colIndex, baseModel.NumColumns)
	}
	return nil
}

// Marshal model into byte stream.
func (baseModel *BaseMatrixCompletion) Marshal(w io.Writer) error {
	// write params
	if err := encoding.WriteGob(w, baseModel.Params); err != nil {
		return errors.Trace(err)
	}
	// write dimensions
	if err := binary.Write(w, binary.LittleEndian, int64(baseModel.NumRows)); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Write(w, binary.LittleEndian, int64(baseModel.NumColumns)); err != nil {
		return errors.Trace(err)
	}
	// write observed flags
	if _, err := baseModel.RowObserved.WriteTo(w); err != nil {
		return errors.Trace(err)
	}
	if _, err := baseModel.ColObserved.WriteTo(w); err != nil {
		return errors.Trace(err)
	}
	// write factor tables
	if err := encoding.WriteMatrix(w, baseModel.RowFactor); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteMatrix(w, baseModel.ColFactor); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Unmarshal model from byte stream.
func (baseModel *BaseMatrixCompletion) Unmarshal(r io.Reader) error {
	// read params
	if err := encoding.ReadGob(r, &baseModel.Params); err != nil {
		return errors.Trace(err)
	}
	// read dimensions
	var numRows, numColumns int64
	if err := binary.Read(r, binary.LittleEndian, &numRows); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &numColumns); err != nil {
		return errors.Trace(err)
	}
	baseModel.NumRows = int(numRows)
	baseModel.NumColumns = int(numColumns)
	// read observed flags
	baseModel.RowObserved = new(bitset.BitSet)
	if _, err := baseModel.RowObserved.ReadFrom(r); err != nil {
		return errors.Trace(err)
	}
	baseModel.ColObserved = new(bitset.BitSet)
	if _, err := baseModel.ColObserved.ReadFrom(r); err != nil {
		return errors.Trace(err)
	}
	// read factor tables
	nFactors := baseModel.Params.GetInt(model.NFactors, 16)
	baseModel.RowFactor = newMatrix(baseModel.NumRows, nFactors)
	if err := encoding.ReadMatrix(r, baseModel.RowFactor); err != nil {
		return errors.Trace(err)
	}
	baseModel.ColFactor = newMatrix(baseModel.NumColumns, nFactors)
	if err := encoding.ReadMatrix(r, baseModel.ColFactor); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (baseModel *BaseMatrixCompletion) Clear() {
	baseModel.RowObserved = nil
	baseModel.ColObserved = nil
	baseModel.RowFactor = nil
	baseModel.ColFactor = nil
	baseModel.TrainLoss = nil
	baseModel.ValidateLoss = nil
}

func (baseModel *BaseMatrixCompletion) Invalid() bool {
	return baseModel == nil ||
		baseModel.RowFactor == nil ||
		baseModel.ColFactor == nil
}

func newMatrix(rows, cols int) [][]float32 {
	m := make([][]float32, rows)
	for i := range m {
		m[i] = make([]float32, cols)
	}
	return m
}

// newOptimizer builds the optimizer named by the Optimizer hyper-parameter.
// The L2 penalty is applied as weight decay on the optimizer.
func newOptimizer(name string, params []*nn.Tensor, lr, reg float32) nn.Optimizer {
	var optimizer nn.Optimizer
	switch name {
	case model.SGD:
		optimizer = nn.NewSGD(params, lr)
	case model.Adam:
		optimizer = nn.NewAdam(params, lr)
	default:
		log.Logger().Warn("unknown optimizer", zap.String("optimizer", name))
		optimizer = nn.NewAdam(params, lr)
	}
	optimizer.SetWeightDecay(reg)
	return optimizer
}

// Clone a model with deep copy.
func Clone(m MatrixCompletion) MatrixCompletion {
	var copied MatrixCompletion
	if err := copier.Copy(&copied, m); err != nil {
		panic(err)
	} else {
		copied.SetParams(copied.GetParams())
		return copied
	}
}

func GetModelName(m MatrixCompletion) string {
	switch m.(type) {
	case *MF:
		return "mf"
	case *SVD:
		return "svd"
	default:
		return reflect.TypeOf(m).String()
	}
}

// LossHistories returns the per-epoch train and validate MAE recorded by the
// last fit of a model.
func LossHistories(m MatrixCompletion) (trainLoss, validateLoss []float32) {
	switch typed := m.(type) {
	case *MF:
		return typed.TrainLoss, typed.ValidateLoss
	case *SVD:
		return typed.TrainLoss, typed.ValidateLoss
	default:
		return nil, nil
	}
}

func MarshalModel(w io.Writer, m MatrixCompletion) error {
	if err := encoding.WriteString(w, GetModelName(m)); err != nil {
		return errors.Trace(err)
	}
	if err := m.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func UnmarshalModel(r io.Reader) (MatrixCompletion, error) {
	name, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	switch name {
	case "mf":
		var mf MF
		if err := mf.Unmarshal(r); err != nil {
			return nil, errors.Trace(err)
		}
		return &mf, nil
	case "svd":
		var svd SVD
		if err := svd.Unmarshal(r); err != nil {
			return nil, errors.Trace(err)
		}
		return &svd, nil
	}
	return nil, errors.Errorf("unknown model %v", name)
}

// MF completes a matrix with the dot product of two embedding tables:
//
//	\hat{x}_{ij} = p_i^T q_j
//
// Both tables are trained by minimizing the mean absolute error over
// observed entries with minibatch gradient descent. Hyper-parameters:
//
//	 Lr 		- The learning rate of the optimizer. Default is 0.01.
//	 Reg 		- The weight decay of the optimizer. Default is 1e-8.
//	 NFactors	- The number of latent factors. Default is 16.
//	 NEpochs	- The number of training epochs. Default is 100.
//	 BatchSize	- The size of minibatches. Default is 1024.
//	 Optimizer	- The optimizer name, "adam" or "sgd". Default is "adam".
//	 InitMean	- The mean of initial random latent factors. Default is 0.
//	 InitStdDev	- The standard deviation of initial random latent factors.
//				  Zero or negative means 1/sqrt(NFactors). Default is 0.
type MF struct {
	BaseMatrixCompletion
	// Injected initial factors take precedence over random initialization.
	initRowFactor [][]float32
	initColFactor [][]float32
	// Hyper parameters
	nFactors   int
	nEpochs    int
	batchSize  int
	lr         float32
	reg        float32
	initMean   float32
	initStdDev float32
	optimizer  string
}

// NewMF creates a MF model.
func NewMF(params model.Params) *MF {
	mf := new(MF)
	mf.SetParams(params)
	return mf
}

// SetParams sets hyper-parameters of the MF model.
func (mf *MF) SetParams(params model.Params) {
	mf.BaseMatrixCompletion.SetParams(params)
	mf.nFactors = mf.Params.GetInt(model.NFactors, 16)
	mf.nEpochs = mf.Params.GetInt(model.NEpochs, 100)
	mf.batchSize = mf.Params.GetInt(model.BatchSize, 1024)
	mf.lr = mf.Params.GetFloat32(model.Lr, 0.01)
	mf.reg = mf.Params.GetFloat32(model.Reg, 1e-8)
	mf.initMean = mf.Params.GetFloat32(model.InitMean, 0)
	mf.initStdDev = mf.Params.GetFloat32(model.InitStdDev, 0)
	mf.optimizer = mf.Params.GetString(model.Optimizer, model.Adam)
}

func (mf *MF) GetParamsGrid(withSize bool) model.ParamsGrid {
	return model.ParamsGrid{
		model.NFactors:   lo.If(withSize, []interface{}{4, 8, 16, 32}).Else([]interface{}{16}),
		model.Lr:         []interface{}{0.001, 0.005, 0.01, 0.05},
		model.Reg:        []interface{}{1e-8, 1e-6, 1e-4},
		model.InitMean:   []interface{}{0},
		model.InitStdDev: []interface{}{0, 0.01, 0.1},
	}
}

func (mf *MF) SuggestParams(trial goptuna.Trial) model.Params {
	return model.Params{
		model.NFactors:   lo.Must(trial.SuggestStepInt(string(model.NFactors), 4, 32, 4)),
		model.Lr:         lo.Must(trial.SuggestLogFloat(string(model.Lr), 0.001, 0.1)),
		model.Reg:        lo.Must(trial.SuggestLogFloat(string(model.Reg), 1e-8, 1e-4)),
		model.InitStdDev: lo.Must(trial.SuggestLogFloat(string(model.InitStdDev), 0.001, 0.1)),
	}
}

// SetFactors injects initial factor tables that take precedence over random
// initialization. Both tables must be rectangular and share one width.
func (mf *MF) SetFactors(rowFactor, colFactor [][]float32) error {
	if len(rowFactor) == 0 || len(colFactor) == 0 {
		return errors.New("factor tables must not be empty")
	}
	width := len(rowFactor[0])
	for i, row := range rowFactor {
		if len(row) != width {
			return errors.Errorf("row %d has width %d, want %d", i, len(row), width)
		}
	}
	for i, col := range colFactor {
		if len(col) != width {
			return errors.Errorf("column %d has width %d, want %d", i, len(col), width)
		}
	}
	mf.initRowFactor = make([][]float32, len(rowFactor))
	for i, row := range rowFactor {
		mf.initRowFactor[i] = slices.Clone(row)
	}
	mf.initColFactor = make([][]float32, len(colFactor))
	for i, col := range colFactor {
		mf.initColFactor[i] = slices.Clone(col)
	}
	return nil
}

// stdDev returns the initial factor scale. Non-positive InitStdDev falls
// back to 1/sqrt(NFactors), the scale of the synthetic generator.
func (mf *MF) stdDev() float32 {
	if mf.initStdDev > 0 {
		return mf.initStdDev
	}
	return 1 / math32.Sqrt(float32(mf.nFactors))
}

func (mf *MF) Init(trainSet *dataset.Dataset) {
	newRowFactor := mf.GetRandomGenerator().NormalMatrix(trainSet.NumRows(), mf.nFactors, mf.initMean, mf.stdDev())
	newColFactor := mf.GetRandomGenerator().NormalMatrix(trainSet.NumColumns(), mf.nFactors, mf.initMean, mf.stdDev())
	if mf.initRowFactor != nil && mf.initColFactor != nil {
		if len(mf.initRowFactor) == trainSet.NumRows() &&
			len(mf.initColFactor) == trainSet.NumColumns() &&
			len(mf.initRowFactor[0]) == mf.nFactors {
			for i := range newRowFactor {
				copy(newRowFactor[i], mf.initRowFactor[i])
			}
			for i := range newColFactor {
				copy(newColFactor[i], mf.initColFactor[i])
			}
		} else {
			log.Logger().Warn("injected factors have mismatched shapes, fall back to random initialization",
				zap.Int("num_rows", trainSet.NumRows()),
				zap.Int("num_columns", trainSet.NumColumns()),
				zap.Int("n_factors", mf.nFactors))
		}
	}
	mf.RowFactor = newRowFactor
	mf.ColFactor = newColFactor
	mf.BaseMatrixCompletion.Init(trainSet)
}

// Predict the value of the entry at (rowIndex, colIndex).
func (mf *MF) Predict(rowIndex, colIndex int) (float32, error) {
	if err := mf.checkBounds(rowIndex, colIndex); err != nil {
		return 0, errors.Trace(err)
	}
	return floats.Dot(mf.RowFactor[rowIndex], mf.ColFactor[colIndex]), nil
}

// BatchPredict predicts the values of entries listed in parallel arrays.
func (mf *MF) BatchPredict(rowIndices, colIndices []int32) ([]float32, error) {
	if len(rowIndices) != len(colIndices) {
		return nil, errors.Errorf("mismatched index arrays: %d rows and %d columns", len(rowIndices), len(colIndices))
	}
	predictions := make([]float32, len(rowIndices))
	for i := range rowIndices {
		prediction, err := mf.Predict(int(rowIndices[i]), int(colIndices[i]))
		if err != nil {
			return nil, errors.Trace(err)
		}
		predictions[i] = prediction
	}
	return predictions, nil
}

// Fit the MF model. Its task complexity is O(mf.nEpochs).
func (mf *MF) Fit(ctx context.Context, trainSet, validateSet *dataset.Dataset, config *FitConfig) Score {
	config = config.LoadDefaultIfNil()
	log.Logger().Info("fit mf",
		zap.Int("train_set_size", trainSet.Count()),
		zap.Int("validate_set_size", validateSet.Count()),
		zap.Any("params", mf.GetParams()),
		zap.Any("config", config))
	mf.Init(trainSet)
	// Copy factor tables into tensors.
	rowFactor := nn.NewTensor(lo.Flatten(mf.RowFactor), mf.NumRows, mf.nFactors)
	colFactor := nn.NewTensor(lo.Flatten(mf.ColFactor), mf.NumColumns, mf.nFactors)
	optimizer := newOptimizer(mf.optimizer, []*nn.Tensor{rowFactor, colFactor}, mf.lr, mf.reg)
	predict := func(rowIndex, colIndex int) float32 {
		return floats.Dot(
			rowFactor.Data()[rowIndex*mf.nFactors:(rowIndex+1)*mf.nFactors],
			colFactor.Data()[colIndex*mf.nFactors:(colIndex+1)*mf.nFactors])
	}
	// Training
	nanWarned := false
	_, span := progress.Start(ctx, "MF.Fit", mf.nEpochs)
	for epoch := 1; epoch <= mf.nEpochs; epoch++ {
		fitStart := time.Now()
		perm := mf.GetRandomGenerator().Perm(trainSet.Count())
		cost := float32(0)
		for i := 0; i < trainSet.Count(); i += mf.batchSize {
			end := mathutil.Min(i+mf.batchSize, trainSet.Count())
			rowIndices := make([]float32, end-i)
			colIndices := make([]float32, end-i)
			values := make([]float32, end-i)
			for offset, position := range perm[i:end] {
				rowIndex, colIndex, value := trainSet.Get(position)
				rowIndices[offset] = float32(rowIndex)
				colIndices[offset] = float32(colIndex)
				values[offset] = value
			}
			rowEmbeddings := nn.Embedding(rowFactor, nn.NewTensor(rowIndices, end-i))
			colEmbeddings := nn.Embedding(colFactor, nn.NewTensor(colIndices, end-i))
			prediction := nn.Sum(nn.Mul(rowEmbeddings, colEmbeddings), 1)
			loss := nn.MeanAbsoluteError(prediction, nn.NewTensor(values, end-i))
			optimizer.ZeroGrad()
			loss.Backward()
			optimizer.Step()
			cost += loss.Data()[0] * float32(end-i)
		}
		fitTime := time.Since(fitStart)
		trainLoss := float32(0)
		if trainSet.Count() > 0 {
			trainLoss = cost / float32(trainSet.Count())
		}
		// Validation
		evalStart := time.Now()
		predictions := make([]float32, validateSet.Count())
		for i := 0; i < validateSet.Count(); i++ {
			rowIndex, colIndex, _ := validateSet.Get(i)
			predictions[i] = predict(rowIndex, colIndex)
		}
		validateLoss := MAE(predictions, validateSet.Values())
		evalTime := time.Since(evalStart)
		mf.TrainLoss = append(mf.TrainLoss, trainLoss)
		mf.ValidateLoss = append(mf.ValidateLoss, validateLoss)
		if !nanWarned && (math32.IsNaN(trainLoss) || math32.IsNaN(validateLoss)) {
			nanWarned = true
			log.Logger().Warn("model diverged",
				zap.Int("epoch", epoch),
				zap.Float32("lr", mf.lr))
		}
		if epoch == mf.nEpochs || (config.Verbose > 0 && epoch%config.Verbose == 0) {
			log.Logger().Info(fmt.Sprintf("fit mf %v/%v", epoch, mf.nEpochs),
				zap.String("fit_time", fitTime.String()),
				zap.String("eval_time", evalTime.String()),
				zap.Float32("train_mae", trainLoss),
				zap.Float32("validate_mae", validateLoss))
		}
		span.Add(1)
	}
	span.End()
	// Copy tensors back into the factor tables.
	for i := range mf.RowFactor {
		copy(mf.RowFactor[i], rowFactor.Data()[i*mf.nFactors:(i+1)*mf.nFactors])
	}
	for i := range mf.ColFactor {
		copy(mf.ColFactor[i], colFactor.Data()[i*mf.nFactors:(i+1)*mf.nFactors])
	}
	scores := Evaluate(mf, validateSet, config.Jobs, MAE, RMSE)
	score := Score{MAE: scores[0], RMSE: scores[1]}
	log.Logger().Info("fit mf complete", score.ZapFields()...)
	return score
}

// Marshal model into byte stream.
func (mf *MF) Marshal(w io.Writer) error {
	if err := mf.BaseMatrixCompletion.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Unmarshal model from byte stream.
func (mf *MF) Unmarshal(r io.Reader) error {
	if err := mf.BaseMatrixCompletion.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	mf.SetParams(mf.Params)
	return nil
}

// SVD is the biased variant of MF. Prediction adds the global mean of
// observed values and one trained bias per row and per column:
//
//	\hat{x}_{ij} = \mu + b_i + c_j + p_i^T q_j
//
// It shares the hyper-parameters of MF.
type SVD struct {
	BaseMatrixCompletion
	// Model parameters
	RowBias    []float32 // b_i
	ColBias    []float32 // c_j
	GlobalMean float32   // mu
	// Hyper parameters
	nFactors   int
	nEpochs    int
	batchSize  int
	lr         float32
	reg        float32
	initMean   float32
	initStdDev float32
	optimizer  string
}

// NewSVD creates a SVD model.
func NewSVD(params model.Params) *SVD {
	svd := new(SVD)
	svd.SetParams(params)
	return svd
}

// SetParams sets hyper-parameters of the SVD model.
func (svd *SVD) SetParams(params model.Params) {
	svd.BaseMatrixCompletion.SetParams(params)
	svd.nFactors = svd.Params.GetInt(model.NFactors, 16)
	svd.nEpochs = svd.Params.GetInt(model.NEpochs, 100)
	svd.batchSize = svd.Params.GetInt(model.BatchSize, 1024)
	svd.lr = svd.Params.GetFloat32(model.Lr, 0.01)
	svd.reg = svd.Params.GetFloat32(model.Reg, 1e-8)
	svd.initMean = svd.Params.GetFloat32(model.InitMean, 0)
	svd.initStdDev = svd.Params.GetFloat32(model.InitStdDev, 0)
	svd.optimizer = svd.Params.GetString(model.Optimizer, model.Adam)
}

func (svd *SVD) GetParamsGrid(withSize bool) model.ParamsGrid {
	return model.ParamsGrid{
		model.NFactors:   lo.If(withSize, []interface{}{4, 8, 16, 32}).Else([]interface{}{16}),
		model.Lr:         []interface{}{0.001, 0.005, 0.01, 0.05},
		model.Reg:        []interface{}{1e-8, 1e-6, 1e-4},
		model.InitMean:   []interface{}{0},
		model.InitStdDev: []interface{}{0, 0.01, 0.1},
	}
}

func (svd *SVD) SuggestParams(trial goptuna.Trial) model.Params {
	return model.Params{
		model.NFactors:   lo.Must(trial.SuggestStepInt(string(model.NFactors), 4, 32, 4)),
		model.Lr:         lo.Must(trial.SuggestLogFloat(string(model.Lr), 0.001, 0.1)),
		model.Reg:        lo.Must(trial.SuggestLogFloat(string(model.Reg), 1e-8, 1e-4)),
		model.InitStdDev: lo.Must(trial.SuggestLogFloat(string(model.InitStdDev), 0.001, 0.1)),
	}
}

func (svd *SVD) stdDev() float32 {
	if svd.initStdDev > 0 {
		return svd.initStdDev
	}
	return 1 / math32.Sqrt(float32(svd.nFactors))
}

func (svd *SVD) Init(trainSet *dataset.Dataset) {
	svd.RowFactor = svd.GetRandomGenerator().NormalMatrix(trainSet.NumRows(), svd.nFactors, svd.initMean, svd.stdDev())
	svd.ColFactor = svd.GetRandomGenerator().NormalMatrix(trainSet.NumColumns(), svd.nFactors, svd.initMean, svd.stdDev())
	svd.RowBias = make([]float32, trainSet.NumRows())
	svd.ColBias = make([]float32, trainSet.NumColumns())
	svd.GlobalMean = trainSet.Mean()
	svd.BaseMatrixCompletion.Init(trainSet)
}

// Predict the value of the entry at (rowIndex, colIndex).
func (svd *SVD) Predict(rowIndex, colIndex int) (float32, error) {
	if err := svd.checkBounds(rowIndex, colIndex); err != nil {
		return 0, errors.Trace(err)
	}
	return svd.GlobalMean + svd.RowBias[rowIndex] + svd.ColBias[colIndex] +
		floats.Dot(svd.RowFactor[rowIndex], svd.ColFactor[colIndex]), nil
}

// BatchPredict predicts the values of entries listed in parallel arrays.
func (svd *SVD) BatchPredict(rowIndices, colIndices []int32) ([]float32, error) {
	if len(rowIndices) != len(colIndices) {
		return nil, errors.Errorf("mismatched index arrays: %d rows and %d columns", len(rowIndices), len(colIndices))
	}
	predictions := make([]float32, len(rowIndices))
	for i := range rowIndices {
		prediction, err := svd.Predict(int(rowIndices[i]), int(colIndices[i]))
		if err != nil {
			return nil, errors.Trace(err)
		}
		predictions[i] = prediction
	}
	return predictions, nil
}

// Fit the SVD model. Its task complexity is O(svd.nEpochs).
func (svd *SVD) Fit(ctx context.Context, trainSet, validateSet *dataset.Dataset, config *FitConfig) Score {
	config = config.LoadDefaultIfNil()
	log.Logger().Info("fit svd",
		zap.Int("train_set_size", trainSet.Count()),
		zap.Int("validate_set_size", validateSet.Count()),
		zap.Any("params", svd.GetParams()),
		zap.Any("config", config))
	svd.Init(trainSet)
	// Copy factor tables and biases into tensors.
	rowFactor := nn.NewTensor(lo.Flatten(svd.RowFactor), svd.NumRows, svd.nFactors)
	colFactor := nn.NewTensor(lo.Flatten(svd.ColFactor), svd.NumColumns, svd.nFactors)
	rowBias := nn.NewTensor(slices.Clone(svd.RowBias), svd.NumRows, 1)
	colBias := nn.NewTensor(slices.Clone(svd.ColBias), svd.NumColumns, 1)
	globalMean := nn.NewScalar(svd.GlobalMean)
	optimizer := newOptimizer(svd.optimizer, []*nn.Tensor{rowFactor, colFactor, rowBias, colBias}, svd.lr, svd.reg)
	predict := func(rowIndex, colIndex int) float32 {
		return svd.GlobalMean + rowBias.Data()[rowIndex] + colBias.Data()[colIndex] +
			floats.Dot(
				rowFactor.Data()[rowIndex*svd.nFactors:(rowIndex+1)*svd.nFactors],
				colFactor.Data()[colIndex*svd.nFactors:(colIndex+1)*svd.nFactors])
	}
	// Training
	nanWarned := false
	_, span := progress.Start(ctx, "SVD.Fit", svd.nEpochs)
	for epoch := 1; epoch <= svd.nEpochs; epoch++ {
		fitStart := time.Now()
		perm := svd.GetRandomGenerator().Perm(trainSet.Count())
		cost := float32(0)
		for i := 0; i < trainSet.Count(); i += svd.batchSize {
			end := mathutil.Min(i+svd.batchSize, trainSet.Count())
			rowIndices := make([]float32, end-i)
			colIndices := make([]float32, end-i)
			values := make([]float32, end-i)
			for offset, position := range perm[i:end] {
				rowIndex, colIndex, value := trainSet.Get(position)
				rowIndices[offset] = float32(rowIndex)
				colIndices[offset] = float32(colIndex)
				values[offset] = value
			}
			batchRows := nn.NewTensor(rowIndices, end-i)
			batchCols := nn.NewTensor(colIndices, end-i)
			rowEmbeddings := nn.Embedding(rowFactor, batchRows)
			colEmbeddings := nn.Embedding(colFactor, batchCols)
			rowBiases := nn.Reshape(nn.Embedding(rowBias, batchRows), end-i)
			colBiases := nn.Reshape(nn.Embedding(colBias, batchCols), end-i)
			prediction := nn.Add(nn.Sum(nn.Mul(rowEmbeddings, colEmbeddings), 1), rowBiases, colBiases, globalMean)
			loss := nn.MeanAbsoluteError(prediction, nn.NewTensor(values, end-i))
			optimizer.ZeroGrad()
			loss.Backward()
			optimizer.Step()
			cost += loss.Data()[0] * float32(end-i)
		}
		fitTime := time.Since(fitStart)
		trainLoss := float32(0)
		if trainSet.Count() > 0 {
			trainLoss = cost / float32(trainSet.Count())
		}
		// Validation
		evalStart := time.Now()
		predictions := make([]float32, validateSet.Count())
		for i := 0; i < validateSet.Count(); i++ {
			rowIndex, colIndex, _ := validateSet.Get(i)
			predictions[i] = predict(rowIndex, colIndex)
		}
		validateLoss := MAE(predictions, validateSet.Values())
		evalTime := time.Since(evalStart)
		svd.TrainLoss = append(svd.TrainLoss, trainLoss)
		svd.ValidateLoss = append(svd.ValidateLoss, validateLoss)
		if !nanWarned && (math32.IsNaN(trainLoss) || math32.IsNaN(validateLoss)) {
			nanWarned = true
			log.Logger().Warn("model diverged",
				zap.Int("epoch", epoch),
				zap.Float32("lr", svd.lr))
		}
		if epoch == svd.nEpochs || (config.Verbose > 0 && epoch%config.Verbose == 0) {
			log.Logger().Info(fmt.Sprintf("fit svd %v/%v", epoch, svd.nEpochs),
				zap.String("fit_time", fitTime.String()),
				zap.String("eval_time", evalTime.String()),
				zap.Float32("train_mae", trainLoss),
				zap.Float32("validate_mae", validateLoss))
		}
		span.Add(1)
	}
	span.End()
	// Copy tensors back into the factor tables and biases.
	for i := range svd.RowFactor {
		copy(svd.RowFactor[i], rowFactor.Data()[i*svd.nFactors:(i+1)*svd.nFactors])
	}
	for i := range svd.ColFactor {
		copy(svd.ColFactor[i], colFactor.Data()[i*svd.nFactors:(i+1)*svd.nFactors])
	}
	copy(svd.RowBias, rowBias.Data())
	copy(svd.ColBias, colBias.Data())
	scores := Evaluate(svd, validateSet, config.Jobs, MAE, RMSE)
	score := Score{MAE: scores[0], RMSE: scores[1]}
	log.Logger().Info("fit svd complete", score.ZapFields()...)
	return score
}

func (svd *SVD) Clear() {
	svd.BaseMatrixCompletion.Clear()
	svd.RowBias = nil
	svd.ColBias = nil
	svd.GlobalMean = 0
}

func (svd *SVD) Invalid() bool {
	return svd == nil ||
		svd.BaseMatrixCompletion.Invalid() ||
		svd.RowBias == nil ||
		svd.ColBias == nil
}

// Marshal model into byte stream.
func (svd *SVD) Marshal(w io.Writer) error {
	if err := svd.BaseMatrixCompletion.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteVector(w, svd.RowBias); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteVector(w, svd.ColBias); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Write(w, binary.LittleEndian, svd.GlobalMean); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Unmarshal model from byte stream.
func (svd *SVD) Unmarshal(r io.Reader) error {
	if err := svd.BaseMatrixCompletion.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	svd.RowBias = make([]float32, svd.NumRows)
	if err := encoding.ReadVector(r, svd.RowBias); err != nil {
		return errors.Trace(err)
	}
	svd.ColBias = make([]float32, svd.NumColumns)
	if err := encoding.ReadVector(r, svd.ColBias); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &svd.GlobalMean); err != nil {
		return errors.Trace(err)
	}
	svd.SetParams(svd.Params)
	return nil
}
