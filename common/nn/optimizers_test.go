package nn_test

import (
	"math"
	"testing"

	"github.com/lowrank-io/lowrank/common/nn"
	"github.com/stretchr/testify/assert"
)

// testOptimizer fits y = sin(x) on [-pi, pi] with a third order polynomial
// and returns the loss of every epoch.
func testOptimizer(optimizerCreator func(params []*nn.Tensor, lr float32) nn.Optimizer, lr float32, epochs int) (losses []float32) {
	x := nn.LinSpace(-math.Pi, math.Pi, 2000)
	y := nn.Reshape(nn.Sin(x), 2000, 1).NoGrad()

	// Prepare the input tensor (x, x^2, x^3).
	p := nn.NewTensor([]float32{1, 2, 3}, 3)
	xx := nn.Pow(nn.Broadcast(x, 3), p).NoGrad()

	model := nn.NewSequential(nn.NewLinear(3, 1))
	optimizer := optimizerCreator(model.Parameters(), lr)
	for i := 0; i < epochs; i++ {
		yPred := model.Forward(xx)
		loss := nn.MeanSquareError(y, yPred)
		losses = append(losses, loss.Data()[0])

		optimizer.ZeroGrad()
		loss.Backward()
		optimizer.Step()
	}
	return
}

func TestSGD(t *testing.T) {
	losses := testOptimizer(nn.NewSGD, 2e-3, 3000)
	assert.Less(t, losses[len(losses)-1], losses[0])
	assert.Less(t, losses[len(losses)-1], float32(0.1))
}

func TestAdam(t *testing.T) {
	losses := testOptimizer(nn.NewAdam, 0.01, 2000)
	assert.Less(t, losses[len(losses)-1], losses[0])
	assert.Less(t, losses[len(losses)-1], float32(0.1))
}
