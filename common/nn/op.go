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

package nn

import (
	"github.com/chewxy/math32"
	"github.com/lowrank-io/lowrank/common/floats"
)

type op interface {
	String() string
	forward(inputs ...*Tensor) *Tensor
	backward(dy *Tensor) []*Tensor
	inputsAndOutput() ([]*Tensor, *Tensor)
	setInputs(inputs ...*Tensor)
	setOutput(y *Tensor)
}

type base struct {
	inputs []*Tensor
	output *Tensor
}

func (b *base) inputsAndOutput() ([]*Tensor, *Tensor) {
	return b.inputs, b.output
}

func (b *base) setInputs(inputs ...*Tensor) {
	b.inputs = inputs
}

func (b *base) setOutput(y *Tensor) {
	b.output = y
}

func apply[T op](f T, inputs ...*Tensor) *Tensor {
	y := f.forward(inputs...)
	f.setInputs(inputs...)
	f.setOutput(y)
	y.op = f
	return y
}

// checkSuffixShape panics unless the shape of x1 is a suffix sequence of
// the shape of x0. Binary operators broadcast the smaller operand over
// the leading axes of the larger one.
func checkSuffixShape(x0, x1 *Tensor) {
	if len(x0.shape) < len(x1.shape) {
		panic("the shape of the second tensor must be a suffix sequence of the shape of the first tensor")
	}
	for i := range x1.shape {
		if x0.shape[len(x0.shape)-len(x1.shape)+i] != x1.shape[i] {
			panic("the shape of the second tensor must be a suffix sequence of the shape of the first tensor")
		}
	}
}

// foldGrad sums a gradient over the leading axes so it fits the shape of
// a broadcast operand.
func foldGrad(dy *Tensor, shape []int) *Tensor {
	gx := Zeros(shape...)
	wSize := 1
	for i := range shape {
		wSize *= shape[i]
	}
	for i := range dy.data {
		gx.data[i%wSize] += dy.data[i]
	}
	return gx
}

type add struct {
	base
}

func (a *add) String() string {
	return "Add"
}

func (a *add) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.add(inputs[1])
	return y
}

func (a *add) backward(dy *Tensor) []*Tensor {
	gx0 := dy.clone()
	gx1 := foldGrad(dy, a.inputs[1].shape)
	return []*Tensor{gx0, gx1}
}

type sub struct {
	base
}

func (s *sub) String() string {
	return "Sub"
}

func (s *sub) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.sub(inputs[1])
	return y
}

func (s *sub) backward(dy *Tensor) []*Tensor {
	gx0 := dy.clone()
	gx1 := foldGrad(dy, s.inputs[1].shape)
	gx1.neg()
	return []*Tensor{gx0, gx1}
}

type mul struct {
	base
}

func (m *mul) String() string {
	return "Mul"
}

func (m *mul) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.mul(inputs[1])
	return y
}

func (m *mul) backward(dy *Tensor) []*Tensor {
	gx0 := dy.clone()
	gx0.mul(m.inputs[1])
	gx1 := Zeros(m.inputs[1].shape...)
	wSize := len(gx1.data)
	for i := range dy.data {
		gx1.data[i%wSize] += dy.data[i] * m.inputs[0].data[i]
	}
	return []*Tensor{gx0, gx1}
}

type div struct {
	base
}

func (d *div) String() string {
	return "Div"
}

func (d *div) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.div(inputs[1])
	return y
}

func (d *div) backward(dy *Tensor) []*Tensor {
	gx0 := Zeros(d.inputs[0].shape...)
	gx1 := Zeros(d.inputs[1].shape...)
	wSize := len(gx1.data)
	for i := range dy.data {
		w := d.inputs[1].data[i%wSize]
		gx0.data[i] = dy.data[i] / w
		gx1.data[i%wSize] -= dy.data[i] * d.inputs[0].data[i] / w / w
	}
	return []*Tensor{gx0, gx1}
}

type square struct {
	base
}

func (s *square) String() string {
	return "Square"
}

func (s *square) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.square()
	return y
}

func (s *square) backward(dy *Tensor) []*Tensor {
	dx := s.inputs[0].clone()
	dx.mul(dy)
	for i := range dx.data {
		dx.data[i] *= 2
	}
	return []*Tensor{dx}
}

type pow struct {
	base
}

func (p *pow) String() string {
	return "Pow"
}

func (p *pow) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.pow(inputs[1])
	return y
}

func (p *pow) backward(dy *Tensor) []*Tensor {
	dx0 := p.inputs[0].clone()
	dx0.pow(p.inputs[1])
	dx0.mul(p.inputs[1])
	dx0.div(p.inputs[0])
	dx0.mul(dy)
	dx1 := Zeros(p.inputs[1].shape...)
	wSize := len(dx1.data)
	for i := range dy.data {
		dx1.data[i%wSize] += dy.data[i] * p.output.data[i] * math32.Log(p.inputs[0].data[i])
	}
	return []*Tensor{dx0, dx1}
}

type exp struct {
	base
}

func (e *exp) String() string {
	return "Exp"
}

func (e *exp) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.exp()
	return y
}

func (e *exp) backward(dy *Tensor) []*Tensor {
	dx := e.output.clone()
	dx.mul(dy)
	return []*Tensor{dx}
}

type log struct {
	base
}

func (l *log) String() string {
	return "Log"
}

func (l *log) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.log()
	return y
}

func (l *log) backward(dy *Tensor) []*Tensor {
	dx := dy.clone()
	dx.div(l.inputs[0])
	return []*Tensor{dx}
}

type sin struct {
	base
}

func (s *sin) String() string {
	return "Sin"
}

func (s *sin) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.sin()
	return y
}

func (s *sin) backward(dy *Tensor) []*Tensor {
	dx := s.inputs[0].clone()
	dx.cos()
	dx.mul(dy)
	return []*Tensor{dx}
}

type cos struct {
	base
}

func (c *cos) String() string {
	return "Cos"
}

func (c *cos) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.cos()
	return y
}

func (c *cos) backward(dy *Tensor) []*Tensor {
	dx := c.inputs[0].clone()
	dx.sin()
	dx.neg()
	dx.mul(dy)
	return []*Tensor{dx}
}

type abs struct {
	base
}

func (a *abs) String() string {
	return "Abs"
}

func (a *abs) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.abs()
	return y
}

func (a *abs) backward(dy *Tensor) []*Tensor {
	dx := a.inputs[0].clone()
	dx.sign()
	dx.mul(dy)
	return []*Tensor{dx}
}

type sum struct {
	base
	// axis is the reduced axis, or -1 to reduce every element.
	axis int
}

func (s *sum) String() string {
	return "Sum"
}

func (s *sum) forward(inputs ...*Tensor) *Tensor {
	x := inputs[0]
	if s.axis < 0 {
		y := NewScalar(0)
		for i := range x.data {
			y.data[0] += x.data[i]
		}
		return y
	}
	outer, axisDim, inner := splitAxis(x.shape, s.axis)
	shape := make([]int, 0, len(x.shape)-1)
	shape = append(shape, x.shape[:s.axis]...)
	shape = append(shape, x.shape[s.axis+1:]...)
	y := Zeros(shape...)
	for o := 0; o < outer; o++ {
		for j := 0; j < axisDim; j++ {
			for i := 0; i < inner; i++ {
				y.data[o*inner+i] += x.data[(o*axisDim+j)*inner+i]
			}
		}
	}
	return y
}

func (s *sum) backward(dy *Tensor) []*Tensor {
	x := s.inputs[0]
	gx := Zeros(x.shape...)
	if s.axis < 0 {
		for i := range gx.data {
			gx.data[i] = dy.data[0]
		}
		return []*Tensor{gx}
	}
	outer, axisDim, inner := splitAxis(x.shape, s.axis)
	for o := 0; o < outer; o++ {
		for j := 0; j < axisDim; j++ {
			for i := 0; i < inner; i++ {
				gx.data[(o*axisDim+j)*inner+i] = dy.data[o*inner+i]
			}
		}
	}
	return []*Tensor{gx}
}

// splitAxis factors a shape into the element counts before, at and after
// the given axis.
func splitAxis(shape []int, axis int) (outer, axisDim, inner int) {
	outer, inner = 1, 1
	for i := 0; i < axis; i++ {
		outer *= shape[i]
	}
	axisDim = shape[axis]
	for i := axis + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return
}

type mean struct {
	base
}

func (m *mean) String() string {
	return "Mean"
}

func (m *mean) forward(inputs ...*Tensor) *Tensor {
	x := inputs[0]
	y := NewScalar(0)
	for i := range x.data {
		y.data[0] += x.data[i]
	}
	y.data[0] /= float32(len(x.data))
	return y
}

func (m *mean) backward(dy *Tensor) []*Tensor {
	dx := Zeros(m.inputs[0].shape...)
	k := dy.data[0] / float32(len(dx.data))
	for i := range dx.data {
		dx.data[i] = k
	}
	return []*Tensor{dx}
}

type matMul struct {
	base
	transpose1 bool
	transpose2 bool
}

func (m *matMul) String() string {
	return "MatMul"
}

func (m *matMul) forward(inputs ...*Tensor) *Tensor {
	return inputs[0].matMul(inputs[1], m.transpose1, m.transpose2)
}

func (m *matMul) backward(dy *Tensor) []*Tensor {
	var gx0, gx1 *Tensor
	if !m.transpose1 {
		if !m.transpose2 {
			// y = x0 * x1
			gx0 = dy.matMul(m.inputs[1], false, true)
			gx1 = m.inputs[0].matMul(dy, true, false)
		} else {
			// y = x0 * x1^T
			gx0 = dy.matMul(m.inputs[1], false, false)
			gx1 = dy.matMul(m.inputs[0], true, false)
		}
	} else {
		if !m.transpose2 {
			// y = x0^T * x1
			gx0 = m.inputs[1].matMul(dy, false, true)
			gx1 = m.inputs[0].matMul(dy, false, false)
		} else {
			// y = x0^T * x1^T
			gx0 = m.inputs[1].matMul(dy, true, true)
			gx1 = dy.matMul(m.inputs[0], true, true)
		}
	}
	return []*Tensor{gx0, gx1}
}

type broadcast struct {
	base
	shape []int
}

func (b *broadcast) String() string {
	return "Broadcast"
}

func (b *broadcast) forward(inputs ...*Tensor) *Tensor {
	x := inputs[0]
	shape := make([]int, len(x.shape))
	copy(shape, x.shape)
	shape = append(shape, b.shape...)
	wSize := 1
	for i := range b.shape {
		wSize *= b.shape[i]
	}
	y := Zeros(shape...)
	for i := range x.data {
		for j := i * wSize; j < (i+1)*wSize; j++ {
			y.data[j] = x.data[i]
		}
	}
	return y
}

func (b *broadcast) backward(dy *Tensor) []*Tensor {
	gx := Zeros(b.inputs[0].shape...)
	wSize := 1
	for i := range b.shape {
		wSize *= b.shape[i]
	}
	for i := range gx.data {
		for j := i * wSize; j < (i+1)*wSize; j++ {
			gx.data[i] += dy.data[j]
		}
	}
	return []*Tensor{gx}
}

type embedding struct {
	base
}

func (e *embedding) String() string {
	return "Embedding"
}

func (e *embedding) forward(inputs ...*Tensor) *Tensor {
	w, x := inputs[0], inputs[1]
	rowSize := 1
	for _, s := range w.shape[1:] {
		rowSize *= s
	}
	shape := make([]int, 0, len(x.shape)+len(w.shape)-1)
	shape = append(shape, x.shape...)
	shape = append(shape, w.shape[1:]...)
	y := Zeros(shape...)
	for i := range x.data {
		index := int(x.data[i])
		copy(y.data[i*rowSize:(i+1)*rowSize], w.data[index*rowSize:(index+1)*rowSize])
	}
	return y
}

// backward scatter-adds the output gradient into the weight rows that
// were gathered. The index input receives no gradient.
func (e *embedding) backward(dy *Tensor) []*Tensor {
	w, x := e.inputs[0], e.inputs[1]
	gw := Zeros(w.shape...)
	rowSize := 1
	for _, s := range w.shape[1:] {
		rowSize *= s
	}
	for i := range x.data {
		index := int(x.data[i])
		floats.Add(gw.data[index*rowSize:(index+1)*rowSize], dy.data[i*rowSize:(i+1)*rowSize])
	}
	return []*Tensor{gw}
}

type sigmoid struct {
	base
}

func (s *sigmoid) String() string {
	return "Sigmoid"
}

func (s *sigmoid) forward(inputs ...*Tensor) *Tensor {
	// y = tanh(x * 0.5) * 0.5 + 0.5
	y := inputs[0].clone()
	y.mul(NewScalar(0.5))
	y.tanh()
	y.mul(NewScalar(0.5))
	y.add(NewScalar(0.5))
	return y
}

func (s *sigmoid) backward(dy *Tensor) []*Tensor {
	// dx = dy * y * (1 - y)
	dx := s.output.clone()
	dx.neg()
	dx.add(NewScalar(1))
	dx.mul(s.output)
	dx.mul(dy)
	return []*Tensor{dx}
}

type relu struct {
	base
}

func (r *relu) String() string {
	return "ReLU"
}

func (r *relu) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.maximum(NewScalar(0))
	return y
}

func (r *relu) backward(dy *Tensor) []*Tensor {
	dx := Zeros(r.inputs[0].shape...)
	for i := range dx.data {
		if r.inputs[0].data[i] > 0 {
			dx.data[i] = dy.data[i]
		}
	}
	return []*Tensor{dx}
}

type reshape struct {
	base
	shape []int
}

func (r *reshape) String() string {
	return "Reshape"
}

func (r *reshape) forward(inputs ...*Tensor) *Tensor {
	return NewTensor(inputs[0].data, r.shape...)
}

func (r *reshape) backward(dy *Tensor) []*Tensor {
	return []*Tensor{NewTensor(dy.data, r.inputs[0].shape...)}
}

// Add returns the element-wise sum of tensors. The shape of each
// subsequent tensor must be a suffix sequence of the shape of the
// accumulated result or vice versa.
func Add(x ...*Tensor) *Tensor {
	output := x[0]
	for i := 1; i < len(x); i++ {
		x0, x1 := output, x[i]
		if len(x0.shape) < len(x1.shape) {
			x0, x1 = x1, x0
		}
		checkSuffixShape(x0, x1)
		output = apply(&add{}, x0, x1)
	}
	return output
}

// Sub returns the element-wise difference of two tensors. The shape of
// the second tensor must be a suffix sequence of the shape of the first.
func Sub(x0, x1 *Tensor) *Tensor {
	checkSuffixShape(x0, x1)
	return apply(&sub{}, x0, x1)
}

// Mul returns the element-wise product of two tensors. The shape of the
// second tensor must be a suffix sequence of the shape of the first
// tensor or vice versa.
func Mul(x0, x1 *Tensor) *Tensor {
	if len(x0.shape) < len(x1.shape) {
		x0, x1 = x1, x0
	}
	checkSuffixShape(x0, x1)
	return apply(&mul{}, x0, x1)
}

// Div returns the element-wise division of two tensors. The shape of the
// second tensor must be a suffix sequence of the shape of the first.
func Div(x0, x1 *Tensor) *Tensor {
	checkSuffixShape(x0, x1)
	return apply(&div{}, x0, x1)
}

// Square returns the element-wise square of a tensor.
func Square(x *Tensor) *Tensor {
	return apply(&square{}, x)
}

// Pow returns the element-wise power of a tensor. The shape of the
// exponent must be a suffix sequence of the shape of the base.
func Pow(x, n *Tensor) *Tensor {
	checkSuffixShape(x, n)
	return apply(&pow{}, x, n)
}

// Exp returns the element-wise exponential of a tensor.
func Exp(x *Tensor) *Tensor {
	return apply(&exp{}, x)
}

// Log returns the element-wise natural logarithm of a tensor.
func Log(x *Tensor) *Tensor {
	return apply(&log{}, x)
}

// Sin returns the element-wise sine of a tensor.
func Sin(x *Tensor) *Tensor {
	return apply(&sin{}, x)
}

// Cos returns the element-wise cosine of a tensor.
func Cos(x *Tensor) *Tensor {
	return apply(&cos{}, x)
}

// Abs returns the element-wise absolute value of a tensor.
func Abs(x *Tensor) *Tensor {
	return apply(&abs{}, x)
}

// Sum returns the sum of all elements in a tensor, or the sum over a
// single axis when one is given.
func Sum(x *Tensor, along ...int) *Tensor {
	if len(along) > 1 {
		panic("Sum reduces at most one axis")
	}
	axis := -1
	if len(along) == 1 {
		if along[0] < 0 || along[0] >= len(x.shape) {
			panic("Sum axis out of range")
		}
		axis = along[0]
	}
	return apply(&sum{axis: axis}, x)
}

// Mean returns the mean of all elements in a tensor.
func Mean(x *Tensor) *Tensor {
	return apply(&mean{}, x)
}

// MatMul returns the matrix product of two 2-D tensors, optionally
// transposing either operand.
func MatMul(x, y *Tensor, transpose1, transpose2 bool) *Tensor {
	return apply(&matMul{transpose1: transpose1, transpose2: transpose2}, x, y)
}

// Broadcast repeats every element of a tensor over appended axes.
func Broadcast(x *Tensor, shape ...int) *Tensor {
	return apply(&broadcast{shape: shape}, x)
}

// Embedding gathers rows of w by the indices stored in x. The result
// shape is the shape of x followed by the row shape of w.
func Embedding(w, x *Tensor) *Tensor {
	return apply(&embedding{}, w, x)
}

// Sigmoid returns the element-wise sigmoid of a tensor.
func Sigmoid(x *Tensor) *Tensor {
	return apply(&sigmoid{}, x)
}

// ReLu returns the element-wise rectified linear unit of a tensor.
func ReLu(x *Tensor) *Tensor {
	return apply(&relu{}, x)
}

// Reshape returns a tensor sharing storage with x under a new shape.
func Reshape(x *Tensor, shape ...int) *Tensor {
	size := 1
	for _, s := range shape {
		size *= s
	}
	if size != len(x.data) {
		panic("Reshape cannot change the number of elements")
	}
	return apply(&reshape{shape: shape}, x)
}
