// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package bridge exposes a model written against the tape-based autodiff
// engine as one differentiable node of a host computation graph.
//
// The node returns the model's scalar output and the gradient of that output
// with respect to every parameter. Host engines drive it through the graph
// helpers in this package or directly through Op.Evaluate.
//
// Example:
//
//	import "github.com/born-ml/gradbridge/bridge"
//
//	type line struct{ m, b *bridge.Parameter }
//
//	func (l *line) Parameters() []*bridge.Parameter { return []*bridge.Parameter{l.m, l.b} }
//
//	func (l *line) Forward(aux bridge.Aux) (*bridge.Tensor, error) {
//	    x, _ := aux.Tensor("x")
//	    y, _ := aux.Tensor("y")
//	    return y.Sub(x.Mul(l.m.Tensor()).Add(l.b.Tensor())).Square().Sum(), nil
//	}
//
//	func main() {
//	    backend := bridge.NewBackend()
//	    model := &line{
//	        m: bridge.NewParameter("m", bridge.Scalar(0, backend)),
//	        b: bridge.NewParameter("b", bridge.Scalar(0, backend)),
//	    }
//	    x, _ := bridge.FromSlice([]float64{1, 2, 3}, []int{3}, backend)
//	    y, _ := bridge.FromSlice([]float64{2, 4, 6}, []int{3}, backend)
//
//	    op, _ := bridge.New(backend, model, model.Parameters(), bridge.Aux{"x": x, "y": y})
//	    ev, _ := op.Evaluate([][]float64{{0}, {0}})
//	    // ev.Value == 56, ev.Grads == [[-56] [-24]]
//	}
package bridge

import (
	"github.com/born-ml/gradbridge/internal/autodiff"
	"github.com/born-ml/gradbridge/internal/backend/cpu"
	internal "github.com/born-ml/gradbridge/internal/bridge"
	"github.com/born-ml/gradbridge/internal/nn"
	"github.com/born-ml/gradbridge/internal/tensor"
)

// Backend is the autodiff-enabled CPU engine models run on.
type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// Tensor is a float64 tensor on Backend.
type Tensor = tensor.Tensor[float64, Backend]

// Parameter is a named trainable tensor with gradient storage.
type Parameter = nn.Parameter[Backend]

// Model is a scalar-valued model over its parameters and aux data.
type Model = internal.Model[Backend]

// Aux is named, fixed, non-differentiable data bound at construction.
type Aux = internal.Aux[Backend]

// Op is the bridge node. It implements the host graph's Op interface.
type Op = internal.Op[Backend]

// Evaluation is the result of one forward and backward pass.
type Evaluation = internal.Evaluation

// Option configures New.
type Option = internal.Option

// EvalError reports a failed construction or evaluation.
type EvalError = internal.EvalError

// Errors returned by New, Op.Evaluate and the host graph.
var (
	ErrNoParameters                   = internal.ErrNoParameters
	ErrArityMismatch                  = internal.ErrArityMismatch
	ErrShapeMismatch                  = internal.ErrShapeMismatch
	ErrDisconnectedGradient           = internal.ErrDisconnectedGradient
	ErrUnsupportedHigherOrderGradient = internal.ErrUnsupportedHigherOrderGradient
	ErrForeignComputation             = internal.ErrForeignComputation
)

// Options.
var (
	WithName    = internal.WithName
	WithLogger  = internal.WithLogger
	WithMetrics = internal.WithMetrics
)

// NewBackend creates a fresh engine. Give every Op its own backend.
func NewBackend() Backend {
	return autodiff.New(cpu.New())
}

// NewParameter wraps t as a parameter named name.
func NewParameter(name string, t *Tensor) *Parameter {
	return nn.NewParameter(name, t)
}

// FromSlice creates a tensor from data with the given shape.
func FromSlice(data []float64, shape []int, backend Backend) (*Tensor, error) {
	return tensor.FromSlice(data, tensor.Shape(shape), backend)
}

// Scalar creates a 0-D tensor.
func Scalar(v float64, backend Backend) *Tensor {
	return tensor.Scalar(v, backend)
}

// Zeros creates a zero tensor with the given shape.
func Zeros(shape []int, backend Backend) *Tensor {
	return tensor.Zeros[float64](tensor.Shape(shape), backend)
}

// New binds model, its ordered parameter list and aux data into an Op.
// params must be exactly model.Parameters().
func New(backend Backend, model Model, params []*Parameter, aux Aux, opts ...Option) (*Op, error) {
	return internal.New[Backend](backend, model, params, aux, opts...)
}
