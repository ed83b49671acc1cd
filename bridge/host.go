// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package bridge

import "github.com/born-ml/gradbridge/internal/graph"

// Host graph types.
type (
	Variable = graph.Variable
	Value    = graph.Value
	Givens   = graph.Givens
	Function = graph.Function
)

// Host graph construction and evaluation.
var (
	Input        = graph.Input
	Constant     = graph.Constant
	Eval         = graph.Eval
	ValueAndGrad = graph.ValueAndGrad
	NewFunction  = graph.NewFunction
	Vector       = graph.Vector
)

// ScalarValue is a host 0-D value.
func ScalarValue(v float64) Value {
	return graph.Scalar(v)
}

// Call applies op to inputs and returns the value output followed by one
// gradient output per parameter.
func Call(op *Op, inputs ...*Variable) ([]*Variable, error) {
	return graph.Call(op, inputs...)
}
