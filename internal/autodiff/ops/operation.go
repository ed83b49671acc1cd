// Package ops defines the differentiable operations recorded on the gradient tape.
//
// Each operation keeps references to its inputs and output from the forward
// pass and maps an output gradient to input gradients:
//   - AddOp, SubOp: gradient passes through (negated for the subtrahend)
//   - MulOp: d(a*b)/da = b, d(a*b)/db = a
//   - DivOp: d(a/b)/da = 1/b, d(a/b)/db = -a/b²
//   - MatMulOp: dA = grad@Bᵀ, dB = Aᵀ@grad
//   - SumOp: gradient broadcast back to the input shape
//   - ExpOp, LogOp, SquareOp: element-wise derivatives
//   - ScaleOp, ShiftOp: scalar multiply / add
//   - ReshapeOp, TransposeOp: gradient mapped back to the input layout
package ops

import "github.com/born-ml/gradbridge/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// The returned slice is aligned with Inputs(); a nil entry means no
	// gradient flows to that input.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// node holds the bookkeeping shared by every single-output operation.
type node struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

func newNode(output *tensor.RawTensor, inputs ...*tensor.RawTensor) node {
	return node{inputs: inputs, output: output}
}

// Inputs returns the input tensors.
func (n *node) Inputs() []*tensor.RawTensor {
	return n.inputs
}

// Output returns the output tensor.
func (n *node) Output() *tensor.RawTensor {
	return n.output
}
