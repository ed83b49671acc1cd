package ops

import "github.com/born-ml/gradbridge/internal/tensor"

// ExpOp represents output = exp(x). Backward: grad * exp(x), reusing the output.
type ExpOp struct{ node }

// NewExpOp creates a new ExpOp.
func NewExpOp(x, output *tensor.RawTensor) *ExpOp {
	return &ExpOp{newNode(output, x)}
}

// Backward computes grad * output.
func (op *ExpOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(outputGrad, op.output)}
}

// LogOp represents output = ln(x). Backward: grad / x.
type LogOp struct{ node }

// NewLogOp creates a new LogOp.
func NewLogOp(x, output *tensor.RawTensor) *LogOp {
	return &LogOp{newNode(output, x)}
}

// Backward computes grad / x.
func (op *LogOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Div(outputGrad, op.inputs[0])}
}

// SquareOp represents output = x². Backward: 2x * grad.
type SquareOp struct{ node }

// NewSquareOp creates a new SquareOp.
func NewSquareOp(x, output *tensor.RawTensor) *SquareOp {
	return &SquareOp{newNode(output, x)}
}

// Backward computes 2x * grad.
func (op *SquareOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(outputGrad, backend.MulScalar(op.inputs[0], 2))}
}

// ScaleOp represents output = x * c for a constant c.
type ScaleOp struct {
	node
	factor float64
}

// NewScaleOp creates a new ScaleOp.
func NewScaleOp(x, output *tensor.RawTensor, factor float64) *ScaleOp {
	return &ScaleOp{node: newNode(output, x), factor: factor}
}

// Backward computes grad * c.
func (op *ScaleOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(outputGrad, op.factor)}
}

// ShiftOp represents output = x + c for a constant c. The gradient passes through.
type ShiftOp struct{ node }

// NewShiftOp creates a new ShiftOp.
func NewShiftOp(x, output *tensor.RawTensor) *ShiftOp {
	return &ShiftOp{newNode(output, x)}
}

// Backward returns the output gradient unchanged.
func (op *ShiftOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad.Clone()}
}

// SumOp represents output = Σ x (scalar). Backward broadcasts the scalar
// gradient back to the input shape.
type SumOp struct{ node }

// NewSumOp creates a new SumOp.
func NewSumOp(x, output *tensor.RawTensor) *SumOp {
	return &SumOp{newNode(output, x)}
}

// Backward fills a tensor shaped like the input with the upstream value.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	zeros, err := tensor.NewRaw(x.Shape(), x.DType(), backend.Device())
	if err != nil {
		panic(err)
	}
	return []*tensor.RawTensor{backend.Add(zeros, outputGrad)}
}

// ReshapeOp represents a reshape. Backward reshapes the gradient back.
type ReshapeOp struct{ node }

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(x, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{newNode(output, x)}
}

// Backward reshapes the gradient to the input shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.inputs[0].Shape())}
}

// TransposeOp represents a 2D transpose. Backward transposes the gradient back.
type TransposeOp struct{ node }

// NewTransposeOp creates a new TransposeOp.
func NewTransposeOp(x, output *tensor.RawTensor) *TransposeOp {
	return &TransposeOp{newNode(output, x)}
}

// Backward transposes the gradient.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Transpose(outputGrad)}
}
