package autodiff

import (
	"errors"
	"fmt"

	"github.com/born-ml/gradbridge/internal/tensor"
)

// ErrEmptyTape is returned by Backward when nothing was recorded.
var ErrEmptyTape = errors.New("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")

// BackwardCapable is an interface for backends that support the backward pass.
// AutodiffBackend implements it.
type BackwardCapable interface {
	tensor.Backend
	// GetTape returns the gradient tape for backward computation.
	GetTape() *GradientTape
}

// GetTape returns the gradient tape (implements BackwardCapable).
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward seeds t with ones and computes gradients for every tensor that
// contributed to it, keyed by RawTensor identity.
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x := tensor.Ones[float64](tensor.Shape{2}, backend)
//	y := x.Mul(x).Sum()
//	grads, err := autodiff.Backward(y, backend)
//	grad := grads[x.Raw()]
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) (map[*tensor.RawTensor]*tensor.RawTensor, error) {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		return nil, ErrEmptyTape
	}

	outputGrad, err := tensor.NewRaw(t.Shape(), t.DType(), backend.Device())
	if err != nil {
		return nil, fmt.Errorf("backward: failed to create output gradient: %w", err)
	}
	ones := make([]float64, outputGrad.NumElements())
	for i := range ones {
		ones[i] = 1
	}
	if err := outputGrad.SetFloat64s(ones); err != nil {
		return nil, fmt.Errorf("backward: %w", err)
	}

	return tape.Backward(t.Raw(), outputGrad, backend), nil
}
