package nn

import (
	"fmt"

	"github.com/born-ml/gradbridge/internal/tensor"
)

// Parameter is a named float64 tensor whose gradient is tracked.
//
//	slope := nn.NewParameter("m", tensor.Scalar(0.0, backend))
//	slope.SetValues([]float64{1.5})
//	// ... forward + backward ...
//	g := slope.Grad()
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float64, B]
	grad   *tensor.Tensor[float64, B] // nil until a backward pass assigns one
}

// NewParameter creates a new trainable parameter around an initialised tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float64, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float64, B] {
	return p.tensor
}

// Shape returns the parameter's shape.
func (p *Parameter[B]) Shape() tensor.Shape {
	return p.tensor.Shape()
}

// Values returns a copy of the current parameter values.
func (p *Parameter[B]) Values() []float64 {
	return p.tensor.Raw().Float64s()
}

// SetValues overwrites the parameter in place. The tensor identity is kept,
// so gradients computed afterwards are still keyed by the same RawTensor.
func (p *Parameter[B]) SetValues(values []float64) error {
	if err := p.tensor.Raw().SetFloat64s(values); err != nil {
		return fmt.Errorf("parameter %q: %w", p.name, err)
	}
	return nil
}

// Grad returns the gradient tensor, or nil if none has been computed since
// the last ZeroGrad.
func (p *Parameter[B]) Grad() *tensor.Tensor[float64, B] {
	return p.grad
}

// HasGrad reports whether a gradient is present.
func (p *Parameter[B]) HasGrad() bool {
	return p.grad != nil
}

// SetGrad sets the gradient tensor.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float64, B]) {
	p.grad = grad
}

// ZeroGrad clears the gradient.
//
// Call it before every backward pass; otherwise a parameter that no longer
// participates would keep reporting the previous pass's gradient.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}

// CollectGrads assigns each parameter its entry from a gradient map as
// produced by autodiff.Backward. Parameters without an entry are left with
// no gradient.
func CollectGrads[B tensor.Backend](params []*Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor, backend B) {
	for _, p := range params {
		if g, ok := grads[p.tensor.Raw()]; ok {
			p.grad = tensor.New[float64](g, backend)
		}
	}
}
