package graph

import (
	"fmt"
	"maps"
)

// Function is a scalar cost compiled over a flat parameter vector. The
// inputs in wrt are laid out back to back, in order, each flattened.
// Optimizers and other host engines consume this form.
type Function struct {
	cost  *Variable
	wrt   []*Variable
	fixed Givens
	dim   int
}

// NewFunction checks that cost is scalar and every wrt variable is a free
// input, then binds the remaining inputs to fixed.
func NewFunction(cost *Variable, wrt []*Variable, fixed Givens) (*Function, error) {
	if numElements(cost.shape) != 1 {
		return nil, fmt.Errorf("graph: %w: %s has shape %v", ErrNonScalarCost, cost, cost.shape)
	}
	dim := 0
	for _, w := range wrt {
		if !w.IsInput() {
			return nil, fmt.Errorf("graph: %w: %s", ErrInputNotSource, w)
		}
		dim += numElements(w.shape)
	}
	return &Function{
		cost:  cost,
		wrt:   wrt,
		fixed: maps.Clone(fixed),
		dim:   dim,
	}, nil
}

// Dim returns the length of the flat parameter vector.
func (f *Function) Dim() int {
	return f.dim
}

// Split cuts a flat vector into one value per wrt input.
func (f *Function) Split(x []float64) ([]Value, error) {
	if len(x) != f.dim {
		return nil, fmt.Errorf("graph: %w: vector has %d elements, function takes %d", ErrShapeMismatch, len(x), f.dim)
	}
	out := make([]Value, len(f.wrt))
	off := 0
	for i, w := range f.wrt {
		n := numElements(w.shape)
		v := Zeros(w.shape)
		copy(v.Data, x[off:off+n])
		out[i] = v
		off += n
	}
	return out, nil
}

// Value evaluates the cost at x.
func (f *Function) Value(x []float64) (float64, error) {
	givens, err := f.givens(x)
	if err != nil {
		return 0, err
	}
	vals, err := Eval([]*Variable{f.cost}, givens)
	if err != nil {
		return 0, err
	}
	return vals[0].Item()
}

// ValueAndGrad evaluates the cost at x and its flat gradient.
func (f *Function) ValueAndGrad(x []float64) (float64, []float64, error) {
	givens, err := f.givens(x)
	if err != nil {
		return 0, nil, err
	}
	cost, grads, err := ValueAndGrad(f.cost, f.wrt, givens)
	if err != nil {
		return 0, nil, err
	}
	flat := make([]float64, 0, f.dim)
	for _, g := range grads {
		flat = append(flat, g.Data...)
	}
	v, err := cost.Item()
	if err != nil {
		return 0, nil, err
	}
	return v, flat, nil
}

func (f *Function) givens(x []float64) (Givens, error) {
	parts, err := f.Split(x)
	if err != nil {
		return nil, err
	}
	givens := make(Givens, len(f.fixed)+len(parts))
	maps.Copy(givens, f.fixed)
	for i, w := range f.wrt {
		givens[w] = parts[i]
	}
	return givens, nil
}
