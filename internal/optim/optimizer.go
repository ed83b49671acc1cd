// Package optim implements first-order update rules for host engines.
//
// Optimizers work on the flat parameter vector a graph.Function exposes,
// so they drive any host graph, including ones containing bridge nodes:
//
//	fn, _ := graph.NewFunction(cost, wrt, givens)
//	opt := optim.NewAdam(optim.AdamConfig{LR: 0.05})
//	x := make([]float64, fn.Dim())
//	for range steps {
//	    _, grad, err := fn.ValueAndGrad(x)
//	    ...
//	    opt.Step(x, grad)
//	}
//
// All optimizers minimise.
package optim

import (
	"errors"
	"fmt"
)

// ErrLengthMismatch is returned when params and grads differ in length, or
// differ from the length the optimizer state was created for.
var ErrLengthMismatch = errors.New("optim: params and grads differ in length")

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step updates params in place from grads.
	Step(params, grads []float64) error

	// Reset drops accumulated state such as momentum buffers.
	Reset()

	// LR returns the current learning rate.
	LR() float64

	// SetLR updates the learning rate, for scheduling.
	SetLR(lr float64)
}

// checkLengths validates one step's inputs against the optimizer state
// length n; n == 0 means no state yet.
func checkLengths(params, grads []float64, n int) error {
	if len(params) != len(grads) {
		return fmt.Errorf("%w: %d params, %d grads", ErrLengthMismatch, len(params), len(grads))
	}
	if n != 0 && n != len(params) {
		return fmt.Errorf("%w: state has %d elements, step has %d", ErrLengthMismatch, n, len(params))
	}
	return nil
}
