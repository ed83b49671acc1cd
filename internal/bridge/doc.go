// Package bridge presents a model written against the tape-based autodiff
// engine as a single differentiable node of the host graph.
//
// An Op is bound once to a model, its ordered parameter list and fixed
// auxiliary data. Each evaluation writes the supplied values into the
// parameter slots, clears any gradient state left from a previous call, runs
// the model forward while the tape records, differentiates the scalar result
// and reads one gradient per parameter:
//
//	op, err := bridge.New(backend, model, model.Parameters(), aux)
//	ev, err := op.Evaluate([][]float64{{m}, {b}})
//	// ev.Value, ev.Grads[0], ev.Grads[1]
//
// Inside the host graph the same Op produces the outputs
// (value, grad_1, ..., grad_n). Its Grad method scales the stored gradients
// by the upstream gradient of the value output; differentiating through the
// gradient outputs fails with ErrUnsupportedHigherOrderGradient.
//
// An Op owns its model's parameter storage. Calling one Op from several
// goroutines at once is not supported and is not guarded; run independent
// chains with independent models and Ops.
package bridge
