package graph

import (
	"fmt"
	"slices"
)

// Givens binds input variables to values for one evaluation.
type Givens map[*Variable]Value

// trace records the forward pass so the reverse pass can replay it.
type trace struct {
	order  []*Apply
	values map[*Variable]Value
}

// Eval computes the values of outputs.
func Eval(outputs []*Variable, givens Givens) ([]Value, error) {
	tr, err := forward(outputs, givens)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(outputs))
	for i, v := range outputs {
		out[i] = tr.values[v]
	}
	return out, nil
}

// ValueAndGrad evaluates a scalar cost and its gradient with respect to each
// variable in wrt.
//
// The reverse pass visits applies in reverse topological order. Each op sees
// the upstream gradient for every one of its outputs at once, Disconnected
// for outputs nothing depends on, and ops with no connected outputs are
// skipped entirely. Gradients reaching a variable along several paths are
// summed.
func ValueAndGrad(cost *Variable, wrt []*Variable, givens Givens) (Value, []Value, error) {
	if numElements(cost.shape) != 1 {
		return Value{}, nil, fmt.Errorf("graph: %w: %s has shape %v", ErrNonScalarCost, cost, cost.shape)
	}
	seen := make(map[*Variable]bool, len(wrt))
	for _, w := range wrt {
		if !w.IsInput() {
			return Value{}, nil, fmt.Errorf("graph: %w: %s", ErrInputNotSource, w)
		}
		if seen[w] {
			return Value{}, nil, fmt.Errorf("graph: %w: %s", ErrDuplicateWrtInputs, w)
		}
		seen[w] = true
	}

	tr, err := forward([]*Variable{cost}, givens)
	if err != nil {
		return Value{}, nil, err
	}

	seed := Zeros(cost.shape)
	seed.Data[0] = 1
	grads := map[*Variable]Value{cost: seed}

	for i := len(tr.order) - 1; i >= 0; i-- {
		if err := backwardApply(tr.order[i], tr, grads); err != nil {
			return Value{}, nil, err
		}
	}

	out := make([]Value, len(wrt))
	for i, w := range wrt {
		g, ok := grads[w]
		if !ok {
			return Value{}, nil, fmt.Errorf("graph: %w: %s", ErrDisconnectedInput, w)
		}
		out[i] = g
	}
	return tr.values[cost], out, nil
}

func backwardApply(app *Apply, tr *trace, grads map[*Variable]Value) error {
	outGrads := make([]Value, len(app.outputs))
	connected := false
	for j, out := range app.outputs {
		if g, ok := grads[out]; ok {
			outGrads[j] = g
			connected = true
		}
	}
	if !connected {
		return nil
	}

	inVals := make([]Value, len(app.inputs))
	for k, in := range app.inputs {
		inVals[k] = tr.values[in]
	}
	outVals := make([]Value, len(app.outputs))
	for j, out := range app.outputs {
		outVals[j] = tr.values[out]
	}

	inGrads, err := app.op.Grad(inVals, outVals, outGrads)
	if err != nil {
		return fmt.Errorf("graph: grad of %s: %w", app.op.Name(), err)
	}
	if len(inGrads) != len(app.inputs) {
		return fmt.Errorf("graph: grad of %s: %w: %d gradients for %d inputs",
			app.op.Name(), ErrBadOutput, len(inGrads), len(app.inputs))
	}

	for k, in := range app.inputs {
		g := inGrads[k]
		if g.Disconnected() {
			continue
		}
		if err := g.check(); err != nil || !sameShape(g.Shape, in.shape) {
			return fmt.Errorf("graph: grad of %s: %w: input %d gradient shape %v, want %v",
				app.op.Name(), ErrBadOutput, k, g.Shape, in.shape)
		}
		if prev, ok := grads[in]; ok {
			sum := prev.Clone()
			for e := range sum.Data {
				sum.Data[e] += g.Data[e]
			}
			grads[in] = sum
		} else {
			grads[in] = g
		}
	}
	return nil
}

func forward(outputs []*Variable, givens Givens) (*trace, error) {
	tr := &trace{
		order:  topoSort(outputs),
		values: make(map[*Variable]Value),
	}

	for _, v := range outputs {
		if v.owner == nil {
			if err := tr.bindLeaf(v, givens); err != nil {
				return nil, err
			}
		}
	}

	for _, app := range tr.order {
		inVals := make([]Value, len(app.inputs))
		for k, in := range app.inputs {
			if in.owner == nil {
				if err := tr.bindLeaf(in, givens); err != nil {
					return nil, err
				}
			}
			inVals[k] = tr.values[in]
		}

		outVals, err := app.op.Perform(inVals)
		if err != nil {
			return nil, fmt.Errorf("graph: %s: %w", app.op.Name(), err)
		}
		if len(outVals) != len(app.outputs) {
			return nil, fmt.Errorf("graph: %s: %w: %d outputs, want %d",
				app.op.Name(), ErrBadOutput, len(outVals), len(app.outputs))
		}
		for j, out := range app.outputs {
			if err := outVals[j].check(); err != nil || !sameShape(outVals[j].Shape, out.shape) {
				return nil, fmt.Errorf("graph: %s: %w: output %d shape %v, want %v",
					app.op.Name(), ErrBadOutput, j, outVals[j].Shape, out.shape)
			}
			tr.values[out] = outVals[j]
		}
	}
	return tr, nil
}

func (tr *trace) bindLeaf(v *Variable, givens Givens) error {
	if _, done := tr.values[v]; done {
		return nil
	}
	if v.constant != nil {
		tr.values[v] = *v.constant
		return nil
	}
	val, ok := givens[v]
	if !ok {
		return fmt.Errorf("graph: %w: %s", ErrMissingInput, v)
	}
	if err := val.check(); err != nil {
		return fmt.Errorf("graph: input %s: %w", v, err)
	}
	if !sameShape(val.Shape, v.shape) {
		return fmt.Errorf("graph: input %s: %w: got %v, want %v", v, ErrShapeMismatch, val.Shape, v.shape)
	}
	tr.values[v] = val
	return nil
}

// topoSort returns the applies needed for outputs, dependencies first.
func topoSort(outputs []*Variable) []*Apply {
	var order []*Apply
	visited := make(map[*Apply]bool)

	var visit func(app *Apply)
	visit = func(app *Apply) {
		if visited[app] {
			return
		}
		visited[app] = true
		for _, in := range app.inputs {
			if in.owner != nil {
				visit(in.owner)
			}
		}
		order = append(order, app)
	}

	for _, v := range slices.Clone(outputs) {
		if v.owner != nil {
			visit(v.owner)
		}
	}
	return order
}
