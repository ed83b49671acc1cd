package bridge

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/gradbridge/internal/graph"
	"github.com/born-ml/gradbridge/internal/metrics"
)

// NumOutputs returns 1 + the number of parameters: the value, then one
// gradient per parameter.
func (o *Op[B]) NumOutputs() int {
	return 1 + len(o.params)
}

// OutputShapes checks the host inputs against the parameters. Output 0 is a
// scalar and output i+1 has the shape of input i.
func (o *Op[B]) OutputShapes(in [][]int) ([][]int, error) {
	if len(in) != len(o.params) {
		return nil, o.errorf("", fmt.Errorf("%w: %d inputs for %d parameters", ErrArityMismatch, len(in), len(o.params)))
	}
	out := make([][]int, 1, 1+len(in))
	out[0] = []int{}
	for i, p := range o.params {
		n := 1
		for _, d := range in[i] {
			n *= d
		}
		if n != p.Shape().NumElements() {
			return nil, o.errorf(p.Name(), fmt.Errorf("%w: input shape %v, parameter shape %v", ErrShapeMismatch, in[i], p.Shape()))
		}
		out = append(out, slices.Clone(in[i]))
	}
	return out, nil
}

// Perform evaluates the model at the input values.
func (o *Op[B]) Perform(inputs []graph.Value) ([]graph.Value, error) {
	values := make([][]float64, len(inputs))
	for i, in := range inputs {
		values[i] = in.Data
	}
	ev, err := o.Evaluate(values)
	if err != nil {
		return nil, err
	}

	out := make([]graph.Value, 1, 1+len(inputs))
	out[0] = graph.Scalar(ev.Value)
	for i, in := range inputs {
		out = append(out, graph.Value{Shape: slices.Clone(in.Shape), Data: ev.Grads[i]})
	}
	return out, nil
}

// Grad returns upstream * grad_i for each input, where upstream is the
// gradient arriving at the value output. It reuses the gradients computed by
// Perform and never calls back into the model.
func (o *Op[B]) Grad(inputs, outputs, outputGrads []graph.Value) ([]graph.Value, error) {
	for i := 1; i < len(outputGrads); i++ {
		if !outputGrads[i].Disconnected() {
			o.metrics.Reject(metrics.ResultHigherOrder)
			return nil, o.errorf(o.params[i-1].Name(), ErrUnsupportedHigherOrderGradient)
		}
	}

	grads := make([]graph.Value, len(inputs))
	if outputGrads[0].Disconnected() {
		return grads, nil
	}
	upstream, err := outputGrads[0].Item()
	if err != nil {
		return nil, o.errorf("", err)
	}
	for i, in := range inputs {
		g := graph.Value{Shape: slices.Clone(in.Shape), Data: make([]float64, len(outputs[i+1].Data))}
		floats.ScaleTo(g.Data, upstream, outputs[i+1].Data)
		grads[i] = g
	}
	return grads, nil
}
