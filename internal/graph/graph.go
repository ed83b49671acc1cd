package graph

import (
	"errors"
	"fmt"
	"slices"
)

// Common errors.
var (
	ErrArity              = errors.New("wrong number of inputs")
	ErrShapeMismatch      = errors.New("shape mismatch")
	ErrNonScalar          = errors.New("value is not a scalar")
	ErrMissingInput       = errors.New("no value given for input")
	ErrDisconnectedInput  = errors.New("cost does not depend on input")
	ErrBadOutput          = errors.New("op returned malformed outputs")
	ErrNotDifferentiable  = errors.New("op is not differentiable")
	ErrNonScalarCost      = errors.New("cost must be a scalar")
	ErrInputNotSource     = errors.New("variable is not a graph input")
	ErrDuplicateWrtInputs = errors.New("input listed more than once")
)

// Op is a node type in the host graph.
//
// Grad receives the op's inputs and the outputs computed by Perform together
// with one upstream gradient per output; an upstream that is Disconnected
// means nothing downstream depends on that output. Grad returns one gradient
// per input, Disconnected where no gradient flows.
type Op interface {
	Name() string
	NumOutputs() int
	OutputShapes(inputs [][]int) ([][]int, error)
	Perform(inputs []Value) ([]Value, error)
	Grad(inputs, outputs, outputGrads []Value) ([]Value, error)
}

// Variable is an edge in the graph: a free input, a constant, or the i-th
// output of an Apply.
type Variable struct {
	name     string
	shape    []int
	owner    *Apply
	index    int
	constant *Value
}

// Apply is one application of an Op to input variables.
type Apply struct {
	op      Op
	inputs  []*Variable
	outputs []*Variable
}

// Input declares a free variable whose value is supplied at evaluation time.
func Input(name string, shape ...int) *Variable {
	return &Variable{name: name, shape: slices.Clone(shape)}
}

// Constant declares a variable bound to a fixed value.
func Constant(name string, v Value) *Variable {
	c := v.Clone()
	return &Variable{name: name, shape: c.Shape, constant: &c}
}

// Name returns the variable's name.
func (v *Variable) Name() string {
	return v.name
}

// Shape returns the declared shape.
func (v *Variable) Shape() []int {
	return slices.Clone(v.shape)
}

// Owner returns the Apply that produces v, or nil for inputs and constants.
func (v *Variable) Owner() *Apply {
	return v.owner
}

// Index returns v's position among its owner's outputs.
func (v *Variable) Index() int {
	return v.index
}

// IsInput reports whether v is a free input.
func (v *Variable) IsInput() bool {
	return v.owner == nil && v.constant == nil
}

// String renders the variable for error messages.
func (v *Variable) String() string {
	if v.owner != nil {
		return fmt.Sprintf("%s[%d]", v.owner.op.Name(), v.index)
	}
	return v.name
}

// Op returns the applied op.
func (a *Apply) Op() Op {
	return a.op
}

// Inputs returns the input variables.
func (a *Apply) Inputs() []*Variable {
	return a.inputs
}

// Outputs returns the output variables.
func (a *Apply) Outputs() []*Variable {
	return a.outputs
}

// Call applies op to inputs and returns its output variables. Arity and
// shapes are checked here, before anything is evaluated.
func Call(op Op, inputs ...*Variable) ([]*Variable, error) {
	shapes := make([][]int, len(inputs))
	for i, in := range inputs {
		shapes[i] = in.shape
	}

	outShapes, err := op.OutputShapes(shapes)
	if err != nil {
		return nil, fmt.Errorf("graph: %s: %w", op.Name(), err)
	}
	if len(outShapes) != op.NumOutputs() {
		return nil, fmt.Errorf("graph: %s: %w: declared %d outputs, shaped %d",
			op.Name(), ErrBadOutput, op.NumOutputs(), len(outShapes))
	}

	app := &Apply{op: op, inputs: slices.Clone(inputs)}
	app.outputs = make([]*Variable, len(outShapes))
	for i, s := range outShapes {
		app.outputs[i] = &Variable{
			name:  fmt.Sprintf("%s:%d", op.Name(), i),
			shape: slices.Clone(s),
			owner: app,
			index: i,
		}
	}
	return app.outputs, nil
}

// Call1 is Call for ops with a single output.
func Call1(op Op, inputs ...*Variable) (*Variable, error) {
	outs, err := Call(op, inputs...)
	if err != nil {
		return nil, err
	}
	return outs[0], nil
}
