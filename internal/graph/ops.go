package graph

import (
	"fmt"
)

type binaryKind int

const (
	addKind binaryKind = iota
	subKind
	mulKind
)

// binaryOp is an elementwise op on two values of equal shape, or on a value
// and a one-element value that is broadcast over it.
type binaryOp struct {
	kind binaryKind
}

func (o binaryOp) Name() string {
	switch o.kind {
	case addKind:
		return "add"
	case subKind:
		return "sub"
	default:
		return "mul"
	}
}

func (o binaryOp) NumOutputs() int { return 1 }

func (o binaryOp) OutputShapes(in [][]int) ([][]int, error) {
	if len(in) != 2 {
		return nil, fmt.Errorf("%w: %s takes 2 inputs, got %d", ErrArity, o.Name(), len(in))
	}
	a, b := in[0], in[1]
	switch {
	case sameShape(a, b), numElements(b) == 1:
		return [][]int{a}, nil
	case numElements(a) == 1:
		return [][]int{b}, nil
	}
	return nil, fmt.Errorf("%w: %v and %v", ErrShapeMismatch, a, b)
}

func (o binaryOp) Perform(in []Value) ([]Value, error) {
	a, b := in[0], in[1]
	out := Zeros(a.Shape)
	if a.Size() == 1 && b.Size() != 1 {
		out = Zeros(b.Shape)
	}
	for i := range out.Data {
		x, y := at(a, i), at(b, i)
		switch o.kind {
		case addKind:
			out.Data[i] = x + y
		case subKind:
			out.Data[i] = x - y
		default:
			out.Data[i] = x * y
		}
	}
	return []Value{out}, nil
}

func (o binaryOp) Grad(in, _, outGrads []Value) ([]Value, error) {
	g := outGrads[0]
	if g.Disconnected() {
		return []Value{{}, {}}, nil
	}
	a, b := in[0], in[1]

	ga := make([]float64, len(g.Data))
	gb := make([]float64, len(g.Data))
	for i, gi := range g.Data {
		switch o.kind {
		case addKind:
			ga[i], gb[i] = gi, gi
		case subKind:
			ga[i], gb[i] = gi, -gi
		default:
			ga[i], gb[i] = gi*at(b, i), gi*at(a, i)
		}
	}
	return []Value{reduceTo(ga, a.Shape), reduceTo(gb, b.Shape)}, nil
}

// at reads element i, broadcasting one-element values.
func at(v Value, i int) float64 {
	if len(v.Data) == 1 {
		return v.Data[0]
	}
	return v.Data[i]
}

// reduceTo sums a broadcast gradient back down to a one-element shape.
func reduceTo(g []float64, shape []int) Value {
	n := numElements(shape)
	if n == len(g) {
		return Value{Shape: append([]int{}, shape...), Data: g}
	}
	var s float64
	for _, x := range g {
		s += x
	}
	out := Zeros(shape)
	out.Data[0] = s
	return out
}

// unaryOp maps a value elementwise. deriv receives the input element.
type unaryOp struct {
	name  string
	fn    func(x float64) float64
	deriv func(x float64) float64
}

func (o unaryOp) Name() string    { return o.name }
func (o unaryOp) NumOutputs() int { return 1 }

func (o unaryOp) OutputShapes(in [][]int) ([][]int, error) {
	if len(in) != 1 {
		return nil, fmt.Errorf("%w: %s takes 1 input, got %d", ErrArity, o.name, len(in))
	}
	return [][]int{in[0]}, nil
}

func (o unaryOp) Perform(in []Value) ([]Value, error) {
	out := Zeros(in[0].Shape)
	for i, x := range in[0].Data {
		out.Data[i] = o.fn(x)
	}
	return []Value{out}, nil
}

func (o unaryOp) Grad(in, _, outGrads []Value) ([]Value, error) {
	g := outGrads[0]
	if g.Disconnected() {
		return []Value{{}}, nil
	}
	out := Zeros(in[0].Shape)
	for i, x := range in[0].Data {
		out.Data[i] = g.Data[i] * o.deriv(x)
	}
	return []Value{out}, nil
}

type sumOp struct{}

func (sumOp) Name() string    { return "sum" }
func (sumOp) NumOutputs() int { return 1 }

func (sumOp) OutputShapes(in [][]int) ([][]int, error) {
	if len(in) != 1 {
		return nil, fmt.Errorf("%w: sum takes 1 input, got %d", ErrArity, len(in))
	}
	return [][]int{{}}, nil
}

func (sumOp) Perform(in []Value) ([]Value, error) {
	var s float64
	for _, x := range in[0].Data {
		s += x
	}
	return []Value{Scalar(s)}, nil
}

func (sumOp) Grad(in, _, outGrads []Value) ([]Value, error) {
	g := outGrads[0]
	if g.Disconnected() {
		return []Value{{}}, nil
	}
	out := Zeros(in[0].Shape)
	for i := range out.Data {
		out.Data[i] = g.Data[0]
	}
	return []Value{out}, nil
}

// Add returns a + b.
func Add(a, b *Variable) (*Variable, error) {
	return Call1(binaryOp{kind: addKind}, a, b)
}

// Sub returns a - b.
func Sub(a, b *Variable) (*Variable, error) {
	return Call1(binaryOp{kind: subKind}, a, b)
}

// Mul returns the elementwise product a * b.
func Mul(a, b *Variable) (*Variable, error) {
	return Call1(binaryOp{kind: mulKind}, a, b)
}

// Scale returns c * x.
func Scale(x *Variable, c float64) (*Variable, error) {
	return Call1(unaryOp{
		name:  fmt.Sprintf("scale(%g)", c),
		fn:    func(v float64) float64 { return c * v },
		deriv: func(float64) float64 { return c },
	}, x)
}

// Neg returns -x.
func Neg(x *Variable) (*Variable, error) {
	return Call1(unaryOp{
		name:  "neg",
		fn:    func(v float64) float64 { return -v },
		deriv: func(float64) float64 { return -1 },
	}, x)
}

// Square returns x * x elementwise.
func Square(x *Variable) (*Variable, error) {
	return Call1(unaryOp{
		name:  "square",
		fn:    func(v float64) float64 { return v * v },
		deriv: func(v float64) float64 { return 2 * v },
	}, x)
}

// Sum reduces x to a scalar.
func Sum(x *Variable) (*Variable, error) {
	return Call1(sumOp{}, x)
}
