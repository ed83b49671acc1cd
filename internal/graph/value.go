// Package graph is a small numeric computation graph with its own reverse-mode
// differentiation. Nodes are opaque Ops that know how to compute their outputs
// and how to map output gradients to input gradients, which lets foreign
// computations plug in as first-class nodes.
package graph

import (
	"fmt"
	"slices"
)

// Value is a dense float64 array flowing along graph edges.
// An empty Shape is a scalar. The zero Value is the disconnected gradient.
type Value struct {
	Shape []int
	Data  []float64
}

// Scalar returns a 0-D value.
func Scalar(v float64) Value {
	return Value{Shape: []int{}, Data: []float64{v}}
}

// Vector returns a 1-D value.
func Vector(v ...float64) Value {
	return Value{Shape: []int{len(v)}, Data: slices.Clone(v)}
}

// Zeros returns a zero-filled value of the given shape.
func Zeros(shape []int) Value {
	return Value{Shape: slices.Clone(shape), Data: make([]float64, numElements(shape))}
}

// Disconnected reports whether v carries no gradient.
func (v Value) Disconnected() bool {
	return v.Data == nil
}

// Size returns the number of elements implied by Shape.
func (v Value) Size() int {
	return numElements(v.Shape)
}

// Item returns the single element of a one-element value.
func (v Value) Item() (float64, error) {
	if len(v.Data) != 1 {
		return 0, fmt.Errorf("%w: value of shape %v is not a scalar", ErrNonScalar, v.Shape)
	}
	return v.Data[0], nil
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	return Value{Shape: slices.Clone(v.Shape), Data: slices.Clone(v.Data)}
}

// check verifies that Data matches Shape.
func (v Value) check() error {
	if len(v.Data) != v.Size() {
		return fmt.Errorf("%w: shape %v needs %d elements, have %d", ErrShapeMismatch, v.Shape, v.Size(), len(v.Data))
	}
	return nil
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func sameShape(a, b []int) bool {
	return slices.Equal(a, b) || (numElements(a) == 1 && numElements(b) == 1 && len(a) <= 1 && len(b) <= 1)
}
