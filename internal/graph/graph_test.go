package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
)

// squaredError builds sum((y - (m*x + b))^2) with scalar inputs m and b.
func squaredError(t *testing.T, xs, ys []float64) (cost, m, b *Variable) {
	t.Helper()
	m = Input("m")
	b = Input("b")
	x := Constant("x", Vector(xs...))
	y := Constant("y", Vector(ys...))

	mx, err := Mul(m, x)
	require.NoError(t, err)
	f, err := Add(mx, b)
	require.NoError(t, err)
	r, err := Sub(y, f)
	require.NoError(t, err)
	r2, err := Square(r)
	require.NoError(t, err)
	cost, err = Sum(r2)
	require.NoError(t, err)
	return cost, m, b
}

func TestEval(t *testing.T) {
	a := Input("a", 2)
	b := Input("b", 2)
	s, err := Add(a, b)
	require.NoError(t, err)
	p, err := Mul(s, b)
	require.NoError(t, err)
	n, err := Neg(p)
	require.NoError(t, err)

	out, err := Eval([]*Variable{s, n}, Givens{
		a: Vector(1, 2),
		b: Vector(3, 4),
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 6}, out[0].Data)
	assert.Equal(t, []float64{-12, -24}, out[1].Data)
}

func TestValueAndGrad_SquaredError(t *testing.T) {
	cost, m, b := squaredError(t, []float64{1, 2, 3}, []float64{2, 4, 6})

	v, grads, err := ValueAndGrad(cost, []*Variable{m, b}, Givens{
		m: Scalar(0),
		b: Scalar(0),
	})
	require.NoError(t, err)

	got, err := v.Item()
	require.NoError(t, err)
	assert.InDelta(t, 56.0, got, 1e-12)
	assert.InDelta(t, -56.0, grads[0].Data[0], 1e-12)
	assert.InDelta(t, -24.0, grads[1].Data[0], 1e-12)
	assert.Empty(t, grads[0].Shape)
}

func TestValueAndGrad_SharedInputAccumulates(t *testing.T) {
	x := Input("x", 2)
	xx, err := Mul(x, x)
	require.NoError(t, err)
	y, err := Scale(xx, 3)
	require.NoError(t, err)
	cost, err := Sum(y)
	require.NoError(t, err)

	_, grads, err := ValueAndGrad(cost, []*Variable{x}, Givens{x: Vector(1, 2)})
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 12}, grads[0].Data)
}

func TestValueAndGrad_CostIsInput(t *testing.T) {
	x := Input("x")
	v, grads, err := ValueAndGrad(x, []*Variable{x}, Givens{x: Scalar(5)})
	require.NoError(t, err)
	assert.Equal(t, []float64{5}, v.Data)
	assert.Equal(t, []float64{1}, grads[0].Data)
}

func TestValueAndGrad_Errors(t *testing.T) {
	x := Input("x", 2)
	unused := Input("unused")
	cost, err := Sum(x)
	require.NoError(t, err)

	t.Run("missing input", func(t *testing.T) {
		_, _, err := ValueAndGrad(cost, []*Variable{x}, Givens{})
		assert.ErrorIs(t, err, ErrMissingInput)
	})
	t.Run("wrong given shape", func(t *testing.T) {
		_, _, err := ValueAndGrad(cost, []*Variable{x}, Givens{x: Vector(1, 2, 3)})
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})
	t.Run("non-scalar cost", func(t *testing.T) {
		_, _, err := ValueAndGrad(x, []*Variable{x}, Givens{x: Vector(1, 2)})
		assert.ErrorIs(t, err, ErrNonScalarCost)
	})
	t.Run("disconnected wrt", func(t *testing.T) {
		_, _, err := ValueAndGrad(cost, []*Variable{x, unused}, Givens{x: Vector(1, 2), unused: Scalar(0)})
		assert.ErrorIs(t, err, ErrDisconnectedInput)
		assert.Contains(t, err.Error(), "unused")
	})
	t.Run("wrt is not an input", func(t *testing.T) {
		_, _, err := ValueAndGrad(cost, []*Variable{cost}, Givens{x: Vector(1, 2)})
		assert.ErrorIs(t, err, ErrInputNotSource)
	})
	t.Run("duplicate wrt", func(t *testing.T) {
		_, _, err := ValueAndGrad(cost, []*Variable{x, x}, Givens{x: Vector(1, 2)})
		assert.ErrorIs(t, err, ErrDuplicateWrtInputs)
	})
}

func TestCall_ShapeChecks(t *testing.T) {
	_, err := Add(Input("a", 2), Input("b", 3))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Call(binaryOp{kind: addKind}, Input("a"))
	assert.ErrorIs(t, err, ErrArity)

	v, err := Mul(Input("s"), Input("v", 4))
	require.NoError(t, err)
	assert.Equal(t, []int{4}, v.Shape())
}

// pairOp returns (sum(x), 2x) and records the upstream gradients it sees.
type pairOp struct {
	seen []Value
}

func (*pairOp) Name() string    { return "pair" }
func (*pairOp) NumOutputs() int { return 2 }

func (*pairOp) OutputShapes(in [][]int) ([][]int, error) {
	return [][]int{{}, in[0]}, nil
}

func (*pairOp) Perform(in []Value) ([]Value, error) {
	s := 0.0
	d := Zeros(in[0].Shape)
	for i, x := range in[0].Data {
		s += x
		d.Data[i] = 2 * x
	}
	return []Value{Scalar(s), d}, nil
}

func (o *pairOp) Grad(in, _, outGrads []Value) ([]Value, error) {
	o.seen = outGrads
	g := Zeros(in[0].Shape)
	for i := range g.Data {
		g.Data[i] = outGrads[0].Data[0]
	}
	return []Value{g}, nil
}

func TestValueAndGrad_UnusedOutputIsDisconnected(t *testing.T) {
	op := &pairOp{}
	x := Input("x", 3)
	outs, err := Call(op, x)
	require.NoError(t, err)
	cost, err := Scale(outs[0], 2)
	require.NoError(t, err)

	_, grads, err := ValueAndGrad(cost, []*Variable{x}, Givens{x: Vector(1, 2, 3)})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 2}, grads[0].Data)

	require.Len(t, op.seen, 2)
	assert.False(t, op.seen[0].Disconnected())
	assert.True(t, op.seen[1].Disconnected())
}

func TestFunction(t *testing.T) {
	w := Input("w", 2)
	c := Input("c")
	k := Input("k", 2)

	diff, err := Sub(w, k)
	require.NoError(t, err)
	sq, err := Square(diff)
	require.NoError(t, err)
	s, err := Sum(sq)
	require.NoError(t, err)
	cost, err := Mul(s, c)
	require.NoError(t, err)

	fn, err := NewFunction(cost, []*Variable{w, c}, Givens{k: Vector(1, -1)})
	require.NoError(t, err)
	assert.Equal(t, 3, fn.Dim())

	x := []float64{0.5, 2, 1.5}
	v, grad, err := fn.ValueAndGrad(x)
	require.NoError(t, err)

	want := fd.Gradient(nil, func(p []float64) float64 {
		v, err := fn.Value(p)
		require.NoError(t, err)
		return v
	}, x, &fd.Settings{Formula: fd.Central})

	assert.InDelta(t, 1.5*(0.25+9), v, 1e-12)
	assert.InDeltaSlice(t, want, grad, 1e-6)

	_, _, err = fn.ValueAndGrad([]float64{1})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = NewFunction(sq, []*Variable{w}, nil)
	assert.ErrorIs(t, err, ErrNonScalarCost)
}
