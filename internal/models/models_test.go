package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/born-ml/gradbridge/internal/autodiff"
	"github.com/born-ml/gradbridge/internal/backend/cpu"
	"github.com/born-ml/gradbridge/internal/bridge"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

var (
	xs = []float64{-1, 0.5, 2, 3}
	ys = []float64{-2.5, 1.2, 3.9, 6.1}
)

func newOp(t *testing.T, name string, degree int) *bridge.Op[Backend] {
	t.Helper()
	backend := autodiff.New(cpu.New())
	m, err := New(name, degree, backend)
	require.NoError(t, err)
	aux, err := RegressionData(xs, ys, backend)
	require.NoError(t, err)
	op, err := bridge.New[Backend](backend, m, m.Parameters(), aux)
	require.NoError(t, err)
	return op
}

func flat(values [][]float64) []float64 {
	var out []float64
	for _, v := range values {
		out = append(out, v...)
	}
	return out
}

func gaussianLogLik(p []float64) float64 {
	m, b, ls := p[0], p[1], p[2]
	n := float64(len(xs))
	var sse float64
	for i := range xs {
		r := ys[i] - (m*xs[i] + b)
		sse += r * r
	}
	return -0.5*n*math.Log(2*math.Pi) - n*ls - sse/(2*math.Exp(2*ls))
}

func polyLoss(w []float64) float64 {
	var loss float64
	for i, x := range xs {
		f, v := 0.0, 1.0
		for _, wk := range w {
			f += wk * v
			v *= x
		}
		r := ys[i] - f
		loss += r * r
	}
	return loss
}

func TestLinearRegression_ClosedForm(t *testing.T) {
	op := newOp(t, NameLinear, 0)

	for _, pt := range [][2]float64{{0, 0}, {1, -1}, {2.5, 0.3}, {-3, 4}} {
		m, b := pt[0], pt[1]
		ev, err := op.Evaluate([][]float64{{m}, {b}})
		require.NoError(t, err)

		var loss, dm, db float64
		for i, x := range xs {
			r := ys[i] - (m*x + b)
			loss += r * r
			dm += -2 * x * r
			db += -2 * r
		}
		assert.InDelta(t, loss, ev.Value, 1e-9)
		assert.InDelta(t, dm, ev.Grads[0][0], 1e-6)
		assert.InDelta(t, db, ev.Grads[1][0], 1e-6)
	}
}

func TestGaussianLinear_MatchesFiniteDifferences(t *testing.T) {
	op := newOp(t, NameGaussian, 0)

	for _, p := range [][]float64{{0, 0, 0}, {1.9, 0.1, -0.5}, {-1, 2, 0.7}} {
		ev, err := op.Evaluate([][]float64{{p[0]}, {p[1]}, {p[2]}})
		require.NoError(t, err)

		want := fd.Gradient(nil, gaussianLogLik, p, &fd.Settings{Formula: fd.Central})
		assert.InDelta(t, gaussianLogLik(p), ev.Value, 1e-9)
		assert.InDeltaSlice(t, want, flat(ev.Grads), 1e-5)
	}
}

func TestPolynomial_VectorGradient(t *testing.T) {
	op := newOp(t, NamePolynomial, 2)

	w := []float64{0.3, 1.1, -0.2}
	ev, err := op.Evaluate([][]float64{w})
	require.NoError(t, err)
	require.Len(t, ev.Grads, 1)
	require.Len(t, ev.Grads[0], 3)

	want := fd.Gradient(nil, polyLoss, w, &fd.Settings{Formula: fd.Central})
	assert.InDelta(t, polyLoss(w), ev.Value, 1e-9)
	assert.InDeltaSlice(t, want, ev.Grads[0], 1e-5)
}

func TestObjectiveSign(t *testing.T) {
	backend := autodiff.New(cpu.New())
	assert.Equal(t, -1.0, NewLinearRegression(backend).Objective().Sign())
	assert.Equal(t, 1.0, NewGaussianLinear(backend).Objective().Sign())
	assert.Equal(t, 2, NewPolynomial(2, backend).Degree())
}

func TestNew_Errors(t *testing.T) {
	backend := autodiff.New(cpu.New())

	_, err := New("quadratic", 0, backend)
	assert.ErrorIs(t, err, ErrUnknownModel)

	_, err = New(NamePolynomial, -1, backend)
	assert.Error(t, err)
}

func TestRegressionData_Errors(t *testing.T) {
	backend := autodiff.New(cpu.New())

	_, err := RegressionData(nil, nil, backend)
	assert.Error(t, err)

	_, err = RegressionData([]float64{1, 2}, []float64{1}, backend)
	assert.Error(t, err)
}

func TestForward_MissingAux(t *testing.T) {
	backend := autodiff.New(cpu.New())
	m := NewLinearRegression(backend)
	_, err := m.Forward(bridge.Aux[Backend]{})
	assert.ErrorContains(t, err, `"x"`)
}
