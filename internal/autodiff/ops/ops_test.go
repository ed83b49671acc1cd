package ops

import (
	"math"
	"testing"

	"github.com/born-ml/gradbridge/internal/backend/cpu"
	"github.com/born-ml/gradbridge/internal/tensor"
)

func raw(t *testing.T, shape tensor.Shape, data ...float64) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SetFloat64s(data); err != nil {
		t.Fatal(err)
	}
	return r
}

func expect(t *testing.T, name string, got *tensor.RawTensor, shape tensor.Shape, want ...float64) {
	t.Helper()
	if !got.Shape().Equal(shape) {
		t.Fatalf("%s: shape = %v, want %v", name, got.Shape(), shape)
	}
	for i, w := range want {
		if g := got.AsFloat64()[i]; math.Abs(g-w) > 1e-12 {
			t.Errorf("%s[%d] = %v, want %v", name, i, g, w)
		}
	}
}

func TestReduceBroadcast(t *testing.T) {
	backend := cpu.New()
	grad := raw(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)

	expect(t, "rows", reduceBroadcast(grad, tensor.Shape{1, 3}, backend), tensor.Shape{1, 3}, 5, 7, 9)
	expect(t, "cols", reduceBroadcast(grad, tensor.Shape{2, 1}, backend), tensor.Shape{2, 1}, 6, 15)
	expect(t, "leading", reduceBroadcast(grad, tensor.Shape{3}, backend), tensor.Shape{3}, 5, 7, 9)
	expect(t, "scalar", reduceBroadcast(grad, tensor.Shape{}, backend), tensor.Shape{}, 21)

	same := reduceBroadcast(grad, tensor.Shape{2, 3}, backend)
	same.AsFloat64()[0] = 99
	if grad.AsFloat64()[0] != 1 {
		t.Error("reduceBroadcast must not alias the gradient")
	}
}

func TestMulOp_BackwardBroadcast(t *testing.T) {
	backend := cpu.New()
	a := raw(t, tensor.Shape{}, 2)
	b := raw(t, tensor.Shape{3}, 1, 2, 3)
	op := NewMulOp(a, b, backend.Mul(a, b))

	grads := op.Backward(raw(t, tensor.Shape{3}, 1, 1, 1), backend)
	expect(t, "grad_a", grads[0], tensor.Shape{}, 6)
	expect(t, "grad_b", grads[1], tensor.Shape{3}, 2, 2, 2)
}

func TestSubAndDivOp_Backward(t *testing.T) {
	backend := cpu.New()
	a := raw(t, tensor.Shape{2}, 6, 8)
	b := raw(t, tensor.Shape{2}, 2, 4)
	upstream := raw(t, tensor.Shape{2}, 1, 1)

	sub := NewSubOp(a, b, backend.Sub(a, b)).Backward(upstream, backend)
	expect(t, "sub_a", sub[0], tensor.Shape{2}, 1, 1)
	expect(t, "sub_b", sub[1], tensor.Shape{2}, -1, -1)

	div := NewDivOp(a, b, backend.Div(a, b)).Backward(upstream, backend)
	expect(t, "div_a", div[0], tensor.Shape{2}, 0.5, 0.25)
	expect(t, "div_b", div[1], tensor.Shape{2}, -1.5, -0.5)
}

func TestMatMulOp_Backward(t *testing.T) {
	backend := cpu.New()
	a := raw(t, tensor.Shape{1, 2}, 1, 2)
	b := raw(t, tensor.Shape{2, 1}, 3, 4)
	op := NewMatMulOp(a, b, backend.MatMul(a, b))

	grads := op.Backward(raw(t, tensor.Shape{1, 1}, 1), backend)
	expect(t, "grad_a", grads[0], tensor.Shape{1, 2}, 3, 4)
	expect(t, "grad_b", grads[1], tensor.Shape{2, 1}, 1, 2)
}

func TestUnaryOps_Backward(t *testing.T) {
	backend := cpu.New()
	x := raw(t, tensor.Shape{2}, 1, 2)
	upstream := raw(t, tensor.Shape{2}, 1, 1)

	expect(t, "exp", NewExpOp(x, backend.Exp(x)).Backward(upstream, backend)[0], tensor.Shape{2}, math.E, math.Exp(2))
	expect(t, "log", NewLogOp(x, backend.Log(x)).Backward(upstream, backend)[0], tensor.Shape{2}, 1, 0.5)
	expect(t, "square", NewSquareOp(x, backend.Square(x)).Backward(upstream, backend)[0], tensor.Shape{2}, 2, 4)
	expect(t, "scale", NewScaleOp(x, backend.MulScalar(x, 3), 3).Backward(upstream, backend)[0], tensor.Shape{2}, 3, 3)
	expect(t, "shift", NewShiftOp(x, backend.AddScalar(x, 3)).Backward(upstream, backend)[0], tensor.Shape{2}, 1, 1)
}

func TestSumOp_Backward(t *testing.T) {
	backend := cpu.New()
	x := raw(t, tensor.Shape{2, 2}, 1, 2, 3, 4)
	op := NewSumOp(x, backend.Sum(x))

	grads := op.Backward(raw(t, tensor.Shape{}, 2.5), backend)
	expect(t, "sum", grads[0], tensor.Shape{2, 2}, 2.5, 2.5, 2.5, 2.5)
}
