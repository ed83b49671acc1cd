package autodiff_test

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/diff/fd"

	"github.com/born-ml/gradbridge/internal/autodiff"
	"github.com/born-ml/gradbridge/internal/backend/cpu"
	"github.com/born-ml/gradbridge/internal/tensor"
)

func TestAutodiffBackend_Name(t *testing.T) {
	backend := autodiff.New(cpu.New())
	if backend.Name() != "Autodiff(CPU)" {
		t.Errorf("Name() = %s, want Autodiff(CPU)", backend.Name())
	}
	if backend.Device() != tensor.CPU {
		t.Errorf("Device() = %v, want %v", backend.Device(), tensor.CPU)
	}
}

func TestTape_Recording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	if tape.IsRecording() {
		t.Error("Tape should not be recording initially")
	}

	a, _ := tensor.FromSlice([]float64{1, 2}, tensor.Shape{2}, backend)
	a.Add(a)
	if tape.NumOps() != 0 {
		t.Errorf("Tape recorded %d ops while stopped", tape.NumOps())
	}

	tape.StartRecording()
	a.Add(a)
	if tape.NumOps() != 1 {
		t.Errorf("Expected 1 operation recorded, got %d", tape.NumOps())
	}

	tape.Clear()
	if tape.NumOps() != 0 {
		t.Errorf("Tape should be empty after Clear(), got %d ops", tape.NumOps())
	}
	if !tape.IsRecording() {
		t.Error("Clear() must preserve the recording state")
	}

	tape.StopRecording()
	if tape.IsRecording() {
		t.Error("Tape should not be recording after StopRecording()")
	}
}

func TestBackward_EmptyTape(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := tensor.Scalar(1.0, backend)

	_, err := autodiff.Backward(x, backend)
	if !errors.Is(err, autodiff.ErrEmptyTape) {
		t.Errorf("Backward() error = %v, want ErrEmptyTape", err)
	}
}

func TestBackward_Square(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x := tensor.Scalar(3.0, backend)
	y := x.Mul(x) // y = x², accumulates through both operands

	grads, err := autodiff.Backward(y, backend)
	if err != nil {
		t.Fatalf("Backward: %v", err)
	}
	if got := grads[x.Raw()].AsFloat64()[0]; got != 6 {
		t.Errorf("dy/dx = %v, want 6", got)
	}
	if backend.Tape().IsRecording() != true {
		t.Error("Backward must restore the recording state")
	}
}

func TestBackward_UnusedTensorHasNoGradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x := tensor.Scalar(2.0, backend)
	unused := tensor.Scalar(5.0, backend)
	_ = unused.AddScalar(1)
	y := x.Square()

	grads, err := autodiff.Backward(y, backend)
	if err != nil {
		t.Fatalf("Backward: %v", err)
	}
	if _, ok := grads[unused.Raw()]; ok {
		t.Error("tensor outside the output's history must not receive a gradient")
	}
	if got := grads[x.Raw()].AsFloat64()[0]; got != 4 {
		t.Errorf("dy/dx = %v, want 4", got)
	}
}

// TestBackward_MatchesFiniteDifferences checks
// f(w, c) = sum(exp(w·x + c) / (1 + (w·x)²)) - log(c²) against gonum's
// central differences.
func TestBackward_MatchesFiniteDifferences(t *testing.T) {
	xs := []float64{0.5, -1, 2}

	f := func(p []float64) float64 {
		w, c := p[0], p[1]
		var s float64
		for _, x := range xs {
			s += math.Exp(w*x+c) / (1 + (w*x)*(w*x))
		}
		return s - math.Log(c*c)
	}

	grad := func(p []float64) []float64 {
		backend := autodiff.New(cpu.New())
		backend.Tape().StartRecording()

		x, _ := tensor.FromSlice(xs, tensor.Shape{3}, backend)
		w := tensor.Scalar(p[0], backend)
		c := tensor.Scalar(p[1], backend)

		wx := x.Mul(w)
		num := wx.Add(c).Exp()
		den := wx.Square().AddScalar(1)
		y := num.Div(den).Sum().Sub(c.Square().Log())

		grads, err := autodiff.Backward(y, backend)
		if err != nil {
			t.Fatalf("Backward: %v", err)
		}
		return []float64{grads[w.Raw()].AsFloat64()[0], grads[c.Raw()].AsFloat64()[0]}
	}

	for _, p := range [][]float64{{0.3, 1.2}, {-0.7, 0.4}, {1.1, -2}} {
		want := fd.Gradient(nil, f, p, &fd.Settings{Formula: fd.Central})
		got := grad(p)
		for i := range want {
			if math.Abs(got[i]-want[i]) > 1e-5 {
				t.Errorf("p=%v grad[%d] = %v, finite difference %v", p, i, got[i], want[i])
			}
		}
	}
}

func TestBackward_MatMulReshapeTranspose(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// y = sum((Aᵀ)ᵀ @ reshape(w, [2,1]))
	a, _ := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{3, 2}, backend)
	w, _ := tensor.FromSlice([]float64{1, -1}, tensor.Shape{2}, backend)

	y := a.T().T().MatMul(w.Reshape(2, 1)).Sum()
	if got := y.Item(); got != -3 {
		t.Fatalf("y = %v, want -3", got)
	}

	grads, err := autodiff.Backward(y, backend)
	if err != nil {
		t.Fatalf("Backward: %v", err)
	}

	gw := grads[w.Raw()]
	if !gw.Shape().Equal(tensor.Shape{2}) {
		t.Fatalf("grad shape = %v, want [2]", gw.Shape())
	}
	// dy/dw_j = Σ_i A[i,j]
	if got := gw.AsFloat64(); got[0] != 9 || got[1] != 12 {
		t.Errorf("grad = %v, want [9 12]", got)
	}
	ga := grads[a.Raw()].AsFloat64()
	for i := 0; i < 3; i++ {
		if ga[2*i] != 1 || ga[2*i+1] != -1 {
			t.Errorf("grad_a row %d = %v, want [1 -1]", i, ga[2*i:2*i+2])
		}
	}
}
