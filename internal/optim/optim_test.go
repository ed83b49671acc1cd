package optim_test

import (
	"errors"
	"math"
	"testing"

	"github.com/born-ml/gradbridge/internal/optim"
)

func near(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

// TestSGD_SimpleUpdate tests SGD without momentum.
func TestSGD_SimpleUpdate(t *testing.T) {
	opt := optim.NewSGD(optim.SGDConfig{LR: 0.1})
	x := []float64{2.0, -1.0}

	if err := opt.Step(x, []float64{1.0, -2.0}); err != nil {
		t.Fatalf("Step: %v", err)
	}

	// x_new = x_old - lr * grad
	if !near(x[0], 1.9, 1e-12) || !near(x[1], -0.8, 1e-12) {
		t.Errorf("SGD update: got %v, want [1.9 -0.8]", x)
	}
}

// TestSGD_WithMomentum tests SGD with momentum over two steps.
func TestSGD_WithMomentum(t *testing.T) {
	opt := optim.NewSGD(optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	x := []float64{2.0}

	// v1 = 1, x = 2 - 0.1 = 1.9
	// v2 = 0.9 + 1 = 1.9, x = 1.9 - 0.19 = 1.71
	for range 2 {
		if err := opt.Step(x, []float64{1.0}); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if !near(x[0], 1.71, 1e-12) {
		t.Errorf("momentum update: got %f, want 1.71", x[0])
	}

	opt.Reset()
	if err := opt.Step(x, []float64{1.0}); err != nil {
		t.Fatalf("Step after Reset: %v", err)
	}
	if !near(x[0], 1.61, 1e-12) {
		t.Errorf("after Reset: got %f, want 1.61", x[0])
	}
}

// TestAdam_FirstStep checks that the first bias-corrected step has size lr.
func TestAdam_FirstStep(t *testing.T) {
	opt := optim.NewAdam(optim.AdamConfig{LR: 0.1})
	x := []float64{2.0, 2.0}

	if err := opt.Step(x, []float64{5.0, -0.01}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !near(x[0], 1.9, 1e-6) || !near(x[1], 2.1, 1e-4) {
		t.Errorf("Adam first step: got %v, want [1.9 2.1]", x)
	}
}

// TestAdam_MinimisesQuadratic runs Adam on (x-3)^2.
func TestAdam_MinimisesQuadratic(t *testing.T) {
	opt := optim.NewAdam(optim.AdamConfig{LR: 0.1})
	x := []float64{0}

	for range 1000 {
		g := []float64{2 * (x[0] - 3)}
		if err := opt.Step(x, g); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if !near(x[0], 3, 1e-2) {
		t.Errorf("Adam converged to %f, want 3", x[0])
	}
}

// TestLengthMismatch covers both mismatch forms.
func TestLengthMismatch(t *testing.T) {
	for _, opt := range []optim.Optimizer{
		optim.NewSGD(optim.SGDConfig{Momentum: 0.5}),
		optim.NewAdam(optim.AdamConfig{}),
	} {
		if err := opt.Step([]float64{1, 2}, []float64{1}); !errors.Is(err, optim.ErrLengthMismatch) {
			t.Errorf("%T: got %v, want ErrLengthMismatch", opt, err)
		}
		if err := opt.Step([]float64{1, 2}, []float64{1, 1}); err != nil {
			t.Fatalf("%T: %v", opt, err)
		}
		if err := opt.Step([]float64{1}, []float64{1}); !errors.Is(err, optim.ErrLengthMismatch) {
			t.Errorf("%T: state length change: got %v, want ErrLengthMismatch", opt, err)
		}
	}
}

// TestLR tests defaults and scheduling.
func TestLR(t *testing.T) {
	sgd := optim.NewSGD(optim.SGDConfig{})
	if sgd.LR() != 0.01 {
		t.Errorf("SGD default LR = %f, want 0.01", sgd.LR())
	}
	adam := optim.NewAdam(optim.AdamConfig{})
	if adam.LR() != 0.001 {
		t.Errorf("Adam default LR = %f, want 0.001", adam.LR())
	}
	adam.SetLR(0.5)
	if adam.LR() != 0.5 {
		t.Errorf("SetLR: got %f", adam.LR())
	}
}
