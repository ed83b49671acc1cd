package optim

import (
	"gonum.org/v1/gonum/floats"
)

// SGD implements gradient descent with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD struct {
	lr       float64
	momentum float64
	velocity []float64
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD(config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		lr:       config.LR,
		momentum: config.Momentum,
	}
}

// Step performs a single optimization step.
func (s *SGD) Step(params, grads []float64) error {
	if err := checkLengths(params, grads, len(s.velocity)); err != nil {
		return err
	}
	if s.momentum == 0 {
		floats.AddScaled(params, -s.lr, grads)
		return nil
	}

	if s.velocity == nil {
		s.velocity = make([]float64, len(params))
	}
	floats.Scale(s.momentum, s.velocity)
	floats.Add(s.velocity, grads)
	floats.AddScaled(params, -s.lr, s.velocity)
	return nil
}

// Reset clears the velocity buffer.
func (s *SGD) Reset() {
	s.velocity = nil
}

// LR returns the current learning rate.
func (s *SGD) LR() float64 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float64) {
	s.lr = lr
}
