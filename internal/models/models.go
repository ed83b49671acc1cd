// Package models holds model handles for the bridge: small scalar
// objectives written against the autodiff engine.
package models

import (
	"errors"
	"fmt"

	"github.com/born-ml/gradbridge/internal/bridge"
	"github.com/born-ml/gradbridge/internal/tensor"
)

// Aux keys bound by RegressionData.
const (
	KeyX = "x"
	KeyY = "y"
)

// Objective says how a model's scalar output relates to a log-density.
type Objective int

const (
	// Loss outputs are minimised; the log-density is the negated loss.
	Loss Objective = iota
	// LogLikelihood outputs are the log-density itself.
	LogLikelihood
)

// Sign returns the factor that turns the model output into a log-density.
func (o Objective) Sign() float64 {
	if o == LogLikelihood {
		return 1
	}
	return -1
}

// Model is a bridge model that also states what its output means.
type Model[B tensor.Backend] interface {
	bridge.Model[B]
	Objective() Objective
}

// Model names accepted by New.
const (
	NameLinear     = "linear"
	NameGaussian   = "gaussian"
	NamePolynomial = "polynomial"
)

// ErrUnknownModel is returned by New for an unrecognised name.
var ErrUnknownModel = errors.New("unknown model")

// New builds a fresh model by name with all parameters at zero. degree is
// only used by the polynomial model.
func New[B tensor.Backend](name string, degree int, backend B) (Model[B], error) {
	switch name {
	case NameLinear:
		return NewLinearRegression(backend), nil
	case NameGaussian:
		return NewGaussianLinear(backend), nil
	case NamePolynomial:
		if degree < 0 {
			return nil, fmt.Errorf("polynomial degree must be >= 0, got %d", degree)
		}
		return NewPolynomial(degree, backend), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
}

// RegressionData binds paired observations x and y as aux data.
func RegressionData[B tensor.Backend](x, y []float64, backend B) (bridge.Aux[B], error) {
	if len(x) == 0 {
		return nil, errors.New("regression data is empty")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("regression data: %d x values, %d y values", len(x), len(y))
	}
	xt, err := tensor.FromSlice(x, tensor.Shape{len(x)}, backend)
	if err != nil {
		return nil, err
	}
	yt, err := tensor.FromSlice(y, tensor.Shape{len(y)}, backend)
	if err != nil {
		return nil, err
	}
	return bridge.Aux[B]{KeyX: xt, KeyY: yt}, nil
}

func regressionData[B tensor.Backend](aux bridge.Aux[B]) (x, y *tensor.Tensor[float64, B], err error) {
	if x, err = aux.Tensor(KeyX); err != nil {
		return nil, nil, err
	}
	if y, err = aux.Tensor(KeyY); err != nil {
		return nil, nil, err
	}
	return x, y, nil
}
