package models

import (
	"math"

	"github.com/born-ml/gradbridge/internal/bridge"
	"github.com/born-ml/gradbridge/internal/nn"
	"github.com/born-ml/gradbridge/internal/tensor"
)

// LinearRegression is the squared error of the line f = m*x + b:
//
//	sum((y - (m*x + b))^2)
type LinearRegression[B tensor.Backend] struct {
	Slope     *nn.Parameter[B]
	Intercept *nn.Parameter[B]
}

// NewLinearRegression creates the model with m = b = 0.
func NewLinearRegression[B tensor.Backend](backend B) *LinearRegression[B] {
	return &LinearRegression[B]{
		Slope:     nn.NewParameter("m", tensor.Scalar(0.0, backend)),
		Intercept: nn.NewParameter("b", tensor.Scalar(0.0, backend)),
	}
}

// Parameters returns [m, b].
func (l *LinearRegression[B]) Parameters() []*nn.Parameter[B] {
	return []*nn.Parameter[B]{l.Slope, l.Intercept}
}

// Objective implements Model.
func (l *LinearRegression[B]) Objective() Objective {
	return Loss
}

// Forward computes the squared error over the bound x and y.
func (l *LinearRegression[B]) Forward(aux bridge.Aux[B]) (*tensor.Tensor[float64, B], error) {
	x, y, err := regressionData(aux)
	if err != nil {
		return nil, err
	}
	return y.Sub(line(x, l.Slope, l.Intercept)).Square().Sum(), nil
}

func line[B tensor.Backend](x *tensor.Tensor[float64, B], m, b *nn.Parameter[B]) *tensor.Tensor[float64, B] {
	return x.Mul(m.Tensor()).Add(b.Tensor())
}

// GaussianLinear is the log-likelihood of y ~ Normal(m*x + b, exp(logSigma)).
type GaussianLinear[B tensor.Backend] struct {
	Slope     *nn.Parameter[B]
	Intercept *nn.Parameter[B]
	LogSigma  *nn.Parameter[B]
}

// NewGaussianLinear creates the model with every parameter at zero, so the
// noise scale starts at 1.
func NewGaussianLinear[B tensor.Backend](backend B) *GaussianLinear[B] {
	return &GaussianLinear[B]{
		Slope:     nn.NewParameter("m", tensor.Scalar(0.0, backend)),
		Intercept: nn.NewParameter("b", tensor.Scalar(0.0, backend)),
		LogSigma:  nn.NewParameter("log_sigma", tensor.Scalar(0.0, backend)),
	}
}

// Parameters returns [m, b, log_sigma].
func (g *GaussianLinear[B]) Parameters() []*nn.Parameter[B] {
	return []*nn.Parameter[B]{g.Slope, g.Intercept, g.LogSigma}
}

// Objective implements Model.
func (g *GaussianLinear[B]) Objective() Objective {
	return LogLikelihood
}

// Forward computes
//
//	-n/2 log(2 pi) - n log_sigma - sum((y - f)^2) / (2 exp(2 log_sigma))
func (g *GaussianLinear[B]) Forward(aux bridge.Aux[B]) (*tensor.Tensor[float64, B], error) {
	x, y, err := regressionData(aux)
	if err != nil {
		return nil, err
	}
	n := float64(x.NumElements())
	logSigma := g.LogSigma.Tensor()

	sse := y.Sub(line(x, g.Slope, g.Intercept)).Square().Sum()
	precision := logSigma.MulScalar(-2).Exp()
	return sse.Mul(precision).MulScalar(-0.5).
		Sub(logSigma.MulScalar(n)).
		AddScalar(-0.5 * n * math.Log(2*math.Pi)), nil
}
