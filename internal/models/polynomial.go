package models

import (
	"fmt"

	"github.com/born-ml/gradbridge/internal/bridge"
	"github.com/born-ml/gradbridge/internal/nn"
	"github.com/born-ml/gradbridge/internal/tensor"
)

// Polynomial is the squared error of a polynomial fit with one vector
// parameter w of length degree+1:
//
//	sum((y - sum_k w_k x^k)^2)
type Polynomial[B tensor.Backend] struct {
	Weights *nn.Parameter[B]
	degree  int
}

// NewPolynomial creates the model with all weights at zero.
func NewPolynomial[B tensor.Backend](degree int, backend B) *Polynomial[B] {
	return &Polynomial[B]{
		Weights: nn.NewParameter("w", tensor.Zeros[float64](tensor.Shape{degree + 1}, backend)),
		degree:  degree,
	}
}

// Degree returns the polynomial degree.
func (p *Polynomial[B]) Degree() int {
	return p.degree
}

// Parameters returns [w].
func (p *Polynomial[B]) Parameters() []*nn.Parameter[B] {
	return []*nn.Parameter[B]{p.Weights}
}

// Objective implements Model.
func (p *Polynomial[B]) Objective() Objective {
	return Loss
}

// Forward builds the Vandermonde matrix of x and computes the squared error
// of X·w against y.
func (p *Polynomial[B]) Forward(aux bridge.Aux[B]) (*tensor.Tensor[float64, B], error) {
	x, y, err := regressionData(aux)
	if err != nil {
		return nil, err
	}
	design, err := vandermonde(x, p.degree)
	if err != nil {
		return nil, err
	}
	k := p.degree + 1
	n := x.NumElements()
	fit := design.MatMul(p.Weights.Tensor().Reshape(k, 1)).Reshape(n)
	return y.Sub(fit).Square().Sum(), nil
}

// vandermonde returns the [n, degree+1] matrix with X[i][k] = x_i^k.
func vandermonde[B tensor.Backend](x *tensor.Tensor[float64, B], degree int) (*tensor.Tensor[float64, B], error) {
	xs := x.Data()
	k := degree + 1
	data := make([]float64, len(xs)*k)
	for i, xi := range xs {
		v := 1.0
		for j := range k {
			data[i*k+j] = v
			v *= xi
		}
	}
	t, err := tensor.FromSlice(data, tensor.Shape{len(xs), k}, x.Backend())
	if err != nil {
		return nil, fmt.Errorf("design matrix: %w", err)
	}
	return t, nil
}
