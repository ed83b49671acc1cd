// Package nn holds trainable parameters and the module interface for the
// foreign autodiff engine.
package nn

import (
	"github.com/born-ml/gradbridge/internal/tensor"
)

// Module is anything that owns an ordered list of trainable parameters.
type Module[B tensor.Backend] interface {
	// Parameters returns the module's parameters in a stable order.
	Parameters() []*Parameter[B]
}

// ZeroGrad clears the gradient of every parameter of m.
func ZeroGrad[B tensor.Backend](m Module[B]) {
	for _, p := range m.Parameters() {
		p.ZeroGrad()
	}
}

// NumElements returns the total number of scalar values across params.
func NumElements[B tensor.Backend](params []*Parameter[B]) int {
	n := 0
	for _, p := range params {
		n += p.Shape().NumElements()
	}
	return n
}
