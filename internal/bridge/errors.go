package bridge

import (
	"errors"
	"fmt"

	"github.com/born-ml/gradbridge/internal/metrics"
)

// Common errors.
var (
	ErrNoParameters                   = errors.New("model has no parameters")
	ErrArityMismatch                  = errors.New("parameter count mismatch")
	ErrShapeMismatch                  = fmt.Errorf("%w: parameter size mismatch", ErrArityMismatch)
	ErrDisconnectedGradient           = errors.New("parameter does not influence the output")
	ErrUnsupportedHigherOrderGradient = errors.New("differentiation through gradient outputs is not supported")
	ErrForeignComputation             = errors.New("foreign computation failed")
)

// EvalError reports a failed construction or evaluation.
type EvalError struct {
	Op    string // Bridge name
	Param string // Parameter involved, if any
	Err   error
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("bridge %s: parameter %q: %v", e.Op, e.Param, e.Err)
	}
	return fmt.Sprintf("bridge %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *EvalError) Unwrap() error {
	return e.Err
}

// resultLabel maps an evaluation error to its metrics label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, ErrArityMismatch):
		return metrics.ResultArity
	case errors.Is(err, ErrDisconnectedGradient):
		return metrics.ResultDisconnected
	case errors.Is(err, ErrUnsupportedHigherOrderGradient):
		return metrics.ResultHigherOrder
	default:
		return metrics.ResultForeign
	}
}
