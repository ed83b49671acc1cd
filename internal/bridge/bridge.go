package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/born-ml/gradbridge/internal/autodiff"
	"github.com/born-ml/gradbridge/internal/logging"
	"github.com/born-ml/gradbridge/internal/metrics"
	"github.com/born-ml/gradbridge/internal/nn"
	"github.com/born-ml/gradbridge/internal/tensor"
)

// Aux is named, fixed, non-differentiable data bound at construction.
type Aux[B tensor.Backend] map[string]*tensor.Tensor[float64, B]

// Tensor returns the aux tensor called name.
func (a Aux[B]) Tensor(name string) (*tensor.Tensor[float64, B], error) {
	t, ok := a[name]
	if !ok {
		return nil, fmt.Errorf("aux data %q not bound", name)
	}
	return t, nil
}

// Model is a computation in the autodiff engine that maps its current
// parameter values and the aux data to one scalar.
type Model[B tensor.Backend] interface {
	nn.Module[B]
	Forward(aux Aux[B]) (*tensor.Tensor[float64, B], error)
}

// Evaluation is the result of one forward and backward pass. Grads[i] is the
// flattened gradient of Value with respect to parameter i.
type Evaluation struct {
	Value float64
	Grads [][]float64
}

// Op wraps a Model as a host-graph node.
type Op[B autodiff.BackwardCapable] struct {
	name    string
	backend B
	model   Model[B]
	params  []*nn.Parameter[B]
	aux     Aux[B]
	logger  *slog.Logger
	metrics *metrics.Bridge
}

// New binds model, its ordered parameter list and aux data into an Op.
// params must be exactly model.Parameters(): same count, same order, same
// parameter objects.
func New[B autodiff.BackwardCapable](backend B, model Model[B], params []*nn.Parameter[B], aux Aux[B], opts ...Option) (*Op[B], error) {
	cfg := config{name: defaultName}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.Discard()
	}

	if len(params) == 0 {
		return nil, &EvalError{Op: cfg.name, Err: ErrNoParameters}
	}
	expected := model.Parameters()
	if len(expected) != len(params) {
		return nil, &EvalError{Op: cfg.name, Err: fmt.Errorf("%w: model has %d parameters, %d given",
			ErrArityMismatch, len(expected), len(params))}
	}
	for i, p := range params {
		if p != expected[i] {
			return nil, &EvalError{Op: cfg.name, Param: p.Name(), Err: fmt.Errorf("%w: position %d holds %q, model expects %q",
				ErrArityMismatch, i, p.Name(), expected[i].Name())}
		}
	}

	op := &Op[B]{
		name:    cfg.name,
		backend: backend,
		model:   model,
		params:  params,
		aux:     aux,
		logger:  cfg.logger.With("op", cfg.name),
		metrics: cfg.metrics,
	}
	op.logger.Info("bridge ready",
		"backend", backend.Name(),
		"params", len(params),
		"elements", nn.NumElements(params))
	return op, nil
}

// Name returns the op name.
func (o *Op[B]) Name() string {
	return o.name
}

// Params returns the bound parameters in order.
func (o *Op[B]) Params() []*nn.Parameter[B] {
	return o.params
}

// Evaluate runs one forward and backward pass at values, one flat slice per
// parameter.
//
// Counts and sizes are checked before any parameter is written, so a
// rejected call leaves parameter storage untouched. After any failure no
// gradient from this or an earlier call remains on the parameters.
func (o *Op[B]) Evaluate(values [][]float64) (*Evaluation, error) {
	start := time.Now()
	ev, err := o.evaluate(values)
	o.metrics.Observe(resultLabel(err), time.Since(start))
	if err != nil {
		o.logger.Debug("evaluation failed", "error", err)
		return nil, err
	}
	return ev, nil
}

func (o *Op[B]) evaluate(values [][]float64) (*Evaluation, error) {
	if len(values) != len(o.params) {
		return nil, o.errorf("", fmt.Errorf("%w: got %d values for %d parameters",
			ErrArityMismatch, len(values), len(o.params)))
	}
	for i, p := range o.params {
		if want := p.Shape().NumElements(); len(values[i]) != want {
			return nil, o.errorf(p.Name(), fmt.Errorf("%w: got %d elements, parameter of shape %v has %d",
				ErrShapeMismatch, len(values[i]), p.Shape(), want))
		}
	}

	for i, p := range o.params {
		if err := p.SetValues(values[i]); err != nil {
			o.reset()
			return nil, o.errorf(p.Name(), fmt.Errorf("%w: %w", ErrForeignComputation, err))
		}
	}

	ev, err := o.forwardBackward()
	if err != nil {
		o.reset()
		return nil, err
	}
	return ev, nil
}

// forwardBackward clears gradient state, records the model's forward pass,
// differentiates the result and reads the parameter gradients. Panics raised
// by the kernels are returned as ErrForeignComputation.
func (o *Op[B]) forwardBackward() (ev *Evaluation, err error) {
	tape := o.backend.GetTape()
	defer func() {
		tape.StopRecording()
		tape.Clear()
		if r := recover(); r != nil {
			ev = nil
			err = o.errorf("", fmt.Errorf("%w: panic: %v", ErrForeignComputation, r))
		}
	}()

	o.reset()
	tape.StartRecording()
	out, err := o.model.Forward(o.aux)
	tape.StopRecording()
	if err != nil {
		return nil, o.errorf("", fmt.Errorf("%w: %w", ErrForeignComputation, err))
	}
	if out == nil {
		return nil, o.errorf("", fmt.Errorf("%w: model returned no output", ErrForeignComputation))
	}
	if out.NumElements() != 1 {
		return nil, o.errorf("", fmt.Errorf("%w: model output has shape %v, want a scalar",
			ErrForeignComputation, out.Shape()))
	}

	grads, err := autodiff.Backward(out, o.backend)
	switch {
	case errors.Is(err, autodiff.ErrEmptyTape):
		// No op was recorded, so the output is at most a parameter itself.
		seed := tensor.Ones[float64](out.Shape(), o.backend)
		grads = map[*tensor.RawTensor]*tensor.RawTensor{out.Raw(): seed.Raw()}
	case err != nil:
		return nil, o.errorf("", fmt.Errorf("%w: %w", ErrForeignComputation, err))
	}
	nn.CollectGrads(o.params, grads, o.backend)

	ev = &Evaluation{
		Value: out.Raw().Float64s()[0],
		Grads: make([][]float64, len(o.params)),
	}
	for i, p := range o.params {
		if !p.HasGrad() {
			return nil, o.errorf(p.Name(), ErrDisconnectedGradient)
		}
		ev.Grads[i] = p.Grad().Raw().Float64s()
	}
	return ev, nil
}

// reset drops every parameter gradient and the recorded tape.
func (o *Op[B]) reset() {
	for _, p := range o.params {
		p.ZeroGrad()
	}
	o.backend.GetTape().Clear()
}

func (o *Op[B]) errorf(param string, err error) error {
	return &EvalError{Op: o.name, Param: param, Err: err}
}
