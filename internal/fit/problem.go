package fit

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/born-ml/gradbridge/internal/autodiff"
	"github.com/born-ml/gradbridge/internal/backend/cpu"
	"github.com/born-ml/gradbridge/internal/bridge"
	"github.com/born-ml/gradbridge/internal/graph"
	"github.com/born-ml/gradbridge/internal/metrics"
	"github.com/born-ml/gradbridge/internal/models"
)

// Backend is the engine every chain builds its model on.
type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// Problem is one chain's objective: the negative host log-density over a
// flat parameter vector.
type Problem struct {
	Func *graph.Function
	// Names labels each element of the flat vector.
	Names []string
	// Params locates each model parameter inside the flat vector.
	Params []Param
}

// Param is one model parameter's slice of the flat vector.
type Param struct {
	Name   string
	Shape  []int
	Offset int
}

// Size returns the number of elements the parameter occupies.
func (p Param) Size() int {
	n := 1
	for _, d := range p.Shape {
		n *= d
	}
	return n
}

// Builder creates an independent Problem for one chain.
type Builder func(chain int) (*Problem, error)

// ModelSpec describes the posterior each chain builds for itself.
type ModelSpec struct {
	Model      string
	Degree     int
	X, Y       []float64
	PriorSigma float64 // 0 disables the prior

	Logger  *slog.Logger
	Metrics *metrics.Bridge
}

// NewBuilder returns a Builder that, per chain, creates a fresh backend,
// model, bridge op and host graph, so no parameter storage is shared.
//
// The host log-density is
//
//	sign * model(params) - sum(params^2) / (2 prior_sigma^2)
//
// where sign turns a loss into a log-density.
func NewBuilder(spec ModelSpec) Builder {
	return func(chain int) (*Problem, error) {
		backend := autodiff.New(cpu.New())
		model, err := models.New(spec.Model, spec.Degree, backend)
		if err != nil {
			return nil, err
		}
		aux, err := models.RegressionData(spec.X, spec.Y, backend)
		if err != nil {
			return nil, err
		}

		opts := []bridge.Option{
			bridge.WithName(fmt.Sprintf("%s/%d", spec.Model, chain)),
			bridge.WithMetrics(spec.Metrics),
		}
		if spec.Logger != nil {
			opts = append(opts, bridge.WithLogger(spec.Logger))
		}
		op, err := bridge.New[Backend](backend, model, model.Parameters(), aux, opts...)
		if err != nil {
			return nil, err
		}

		return hostProblem(op, model.Objective().Sign(), spec.PriorSigma)
	}
}

func hostProblem(op *bridge.Op[Backend], sign, priorSigma float64) (*Problem, error) {
	var (
		inputs []*graph.Variable
		names  []string
		params []Param
	)
	for _, p := range op.Params() {
		shape := p.Shape()
		inputs = append(inputs, graph.Input(p.Name(), shape...))
		params = append(params, Param{Name: p.Name(), Shape: slices.Clone([]int(shape)), Offset: len(names)})
		if n := shape.NumElements(); n == 1 && len(shape) <= 1 {
			names = append(names, p.Name())
		} else {
			for i := range n {
				names = append(names, fmt.Sprintf("%s[%d]", p.Name(), i))
			}
		}
	}

	outs, err := graph.Call(op, inputs...)
	if err != nil {
		return nil, err
	}
	logp, err := graph.Scale(outs[0], sign)
	if err != nil {
		return nil, err
	}

	if priorSigma > 0 {
		for _, in := range inputs {
			sq, err := graph.Square(in)
			if err != nil {
				return nil, err
			}
			ss, err := graph.Sum(sq)
			if err != nil {
				return nil, err
			}
			term, err := graph.Scale(ss, -1/(2*priorSigma*priorSigma))
			if err != nil {
				return nil, err
			}
			if logp, err = graph.Add(logp, term); err != nil {
				return nil, err
			}
		}
	}

	cost, err := graph.Neg(logp)
	if err != nil {
		return nil, err
	}
	fn, err := graph.NewFunction(cost, inputs, nil)
	if err != nil {
		return nil, err
	}
	return &Problem{Func: fn, Names: names, Params: params}, nil
}
