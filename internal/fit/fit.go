// Package fit drives host graphs containing bridge nodes to a maximum of the
// host log-density. It is a client of the bridge that calls it many times
// per run; it is not a sampler.
//
// Chains are independent: each one builds its own model, bridge and host
// graph through a Builder and runs in its own goroutine.
package fit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/gradbridge/internal/graph"
	"github.com/born-ml/gradbridge/internal/logging"
	"github.com/born-ml/gradbridge/internal/metrics"
	"github.com/born-ml/gradbridge/internal/optim"
)

// Methods accepted in Settings.Method.
const (
	MethodLBFGS = "lbfgs"
	MethodGD    = "gd"
	MethodSGD   = "sgd"
	MethodAdam  = "adam"
)

// Chain statuses reported in Result.Status and metrics.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusCanceled = "canceled"
)

// gradTolerance stops the first-order loops once the gradient vanishes.
const gradTolerance = 1e-10

// ErrUnknownMethod is returned for an unrecognised Settings.Method.
var ErrUnknownMethod = errors.New("unknown fit method")

// Settings controls one run.
type Settings struct {
	Method   string
	Steps    int
	LR       float64
	Momentum float64
	Chains   int
	Init     []float64 // empty means zeros
	Jitter   float64   // stddev of the per-chain perturbation of Init
	Seed     uint64
}

// Result is the outcome of one chain.
type Result struct {
	Chain       int
	ID          string
	Names       []string
	Params      []Param
	X           []float64
	LogDensity  float64
	Iterations  int
	Evaluations int
	Duration    time.Duration
	Status      string
}

// Option configures Run and RunChains.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metrics.Fit
}

// WithLogger sets the logger; chains log through children of it.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records iterations and chain outcomes on m.
func WithMetrics(m *metrics.Fit) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func newOptions(opts []Option) options {
	o := options{logger: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}
	return o
}

// RunChains runs s.Chains independent chains concurrently. The first chain
// error cancels the others; results of every chain that finished are still
// returned alongside the error.
func RunChains(ctx context.Context, s Settings, build Builder, opts ...Option) ([]*Result, error) {
	if s.Chains < 1 {
		return nil, fmt.Errorf("fit: need at least one chain, got %d", s.Chains)
	}
	o := newOptions(opts)

	g, ctx := errgroup.WithContext(ctx)
	results := make([]*Result, s.Chains)
	for i := range s.Chains {
		g.Go(func() error {
			id := uuid.NewString()
			logger := o.logger.With("chain", i, "chain_id", id)

			p, err := build(i)
			if err != nil {
				return fmt.Errorf("fit: chain %d: build: %w", i, err)
			}
			res, err := run(ctx, s, i, p, logger, o.metrics)
			if res != nil {
				res.ID = id
				results[i] = res
			}
			if err != nil {
				return fmt.Errorf("fit: chain %d: %w", i, err)
			}
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

// Best returns the finished chain with the highest log-density, or nil when
// no chain finished ok.
func Best(results []*Result) *Result {
	var best *Result
	for _, r := range results {
		if r == nil || r.Status != StatusOK || r.X == nil {
			continue
		}
		if best == nil || r.LogDensity > best.LogDensity {
			best = r
		}
	}
	return best
}

// Run optimises a single problem as chain 0.
func Run(ctx context.Context, s Settings, p *Problem, opts ...Option) (*Result, error) {
	o := newOptions(opts)
	res, err := run(ctx, s, 0, p, o.logger, o.metrics)
	if res != nil {
		res.ID = uuid.NewString()
	}
	return res, err
}

func run(ctx context.Context, s Settings, chain int, p *Problem, logger *slog.Logger, m *metrics.Fit) (*Result, error) {
	x0, err := startPoint(s, chain, p.Func.Dim())
	if err != nil {
		return nil, err
	}

	m.ChainStarted()
	logger.Info("chain started", "method", s.Method, "steps", s.Steps, "dim", len(x0))
	start := time.Now()

	obj := &objective{fn: p.Func}
	var iters int
	switch s.Method {
	case MethodLBFGS:
		iters, err = minimizeGonum(ctx, s, obj, x0, &optimize.LBFGS{}, m)
	case MethodGD:
		iters, err = minimizeGonum(ctx, s, obj, x0, &optimize.GradientDescent{}, m)
	case MethodSGD:
		iters, err = descend(ctx, s, obj, x0, optim.NewSGD(optim.SGDConfig{LR: s.LR, Momentum: s.Momentum}), m)
	case MethodAdam:
		iters, err = descend(ctx, s, obj, x0, optim.NewAdam(optim.AdamConfig{LR: s.LR}), m)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownMethod, s.Method)
	}

	res := &Result{
		Chain:       chain,
		Names:       p.Names,
		Params:      p.Params,
		X:           obj.best,
		LogDensity:  -obj.bestF,
		Iterations:  iters,
		Evaluations: obj.evals,
		Duration:    time.Since(start),
		Status:      StatusOK,
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		res.Status = StatusCanceled
	case err != nil:
		res.Status = StatusError
	}
	m.ChainDone(s.Method, res.Status)

	if err != nil {
		logger.Warn("chain stopped", "status", res.Status, "iterations", iters, "error", err)
		return res, err
	}
	logger.Info("chain finished",
		"iterations", iters,
		"evaluations", obj.evals,
		"log_density", res.LogDensity,
		"duration", res.Duration)
	return res, nil
}

// startPoint returns Init (or zeros) plus N(0, Jitter) noise seeded per chain.
func startPoint(s Settings, chain, dim int) ([]float64, error) {
	x := make([]float64, dim)
	if len(s.Init) > 0 {
		if len(s.Init) != dim {
			return nil, fmt.Errorf("fit: init has %d values, problem has %d", len(s.Init), dim)
		}
		copy(x, s.Init)
	}
	if s.Jitter > 0 {
		noise := distuv.Normal{Mu: 0, Sigma: s.Jitter, Src: rand.NewPCG(s.Seed, uint64(chain))}
		for i := range x {
			x[i] += noise.Rand()
		}
	}
	return x, nil
}

// objective caches the last evaluation, since gonum asks for the value and
// the gradient at the same point separately, and tracks the best point seen.
type objective struct {
	fn    *graph.Function
	x     []float64
	f     float64
	grad  []float64
	err   error
	evals int

	best  []float64
	bestF float64
}

func (o *objective) eval(x []float64) {
	if o.x != nil && floats.Equal(o.x, x) {
		return
	}
	o.evals++
	o.x = slices.Clone(x)
	f, g, err := o.fn.ValueAndGrad(x)
	if err != nil {
		if o.err == nil {
			o.err = err
		}
		o.f = math.NaN()
		o.grad = make([]float64, len(x))
		for i := range o.grad {
			o.grad[i] = math.NaN()
		}
		return
	}
	o.f, o.grad = f, g
	if o.best == nil || f < o.bestF {
		o.best = slices.Clone(x)
		o.bestF = f
	}
}

func (o *objective) value(x []float64) float64 {
	o.eval(x)
	return o.f
}

func (o *objective) gradient(grad, x []float64) {
	o.eval(x)
	copy(grad, o.grad)
}

func minimizeGonum(ctx context.Context, s Settings, obj *objective, x0 []float64, method optimize.Method, m *metrics.Fit) (int, error) {
	problem := optimize.Problem{
		Func: obj.value,
		Grad: obj.gradient,
		Status: func() (optimize.Status, error) {
			if obj.err != nil {
				return optimize.Failure, obj.err
			}
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	settings := &optimize.Settings{
		MajorIterations:   s.Steps,
		GradientThreshold: gradTolerance,
	}

	res, err := optimize.Minimize(problem, x0, settings, method)
	iters := 0
	if res != nil {
		iters = res.Stats.MajorIterations
	}
	m.Steps(s.Method, iters)
	if obj.err != nil {
		return iters, obj.err
	}
	if err := ctx.Err(); err != nil {
		return iters, err
	}
	// The line search gives up once it cannot improve on the current point,
	// which at this tolerance means the optimum has been reached.
	if errors.Is(err, optimize.ErrLinesearcherFailure) || errors.Is(err, optimize.ErrNoProgress) {
		return iters, nil
	}
	return iters, err
}

func descend(ctx context.Context, s Settings, obj *objective, x []float64, opt optim.Optimizer, m *metrics.Fit) (int, error) {
	for step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return step, err
		}
		obj.eval(x)
		if obj.err != nil {
			return step, obj.err
		}
		if floats.Norm(obj.grad, 2) < gradTolerance {
			return step, nil
		}
		if err := opt.Step(x, obj.grad); err != nil {
			return step, err
		}
		m.Step(s.Method)
	}
	obj.eval(x)
	return s.Steps, obj.err
}
