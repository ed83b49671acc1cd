package fit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gradbridge/internal/graph"
	"github.com/born-ml/gradbridge/internal/metrics"
	"github.com/born-ml/gradbridge/internal/models"
)

func lineSpec() ModelSpec {
	return ModelSpec{
		Model: models.NameLinear,
		X:     []float64{1, 2, 3},
		Y:     []float64{2, 4, 6},
	}
}

func TestRunChains_LBFGS(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewFit(reg)

	s := Settings{Method: MethodLBFGS, Steps: 200, Chains: 3, Jitter: 0.5, Seed: 7}
	results, err := RunChains(context.Background(), s, NewBuilder(lineSpec()), WithMetrics(m))
	require.NoError(t, err)
	require.Len(t, results, 3)

	ids := map[string]bool{}
	for i, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, i, res.Chain)
		assert.Equal(t, StatusOK, res.Status)
		assert.Equal(t, []string{"m", "b"}, res.Names)
		assert.InDelta(t, 2.0, res.X[0], 1e-4)
		assert.InDelta(t, 0.0, res.X[1], 1e-4)
		assert.InDelta(t, 0.0, res.LogDensity, 1e-6)
		assert.Positive(t, res.Evaluations)
		ids[res.ID] = true
	}
	assert.Len(t, ids, 3, "every chain gets its own id")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Chains.WithLabelValues(MethodLBFGS, StatusOK)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveChains))
}

func TestRun_FirstOrderMethods(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
	}{
		{"gd", Settings{Method: MethodGD, Steps: 500}},
		{"sgd", Settings{Method: MethodSGD, Steps: 3000, LR: 0.01, Momentum: 0.9}},
		{"adam", Settings{Method: MethodAdam, Steps: 5000, LR: 0.05}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewBuilder(lineSpec())(0)
			require.NoError(t, err)

			res, err := Run(context.Background(), tt.settings, p)
			require.NoError(t, err)
			assert.Equal(t, StatusOK, res.Status)
			assert.NotEmpty(t, res.ID)
			assert.InDelta(t, 2.0, res.X[0], 2e-2)
			assert.InDelta(t, 0.0, res.X[1], 2e-2)
		})
	}
}

func TestRun_PriorPullsTowardZero(t *testing.T) {
	spec := lineSpec()
	free, err := NewBuilder(spec)(0)
	require.NoError(t, err)
	spec.PriorSigma = 0.5
	shrunk, err := NewBuilder(spec)(0)
	require.NoError(t, err)

	s := Settings{Method: MethodLBFGS, Steps: 200}
	a, err := Run(context.Background(), s, free)
	require.NoError(t, err)
	b, err := Run(context.Background(), s, shrunk)
	require.NoError(t, err)

	assert.Less(t, b.X[0], a.X[0])
}

func TestRun_Polynomial(t *testing.T) {
	// y = 1 + x^2
	spec := ModelSpec{
		Model:  models.NamePolynomial,
		Degree: 2,
		X:      []float64{-2, -1, 0, 1, 2},
		Y:      []float64{5, 2, 1, 2, 5},
	}
	p, err := NewBuilder(spec)(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"w[0]", "w[1]", "w[2]"}, p.Names)
	require.Len(t, p.Params, 1)
	assert.Equal(t, Param{Name: "w", Shape: []int{3}, Offset: 0}, p.Params[0])

	res, err := Run(context.Background(), Settings{Method: MethodLBFGS, Steps: 500}, p)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0, 1}, res.X, 1e-4)
}

func TestRun_Errors(t *testing.T) {
	p, err := NewBuilder(lineSpec())(0)
	require.NoError(t, err)

	t.Run("unknown method", func(t *testing.T) {
		res, err := Run(context.Background(), Settings{Method: "nuts", Steps: 1}, p)
		assert.ErrorIs(t, err, ErrUnknownMethod)
		require.NotNil(t, res)
		assert.Equal(t, StatusError, res.Status)
	})

	t.Run("init length", func(t *testing.T) {
		_, err := Run(context.Background(), Settings{Method: MethodAdam, Steps: 1, LR: 0.1, Init: []float64{1}}, p)
		assert.Error(t, err)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res, err := Run(ctx, Settings{Method: MethodAdam, Steps: 10, LR: 0.1}, p)
		assert.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, res)
		assert.Equal(t, StatusCanceled, res.Status)
		assert.Zero(t, res.Iterations)
	})
}

func TestRunChains_Errors(t *testing.T) {
	t.Run("no chains", func(t *testing.T) {
		_, err := RunChains(context.Background(), Settings{Method: MethodLBFGS, Steps: 1}, NewBuilder(lineSpec()))
		assert.Error(t, err)
	})

	t.Run("builder", func(t *testing.T) {
		spec := lineSpec()
		spec.Model = "mlp"
		_, err := RunChains(context.Background(), Settings{Method: MethodLBFGS, Steps: 1, Chains: 2}, NewBuilder(spec))
		assert.ErrorIs(t, err, models.ErrUnknownModel)
	})

	t.Run("failing evaluation", func(t *testing.T) {
		boom := errors.New("boom")
		build := func(int) (*Problem, error) {
			x := graph.Input("x")
			out, err := graph.Call1(failOp{err: boom}, x)
			if err != nil {
				return nil, err
			}
			fn, err := graph.NewFunction(out, []*graph.Variable{x}, nil)
			if err != nil {
				return nil, err
			}
			return &Problem{Func: fn, Names: []string{"x"}}, nil
		}
		m := metrics.NewFit(prometheus.NewRegistry())
		results, err := RunChains(context.Background(), Settings{Method: MethodLBFGS, Steps: 5, Chains: 1}, build, WithMetrics(m))
		assert.ErrorIs(t, err, boom)
		require.Len(t, results, 1)
		assert.Equal(t, StatusError, results[0].Status)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.Chains.WithLabelValues(MethodLBFGS, StatusError)))
	})
}

func TestRun_LogsChainLifecycle(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	p, err := NewBuilder(lineSpec())(0)
	require.NoError(t, err)
	_, err = Run(context.Background(), Settings{Method: MethodLBFGS, Steps: 50}, p, WithLogger(logger))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "chain started")
	assert.Contains(t, out, "chain finished")
	assert.Contains(t, out, "method=lbfgs")
}

func TestProblem_ParamLayout(t *testing.T) {
	spec := lineSpec()
	spec.Model = models.NameGaussian
	p, err := NewBuilder(spec)(0)
	require.NoError(t, err)

	require.Len(t, p.Params, 3)
	for i, want := range []string{"m", "b", "log_sigma"} {
		assert.Equal(t, want, p.Params[i].Name)
		assert.Equal(t, i, p.Params[i].Offset)
		assert.Equal(t, 1, p.Params[i].Size())
	}
	assert.Equal(t, 3, p.Func.Dim())
}

func TestBest(t *testing.T) {
	results := []*Result{
		{Chain: 0, Status: StatusOK, X: []float64{1}, LogDensity: -3},
		nil,
		{Chain: 2, Status: StatusError, X: []float64{1}, LogDensity: 10},
		{Chain: 3, Status: StatusOK, X: []float64{2}, LogDensity: -1},
	}
	assert.Equal(t, 3, Best(results).Chain)
	assert.Nil(t, Best(results[1:3]))
}

func TestStartPoint(t *testing.T) {
	s := Settings{Init: []float64{1, 2}, Jitter: 0.1, Seed: 3}
	a, err := startPoint(s, 0, 2)
	require.NoError(t, err)
	again, err := startPoint(s, 0, 2)
	require.NoError(t, err)
	b, err := startPoint(s, 1, 2)
	require.NoError(t, err)

	assert.Equal(t, a, again, "same seed and chain give the same start")
	assert.NotEqual(t, a, b, "chains start apart")
	assert.InDelta(t, 1, a[0], 1)

	z, err := startPoint(Settings{}, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, z)
}

// failOp is a scalar op whose Perform always fails.
type failOp struct{ err error }

func (failOp) Name() string    { return "fail" }
func (failOp) NumOutputs() int { return 1 }

func (failOp) OutputShapes(in [][]int) ([][]int, error) {
	return [][]int{{}}, nil
}

func (f failOp) Perform(in []graph.Value) ([]graph.Value, error) {
	return nil, f.err
}

func (failOp) Grad(in, out, outGrads []graph.Value) ([]graph.Value, error) {
	return []graph.Value{graph.Scalar(0)}, nil
}
