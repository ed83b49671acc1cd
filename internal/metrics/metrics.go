// Package metrics holds the Prometheus instruments for bridge evaluations
// and fitting runs.
//
// Instruments are registered on a caller-supplied Registerer so tests and
// independent runs never collide on the global registry. All methods are
// safe on a nil receiver, which turns them into no-ops.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gradbridge"

// Result labels for evaluations.
const (
	ResultOK           = "ok"
	ResultArity        = "arity_mismatch"
	ResultDisconnected = "disconnected_gradient"
	ResultHigherOrder  = "higher_order_gradient"
	ResultForeign      = "foreign_error"
)

// Bridge counts and times bridge evaluations.
type Bridge struct {
	// Evaluations counts evaluations by result.
	// Labels: result (ok, arity_mismatch, disconnected_gradient, higher_order_gradient, foreign_error)
	Evaluations *prometheus.CounterVec

	// Duration measures one forward plus backward pass.
	Duration prometheus.Histogram
}

// NewBridge registers the bridge instruments on reg.
func NewBridge(reg prometheus.Registerer) *Bridge {
	f := promauto.With(reg)
	return &Bridge{
		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Bridge evaluations by result",
		}, []string{"result"}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_seconds",
			Help:      "Duration of one foreign forward and backward pass",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		}),
	}
}

// Observe records one evaluation.
func (m *Bridge) Observe(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(result).Inc()
	m.Duration.Observe(d.Seconds())
}

// Reject counts a request refused before any foreign work was done.
func (m *Bridge) Reject(result string) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(result).Inc()
}

// Fit tracks optimisation chains.
type Fit struct {
	// Iterations counts optimizer steps by method.
	Iterations *prometheus.CounterVec

	// Chains counts finished chains by method and status (ok, error, canceled).
	Chains *prometheus.CounterVec

	// ActiveChains is the number of chains currently running.
	ActiveChains prometheus.Gauge
}

// NewFit registers the fitting instruments on reg.
func NewFit(reg prometheus.Registerer) *Fit {
	f := promauto.With(reg)
	return &Fit{
		Iterations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fit",
			Name:      "iterations_total",
			Help:      "Optimizer iterations by method",
		}, []string{"method"}),
		Chains: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fit",
			Name:      "chains_total",
			Help:      "Finished chains by method and status",
		}, []string{"method", "status"}),
		ActiveChains: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fit",
			Name:      "active_chains",
			Help:      "Chains currently running",
		}),
	}
}

// Step records one optimizer iteration.
func (m *Fit) Step(method string) {
	if m == nil {
		return
	}
	m.Iterations.WithLabelValues(method).Inc()
}

// Steps records n optimizer iterations at once.
func (m *Fit) Steps(method string, n int) {
	if m == nil {
		return
	}
	m.Iterations.WithLabelValues(method).Add(float64(n))
}

// ChainStarted marks a chain as running.
func (m *Fit) ChainStarted() {
	if m == nil {
		return
	}
	m.ActiveChains.Inc()
}

// ChainDone marks a chain as finished with the given status.
func (m *Fit) ChainDone(method, status string) {
	if m == nil {
		return
	}
	m.ActiveChains.Dec()
	m.Chains.WithLabelValues(method, status).Inc()
}
