package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridge_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBridge(reg)

	m.Observe(ResultOK, time.Millisecond)
	m.Observe(ResultOK, 2*time.Millisecond)
	m.Reject(ResultHigherOrder)
	m.Observe(ResultArity, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Evaluations.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues(ResultArity)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues(ResultHigherOrder)))

	n, err := testutil.GatherAndCount(reg, "gradbridge_evaluation_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBridge_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewBridge(reg)
	assert.Panics(t, func() { NewBridge(reg) })
}

func TestFit_Chains(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFit(reg)

	m.ChainStarted()
	m.ChainStarted()
	m.Step("adam")
	m.Steps("adam", 2)
	m.ChainDone("adam", "ok")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveChains))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Iterations.WithLabelValues("adam")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Chains.WithLabelValues("adam", "ok")))
}

func TestNilReceivers(t *testing.T) {
	var b *Bridge
	var f *Fit
	assert.NotPanics(t, func() {
		b.Observe(ResultOK, time.Second)
		b.Reject(ResultHigherOrder)
		f.Step("sgd")
		f.Steps("lbfgs", 3)
		f.ChainStarted()
		f.ChainDone("sgd", "ok")
	})
}
