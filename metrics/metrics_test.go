package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics

	m.ObserveTrial("add_vertices", 100, 2, time.Second)
	m.IncRestore()
}

func TestObserveTrial(t *testing.T) {
	m := New()

	m.ObserveTrial("add_vertices", 100, 2, 50*time.Millisecond)
	m.ObserveTrial("add_vertices", 50, 0, 30*time.Millisecond)
	m.ObserveTrial("read_neighbors", 10, 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.trialsTotal.WithLabelValues("add_vertices"),
	))
	assert.Equal(t, 150.0, testutil.ToFloat64(
		m.opsTotal.WithLabelValues("add_vertices"),
	))
	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.opErrorsTotal.WithLabelValues("add_vertices"),
	))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.trialsTotal.WithLabelValues("read_neighbors"),
	))
}

func TestIncRestore(t *testing.T) {
	m := New()

	m.IncRestore()
	m.IncRestore()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.restoresTotal))
}

func TestRegistryGathers(t *testing.T) {
	m := New()
	m.ObserveTrial("add_edges", 1, 0, time.Millisecond)

	families, err := m.registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
