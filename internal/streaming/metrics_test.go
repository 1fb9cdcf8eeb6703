package streaming

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetricsRegistersAllCollectorsOnce(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { RegisterMetrics(reg) })

	// A CounterVec with no label values yet gathers no metric family.
	chunksServed.WithLabelValues("adaptive")

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "auralis_streaming_active_streams")
	assert.Contains(t, names, "auralis_streaming_chunks_served_total")
}

func TestRegisterMetricsOnDistinctRegistryDoesNotPanic(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() { RegisterMetrics(reg) }, "the same collector instances may be registered against independent registries")
}
