package streaming

import "github.com/prometheus/client_golang/prometheus"

var (
	activeStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "auralis",
		Subsystem: "streaming",
		Name:      "active_streams",
		Help:      "Number of currently active stream sessions.",
	})

	chunksServed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auralis",
		Subsystem: "streaming",
		Name:      "chunks_served_total",
		Help:      "Count of chunks successfully sent to clients, by preset.",
	}, []string{"preset"})

	streamErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auralis",
		Subsystem: "streaming",
		Name:      "stream_errors_total",
		Help:      "Count of stream-terminating errors, by error kind.",
	}, []string{"kind"})
)

// RegisterMetrics registers this package's collectors with reg. Safe to
// call once at process startup.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(activeStreams, chunksServed, streamErrors)
}
