package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Requests counts dispatched broker operations by selector and outcome
	Requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "netblast_requests_total", Help: "Broker requests by operation and outcome"},
		[]string{"operation", "outcome"},
	)
	Assignments = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "netblast_assignments_total", Help: "GetWork replies by assigned role"},
		[]string{"kind"},
	)
	// ClaimConflicts counts server claims lost to a concurrent client or a server that stopped qualifying
	ClaimConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "netblast_claim_conflicts_total", Help: "Server claims that lost the race"},
	)
	ConnectionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "netblast_connections_closed_total", Help: "Closed connections by reason"},
		[]string{"reason"},
	)
	FlowBytes = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "netblast_flow_bytes_total", Help: "Bytes reported by finished runs"},
	)
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "netblast_request_seconds", Help: "Broker request latency"},
		[]string{"operation"},
	)
)

func Collectors() []prometheus.Collector {
	return []prometheus.Collector{Requests, Assignments, ClaimConflicts, ConnectionsClosed, FlowBytes, RequestLatency}
}

// NewRegistry returns a registry holding the broker collectors
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(Collectors()...)
	return registry
}
