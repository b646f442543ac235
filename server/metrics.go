package server

import "github.com/prometheus/client_golang/prometheus"

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bhdns_requests_total",
			Help: "How many DNS queries were blocked or forwarded",
		},
		[]string{"result"},
	)

	bytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bhdns_bytes_total",
			Help: "Bytes exchanged with clients and the upstream resolver",
		},
		[]string{"peer", "direction"},
	)

	droppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bhdns_dropped_total",
			Help: "Datagrams dropped without an answer",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, bytesTotal, droppedTotal)
}
