package transport

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	rpcCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "p2pmessage_rpc_client_calls_total",
			Help: "Outbound peer calls by operation and result.",
		},
		[]string{"op", "result"},
	)
	rpcLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "p2pmessage_rpc_client_duration_seconds",
			Help:    "Outbound peer call latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(rpcCalls, rpcLatency)
}

func observeCall(op string, err error, took time.Duration) {
	result := "ok"
	if err != nil {
		result = KindOf(err).String()
	}
	rpcCalls.WithLabelValues(op, result).Inc()
	rpcLatency.WithLabelValues(op).Observe(took.Seconds())
}
