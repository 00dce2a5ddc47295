package api

import (
	"runtime"
	"strconv"
	"time"

	"p2pmessage/pkg/router"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "p2pmessage_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		},
		[]string{"method", "route", "code"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "p2pmessage_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	signalSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "p2pmessage_signal_subscribers",
		Help: "Open signal subscriptions.",
	})

	signalsDropped = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "p2pmessage_signals_dropped",
		Help: "Signals dropped because a subscriber was full.",
	})

	logSizeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "p2pmessage_log_size_bytes",
		Help: "On-disk size of the local log, where the backend reports it.",
	})

	heapAlloc = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "p2pmessage_heap_alloc_bytes",
			Help: "Current heap allocation in bytes.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.HeapAlloc)
		},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(signalSubscribers)
	prometheus.MustRegister(signalsDropped)
	prometheus.MustRegister(logSizeBytes)
	prometheus.MustRegister(heapAlloc)
}

// instrument records every request under its route pattern. Requests that
// match no route, or are rejected before routing, count as "unmatched".
func instrument(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		started := time.Now()
		next(ctx)
		route := router.Route(ctx)
		if route == "" {
			route = "unmatched"
		}
		method := string(ctx.Method())
		requestsTotal.WithLabelValues(method, route, strconv.Itoa(ctx.Response.StatusCode())).Inc()
		requestDuration.WithLabelValues(method, route).Observe(time.Since(started).Seconds())
	}
}
