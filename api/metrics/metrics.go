// Package metrics exposes Prometheus collectors for the HTTP API and the
// replicated write path.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Batch outcomes
const (
	BatchApplied  = "applied"
	BatchRejected = "rejected"
	BatchFailed   = "failed"
)

// Registry holds every collector of the process.
var Registry = prometheus.NewRegistry()

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "printlog",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "code"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "printlog",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	batches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "printlog",
		Subsystem: "store",
		Name:      "batches_total",
		Help:      "Replicated write batches by outcome.",
	}, []string{"result"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "printlog",
		Subsystem: "store",
		Name:      "batch_apply_seconds",
		Help:      "Time from submitting a batch to it being applied locally.",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpDuration,
		batches,
		batchDuration,
	)
}

// ObserveBatch records the outcome of one replicated batch.
func ObserveBatch(result string, d time.Duration) {
	batches.WithLabelValues(result).Inc()
	batchDuration.Observe(d.Seconds())
}

// Middleware records request count and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
