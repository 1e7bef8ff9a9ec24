// Package metrics exports router, publisher and dispatcher metrics to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/glimte/orderflow/messaging"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "orderflow"

// Collector implements messaging.MetricsCollector with Prometheus vectors
type Collector struct {
	routesTotal     *prometheus.CounterVec
	routeLatency    *prometheus.HistogramVec
	publishesTotal  *prometheus.CounterVec
	publishLatency  *prometheus.HistogramVec
	dispatchesTotal *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
}

// NewCollector creates the collector and registers its vectors with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		routesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "routed_requests_total",
				Help:      "Inbound requests by route and response status.",
			},
			[]string{"route", "status"},
		),
		routeLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "route_duration_seconds",
				Help:      "Time to route a request and publish its event.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		publishesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publishes_total",
				Help:      "Bus publish calls by source, detail type and outcome.",
			},
			[]string{"source", "detail_type", "outcome"},
		),
		publishLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "publish_duration_seconds",
				Help:      "Bus publish latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"detail_type"},
		),
		dispatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatches_total",
				Help:      "Handler invocations by rule and outcome.",
			},
			[]string{"rule", "outcome"},
		),
		dispatchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Handler latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"rule"},
		),
	}

	reg.MustRegister(
		c.routesTotal, c.routeLatency,
		c.publishesTotal, c.publishLatency,
		c.dispatchesTotal, c.dispatchLatency,
	)
	return c
}

// RecordRoute records a routed request
func (c *Collector) RecordRoute(route string, statusCode int, duration time.Duration) {
	c.routesTotal.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
	c.routeLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordPublish records a bus publish call
func (c *Collector) RecordPublish(source, detailType string, duration time.Duration, success bool) {
	c.publishesTotal.WithLabelValues(source, detailType, outcome(success)).Inc()
	c.publishLatency.WithLabelValues(detailType).Observe(duration.Seconds())
}

// RecordDispatch records a handler invocation
func (c *Collector) RecordDispatch(rule string, duration time.Duration, success bool) {
	c.dispatchesTotal.WithLabelValues(rule, outcome(success)).Inc()
	c.dispatchLatency.WithLabelValues(rule).Observe(duration.Seconds())
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

var _ messaging.MetricsCollector = (*Collector)(nil)
