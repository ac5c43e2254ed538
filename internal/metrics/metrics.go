// Package metrics collects and exposes Prometheus metrics for the realtime
// pipeline: frame intake, normalization anomalies, dedupe drops, lifecycle
// applications, reconnect behaviour and authorization failures.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the pipeline metrics. Each instance owns its registry so
// tests can build isolated collectors without double-registration panics.
type Collector struct {
	registry *prometheus.Registry

	framesReceived  prometheus.Counter
	framesDiscarded prometheus.Counter
	eventsDeduped   prometheus.Counter
	eventsApplied   prometheus.Counter
	eventsIgnored   prometheus.Counter
	reconnects      prometheus.Counter
	unauthorized    prometheus.Counter
	connectionState prometheus.Gauge
	jobsTracked     prometheus.Gauge
}

// NewCollector creates a collector with all pipeline metrics registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldsvc_frames_received_total",
			Help: "Total number of raw push frames received",
		}),
		framesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldsvc_frames_discarded_total",
			Help: "Total number of malformed or unrecognized frames discarded",
		}),
		eventsDeduped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldsvc_events_deduped_total",
			Help: "Total number of events dropped as duplicate deliveries",
		}),
		eventsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldsvc_events_applied_total",
			Help: "Total number of job events applied to the job store",
		}),
		eventsIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldsvc_events_ignored_total",
			Help: "Total number of events ignored as regressive or redundant",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldsvc_reconnect_attempts_total",
			Help: "Total number of push stream reconnect attempts",
		}),
		unauthorized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldsvc_unauthorized_total",
			Help: "Total number of backend authorization rejections",
		}),
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fieldsvc_connection_state",
			Help: "Push stream state (0=disconnected 1=connecting 2=connected 3=reconnecting)",
		}),
		jobsTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fieldsvc_jobs_tracked",
			Help: "Current number of jobs held in the job store",
		}),
	}

	c.registry.MustRegister(
		c.framesReceived,
		c.framesDiscarded,
		c.eventsDeduped,
		c.eventsApplied,
		c.eventsIgnored,
		c.reconnects,
		c.unauthorized,
		c.connectionState,
		c.jobsTracked,
	)

	return c
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordFrame records receipt of a raw push frame.
func (c *Collector) RecordFrame() { c.framesReceived.Inc() }

// RecordDiscarded records a malformed or unrecognized frame.
func (c *Collector) RecordDiscarded() { c.framesDiscarded.Inc() }

// RecordDeduped records an event dropped as a duplicate delivery.
func (c *Collector) RecordDeduped() { c.eventsDeduped.Inc() }

// RecordApplied records an event applied to the job store.
func (c *Collector) RecordApplied() { c.eventsApplied.Inc() }

// RecordIgnored records an event ignored as regressive or redundant.
func (c *Collector) RecordIgnored() { c.eventsIgnored.Inc() }

// RecordReconnect records a reconnect attempt on the push stream.
func (c *Collector) RecordReconnect() { c.reconnects.Inc() }

// RecordUnauthorized records a backend authorization rejection.
func (c *Collector) RecordUnauthorized() { c.unauthorized.Inc() }

// SetConnectionState publishes the push stream state as a gauge.
func (c *Collector) SetConnectionState(v float64) { c.connectionState.Set(v) }

// SetJobsTracked publishes the job store size.
func (c *Collector) SetJobsTracked(n int) { c.jobsTracked.Set(float64(n)) }
