// Package metrics provides Prometheus instrumentation for the HTTP layer and
// the lead pipeline. This is part of the platform layer and contains no business logic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service exports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge

	leadsIngested    *prometheus.CounterVec
	ingestConflicts  prometheus.Counter
	whatsappOutbound *prometheus.CounterVec
	whatsappInbound  *prometheus.CounterVec
	managerDecisions *prometheus.CounterVec
}

// New registers all collectors on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		}),
		leadsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leads_ingested_total",
			Help: "Inbound contacts committed, by channel and reentry flag",
		}, []string{"channel", "reentry"}),
		ingestConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leads_ingest_conflicts_total",
			Help: "Ingestion transactions retried after losing a phone key race",
		}),
		whatsappOutbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whatsapp_outbound_total",
			Help: "Outbound WhatsApp sends by result",
		}, []string{"result"}),
		whatsappInbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whatsapp_inbound_messages_total",
			Help: "Inbound WhatsApp messages by processing result",
		}, []string{"result"}),
		managerDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "manager_decisions_total",
			Help: "Manager decisions recorded, by decision kind",
		}, []string{"decision"}),
	}

	reg.MustRegister(
		m.httpRequests, m.httpDuration, m.httpInFlight,
		m.leadsIngested, m.ingestConflicts,
		m.whatsappOutbound, m.whatsappInbound, m.managerDecisions,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count, latency and in-flight requests. The route
// label uses the matched gin template to keep cardinality low.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		labels := prometheus.Labels{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		m.httpRequests.With(labels).Inc()
		m.httpDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}

// LeadIngested counts a committed ingestion.
func (m *Metrics) LeadIngested(channel string, reentry bool) {
	if m == nil {
		return
	}
	m.leadsIngested.WithLabelValues(channel, strconv.FormatBool(reentry)).Inc()
}

// IngestConflict counts a retried ingestion transaction.
func (m *Metrics) IngestConflict() {
	if m == nil {
		return
	}
	m.ingestConflicts.Inc()
}

// WhatsAppOutbound counts an outbound send attempt by result
// (sent, timeout, rejected, invalid_phone).
func (m *Metrics) WhatsAppOutbound(result string) {
	if m == nil {
		return
	}
	m.whatsappOutbound.WithLabelValues(result).Inc()
}

// WhatsAppInbound counts an inbound provider message by result (ingested, failed).
func (m *Metrics) WhatsAppInbound(result string) {
	if m == nil {
		return
	}
	m.whatsappInbound.WithLabelValues(result).Inc()
}

// ManagerDecision counts a recorded manager decision.
func (m *Metrics) ManagerDecision(decision string) {
	if m == nil {
		return
	}
	m.managerDecisions.WithLabelValues(decision).Inc()
}
