package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics for the graph engine. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Graph metrics
	EventsProcessed *prometheus.CounterVec
	Upserts         *prometheus.CounterVec
	SimilarityLinks prometheus.Counter
	EmbeddingMisses prometheus.Counter
}

// NewCollector creates a collector with its own registry
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		EventsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_processed_total",
				Help:      "System events dispatched to ingestion pipelines",
			},
			[]string{"type", "status"},
		),
		Upserts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upserts_total",
				Help:      "Node and relationship upserts",
			},
			[]string{"kind"},
		),
		SimilarityLinks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "similarity_links_total",
				Help:      "similar_to relationships written by the similarity linker",
			},
		),
		EmbeddingMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedding_unavailable_total",
				Help:      "Node upserts stored without an embedding because the provider failed",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.EventsProcessed,
		c.Upserts,
		c.SimilarityLinks,
		c.EmbeddingMisses,
		collectors.NewGoCollector(),
	)
	return c
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordHTTP records one served request
func (c *Collector) RecordHTTP(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordEvent records one dispatched event
func (c *Collector) RecordEvent(eventType, status string) {
	if c == nil {
		return
	}
	c.EventsProcessed.WithLabelValues(eventType, status).Inc()
}

// RecordUpsert records one node or relationship upsert
func (c *Collector) RecordUpsert(kind string) {
	if c == nil {
		return
	}
	c.Upserts.WithLabelValues(kind).Inc()
}

// RecordSimilarityLinks records edges written by the similarity linker
func (c *Collector) RecordSimilarityLinks(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.SimilarityLinks.Add(float64(n))
}

// RecordEmbeddingMiss records an upsert that fell back to no embedding
func (c *Collector) RecordEmbeddingMiss() {
	if c == nil {
		return
	}
	c.EmbeddingMisses.Inc()
}
