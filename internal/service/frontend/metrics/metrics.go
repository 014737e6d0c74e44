// Package metrics exposes the server's Prometheus metrics: live counters
// updated by the connection and execution paths plus gauges derived from the
// execution store at scrape time.
package metrics

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alger-org/alger/internal/models"
)

// SizeReporter is implemented by caches that expose their live entry count.
type SizeReporter interface {
	Size() int
}

// Collector implements prometheus.Collector. Store-backed metrics are
// collected on scrape; the instrument fields are incremented by the session
// and runner code as events happen.
type Collector struct {
	startTime time.Time
	version   string
	store     models.Store

	infoDesc             *prometheus.Desc
	uptimeDesc           *prometheus.Desc
	activeExecutionsDesc *prometheus.Desc
	executionsTotalDesc  *prometheus.Desc
	graphCacheDesc       *prometheus.Desc

	connectionsOpen   prometheus.Gauge
	framesReceived    prometheus.Counter
	framesSent        *prometheus.CounterVec
	executionDuration prometheus.Histogram

	mu         sync.RWMutex
	graphCache SizeReporter
}

// NewCollector creates a metrics collector reading execution counts from the
// given store.
func NewCollector(version string, store models.Store) *Collector {
	return &Collector{
		startTime: time.Now(),
		version:   version,
		store:     store,

		infoDesc: prometheus.NewDesc(
			"alger_info",
			"Alger build information",
			[]string{"version", "go_version"},
			nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"alger_uptime_seconds",
			"Time since server start",
			nil,
			nil,
		),
		activeExecutionsDesc: prometheus.NewDesc(
			"alger_active_executions",
			"Number of executions counting against the concurrency limit",
			nil,
			nil,
		),
		executionsTotalDesc: prometheus.NewDesc(
			"alger_executions_total",
			"Total number of recorded executions by status",
			[]string{"status"},
			nil,
		),
		graphCacheDesc: prometheus.NewDesc(
			"alger_graph_cache_entries",
			"Number of normalized pipeline graphs currently cached",
			nil,
			nil,
		),

		connectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alger_connections_open",
			Help: "Number of websocket connections currently open",
		}),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alger_frames_received_total",
			Help: "Total number of frames received from clients",
		}),
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alger_frames_sent_total",
			Help: "Total number of frames sent to clients by code class",
		}, []string{"class"}),
		executionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alger_execution_duration_seconds",
			Help:    "Wall-clock duration of pipeline executions",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ConnectionOpened records a websocket connection being accepted.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsOpen.Inc()
}

// ConnectionClosed records a websocket connection going away.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsOpen.Dec()
}

// FrameReceived records one inbound frame.
func (c *Collector) FrameReceived() {
	if c == nil {
		return
	}
	c.framesReceived.Inc()
}

// FrameSent records one outbound frame under its code class ("2xx", "3xx").
func (c *Collector) FrameSent(code int) {
	if c == nil {
		return
	}
	c.framesSent.WithLabelValues(codeClass(code)).Inc()
}

// ObserveExecutionDuration records the wall-clock duration of one finished,
// failed or stopped execution.
func (c *Collector) ObserveExecutionDuration(d time.Duration) {
	if c == nil {
		return
	}
	c.executionDuration.Observe(d.Seconds())
}

// TrackGraphCache registers the graph cache whose size is reported on scrape.
func (c *Collector) TrackGraphCache(cache SizeReporter) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.graphCache = cache
}

func codeClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	default:
		return "other"
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.infoDesc
	ch <- c.uptimeDesc
	ch <- c.activeExecutionsDesc
	ch <- c.executionsTotalDesc
	ch <- c.graphCacheDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Bound store reads so a wedged database cannot hang the scrape.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch <- prometheus.MustNewConstMetric(
		c.infoDesc,
		prometheus.GaugeValue,
		1,
		c.version,
		runtime.Version(),
	)
	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc,
		prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
	if c.graphCache != nil {
		ch <- prometheus.MustNewConstMetric(
			c.graphCacheDesc,
			prometheus.GaugeValue,
			float64(c.graphCache.Size()),
		)
	}

	c.collectExecutionMetrics(ctx, ch)
}

func (c *Collector) collectExecutionMetrics(ctx context.Context, ch chan<- prometheus.Metric) {
	if c.store == nil {
		return
	}

	if active, err := c.store.CountActiveExecutions(ctx); err == nil {
		ch <- prometheus.MustNewConstMetric(
			c.activeExecutionsDesc,
			prometheus.GaugeValue,
			float64(active),
		)
	}

	executions, err := c.store.ListExecutions(ctx)
	if err != nil {
		return
	}
	counts := make(map[string]float64)
	for _, execution := range executions {
		counts[execution.Status.String()]++
	}
	for status, count := range counts {
		ch <- prometheus.MustNewConstMetric(
			c.executionsTotalDesc,
			prometheus.CounterValue,
			count,
			status,
		)
	}
}

// NewRegistry creates a Prometheus registry with the Alger collector, its
// live instruments and the standard runtime collectors registered.
func NewRegistry(collector *Collector) *prometheus.Registry {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collector)
	registry.MustRegister(
		collector.connectionsOpen,
		collector.framesReceived,
		collector.framesSent,
		collector.executionDuration,
	)

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return registry
}

// Handler serves the registry in the Prometheus text exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
