// Package telemetry exposes Prometheus metrics for the connection pool and
// the list streams. A nil *Collector is valid and records nothing, so tests
// and tools can run the pool and the fetch loop without a registry.
package telemetry

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "minerva"

// Collector is a prometheus.Collector for the registry service
type Collector struct {
	acquireWait     prometheus.Histogram
	leasesInUse     prometheus.Gauge
	acquireFailures *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	pagesStreamed   prometheus.Counter
	rowsStreamed    prometheus.Counter
	streamOutcomes  *prometheus.CounterVec
}

// NewCollector returns a new Collector
func NewCollector() *Collector {
	return &Collector{
		acquireWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "pool",
				Name:      "acquire_wait_seconds",
				Help:      "Time spent waiting for a database lease.",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		leasesInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "pool",
				Name:      "leases_in_use",
				Help:      "The number of database connections currently leased.",
			},
		),
		acquireFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "pool",
				Name:      "acquire_failures_total",
				Help:      "The number of failed lease acquisitions.",
			}, []string{"reason"},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "stream",
				Name:      "active_sessions",
				Help:      "The number of list streams currently running.",
			},
		),
		pagesStreamed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "stream",
				Name:      "pages_total",
				Help:      "The number of pages handed to list streams.",
			},
		),
		rowsStreamed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "stream",
				Name:      "customers_total",
				Help:      "The number of customers handed to list streams.",
			},
		),
		streamOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "stream",
				Name:      "outcomes_total",
				Help:      "Finished list streams by terminal state.",
			}, []string{"outcome"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.acquireWait.Describe(ch)
	c.leasesInUse.Describe(ch)
	c.acquireFailures.Describe(ch)
	c.activeSessions.Describe(ch)
	c.pagesStreamed.Describe(ch)
	c.rowsStreamed.Describe(ch)
	c.streamOutcomes.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.acquireWait.Collect(ch)
	c.leasesInUse.Collect(ch)
	c.acquireFailures.Collect(ch)
	c.activeSessions.Collect(ch)
	c.pagesStreamed.Collect(ch)
	c.rowsStreamed.Collect(ch)
	c.streamOutcomes.Collect(ch)
}

// LeaseAcquired records a successful acquisition and its wait time
func (c *Collector) LeaseAcquired(wait time.Duration) {
	if c == nil {
		return
	}
	c.acquireWait.Observe(wait.Seconds())
	c.leasesInUse.Inc()
}

// LeaseReleased records a returned lease
func (c *Collector) LeaseReleased() {
	if c == nil {
		return
	}
	c.leasesInUse.Dec()
}

// AcquireFailed records a failed acquisition
func (c *Collector) AcquireFailed(reason string) {
	if c == nil {
		return
	}
	c.acquireFailures.WithLabelValues(reason).Inc()
}

// SessionStarted records a new list stream
func (c *Collector) SessionStarted() {
	if c == nil {
		return
	}
	c.activeSessions.Inc()
}

// SessionEnded records the terminal state of a list stream
func (c *Collector) SessionEnded(outcome string) {
	if c == nil {
		return
	}
	c.activeSessions.Dec()
	c.streamOutcomes.WithLabelValues(outcome).Inc()
}

// PageStreamed records one page handed to a stream
func (c *Collector) PageStreamed(rows int) {
	if c == nil {
		return
	}
	c.pagesStreamed.Inc()
	c.rowsStreamed.Add(float64(rows))
}

// NewRegistry returns a registry holding the collector and the standard
// Go runtime and process collectors.
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	if c != nil {
		reg.MustRegister(c)
	}
	return reg
}

// Serve exposes the registry on /metrics until ctx is done
func Serve(ctx context.Context, host string, port int, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
