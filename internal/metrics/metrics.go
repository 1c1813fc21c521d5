// Package metrics exposes the visitor counters and stream activity to
// Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "livevisitors"

// Counts is the read side of the visitor registry.
type Counts interface {
	CurrentActive() int64
	Total() int64
}

// Collector owns a private Prometheus registry so tests and multiple
// servers in one process never collide on the global one.
type Collector struct {
	reg *prometheus.Registry

	opened   *prometheus.CounterVec
	emitted  *prometheus.CounterVec
	rejected *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func New(counts Counts) *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		opened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "sessions_opened_total",
			Help:      "Live update sessions opened, by transport.",
		}, []string{"transport"}),
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_emitted_total",
			Help:      "Count updates pushed to clients, by transport.",
		}, []string{"transport"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "rejected_total",
			Help:      "Subscriptions refused because the connection cap was reached.",
		}, []string{"transport"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "session_duration_seconds",
			Help:      "How long live update sessions stayed open.",
			Buckets:   []float64{1, 5, 30, 60, 300, 900, 3600},
		}, []string{"transport"}),
	}

	c.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_visitors",
			Help:      "Clients currently holding an open live update stream.",
		}, func() float64 { return float64(counts.CurrentActive()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "total_visitors",
			Help:      "Page renders since the process started.",
		}, func() float64 { return float64(counts.Total()) }),
		c.opened,
		c.emitted,
		c.rejected,
		c.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) SessionOpened(transport string) {
	c.opened.WithLabelValues(transport).Inc()
}

func (c *Collector) EventEmitted(transport string) {
	c.emitted.WithLabelValues(transport).Inc()
}

func (c *Collector) SessionRejected(transport string) {
	c.rejected.WithLabelValues(transport).Inc()
}

func (c *Collector) SessionClosed(transport string, open time.Duration) {
	c.duration.WithLabelValues(transport).Observe(open.Seconds())
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.reg
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}
