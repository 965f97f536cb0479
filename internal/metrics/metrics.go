// Package metrics holds the Prometheus collectors of the fetch pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch outcomes.
const (
	OutcomeCacheHit    = "cache_hit"
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeFallback    = "fallback"
	OutcomeUnavailable = "unavailable"
)

// Fallback source label.
const SourceFallback = "fallback"

// Collectors groups the pipeline metrics so tests can use a private registry.
type Collectors struct {
	SourceFetches *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	Refreshes     *prometheus.CounterVec
	Observations  prometheus.Gauge
}

// New creates the collectors and registers them with reg when it is not nil.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		SourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cnbtaylor",
			Name:      "source_fetch_total",
			Help:      "Series fetch attempts by source and outcome.",
		}, []string{"series", "source", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cnbtaylor",
			Name:      "series_fetch_duration_seconds",
			Help:      "Time to obtain one normalized series.",
			Buckets:   []float64{0.005, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60},
		}, []string{"series"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cnbtaylor",
			Name:      "refresh_total",
			Help:      "Panel refresh cycles by result.",
		}, []string{"result"}),
		Observations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cnbtaylor",
			Name:      "panel_observations",
			Help:      "Months in the current panel.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.SourceFetches, c.FetchDuration, c.Refreshes, c.Observations)
	}
	return c
}

// Default is registered with the Prometheus default registry.
var Default = New(prometheus.DefaultRegisterer)

// SourceFetch records one source attempt.
func (c *Collectors) SourceFetch(series, source, outcome string) {
	c.SourceFetches.WithLabelValues(series, source, outcome).Inc()
}

// ObserveFetch records the time spent obtaining a series since start.
func (c *Collectors) ObserveFetch(series string, start time.Time) {
	c.FetchDuration.WithLabelValues(series).Observe(time.Since(start).Seconds())
}

// Refresh records a refresh cycle.
func (c *Collectors) Refresh(err error, observations int) {
	if err != nil {
		c.Refreshes.WithLabelValues("error").Inc()
		return
	}
	c.Refreshes.WithLabelValues("ok").Inc()
	c.Observations.Set(float64(observations))
}
