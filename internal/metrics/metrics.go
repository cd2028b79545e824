// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics holds the Prometheus collectors for the research pipeline
// and the HTTP server.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector dinowiki exports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	ResearchRuns     *prometheus.CounterVec
	StepDuration     *prometheus.HistogramVec
	StepFailures     *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	SearchCacheLooks *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ResearchRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dinowiki_research_runs_total",
			Help: "Research pipeline runs by outcome.",
		}, []string{"outcome"}), // success, failure
		StepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dinowiki_research_step_duration_seconds",
			Help:    "Duration of each research pipeline step including retries.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"step"}),
		StepFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dinowiki_research_step_failures_total",
			Help: "Failed attempts of research pipeline steps.",
		}, []string{"step"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dinowiki_http_requests_total",
			Help: "HTTP requests served.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dinowiki_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		SearchCacheLooks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dinowiki_search_cache_lookups_total",
			Help: "Search response cache lookups by result.",
		}, []string{"result"}), // hit, miss
	}
}

// ObserveRun counts one finished research run.
func (m *Metrics) ObserveRun(success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.ResearchRuns.WithLabelValues(outcome).Inc()
}

// ObserveStep records how long a step took.
func (m *Metrics) ObserveStep(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// IncStepFailure counts one failed attempt of a step.
func (m *Metrics) IncStepFailure(step string) {
	if m == nil {
		return
	}
	m.StepFailures.WithLabelValues(step).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.HTTPRequests.WithLabelValues(method, route, code).Inc()
	m.HTTPDuration.WithLabelValues(method, route, code).Observe(d.Seconds())
}

// ObserveCache counts one cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.SearchCacheLooks.WithLabelValues(result).Inc()
}
