// Package prometheus implements the metrics collector port using
// Prometheus client metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements ports.MetricsCollector using Prometheus
type Collector struct {
	sessionsStarted  prometheus.Counter
	sessionsFinished *prometheus.CounterVec
	iterations       prometheus.Counter
	rankingFailures  prometheus.Counter
	llmCalls         *prometheus.CounterVec
	llmLatency       *prometheus.HistogramVec
	sessionDuration  prometheus.Histogram
}

// NewCollector creates a new Prometheus metrics collector
func NewCollector() *Collector {
	return &Collector{
		sessionsStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "refinery_sessions_started_total",
				Help: "Total number of session runs started",
			},
		),
		sessionsFinished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refinery_sessions_finished_total",
				Help: "Total number of session runs finished",
			},
			[]string{"status"},
		),
		iterations: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "refinery_iterations_total",
				Help: "Total number of generate-review-rank iterations executed",
			},
		),
		rankingFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "refinery_ranking_failures_total",
				Help: "Total number of ranking responses without valid scores",
			},
		),
		llmCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refinery_llm_calls_total",
				Help: "Total number of LLM provider calls",
			},
			[]string{"provider", "role", "status"},
		),
		llmLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "refinery_llm_latency_seconds",
				Help:    "LLM provider call latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 60, 120},
			},
			[]string{"provider"},
		),
		sessionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "refinery_session_duration_seconds",
				Help:    "Session run duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
			},
		),
	}
}

// IncSessionsStarted increments the count of started session runs
func (c *Collector) IncSessionsStarted() {
	c.sessionsStarted.Inc()
}

// IncSessionsFinished increments the count of finished session runs
func (c *Collector) IncSessionsFinished(status string) {
	c.sessionsFinished.WithLabelValues(status).Inc()
}

// IncIterations increments the count of executed iterations
func (c *Collector) IncIterations() {
	c.iterations.Inc()
}

// IncLLMCalls increments the count of LLM provider calls
func (c *Collector) IncLLMCalls(provider, role, status string) {
	c.llmCalls.WithLabelValues(provider, role, status).Inc()
}

// ObserveLLMLatency records the latency of an LLM provider call
func (c *Collector) ObserveLLMLatency(provider string, d time.Duration) {
	c.llmLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// IncRankingFailures increments the count of failed ranking parses
func (c *Collector) IncRankingFailures() {
	c.rankingFailures.Inc()
}

// ObserveSessionDuration records the duration of a session run
func (c *Collector) ObserveSessionDuration(d time.Duration) {
	c.sessionDuration.Observe(d.Seconds())
}
