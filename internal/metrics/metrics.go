// ============================================================================
// TaskGrid Metrics - Prometheus Monitoring
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: Collect and expose scheduler metrics for Prometheus monitoring
//
// Metric Categories:
//
//   1. Job Counters - Cumulative, monotonically increasing:
//      - scheduler_jobs_submitted_total: Total jobs accepted by the scheduler
//      - scheduler_jobs_completed_total: Total job bodies run to completion
//      - scheduler_barrier_releases_total: Total barrier decrements observed
//      - scheduler_completions_run_total: Total completion callbacks invoked
//
//   2. Performance Metrics (Histogram) - Distribution stats:
//      - scheduler_job_run_seconds: Job body execution time distribution
//
//   3. Status Metrics (Gauge) - Instantaneous values:
//      - scheduler_jobs_ready: Jobs currently sitting in the ready queue
//      - scheduler_jobs_blocked: Jobs waiting on outstanding barriers
//      - scheduler_workers_busy: Workers currently executing a job body
//      - scheduler_records_free: Job records available for allocation
//
// Prometheus Query Examples:
//
//   # Jobs per second
//   rate(scheduler_jobs_completed_total[1m])
//
//   # 95th percentile body runtime
//   histogram_quantile(0.95, scheduler_job_run_seconds_bucket)
//
//   # Record pool pressure
//   scheduler_records_free == 0
//
// HTTP Endpoint:
//   Exposed via /metrics endpoint, scraped by Prometheus
//   Format: OpenMetrics / Prometheus text format
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects Prometheus metrics for one scheduler instance.
type Collector struct {
	// Job-related counters
	jobsSubmitted   prometheus.Counter
	jobsCompleted   prometheus.Counter
	barrierReleases prometheus.Counter
	completionsRun  prometheus.Counter

	// Performance metrics
	jobRunSeconds prometheus.Histogram

	// Status gauges
	jobsReady   prometheus.Gauge
	jobsBlocked prometheus.Gauge
	workersBusy prometheus.Gauge
	recordsFree prometheus.Gauge
}

// NewCollector creates a new metrics collector and registers its metrics
// with the default Prometheus registry.
func NewCollector() *Collector {
	c := &Collector{
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_jobs_submitted_total",
			Help: "Total number of jobs accepted by the scheduler",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_jobs_completed_total",
			Help: "Total number of job bodies run to completion",
		}),
		barrierReleases: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_barrier_releases_total",
			Help: "Total number of barrier decrements observed",
		}),
		completionsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_completions_run_total",
			Help: "Total number of completion callbacks invoked",
		}),
		jobRunSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scheduler_job_run_seconds",
			Help:    "Job body execution time in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		jobsReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scheduler_jobs_ready",
			Help: "Current number of jobs in the ready queue",
		}),
		jobsBlocked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scheduler_jobs_blocked",
			Help: "Current number of jobs waiting on barriers",
		}),
		workersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scheduler_workers_busy",
			Help: "Current number of workers executing a job body",
		}),
		recordsFree: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scheduler_records_free",
			Help: "Current number of free job records in the pool",
		}),
	}

	// Register all metrics
	prometheus.MustRegister(c.jobsSubmitted)
	prometheus.MustRegister(c.jobsCompleted)
	prometheus.MustRegister(c.barrierReleases)
	prometheus.MustRegister(c.completionsRun)
	prometheus.MustRegister(c.jobRunSeconds)
	prometheus.MustRegister(c.jobsReady)
	prometheus.MustRegister(c.jobsBlocked)
	prometheus.MustRegister(c.workersBusy)
	prometheus.MustRegister(c.recordsFree)

	return c
}

// RecordSubmit records one accepted job.
func (c *Collector) RecordSubmit() {
	c.jobsSubmitted.Inc()
}

// RecordCompleted records a job body finishing with its runtime.
func (c *Collector) RecordCompleted(runSeconds float64) {
	c.jobsCompleted.Inc()
	c.jobRunSeconds.Observe(runSeconds)
}

// RecordBarrierReleases records n barrier decrements.
func (c *Collector) RecordBarrierReleases(n int) {
	c.barrierReleases.Add(float64(n))
}

// RecordCompletionRun records one completion callback invocation.
func (c *Collector) RecordCompletionRun() {
	c.completionsRun.Inc()
}

// SetQueueStats updates the ready-queue and free-record gauges.
func (c *Collector) SetQueueStats(ready, free int) {
	c.jobsReady.Set(float64(ready))
	c.recordsFree.Set(float64(free))
}

// AddBlocked adjusts the blocked-jobs gauge by delta.
func (c *Collector) AddBlocked(delta int) {
	c.jobsBlocked.Add(float64(delta))
}

// WorkerStarted marks one worker as busy.
func (c *Collector) WorkerStarted() {
	c.workersBusy.Inc()
}

// WorkerIdle marks one worker as idle again.
func (c *Collector) WorkerIdle() {
	c.workersBusy.Dec()
}

// StartServer starts the Prometheus metrics HTTP server.
//
// Parameters:
//   - port: HTTP server port
//
// Returns:
//   - error: Error on startup failure
func StartServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, nil)
}
