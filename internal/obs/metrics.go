// Package obs exposes the Prometheus counters and gauges the worker and API
// processes report, plus the /metrics HTTP endpoint that serves them.
package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	JobsClaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storypipe_jobs_claimed_total",
		Help: "Total number of stories dequeued and claimed by a worker",
	})
	JobsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storypipe_jobs_completed_total",
		Help: "Total number of stories that reached the completed state",
	})
	JobsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storypipe_jobs_failed_total",
		Help: "Total number of stories that reached the failed state",
	})
	JobsNacked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storypipe_jobs_nacked_total",
		Help: "Total number of stories left on the queue for redelivery after a retryable failure",
	})
	JobProcessingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "storypipe_job_processing_duration_seconds",
		Help:    "Histogram of per-story pipeline processing durations",
		Buckets: prometheus.DefBuckets,
	})
	ScenesGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storypipe_scenes_generated_total",
		Help: "Total number of scenes that finished both image and audio generation",
	})
	ReaperRecovered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storypipe_reaper_recovered_total",
		Help: "Total number of handles requeued by the reaper after their visibility timeout expired",
	})
	WorkersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "storypipe_workers_active",
		Help: "Number of worker goroutines currently polling the queue",
	})
)

func init() {
	prometheus.MustRegister(
		JobsClaimed, JobsCompleted, JobsFailed, JobsNacked,
		JobProcessingDuration, ScenesGenerated, ReaperRecovered, WorkersActive,
	)
}

// StartMetricsServer exposes /metrics on addr and returns the server so the
// caller can shut it down alongside the rest of the process.
func StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()
	return srv
}
