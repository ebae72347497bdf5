package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch rejection reasons
const (
	ReasonNotImage = "not_image"
	ReasonTooLarge = "too_large"
	ReasonScheme   = "unsupported_scheme"
)

var (
	// JobsTotal counts finished job flows by execution handle and status
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_jobs_total",
		Help: "Job flows processed, by execution handle and status.",
	}, []string{"handle", "status"})

	// JobDuration observes job flow latency by execution handle
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_job_duration_seconds",
		Help:    "Job flow duration from routing to result assembly.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"handle"})

	// FetchRejected counts remote inputs rejected before download
	FetchRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_fetch_rejected_total",
		Help: "Input media rejected by the fetch policy.",
	}, []string{"reason"})

	// FetchBytes observes accepted input body sizes
	FetchBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_fetch_bytes",
		Help:    "Size of downloaded input images in bytes.",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	})

	// ResultBytes counts encoded result bytes by output slot
	ResultBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_result_bytes_total",
		Help: "Encoded result envelope bytes, by output slot.",
	}, []string{"slot"})
)
