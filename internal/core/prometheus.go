package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"herdcore/pkg/analytics"
)

// PrometheusMetricsRecorder exports service latency and classification
// outcomes as Prometheus collectors.
type PrometheusMetricsRecorder struct {
	durations  *prometheus.HistogramVec
	classified *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder registers the recorder's collectors with reg.
// A nil registerer falls back to prometheus.DefaultRegisterer.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	rec := &PrometheusMetricsRecorder{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "herdcore",
			Name:      "operation_duration_seconds",
			Help:      "Latency of herdcore service operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"operation", "status"}),
		classified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "herdcore",
			Name:      "cohort_classified_total",
			Help:      "Subjects classified per production class.",
		}, []string{"class"}),
	}
	for _, c := range []prometheus.Collector{rec.durations, rec.classified} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	r.durations.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// ObserveClassification implements ClassificationObserver.
func (r *PrometheusMetricsRecorder) ObserveClassification(_ context.Context, distribution []analytics.DistributionBucket) {
	for _, bucket := range distribution {
		r.classified.WithLabelValues(string(bucket.Class)).Add(float64(bucket.Count))
	}
}
