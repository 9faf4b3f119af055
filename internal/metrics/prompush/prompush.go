// Package prompush implements a Prometheus Pushgateway backend for the
// internal/metrics facade.
//
// Unlike the Datadog backend there is no internal buffer: observations go
// straight into client_golang vectors registered on a private registry, and
// Flush() pushes the whole registry to the gateway. The job name is part of
// the push grouping key, so it is stripped from per-metric labels to avoid
// colliding with the gateway's own job label.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"countryetl/internal/metrics"
)

// Backend implements metrics.Backend against a Prometheus Pushgateway.
type Backend struct {
	pusher *push.Pusher

	stepTotal    *prometheus.CounterVec
	recordsTotal *prometheus.CounterVec
	httpReqTotal *prometheus.CounterVec
	httpErrTotal *prometheus.CounterVec

	stepDuration *prometheus.HistogramVec
	httpReqDur   *prometheus.HistogramVec
	httpRespDur  *prometheus.HistogramVec
	httpBytes    *prometheus.HistogramVec
}

// NewBackend builds a backend pushing to gatewayURL under the given job
// grouping key.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: empty gateway URL")
	}
	if jobName == "" {
		jobName = "countryetl"
	}

	reg := prometheus.NewRegistry()

	b := &Backend{
		stepTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "etl_step_total",
			Help: "Pipeline stage completions by status.",
		}, []string{"step", "status"}),
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "etl_records_total",
			Help: "Row counts by kind (flattened, final, duplicate, ...).",
		}, []string{"kind"}),
		httpReqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "etl_http_requests_total",
			Help: "Extraction HTTP requests by status.",
		}, []string{"status"}),
		httpErrTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "etl_http_errors_total",
			Help: "Extraction HTTP failures by status.",
		}, []string{"status"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "etl_step_duration_seconds",
			Help:    "Pipeline stage durations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"step", "status"}),
		httpReqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "etl_http_request_duration_seconds",
			Help:    "Time to first response byte.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		httpRespDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "etl_http_response_duration_seconds",
			Help:    "Time to fully read the response body.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		httpBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "etl_http_download_bytes",
			Help:    "Raw document sizes.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"status"}),
	}

	reg.MustRegister(
		b.stepTotal, b.recordsTotal, b.httpReqTotal, b.httpErrTotal,
		b.stepDuration, b.httpReqDur, b.httpRespDur, b.httpBytes,
	)

	b.pusher = push.New(gatewayURL, jobName).Gatherer(reg)
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown metric names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case "etl_step_total":
		b.stepTotal.WithLabelValues(labels["step"], orUnknown(labels["status"])).Add(delta)
	case "etl_records_total":
		if kind := labels["kind"]; kind != "" {
			b.recordsTotal.WithLabelValues(kind).Add(delta)
		}
	case "etl_http_requests_total":
		b.httpReqTotal.WithLabelValues(orUnknown(labels["status"])).Add(delta)
	case "etl_http_errors_total":
		b.httpErrTotal.WithLabelValues(orUnknown(labels["status"])).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend. Unknown metric names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	switch name {
	case "etl_step_duration_seconds":
		b.stepDuration.WithLabelValues(labels["step"], orUnknown(labels["status"])).Observe(value)
	case "etl_http_request_duration_seconds":
		b.httpReqDur.WithLabelValues(orUnknown(labels["status"])).Observe(value)
	case "etl_http_response_duration_seconds":
		b.httpRespDur.WithLabelValues(orUnknown(labels["status"])).Observe(value)
	case "etl_http_download_bytes":
		b.httpBytes.WithLabelValues(orUnknown(labels["status"])).Observe(value)
	}
}

// Flush pushes the registry to the gateway. Add (not Push) so concurrent
// jobs under other grouping keys are left alone.
func (b *Backend) Flush() error {
	return b.pusher.Add()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

var _ metrics.Backend = (*Backend)(nil)
