// Package metrics is a small facade between the ETL stages and whatever
// metrics system a deployment uses. Stage code records against the package
// functions; the process wires a concrete Backend (Datadog, Pushgateway) at
// startup, or leaves the default nop in place.
//
// Metric names are an operational contract shared by all backends:
//
//	etl_step_total{step,status}               counter
//	etl_step_duration_seconds{step,status}    histogram
//	etl_records_total{kind}                   counter
//	etl_http_requests_total{status}           counter
//	etl_http_errors_total{status}             counter
//	etl_http_request_duration_seconds{status} histogram
//	etl_http_response_duration_seconds{status} histogram
//	etl_http_download_bytes{status}           histogram
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Labels are the dimensional tags attached to one observation.
type Labels map[string]string

// Backend receives raw observations. Implementations must be safe for
// concurrent use; recording happens from transform workers.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs the process-wide backend. Call once at startup.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush asks the current backend to submit anything buffered.
func Flush() error {
	return current().Flush()
}

// RecordStage records completion of one pipeline stage (ok or error) and its
// duration.
func RecordStage(job, stage string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := Labels{"job": job, "step": stage, "status": status}
	b := current()
	b.IncCounter("etl_step_total", 1, l)
	b.ObserveHistogram("etl_step_duration_seconds", d.Seconds(), l)
}

// RecordRows records a row count of some kind (flattened, final, duplicate,
// invalid_population, loaded).
func RecordRows(job, kind string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter("etl_records_total", float64(n), Labels{"job": job, "kind": kind})
}

// RecordHTTP records one extraction request attempt.
func RecordHTTP(job string, statusCode int, err error, reqDur, respDur time.Duration, downloadBytes int64) {
	status := strconv.Itoa(statusCode)
	if statusCode == 0 {
		status = "transport_error"
	}
	l := Labels{"job": job, "status": status}

	b := current()
	b.IncCounter("etl_http_requests_total", 1, l)
	if err != nil {
		b.IncCounter("etl_http_errors_total", 1, l)
	}
	if reqDur >= 0 {
		b.ObserveHistogram("etl_http_request_duration_seconds", reqDur.Seconds(), l)
	}
	if respDur >= 0 {
		b.ObserveHistogram("etl_http_response_duration_seconds", respDur.Seconds(), l)
	}
	if downloadBytes >= 0 {
		b.ObserveHistogram("etl_http_download_bytes", float64(downloadBytes), l)
	}
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }
