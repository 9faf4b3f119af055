package config

import (
	"fmt"
	"net/url"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding from ValidatePipeline. Path is a dotted location in
// the config document so operators can fix the exact field.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// ValidatePipeline checks a pipeline config for problems before any work
// starts. It returns every issue found, not just the first, so a single run
// surfaces all config drift at once.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	errf := func(path, format string, a ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, a...)})
	}
	warnf := func(path, format string, a ...any) {
		issues = append(issues, Issue{SeverityWarning, path, fmt.Sprintf(format, a...)})
	}

	if p.Job == "" {
		warnf("job", "missing job name; metrics will use a generic job tag")
	}

	switch p.Source.Kind {
	case "http":
		if p.Source.URL == "" {
			errf("source.url", "required for source.kind=http")
		} else if u, err := url.Parse(p.Source.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errf("source.url", "not an absolute URL: %q", p.Source.URL)
		}
		if p.Source.RawPath == "" {
			errf("source.raw_path", "required: raw body is persisted before parsing")
		}
	case "file":
		if p.Source.RawPath == "" {
			errf("source.raw_path", "required for source.kind=file")
		}
	case "":
		errf("source.kind", "required (http or file)")
	default:
		errf("source.kind", "unsupported kind %q (want http or file)", p.Source.Kind)
	}
	if p.Source.TimeoutSec < 0 {
		errf("source.timeout_seconds", "must be >= 0")
	}

	if err := p.Contract().Validate(); err != nil {
		errf("transform.contract", "%v", err)
	}
	switch pol := p.Transform.Options.String("coerce_policy", "abort"); pol {
	case "abort", "default":
	default:
		errf("transform.options.coerce_policy", "unknown policy %q (want abort or default)", pol)
	}

	switch backend := p.Metrics.String("backend", "none"); backend {
	case "none", "pushgateway", "datadog":
	default:
		errf("metrics.backend", "unknown backend %q (want pushgateway, datadog or none)", backend)
	}
	if p.Metrics.Int("flush_every_seconds", 0) < 0 {
		errf("metrics.flush_every_seconds", "must be >= 0")
	}

	if p.Storage.Kind == "" {
		errf("storage.kind", "required (sqlite, postgres or mssql)")
	}
	if p.Storage.DSN == "" {
		errf("storage.dsn", "required")
	}
	if p.Storage.Table == "" {
		errf("storage.table", "required")
	}

	if p.Runtime.TransformWorkers < 0 {
		errf("runtime.transform_workers", "must be >= 0 (0 means default)")
	}
	if p.Runtime.ChannelBuffer < 0 {
		errf("runtime.channel_buffer", "must be >= 0 (0 means default)")
	}

	return issues
}
