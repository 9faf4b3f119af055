// Command countryetl runs the country data pipeline: fetch the raw JSON
// document, transform it into the flat typed table, and load it into the
// configured analytical store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"countryetl/internal/config"
	"countryetl/internal/extract"
	"countryetl/internal/metrics"
	"countryetl/internal/metrics/datadog"
	"countryetl/internal/metrics/prompush"
	jsonparser "countryetl/internal/parser/json"
	"countryetl/internal/storage"
	"countryetl/internal/transformer"

	// register all backends with the storage factory.
	// config specifies which to use but we build in support for all of them.
	_ "countryetl/internal/storage/all"
)

const defaultTimeout = 30 * time.Second

// main wires flags, config and the metrics backend, then executes the run.
//
// Exit codes:
//   - 0: success.
//   - 1: pipeline run failure.
//   - 2: configuration/initialization error.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		ddTagsCSV         string
		validate          bool
		skipExtract       bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/countries.json", "pipeline config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend (pushgateway, datadog, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&ddTagsCSV, "dd-tags", "", "extra Datadog tags, comma-separated (env METRICS_TAGS also applies)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&skipExtract, "skip-extract", false, "transform an existing raw file instead of fetching")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf(2, "%v", err)
	}

	issues := config.ValidatePipeline(p)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		fatalf(2, "configuration is invalid: %v", cfgPath)
	}
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		return
	}

	jobName := p.Job
	if jobName == "" {
		jobName = "countryetl"
	}

	// Decide metrics backend: flag → env → config → default (disabled).
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	if backendName == "" {
		backendName = p.Metrics.String("backend", "")
	}
	switch backendName {
	case "pushgateway":
		gwURL := pushGatewayURLFlg
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = p.Metrics.String("gateway_url", "http://localhost:9091")
		}
		b, err := prompush.NewBackend(jobName, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init pushgateway backend: %v; using nop", err)
			break
		}
		log.Printf("metrics: backend=%s url=%s job=%s", backendName, gwURL, jobName)
		metrics.SetBackend(b)
		defer func() {
			if err := metrics.Flush(); err != nil {
				log.Printf("metrics: flush error: %v", err)
			}
		}()

	case "datadog":
		tags := datadog.ParseTagsCSV(ddTagsCSV)
		tags = append(tags, datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))...)
		tags = append(tags, p.Metrics.Strings("tags")...)
		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName:    jobName,
			Tags:       tags,
			FlushEvery: time.Duration(p.Metrics.Int("flush_every_seconds", 0)) * time.Second,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			break
		}
		log.Printf("metrics: backend=%s job=%s tags=%v", backendName, jobName, tags)
		metrics.SetBackend(b)
		// Close() stops the periodic flush loop, then flushes one last time.
		defer func() {
			if err := b.Close(); err != nil {
				log.Printf("metrics: datadog close/flush error: %v", err)
			}
		}()

	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	start := time.Now()
	if err := runPipeline(context.Background(), p, jobName, skipExtract, *verbose); err != nil {
		log.Printf("pipeline failed: %v", err)
		os.Exit(1)
	}
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// runPipeline executes extract → parse → transform → load.
func runPipeline(ctx context.Context, p config.Pipeline, jobName string, skipExtract, verbose bool) error {
	logger := log.Default()

	if p.Source.Kind == "http" && !skipExtract {
		timeout := defaultTimeout
		if p.Source.TimeoutSec > 0 {
			timeout = time.Duration(p.Source.TimeoutSec) * time.Second
		}
		fetchStart := time.Now()
		f := &extract.Fetcher{Job: jobName}
		n, err := f.FetchToFile(ctx, p.Source.URL, p.Source.RawPath, timeout)
		metrics.RecordStage(jobName, "extract", err, time.Since(fetchStart))
		if err != nil {
			return err
		}
		logger.Printf("stage=extract ok url=%s bytes=%d duration=%s",
			p.Source.URL, n, time.Since(fetchStart).Truncate(time.Millisecond))
	}

	records, err := jsonparser.ReadRecordsFile(p.Source.RawPath)
	if err != nil {
		return err
	}
	if verbose {
		logger.Printf("stage=parse ok records=%d raw=%s", len(records), p.Source.RawPath)
	}

	opts := transformer.Options{
		TransformWorkers: p.Runtime.TransformWorkers,
		ChannelBuffer:    p.Runtime.ChannelBuffer,
		Distinct:         p.Transform.Options.Bool("distinct", true),
		CoercePolicy:     p.Transform.Options.String("coerce_policy", transformer.PolicyAbort),
		Job:              jobName,
		Logger:           logger,
	}
	table, err := transformer.Run(ctx, p.Contract(), records, opts)
	if err != nil {
		return err
	}

	loadStart := time.Now()
	repo, err := storage.New(ctx, storage.Config{
		Kind: p.Storage.Kind,
		DSN:  os.ExpandEnv(p.Storage.DSN),
	})
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.EnsureTable(ctx, storage.SpecFor(p.Storage.Table, table.Columns, table.Types)); err != nil {
		metrics.RecordStage(jobName, "load", err, time.Since(loadStart))
		return err
	}
	n, err := repo.InsertRows(ctx, p.Storage.Table, table.Columns, table.Rows)
	metrics.RecordStage(jobName, "load", err, time.Since(loadStart))
	if err != nil {
		return err
	}
	metrics.RecordRows(jobName, "loaded", int(n))
	logger.Printf("stage=load ok table=%s rows=%d duration=%s",
		p.Storage.Table, n, time.Since(loadStart).Truncate(time.Millisecond))
	return nil
}

func fatalf(code int, format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(code)
}
