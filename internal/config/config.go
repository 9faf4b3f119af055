// Package config defines the pipeline configuration surface for the country
// ETL. A pipeline config is a single JSON document: where the raw document
// comes from, the declared transform contract, runtime knobs, and the load
// target. All of it is data; nothing here is code the caller cannot override.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"countryetl/internal/schema"
)

// Pipeline is the root configuration for one ETL run.
type Pipeline struct {
	Job       string    `json:"job"`
	Source    Source    `json:"source"`
	Transform Transform `json:"transform"`
	Storage   Storage   `json:"storage"`
	Runtime   Runtime   `json:"runtime"`

	// Metrics configures the metrics backend. Command-line flags and
	// environment variables override these values.
	//
	// Recognized options:
	//
	//	"backend":             string ("pushgateway", "datadog" or "none")
	//	"gateway_url":         string (Pushgateway base URL)
	//	"tags":                array of "key:value" strings (Datadog)
	//	"flush_every_seconds": int    (Datadog submission interval)
	Metrics Options `json:"metrics,omitempty"`
}

// Source describes where the raw country document comes from.
//
// kind "http": fetch URL and persist the raw body at raw_path before parsing.
// kind "file": parse raw_path directly (no network).
type Source struct {
	Kind       string `json:"kind"`
	URL        string `json:"url,omitempty"`
	RawPath    string `json:"raw_path"`
	TimeoutSec int    `json:"timeout_seconds,omitempty"`
}

// Transform holds the declared contract plus loose stage options.
//
// Recognized options:
//
//	"distinct":       bool   (drop duplicate finalized rows, default true)
//	"coerce_policy":  string ("abort" by default, or "default")
type Transform struct {
	// Contract is the declared schema: required paths, explodable fields,
	// output columns with defaults and target types. When the JSON omits it
	// entirely, schema.Countries() is used.
	Contract *schema.Contract `json:"contract,omitempty"`

	Options Options `json:"options,omitempty"`
}

// Storage selects the load backend.
type Storage struct {
	Kind  string `json:"kind"` // "sqlite" | "postgres" | "mssql"
	DSN   string `json:"dsn"`  // environment variables are expanded
	Table string `json:"table"`
}

// Runtime controls execution behavior of the transformation stage.
type Runtime struct {
	TransformWorkers int `json:"transform_workers"`
	ChannelBuffer    int `json:"channel_buffer"`
}

// Contract returns the effective contract, falling back to the built-in
// countries contract when the config does not declare one.
func (p Pipeline) Contract() schema.Contract {
	if p.Transform.Contract != nil {
		return *p.Transform.Contract
	}
	return schema.Countries()
}

// Load reads and decodes a pipeline config file.
func Load(path string) (Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode decodes a pipeline config from r. Unknown fields are rejected so
// typos surface at startup instead of silently configuring nothing.
func Decode(r io.Reader) (Pipeline, error) {
	var p Pipeline
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("decode config: %w", err)
	}
	return p, nil
}
