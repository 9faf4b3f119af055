// Package storage is the load collaborator: it persists a finalized table
// into an analytical SQL store, unchanged. Backends register themselves with
// the factory under a kind string; the pipeline binary blank-imports
// internal/storage/all so every built-in backend is selectable from config.
package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to create a repository.
type Config struct {
	Kind string
	DSN  string
}

// TableSpec describes the destination table in contract terms. Backends map
// the contract types (text, integer, real) to their own DDL.
type TableSpec struct {
	Name    string
	Columns []ColumnSpec
}

// ColumnSpec is one destination column.
type ColumnSpec struct {
	Name string
	Type string // schema.TypeText | schema.TypeInteger | schema.TypeReal
}

// SpecFor builds a TableSpec from a finalized table's column order and type
// mapping.
func SpecFor(name string, columns []string, types map[string]string) TableSpec {
	spec := TableSpec{Name: name, Columns: make([]ColumnSpec, len(columns))}
	for i, c := range columns {
		spec.Columns[i] = ColumnSpec{Name: c, Type: types[c]}
	}
	return spec
}

// Repository is the backend-agnostic load interface.
//
// IMPORTANT: intentionally minimal. The transformation core guarantees the
// rows are fully typed and null-free, so backends do plain DDL + bulk insert
// and nothing else.
type Repository interface {
	// Close releases backend resources. Call once at shutdown.
	Close()

	// EnsureTable creates the destination table if it does not exist.
	EnsureTable(ctx context.Context, spec TableSpec) error

	// InsertRows bulk-inserts rows (aligned with columns) and returns the
	// number of rows written.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "sqlite", "postgres").
//
// Call Register from an init() function in a backend package. Registering
// the same kind twice panics: failing fast beats ambiguous backend
// selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind=%q", cfg.Kind)
	}
	return f(ctx, cfg)
}
