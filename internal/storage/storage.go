// Package storage defines the backend-agnostic loader interface used to push
// repaired extracts into a database, plus the factory registry backends
// register themselves with.
//
// Loading is an optional final stage: a pipeline with no storage kind
// configured never touches this package. Backends live in subpackages and
// self-register from init, so the set of compiled-in backends is decided by
// imports alone (see the all subpackage).
package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to create a Loader.
//
// Kind must match a registered backend kind. DSN is passed through to the
// backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Loader is the backend-agnostic interface for loading repaired extracts.
//
// All columns load as text: typing is the warehouse's job, and a loader that
// re-parses values would just duplicate the validation stage with weaker
// reporting.
type Loader interface {
	// EnsureTable creates the target table if it does not exist, with one
	// text column per name. Idempotent.
	EnsureTable(ctx context.Context, table string, columns []string) error

	// LoadCSV streams the CSV at path into table, mapping header names to
	// columns case-insensitively. Returns the number of rows loaded.
	LoadCSV(ctx context.Context, path string, delim rune, table string, columns []string) (int64, error)

	// Close releases backend resources. Treat as "call once".
	Close()
}

type factory func(ctx context.Context, cfg Config) (Loader, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend factory under a kind (e.g. "postgres").
//
// Call from an init() in a backend package. Registering an empty kind, a nil
// factory, or a duplicate kind panics; ambiguous backend selection is a
// programming error worth failing fast on.
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

// New constructs a Loader using the registered backend factory.
func New(ctx context.Context, cfg Config) (Loader, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing storage.kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}
