// Package metrics defines the minimal metrics abstraction the pipeline emits
// through. The core stages depend only on Backend; concrete backends live in
// subpackages and are selected at startup.
package metrics

import "sync"

// Labels attach dimensions to a metric observation.
type Labels map[string]string

// Backend receives metric observations.
//
// Implementations must be safe for concurrent use; the runner reports from
// wherever work happens.
type Backend interface {
	// IncCounter adds delta to a named counter. Non-positive deltas are
	// ignored.
	IncCounter(name string, delta float64, labels Labels)

	// ObserveHistogram records one sample of a named distribution.
	ObserveHistogram(name string, value float64, labels Labels)

	// Flush submits any buffered observations.
	Flush() error
}

// Metric names emitted by the batch runner.
const (
	// FilesTotal counts processed files, labeled by status
	// (ok/corrected/warnings/errors).
	FilesTotal = "cresval_files_total"

	// LinesTotal counts lines, labeled by kind
	// (analyzed/merged/rejected/exported/loaded).
	LinesTotal = "cresval_lines_total"

	// FileDurationSeconds is the per-file wall time, labeled by status.
	FileDurationSeconds = "cresval_file_duration_seconds"
)

// Nop is a Backend that discards everything.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}
func (Nop) Flush() error                             { return nil }

var _ Backend = Nop{}

var (
	mu      sync.RWMutex
	backend Backend = Nop{}
)

// SetBackend installs the process-wide backend. Call once at startup, before
// the runner starts; the default is Nop.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = Nop{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter forwards to the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram forwards to the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush forwards to the installed backend.
func Flush() error {
	return current().Flush()
}
