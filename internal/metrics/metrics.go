// Package metrics is a tiny facade over pluggable metric backends.
//
// The pipeline calls the package-level helpers; by default they hit a nop
// backend, so metrics cost nothing unless a real backend (e.g. Datadog) is
// installed at startup via SetBackend.
package metrics

import "sync"

// Labels are free-form key/value tags attached to a metric point.
type Labels map[string]string

// Backend is the minimal sink interface a metrics implementation provides.
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

// IncCounter adds delta to a named counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample of a named distribution.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush pushes any buffered metrics to the backend's destination.
func Flush() error {
	return current().Flush()
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }
