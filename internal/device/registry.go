package device

import (
	"iter"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry maps hardware addresses to their last accepted payload.
//
// Entries are created on NEW, overwritten on CHANGED and never removed.
// The supervisor goroutine is the only writer; other goroutines (status
// API, metrics) may read concurrently through All, Len and Lookup.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Payload
	logger  Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]Payload),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// ClassifyAndStore records a payload for address and reports what changed.
//
// The lookup and the insert/overwrite happen under one lock, so two calls
// for the same address never interleave.
//
//   - absent address: insert, ClassNew
//   - stored payload differs in any byte: overwrite, ClassChanged
//   - stored payload identical: no mutation, ClassUnchanged
func (r *Registry) ClassifyAndStore(address string, p Payload) Classification {
	r.mu.Lock()
	old, ok := r.devices[address]
	switch {
	case !ok:
		r.devices[address] = p
		r.mu.Unlock()
		r.logger.Info("new device", "address", address, "data", p.String())
		return ClassNew
	case old != p:
		r.devices[address] = p
		r.mu.Unlock()
		r.logger.Info("data changed for device",
			"address", address,
			"old", old.String(),
			"new", p.String(),
		)
		return ClassChanged
	default:
		r.mu.Unlock()
		return ClassUnchanged
	}
}

// All returns a traversal over every entry, in unspecified order.
//
// Each call to the returned sequence takes a fresh snapshot of the registry
// and then yields from it without holding the lock, so the sequence is
// restartable and a ClassifyAndStore from inside the loop body cannot
// deadlock or crash it. Entries added after the snapshot are not visited.
func (r *Registry) All() iter.Seq2[string, Payload] {
	return func(yield func(string, Payload) bool) {
		for address, p := range r.snapshot() {
			if !yield(address, p) {
				return
			}
		}
	}
}

// snapshot copies the current entries under the read lock.
func (r *Registry) snapshot() map[string]Payload {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Payload, len(r.devices))
	for address, p := range r.devices {
		out[address] = p
	}
	return out
}

// Lookup returns the stored payload for address.
func (r *Registry) Lookup(address string) (Payload, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.devices[address]
	return p, ok
}

// Len returns the number of distinct addresses seen so far.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
