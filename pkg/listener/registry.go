// Package listener provides an observer set that dispatches in insertion
// order.
package listener

import (
	"reflect"
	"slices"
	"sync"

	"barcodecount/pkg/log"
)

// Registry is a set of listeners. Adding a listener twice or removing an
// absent one is a no-op. L is usually a pointer or interface type, since
// identity is decided by ==. Listeners whose dynamic type is not comparable,
// such as struct values holding a slice, are never registered.
type Registry[L comparable] struct {
	mu        sync.RWMutex
	listeners []L
}

func NewRegistry[L comparable]() *Registry[L] {
	return &Registry[L]{}
}

// Add registers l and reports whether it was not registered before.
func (r *Registry[L]) Add(l L) bool {
	if !isComparable(l) {
		log.Error("Listener of type %T cannot be compared; register a pointer instead", l)
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.listeners, l) {
		return false
	}
	r.listeners = append(r.listeners, l)
	return true
}

// Remove unregisters l and reports whether it was registered.
func (r *Registry[L]) Remove(l L) bool {
	if !isComparable(l) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.Index(r.listeners, l)
	if i < 0 {
		return false
	}
	r.listeners = slices.Delete(r.listeners, i, i+1)
	return true
}

func (r *Registry[L]) Contains(l L) bool {
	if !isComparable(l) {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(r.listeners, l)
}

func (r *Registry[L]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

// Snapshot returns the listeners in insertion order. Dispatching over a
// snapshot lets listeners add or remove listeners from their callbacks.
func (r *Registry[L]) Snapshot() []L {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.listeners)
}

// isComparable reports whether == on l cannot panic. Only interface values
// can hold an incomparable dynamic type.
func isComparable[L comparable](l L) bool {
	t := reflect.TypeOf(any(l))
	return t == nil || t.Comparable()
}
