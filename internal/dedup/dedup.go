// Package dedup collapses repeated strings while preserving first-seen order.
package dedup

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Set remembers strings in insertion order. A Bloom filter answers most
// negative lookups; the exact map settles the rest.
type Set struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	exact  map[string]struct{}
	order  []string
}

// New creates a Set sized for roughly estimatedItems entries.
func New(estimatedItems int) *Set {
	if estimatedItems < 64 {
		estimatedItems = 64
	}
	return &Set{
		filter: bloom.NewWithEstimates(uint(estimatedItems), 0.001),
		exact:  make(map[string]struct{}),
	}
}

// Add records s and reports whether it was new.
func (s *Set) Add(v string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filter.TestString(v) {
		if _, ok := s.exact[v]; ok {
			return false
		}
	}
	s.filter.AddString(v)
	s.exact[v] = struct{}{}
	s.order = append(s.order, v)
	return true
}

// Has reports whether v was added.
func (s *Set) Has(v string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.filter.TestString(v) {
		return false
	}
	_, ok := s.exact[v]
	return ok
}

// Count returns the number of distinct entries.
func (s *Set) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Items returns the distinct entries in first-seen order.
func (s *Set) Items() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Reset empties the set.
func (s *Set) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filter.ClearAll()
	s.exact = make(map[string]struct{})
	s.order = nil
}

// Strings returns items without repeats, first occurrence wins.
func Strings(items []string) []string {
	set := New(len(items))
	for _, v := range items {
		set.Add(v)
	}
	return set.Items()
}

// By returns items whose key has not been seen earlier in the slice.
func By[T any](items []T, key func(T) string) []T {
	set := New(len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		if set.Add(key(it)) {
			out = append(out, it)
		}
	}
	return out
}
