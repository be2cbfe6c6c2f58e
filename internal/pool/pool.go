// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pool implements the age-tracked free lists ("dead pools") that hold
// GPU backing resources between uses.
//
// A FreeList is not safe for concurrent use; the render graph drives it from
// a single goroutine.
package pool

import (
	"fmt"
	"slices"
)

// Stats contains free-list counters.
type Stats struct {
	// Free is the number of entries currently waiting in the list.
	Free int

	// Hits is the number of successful Acquire calls.
	Hits uint64

	// Misses is the number of Acquire calls that found no matching entry.
	Misses uint64

	// Evictions is the number of entries destroyed for age.
	Evictions uint64
}

// String returns a human-readable summary.
func (s Stats) String() string {
	return fmt.Sprintf("free=%d hits=%d misses=%d evictions=%d", s.Free, s.Hits, s.Misses, s.Evictions)
}

type entry[V any] struct {
	value V
	age   int
}

// FreeList is an ordered list of free values. Acquire does a linear scan for
// the first value whose key matches, which keeps reuse deterministic: the
// oldest matching entry is handed out first.
type FreeList[K comparable, V any] struct {
	entries []entry[V]
	keyOf   func(V) K
	destroy func(V)

	hits      uint64
	misses    uint64
	evictions uint64
}

// New creates a free list. keyOf extracts the structural key of a value and
// destroy releases the GPU resources of a value that leaves the list for good.
func New[K comparable, V any](keyOf func(V) K, destroy func(V)) *FreeList[K, V] {
	return &FreeList[K, V]{keyOf: keyOf, destroy: destroy}
}

// Acquire removes and returns the first value matching key.
func (l *FreeList[K, V]) Acquire(key K) (V, bool) {
	for i := range l.entries {
		if l.keyOf(l.entries[i].value) == key {
			v := l.entries[i].value
			l.entries = slices.Delete(l.entries, i, i+1)
			l.hits++
			return v, true
		}
	}
	l.misses++
	var zero V
	return zero, false
}

// Release appends v with age zero.
func (l *FreeList[K, V]) Release(v V) {
	l.entries = append(l.entries, entry[V]{value: v})
}

// Age increments the age of every free entry.
func (l *FreeList[K, V]) Age() {
	for i := range l.entries {
		l.entries[i].age++
	}
}

// Evict destroys every entry whose age has reached maxAge and returns the
// number destroyed.
func (l *FreeList[K, V]) Evict(maxAge int) int {
	kept := l.entries[:0]
	n := 0
	for _, e := range l.entries {
		if e.age >= maxAge {
			l.destroy(e.value)
			n++
			continue
		}
		kept = append(kept, e)
	}
	clear(l.entries[len(kept):])
	l.entries = kept
	l.evictions += uint64(n)
	return n
}

// Drain destroys every entry regardless of age.
func (l *FreeList[K, V]) Drain() int {
	n := len(l.entries)
	for _, e := range l.entries {
		l.destroy(e.value)
	}
	clear(l.entries)
	l.entries = l.entries[:0]
	return n
}

// Len returns the number of free entries.
func (l *FreeList[K, V]) Len() int { return len(l.entries) }

// Each calls fn for every free entry with its age, oldest first.
func (l *FreeList[K, V]) Each(fn func(v V, age int)) {
	for _, e := range l.entries {
		fn(e.value, e.age)
	}
}

// Stats returns the current counters.
func (l *FreeList[K, V]) Stats() Stats {
	return Stats{
		Free:      len(l.entries),
		Hits:      l.hits,
		Misses:    l.misses,
		Evictions: l.evictions,
	}
}
