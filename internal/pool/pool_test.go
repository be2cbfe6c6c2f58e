// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pool

import "testing"

type item struct {
	key       string
	id        int
	destroyed bool
}

func newTestList() *FreeList[string, *item] {
	return New(func(v *item) string { return v.key }, func(v *item) { v.destroyed = true })
}

func TestAcquireFirstMatch(t *testing.T) {
	l := newTestList()
	a := &item{key: "a", id: 1}
	b := &item{key: "b", id: 2}
	a2 := &item{key: "a", id: 3}
	l.Release(a)
	l.Release(b)
	l.Release(a2)

	got, ok := l.Acquire("a")
	if !ok || got != a {
		t.Fatalf("Acquire(a) = %v, %v; want first released entry", got, ok)
	}
	got, ok = l.Acquire("a")
	if !ok || got != a2 {
		t.Fatalf("second Acquire(a) = %v, %v; want entry 3", got, ok)
	}
	if _, ok := l.Acquire("a"); ok {
		t.Fatal("third Acquire(a) should miss")
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}

	s := l.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Errorf("Stats() = %v, want 2 hits and 1 miss", s)
	}
}

func TestAgeAndEvict(t *testing.T) {
	tests := []struct {
		name       string
		ages       int
		maxAge     int
		wantEvict  int
		wantRemain int
	}{
		{"fresh entries survive", 0, 1, 0, 2},
		{"one cycle evicts at threshold 1", 1, 1, 2, 0},
		{"one cycle keeps at threshold 2", 1, 2, 0, 2},
		{"two cycles evict at threshold 2", 2, 2, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestList()
			x, y := &item{key: "x"}, &item{key: "y"}
			l.Release(x)
			l.Release(y)
			for range tt.ages {
				l.Age()
			}
			if n := l.Evict(tt.maxAge); n != tt.wantEvict {
				t.Errorf("Evict() = %d, want %d", n, tt.wantEvict)
			}
			if l.Len() != tt.wantRemain {
				t.Errorf("Len() = %d, want %d", l.Len(), tt.wantRemain)
			}
			if tt.wantEvict > 0 && (!x.destroyed || !y.destroyed) {
				t.Error("evicted entries were not destroyed")
			}
		})
	}
}

func TestAcquireResetsAge(t *testing.T) {
	l := newTestList()
	x := &item{key: "x"}
	l.Release(x)
	l.Age()

	got, _ := l.Acquire("x")
	l.Release(got)
	if n := l.Evict(1); n != 0 {
		t.Fatalf("re-released entry evicted (n=%d); age should restart at zero", n)
	}
	var ages []int
	l.Each(func(_ *item, age int) { ages = append(ages, age) })
	if len(ages) != 1 || ages[0] != 0 {
		t.Errorf("ages = %v, want [0]", ages)
	}
}

func TestDrain(t *testing.T) {
	l := newTestList()
	items := []*item{{key: "a"}, {key: "b"}, {key: "c"}}
	for _, it := range items {
		l.Release(it)
	}
	if n := l.Drain(); n != 3 {
		t.Errorf("Drain() = %d, want 3", n)
	}
	for _, it := range items {
		if !it.destroyed {
			t.Errorf("item %q not destroyed", it.key)
		}
	}
	if l.Len() != 0 {
		t.Errorf("Len() after Drain = %d", l.Len())
	}
}
