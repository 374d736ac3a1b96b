// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package handle maps the opaque IDs of the device contract to backend
// objects.
package handle

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Counter issues IDs. Tables sharing a Counter never reuse an ID, so a
// stale handle of one kind cannot resolve to an object of another.
type Counter struct {
	n atomic.Uint64
}

func (c *Counter) next() uint64 { return c.n.Add(1) }

// Table is a concurrent ID to object map.
type Table[T any] struct {
	ids *Counter
	mu  sync.RWMutex
	m   map[uint64]T
}

// NewTable returns an empty table issuing IDs from ids.
func NewTable[T any](ids *Counter) *Table[T] {
	return &Table[T]{ids: ids, m: make(map[uint64]T)}
}

// Add stores v and returns its ID. IDs start at 1.
func (t *Table[T]) Add(v T) uint64 {
	id := t.ids.next()
	t.mu.Lock()
	t.m[id] = v
	t.mu.Unlock()
	return id
}

// Get returns the object stored under id.
func (t *Table[T]) Get(id uint64) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.m[id]
	return v, ok
}

// Remove deletes id and returns the object it named.
func (t *Table[T]) Remove(id uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.m[id]
	if ok {
		delete(t.m, id)
	}
	return v, ok
}

// Len returns the number of live objects.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}

// Drain removes every object and returns them newest first, the order in
// which dependent objects must be destroyed.
func (t *Table[T]) Drain() []T {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]uint64, 0, len(t.m))
	for id := range t.m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]T, 0, len(ids))
	for _, id := range slices.Backward(ids) {
		out = append(out, t.m[id])
	}
	clear(t.m)
	return out
}
