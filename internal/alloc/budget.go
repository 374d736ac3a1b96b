// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package alloc

import (
	"errors"
	"fmt"
	"sync"
)

// ErrMemoryBudgetExceeded is returned when an allocation would exceed the
// configured budget.
var ErrMemoryBudgetExceeded = errors.New("rendergraph: memory budget exceeded")

// MemoryStats contains memory usage statistics of the graph's resources.
type MemoryStats struct {
	// TotalBytes is the budget in bytes, 0 when unlimited.
	TotalBytes uint64

	// UsedBytes is the estimated size of all live resources.
	UsedBytes uint64

	// AvailableBytes is the remaining budget, 0 when unlimited.
	AvailableBytes uint64

	// ResourceCount is the number of live textures and buffers.
	ResourceCount int

	// PeakBytes is the highest UsedBytes observed.
	PeakBytes uint64

	// Utilization is the fraction of the budget in use (0.0 to 1.0).
	Utilization float64
}

// String returns a human-readable summary.
func (s MemoryStats) String() string {
	if s.TotalBytes == 0 {
		return fmt.Sprintf("Memory[%d KB, %d resources, unlimited]", s.UsedBytes/1024, s.ResourceCount)
	}
	return fmt.Sprintf("Memory[%.1f%% used, %d/%d KB, %d resources]",
		s.Utilization*100,
		s.UsedBytes/1024,
		s.TotalBytes/1024,
		s.ResourceCount)
}

// Budget accounts resource sizes against a byte limit.
//
// Budget is safe for concurrent use.
type Budget struct {
	mu    sync.Mutex
	limit uint64
	used  uint64
	peak  uint64
	count int
}

// NewBudget returns a budget of limit bytes. A zero limit only tracks usage.
func NewBudget(limit uint64) *Budget {
	return &Budget{limit: limit}
}

// Reserve accounts n bytes for one resource.
func (b *Budget) Reserve(n uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limit > 0 && b.used+n > b.limit {
		return fmt.Errorf("%w: %d bytes requested, %d of %d in use", ErrMemoryBudgetExceeded, n, b.used, b.limit)
	}
	b.used += n
	b.peak = max(b.peak, b.used)
	b.count++
	return nil
}

// Release returns n bytes of one resource to the budget.
func (b *Budget) Release(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.used -= min(n, b.used)
	if b.count > 0 {
		b.count--
	}
}

// Stats returns current usage.
func (b *Budget) Stats() MemoryStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := MemoryStats{
		TotalBytes:    b.limit,
		UsedBytes:     b.used,
		ResourceCount: b.count,
		PeakBytes:     b.peak,
	}
	if b.limit > 0 {
		s.AvailableBytes = b.limit - min(b.used, b.limit)
		s.Utilization = float64(b.used) / float64(b.limit)
	}
	return s
}
