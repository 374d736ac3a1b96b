// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"errors"

	"github.com/gogpu/rendergraph/internal/alloc"
	"github.com/gogpu/rendergraph/internal/ir"
)

// Graph configuration errors. Build failures are returned as *BuildError
// values that unwrap to one of these.
var (
	ErrCycle              = ir.ErrCycle
	ErrDanglingRead       = ir.ErrDanglingRead
	ErrMultipleWriters    = ir.ErrMultipleWriters
	ErrUnknownNamedSize   = ir.ErrUnknownNamedSize
	ErrDuplicateNamedSize = ir.ErrDuplicateNamedSize
	ErrFormatMismatch     = ir.ErrFormatMismatch
	ErrNoOutput           = ir.ErrNoOutput
	ErrNoOutputWriter     = ir.ErrNoOutputWriter
	ErrDuplicatePass      = ir.ErrDuplicatePass
	ErrInvalidAttachment  = ir.ErrInvalidAttachment
	ErrUnsupported        = ir.ErrUnsupported
)

// Lifecycle errors.
var (
	// ErrGraphBuilt is returned when the graph is modified after Build.
	ErrGraphBuilt = errors.New("rendergraph: graph already built")

	// ErrNotBuilt is returned when executing a graph that was not built.
	ErrNotBuilt = errors.New("rendergraph: graph not built")

	// ErrMemoryBudgetExceeded is returned when allocation would exceed the
	// budget set with WithMemoryBudget.
	ErrMemoryBudgetExceeded = alloc.ErrMemoryBudgetExceeded
)

// BuildError describes a graph configuration error. Kind is one of the
// sentinel errors; Pass and Resource locate the offending declaration.
type BuildError = ir.BuildError
