// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ir

import (
	"errors"
	"fmt"
	"strings"
)

// Graph construction errors. Every BuildError unwraps to one of these.
var (
	// ErrCycle means passes depend on each other through their resources.
	ErrCycle = errors.New("rendergraph: dependency cycle")

	// ErrDanglingRead means a pass reads a resource nobody writes or imports.
	ErrDanglingRead = errors.New("rendergraph: read of undeclared resource")

	// ErrMultipleWriters means two passes declare the same output.
	ErrMultipleWriters = errors.New("rendergraph: resource has multiple writers")

	// ErrUnknownNamedSize means an attachment is relative to a missing named size.
	ErrUnknownNamedSize = errors.New("rendergraph: unknown named size")

	// ErrDuplicateNamedSize means a named size was added twice.
	ErrDuplicateNamedSize = errors.New("rendergraph: duplicate named size")

	// ErrFormatMismatch means an output format does not fit its binding,
	// e.g. a color output with a depth format.
	ErrFormatMismatch = errors.New("rendergraph: format does not match binding")

	// ErrNoOutput means Build was called without SetOutput.
	ErrNoOutput = errors.New("rendergraph: no output resource set")

	// ErrNoOutputWriter means no pass writes the designated output.
	ErrNoOutputWriter = errors.New("rendergraph: output resource has no writer")

	// ErrDuplicatePass means two passes share a name.
	ErrDuplicatePass = errors.New("rendergraph: duplicate pass name")

	// ErrInvalidAttachment means attachment parameters are out of range.
	ErrInvalidAttachment = errors.New("rendergraph: invalid attachment")

	// ErrUnsupported means the device lacks a capability the graph needs.
	ErrUnsupported = errors.New("rendergraph: unsupported by device")
)

// BuildError describes a graph configuration error. Kind is one of the
// sentinel errors above; Pass and Resource locate the offending declaration.
type BuildError struct {
	Kind     error
	Pass     string
	Resource string
	Detail   string
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Pass != "" {
		fmt.Fprintf(&b, ": pass %q", e.Pass)
	}
	if e.Resource != "" {
		fmt.Fprintf(&b, ": resource %q", e.Resource)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// Unwrap returns the sentinel kind.
func (e *BuildError) Unwrap() error { return e.Kind }

// Errorf builds a BuildError with a formatted detail.
func Errorf(kind error, pass, resource, format string, args ...any) *BuildError {
	return &BuildError{Kind: kind, Pass: pass, Resource: resource, Detail: fmt.Sprintf(format, args...)}
}
