// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package ir holds the flat, index-addressed representation of a render
// graph shared by the resolver, scheduler, allocator and barrier planner.
package ir

import (
	"fmt"

	"github.com/gogpu/rendergraph/device"
)

// PipelineType is the pipeline category of a pass.
type PipelineType uint8

// Pipeline categories.
const (
	Graphics PipelineType = iota
	Compute
	General
)

var pipelineTypeNames = [...]string{"graphics", "compute", "general"}

// String returns the category name.
func (t PipelineType) String() string {
	if int(t) < len(pipelineTypeNames) {
		return pipelineTypeNames[t]
	}
	return fmt.Sprintf("PipelineType(%d)", t)
}

// ParsePipelineType is the inverse of [PipelineType.String].
func ParsePipelineType(s string) (PipelineType, bool) {
	for i, n := range pipelineTypeNames {
		if n == s {
			return PipelineType(i), true
		}
	}
	return 0, false
}

// Access is the capability of a storage binding.
type Access uint8

// Storage access modes.
const (
	AccessRead Access = iota
	AccessWrite
	AccessReadWrite
)

var accessNames = [...]string{"read", "write", "read-write"}

// String returns the access name.
func (a Access) String() string {
	if int(a) < len(accessNames) {
		return accessNames[a]
	}
	return fmt.Sprintf("Access(%d)", a)
}

// ParseAccess is the inverse of [Access.String].
func ParseAccess(s string) (Access, bool) {
	for i, n := range accessNames {
		if n == s {
			return Access(i), true
		}
	}
	return 0, false
}

// State is the default resource state for the access.
func (a Access) State() device.State {
	switch a {
	case AccessWrite:
		return device.StateStorageWrite
	case AccessReadWrite:
		return device.StateStorageReadWrite
	default:
		return device.StateStorageRead
	}
}

// Output is a color or depth attachment declared by a pass.
type Output struct {
	Name       string
	Attachment Attachment
}

// StorageTexture is a storage image binding. Attachment describes the
// texture when Access is AccessWrite (the binding declares the resource).
// Begin and End override the state required before and left after the
// pass; StateUndefined keeps the access default.
type StorageTexture struct {
	Name       string
	Access     Access
	Begin      device.State
	End        device.State
	Attachment Attachment
}

// StorageBuffer is a storage buffer binding. Size is meaningful on the
// declaring (AccessWrite) binding. Usage adds vertex/index/indirect hints.
type StorageBuffer struct {
	Name   string
	Size   uint64
	Access Access
	Begin  device.State
	End    device.State
	Usage  device.BufferUsage
}

// ReadKind distinguishes how a pass reads a resource.
type ReadKind uint8

// Read kinds.
const (
	ReadSampled ReadKind = iota
	ReadInputAttachment
	ReadStorageTexture
	ReadStorageBuffer
)

// Read is one resource read by a pass.
type Read struct {
	Name  string
	Kind  ReadKind
	State device.State
}

// Plain reports a read through general sampling or storage access rather
// than the on-tile input attachment path.
func (r Read) Plain() bool { return r.Kind != ReadInputAttachment }

// WriteKind distinguishes how a pass writes a resource.
type WriteKind uint8

// Write kinds.
const (
	WriteColor WriteKind = iota
	WriteDepth
	WriteStorageTexture
	WriteStorageBuffer
)

// Write is one resource declared (owned) or modified by a pass.
type Write struct {
	Name     string
	Kind     WriteKind
	State    device.State
	Modifies bool
}

// Attachment reports a color or depth attachment write.
func (w Write) Attachment() bool { return w.Kind == WriteColor || w.Kind == WriteDepth }

// Pass is one node of the graph.
type Pass struct {
	Name             string
	Type             PipelineType
	ColorOutputs     []Output
	DepthOutput      *Output
	TextureInputs    []string
	InputAttachments []string
	StorageTextures  []StorageTexture
	StorageBuffers   []StorageBuffer
}

func storageBegin(explicit device.State, a Access) device.State {
	if explicit != device.StateUndefined {
		return explicit
	}
	return a.State()
}

// BeginState returns the state the binding must be in before the pass.
func (s StorageTexture) BeginState() device.State { return storageBegin(s.Begin, s.Access) }

// EndState returns the state the binding is left in after the pass.
func (s StorageTexture) EndState() device.State { return storageBegin(s.End, s.Access) }

// BeginState returns the state the binding must be in before the pass.
func (s StorageBuffer) BeginState() device.State { return storageBegin(s.Begin, s.Access) }

// EndState returns the state the binding is left in after the pass.
func (s StorageBuffer) EndState() device.State { return storageBegin(s.End, s.Access) }

// Reads lists every resource the pass reads, including the read half of
// read-write storage bindings.
func (p *Pass) Reads() []Read {
	var reads []Read
	for _, n := range p.TextureInputs {
		reads = append(reads, Read{Name: n, Kind: ReadSampled, State: device.StateShaderRead})
	}
	for _, n := range p.InputAttachments {
		reads = append(reads, Read{Name: n, Kind: ReadInputAttachment, State: device.StateInputAttachment})
	}
	for _, s := range p.StorageTextures {
		if s.Access != AccessWrite {
			reads = append(reads, Read{Name: s.Name, Kind: ReadStorageTexture, State: s.BeginState()})
		}
	}
	for _, s := range p.StorageBuffers {
		if s.Access != AccessWrite {
			reads = append(reads, Read{Name: s.Name, Kind: ReadStorageBuffer, State: s.BeginState()})
		}
	}
	return reads
}

// Writes lists every resource the pass declares or modifies in place.
func (p *Pass) Writes() []Write {
	var writes []Write
	for _, o := range p.ColorOutputs {
		writes = append(writes, Write{Name: o.Name, Kind: WriteColor, State: device.StateColorAttachment})
	}
	if p.DepthOutput != nil {
		writes = append(writes, Write{Name: p.DepthOutput.Name, Kind: WriteDepth, State: device.StateDepthAttachment})
	}
	for _, s := range p.StorageTextures {
		if s.Access != AccessRead {
			writes = append(writes, Write{Name: s.Name, Kind: WriteStorageTexture, State: s.BeginState(), Modifies: s.Access == AccessReadWrite})
		}
	}
	for _, s := range p.StorageBuffers {
		if s.Access != AccessRead {
			writes = append(writes, Write{Name: s.Name, Kind: WriteStorageBuffer, State: s.BeginState(), Modifies: s.Access == AccessReadWrite})
		}
	}
	return writes
}

// Attachments returns the color outputs followed by the depth output.
func (p *Pass) Attachments() []Output {
	out := make([]Output, 0, len(p.ColorOutputs)+1)
	out = append(out, p.ColorOutputs...)
	if p.DepthOutput != nil {
		out = append(out, *p.DepthOutput)
	}
	return out
}

// GeneratesMips reports whether any declared texture requests a mip chain.
func (p *Pass) GeneratesMips() bool {
	for _, o := range p.Attachments() {
		if o.Attachment.GenerateMips {
			return true
		}
	}
	for _, s := range p.StorageTextures {
		if s.Access == AccessWrite && s.Attachment.GenerateMips {
			return true
		}
	}
	return false
}

// HasInputAttachment reports whether the pass reads name as an input attachment.
func (p *Pass) HasInputAttachment(name string) bool {
	for _, n := range p.InputAttachments {
		if n == name {
			return true
		}
	}
	return false
}
