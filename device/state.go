// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import "fmt"

// State is the abstract access state of a resource between commands.
//
// Backends map a State to their native representation: an image layout
// with access mask and pipeline stage on explicit APIs, a usage transition
// on portable APIs.
type State uint8

// Resource states.
const (
	// StateUndefined means the contents are not preserved.
	StateUndefined State = iota

	// StateColorAttachment is written as a color attachment.
	StateColorAttachment

	// StateDepthAttachment is written as a depth/stencil attachment.
	StateDepthAttachment

	// StateShaderRead is sampled by a shader.
	StateShaderRead

	// StateInputAttachment is read as a subpass input attachment.
	StateInputAttachment

	// StateStorageRead is read as a storage resource.
	StateStorageRead

	// StateStorageWrite is written as a storage resource.
	StateStorageWrite

	// StateStorageReadWrite is read and written as a storage resource.
	StateStorageReadWrite

	// StateTransferSrc is the source of a copy or blit.
	StateTransferSrc

	// StateTransferDst is the destination of a copy or blit.
	StateTransferDst
)

var stateNames = [...]string{
	"undefined",
	"color-attachment",
	"depth-attachment",
	"shader-read",
	"input-attachment",
	"storage-read",
	"storage-write",
	"storage-read-write",
	"transfer-src",
	"transfer-dst",
}

// String returns the state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// ParseState is the inverse of [State.String].
func ParseState(s string) (State, bool) {
	for i, n := range stateNames {
		if n == s {
			return State(i), true
		}
	}
	return StateUndefined, false
}

// IsWrite reports whether the state allows writes.
func (s State) IsWrite() bool {
	switch s {
	case StateColorAttachment, StateDepthAttachment, StateStorageWrite,
		StateStorageReadWrite, StateTransferDst:
		return true
	}
	return false
}

// IsShaderReadable reports whether a shader may sample the resource in
// this state without a further transition.
func (s State) IsShaderReadable() bool {
	return s == StateShaderRead
}

// SubresourceRange selects mips and layers of a texture. A zero count means
// "all remaining".
type SubresourceRange struct {
	BaseMip    uint32
	MipCount   uint32
	BaseLayer  uint32
	LayerCount uint32
}

// FullRange covers every mip and layer.
var FullRange = SubresourceRange{}

// TextureBarrier transitions a texture subresource range between states.
type TextureBarrier struct {
	Texture TextureID
	Format  Format
	Old     State
	New     State
	Range   SubresourceRange
}

// String formats the barrier for logs and dumps.
func (b TextureBarrier) String() string {
	return fmt.Sprintf("texture#%d %s -> %s", b.Texture, b.Old, b.New)
}

// BufferBarrier transitions a buffer between states.
type BufferBarrier struct {
	Buffer BufferID
	Old    State
	New    State
}

// String formats the barrier for logs and dumps.
func (b BufferBarrier) String() string {
	return fmt.Sprintf("buffer#%d %s -> %s", b.Buffer, b.Old, b.New)
}

// Barriers groups texture and buffer transitions issued together.
type Barriers struct {
	Textures []TextureBarrier
	Buffers  []BufferBarrier
}

// Empty reports whether there is nothing to transition.
func (b Barriers) Empty() bool { return len(b.Textures) == 0 && len(b.Buffers) == 0 }

// Len returns the total number of transitions.
func (b Barriers) Len() int { return len(b.Textures) + len(b.Buffers) }
