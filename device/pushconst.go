// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// PushFloats encodes values as little-endian float32 and pushes them at
// offset.
func PushFloats(r CommandRecorder, offset uint32, values ...float32) error {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return r.PushConstants(offset, buf)
}

// PushMat4 pushes a column-major 4x4 matrix (64 bytes) at offset.
func PushMat4(r CommandRecorder, offset uint32, m mgl32.Mat4) error {
	return PushFloats(r, offset, m[:]...)
}

// PushVec4 pushes a 4-component vector (16 bytes) at offset.
func PushVec4(r CommandRecorder, offset uint32, v mgl32.Vec4) error {
	return PushFloats(r, offset, v[:]...)
}
