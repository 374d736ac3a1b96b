// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// pushRecorder keeps the last push constant block and enforces the limit.
type pushRecorder struct {
	CommandRecorder
	offset uint32
	data   []byte
}

func (r *pushRecorder) PushConstants(offset uint32, data []byte) error {
	if err := CheckPushConstants(offset, data, 0); err != nil {
		return err
	}
	r.offset, r.data = offset, data
	return nil
}

func TestPushMat4(t *testing.T) {
	r := &pushRecorder{}
	m := mgl32.Translate3D(1, 2, 3)
	if err := PushMat4(r, 64, m); err != nil {
		t.Fatalf("PushMat4() error = %v", err)
	}
	if r.offset != 64 || len(r.data) != 64 {
		t.Fatalf("pushed %d bytes at %d, want 64 at 64", len(r.data), r.offset)
	}
	// Column-major: the translation is in elements 12..14.
	for i, want := range []float32{1, 2, 3} {
		got := math.Float32frombits(binary.LittleEndian.Uint32(r.data[(12+i)*4:]))
		if got != want {
			t.Errorf("element %d = %v, want %v", 12+i, got, want)
		}
	}
}

func TestPushVec4(t *testing.T) {
	r := &pushRecorder{}
	if err := PushVec4(r, 0, mgl32.Vec4{0.5, -1, 2, 4}); err != nil {
		t.Fatalf("PushVec4() error = %v", err)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(r.data[4:])); got != -1 {
		t.Errorf("y = %v, want -1", got)
	}
}

func TestPushOverLimit(t *testing.T) {
	r := &pushRecorder{}
	err := PushMat4(r, 96, mgl32.Ident4())
	if !errors.Is(err, ErrPushConstantsTooLarge) {
		t.Errorf("PushMat4 at 96 = %v, want ErrPushConstantsTooLarge", err)
	}
}
