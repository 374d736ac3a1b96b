// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"errors"
	"testing"
)

const doubleWGSL = `
@group(0) @binding(0) var<storage, read_write> data: array<u32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    data[id.x] = data[id.x] * 2u;
}
`

func TestCompile(t *testing.T) {
	words, err := Compile(doubleWGSL)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(words) < 5 || words[0] != Magic {
		t.Errorf("Compile() = %d words starting %#x, want a SPIR-V header", len(words), words[0])
	}
}

func TestCompileError(t *testing.T) {
	if _, err := Compile("fn main( {"); err == nil {
		t.Error("Compile() accepted malformed WGSL")
	}
}

func TestWords(t *testing.T) {
	tests := []struct {
		name    string
		in      []byte
		want    []uint32
		wantErr bool
	}{
		{name: "header", in: []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}, want: []uint32{Magic, 0x00010000}},
		{name: "truncated", in: []byte{0x03, 0x02, 0x23}, wantErr: true},
		{name: "bad magic", in: []byte{1, 2, 3, 4}, wantErr: true},
		{name: "empty", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Words(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSPIRV) {
					t.Errorf("Words() error = %v, want ErrInvalidSPIRV", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Words() error = %v", err)
			}
			if len(got) != len(tt.want) || got[0] != tt.want[0] || got[1] != tt.want[1] {
				t.Errorf("Words() = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestCache(t *testing.T) {
	c := NewCache()
	a, err := c.Compile(doubleWGSL)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	b, _ := c.Compile(doubleWGSL)
	if &a[0] != &b[0] {
		t.Error("second Compile() recompiled the module")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}
