// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"testing"
	"time"
)

func TestOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want options
	}{
		{
			name: "defaults",
			want: defaultOptions(),
		},
		{
			name: "frames in flight",
			opts: []Option{WithFramesInFlight(3)},
			want: options{framesInFlight: 3, fenceTimeout: time.Second, setupTimeout: 5 * time.Second},
		},
		{
			name: "frames in flight clamped high",
			opts: []Option{WithFramesInFlight(64)},
			want: options{framesInFlight: MaxFramesInFlight, fenceTimeout: time.Second, setupTimeout: 5 * time.Second},
		},
		{
			name: "frames in flight clamped low",
			opts: []Option{WithFramesInFlight(0)},
			want: options{framesInFlight: 1, fenceTimeout: time.Second, setupTimeout: 5 * time.Second},
		},
		{
			name: "timeouts and budget",
			opts: []Option{WithFenceTimeout(time.Millisecond), WithSetupTimeout(time.Minute), WithMemoryBudget(1 << 20)},
			want: options{framesInFlight: 2, fenceTimeout: time.Millisecond, setupTimeout: time.Minute, memoryBudget: 1 << 20},
		},
		{
			name: "non-positive timeouts ignored",
			opts: []Option{WithFenceTimeout(0), WithSetupTimeout(-time.Second)},
			want: defaultOptions(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultOptions()
			for _, opt := range tt.opts {
				opt(&o)
			}
			if o != tt.want {
				t.Errorf("options = %+v, want %+v", o, tt.want)
			}
		})
	}
}
