// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"errors"
	"testing"
	"time"

	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/gogpu/rendergraph/device"
	"github.com/gogpu/rendergraph/internal/handle"
)

// fenceDriver answers fence calls from a flag and counts submissions.
// Every other driver method is left nil.
type fenceDriver struct {
	core1_0.CoreDeviceDriver
	signaled bool
	waits    []time.Duration
	resets   int
	submits  int
}

func (f *fenceDriver) WaitForFences(_ bool, timeout time.Duration, _ ...core1_0.Fence) (common.VkResult, error) {
	f.waits = append(f.waits, timeout)
	if f.signaled {
		return core1_0.VKSuccess, nil
	}
	return core1_0.VKTimeout, nil
}

func (f *fenceDriver) ResetFences(...core1_0.Fence) (common.VkResult, error) {
	f.resets++
	return core1_0.VKSuccess, nil
}

func (f *fenceDriver) QueueSubmit(core1_0.Queue, *core1_0.Fence, ...core1_0.SubmitInfo) (common.VkResult, error) {
	f.submits++
	return core1_0.VKSuccess, nil
}

func newFenceDevice(drv *fenceDriver) (*Device, device.FenceID) {
	d := &Device{vk: drv}
	d.cmdbufs = handle.NewTable[*commandBuffer](&d.ids)
	d.semaphores = handle.NewTable[core1_0.Semaphore](&d.ids)
	d.fences = handle.NewTable[*fence](&d.ids)
	return d, device.FenceID(d.fences.Add(&fence{}))
}

func TestSubmitPendingFence(t *testing.T) {
	drv := &fenceDriver{}
	d, id := newFenceDevice(drv)
	info := &device.SubmitInfo{Fence: id}

	if err := d.Submit(device.QueueGraphics, info); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	err := d.Submit(device.QueueGraphics, info)
	if !errors.Is(err, device.ErrFenceBusy) {
		t.Fatalf("Submit() on a pending fence = %v, want ErrFenceBusy", err)
	}
	if drv.submits != 1 || drv.resets != 1 {
		t.Errorf("submits/resets = %d/%d, want 1/1", drv.submits, drv.resets)
	}
	for _, w := range drv.waits {
		if w != 0 {
			t.Errorf("Submit waited %v on the fence, want a poll", w)
		}
	}

	drv.signaled = true
	if err := d.Submit(device.QueueGraphics, info); err != nil {
		t.Fatalf("Submit() after completion error = %v", err)
	}
	if drv.submits != 2 {
		t.Errorf("submits = %d, want 2", drv.submits)
	}
}

func TestSubmitAfterWaitFence(t *testing.T) {
	drv := &fenceDriver{signaled: true}
	d, id := newFenceDevice(drv)
	info := &device.SubmitInfo{Fence: id}

	if err := d.Submit(device.QueueGraphics, info); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := d.WaitFence(id, time.Second); err != nil {
		t.Fatalf("WaitFence() error = %v", err)
	}
	if err := d.Submit(device.QueueGraphics, info); err != nil {
		t.Fatalf("Submit() after WaitFence error = %v", err)
	}
	if len(drv.waits) != 1 {
		t.Errorf("fence waits = %d, want 1", len(drv.waits))
	}
}
