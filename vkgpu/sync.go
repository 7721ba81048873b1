// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"time"

	"github.com/elements-gfx/elgpu"
	vk "github.com/goki/vulkan"
)

// Fence wraps a vk.Fence as an elgpu.Fence.
type Fence struct {
	dev   vk.Device
	fence vk.Fence
}

func newFence(dev vk.Device, signaled bool) (*Fence, error) {
	var flags vk.FenceCreateFlags
	if signaled {
		flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	ret := vk.CreateFence(dev, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: flags,
	}, nil, &fence)
	if err := NewError(ret); err != nil {
		return nil, err
	}
	return &Fence{dev: dev, fence: fence}, nil
}

func (f *Fence) Wait(timeout time.Duration) error {
	ret := vk.WaitForFences(f.dev, 1, []vk.Fence{f.fence}, vk.True, uint64(timeout.Nanoseconds()))
	switch ret {
	case vk.Success:
		return nil
	case vk.Timeout:
		return elgpu.ErrTimedOut
	}
	return NewError(ret)
}

func (f *Fence) Reset() error {
	return NewError(vk.ResetFences(f.dev, 1, []vk.Fence{f.fence}))
}

func (f *Fence) Signaled() bool {
	return vk.GetFenceStatus(f.dev, f.fence) == vk.Success
}

func (f *Fence) Destroy() {
	if f.fence != vk.NullFence {
		vk.DestroyFence(f.dev, f.fence, nil)
		f.fence = vk.NullFence
	}
}

// Semaphore wraps a vk.Semaphore as an elgpu.Semaphore.
type Semaphore struct {
	dev vk.Device
	sem vk.Semaphore
}

func newSemaphore(dev vk.Device) (*Semaphore, error) {
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(dev, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	if err := NewError(ret); err != nil {
		return nil, err
	}
	return &Semaphore{dev: dev, sem: sem}, nil
}

func (s *Semaphore) Destroy() {
	if s.sem != vk.NullSemaphore {
		vk.DestroySemaphore(s.dev, s.sem, nil)
		s.sem = vk.NullSemaphore
	}
}
