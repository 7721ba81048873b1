// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package vkgpu implements elgpu.Driver on Vulkan, via the goki/vulkan
bindings.  The window system provides the vk.Surface (e.g. glfw's
CreateWindowSurface); everything else, from device selection through
queue submission, lives here.

Call Init once on the main thread before creating a GPU, and Terminate
last when shutting down.
*/
package vkgpu

import (
	"image"
	"sync"

	"github.com/elements-gfx/elgpu"
	vk "github.com/goki/vulkan"
)

// Driver is the Vulkan implementation of elgpu.Driver, bound to one
// window surface.
type Driver struct {

	// VSync selects FIFO presentation; when false, mailbox is used if
	// the device offers it.  Fixed at creation.
	VSync bool

	// Device is the logical device with its combined graphics and
	// present queue.
	Device Device

	// CmdPool allocates the per-frame command buffers.
	CmdPool CmdPool

	gp      *GPU
	surface vk.Surface

	// rp is created lazily by the first swapchain, once the surface
	// format is known.
	rp *RenderPass

	// qmu serializes queue submission and presentation; vk.Queue is not
	// safe for concurrent access.
	qmu sync.Mutex

	pmu   sync.Mutex
	pipes []*Pipeline
}

// NewDriver creates the logical device and command pool for the given
// surface.  The GPU must already be configured.
func NewDriver(gp *GPU, surface vk.Surface, vsync bool) (*Driver, error) {
	dr := &Driver{VSync: vsync, gp: gp, surface: surface}
	if err := dr.Device.Init(gp, surface); err != nil {
		return nil, err
	}
	if err := dr.CmdPool.Init(&dr.Device, vk.CommandPoolCreateResetCommandBufferBit); err != nil {
		dr.Device.Destroy()
		return nil, err
	}
	return dr, nil
}

// GPU returns the underlying instance and physical device.
func (dr *Driver) GPU() *GPU {
	return dr.gp
}

func (dr *Driver) NewFence(signaled bool) (elgpu.Fence, error) {
	return newFence(dr.Device.Device, signaled)
}

func (dr *Driver) NewSemaphore() (elgpu.Semaphore, error) {
	return newSemaphore(dr.Device.Device)
}

func (dr *Driver) NewCommandBuffer() (elgpu.CommandBuffer, error) {
	buff, err := dr.CmdPool.NewBuffer(&dr.Device)
	if err != nil {
		return nil, err
	}
	return &CmdBuffer{dr: dr, Buff: buff}, nil
}

func (dr *Driver) NewSwapchain(size image.Point) (elgpu.Swapchain, error) {
	sc := &Swapchain{dr: dr}
	if err := sc.config(size); err != nil {
		sc.Destroy()
		return nil, err
	}
	return sc, nil
}

func (dr *Driver) RegisterPipeline(ps *elgpu.PipelineSpec) (elgpu.PipelineHandle, error) {
	pl, err := newPipeline(dr, ps)
	if err != nil {
		return elgpu.NilPipeline, err
	}
	dr.pmu.Lock()
	defer dr.pmu.Unlock()
	dr.pipes = append(dr.pipes, pl)
	return elgpu.PipelineHandle(len(dr.pipes)), nil
}

func (dr *Driver) pipeline(h elgpu.PipelineHandle) *Pipeline {
	dr.pmu.Lock()
	defer dr.pmu.Unlock()
	if h < 1 || int(h) > len(dr.pipes) {
		return nil
	}
	return dr.pipes[h-1]
}

// Submit enqueues the recorded commands, waiting on imageAvailable at
// the color attachment output stage, signaling renderDone and the done
// fence on completion.
func (dr *Driver) Submit(cb elgpu.CommandBuffer, imageAvailable, renderDone elgpu.Semaphore, done elgpu.Fence) error {
	vcb := cb.(*CmdBuffer)
	avail := imageAvailable.(*Semaphore)
	rdone := renderDone.(*Semaphore)
	fence := done.(*Fence)

	dr.qmu.Lock()
	defer dr.qmu.Unlock()
	ret := vk.QueueSubmit(dr.Device.Queue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{avail.sem},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{vcb.Buff},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{rdone.sem},
	}}, fence.fence)
	return NewError(ret)
}

// Present queues the image for presentation, gated on renderDone.
func (dr *Driver) Present(sc elgpu.Swapchain, imageIndex int, renderDone elgpu.Semaphore) error {
	vsc := sc.(*Swapchain)
	rdone := renderDone.(*Semaphore)

	dr.qmu.Lock()
	defer dr.qmu.Unlock()
	ret := vk.QueuePresent(dr.Device.Queue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{rdone.sem},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vsc.Swapchain},
		PImageIndices:      []uint32{uint32(imageIndex)},
	})
	switch ret {
	case vk.Success:
		return nil
	case vk.Suboptimal:
		return elgpu.ErrSuboptimal
	case vk.ErrorOutOfDate:
		return elgpu.ErrOutOfDate
	case vk.ErrorSurfaceLost:
		return elgpu.ErrSurfaceLost
	}
	return NewError(ret)
}

func (dr *Driver) WaitIdle() error {
	return NewError(vk.DeviceWaitIdle(dr.Device.Device))
}

// Destroy releases the driver's resources in reverse creation order:
// pipelines, render pass, command pool, device, then the surface.
func (dr *Driver) Destroy() {
	vk.DeviceWaitIdle(dr.Device.Device)
	dr.pmu.Lock()
	for _, pl := range dr.pipes {
		pl.Destroy()
	}
	dr.pipes = nil
	dr.pmu.Unlock()
	if dr.rp != nil {
		dr.rp.Destroy()
		dr.rp = nil
	}
	dr.CmdPool.Destroy(dr.Device.Device)
	dr.Device.Destroy()
	if dr.surface != vk.NullSurface {
		vk.DestroySurface(dr.gp.Instance, dr.surface, nil)
		dr.surface = vk.NullSurface
	}
}
