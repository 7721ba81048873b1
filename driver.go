// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elgpu

import (
	"image"
	"time"

	"github.com/goki/mat32"
)

// Fence is a CPU-waitable completion signal: the GPU signals it when
// submitted work finishes, and the CPU blocks on Wait.  Fences and
// Semaphores are distinct types so the two kinds of synchronization
// cannot be confused at the interface level.
type Fence interface {

	// Wait blocks until the fence is signaled or the timeout elapses,
	// returning ErrTimedOut in the latter case.
	Wait(timeout time.Duration) error

	// Reset returns the fence to the unsignaled state.  Must only be
	// called once the fence has been observed signaled.
	Reset() error

	// Signaled reports whether the fence is currently signaled,
	// without blocking.
	Signaled() bool

	Destroy()
}

// Semaphore is a GPU-only ordering signal used to sequence work across
// queue submissions.  The CPU can create and destroy semaphores but
// never waits on them.
type Semaphore interface {
	Destroy()
}

// CommandBuffer records GPU commands for one frame.  Begin implicitly
// resets any previously recorded contents; a buffer must only be
// re-recorded after the fence of its owning frame slot has been observed
// signaled.
type CommandBuffer interface {
	Begin() error

	// BeginPass starts rendering into the given swapchain image,
	// clearing it to the given color.  The swapchain must belong to the
	// same driver that created this buffer.
	BeginPass(sc Swapchain, imageIndex int, clear mat32.Vec4) error

	// BindPipeline binds the pipeline registered under the given handle.
	BindPipeline(h PipelineHandle) error

	// Push records push-constant data for the currently bound pipeline.
	Push(data []byte)

	Draw(vtxCount, instCount, firstVtx, firstInst int)

	EndPass()

	End() error

	Destroy()
}

// Swapchain is the driver-owned presentable image set.  The generation
// bookkeeping that makes recreation safe lives above this interface, in
// SwapchainManager.
type Swapchain interface {

	// Acquire blocks up to timeout for the next presentable image and
	// returns its index.  The given semaphore is signaled on the GPU
	// timeline when the image is actually ready for writes.  Returns
	// ErrOutOfDate when the surface has been invalidated, ErrTimedOut on
	// timeout, and may return a valid index together with ErrSuboptimal.
	Acquire(timeout time.Duration, imageAvailable Semaphore) (int, error)

	// ImageCount returns the number of images in the swapchain.
	ImageCount() int

	// Size returns the current pixel extent.
	Size() image.Point

	// Recreate replaces the image set for the given extent.  The caller
	// must have confirmed that no submitted work still references the
	// old images.
	Recreate(size image.Point) error

	Destroy()
}

// Driver is the full set of GPU capabilities the frame core requires.
// vkgpu implements it on Vulkan; simgpu implements it on a simulated
// GPU timeline.
type Driver interface {
	NewFence(signaled bool) (Fence, error)
	NewSemaphore() (Semaphore, error)
	NewCommandBuffer() (CommandBuffer, error)

	// NewSwapchain creates the presentable image set for the driver's
	// surface.  Fails if size has a zero dimension or no supported
	// format / present-mode intersection exists.
	NewSwapchain(size image.Point) (Swapchain, error)

	// RegisterPipeline finalizes a pipeline from the given spec and
	// returns an opaque handle for use in draw lists.
	RegisterPipeline(ps *PipelineSpec) (PipelineHandle, error)

	// Submit enqueues the recorded commands on the graphics queue,
	// waiting GPU-side on imageAvailable before any color attachment
	// write, signaling renderDone on completion, and signaling done so
	// the CPU can later observe completion.  A submission rejection is
	// fatal.
	Submit(cb CommandBuffer, imageAvailable, renderDone Semaphore, done Fence) error

	// Present enqueues a present request for the given image, gated
	// GPU-side on renderDone.  Returns ErrOutOfDate / ErrSuboptimal as
	// recoverable conditions.
	Present(sc Swapchain, imageIndex int, renderDone Semaphore) error

	// WaitIdle blocks until the GPU has drained all submitted work.
	WaitIdle() error

	Destroy()
}
