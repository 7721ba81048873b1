// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package elgpu implements the frame rendering and synchronization core of
the Elements engine: swapchain acquisition and presentation, per-frame
command recording and submission, and the fence / semaphore protocol that
keeps CPU frame preparation from racing ahead of GPU execution.

The package is organized around a fixed ring of N frame slots
(FramesInFlight, default 2), each owning a command buffer, an
image-available semaphore, a render-done semaphore, and a CPU-waitable
fence.  The Renderer facade drives the ring once per logical tick:

	fc, err := rd.BeginFrame() // waits for the slot's fence, acquires an image
	// fill fc.Draws
	err = rd.SubmitFrame(fc) // records, submits, presents, advances the ring

All GPU interaction goes through the narrow Driver interfaces defined in
driver.go, so the protocol itself carries no Vulkan dependency: the vkgpu
subpackage provides the Vulkan driver, and simgpu provides a synthetic
driver with a simulated GPU timeline for tests and headless use.
*/
package elgpu
