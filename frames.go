// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elgpu

import (
	"fmt"
	"log/slog"
	"time"
)

// FrameSlot holds the per-frame synchronization objects and command
// buffer for one position in the FrameRing.  Each slot owns exactly one
// fence, two semaphores, and one command buffer, created together and
// destroyed together.
type FrameSlot struct {

	// Index is this slot's position in the ring.
	Index int

	// InFlight is signaled by the GPU when this slot's submitted work
	// completes.  Created signaled so the first pass through the ring
	// does not block.
	InFlight Fence

	// ImageAvailable is signaled when the acquired swapchain image is
	// ready for color writes.
	ImageAvailable Semaphore

	// RenderDone is signaled when this slot's rendering completes,
	// gating presentation.
	RenderDone Semaphore

	// Cmd is the command buffer re-recorded each time the slot is used.
	Cmd CommandBuffer

	// pending is true from submit until the fence has been waited and
	// reset.  A slot that was begun but never submitted keeps its fence
	// untouched, so the next Begin must not wait on it.
	pending bool

	// pendingGen is the swapchain generation the pending work renders
	// into, used to decide whether a recreate must drain this slot.
	pendingGen uint64
}

// FrameRing is the fixed ring of in-flight frame slots.  Begin blocks on
// the slot fence to bound CPU run-ahead to the ring size; Advance moves
// to the next slot after a successful submit.
type FrameRing struct {

	// Slots are the frame slots, length fixed at creation.
	Slots []*FrameSlot

	// Cur is the index of the slot the next frame will use.
	Cur int

	dv Driver
}

// NewFrameRing allocates n slots with their synchronization objects and
// command buffers.  On any mid-construction failure, already-created
// slots are destroyed before returning.
func NewFrameRing(dv Driver, n int) (*FrameRing, error) {
	fr := &FrameRing{dv: dv}
	for i := 0; i < n; i++ {
		sl, err := newFrameSlot(dv, i)
		if err != nil {
			fr.Destroy()
			return nil, fmt.Errorf("elgpu: frame slot %d: %w", i, err)
		}
		fr.Slots = append(fr.Slots, sl)
	}
	return fr, nil
}

func newFrameSlot(dv Driver, idx int) (*FrameSlot, error) {
	fence, err := dv.NewFence(true)
	if err != nil {
		return nil, err
	}
	imgAvail, err := dv.NewSemaphore()
	if err != nil {
		fence.Destroy()
		return nil, err
	}
	rendDone, err := dv.NewSemaphore()
	if err != nil {
		imgAvail.Destroy()
		fence.Destroy()
		return nil, err
	}
	cmd, err := dv.NewCommandBuffer()
	if err != nil {
		rendDone.Destroy()
		imgAvail.Destroy()
		fence.Destroy()
		return nil, err
	}
	return &FrameSlot{Index: idx, InFlight: fence, ImageAvailable: imgAvail, RenderDone: rendDone, Cmd: cmd}, nil
}

// N returns the number of slots in the ring.
func (fr *FrameRing) N() int {
	return len(fr.Slots)
}

// Begin readies the current slot for recording: if work from this
// slot's previous use is still pending, it waits for the fence within
// timeout and resets it.  Fence expiry returns ErrTimedOut and leaves
// the slot pending, so the fence is never reset while the GPU may still
// signal it.
func (fr *FrameRing) Begin(timeout time.Duration) (*FrameSlot, error) {
	sl := fr.Slots[fr.Cur]
	if sl.pending {
		if err := sl.InFlight.Wait(timeout); err != nil {
			return nil, err
		}
		if err := sl.InFlight.Reset(); err != nil {
			return nil, err
		}
		sl.pending = false
		Logger().Debug("frame slot reclaimed", slog.Int("slot", sl.Index))
	} else if sl.InFlight.Signaled() {
		// First use of the slot: the fence is created signaled so this
		// path never blocks, but it must be unsignaled before submit.
		if err := sl.InFlight.Reset(); err != nil {
			return nil, err
		}
	}
	return sl, nil
}

// MarkSubmitted records that the current slot's work has been handed to
// the GPU, targeting the given swapchain generation.
func (fr *FrameRing) MarkSubmitted(sl *FrameSlot, gen uint64) {
	sl.pending = true
	sl.pendingGen = gen
}

// Advance moves the ring to the next slot.
func (fr *FrameRing) Advance() {
	fr.Cur = (fr.Cur + 1) % len(fr.Slots)
}

// Drain waits for every pending slot's fence and resets it, so that no
// submitted work remains in flight.  Used before swapchain recreation
// and shutdown.
func (fr *FrameRing) Drain(timeout time.Duration) error {
	for _, sl := range fr.Slots {
		if !sl.pending {
			continue
		}
		if err := sl.InFlight.Wait(timeout); err != nil {
			return fmt.Errorf("elgpu: drain slot %d: %w", sl.Index, err)
		}
		if err := sl.InFlight.Reset(); err != nil {
			return err
		}
		sl.pending = false
	}
	return nil
}

// PendingForGeneration reports whether any in-flight slot still
// references the given swapchain generation.
func (fr *FrameRing) PendingForGeneration(gen uint64) bool {
	for _, sl := range fr.Slots {
		if sl.pending && sl.pendingGen == gen {
			return true
		}
	}
	return false
}

// Destroy releases all slot resources.  Safe to call on a partially
// constructed ring and safe to call more than once.
func (fr *FrameRing) Destroy() {
	for _, sl := range fr.Slots {
		if sl.Cmd != nil {
			sl.Cmd.Destroy()
		}
		if sl.RenderDone != nil {
			sl.RenderDone.Destroy()
		}
		if sl.ImageAvailable != nil {
			sl.ImageAvailable.Destroy()
		}
		if sl.InFlight != nil {
			sl.InFlight.Destroy()
		}
	}
	fr.Slots = nil
}
