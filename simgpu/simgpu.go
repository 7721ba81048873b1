// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package simgpu implements elgpu.Driver on a simulated GPU timeline, for
testing frame synchronization without a device or a window system.

Submissions "execute" on background goroutines after a configurable
Latency, signaling their fences the way a real queue would.  Acquire and
Present failures can be injected per call ordinal, and the driver
records counters (acquires, submits, presents, peak frames in flight)
that tests assert against.
*/
package simgpu

import (
	"errors"
	"image"
	"sync"
	"time"

	"github.com/elements-gfx/elgpu"
)

// PresentRecord is one successful present: which image of which
// swapchain incarnation was shown.
type PresentRecord struct {
	Image int

	// Chain is the ordinal of the swapchain incarnation the image
	// belonged to, starting at 1 and bumped by Recreate.
	Chain int
}

// Driver is the simulated GPU.  The exported fields configure behavior
// and must be set before first use; everything else is internal state
// guarded by mu.
type Driver struct {

	// Latency is the simulated execution time of one submission.  Zero
	// means submissions complete almost immediately (still
	// asynchronously).
	Latency time.Duration

	// FailAcquire injects an error at the nth Acquire call, 1-based.
	// An ErrSuboptimal injection still yields a usable image index.
	FailAcquire map[int]error

	// FailPresent injects an error at the nth Present call, 1-based.
	FailPresent map[int]error

	// ImagesPerChain is the image count of created swapchains,
	// default 3.
	ImagesPerChain int

	mu        sync.Mutex
	wg        sync.WaitGroup
	acquires  int
	submits   int
	presents  []PresentRecord
	presentN  int
	inFlight  int
	maxFlight int
	syncViol  int
	pipes     []elgpu.PipelineSpec
	chains    int
	destroyed bool
}

// New returns a simulated driver with default settings.
func New() *Driver {
	return &Driver{ImagesPerChain: 3}
}

func (dv *Driver) NewFence(signaled bool) (elgpu.Fence, error) {
	return newFence(signaled), nil
}

func (dv *Driver) NewSemaphore() (elgpu.Semaphore, error) {
	return newSemaphore(), nil
}

func (dv *Driver) NewCommandBuffer() (elgpu.CommandBuffer, error) {
	return &CmdBuffer{dv: dv}, nil
}

func (dv *Driver) NewSwapchain(size image.Point) (elgpu.Swapchain, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, elgpu.ErrMinimized
	}
	dv.mu.Lock()
	defer dv.mu.Unlock()
	dv.chains++
	n := dv.ImagesPerChain
	if n <= 0 {
		n = 3
	}
	return &Swapchain{dv: dv, size: size, n: n, chain: dv.chains}, nil
}

func (dv *Driver) RegisterPipeline(ps *elgpu.PipelineSpec) (elgpu.PipelineHandle, error) {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	dv.pipes = append(dv.pipes, *ps)
	return elgpu.PipelineHandle(len(dv.pipes)), nil
}

func (dv *Driver) pipelineValid(h elgpu.PipelineHandle) bool {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	return h >= 1 && int(h) <= len(dv.pipes)
}

// Submit starts simulated execution of the recorded commands.  The
// fence and renderDone are signaled once Latency has elapsed; a
// submission whose imageAvailable semaphore was never signaled by an
// acquire is counted as a synchronization violation.
func (dv *Driver) Submit(cb elgpu.CommandBuffer, imageAvailable, renderDone elgpu.Semaphore, done elgpu.Fence) error {
	scb, ok := cb.(*CmdBuffer)
	if !ok || !scb.ended {
		return errors.New("simgpu: submit of an unrecorded command buffer")
	}
	avail := imageAvailable.(*Semaphore)
	rdone := renderDone.(*Semaphore)
	fence := done.(*Fence)
	if fence.Signaled() {
		return errors.New("simgpu: submit with an already signaled fence")
	}

	dv.mu.Lock()
	dv.submits++
	dv.inFlight++
	if dv.inFlight > dv.maxFlight {
		dv.maxFlight = dv.inFlight
	}
	dv.mu.Unlock()

	dv.wg.Add(1)
	go func() {
		if dv.Latency > 0 {
			time.Sleep(dv.Latency)
		}
		if !avail.consume() {
			dv.mu.Lock()
			dv.syncViol++
			dv.mu.Unlock()
		}
		rdone.signal()
		fence.signal()
		dv.mu.Lock()
		dv.inFlight--
		dv.mu.Unlock()
		dv.wg.Done()
	}()
	return nil
}

func (dv *Driver) Present(sc elgpu.Swapchain, imageIndex int, renderDone elgpu.Semaphore) error {
	ssc := sc.(*Swapchain)
	dv.mu.Lock()
	defer dv.mu.Unlock()
	dv.presentN++
	if err, has := dv.FailPresent[dv.presentN]; has {
		if errors.Is(err, elgpu.ErrOutOfDate) {
			ssc.retired = true
		}
		if errors.Is(err, elgpu.ErrSuboptimal) {
			// Suboptimal presents still show the image.
			dv.presents = append(dv.presents, PresentRecord{Image: imageIndex, Chain: ssc.chain})
		}
		return err
	}
	if ssc.retired {
		return elgpu.ErrOutOfDate
	}
	dv.presents = append(dv.presents, PresentRecord{Image: imageIndex, Chain: ssc.chain})
	return nil
}

// WaitIdle blocks until all simulated submissions have completed.
func (dv *Driver) WaitIdle() error {
	dv.wg.Wait()
	return nil
}

func (dv *Driver) Destroy() {
	dv.wg.Wait()
	dv.mu.Lock()
	dv.destroyed = true
	dv.mu.Unlock()
}

// Acquires returns the total number of Acquire calls.
func (dv *Driver) Acquires() int {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	return dv.acquires
}

// Submits returns the total number of Submit calls.
func (dv *Driver) Submits() int {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	return dv.submits
}

// Presents returns the successful presents in queue order.
func (dv *Driver) Presents() []PresentRecord {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	out := make([]PresentRecord, len(dv.presents))
	copy(out, dv.presents)
	return out
}

// MaxInFlight returns the peak number of submissions that were
// simultaneously unfinished, the measure of CPU run-ahead.
func (dv *Driver) MaxInFlight() int {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	return dv.maxFlight
}

// SyncViolations returns the number of submissions that executed
// without their image-available semaphore having been signaled.
func (dv *Driver) SyncViolations() int {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	return dv.syncViol
}

// Swapchain is the simulated presentable image set, handing out image
// indices round-robin.
type Swapchain struct {
	dv    *Driver
	size  image.Point
	n     int
	next  int
	chain int

	// retired marks the incarnation invalidated: every Acquire and
	// Present returns ErrOutOfDate until Recreate.
	retired bool
}

func (sc *Swapchain) Acquire(timeout time.Duration, imageAvailable elgpu.Semaphore) (int, error) {
	sem := imageAvailable.(*Semaphore)
	sc.dv.mu.Lock()
	defer sc.dv.mu.Unlock()
	sc.dv.acquires++
	if err, has := sc.dv.FailAcquire[sc.dv.acquires]; has {
		if errors.Is(err, elgpu.ErrOutOfDate) {
			sc.retired = true
		}
		if errors.Is(err, elgpu.ErrSuboptimal) {
			idx := sc.next
			sc.next = (sc.next + 1) % sc.n
			sem.signal()
			return idx, err
		}
		return 0, err
	}
	if sc.retired {
		return 0, elgpu.ErrOutOfDate
	}
	idx := sc.next
	sc.next = (sc.next + 1) % sc.n
	sem.signal()
	return idx, nil
}

func (sc *Swapchain) ImageCount() int {
	return sc.n
}

func (sc *Swapchain) Size() image.Point {
	return sc.size
}

func (sc *Swapchain) Recreate(size image.Point) error {
	if size.X <= 0 || size.Y <= 0 {
		return elgpu.ErrMinimized
	}
	sc.dv.mu.Lock()
	defer sc.dv.mu.Unlock()
	sc.dv.chains++
	sc.chain = sc.dv.chains
	sc.size = size
	sc.next = 0
	sc.retired = false
	return nil
}

// Chain returns the current incarnation ordinal, for tests counting
// recreations.
func (sc *Swapchain) Chain() int {
	sc.dv.mu.Lock()
	defer sc.dv.mu.Unlock()
	return sc.chain
}

func (sc *Swapchain) Destroy() {}
