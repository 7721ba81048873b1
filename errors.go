// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elgpu

import (
	"errors"
	"fmt"
)

// Recoverable surface conditions.  These are absorbed by the Renderer
// (retried once on acquire, deferred to the next frame boundary on
// present) and at most cost one visibly skipped frame.
var (
	// ErrOutOfDate indicates the swapchain no longer matches the surface
	// (e.g. the window was resized) and must be recreated before reuse.
	ErrOutOfDate = errors.New("swapchain out of date")

	// ErrSuboptimal indicates the swapchain still works but no longer
	// matches the surface optimally.  A driver Acquire may return a valid
	// image index together with ErrSuboptimal.
	ErrSuboptimal = errors.New("swapchain suboptimal")

	// ErrMinimized indicates the surface currently has zero extent.
	// Frame production is skipped until a nonzero extent arrives.
	ErrMinimized = errors.New("surface has zero extent")
)

// ErrTimedOut is returned by Fence.Wait and Swapchain.Acquire when the
// bounded wait elapses.  A fence timeout during the frame loop is treated
// as device loss and wrapped in a DeviceError.
var ErrTimedOut = errors.New("wait timed out")

// Programming errors: misuse of the frame protocol.  These fail fast and
// are never retried.
var (
	// ErrUnknownPipeline indicates a draw referenced a pipeline handle
	// that was never registered.
	ErrUnknownPipeline = errors.New("pipeline not registered")

	// ErrFrameInProgress indicates BeginFrame was called again before the
	// previous frame was submitted.
	ErrFrameInProgress = errors.New("frame already begun")

	// ErrFrameNotBegun indicates SubmitFrame was called without a
	// matching BeginFrame.
	ErrFrameNotBegun = errors.New("no frame begun")

	// ErrStaleAcquire indicates a FrameContext referenced a swapchain
	// generation that has since been recreated.
	ErrStaleAcquire = errors.New("acquired image generation is stale")

	// ErrRingBusy indicates swapchain recreation was attempted while
	// frame slots still held references to the prior generation.
	ErrRingBusy = errors.New("frame slots still reference prior swapchain generation")
)

// ErrSurfaceLost indicates the OS surface backing the swapchain is gone.
// The renderer halts frame production; the application must tear down and
// reinitialize the whole context.
var ErrSurfaceLost = errors.New("surface lost")

// ErrShutdown is returned from frame operations after Shutdown.
var ErrShutdown = errors.New("renderer has been shut down")

// DeviceError is a fatal device-level failure: queue submission rejection,
// device loss, or a fence wait that timed out.  It is never absorbed --
// the application must terminate or reinitialize the entire context.
type DeviceError struct {
	Op  string // operation that failed, e.g. "submit", "fence wait"
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error: %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// RecordError is returned by the command recorder when a draw list cannot
// be recorded, e.g. it references an unregistered pipeline.
type RecordError struct {
	Pipeline string // name of the pipeline involved, if any
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record error: pipeline %q: %v", e.Pipeline, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// IsFatal reports whether err is a fatal device-level failure after which
// frame production cannot continue.
func IsFatal(err error) bool {
	var de *DeviceError
	return errors.As(err, &de) || errors.Is(err, ErrSurfaceLost)
}

// IsRecoverable reports whether err is a recoverable surface condition
// that the renderer handles via swapchain recreation.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrOutOfDate) || errors.Is(err, ErrSuboptimal) ||
		errors.Is(err, ErrMinimized)
}
