// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elgpu

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"goki.dev/ordmap"
)

// FrameContext is the handle for one frame between BeginFrame and
// SubmitFrame.  The caller fills Draws and hands the context back to
// SubmitFrame; it must not be retained afterwards.
type FrameContext struct {

	// Slot is the frame ring slot this frame records into.
	Slot *FrameSlot

	// Image is the acquired swapchain image, stamped with the swapchain
	// generation it was issued under.
	Image AcquiredImage

	// Draws is the draw list for this frame.
	Draws DrawList

	begun time.Time
}

// Stats accumulates frame-loop counters, readable at any time between
// frames.
type Stats struct {

	// Frames is the number of frames successfully submitted and
	// presented.
	Frames uint64

	// Skipped counts frames abandoned at BeginFrame due to a minimized
	// or out-of-date surface.
	Skipped uint64

	// Recreations counts swapchain recreations.
	Recreations uint64

	// LastFrame is the CPU-side duration of the most recent frame, from
	// BeginFrame to the end of SubmitFrame.
	LastFrame time.Duration

	// AvgFrame is an exponential moving average of LastFrame.
	AvgFrame time.Duration
}

// FPS returns the frame rate implied by AvgFrame, 0 before any frame
// has completed.
func (st *Stats) FPS() float64 {
	if st.AvgFrame <= 0 {
		return 0
	}
	return float64(time.Second) / float64(st.AvgFrame)
}

// Renderer is the top-level frame-production facade.  It owns the
// driver, the frame ring, the swapchain manager, and the pipeline
// registry, and exposes the per-frame protocol:
//
//	fc, err := rnd.BeginFrame()
//	// fill fc.Draws
//	err = rnd.SubmitFrame(fc)
//
// Renderer is not safe for concurrent use: all frame methods must be
// called from a single goroutine, conventionally the OS main thread.
type Renderer struct {

	// Opts is the active configuration, clamped from what was passed to
	// NewRenderer.
	Opts Options

	dv   Driver
	ring *FrameRing
	swap *SwapchainManager
	rec  *CommandRecorder

	// pipes maps registered pipeline names to driver handles, in
	// registration order.
	pipes ordmap.Map[string, PipelineHandle]

	inFrame  bool
	cur      *FrameContext
	shutdown bool
	lost     bool

	// needsRecreate defers swapchain recreation to the next BeginFrame,
	// where it is safe to drain the ring first.
	needsRecreate bool

	// pendingSize is the surface extent to recreate at.  A zero
	// dimension means the surface is minimized and frames are skipped.
	pendingSize image.Point

	stats Stats
}

// NewRenderer builds a renderer on the given driver: the swapchain at
// opts.Size, then the frame ring of opts.FramesInFlight slots.  On
// failure everything already created is destroyed.
func NewRenderer(dv Driver, opts *Options) (*Renderer, error) {
	co := opts.clamped()
	swap, err := NewSwapchainManager(dv, co.Size)
	if err != nil {
		return nil, fmt.Errorf("elgpu: swapchain: %w", err)
	}
	ring, err := NewFrameRing(dv, co.FramesInFlight)
	if err != nil {
		swap.Destroy()
		return nil, err
	}
	rnd := &Renderer{Opts: co, dv: dv, ring: ring, swap: swap, pendingSize: co.Size}
	rnd.rec = NewCommandRecorder(co.ClearColor, rnd.pipelineByName)
	Logger().Info("renderer ready",
		slog.Int("framesInFlight", co.FramesInFlight),
		slog.Bool("vsync", co.VSync))
	return rnd, nil
}

// RegisterPipeline registers a pipeline under ps.Name, before or between
// frames but never inside one.  Re-registering an existing name is an
// error.
func (rnd *Renderer) RegisterPipeline(ps *PipelineSpec) error {
	if rnd.shutdown {
		return ErrShutdown
	}
	if rnd.inFrame {
		return ErrFrameInProgress
	}
	if ps.Name == "" {
		return errors.New("elgpu: pipeline name must be non-empty")
	}
	if _, has := rnd.pipes.ValByKeyTry(ps.Name); has {
		return fmt.Errorf("elgpu: pipeline %q already registered", ps.Name)
	}
	if ps.PushBytes > MaxPushBytes {
		return fmt.Errorf("elgpu: pipeline %q push block %d exceeds %d bytes", ps.Name, ps.PushBytes, MaxPushBytes)
	}
	h, err := rnd.dv.RegisterPipeline(ps)
	if err != nil {
		return fmt.Errorf("elgpu: pipeline %q: %w", ps.Name, err)
	}
	rnd.pipes.Add(ps.Name, h)
	Logger().Info("pipeline registered", slog.String("name", ps.Name))
	return nil
}

// PipelineNames returns the registered pipeline names in registration
// order.
func (rnd *Renderer) PipelineNames() []string {
	names := make([]string, 0, rnd.pipes.Len())
	for _, kv := range rnd.pipes.Order {
		names = append(names, kv.Key)
	}
	return names
}

func (rnd *Renderer) pipelineByName(name string) (PipelineHandle, bool) {
	return rnd.pipes.ValByKeyTry(name)
}

// Stats returns a snapshot of the frame-loop counters.
func (rnd *Renderer) Stats() Stats {
	return rnd.stats
}

// Size returns the current swapchain extent.
func (rnd *Renderer) Size() image.Point {
	return rnd.swap.Size()
}

// BeginFrame starts a new frame: it applies any deferred swapchain
// recreation, waits for the frame slot's fence so at most
// FramesInFlight frames are ever in flight, and acquires a swapchain
// image.
//
// Recoverable outcomes return (nil, err) with err satisfying
// IsRecoverable: the caller skips rendering this frame and calls
// BeginFrame again next iteration.  Fatal errors satisfy IsFatal and
// end frame production.
func (rnd *Renderer) BeginFrame() (*FrameContext, error) {
	if rnd.shutdown {
		return nil, ErrShutdown
	}
	if rnd.lost {
		return nil, ErrSurfaceLost
	}
	if rnd.inFrame {
		return nil, ErrFrameInProgress
	}
	if rnd.pendingSize.X <= 0 || rnd.pendingSize.Y <= 0 {
		rnd.stats.Skipped++
		return nil, ErrMinimized
	}
	if rnd.needsRecreate {
		if err := rnd.recreateSwapchain(); err != nil {
			return nil, err
		}
	}

	begun := time.Now()
	sl, err := rnd.ring.Begin(rnd.Opts.FenceTimeout)
	if err != nil {
		if errors.Is(err, ErrTimedOut) {
			return nil, &DeviceError{Op: "fence wait", Err: err}
		}
		return nil, err
	}

	img, err := rnd.swap.Acquire(rnd.Opts.AcquireTimeout, sl.ImageAvailable)
	switch {
	case err == nil:
	case errors.Is(err, ErrSuboptimal):
		// Usable image; render it and recreate at the next boundary.
		rnd.needsRecreate = true
		Logger().Warn("acquire suboptimal", slog.Uint64("generation", img.Generation))
	case errors.Is(err, ErrOutOfDate):
		// Recreate immediately and retry once; a second failure defers
		// to the next frame.
		Logger().Warn("acquire out of date")
		rnd.needsRecreate = true
		if err := rnd.recreateSwapchain(); err != nil {
			rnd.stats.Skipped++
			return nil, err
		}
		img, err = rnd.swap.Acquire(rnd.Opts.AcquireTimeout, sl.ImageAvailable)
		if err != nil && !errors.Is(err, ErrSuboptimal) {
			rnd.stats.Skipped++
			rnd.needsRecreate = errors.Is(err, ErrOutOfDate)
			return nil, err
		}
	case errors.Is(err, ErrTimedOut):
		return nil, &DeviceError{Op: "acquire", Err: err}
	case errors.Is(err, ErrSurfaceLost):
		rnd.lost = true
		return nil, ErrSurfaceLost
	default:
		return nil, err
	}

	rnd.inFrame = true
	rnd.cur = &FrameContext{Slot: sl, Image: img, begun: begun}
	Logger().Debug("frame begun",
		slog.Int("slot", sl.Index), slog.Int("image", img.Index),
		slog.Uint64("generation", img.Generation))
	return rnd.cur, nil
}

// SubmitFrame records fc.Draws, submits the work, and queues it for
// presentation.  A present that reports ErrOutOfDate or ErrSuboptimal
// still counts as a produced frame; recreation is deferred to the next
// BeginFrame.  Submission failures are fatal.
func (rnd *Renderer) SubmitFrame(fc *FrameContext) error {
	if rnd.shutdown {
		return ErrShutdown
	}
	if !rnd.inFrame || fc == nil || fc != rnd.cur {
		return ErrFrameNotBegun
	}
	rnd.inFrame = false
	rnd.cur = nil

	if fc.Image.Generation != rnd.swap.Generation() {
		return ErrStaleAcquire
	}

	sl := fc.Slot
	if err := rnd.rec.Record(sl.Cmd, rnd.swap.Swapchain(), fc.Image.Index, &fc.Draws); err != nil {
		return err
	}

	if err := rnd.dv.Submit(sl.Cmd, sl.ImageAvailable, sl.RenderDone, sl.InFlight); err != nil {
		return &DeviceError{Op: "submit", Err: err}
	}
	rnd.ring.MarkSubmitted(sl, fc.Image.Generation)

	err := rnd.swap.Present(fc.Image, sl.RenderDone)
	switch {
	case err == nil:
	case errors.Is(err, ErrOutOfDate), errors.Is(err, ErrSuboptimal):
		Logger().Warn("present requires recreation", slog.Bool("outOfDate", errors.Is(err, ErrOutOfDate)))
		rnd.needsRecreate = true
	case errors.Is(err, ErrSurfaceLost):
		rnd.lost = true
		rnd.ring.Advance()
		return ErrSurfaceLost
	default:
		return &DeviceError{Op: "present", Err: err}
	}

	rnd.ring.Advance()
	rnd.tallyFrame(fc.begun)
	return nil
}

func (rnd *Renderer) tallyFrame(begun time.Time) {
	dur := time.Since(begun)
	rnd.stats.Frames++
	rnd.stats.LastFrame = dur
	if rnd.stats.AvgFrame == 0 {
		rnd.stats.AvgFrame = dur
	} else {
		rnd.stats.AvgFrame = (rnd.stats.AvgFrame*7 + dur) / 8
	}
	Logger().Debug("frame presented",
		slog.Uint64("frame", rnd.stats.Frames),
		slog.Duration("cpu", dur))
}

// recreateSwapchain drains in-flight work that still references the
// live generation, then rebuilds the swapchain at pendingSize.
func (rnd *Renderer) recreateSwapchain() error {
	gen := rnd.swap.Generation()
	if rnd.ring.PendingForGeneration(gen) {
		if err := rnd.ring.Drain(rnd.Opts.FenceTimeout); err != nil {
			return &DeviceError{Op: "drain", Err: err}
		}
	}
	if rnd.ring.PendingForGeneration(gen) {
		return ErrRingBusy
	}
	if err := rnd.swap.Recreate(rnd.pendingSize); err != nil {
		if errors.Is(err, ErrSurfaceLost) {
			rnd.lost = true
		}
		return err
	}
	rnd.needsRecreate = false
	rnd.stats.Recreations++
	return nil
}

// OnSurfaceResized notes a new surface extent.  Recreation happens at
// the next BeginFrame, so a burst of resize events costs at most one
// recreation.  Redundant notifications for the current extent are
// ignored.
func (rnd *Renderer) OnSurfaceResized(size image.Point) {
	if rnd.shutdown || rnd.lost {
		return
	}
	rnd.pendingSize = size
	if size.X <= 0 || size.Y <= 0 {
		Logger().Debug("surface minimized")
		return
	}
	if size != rnd.swap.Size() {
		rnd.needsRecreate = true
	}
}

// OnSurfaceLost marks the surface as gone.  All subsequent frame calls
// return ErrSurfaceLost; only Shutdown remains useful.
func (rnd *Renderer) OnSurfaceLost() {
	if rnd.lost {
		return
	}
	rnd.lost = true
	Logger().Warn("surface lost")
}

// Shutdown drains all in-flight work and destroys resources in reverse
// creation order: frame ring, then swapchain.  The driver itself
// belongs to the caller and is not destroyed.  Idempotent; safe to call
// with a frame begun (the frame is abandoned, its slot fence untouched).
func (rnd *Renderer) Shutdown() error {
	if rnd.shutdown {
		return nil
	}
	rnd.shutdown = true
	rnd.inFrame = false
	rnd.cur = nil

	var firstErr error
	if err := rnd.ring.Drain(rnd.Opts.FenceTimeout); err != nil {
		firstErr = err
	}
	if err := rnd.dv.WaitIdle(); err != nil && firstErr == nil {
		firstErr = err
	}
	rnd.ring.Destroy()
	rnd.swap.Destroy()
	Logger().Info("renderer shut down",
		slog.Uint64("frames", rnd.stats.Frames),
		slog.Uint64("recreations", rnd.stats.Recreations))
	return firstErr
}
