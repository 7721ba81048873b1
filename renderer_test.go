// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elgpu_test

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/elements-gfx/elgpu"
	"github.com/elements-gfx/elgpu/simgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T, dv *simgpu.Driver, framesInFlight int) *elgpu.Renderer {
	t.Helper()
	opts := &elgpu.Options{}
	opts.Defaults()
	opts.FramesInFlight = framesInFlight
	opts.Size = image.Point{640, 480}
	rnd, err := elgpu.NewRenderer(dv, opts)
	require.NoError(t, err)
	require.NoError(t, rnd.RegisterPipeline(&elgpu.PipelineSpec{
		Name:         "tri",
		VertexCode:   make([]byte, 16),
		FragmentCode: make([]byte, 16),
	}))
	return rnd
}

func runFrame(t *testing.T, rnd *elgpu.Renderer) {
	t.Helper()
	fc, err := rnd.BeginFrame()
	require.NoError(t, err)
	fc.Draws.Add(elgpu.Draw{Pipeline: "tri", VertexCount: 3, InstanceCount: 1})
	require.NoError(t, rnd.SubmitFrame(fc))
}

func TestFrameLoopPresentsDistinctImages(t *testing.T) {
	dv := simgpu.New()
	rnd := newTestRenderer(t, dv, 2)
	defer rnd.Shutdown()

	for i := 0; i < 6; i++ {
		runFrame(t, rnd)
	}
	require.NoError(t, rnd.Shutdown())

	presents := dv.Presents()
	require.Len(t, presents, 6)
	for i, pr := range presents {
		assert.Equal(t, i%3, pr.Image, "present %d", i)
		assert.Equal(t, 1, pr.Chain)
	}
	assert.Equal(t, uint64(6), rnd.Stats().Frames)
	assert.Equal(t, 0, dv.SyncViolations())
}

func TestBackpressureBoundsFramesInFlight(t *testing.T) {
	dv := simgpu.New()
	dv.Latency = 20 * time.Millisecond
	rnd := newTestRenderer(t, dv, 3)
	defer rnd.Shutdown()

	for i := 0; i < 10; i++ {
		runFrame(t, rnd)
	}
	require.NoError(t, rnd.Shutdown())

	assert.LessOrEqual(t, dv.MaxInFlight(), 3,
		"CPU must never run more than FramesInFlight submissions ahead")
	assert.Equal(t, 10, dv.Submits())
	assert.Equal(t, 0, dv.SyncViolations())
}

func TestAcquireOutOfDateRecreatesAndRetries(t *testing.T) {
	dv := simgpu.New()
	dv.FailAcquire = map[int]error{5: elgpu.ErrOutOfDate}
	rnd := newTestRenderer(t, dv, 2)
	defer rnd.Shutdown()

	for i := 0; i < 10; i++ {
		runFrame(t, rnd)
	}

	assert.Equal(t, uint64(1), rnd.Stats().Recreations)
	presents := dv.Presents()
	require.Len(t, presents, 10)
	assert.Equal(t, 1, presents[3].Chain)
	assert.Equal(t, 2, presents[4].Chain, "frame after recreation presents the new swapchain")
}

func TestSuboptimalAcquireStillRendersThenRecreates(t *testing.T) {
	dv := simgpu.New()
	dv.FailAcquire = map[int]error{2: elgpu.ErrSuboptimal}
	rnd := newTestRenderer(t, dv, 2)
	defer rnd.Shutdown()

	for i := 0; i < 4; i++ {
		runFrame(t, rnd)
	}

	presents := dv.Presents()
	require.Len(t, presents, 4, "a suboptimal image is still rendered and presented")
	assert.Equal(t, 1, presents[1].Chain)
	assert.Equal(t, 2, presents[2].Chain, "recreation deferred to the next frame boundary")
	assert.Equal(t, uint64(1), rnd.Stats().Recreations)
}

func TestPresentOutOfDateDefersRecreation(t *testing.T) {
	dv := simgpu.New()
	dv.FailPresent = map[int]error{3: elgpu.ErrOutOfDate}
	rnd := newTestRenderer(t, dv, 2)
	defer rnd.Shutdown()

	for i := 0; i < 6; i++ {
		runFrame(t, rnd)
	}

	assert.Equal(t, uint64(6), rnd.Stats().Frames, "an out-of-date present still counts as a produced frame")
	assert.Equal(t, uint64(1), rnd.Stats().Recreations)
	assert.Len(t, dv.Presents(), 5)
}

func TestResizeRecreatesOnce(t *testing.T) {
	dv := simgpu.New()
	rnd := newTestRenderer(t, dv, 2)
	defer rnd.Shutdown()

	runFrame(t, rnd)

	// Burst of resize events costs at most one recreation.
	rnd.OnSurfaceResized(image.Point{800, 600})
	rnd.OnSurfaceResized(image.Point{810, 600})
	rnd.OnSurfaceResized(image.Point{800, 608})
	runFrame(t, rnd)
	assert.Equal(t, uint64(1), rnd.Stats().Recreations)
	assert.Equal(t, image.Point{800, 608}, rnd.Size())

	// Redundant notification for the current extent is a no-op.
	rnd.OnSurfaceResized(image.Point{800, 608})
	runFrame(t, rnd)
	assert.Equal(t, uint64(1), rnd.Stats().Recreations)
}

func TestMinimizedSkipsFrames(t *testing.T) {
	dv := simgpu.New()
	rnd := newTestRenderer(t, dv, 2)
	defer rnd.Shutdown()

	runFrame(t, rnd)
	acquires := dv.Acquires()

	rnd.OnSurfaceResized(image.Point{0, 0})
	for i := 0; i < 3; i++ {
		_, err := rnd.BeginFrame()
		require.ErrorIs(t, err, elgpu.ErrMinimized)
		assert.True(t, elgpu.IsRecoverable(err))
	}
	assert.Equal(t, acquires, dv.Acquires(), "no acquire while minimized")
	assert.Equal(t, uint64(3), rnd.Stats().Skipped)

	rnd.OnSurfaceResized(image.Point{320, 240})
	runFrame(t, rnd)
	assert.Equal(t, uint64(1), rnd.Stats().Recreations)
	assert.Equal(t, image.Point{320, 240}, rnd.Size())
}

func TestUnknownPipelineFailsBeforeSubmit(t *testing.T) {
	dv := simgpu.New()
	rnd := newTestRenderer(t, dv, 2)
	defer rnd.Shutdown()

	fc, err := rnd.BeginFrame()
	require.NoError(t, err)
	fc.Draws.Add(elgpu.Draw{Pipeline: "nope", VertexCount: 3, InstanceCount: 1})
	err = rnd.SubmitFrame(fc)
	require.ErrorIs(t, err, elgpu.ErrUnknownPipeline)
	var re *elgpu.RecordError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "nope", re.Pipeline)
	assert.Equal(t, 0, dv.Submits(), "nothing reaches the queue")

	// The frame loop can continue.
	runFrame(t, rnd)
}

func TestFrameProtocolMisuse(t *testing.T) {
	dv := simgpu.New()
	rnd := newTestRenderer(t, dv, 2)
	defer rnd.Shutdown()

	err := rnd.SubmitFrame(nil)
	assert.ErrorIs(t, err, elgpu.ErrFrameNotBegun)

	fc, err := rnd.BeginFrame()
	require.NoError(t, err)
	_, err = rnd.BeginFrame()
	assert.ErrorIs(t, err, elgpu.ErrFrameInProgress)

	err = rnd.RegisterPipeline(&elgpu.PipelineSpec{Name: "late"})
	assert.ErrorIs(t, err, elgpu.ErrFrameInProgress)

	fc.Draws.Add(elgpu.Draw{Pipeline: "tri", VertexCount: 3, InstanceCount: 1})
	require.NoError(t, rnd.SubmitFrame(fc))

	err = rnd.SubmitFrame(fc)
	assert.ErrorIs(t, err, elgpu.ErrFrameNotBegun, "a context cannot be submitted twice")
}

func TestRegisterPipelineValidation(t *testing.T) {
	dv := simgpu.New()
	rnd := newTestRenderer(t, dv, 2)
	defer rnd.Shutdown()

	err := rnd.RegisterPipeline(&elgpu.PipelineSpec{Name: "tri"})
	assert.Error(t, err, "duplicate name is rejected")

	err = rnd.RegisterPipeline(&elgpu.PipelineSpec{Name: ""})
	assert.Error(t, err)

	err = rnd.RegisterPipeline(&elgpu.PipelineSpec{Name: "big", PushBytes: elgpu.MaxPushBytes + 4})
	assert.Error(t, err)

	assert.Equal(t, []string{"tri"}, rnd.PipelineNames())
}

func TestShutdownDrainsAndIsIdempotent(t *testing.T) {
	dv := simgpu.New()
	dv.Latency = 15 * time.Millisecond
	rnd := newTestRenderer(t, dv, 2)

	for i := 0; i < 4; i++ {
		runFrame(t, rnd)
	}
	require.NoError(t, rnd.Shutdown())
	require.NoError(t, rnd.Shutdown())

	_, err := rnd.BeginFrame()
	assert.ErrorIs(t, err, elgpu.ErrShutdown)
	assert.ErrorIs(t, rnd.SubmitFrame(nil), elgpu.ErrShutdown)
	assert.Len(t, dv.Presents(), 4)
}

func TestShutdownWithFrameBegun(t *testing.T) {
	dv := simgpu.New()
	rnd := newTestRenderer(t, dv, 2)

	_, err := rnd.BeginFrame()
	require.NoError(t, err)
	require.NoError(t, rnd.Shutdown(), "an abandoned frame must not wedge shutdown")
}

func TestSurfaceLostIsFatal(t *testing.T) {
	dv := simgpu.New()
	rnd := newTestRenderer(t, dv, 2)
	defer rnd.Shutdown()

	runFrame(t, rnd)
	rnd.OnSurfaceLost()

	_, err := rnd.BeginFrame()
	require.ErrorIs(t, err, elgpu.ErrSurfaceLost)
	assert.True(t, elgpu.IsFatal(err))
	assert.False(t, elgpu.IsRecoverable(err))
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, elgpu.IsRecoverable(elgpu.ErrOutOfDate))
	assert.True(t, elgpu.IsRecoverable(elgpu.ErrSuboptimal))
	assert.True(t, elgpu.IsRecoverable(elgpu.ErrMinimized))
	assert.False(t, elgpu.IsRecoverable(elgpu.ErrTimedOut))

	de := &elgpu.DeviceError{Op: "submit", Err: errors.New("boom")}
	assert.True(t, elgpu.IsFatal(de))
	assert.False(t, elgpu.IsRecoverable(de))
	assert.True(t, elgpu.IsFatal(elgpu.ErrSurfaceLost))
	assert.False(t, elgpu.IsFatal(elgpu.ErrSuboptimal))
}
