// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package simgpu

import (
	"image"
	"testing"
	"time"

	"github.com/elements-gfx/elgpu"
	"github.com/goki/mat32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFenceWaitResetSignal(t *testing.T) {
	f := newFence(true)
	assert.True(t, f.Signaled())
	require.NoError(t, f.Wait(time.Millisecond))

	require.NoError(t, f.Reset())
	assert.False(t, f.Signaled())
	err := f.Wait(10 * time.Millisecond)
	assert.ErrorIs(t, err, elgpu.ErrTimedOut)

	go func() {
		time.Sleep(20 * time.Millisecond)
		f.signal()
	}()
	require.NoError(t, f.Wait(time.Second))
	assert.True(t, f.Signaled())
}

func TestSubmitSignalsFenceAfterLatency(t *testing.T) {
	dv := New()
	dv.Latency = 25 * time.Millisecond

	cb, err := dv.NewCommandBuffer()
	require.NoError(t, err)
	require.NoError(t, cb.Begin())
	require.NoError(t, cb.End())

	avail, _ := dv.NewSemaphore()
	rdone, _ := dv.NewSemaphore()
	avail.(*Semaphore).signal()
	fence, err := dv.NewFence(false)
	require.NoError(t, err)

	require.NoError(t, dv.Submit(cb, avail, rdone, fence))
	assert.False(t, fence.Signaled(), "fence signals only after the simulated latency")
	require.NoError(t, fence.Wait(time.Second))
	require.NoError(t, dv.WaitIdle())
	assert.Equal(t, 0, dv.SyncViolations())
}

func TestSubmitRejectsMisuse(t *testing.T) {
	dv := New()
	cb, err := dv.NewCommandBuffer()
	require.NoError(t, err)
	avail, _ := dv.NewSemaphore()
	rdone, _ := dv.NewSemaphore()

	unrecorded, err := dv.NewFence(false)
	require.NoError(t, err)
	assert.Error(t, dv.Submit(cb, avail, rdone, unrecorded), "unrecorded buffer")

	require.NoError(t, cb.Begin())
	require.NoError(t, cb.End())
	signaled, err := dv.NewFence(true)
	require.NoError(t, err)
	assert.Error(t, dv.Submit(cb, avail, rdone, signaled), "already signaled fence")
}

func TestSwapchainRoundRobinAndRetire(t *testing.T) {
	dv := New()
	dv.FailAcquire = map[int]error{4: elgpu.ErrOutOfDate}
	sc, err := dv.NewSwapchain(image.Point{64, 64})
	require.NoError(t, err)

	sem, _ := dv.NewSemaphore()
	for want := 0; want < 3; want++ {
		idx, err := sc.Acquire(time.Second, sem)
		require.NoError(t, err)
		assert.Equal(t, want, idx)
	}

	_, err = sc.Acquire(time.Second, sem)
	require.ErrorIs(t, err, elgpu.ErrOutOfDate)
	// Once out of date, the incarnation stays unusable until Recreate.
	_, err = sc.Acquire(time.Second, sem)
	require.ErrorIs(t, err, elgpu.ErrOutOfDate)
	err = dv.Present(sc, 0, sem)
	require.ErrorIs(t, err, elgpu.ErrOutOfDate)

	require.NoError(t, sc.Recreate(image.Point{128, 128}))
	idx, err := sc.Acquire(time.Second, sem)
	require.NoError(t, err)
	assert.Equal(t, 0, idx, "recreation restarts the image rotation")
	assert.Equal(t, image.Point{128, 128}, sc.Size())
	assert.Equal(t, 2, sc.(*Swapchain).Chain())
}

func TestCmdBufferRecordsOps(t *testing.T) {
	dv := New()
	sc, err := dv.NewSwapchain(image.Point{64, 64})
	require.NoError(t, err)
	h, err := dv.RegisterPipeline(&elgpu.PipelineSpec{Name: "p"})
	require.NoError(t, err)

	cb, err := dv.NewCommandBuffer()
	require.NoError(t, err)
	scb := cb.(*CmdBuffer)

	require.NoError(t, cb.Begin())
	require.Error(t, cb.BindPipeline(elgpu.PipelineHandle(99)))
	require.NoError(t, cb.BeginPass(sc, 2, mat32.NewVec4(0, 0, 0, 1)))
	require.NoError(t, cb.BindPipeline(h))
	cb.Push([]byte{9, 9})
	cb.Draw(3, 1, 0, 0)
	cb.EndPass()
	require.NoError(t, cb.End())

	assert.Equal(t, 1, scb.Recordings)
	assert.Equal(t, 1, scb.DrawCount())
	assert.Equal(t, 2, scb.Ops[0].Image)

	// Re-recording clears the previous ops.
	require.NoError(t, cb.Begin())
	assert.Equal(t, 2, scb.Recordings)
	assert.Len(t, scb.Ops, 0)
}
