// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elgpu_test

import (
	"testing"
	"time"

	"github.com/elements-gfx/elgpu"
	"github.com/elements-gfx/elgpu/simgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRingSlotLifecycle(t *testing.T) {
	dv := simgpu.New()
	ring, err := elgpu.NewFrameRing(dv, 2)
	require.NoError(t, err)
	defer ring.Destroy()

	require.Equal(t, 2, ring.N())

	sl, err := ring.Begin(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, sl.Index)
	assert.False(t, sl.InFlight.Signaled(), "fence is unsignaled once the slot is begun")

	// Simulate a submission through the driver so the fence will signal.
	require.NoError(t, sl.Cmd.Begin())
	require.NoError(t, sl.Cmd.End())
	require.NoError(t, dv.Submit(sl.Cmd, sl.ImageAvailable, sl.RenderDone, sl.InFlight))
	ring.MarkSubmitted(sl, 1)
	ring.Advance()

	sl2, err := ring.Begin(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, sl2.Index)

	assert.True(t, ring.PendingForGeneration(1))
	assert.False(t, ring.PendingForGeneration(2))

	require.NoError(t, ring.Drain(time.Second))
	assert.False(t, ring.PendingForGeneration(1))
}

func TestFrameRingAbandonedSlotDoesNotBlock(t *testing.T) {
	dv := simgpu.New()
	ring, err := elgpu.NewFrameRing(dv, 1)
	require.NoError(t, err)
	defer ring.Destroy()

	// Begin without submitting: the fence stays unsignaled, and the next
	// Begin must not wait on it.
	_, err = ring.Begin(time.Second)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := ring.Begin(time.Second)
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Begin blocked on an abandoned slot's fence")
	}
}

func TestFrameRingDrainWaitsPendingWork(t *testing.T) {
	dv := simgpu.New()
	dv.Latency = 30 * time.Millisecond
	ring, err := elgpu.NewFrameRing(dv, 2)
	require.NoError(t, err)
	defer ring.Destroy()

	sl, err := ring.Begin(time.Second)
	require.NoError(t, err)
	require.NoError(t, sl.Cmd.Begin())
	require.NoError(t, sl.Cmd.End())
	require.NoError(t, dv.Submit(sl.Cmd, sl.ImageAvailable, sl.RenderDone, sl.InFlight))
	ring.MarkSubmitted(sl, 1)

	start := time.Now()
	require.NoError(t, ring.Drain(time.Second))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond,
		"drain must actually wait for the in-flight work")
	assert.False(t, sl.InFlight.Signaled(), "fence is reset after drain")
}
