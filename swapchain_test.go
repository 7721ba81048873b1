// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elgpu_test

import (
	"image"
	"testing"
	"time"

	"github.com/elements-gfx/elgpu"
	"github.com/elements-gfx/elgpu/simgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwapchainManagerGenerations(t *testing.T) {
	dv := simgpu.New()
	sm, err := elgpu.NewSwapchainManager(dv, image.Point{640, 480})
	require.NoError(t, err)
	defer sm.Destroy()

	assert.Equal(t, uint64(1), sm.Generation())
	assert.Equal(t, image.Point{640, 480}, sm.Size())
	assert.Equal(t, 3, sm.ImageCount())

	sem, err := dv.NewSemaphore()
	require.NoError(t, err)
	img, err := sm.Acquire(time.Second, sem)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), img.Generation)

	require.NoError(t, sm.Recreate(image.Point{800, 600}))
	assert.Equal(t, uint64(2), sm.Generation())
	assert.Equal(t, image.Point{800, 600}, sm.Size())

	// The image acquired before recreation is stale now.
	rdone, err := dv.NewSemaphore()
	require.NoError(t, err)
	err = sm.Present(img, rdone)
	assert.ErrorIs(t, err, elgpu.ErrStaleAcquire)

	img2, err := sm.Acquire(time.Second, sem)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), img2.Generation)
	require.NoError(t, sm.Present(img2, rdone))
}

func TestSwapchainManagerRejectsZeroExtent(t *testing.T) {
	dv := simgpu.New()
	sm, err := elgpu.NewSwapchainManager(dv, image.Point{640, 480})
	require.NoError(t, err)
	defer sm.Destroy()

	assert.ErrorIs(t, sm.Recreate(image.Point{0, 480}), elgpu.ErrMinimized)
	assert.ErrorIs(t, sm.Recreate(image.Point{640, 0}), elgpu.ErrMinimized)
	assert.Equal(t, uint64(1), sm.Generation(), "failed recreate must not bump the generation")

	_, err = elgpu.NewSwapchainManager(dv, image.Point{})
	assert.Error(t, err)
}

func TestSwapchainManagerSuboptimalAcquire(t *testing.T) {
	dv := simgpu.New()
	dv.FailAcquire = map[int]error{1: elgpu.ErrSuboptimal}
	sm, err := elgpu.NewSwapchainManager(dv, image.Point{640, 480})
	require.NoError(t, err)
	defer sm.Destroy()

	sem, err := dv.NewSemaphore()
	require.NoError(t, err)
	img, err := sm.Acquire(time.Second, sem)
	require.ErrorIs(t, err, elgpu.ErrSuboptimal)
	assert.Equal(t, uint64(1), img.Generation, "a suboptimal acquire still yields a usable image")
}
