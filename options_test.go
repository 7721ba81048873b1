// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elgpu_test

import (
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/elements-gfx/elgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsDefaults(t *testing.T) {
	op := &elgpu.Options{}
	op.Defaults()
	assert.Equal(t, 2, op.FramesInFlight)
	assert.Equal(t, image.Point{1024, 768}, op.Size)
	assert.True(t, op.VSync)
	assert.Equal(t, time.Second, op.FenceTimeout)
	assert.Equal(t, time.Second, op.AcquireTimeout)
}

func TestOptionsJSONRoundTrip(t *testing.T) {
	op := &elgpu.Options{}
	op.Defaults()
	op.FramesInFlight = 3
	op.VSync = false
	op.Size = image.Point{1920, 1080}

	fname := filepath.Join(t.TempDir(), "options.json")
	require.NoError(t, op.SaveJSON(fname))

	op2 := &elgpu.Options{}
	require.NoError(t, op2.OpenJSON(fname))
	assert.Equal(t, op, op2)
}

func TestStatsFPS(t *testing.T) {
	st := &elgpu.Stats{}
	assert.Equal(t, float64(0), st.FPS())
	st.AvgFrame = 10 * time.Millisecond
	assert.InDelta(t, 100.0, st.FPS(), 0.01)
}
