// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elgpu

import (
	"image"
	"time"

	"github.com/goki/mat32"
	"goki.dev/grows/jsons"
)

// Options configures a Renderer.  Call Defaults before use; zero values
// are not valid.
type Options struct {

	// FramesInFlight is the number of frames the CPU may record ahead of
	// the GPU.  2 balances latency against pipelining; values outside
	// [1,4] are clamped by Defaults-aware constructors.
	FramesInFlight int `desc:"number of frames the CPU may record ahead of the GPU"`

	// Size is the initial surface extent in pixels.
	Size image.Point `desc:"initial surface extent in pixels"`

	// VSync selects FIFO presentation when true; when false the driver
	// uses a low-latency mode (mailbox) if the device supports it.
	VSync bool `desc:"synchronize presentation to the display refresh"`

	// ClearColor is the color each frame starts from.
	ClearColor mat32.Vec4 `desc:"color each frame starts from"`

	// FenceTimeout bounds the wait for a frame slot's fence in
	// BeginFrame.  Expiry is reported as ErrTimedOut, never treated as
	// completion.
	FenceTimeout time.Duration `desc:"max wait for a frame slot fence"`

	// AcquireTimeout bounds the wait for a swapchain image.
	AcquireTimeout time.Duration `desc:"max wait for a swapchain image"`
}

// Defaults sets standard values: 2 frames in flight, 1024x768, vsync on,
// near-black clear, one second timeouts.
func (op *Options) Defaults() {
	op.FramesInFlight = 2
	op.Size = image.Point{1024, 768}
	op.VSync = true
	op.ClearColor = mat32.NewVec4(0.015, 0.015, 0.02, 1)
	op.FenceTimeout = time.Second
	op.AcquireTimeout = time.Second
}

// clamped returns a copy with out-of-range fields forced to sane values,
// so a partially filled Options cannot wedge the frame ring.
func (op *Options) clamped() Options {
	co := *op
	if co.FramesInFlight < 1 {
		co.FramesInFlight = 1
	}
	if co.FramesInFlight > 4 {
		co.FramesInFlight = 4
	}
	if co.FenceTimeout <= 0 {
		co.FenceTimeout = time.Second
	}
	if co.AcquireTimeout <= 0 {
		co.AcquireTimeout = time.Second
	}
	return co
}

// OpenJSON loads options from the given JSON file, as saved by SaveJSON.
func (op *Options) OpenJSON(filename string) error {
	return jsons.Open(op, filename)
}

// SaveJSON saves options to the given JSON file.
func (op *Options) SaveJSON(filename string) error {
	return jsons.Save(op, filename)
}
