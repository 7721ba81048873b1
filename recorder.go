// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elgpu

import (
	"github.com/goki/mat32"
)

// CommandRecorder translates a DrawList into commands on a frame slot's
// command buffer.  It resolves pipeline names through the registry the
// Renderer maintains, so an unknown name fails the frame before
// anything reaches the GPU.
type CommandRecorder struct {

	// Clear is the color the pass clears to.
	Clear mat32.Vec4

	// lookup resolves a registered pipeline name to its driver handle.
	lookup func(name string) (PipelineHandle, bool)
}

// NewCommandRecorder returns a recorder that resolves pipeline names
// with the given lookup.
func NewCommandRecorder(clear mat32.Vec4, lookup func(string) (PipelineHandle, bool)) *CommandRecorder {
	return &CommandRecorder{Clear: clear, lookup: lookup}
}

// Record writes the draw list into cmd, targeting the given swapchain
// image.  The buffer is begun, filled, and ended here; on error the
// buffer is left ended but must not be submitted.  Failures are wrapped
// in RecordError naming the offending pipeline where one is involved.
func (cr *CommandRecorder) Record(cmd CommandBuffer, sc Swapchain, imageIndex int, dl *DrawList) error {
	if err := cmd.Begin(); err != nil {
		return err
	}
	if err := cmd.BeginPass(sc, imageIndex, cr.Clear); err != nil {
		return err
	}
	var lastBound string
	for i := range dl.Draws {
		d := &dl.Draws[i]
		if d.Pipeline != lastBound {
			h, ok := cr.lookup(d.Pipeline)
			if !ok {
				cmd.EndPass()
				cmd.End()
				return &RecordError{Pipeline: d.Pipeline, Err: ErrUnknownPipeline}
			}
			if err := cmd.BindPipeline(h); err != nil {
				cmd.EndPass()
				cmd.End()
				return &RecordError{Pipeline: d.Pipeline, Err: err}
			}
			lastBound = d.Pipeline
		}
		if len(d.Push) > 0 {
			cmd.Push(d.Push)
		}
		cmd.Draw(d.VertexCount, d.InstanceCount, d.FirstVertex, d.FirstInstance)
	}
	cmd.EndPass()
	return cmd.End()
}
