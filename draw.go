// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elgpu

// PipelineHandle is an opaque reference to a pipeline registered with a
// driver.  Handles are only valid for the driver that issued them.
type PipelineHandle int

// NilPipeline is the zero PipelineHandle, never issued by a driver.
const NilPipeline PipelineHandle = 0

// PipelineSpec describes a graphics pipeline to be registered before the
// frame loop starts.  Shader code is pre-compiled SPIR-V bytecode.
type PipelineSpec struct {

	// Name is the key the pipeline is registered under; must be unique
	// per Renderer.
	Name string

	// VertexCode is the SPIR-V bytecode for the vertex stage.
	VertexCode []byte

	// FragmentCode is the SPIR-V bytecode for the fragment stage.
	FragmentCode []byte

	// Topology selects input assembly, TriangleList by default.
	Topology Topologies

	// AlphaBlend enables standard premultiplied alpha blending on the
	// color attachment.
	AlphaBlend bool

	// PushBytes is the size of the push-constant block the shaders
	// declare, 0 for none.  Capped at MaxPushBytes.
	PushBytes int
}

// MaxPushBytes is the largest push-constant block a pipeline may
// declare: the minimum guaranteed by the Vulkan spec, so specs that
// stay under it are portable across devices.
const MaxPushBytes = 128

// Draw is one draw call within a frame's draw list.
type Draw struct {

	// Pipeline names the registered pipeline to bind.
	Pipeline string

	// Push is optional push-constant data uploaded before the draw.
	Push []byte

	VertexCount   int
	InstanceCount int
	FirstVertex   int
	FirstInstance int
}

// DrawList is the per-frame description of what to render.  The caller
// fills one between BeginFrame and SubmitFrame; the CommandRecorder
// turns it into GPU commands.
type DrawList struct {
	Draws []Draw
}

// Add appends a draw call and returns the list for chaining.
func (dl *DrawList) Add(d Draw) *DrawList {
	dl.Draws = append(dl.Draws, d)
	return dl
}

// Reset empties the list, retaining capacity for reuse across frames.
func (dl *DrawList) Reset() {
	dl.Draws = dl.Draws[:0]
}
