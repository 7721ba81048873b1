// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This is initially adapted from https://github.com/vulkan-go/asche
// Copyright © 2017 Maxim Kupriianov <max@kc.vc>, under the MIT License

package vkgpu

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/elements-gfx/elgpu"
	vk "github.com/goki/vulkan"
)

// Pipeline is one finalized graphics pipeline: shader stages, fixed
// function state, and a layout whose only resource is an optional push
// constant block.
type Pipeline struct {
	Name string

	// PushBytes is the size of the push constant block, 0 for none.
	PushBytes int

	// VkConfig holds the configuration options, set via the Set*
	// methods before Config builds the pipeline.
	VkConfig   vk.GraphicsPipelineCreateInfo
	VkPipeline vk.Pipeline
	VkLayout   vk.PipelineLayout
	VkCache    vk.PipelineCache

	dev     vk.Device
	shaders []vk.ShaderModule
}

// newPipeline builds a pipeline from the spec against the driver's
// render pass.
func newPipeline(dr *Driver, ps *elgpu.PipelineSpec) (*Pipeline, error) {
	pl := &Pipeline{Name: ps.Name, PushBytes: ps.PushBytes, dev: dr.Device.Device}
	pl.SetDefaults()
	pl.SetTopology(ps.Topology, false)
	pl.SetColorBlend(ps.AlphaBlend)

	if err := pl.AddShaderCode(elgpu.VertexShader, ps.VertexCode); err != nil {
		pl.Destroy()
		return nil, err
	}
	if err := pl.AddShaderCode(elgpu.FragmentShader, ps.FragmentCode); err != nil {
		pl.Destroy()
		return nil, err
	}
	if err := pl.Config(dr.rp); err != nil {
		pl.Destroy()
		return nil, err
	}
	return pl, nil
}

// AddShaderCode creates a shader module from SPIR-V bytecode and adds
// it as a stage.
func (pl *Pipeline) AddShaderCode(typ elgpu.ShaderTypes, code []byte) error {
	if len(code) == 0 || len(code)%4 != 0 {
		return fmt.Errorf("vkgpu: pipeline %s: %s code is not valid SPIR-V (%d bytes)",
			pl.Name, typ, len(code))
	}
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(pl.dev, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    SliceUint32(code),
	}, nil, &module)
	if err := NewError(ret); err != nil {
		return err
	}
	pl.shaders = append(pl.shaders, module)
	pl.VkConfig.PStages = append(pl.VkConfig.PStages, vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  shaderStageFlags[typ],
		Module: module,
		PName:  "main\x00",
	})
	pl.VkConfig.StageCount = uint32(len(pl.VkConfig.PStages))
	return nil
}

// SetDefaults configures the fixed function defaults: dynamic viewport
// and scissor, triangle list, filled back-face culled rasterization,
// no blending, single sample.
func (pl *Pipeline) SetDefaults() {
	pl.SetDynamicState()
	pl.SetTopology(elgpu.TriangleList, false)
	pl.SetRasterization(vk.PolygonModeFill, vk.CullModeBackBit, vk.FrontFaceCounterClockwise, 1.0)
	pl.SetColorBlend(false)
	pl.VkConfig.PMultisampleState = &vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
	}
	pl.VkConfig.PViewportState = &vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ScissorCount:  1,
		ViewportCount: 1,
	}
	pl.VkConfig.PVertexInputState = &vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
}

// SetDynamicState makes viewport and scissor dynamic so the pipeline
// survives swapchain recreation without a rebuild.
func (pl *Pipeline) SetDynamicState() {
	pl.VkConfig.PDynamicState = &vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: 2,
		PDynamicStates: []vk.DynamicState{
			vk.DynamicStateScissor,
			vk.DynamicStateViewport,
		},
	}
}

// SetTopology sets the topology of vertex position data.
// TriangleList is the default.
func (pl *Pipeline) SetTopology(topo elgpu.Topologies, restartEnable bool) {
	rese := vk.False
	if restartEnable {
		rese = vk.True
	}
	pl.VkConfig.PInputAssemblyState = &vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopology(topo),
		PrimitiveRestartEnable: vk.Bool32(rese),
	}
}

// SetRasterization sets polygon fill, culling, winding and line width.
func (pl *Pipeline) SetRasterization(polygonMode vk.PolygonMode, cullMode vk.CullModeFlagBits, frontFace vk.FrontFace, lineWidth float32) {
	pl.VkConfig.PRasterizationState = &vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: polygonMode,
		CullMode:    vk.CullModeFlags(cullMode),
		FrontFace:   frontFace,
		LineWidth:   lineWidth,
	}
}

// SetColorBlend sets premultiplied alpha blending on the color
// attachment, or plain overwrite when alphaBlend is false.
func (pl *Pipeline) SetColorBlend(alphaBlend bool) {
	var cb vk.PipelineColorBlendAttachmentState
	cb.ColorWriteMask = vk.ColorComponentFlags(
		vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit)
	if alphaBlend {
		cb.BlendEnable = vk.True
		cb.SrcColorBlendFactor = vk.BlendFactorOne
		cb.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		cb.ColorBlendOp = vk.BlendOpAdd
		cb.SrcAlphaBlendFactor = vk.BlendFactorOne
		cb.DstAlphaBlendFactor = vk.BlendFactorZero
		cb.AlphaBlendOp = vk.BlendOpAdd
	}
	pl.VkConfig.PColorBlendState = &vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{cb},
	}
}

// Config builds the layout and the pipeline against the given render
// pass, once all Set* options and shader stages are in place.
func (pl *Pipeline) Config(rp *RenderPass) error {
	if pl.VkPipeline != nil {
		return nil
	}
	if rp == nil {
		return errors.New("vkgpu: pipeline configured before any swapchain exists")
	}

	var ranges []vk.PushConstantRange
	if pl.PushBytes > 0 {
		ranges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
			Offset:     0,
			Size:       uint32(pl.PushBytes),
		}}
	}
	var layout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(pl.dev, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}, nil, &layout)
	if err := NewError(ret); err != nil {
		return err
	}
	pl.VkLayout = layout

	var pipelineCache vk.PipelineCache
	ret = vk.CreatePipelineCache(pl.dev, &vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}, nil, &pipelineCache)
	if err := NewError(ret); err != nil {
		return err
	}
	pl.VkCache = pipelineCache

	pl.VkConfig.SType = vk.StructureTypeGraphicsPipelineCreateInfo
	pl.VkConfig.Layout = pl.VkLayout
	pl.VkConfig.RenderPass = rp.Pass

	pipeline := make([]vk.Pipeline, 1)
	ret = vk.CreateGraphicsPipelines(pl.dev, pl.VkCache, 1,
		[]vk.GraphicsPipelineCreateInfo{pl.VkConfig}, nil, pipeline)
	if err := NewError(ret); err != nil {
		return err
	}
	pl.VkPipeline = pipeline[0]

	pl.FreeShaders() // not needed once built
	return nil
}

// FreeShaders unloads the shader modules after pipeline creation.
func (pl *Pipeline) FreeShaders() {
	for _, sh := range pl.shaders {
		vk.DestroyShaderModule(pl.dev, sh, nil)
	}
	pl.shaders = nil
}

func (pl *Pipeline) Destroy() {
	pl.FreeShaders()
	if pl.VkCache != nil {
		vk.DestroyPipelineCache(pl.dev, pl.VkCache, nil)
		pl.VkCache = nil
	}
	if pl.VkPipeline != nil {
		vk.DestroyPipeline(pl.dev, pl.VkPipeline, nil)
		pl.VkPipeline = nil
	}
	if pl.VkLayout != nil {
		vk.DestroyPipelineLayout(pl.dev, pl.VkLayout, nil)
		pl.VkLayout = nil
	}
}

var shaderStageFlags = map[elgpu.ShaderTypes]vk.ShaderStageFlagBits{
	elgpu.VertexShader:   vk.ShaderStageVertexBit,
	elgpu.TessCtrlShader: vk.ShaderStageTessellationControlBit,
	elgpu.TessEvalShader: vk.ShaderStageTessellationEvaluationBit,
	elgpu.GeometryShader: vk.ShaderStageGeometryBit,
	elgpu.FragmentShader: vk.ShaderStageFragmentBit,
	elgpu.ComputeShader:  vk.ShaderStageComputeBit,
}

// SliceUint32 reinterprets SPIR-V bytes as the uint32 words the Vulkan
// API expects.
func SliceUint32(data []byte) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}
