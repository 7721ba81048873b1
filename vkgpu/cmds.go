// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This is initially adapted from https://github.com/vulkan-go/asche
// Copyright © 2017 Maxim Kupriianov <max@kc.vc>, under the MIT License

package vkgpu

import (
	"errors"
	"unsafe"

	"github.com/elements-gfx/elgpu"
	"github.com/goki/mat32"
	vk "github.com/goki/vulkan"
)

// CmdPool is a command pool that command buffers are allocated from.
type CmdPool struct {
	Pool vk.CommandPool
}

// Init initializes the pool on the device's queue family.
func (cp *CmdPool) Init(dv *Device, flags vk.CommandPoolCreateFlagBits) error {
	var cmdPool vk.CommandPool
	ret := vk.CreateCommandPool(dv.Device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: dv.QueueIndex,
		Flags:            vk.CommandPoolCreateFlags(flags),
	}, nil, &cmdPool)
	if err := NewError(ret); err != nil {
		return err
	}
	cp.Pool = cmdPool
	return nil
}

// NewBuffer allocates one primary command buffer from the pool.
func (cp *CmdPool) NewBuffer(dv *Device) (vk.CommandBuffer, error) {
	cmdBuff := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(dv.Device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        cp.Pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, cmdBuff)
	if err := NewError(ret); err != nil {
		return nil, err
	}
	return cmdBuff[0], nil
}

func (cp *CmdPool) Destroy(dev vk.Device) {
	if cp.Pool == nil {
		return
	}
	vk.DestroyCommandPool(dev, cp.Pool, nil)
	cp.Pool = nil
}

// CmdBuffer implements elgpu.CommandBuffer on a vk.CommandBuffer.  One
// is allocated per frame slot and re-recorded each time the slot's
// fence confirms the previous use has completed.
type CmdBuffer struct {
	dr   *Driver
	Buff vk.CommandBuffer

	// bound is the currently bound pipeline, for push constant layout.
	bound *Pipeline
}

func (cb *CmdBuffer) Begin() error {
	vk.ResetCommandBuffer(cb.Buff, 0)
	cb.bound = nil
	ret := vk.BeginCommandBuffer(cb.Buff, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	})
	return NewError(ret)
}

// BeginPass starts the clear-and-draw pass into the given swapchain
// image, setting viewport and scissor to the full extent.
func (cb *CmdBuffer) BeginPass(sc elgpu.Swapchain, imageIndex int, clear mat32.Vec4) error {
	vsc, ok := sc.(*Swapchain)
	if !ok || vsc.dr != cb.dr {
		return errors.New("vkgpu: swapchain from a different driver")
	}
	sz := vsc.Size()
	w, h := uint32(sz.X), uint32(sz.Y)
	clearValues := []vk.ClearValue{
		vk.NewClearValue([]float32{clear.X, clear.Y, clear.Z, clear.W}),
	}
	vk.CmdBeginRenderPass(cb.Buff, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  cb.dr.rp.Pass,
		Framebuffer: vsc.Framebuffer(imageIndex),
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: w, Height: h},
		},
		ClearValueCount: 1,
		PClearValues:    clearValues,
	}, vk.SubpassContentsInline)

	vk.CmdSetViewport(cb.Buff, 0, 1, []vk.Viewport{{
		Width:    float32(w),
		Height:   float32(h),
		MinDepth: 0,
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(cb.Buff, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: w, Height: h},
	}})
	return nil
}

func (cb *CmdBuffer) BindPipeline(h elgpu.PipelineHandle) error {
	pl := cb.dr.pipeline(h)
	if pl == nil {
		return elgpu.ErrUnknownPipeline
	}
	vk.CmdBindPipeline(cb.Buff, vk.PipelineBindPointGraphics, pl.VkPipeline)
	cb.bound = pl
	return nil
}

// Push uploads push constant data for the bound pipeline.  Data beyond
// the pipeline's declared push block is truncated.
func (cb *CmdBuffer) Push(data []byte) {
	if cb.bound == nil || cb.bound.PushBytes == 0 || len(data) == 0 {
		return
	}
	n := len(data)
	if n > cb.bound.PushBytes {
		n = cb.bound.PushBytes
	}
	vk.CmdPushConstants(cb.Buff, cb.bound.VkLayout,
		vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit),
		0, uint32(n), unsafe.Pointer(&data[0]))
}

func (cb *CmdBuffer) Draw(vtxCount, instCount, firstVtx, firstInst int) {
	vk.CmdDraw(cb.Buff, uint32(vtxCount), uint32(instCount), uint32(firstVtx), uint32(firstInst))
}

func (cb *CmdBuffer) EndPass() {
	vk.CmdEndRenderPass(cb.Buff)
}

func (cb *CmdBuffer) End() error {
	return NewError(vk.EndCommandBuffer(cb.Buff))
}

func (cb *CmdBuffer) Destroy() {
	if cb.Buff != nil {
		vk.FreeCommandBuffers(cb.dr.Device.Device, cb.dr.CmdPool.Pool, 1, []vk.CommandBuffer{cb.Buff})
		cb.Buff = nil
	}
}
