// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	vk "github.com/goki/vulkan"
)

// RenderPass is the single-subpass clear-and-draw pass rendering into a
// swapchain color attachment.  The pass depends only on the image
// format, which stays fixed across swapchain recreation, so one pass
// serves the lifetime of the driver.
type RenderPass struct {
	dev    vk.Device
	Format vk.Format
	Pass   vk.RenderPass
}

func newRenderPass(dev vk.Device, format vk.Format) (*RenderPass, error) {
	var pass vk.RenderPass
	ret := vk.CreateRenderPass(dev, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments: []vk.AttachmentDescription{{
			Format:         format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutPresentSrc,
		}},
		SubpassCount: 1,
		PSubpasses: []vk.SubpassDescription{{
			PipelineBindPoint:    vk.PipelineBindPointGraphics,
			ColorAttachmentCount: 1,
			PColorAttachments: []vk.AttachmentReference{{
				Attachment: 0,
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			}},
		}},
		DependencyCount: 1,
		PDependencies: []vk.SubpassDependency{{
			SrcSubpass:    vk.SubpassExternal,
			DstSubpass:    0,
			SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			SrcAccessMask: 0,
			DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
		}},
	}, nil, &pass)
	if err := NewError(ret); err != nil {
		return nil, err
	}
	return &RenderPass{dev: dev, Format: format, Pass: pass}, nil
}

func (rp *RenderPass) Destroy() {
	if rp.Pass != vk.NullRenderPass {
		vk.DestroyRenderPass(rp.dev, rp.Pass, nil)
		rp.Pass = vk.NullRenderPass
	}
}
