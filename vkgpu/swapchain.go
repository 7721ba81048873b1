// Copyright (c) 2024, The Elements Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This is initially adapted from https://github.com/vulkan-go/asche
// Copyright © 2017 Maxim Kupriianov <max@kc.vc>, under the MIT License

package vkgpu

import (
	"errors"
	"image"
	"log/slog"
	"time"

	"github.com/elements-gfx/elgpu"
	vk "github.com/goki/vulkan"
)

// Swapchain implements elgpu.Swapchain on a vk.Swapchain, owning the
// image views and framebuffers for the driver's render pass.
type Swapchain struct {
	dr *Driver

	Swapchain vk.Swapchain
	Format    vk.SurfaceFormat

	size   image.Point
	images []vk.Image
	views  []vk.ImageView
	frames []vk.Framebuffer
}

func (sc *Swapchain) ImageCount() int {
	return len(sc.images)
}

func (sc *Swapchain) Size() image.Point {
	return sc.size
}

// Framebuffer returns the framebuffer for the given image index, for
// command recording.
func (sc *Swapchain) Framebuffer(imageIndex int) vk.Framebuffer {
	return sc.frames[imageIndex]
}

func (sc *Swapchain) Acquire(timeout time.Duration, imageAvailable elgpu.Semaphore) (int, error) {
	sem := imageAvailable.(*Semaphore)
	var idx uint32
	ret := vk.AcquireNextImage(sc.dr.Device.Device, sc.Swapchain,
		uint64(timeout.Nanoseconds()), sem.sem, vk.NullFence, &idx)
	switch ret {
	case vk.Success:
		return int(idx), nil
	case vk.Suboptimal:
		return int(idx), elgpu.ErrSuboptimal
	case vk.ErrorOutOfDate:
		return 0, elgpu.ErrOutOfDate
	case vk.Timeout, vk.NotReady:
		return 0, elgpu.ErrTimedOut
	case vk.ErrorSurfaceLost:
		return 0, elgpu.ErrSurfaceLost
	}
	return 0, NewError(ret)
}

// Recreate rebuilds the swapchain at the new extent, chaining the old
// one through OldSwapchain so the driver can recycle resources.
func (sc *Swapchain) Recreate(size image.Point) error {
	if size.X <= 0 || size.Y <= 0 {
		return elgpu.ErrMinimized
	}
	sc.freeImages()
	return sc.config(size)
}

// config negotiates format, present mode, image count and extent
// against the surface capabilities and creates the swapchain plus its
// views and framebuffers.  Any existing vk.Swapchain handle is passed
// as OldSwapchain and destroyed after the new one exists.
func (sc *Swapchain) config(size image.Point) error {
	dr := sc.dr
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(dr.gp.GPU, dr.surface, &caps)
	if ret == vk.ErrorSurfaceLost {
		return elgpu.ErrSurfaceLost
	}
	if err := NewError(ret); err != nil {
		return err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	format, err := selectFormat(dr.gp.GPU, dr.surface)
	if err != nil {
		return err
	}
	presentMode := selectPresentMode(dr.gp.GPU, dr.surface, dr.VSync)

	extent := caps.CurrentExtent
	if extent.Width == vk.MaxUint32 {
		extent.Width = clampU32(uint32(size.X), caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
		extent.Height = clampU32(uint32(size.Y), caps.MinImageExtent.Height, caps.MaxImageExtent.Height)
	}
	if extent.Width == 0 || extent.Height == 0 {
		return elgpu.ErrMinimized
	}

	// One more than the minimum so the driver never starves waiting for
	// the display to release an image.
	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	preTransform := caps.CurrentTransform
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&vk.SurfaceTransformIdentityBit != 0 {
		preTransform = vk.SurfaceTransformIdentityBit
	}

	compositeAlpha := vk.CompositeAlphaOpaqueBit
	for _, ca := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(ca) != 0 {
			compositeAlpha = ca
			break
		}
	}

	oldSwapchain := sc.Swapchain
	var swapchain vk.Swapchain
	ret = vk.CreateSwapchain(dr.Device.Device, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          dr.surface,
		MinImageCount:    imageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     preTransform,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     oldSwapchain,
	}, nil, &swapchain)
	if err := NewError(ret); err != nil {
		return err
	}
	if oldSwapchain != vk.NullSwapchain {
		vk.DestroySwapchain(dr.Device.Device, oldSwapchain, nil)
	}
	sc.Swapchain = swapchain
	sc.Format = format
	sc.size = image.Point{int(extent.Width), int(extent.Height)}

	if dr.rp == nil {
		rp, err := newRenderPass(dr.Device.Device, format.Format)
		if err != nil {
			return err
		}
		dr.rp = rp
	} else if dr.rp.Format != format.Format {
		// The render pass was built for the old format; pipelines
		// reference it, so a format change cannot be absorbed here.
		return errors.New("vkgpu: surface format changed across recreation")
	}

	var count uint32
	ret = vk.GetSwapchainImages(dr.Device.Device, sc.Swapchain, &count, nil)
	if err := NewError(ret); err != nil {
		return err
	}
	sc.images = make([]vk.Image, count)
	ret = vk.GetSwapchainImages(dr.Device.Device, sc.Swapchain, &count, sc.images)
	if err := NewError(ret); err != nil {
		return err
	}

	sc.views = make([]vk.ImageView, count)
	sc.frames = make([]vk.Framebuffer, count)
	for i, img := range sc.images {
		var view vk.ImageView
		ret = vk.CreateImageView(dr.Device.Device, &vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    img,
			ViewType: vk.ImageViewType2d,
			Format:   format.Format,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}, nil, &view)
		if err := NewError(ret); err != nil {
			return err
		}
		sc.views[i] = view

		var fb vk.Framebuffer
		ret = vk.CreateFramebuffer(dr.Device.Device, &vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      dr.rp.Pass,
			AttachmentCount: 1,
			PAttachments:    []vk.ImageView{view},
			Width:           extent.Width,
			Height:          extent.Height,
			Layers:          1,
		}, nil, &fb)
		if err := NewError(ret); err != nil {
			return err
		}
		sc.frames[i] = fb
	}
	elgpu.Logger().Debug("swapchain configured",
		slog.Int("images", int(count)),
		slog.Int("width", sc.size.X), slog.Int("height", sc.size.Y))
	return nil
}

// freeImages destroys the framebuffers and views; the images belong to
// the swapchain itself.
func (sc *Swapchain) freeImages() {
	dev := sc.dr.Device.Device
	for _, fb := range sc.frames {
		vk.DestroyFramebuffer(dev, fb, nil)
	}
	for _, view := range sc.views {
		vk.DestroyImageView(dev, view, nil)
	}
	sc.frames = nil
	sc.views = nil
	sc.images = nil
}

func (sc *Swapchain) Destroy() {
	sc.freeImages()
	if sc.Swapchain != vk.NullSwapchain {
		vk.DestroySwapchain(sc.dr.Device.Device, sc.Swapchain, nil)
		sc.Swapchain = vk.NullSwapchain
	}
}

// selectFormat prefers 8-bit sRGB, falling back to whatever the surface
// offers first.
func selectFormat(gpu vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceFormat, error) {
	var count uint32
	vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &count, nil)
	if count == 0 {
		return vk.SurfaceFormat{}, errors.New("vkgpu: surface has no pixel formats")
	}
	formats := make([]vk.SurfaceFormat, count)
	vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &count, formats)
	for i := range formats {
		formats[i].Deref()
	}
	for _, f := range formats {
		if (f.Format == vk.FormatR8g8b8a8Srgb || f.Format == vk.FormatB8g8r8a8Srgb) &&
			f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f, nil
		}
	}
	if formats[0].Format == vk.FormatUndefined {
		f := formats[0]
		f.Format = vk.FormatR8g8b8a8Srgb
		return f, nil
	}
	return formats[0], nil
}

// selectPresentMode returns FIFO when vsync is requested (always
// supported), otherwise mailbox when available, falling back to
// immediate and finally FIFO.
func selectPresentMode(gpu vk.PhysicalDevice, surface vk.Surface, vsync bool) vk.PresentMode {
	if vsync {
		return vk.PresentModeFifo
	}
	var count uint32
	vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &count, nil)
	modes := make([]vk.PresentMode, count)
	vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &count, modes)
	for _, want := range []vk.PresentMode{vk.PresentModeMailbox, vk.PresentModeImmediate} {
		for _, m := range modes {
			if m == want {
				return m
			}
		}
	}
	return vk.PresentModeFifo
}

func clampU32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
